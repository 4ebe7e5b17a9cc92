// README: Entity identifiers shared by every module.
package types

import "github.com/google/uuid"

type ID string

func NewID() ID {
	return ID(uuid.NewString())
}

// ValidID reports whether v looks like an identifier produced by NewID.
func ValidID(v string) bool {
	_, err := uuid.Parse(v)
	return err == nil
}
