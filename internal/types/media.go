// README: Opaque references to files held by the external asset host.
package types

type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaVideo MediaKind = "video"
	MediaFile  MediaKind = "file"
)

type MediaRef struct {
	PublicID string    `json:"public_id"`
	URL      string    `json:"url"`
	Kind     MediaKind `json:"kind"`
}
