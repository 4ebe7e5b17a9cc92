package infra

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitSQLDropsCommentsAndEmptyStatements(t *testing.T) {
	input := "-- header\nCREATE TABLE a (id INT);\n\n-- note\nCREATE TABLE b (id INT);;\n"
	stmts := SplitSQL(StripSQLComments(input))
	assert.Equal(t, []string{"CREATE TABLE a (id INT)", "CREATE TABLE b (id INT)"}, stmts)
}

func TestEmbeddedMigrationsParse(t *testing.T) {
	content, err := migrationFS.ReadFile("migrations/0001_init.sql")
	require.NoError(t, err)
	stmts := SplitSQL(StripSQLComments(string(content)))
	require.NotEmpty(t, stmts)
	assert.Contains(t, stmts[0], "btree_gist")
	joined := ""
	for _, s := range stmts {
		joined += s
	}
	assert.Contains(t, joined, "tasks_bay_no_overlap")
	assert.Contains(t, joined, "quotes_one_pending")
}

func TestMigrationTables(t *testing.T) {
	tables, err := MigrationTables()
	require.NoError(t, err)
	assert.Equal(t, []string{
		"bays", "bookings", "service_orders", "order_state_events",
		"tasks", "task_assignments", "task_timeline", "quotes",
	}, tables)
}
