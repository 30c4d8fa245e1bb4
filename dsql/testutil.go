package dsql

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/luno/docstream"
)

// TestCheckpointsTable provides a helper function to test checkpoint tables.
func TestCheckpointsTable(t *testing.T, dbc *sql.DB, table CheckpointsTable) {
	ctx := context.Background()
	scope := docstream.Scope{Database: "test_db", Collection: "test_coll"}
	updated := docstream.Position("8263a1b2c3000000012b022c0100296e5a1004")

	pos, err := table.GetPosition(ctx, dbc, scope)
	assert.NoError(t, err)
	assert.Equal(t, docstream.Position(""), pos)

	assert.NoError(t, table.SetPosition(ctx, dbc, scope, updated))

	pos, err = table.GetPosition(ctx, dbc, scope)
	assert.NoError(t, err)
	assert.Equal(t, updated, pos)

	assert.NoError(t, table.ResetPosition(ctx, dbc, scope))

	pos, err = table.GetPosition(ctx, dbc, scope)
	assert.NoError(t, err)
	assert.Equal(t, docstream.Position(""), pos)
}
