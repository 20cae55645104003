package commands_test

import (
	"bytes"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/beesaferoot/tenantly/internal/migration"
	"github.com/beesaferoot/tenantly/internal/migration/commands"
)

func testOpener(t *testing.T) commands.DBOpener {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	return func(*cobra.Command) (*gorm.DB, error) { return db, nil }
}

func run(t *testing.T, open commands.DBOpener, args ...string) (string, error) {
	cmd := commands.MigrateCmd(open)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestInitCmd(t *testing.T) {
	cmd := commands.InitCmd(nil)
	assert.Equal(t, "init", cmd.Use)
	assert.Equal(t, "Initialize migration tracking table in the database", cmd.Short)
}

func TestUpCmd(t *testing.T) {
	cmd := commands.UpCmd(nil)
	assert.Equal(t, "up", cmd.Use)
	assert.Equal(t, "Apply all pending migrations", cmd.Short)
	assert.NotNil(t, cmd.Flags().Lookup("dry-run"))
}

func TestDownCmd(t *testing.T) {
	cmd := commands.DownCmd(nil)
	assert.Equal(t, "down", cmd.Use)
	assert.Equal(t, "Revert the last migration", cmd.Short)
}

func TestStatusCmd(t *testing.T) {
	cmd := commands.StatusCmd(nil)
	assert.Equal(t, "status", cmd.Use)
	assert.Equal(t, "Show status of all migrations", cmd.Short)
}

func TestHistoryCmd(t *testing.T) {
	cmd := commands.HistoryCmd(nil)
	assert.Equal(t, "history", cmd.Use)
	assert.Equal(t, "Show migration history", cmd.Short)
}

func TestCheckCmd(t *testing.T) {
	cmd := commands.CheckCmd(nil)
	assert.Equal(t, "check", cmd.Use)
	assert.Equal(t, "Compare applied migrations with the live schema", cmd.Short)
}

func TestMigrateWorkflow(t *testing.T) {
	open := testOpener(t)
	schema := migration.SchemaMigrations()

	out, err := run(t, open, "init")
	require.NoError(t, err)
	assert.Contains(t, out, "initialized")

	out, err = run(t, open, "history")
	require.NoError(t, err)
	assert.Contains(t, out, "No migrations have been applied yet.")

	out, err = run(t, open, "up", "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "Pending migrations:")
	assert.Contains(t, out, schema[0].Name)

	out, err = run(t, open, "up")
	require.NoError(t, err)
	assert.Contains(t, out, "Successfully applied migration: "+schema[len(schema)-1].Name)

	out, err = run(t, open, "up")
	require.NoError(t, err)
	assert.Contains(t, out, "No pending migrations.")

	out, err = run(t, open, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Applied")
	assert.NotContains(t, out, "Pending")

	out, err = run(t, open, "check")
	require.NoError(t, err)
	assert.Contains(t, out, "Schema matches applied migrations.")

	out, err = run(t, open, "down")
	require.NoError(t, err)
	assert.Contains(t, out, "Successfully reverted migration: "+schema[len(schema)-1].Name)

	out, err = run(t, open, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Pending")
}
