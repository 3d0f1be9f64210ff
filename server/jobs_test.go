package server

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wkbook/phonebook/server/models"
	"github.com/wkbook/phonebook/shared"
)

func TestRestoreSqliteBackupIsNoopWhenDisabled(t *testing.T) {
	err := restoreSqliteBackup(shared.GoogleConfig{}, t.TempDir())
	assert.Nil(t, err)
}

func TestRestoreSqliteBackupKeepsExistingDb(t *testing.T) {
	rootDir := t.TempDir()

	dbFilePath, err := models.DbFilePath(rootDir)
	require.Nil(t, err)
	require.Nil(t, os.WriteFile(dbFilePath, []byte("local db"), 0600))

	config := shared.GoogleConfig{
		Storage: shared.StorageConfig{
			Bucket:                    "phonebook",
			Prefix:                    "prod",
			SqliteBackupSchedule:      "*/30 * * * *",
			EnableSqliteBackupAndSync: true,
		},
	}

	// the local db wins, no storage client is ever built
	err = restoreSqliteBackup(config, rootDir)
	assert.Nil(t, err)

	content, err := os.ReadFile(dbFilePath)
	require.Nil(t, err)
	assert.Equal(t, "local db", string(content))
}
