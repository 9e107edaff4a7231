package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBackupBeforeSkipsMissingAndTinyFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "clearbill.db")

	dest, err := BackupBefore(path, 5)
	require.NoError(t, err)
	require.Empty(t, dest)

	require.NoError(t, os.WriteFile(path, []byte("tiny"), 0o644))
	dest, err = BackupBefore(path, 5)
	require.NoError(t, err)
	require.Empty(t, dest)
}

func TestBackupBeforeCopiesAndPrunes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "clearbill.db")
	payload := make([]byte, minBackupSize)
	require.NoError(t, os.WriteFile(path, payload, 0o644))

	var last string
	for i := 0; i < 4; i++ {
		dest, err := BackupBefore(path, 2)
		require.NoError(t, err)
		require.NotEmpty(t, dest)
		if dest == last {
			// Same-second runs overwrite the same timestamped name.
			continue
		}
		last = dest
	}

	data, err := os.ReadFile(last)
	require.NoError(t, err)
	require.Len(t, data, len(payload))

	entries, err := os.ReadDir(filepath.Join(dir, "backups"))
	require.NoError(t, err)
	require.LessOrEqual(t, len(entries), 2)
}
