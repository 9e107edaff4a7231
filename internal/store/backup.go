package store

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// minBackupSize skips backups of empty or freshly-created store files.
const minBackupSize = 1024

// BackupBefore copies the store file to a sibling backups/ directory with a
// timestamped name, keeping only the newest retention copies. Returns the
// backup path, or "" when no backup was needed.
func BackupBefore(path string, retention int) (string, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if info.Size() < minBackupSize {
		return "", nil
	}

	dir := filepath.Join(filepath.Dir(path), "backups")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	base := filepath.Base(path)
	ext := filepath.Ext(base)
	name := strings.TrimSuffix(base, ext)
	stamp := time.Now().UTC().Format("20060102_150405")
	dest := filepath.Join(dir, fmt.Sprintf("%s_%s%s", name, stamp, ext))

	if err := copyFile(path, dest); err != nil {
		return "", err
	}
	if err := pruneBackups(dir, name, ext, retention); err != nil {
		return "", err
	}
	return dest, nil
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

// pruneBackups removes all but the newest retention backups for this store.
// Timestamped names sort chronologically, so a lexical sort suffices.
func pruneBackups(dir, name, ext string, retention int) error {
	if retention <= 0 {
		retention = 5
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	var backups []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasPrefix(e.Name(), name+"_") && strings.HasSuffix(e.Name(), ext) {
			backups = append(backups, e.Name())
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(backups)))
	for _, stale := range backups[min(retention, len(backups)):] {
		if err := os.Remove(filepath.Join(dir, stale)); err != nil {
			return err
		}
	}
	return nil
}
