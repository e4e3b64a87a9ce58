// Package archive keeps a rotated set of compressed state-file backups next
// to the live snapshot. The live file stays plain JSON for easy inspection;
// backups are zstd so a day of history costs almost nothing.
package archive

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
)

const backupSuffix = ".json.zst"

// Rotator writes at most one backup per interval and prunes old ones.
type Rotator struct {
	dir      string
	interval time.Duration
	keep     int

	lastBackup time.Time
}

func NewRotator(dir string, interval time.Duration, keep int) *Rotator {
	r := &Rotator{dir: dir, interval: interval, keep: keep}
	if ts, ok := latestBackupTime(dir); ok {
		r.lastBackup = ts
	}
	return r
}

// Offer archives the serialized state if the last backup is older than the
// rotation interval. It returns the backup path when one was written.
func (r *Rotator) Offer(state []byte, now time.Time) (string, error) {
	if now.Sub(r.lastBackup) < r.interval {
		return "", nil
	}
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(r.dir, fmt.Sprintf("state-%d%s", now.Unix(), backupSuffix))
	if err := writeCompressed(path, state); err != nil {
		return "", err
	}
	r.lastBackup = now
	r.prune()
	return path, nil
}

func writeCompressed(path string, b []byte) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		_ = f.Close()
		return err
	}
	if _, err := enc.Write(b); err != nil {
		_ = enc.Close()
		_ = f.Close()
		return err
	}
	if err := enc.Close(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// ReadBackup decompresses one backup file.
func ReadBackup(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return dec.DecodeAll(raw, nil)
}

func (r *Rotator) prune() {
	names := backupNames(r.dir)
	if len(names) <= r.keep {
		return
	}
	// Oldest first; names embed unix timestamps so lexical order works for
	// equal-width stamps, sort numerically anyway.
	sort.Slice(names, func(i, j int) bool { return backupStamp(names[i]) < backupStamp(names[j]) })
	for _, n := range names[:len(names)-r.keep] {
		_ = os.Remove(filepath.Join(r.dir, n))
	}
}

func backupNames(dir string) []string {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range ents {
		if e.IsDir() || !strings.HasSuffix(e.Name(), backupSuffix) {
			continue
		}
		names = append(names, e.Name())
	}
	return names
}

func backupStamp(name string) int64 {
	s := strings.TrimSuffix(strings.TrimPrefix(name, "state-"), backupSuffix)
	v, _ := strconv.ParseInt(s, 10, 64)
	return v
}

func latestBackupTime(dir string) (time.Time, bool) {
	var best int64
	for _, n := range backupNames(dir) {
		if ts := backupStamp(n); ts > best {
			best = ts
		}
	}
	if best == 0 {
		return time.Time{}, false
	}
	return time.Unix(best, 0), true
}
