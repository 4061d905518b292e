package checkpoint

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ErrSnapshotMissing is returned when no dumped snapshot can be found.
var ErrSnapshotMissing = errors.New("snapshot not found")

// TimestampLayout formats archive timestamps as YYYYMMDD-HHMMSS.
const TimestampLayout = "20060102-150405"

// Snapshot is a handle to a dumped statistics snapshot.
type Snapshot struct {
	Path string
}

// Sink locates dumped snapshots and moves them out of the way of the next
// dump.
type Sink interface {
	// Location describes where snapshots are expected, for messages.
	Location() string
	// Latest returns the most recent snapshot, or ErrSnapshotMissing.
	Latest() (Snapshot, error)
	// Take moves s to a file called name and returns its new path.
	Take(s Snapshot, name string) (string, error)
}

// ArchiveName returns the name a snapshot is archived under.
func ArchiveName(t time.Time, elapsed uint64) string {
	return fmt.Sprintf("stats_%s_cycle_%d.txt", t.Format(TimestampLayout), elapsed)
}

// FileSink is a Sink over a fixed file that every dump writes to.
type FileSink struct {
	dir  string
	name string
}

// NewFileSink creates a sink for <dir>/<name>.
func NewFileSink(dir, name string) *FileSink {
	return &FileSink{dir: dir, name: name}
}

// Path returns the path dumps are written to.
func (s *FileSink) Path() string {
	return filepath.Join(s.dir, s.name)
}

// Location returns the directory of the sink.
func (s *FileSink) Location() string {
	return s.dir
}

// Latest returns the current dump file.
func (s *FileSink) Latest() (Snapshot, error) {
	path := s.Path()

	_, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrSnapshotMissing, path)
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to stat snapshot: %w", err)
	}

	return Snapshot{Path: path}, nil
}

// Take renames the snapshot into the sink directory. An existing file is
// never overwritten: a "-<n>" suffix is added to the name instead.
func (s *FileSink) Take(snap Snapshot, name string) (string, error) {
	dest, err := s.freePath(name)
	if err != nil {
		return "", err
	}

	if err := os.Rename(snap.Path, dest); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrSnapshotMissing, snap.Path)
		}
		return "", fmt.Errorf("failed to archive snapshot: %w", err)
	}

	return dest, nil
}

func (s *FileSink) freePath(name string) (string, error) {
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)

	dest := filepath.Join(s.dir, name)
	for n := 1; ; n++ {
		_, err := os.Stat(dest)
		if errors.Is(err, os.ErrNotExist) {
			return dest, nil
		}
		if err != nil {
			return "", fmt.Errorf("failed to stat archive path: %w", err)
		}
		dest = filepath.Join(s.dir, fmt.Sprintf("%s-%d%s", base, n, ext))
	}
}
