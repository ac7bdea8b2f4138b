package checkpoints

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

const checkpointDirPrefix = "checkpoint_"

// Registry tracks the checkpoint directories under a root, capped at a
// maximum live count. It assigns paths and decides evictions; the
// caller performs the filesystem work. Constructing a registry over an
// existing root adopts the checkpoints already there, so a resumed run
// keeps rotating the same directories.
type Registry struct {
	dir               string
	maxNumCheckpoints int
	checkpoints       map[uint64]string
}

func NewRegistry(dir string, maxNumCheckpoints int) (*Registry, error) {
	if maxNumCheckpoints < 1 {
		return nil, errors.Errorf("maxNumCheckpoints must be at least 1, got %d", maxNumCheckpoints)
	}

	r := &Registry{
		dir:               dir,
		maxNumCheckpoints: maxNumCheckpoints,
		checkpoints:       make(map[uint64]string),
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return r, nil
		}
		return nil, errors.Wrapf(err, "failed to scan checkpoint directory %s", dir)
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		// Orphaned staging directories and unrelated names are ignored.
		seq, ok := parseCheckpointDirName(entry.Name())
		if !ok {
			continue
		}
		r.checkpoints[seq] = filepath.Join(dir, entry.Name())
	}
	return r, nil
}

func parseCheckpointDirName(name string) (uint64, bool) {
	if !strings.HasPrefix(name, checkpointDirPrefix) {
		return 0, false
	}
	seq, err := strconv.ParseUint(strings.TrimPrefix(name, checkpointDirPrefix), 10, 64)
	if err != nil {
		return 0, false
	}
	return seq, true
}

func (r *Registry) checkpointPath(seq uint64) string {
	return filepath.Join(r.dir, fmt.Sprintf("%s%d", checkpointDirPrefix, seq))
}

func (r *Registry) Dir() string {
	return r.dir
}

func (r *Registry) Count() int {
	return len(r.checkpoints)
}

// Add registers checkpoint seq and returns the directory it must be
// written to. When the registry is at capacity the oldest entry is
// dropped and returned so the caller can delete it.
func (r *Registry) Add(seq uint64) (newPath string, shouldRemoveOld bool, oldPath string, err error) {
	if _, exists := r.checkpoints[seq]; exists {
		return "", false, "", errors.Errorf("checkpoint %d is already registered", seq)
	}

	if len(r.checkpoints) >= r.maxNumCheckpoints {
		oldest, ok := r.oldestSeq()
		if ok {
			oldPath = r.checkpoints[oldest]
			delete(r.checkpoints, oldest)
			shouldRemoveOld = true
		}
	}

	newPath = r.checkpointPath(seq)
	r.checkpoints[seq] = newPath
	return newPath, shouldRemoveOld, oldPath, nil
}

// TryGetLatest returns the path of the highest-numbered checkpoint.
func (r *Registry) TryGetLatest() (string, bool) {
	latest, ok := r.latestSeq()
	if !ok {
		return "", false
	}
	return r.checkpoints[latest], true
}

func (r *Registry) oldestSeq() (uint64, bool) {
	var oldest uint64
	found := false
	for seq := range r.checkpoints {
		if !found || seq < oldest {
			oldest = seq
			found = true
		}
	}
	return oldest, found
}

func (r *Registry) latestSeq() (uint64, bool) {
	var latest uint64
	found := false
	for seq := range r.checkpoints {
		if !found || seq > latest {
			latest = seq
			found = true
		}
	}
	return latest, found
}
