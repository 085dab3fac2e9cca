// Package registry builds model descriptor catalogs from configuration and
// from scanning a models directory, and can watch that directory for changes.
package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"modelmgrd/internal/common/fsutil"
	"modelmgrd/pkg/types"
)

// LoadDir scans a directory for *.gguf files and builds descriptors from
// filenames. The id is the full filename (including extension); the VRAM
// estimate comes from the artifact size. Other metadata stays empty and can
// be filled in by a config-declared descriptor with the same id.
func LoadDir(dir string) ([]types.ModelDescriptor, error) {
	base, err := fsutil.ExpandHome(dir)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("abs path: %w", err)
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	var models []types.ModelDescriptor
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(strings.ToLower(name), ".gguf") {
			continue
		}
		p := filepath.Join(abs, name)
		models = append(models, types.ModelDescriptor{
			ID:        name,
			Name:      name,
			Path:      p,
			EstVRAMMB: fsutil.FileSizeMB(p),
		})
	}
	return models, nil
}

// Merge combines config-declared descriptors with scanned ones. Declared
// descriptors win on id collisions; scanned-only artifacts are appended in
// scan order.
func Merge(declared, scanned []types.ModelDescriptor) []types.ModelDescriptor {
	out := make([]types.ModelDescriptor, 0, len(declared)+len(scanned))
	seen := make(map[string]bool, len(declared))
	for _, d := range declared {
		if d.ID == "" || seen[d.ID] {
			continue
		}
		seen[d.ID] = true
		out = append(out, d)
	}
	for _, s := range scanned {
		if seen[s.ID] {
			continue
		}
		seen[s.ID] = true
		out = append(out, s)
	}
	return out
}
