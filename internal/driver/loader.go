package driver

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"ferrite/internal/ir"
	"ferrite/internal/modfile"
)

// CacheLoader resolves module names against serialized module caches on
// disk. It implements sema.Loader.
type CacheLoader struct {
	// Dirs are searched in order; the first hit wins.
	Dirs []string
}

// Load materializes the named module into tbl from the first cache file
// found on the search path.
func (l *CacheLoader) Load(tbl *ir.Table, name string) (ir.SymbolID, error) {
	for _, dir := range l.Dirs {
		path := filepath.Join(dir, name+modfile.Ext)
		id, err := modfile.Load(tbl, path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return ir.NoSymbolID, fmt.Errorf("module cache %s: %w", path, err)
		}
		return id, nil
	}
	return ir.NoSymbolID, fmt.Errorf("module %q not found on module path", name)
}
