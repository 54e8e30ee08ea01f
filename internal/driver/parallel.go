package driver

import (
	"context"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"ferrite/internal/diag"
	"ferrite/internal/observ"
	"ferrite/internal/source"
)

// listSourceFiles returns every source file under dir, sorted for a
// deterministic processing order.
func listSourceFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(path, SourceExt) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// CheckDir checks every source file under dir, up to jobs files in
// parallel (GOMAXPROCS when jobs <= 0). Each file gets its own table
// and bag; result order matches the sorted file order.
func (p *Pipeline) CheckDir(ctx context.Context, dir string, jobs int) (*source.FileSet, []CheckResult, error) {
	files, err := listSourceFiles(dir)
	if err != nil {
		return nil, nil, err
	}
	fset := source.NewFileSet()
	if len(files) == 0 {
		return fset, nil, nil
	}

	// Preload sequentially; the file set is not safe for concurrent
	// writes. Load failures surface as per-file diagnostics below.
	fileIDs := make(map[string]source.FileID, len(files))
	loadErrors := make(map[string]error)
	for _, path := range files {
		id, err := fset.Load(path)
		if err != nil {
			loadErrors[path] = err
			continue
		}
		fileIDs[path] = id
	}

	// Each goroutine writes only its own index, so no mutex is needed.
	results := make([]CheckResult, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.jobLimit(jobs, len(files)))

	for i, path := range files {
		i, path := i, path
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}

			bag := diag.NewBag(p.maxDiagnostics())
			res := CheckResult{Path: path, Bag: bag}

			if loadErr, failed := loadErrors[path]; failed {
				bag.Add(diag.NewError(diag.IOLoadFileError, source.Span{},
					"failed to load file: "+loadErr.Error()))
				results[i] = res
				return nil
			}

			fileID := fileIDs[path]
			res.FileID = fileID
			tm := observ.NewTimer()
			parse := tm.Begin("parse")
			unit, err := p.parse(gctx, fset.Get(fileID), bag)
			tm.End(parse, "")
			if err != nil {
				return err
			}
			res.Table, res.OK = p.checkUnit(unit, bag, tm)
			bag.Sort()
			bag.Dedup()
			res.Timing = tm.Report()
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return fset, results, err
	}
	return fset, results, nil
}
