package driver

import (
	"context"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"ferrite/internal/diag"
	"ferrite/internal/ir"
	"ferrite/internal/modfile"
	"ferrite/internal/observ"
	"ferrite/internal/source"
	"ferrite/internal/verify"
)

// VerifyCache loads one serialized module interface and runs the
// verifier over it. Load failures land in the bag, not the error.
func (p *Pipeline) VerifyCache(path string) CheckResult {
	bag := diag.NewBag(p.maxDiagnostics())
	res := CheckResult{Path: path, Bag: bag}

	tm := observ.NewTimer()
	tbl := ir.NewTable(ir.Hints{})
	load := tm.Begin("load")
	_, err := modfile.Load(tbl, path)
	tm.End(load, "")
	if err != nil {
		bag.Add(diag.NewError(diag.IOModuleCacheError, source.Span{},
			"failed to load module cache: "+err.Error()))
		res.Timing = tm.Report()
		return res
	}
	res.Table = tbl
	vphase := tm.Begin("verify")
	res.OK = verify.Run(tbl, diag.BagReporter{Bag: bag}) && !bag.HasErrors()
	tm.End(vphase, "")
	bag.Sort()
	bag.Dedup()
	res.Timing = tm.Report()
	return res
}

// VerifyCacheDir verifies every module cache under dir, up to jobs
// files in parallel.
func (p *Pipeline) VerifyCacheDir(ctx context.Context, dir string, jobs int) ([]CheckResult, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(path, modfile.Ext) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	if len(files) == 0 {
		return nil, nil
	}

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
			results[i] = p.VerifyCache(path)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}
