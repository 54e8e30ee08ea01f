// Package driver orchestrates the resolution pipeline: parse a source
// file into an AST, build the symbol table, then verify the result. The
// parser is an external collaborator supplied as a ParseFunc; the
// driver owns file loading, module cache lookup and diagnostic
// aggregation.
package driver

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"ferrite/internal/ast"
	"ferrite/internal/config"
	"ferrite/internal/diag"
	"ferrite/internal/ir"
	"ferrite/internal/observ"
	"ferrite/internal/sema"
	"ferrite/internal/source"
	"ferrite/internal/verify"
)

// SourceExt is the conventional source file extension.
const SourceExt = ".fr"

// ParseFunc turns one loaded source file into a translation unit,
// reporting syntax diagnostics through rep.
type ParseFunc func(ctx context.Context, file *source.File, rep diag.Reporter) (*ast.TranslationUnit, error)

// Pipeline bundles the collaborators of one check run.
type Pipeline struct {
	Parse ParseFunc
	Opts  config.Options
	// MaxDiagnostics caps each file's bag.
	MaxDiagnostics int
	// ModulePath lists directories searched for serialized module
	// caches when SeparateCompilation is on.
	ModulePath []string
}

// CheckResult is the outcome of checking one file.
type CheckResult struct {
	Path   string
	FileID source.FileID
	Bag    *diag.Bag
	Table  *ir.Table
	// OK is true when parsing, resolution and verification all passed
	// without errors.
	OK bool
	// Timing holds per-phase durations.
	Timing observ.Report
}

// CheckFile runs the full pipeline over one path. The returned error
// covers driver-internal failures only; source-level problems land in
// the result's bag.
func (p *Pipeline) CheckFile(ctx context.Context, fset *source.FileSet, path string) (CheckResult, error) {
	bag := diag.NewBag(p.maxDiagnostics())
	res := CheckResult{Path: path, Bag: bag}
	tm := observ.NewTimer()

	load := tm.Begin("load")
	fileID, err := fset.Load(path)
	tm.End(load, "")
	if err != nil {
		bag.Add(diag.NewError(diag.IOLoadFileError, source.Span{},
			"failed to load file: "+err.Error()))
		res.Timing = tm.Report()
		return res, nil
	}
	res.FileID = fileID

	parse := tm.Begin("parse")
	unit, err := p.parse(ctx, fset.Get(fileID), bag)
	tm.End(parse, "")
	if err != nil {
		return res, err
	}
	res.Table, res.OK = p.checkUnit(unit, bag, tm)
	bag.Sort()
	bag.Dedup()
	res.Timing = tm.Report()
	return res, nil
}

// CheckSource checks an in-memory translation unit, for callers that
// already hold an AST.
func (p *Pipeline) CheckSource(unit *ast.TranslationUnit) CheckResult {
	bag := diag.NewBag(p.maxDiagnostics())
	res := CheckResult{Bag: bag}
	tm := observ.NewTimer()
	res.Table, res.OK = p.checkUnit(unit, bag, tm)
	bag.Sort()
	bag.Dedup()
	res.Timing = tm.Report()
	return res
}

func (p *Pipeline) checkUnit(unit *ast.TranslationUnit, bag *diag.Bag, tm *observ.Timer) (*ir.Table, bool) {
	if unit == nil {
		return nil, !bag.HasErrors()
	}
	tbl := ir.NewTable(ir.Hints{})
	rep := diag.BagReporter{Bag: bag}

	var loader sema.Loader
	if p.Opts.SeparateCompilation && len(p.ModulePath) > 0 {
		loader = &CacheLoader{Dirs: p.ModulePath}
	}

	resolve := tm.Begin("resolve")
	b := sema.New(tbl, rep, p.Opts, loader, nil)
	err := b.Build(unit)
	tm.End(resolve, fmt.Sprintf("%d units", len(unit.Units)))
	if err != nil {
		if !errors.Is(err, sema.ErrAbort) {
			bag.Add(diag.NewError(diag.SemaError, source.Span{}, err.Error()))
		}
		return tbl, false
	}
	vphase := tm.Begin("verify")
	ok := verify.Run(tbl, rep)
	tm.End(vphase, "")
	return tbl, ok && !bag.HasErrors()
}

func (p *Pipeline) parse(ctx context.Context, file *source.File, bag *diag.Bag) (*ast.TranslationUnit, error) {
	if p.Parse == nil {
		return nil, errors.New("driver: no parser configured")
	}
	return p.Parse(ctx, file, diag.BagReporter{Bag: bag})
}

func (p *Pipeline) maxDiagnostics() int {
	if p.MaxDiagnostics <= 0 {
		return 256
	}
	return p.MaxDiagnostics
}

func (p *Pipeline) jobLimit(jobs, files int) int {
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}
	if jobs > files {
		jobs = files
	}
	return jobs
}
