package driver

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ferrite/internal/ast"
	"ferrite/internal/config"
	"ferrite/internal/diag"
	"ferrite/internal/ir"
	"ferrite/internal/modfile"
	"ferrite/internal/sema"
	"ferrite/internal/source"
)

// stubParse maps each file to a canned translation unit: one module
// named after the file, with a duplicate declaration when the content
// says "broken".
func stubParse(_ context.Context, file *source.File, _ diag.Reporter) (*ast.TranslationUnit, error) {
	name := strings.TrimSuffix(filepath.Base(file.Path), SourceExt)
	mod := &ast.Module{Name: name}
	if strings.Contains(string(file.Content), "broken") {
		decl := &ast.EntityDecl{Type: ast.TypeSpec{Base: ast.TypeInteger},
			Items: []ast.Entity{{Name: "x"}}}
		mod.Decls = []ast.Decl{decl, decl}
	}
	return &ast.TranslationUnit{Units: []ast.ProgramUnit{mod}}, nil
}

func testPipeline() *Pipeline {
	opts := config.Default()
	opts.ImplicitTyping = true
	return &Pipeline{Parse: stubParse, Opts: opts, MaxDiagnostics: 64}
}

func TestCheckFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "alpha"+SourceExt)
	if err := os.WriteFile(path, []byte("module alpha\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	p := testPipeline()
	res, err := p.CheckFile(context.Background(), source.NewFileSet(), path)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !res.OK {
		t.Fatalf("clean file failed: %v", res.Bag.Items())
	}
	if res.Table == nil || !res.Table.Lookup(res.Table.Root, "alpha").IsValid() {
		t.Fatalf("module alpha not in table")
	}
}

func TestCheckFileLoadFailure(t *testing.T) {
	p := testPipeline()
	res, err := p.CheckFile(context.Background(), source.NewFileSet(), "/no/such/file.fr")
	if err != nil {
		t.Fatalf("load failure must be a diagnostic, got error %v", err)
	}
	if res.OK || res.Bag.Len() == 0 || res.Bag.Items()[0].Code != diag.IOLoadFileError {
		t.Fatalf("missing load diagnostic: %v", res.Bag.Items())
	}
}

func TestCheckDir(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, name+SourceExt), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write("aa", "module aa")
	write("bb", "broken")
	write("cc", "module cc")

	p := testPipeline()
	_, results, err := p.CheckDir(context.Background(), dir, 2)
	if err != nil {
		t.Fatalf("check dir: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("got %d results", len(results))
	}
	// Sorted order: aa, bb, cc.
	if !results[0].OK || results[1].OK || !results[2].OK {
		t.Fatalf("unexpected outcomes: %v %v %v", results[0].OK, results[1].OK, results[2].OK)
	}
	if results[1].Bag.Len() == 0 {
		t.Fatalf("broken file produced no diagnostics")
	}
}

func TestCacheLoaderResolvesUse(t *testing.T) {
	// Build and serialize a module in a first compilation.
	cacheDir := t.TempDir()
	{
		bag := diag.NewBag(64)
		tbl := ir.NewTable(ir.Hints{})
		opts := config.Default()
		b := sema.New(tbl, diag.BagReporter{Bag: bag}, opts, nil, nil)
		unit := &ast.TranslationUnit{Units: []ast.ProgramUnit{
			&ast.Module{Name: "constants", Decls: []ast.Decl{
				&ast.EntityDecl{Type: ast.TypeSpec{Base: ast.TypeReal},
					Attrs: ast.DeclAttrs{Parameter: true},
					Items: []ast.Entity{{Name: "tau", Init: &ast.RealLit{Value: 6.28}}}},
			}},
		}}
		if err := b.Build(unit); err != nil {
			t.Fatalf("sema: %v (%v)", err, bag.Items())
		}
		mod := tbl.Lookup(tbl.Root, "constants")
		if err := modfile.Save(tbl, mod, filepath.Join(cacheDir, "constants"+modfile.Ext)); err != nil {
			t.Fatalf("save: %v", err)
		}
	}

	// Second compilation uses the module without its source.
	opts := config.Default()
	opts.ImplicitTyping = true
	opts.SeparateCompilation = true
	p := &Pipeline{Parse: stubParse, Opts: opts, MaxDiagnostics: 64, ModulePath: []string{cacheDir}}
	res := p.CheckSource(&ast.TranslationUnit{Units: []ast.ProgramUnit{
		&ast.Program{Name: "main", Uses: []*ast.Use{{Module: "constants"}},
			Body: []ast.Stmt{
				&ast.Assign{Target: &ast.Ident{Name: "r"}, Value: &ast.Ident{Name: "tau"}},
			}},
	}})
	if !res.OK {
		t.Fatalf("separate compilation failed: %v", res.Bag.Items())
	}

	// Missing module stays an error.
	res = p.CheckSource(&ast.TranslationUnit{Units: []ast.ProgramUnit{
		&ast.Program{Name: "main", Uses: []*ast.Use{{Module: "nowhere"}}},
	}})
	if res.OK {
		t.Fatalf("unknown module resolved")
	}
}

func TestVerifyCache(t *testing.T) {
	dir := t.TempDir()
	{
		bag := diag.NewBag(64)
		tbl := ir.NewTable(ir.Hints{})
		b := sema.New(tbl, diag.BagReporter{Bag: bag}, config.Default(), nil, nil)
		unit := &ast.TranslationUnit{Units: []ast.ProgramUnit{&ast.Module{Name: "clean"}}}
		if err := b.Build(unit); err != nil {
			t.Fatalf("sema: %v", err)
		}
		mod := tbl.Lookup(tbl.Root, "clean")
		if err := modfile.Save(tbl, mod, filepath.Join(dir, "clean"+modfile.Ext)); err != nil {
			t.Fatalf("save: %v", err)
		}
	}
	if err := os.WriteFile(filepath.Join(dir, "mangled"+modfile.Ext), []byte("not msgpack"), 0o644); err != nil {
		t.Fatal(err)
	}

	p := testPipeline()
	results, err := p.VerifyCacheDir(context.Background(), dir, 0)
	if err != nil {
		t.Fatalf("verify dir: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results", len(results))
	}
	// Sorted order: clean, mangled.
	if !results[0].OK {
		t.Fatalf("clean cache failed: %v", results[0].Bag.Items())
	}
	if results[1].OK || results[1].Bag.Items()[0].Code != diag.IOModuleCacheError {
		t.Fatalf("mangled cache not flagged: %v", results[1].Bag.Items())
	}
}
