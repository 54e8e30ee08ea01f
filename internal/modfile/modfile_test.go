package modfile

import (
	"path/filepath"
	"testing"

	"ferrite/internal/ast"
	"ferrite/internal/config"
	"ferrite/internal/diag"
	"ferrite/internal/ir"
	"ferrite/internal/sema"
	"ferrite/internal/verify"
)

func buildModule(t *testing.T, units ...ast.ProgramUnit) *ir.Table {
	t.Helper()
	bag := diag.NewBag(64)
	tbl := ir.NewTable(ir.Hints{})
	opts := config.Default()
	opts.ImplicitTyping = true
	b := sema.New(tbl, diag.BagReporter{Bag: bag}, opts, nil, nil)
	if err := b.Build(&ast.TranslationUnit{Units: units}); err != nil {
		t.Fatalf("sema: %v (%v)", err, bag.Items())
	}
	return tbl
}

func geometryModule(t *testing.T) *ir.Table {
	t.Helper()
	return buildModule(t, &ast.Module{
		Name: "geometry",
		Decls: []ast.Decl{
			&ast.EntityDecl{Type: ast.TypeSpec{Base: ast.TypeReal},
				Attrs: ast.DeclAttrs{Parameter: true},
				Items: []ast.Entity{{Name: "pi", Init: &ast.RealLit{Value: 3.14159}}}},
			&ast.DerivedType{Name: "point", Members: []*ast.EntityDecl{
				{Type: ast.TypeSpec{Base: ast.TypeReal}, Items: []ast.Entity{{Name: "x"}, {Name: "y"}}},
			}},
		},
		Contains: []ast.ProgramUnit{
			&ast.Procedure{
				Name:       "norm",
				IsFunction: true,
				Args:       []ast.Arg{{Name: "p"}},
				ReturnType: &ast.TypeSpec{Base: ast.TypeReal},
				Decls: []ast.Decl{
					&ast.EntityDecl{Type: ast.TypeSpec{Base: ast.TypeDerived, Name: "point"},
						Attrs: ast.DeclAttrs{Intent: ast.IntentIn},
						Items: []ast.Entity{{Name: "p"}}},
				},
			},
		},
	})
}

func TestRoundTrip(t *testing.T) {
	src := geometryModule(t)
	mod := src.Lookup(src.Root, "geometry")

	payload, err := Flatten(src, mod)
	if err != nil {
		t.Fatalf("flatten: %v", err)
	}
	if payload.Module != "geometry" {
		t.Fatalf("payload module = %q", payload.Module)
	}

	dst := ir.NewTable(ir.Hints{})
	loaded, err := Materialize(dst, payload)
	if err != nil {
		t.Fatalf("materialize: %v", err)
	}
	modSym := dst.Symbols.Get(loaded)
	if modSym.Kind != ir.SymbolModule || modSym.Name != "geometry" {
		t.Fatalf("loaded symbol is %v %q", modSym.Kind, modSym.Name)
	}

	pi := dst.Symbols.Get(dst.Lookup(modSym.Symtab, "pi"))
	if pi == nil || pi.Kind != ir.SymbolVariable {
		t.Fatalf("pi not restored")
	}
	if pi.Var.Storage != ir.StorageParameter {
		t.Fatalf("pi storage = %v", pi.Var.Storage)
	}
	if pi.Var.Value == nil || pi.Var.Value.Real != 3.14159 {
		t.Fatalf("pi value not restored: %+v", pi.Var.Value)
	}

	point := dst.Symbols.Get(dst.Lookup(modSym.Symtab, "point"))
	if point == nil || point.Kind != ir.SymbolStruct {
		t.Fatalf("point not restored")
	}
	if len(point.Str.Members) != 2 || point.Str.Members[0] != "x" {
		t.Fatalf("point members = %v", point.Str.Members)
	}

	normID := dst.Lookup(modSym.Symtab, "norm")
	norm := dst.Symbols.Get(normID)
	if norm == nil || norm.Kind != ir.SymbolFunction {
		t.Fatalf("norm not restored")
	}
	if len(norm.Fn.Args) != 1 || norm.Fn.Return == nil {
		t.Fatalf("norm signature not restored: %+v", norm.Fn)
	}
	argType := norm.Fn.Args[0].Type
	if argType == nil || argType.Kind != ir.TStruct {
		t.Fatalf("norm arg type = %+v", argType)
	}
	if got := dst.Symbols.Get(dst.PastExternal(argType.Decl)); got == nil || got.Name != "point" {
		t.Fatalf("norm arg type declaration not repointed")
	}

	bag := diag.NewBag(64)
	if ok := verify.Run(dst, diag.BagReporter{Bag: bag}); !ok {
		t.Fatalf("loaded table fails verification: %v", bag.Items())
	}
}

func TestSaveAndLoad(t *testing.T) {
	src := geometryModule(t)
	mod := src.Lookup(src.Root, "geometry")

	path := filepath.Join(t.TempDir(), "geometry"+Ext)
	if err := Save(src, mod, path); err != nil {
		t.Fatalf("save: %v", err)
	}

	dst := ir.NewTable(ir.Hints{})
	loaded, err := Load(dst, path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if dst.Symbols.Get(loaded).Name != "geometry" {
		t.Fatalf("loaded %q", dst.Symbols.Get(loaded).Name)
	}

	// Loading the same module twice is an error.
	if _, err := Load(dst, path); err == nil {
		t.Fatalf("second load of the same module succeeded")
	}
}

func TestSchemaMismatchRejected(t *testing.T) {
	dst := ir.NewTable(ir.Hints{})
	_, err := Materialize(dst, &Payload{Schema: schemaVersion + 1})
	if err == nil {
		t.Fatalf("future schema accepted")
	}
}

func TestFlattenRejectsNonModule(t *testing.T) {
	tbl := buildModule(t, &ast.Procedure{Name: "standalone"})
	fn := tbl.Lookup(tbl.Root, "standalone")
	if _, err := Flatten(tbl, fn); err == nil {
		t.Fatalf("flattening a procedure succeeded")
	}
}
