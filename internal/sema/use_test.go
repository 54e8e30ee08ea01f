package sema

import (
	"testing"

	"ferrite/internal/ast"
	"ferrite/internal/config"
	"ferrite/internal/diag"
	"ferrite/internal/ir"
)

func realProc(name, arg string) *ast.Procedure {
	return &ast.Procedure{
		Name:       name,
		IsFunction: true,
		Args:       []ast.Arg{{Name: arg}},
		ReturnType: &ast.TypeSpec{Base: ast.TypeReal},
		Decls: []ast.Decl{
			entityDecl(ast.TypeSpec{Base: ast.TypeReal}, ast.DeclAttrs{Intent: ast.IntentIn}, arg),
		},
	}
}

func TestUseWildcardAndOnly(t *testing.T) {
	b, bag := testBuilder(t, config.Default())
	tu := &ast.TranslationUnit{Units: []ast.ProgramUnit{
		&ast.Module{
			Name: "provider",
			Decls: []ast.Decl{
				entityDecl(intSpec(), ast.DeclAttrs{}, "visible"),
				entityDecl(intSpec(), ast.DeclAttrs{Access: ast.AccessPrivate}, "hidden"),
			},
		},
		&ast.Module{
			Name: "consumer",
			Uses: []*ast.Use{{Module: "provider"}},
		},
		&ast.Module{
			Name: "selective",
			Uses: []*ast.Use{{Module: "provider", Only: []ast.Rename{{Local: "alias_v", Remote: "visible"}}}},
		},
	}}
	if err := b.Build(tu); err != nil {
		t.Fatalf("Build: %v (%v)", err, bag.Items())
	}
	tbl := b.Table()
	provider := tbl.Symbols.Get(tbl.Lookup(tbl.Root, "provider"))
	consumer := tbl.Symbols.Get(tbl.Lookup(tbl.Root, "consumer"))

	ext := tbl.Symbols.Get(tbl.Lookup(consumer.Symtab, "visible"))
	if ext == nil || ext.Kind != ir.SymbolExternal {
		t.Fatalf("wildcard import missing")
	}
	if ext.Ext.ModuleName != "provider" || ext.Ext.OriginalName != "visible" {
		t.Fatalf("alias metadata wrong: %+v", ext.Ext)
	}
	if ext.Ext.Target != tbl.Lookup(provider.Symtab, "visible") {
		t.Fatalf("alias points at wrong symbol")
	}
	if tbl.Lookup(consumer.Symtab, "hidden").IsValid() {
		t.Fatalf("private symbol leaked through wildcard import")
	}

	selective := tbl.Symbols.Get(tbl.Lookup(tbl.Root, "selective"))
	if !tbl.Lookup(selective.Symtab, "alias_v").IsValid() {
		t.Fatalf("only-list rename missing")
	}
	if tbl.Lookup(selective.Symtab, "visible").IsValid() {
		t.Fatalf("only-list imported more than requested")
	}
}

func TestUseMissingSymbol(t *testing.T) {
	b, bag := testBuilder(t, config.Default())
	tu := &ast.TranslationUnit{Units: []ast.ProgramUnit{
		&ast.Module{Name: "provider"},
		&ast.Module{Name: "consumer", Uses: []*ast.Use{
			{Module: "provider", Only: []ast.Rename{{Local: "nope"}}},
		}},
	}}
	if err := b.Build(tu); err == nil {
		t.Fatalf("expected abort")
	}
	found := false
	for _, d := range bag.Items() {
		if d.Code == diag.SemaUseSymbolNotFound {
			found = true
		}
	}
	if !found {
		t.Fatalf("missing diagnostic: %v", bag.Items())
	}
}

// Importing an operator into a scope that already defines the same
// operator merges both candidate lists instead of shadowing.
func TestOperatorCandidateMerge(t *testing.T) {
	b, bag := testBuilder(t, config.Default())
	tu := &ast.TranslationUnit{Units: []ast.ProgramUnit{
		&ast.Module{
			Name: "lhs",
			Decls: []ast.Decl{
				&ast.InterfaceBlock{Kind: ast.InterfaceOperator, Name: "+", ModuleProcs: []string{"add_a"}},
			},
			Contains: []ast.ProgramUnit{realProc("add_a", "x")},
		},
		&ast.Module{
			Name: "rhs",
			Uses: []*ast.Use{{Module: "lhs", Only: []ast.Rename{{Local: "+", Operator: true}}}},
			Decls: []ast.Decl{
				&ast.InterfaceBlock{Kind: ast.InterfaceOperator, Name: "+", ModuleProcs: []string{"add_b"}},
			},
			Contains: []ast.ProgramUnit{realProc("add_b", "y")},
		},
	}}
	if err := b.Build(tu); err != nil {
		t.Fatalf("Build: %v (%v)", err, bag.Items())
	}
	tbl := b.Table()
	rhs := tbl.Symbols.Get(tbl.Lookup(tbl.Root, "rhs"))
	opID := tbl.Lookup(rhs.Symtab, "~+")
	if !opID.IsValid() {
		t.Fatalf("operator symbol missing in importing module")
	}
	op := tbl.Symbols.Get(tbl.PastExternal(opID))
	if op.Kind != ir.SymbolCustomOperator {
		t.Fatalf("kind = %v", op.Kind)
	}
	if len(op.Gen.Procs) != 2 {
		t.Fatalf("candidates = %d, want 2 (merged)", len(op.Gen.Procs))
	}
}

// A generic whose name collides with a specific procedure is kept under
// the reserved prefix while the specific keeps the plain name.
func TestGenericRenamedWhenShadowedBySpecific(t *testing.T) {
	b, bag := testBuilder(t, config.Default())
	tu := &ast.TranslationUnit{Units: []ast.ProgramUnit{
		&ast.Module{
			Name: "m",
			Decls: []ast.Decl{
				&ast.InterfaceBlock{Kind: ast.InterfaceNamed, Name: "solve", ModuleProcs: []string{"solve", "solve_banded"}},
			},
			Contains: []ast.ProgramUnit{
				realProc("solve", "x"),
				realProc("solve_banded", "y"),
			},
		},
	}}
	if err := b.Build(tu); err != nil {
		t.Fatalf("Build: %v (%v)", err, bag.Items())
	}
	tbl := b.Table()
	mod := tbl.Symbols.Get(tbl.Lookup(tbl.Root, "m"))
	plain := tbl.Symbols.Get(tbl.Lookup(mod.Symtab, "solve"))
	if plain.Kind != ir.SymbolFunction {
		t.Fatalf("plain name kind = %v, want the specific function", plain.Kind)
	}
	gen := tbl.Symbols.Get(tbl.Lookup(mod.Symtab, "~genericprocedure_solve"))
	if gen == nil || gen.Kind != ir.SymbolGenericProcedure {
		t.Fatalf("renamed generic missing")
	}
	if len(gen.Gen.Procs) != 2 {
		t.Fatalf("generic candidates = %d, want 2", len(gen.Gen.Procs))
	}
}
