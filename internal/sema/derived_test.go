package sema

import (
	"testing"

	"ferrite/internal/ast"
	"ferrite/internal/config"
	"ferrite/internal/diag"
	"ferrite/internal/ir"
)

func TestDerivedTypeWithBoundProcedure(t *testing.T) {
	b, bag := testBuilder(t, config.Default())
	tu := &ast.TranslationUnit{Units: []ast.ProgramUnit{
		&ast.Module{
			Name: "shapes",
			Decls: []ast.Decl{
				&ast.DerivedType{
					Name: "circle",
					Members: []*ast.EntityDecl{
						entityDecl(realSpec(), ast.DeclAttrs{}, "radius"),
					},
					Bound: []*ast.BoundProc{
						{Name: "area", Implementation: "circle_area"},
					},
				},
			},
			Contains: []ast.ProgramUnit{
				&ast.Procedure{
					Name:       "circle_area",
					IsFunction: true,
					Args:       []ast.Arg{{Name: "self"}},
					ReturnType: &ast.TypeSpec{Base: ast.TypeReal},
					Decls: []ast.Decl{
						entityDecl(ast.TypeSpec{Base: ast.TypeDerived, Name: "circle"},
							ast.DeclAttrs{Intent: ast.IntentIn}, "self"),
					},
				},
			},
		},
	}}
	if err := b.Build(tu); err != nil {
		t.Fatalf("Build: %v (%v)", err, bag.Items())
	}
	tbl := b.Table()
	mod := tbl.Symbols.Get(tbl.Lookup(tbl.Root, "shapes"))
	circle := tbl.Symbols.Get(tbl.Lookup(mod.Symtab, "circle"))
	if circle.Kind != ir.SymbolStruct {
		t.Fatalf("circle kind = %v", circle.Kind)
	}
	if len(circle.Str.Members) != 1 || circle.Str.Members[0] != "radius" {
		t.Fatalf("members = %v", circle.Str.Members)
	}
	area := tbl.Symbols.Get(tbl.Lookup(circle.Symtab, "area"))
	if area == nil || area.Kind != ir.SymbolMethod {
		t.Fatalf("bound procedure not declared in type scope")
	}
	impl := tbl.Symbols.Get(area.Mth.Proc)
	if impl.Name != "circle_area" {
		t.Fatalf("implementation = %q", impl.Name)
	}
}

func TestBoundProcedurePassTypeMismatch(t *testing.T) {
	b, bag := testBuilder(t, config.Default())
	tu := &ast.TranslationUnit{Units: []ast.ProgramUnit{
		&ast.Module{
			Name: "shapes",
			Decls: []ast.Decl{
				&ast.DerivedType{
					Name: "circle",
					Members: []*ast.EntityDecl{
						entityDecl(realSpec(), ast.DeclAttrs{}, "radius"),
					},
					Bound: []*ast.BoundProc{{Name: "area", Implementation: "bad_area"}},
				},
			},
			Contains: []ast.ProgramUnit{
				// First argument is a plain real, not the bound type.
				realProc("bad_area", "x"),
			},
		},
	}}
	if err := b.Build(tu); err == nil {
		t.Fatalf("expected abort")
	}
	found := false
	for _, d := range bag.Items() {
		if d.Code == diag.SemaPassArgTypeMismatch {
			found = true
		}
	}
	if !found {
		t.Fatalf("missing pass-arg diagnostic: %v", bag.Items())
	}
}

func TestExtendsUnknownParent(t *testing.T) {
	b, bag := testBuilder(t, config.Default())
	tu := &ast.TranslationUnit{Units: []ast.ProgramUnit{
		&ast.Module{Name: "m", Decls: []ast.Decl{
			&ast.DerivedType{Name: "child", Extends: "ghost"},
		}},
	}}
	if err := b.Build(tu); err == nil {
		t.Fatalf("expected abort")
	}
	found := false
	for _, d := range bag.Items() {
		if d.Code == diag.SemaUnknownParentType {
			found = true
		}
	}
	if !found {
		t.Fatalf("missing unknown-parent diagnostic: %v", bag.Items())
	}
}

func TestEnumClassificationAndReexposure(t *testing.T) {
	b, bag := testBuilder(t, config.Default())
	tu := &ast.TranslationUnit{Units: []ast.ProgramUnit{
		&ast.Module{Name: "colors", Decls: []ast.Decl{
			&ast.EnumDecl{Items: []ast.Enumerator{
				{Name: "red"},
				{Name: "green"},
				{Name: "blue"},
			}},
			&ast.EnumDecl{Items: []ast.Enumerator{
				{Name: "ok", Value: &ast.IntLit{Value: 0}},
				{Name: "warn", Value: &ast.IntLit{Value: 10}},
				{Name: "fail", Value: &ast.IntLit{Value: 10}},
			}},
		}},
	}}
	if err := b.Build(tu); err != nil {
		t.Fatalf("Build: %v (%v)", err, bag.Items())
	}
	tbl := b.Table()
	mod := tbl.Symbols.Get(tbl.Lookup(tbl.Root, "colors"))

	// Members resolve unqualified through aliases in the module scope.
	green := tbl.Symbols.Get(tbl.Lookup(mod.Symtab, "green"))
	if green == nil || green.Kind != ir.SymbolExternal {
		t.Fatalf("enum member not re-exposed")
	}
	member := tbl.Symbols.Get(green.Ext.Target)
	if v, ok := member.Var.Value.ConstInt(); !ok || v != 1 {
		t.Fatalf("green value = %v, want 1", member.Var.Value)
	}

	var kinds []ir.EnumValueKind
	for _, s := range tbl.Symbols.Data() {
		if s.Kind == ir.SymbolEnum {
			kinds = append(kinds, s.Enum.ValueKind)
		}
	}
	if len(kinds) != 2 {
		t.Fatalf("enums found = %d", len(kinds))
	}
	if kinds[0] != ir.EnumIntegerConsecutiveFromZero {
		t.Fatalf("first enum kind = %v", kinds[0])
	}
	if kinds[1] != ir.EnumIntegerNotUnique {
		t.Fatalf("second enum kind = %v", kinds[1])
	}
}

func TestTemplateInstantiateChecks(t *testing.T) {
	b, bag := testBuilder(t, config.Default())
	tu := &ast.TranslationUnit{Units: []ast.ProgramUnit{
		&ast.Module{
			Name: "lib",
			Decls: []ast.Decl{
				&ast.TemplateDecl{
					Name:   "pair",
					Params: []string{"t"},
					Contains: []*ast.Procedure{
						{
							Name:       "first",
							IsFunction: true,
							Args:       []ast.Arg{{Name: "a"}},
							ReturnType: &ast.TypeSpec{Base: ast.TypeDerived, Name: "t"},
							Decls: []ast.Decl{
								entityDecl(ast.TypeSpec{Base: ast.TypeDerived, Name: "t"},
									ast.DeclAttrs{Intent: ast.IntentIn}, "a"),
							},
						},
					},
				},
				&ast.InstantiateDecl{
					Template: "pair",
					Args:     []ast.InstArg{{Type: &ast.TypeSpec{Base: ast.TypeInteger}}},
					Only:     []ast.Rename{{Local: "first_int", Remote: "first"}},
				},
			},
		},
	}}
	if err := b.Build(tu); err != nil {
		t.Fatalf("Build: %v (%v)", err, bag.Items())
	}
	tbl := b.Table()
	mod := tbl.Symbols.Get(tbl.Lookup(tbl.Root, "lib"))
	inst := tbl.Symbols.Get(tbl.Lookup(mod.Symtab, "first_int"))
	if inst == nil || inst.Kind != ir.SymbolFunction {
		t.Fatalf("instantiated function missing: %+v", inst)
	}
	if len(inst.Fn.Args) != 1 {
		t.Fatalf("instantiated args = %d", len(inst.Fn.Args))
	}
	arg := tbl.Symbols.Get(inst.Fn.Args[0].Sym)
	if arg == nil || arg.Parent != inst.Symtab {
		t.Fatalf("instantiated argument does not live in the clone's scope")
	}
	if arg.Var.Type.Kind != ir.TInteger {
		t.Fatalf("argument type = %v, want integer", arg.Var.Type.Kind)
	}
	if inst.Fn.Return == nil || inst.Fn.Return.Type.Kind != ir.TInteger {
		t.Fatalf("return type not substituted: %+v", inst.Fn.Return)
	}

	// The template's own body keeps its parameter types.
	tplSym := tbl.Symbols.Get(tbl.Lookup(mod.Symtab, "pair"))
	orig := tbl.Symbols.Get(tbl.Lookup(tplSym.Symtab, "first"))
	if orig == nil || orig.Kind != ir.SymbolFunction {
		t.Fatalf("template procedure missing")
	}
	if orig.Fn.Return == nil || orig.Fn.Return.Type.Kind != ir.TTypeParameter {
		t.Fatalf("template return type was rewritten: %+v", orig.Fn.Return)
	}

	// Arity mismatch aborts.
	b2, bag2 := testBuilder(t, config.Default())
	tu2 := &ast.TranslationUnit{Units: []ast.ProgramUnit{
		&ast.Module{Name: "lib", Decls: []ast.Decl{
			&ast.TemplateDecl{Name: "pair", Params: []string{"t", "u"}},
			&ast.InstantiateDecl{Template: "pair", Args: []ast.InstArg{{Type: &ast.TypeSpec{Base: ast.TypeInteger}}}},
		}},
	}}
	if err := b2.Build(tu2); err == nil {
		t.Fatalf("expected arity abort")
	}
	found := false
	for _, d := range bag2.Items() {
		if d.Code == diag.SemaTemplateArity {
			found = true
		}
	}
	if !found {
		t.Fatalf("missing arity diagnostic: %v", bag2.Items())
	}
}

func TestInstantiateOperatorWrapper(t *testing.T) {
	b, bag := testBuilder(t, config.Default())
	tu := &ast.TranslationUnit{Units: []ast.ProgramUnit{
		&ast.Module{
			Name: "lib",
			Decls: []ast.Decl{
				&ast.RequirementDecl{
					Name:   "binary_op",
					Params: []string{"u", "op"},
					Contains: []*ast.Procedure{
						{
							Name:       "op",
							IsFunction: true,
							Args:       []ast.Arg{{Name: "x"}, {Name: "y"}},
							ReturnType: &ast.TypeSpec{Base: ast.TypeDerived, Name: "u"},
							Decls: []ast.Decl{
								entityDecl(ast.TypeSpec{Base: ast.TypeDerived, Name: "u"},
									ast.DeclAttrs{Intent: ast.IntentIn}, "x", "y"),
							},
						},
					},
				},
				&ast.TemplateDecl{
					Name:   "sum",
					Params: []string{"t", "add"},
					Requires: []*ast.RequireSpec{
						{Requirement: "binary_op", Args: []string{"t", "add"}},
					},
				},
				&ast.InstantiateDecl{
					Template: "sum",
					Args: []ast.InstArg{
						{Type: &ast.TypeSpec{Base: ast.TypeReal}},
						{Operator: "+"},
					},
				},
			},
		},
	}}
	if err := b.Build(tu); err != nil {
		t.Fatalf("Build: %v (%v)", err, bag.Items())
	}
	tbl := b.Table()
	mod := tbl.Symbols.Get(tbl.Lookup(tbl.Root, "lib"))
	wrap := tbl.Symbols.Get(tbl.Lookup(mod.Symtab, "~wrapper_add"))
	if wrap == nil || wrap.Kind != ir.SymbolFunction {
		t.Fatalf("operator wrapper missing")
	}
	if len(wrap.Fn.Args) != 2 {
		t.Fatalf("wrapper args = %d", len(wrap.Fn.Args))
	}
	for i, a := range wrap.Fn.Args {
		if a.Type.Kind != ir.TReal {
			t.Fatalf("wrapper arg %d type = %v, want real", i, a.Type.Kind)
		}
	}
	if wrap.Fn.Return == nil || wrap.Fn.Return.Type.Kind != ir.TReal {
		t.Fatalf("wrapper return type not derived from requirement")
	}
	if len(wrap.Fn.Body) != 1 || wrap.Fn.Body[0].Kind != ir.StAssign {
		t.Fatalf("wrapper body = %+v", wrap.Fn.Body)
	}
	val := wrap.Fn.Body[0].Value
	if val == nil || val.Kind != ir.ExBinOp || val.Op != ir.OpAdd {
		t.Fatalf("wrapper body value = %+v", val)
	}
}

func TestCommonBlockLowering(t *testing.T) {
	opts := config.Default()
	opts.ImplicitTyping = true
	b, bag := testBuilder(t, opts)
	tu := &ast.TranslationUnit{Units: []ast.ProgramUnit{
		&ast.Procedure{
			Name: "alpha",
			Decls: []ast.Decl{
				entityDecl(realSpec(), ast.DeclAttrs{}, "x"),
				&ast.CommonDecl{Blocks: []ast.CommonBlock{
					{Name: "shared", Objects: []ast.Entity{{Name: "x"}, {Name: "n"}}},
				}},
			},
		},
		&ast.Procedure{
			Name: "beta",
			Decls: []ast.Decl{
				entityDecl(realSpec(), ast.DeclAttrs{}, "x"),
				&ast.CommonDecl{Blocks: []ast.CommonBlock{
					{Name: "shared", Objects: []ast.Entity{{Name: "x"}, {Name: "n"}}},
				}},
			},
		},
	}}
	if err := b.Build(tu); err != nil {
		t.Fatalf("Build: %v (%v)", err, bag.Items())
	}
	tbl := b.Table()
	mod := tbl.Symbols.Get(tbl.Lookup(tbl.Root, "~common_blocks"))
	if mod == nil || mod.Kind != ir.SymbolModule {
		t.Fatalf("synthetic common module missing")
	}
	str := tbl.Symbols.Get(tbl.Lookup(mod.Symtab, "common_block_shared"))
	if str == nil || len(str.Str.Members) != 2 {
		t.Fatalf("common struct wrong: %+v", str)
	}
	inst := tbl.Symbols.Get(tbl.Lookup(mod.Symtab, "shared"))
	if inst == nil || inst.Var.Storage != ir.StorageSave {
		t.Fatalf("instance variable wrong")
	}
}

func TestCommonBlockInconsistentLayout(t *testing.T) {
	opts := config.Default()
	opts.ImplicitTyping = true
	b, bag := testBuilder(t, opts)
	tu := &ast.TranslationUnit{Units: []ast.ProgramUnit{
		&ast.Procedure{Name: "alpha", Decls: []ast.Decl{
			&ast.CommonDecl{Blocks: []ast.CommonBlock{
				{Name: "shared", Objects: []ast.Entity{{Name: "x"}}},
			}},
		}},
		&ast.Procedure{Name: "beta", Decls: []ast.Decl{
			&ast.CommonDecl{Blocks: []ast.CommonBlock{
				{Name: "shared", Objects: []ast.Entity{{Name: "x"}, {Name: "n"}}},
			}},
		}},
	}}
	if err := b.Build(tu); err == nil {
		t.Fatalf("expected abort")
	}
	found := false
	for _, d := range bag.Items() {
		if d.Code == diag.SemaCommonBlockInconsistent {
			found = true
		}
	}
	if !found {
		t.Fatalf("missing inconsistency diagnostic: %v", bag.Items())
	}
}
