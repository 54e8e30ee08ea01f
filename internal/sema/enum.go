package sema

import (
	"ferrite/internal/ast"
	"ferrite/internal/diag"
	"ferrite/internal/ir"
)

// buildEnum resolves an enumeration: members get consecutive values
// unless given explicitly, the whole set is classified by its
// numbering discipline, and every member is re-exposed in the parent
// scope so unqualified references resolve.
func (b *Builder) buildEnum(d *ast.EnumDecl) error {
	elemType := ir.IntegerType(4)

	name := b.tbl.UniqueName(b.scope, "~enum")
	sym := &ir.Symbol{
		Kind: ir.SymbolEnum,
		Enum: &ir.EnumData{Type: elemType, ABI: ir.ABIBindC},
	}
	id, err := b.declare(name, sym, d.Loc)
	if err != nil {
		return err
	}
	scope := b.tbl.NewScope(b.scope, id)
	b.tbl.Symbols.Get(id).Symtab = scope

	next := int64(0)
	consecutive := true
	values := make(map[int64]bool, len(d.Items))
	unique := true
	b.enter(scope)
	for _, item := range d.Items {
		val := next
		if item.Value != nil {
			ex, err := b.expr(item.Value)
			if err != nil {
				b.leave(scope)
				return err
			}
			v, ok := ex.ConstInt()
			if !ok {
				b.leave(scope)
				return b.abort(diag.SemaEnumNonIntegerValue, item.Loc,
					"enumerator %q has a non-integer value", item.Name)
			}
			val = v
		}
		if val != next {
			consecutive = false
		}
		if values[val] {
			unique = false
		}
		values[val] = true
		next = val + 1

		member := &ir.Symbol{
			Kind: ir.SymbolVariable,
			Deps: []string{name},
			Var: &ir.VariableData{
				Type:    &ir.Type{Kind: ir.TEnumT, Decl: id},
				Storage: ir.StorageParameter,
				Value:   ir.IntConst(val, elemType, item.Loc),
			},
		}
		if _, err := b.declare(fold(item.Name), member, item.Loc); err != nil {
			b.leave(scope)
			return err
		}
	}
	b.leave(scope)

	enum := b.tbl.Symbols.Get(id)
	sc := b.tbl.Scopes.Get(scope)
	enum.Enum.Members = append(enum.Enum.Members, sc.Order...)
	switch {
	case consecutive && startsAtZero(values, len(d.Items)):
		enum.Enum.ValueKind = ir.EnumIntegerConsecutiveFromZero
	case unique:
		enum.Enum.ValueKind = ir.EnumIntegerUnique
	default:
		enum.Enum.ValueKind = ir.EnumIntegerNotUnique
	}

	// Members are visible unqualified: each gets an alias in the scope
	// containing the enum.
	for _, m := range enum.Enum.Members {
		memberID := b.tbl.Lookup(scope, m)
		ext := &ir.Symbol{
			Kind:   ir.SymbolExternal,
			Access: ir.AccessPublic,
			Ext: &ir.ExternalData{
				Target:       memberID,
				ModuleName:   b.owningModuleName(id),
				ScopeNames:   []string{name},
				OriginalName: m,
			},
		}
		ext.Loc = b.tbl.Symbols.Get(memberID).Loc
		if !b.tbl.Declare(b.scope, m, ext).IsValid() {
			return b.abort(diag.SemaRedefinition, ext.Loc, "redefinition of %q", m)
		}
	}
	return nil
}

func startsAtZero(values map[int64]bool, n int) bool {
	return n == 0 || values[0]
}
