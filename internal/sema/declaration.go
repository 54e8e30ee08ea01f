package sema

import (
	"ferrite/internal/ast"
	"ferrite/internal/diag"
	"ferrite/internal/ir"
	"ferrite/internal/source"
)

// resolveType lowers a syntactic type spec into an IR type. dims, when
// non-nil, wraps the result in an array per the attribute rules.
func (b *Builder) resolveType(spec *ast.TypeSpec, attrs *ast.DeclAttrs, sp source.Span) (*ir.Type, error) {
	base, err := b.baseType(spec, sp)
	if err != nil {
		return nil, err
	}
	ty := base
	var dims []ast.DimSpec
	if attrs != nil {
		dims = attrs.Dims
	}
	if len(dims) > 0 {
		irDims, err := b.resolveDims(dims, attrs)
		if err != nil {
			return nil, err
		}
		ty = ir.ArrayType(ty, irDims)
	}
	if attrs != nil {
		switch {
		case attrs.Pointer && attrs.Allocatable:
			return nil, b.abort(diag.SemaRedefinition, sp,
				"pointer and allocatable attributes are mutually exclusive")
		case attrs.Pointer:
			ty = ir.PointerType(ty)
		case attrs.Allocatable:
			ty = ir.AllocatableType(ty)
		}
	}
	return ty, nil
}

func (b *Builder) baseType(spec *ast.TypeSpec, sp source.Span) (*ir.Type, error) {
	kind, err := b.kindValue(spec.Kind, sp)
	if err != nil {
		return nil, err
	}
	switch spec.Base {
	case ast.TypeInteger:
		if kind == 0 {
			kind = b.opts.DefaultIntegerKind
		}
		return ir.IntegerType(kind), nil
	case ast.TypeReal:
		if kind == 0 {
			kind = 4
		}
		return ir.RealType(kind), nil
	case ast.TypeDoublePrecision:
		return ir.RealType(8), nil
	case ast.TypeComplex:
		if kind == 0 {
			kind = 4
		}
		return ir.ComplexType(kind), nil
	case ast.TypeLogical:
		if kind == 0 {
			kind = 4
		}
		return ir.LogicalType(kind), nil
	case ast.TypeCharacter:
		return b.characterType(spec, kind, sp)
	case ast.TypeDerived:
		return b.derivedRef(spec, sp)
	case ast.TypeProcedure:
		return b.procedureType(spec, sp)
	default:
		return nil, b.abort(diag.SemaUnknownParentType, sp, "unresolvable type specification")
	}
}

func (b *Builder) characterType(spec *ast.TypeSpec, kind int, sp source.Span) (*ir.Type, error) {
	if kind == 0 {
		kind = 1
	}
	t := &ir.Type{Kind: ir.TString, KindBytes: kind, StrPhysical: ir.DescriptorString}
	switch {
	case spec.LenAssumed:
		t.LenKind = ir.AssumedLength
	case spec.LenDeferred:
		t.LenKind = ir.DeferredLength
	case spec.Len != nil:
		l, err := b.expr(spec.Len)
		if err != nil {
			return nil, err
		}
		t.LenKind = ir.ExpressionLength
		t.Len = l
	default:
		// Plain `character` is length one.
		t.LenKind = ir.ExpressionLength
		t.Len = ir.IntConst(1, ir.IntegerType(b.opts.DefaultIntegerKind), sp)
	}
	return t, nil
}

func (b *Builder) derivedRef(spec *ast.TypeSpec, sp source.Span) (*ir.Type, error) {
	id := b.tbl.Resolve(b.scope, fold(spec.Name))
	if !id.IsValid() {
		return nil, b.abort(diag.SemaUnknownParentType, sp, "unknown derived type %q", spec.Name)
	}
	real := b.tbl.PastExternal(id)
	sym := b.tbl.Symbols.Get(real)
	if sym == nil {
		return nil, b.abort(diag.SemaUnknownParentType, sp, "unknown derived type %q", spec.Name)
	}
	switch sym.Kind {
	case ir.SymbolStruct:
		b.unit.deps.Add(fold(spec.Name))
		return ir.StructType(id), nil
	case ir.SymbolUnion:
		b.unit.deps.Add(fold(spec.Name))
		return &ir.Type{Kind: ir.TUnionT, Decl: id}, nil
	case ir.SymbolEnum:
		b.unit.deps.Add(fold(spec.Name))
		return &ir.Type{Kind: ir.TEnumT, Decl: id}, nil
	case ir.SymbolVariable:
		// A template type parameter used as type(T).
		if sym.Var != nil && sym.Var.Type != nil && sym.Var.Type.Kind == ir.TTypeParameter {
			return sym.Var.Type, nil
		}
	}
	return nil, b.abort(diag.SemaUnknownParentType, sp,
		"%q is not a type", spec.Name)
}

func (b *Builder) procedureType(spec *ast.TypeSpec, sp source.Span) (*ir.Type, error) {
	t := &ir.Type{Kind: ir.TFunction}
	if spec.Name == "" {
		return t, nil
	}
	id := b.tbl.Resolve(b.scope, fold(spec.Name))
	if !id.IsValid() {
		return nil, b.abort(diag.SemaUnresolvedSymbol, sp, "unknown procedure interface %q", spec.Name)
	}
	iface := b.tbl.Symbols.Get(b.tbl.PastExternal(id))
	if iface == nil || iface.Kind != ir.SymbolFunction || iface.Fn == nil {
		return nil, b.abort(diag.SemaUnresolvedSymbol, sp, "%q is not a procedure interface", spec.Name)
	}
	for _, a := range iface.Fn.Args {
		t.ArgTypes = append(t.ArgTypes, a.Type)
	}
	if iface.Fn.Return != nil {
		t.RetType = iface.Fn.Return.Type
	}
	b.unit.deps.Add(fold(spec.Name))
	return t, nil
}

// kindValue folds a kind expression to its integer value; 0 means
// unspecified.
func (b *Builder) kindValue(e ast.Expr, sp source.Span) (int, error) {
	if e == nil {
		return 0, nil
	}
	v, err := b.expr(e)
	if err != nil {
		return 0, err
	}
	k, ok := v.ConstInt()
	if !ok {
		return 0, b.abort(diag.SemaKindTwice, sp, "kind expression is not a constant")
	}
	return int(k), nil
}

// resolveDims lowers an array specification. A pointer or allocatable
// attribute forces deferred bounds.
func (b *Builder) resolveDims(dims []ast.DimSpec, attrs *ast.DeclAttrs) ([]ir.Dimension, error) {
	deferredOnly := attrs != nil && (attrs.Pointer || attrs.Allocatable)
	out := make([]ir.Dimension, 0, len(dims))
	for _, d := range dims {
		if d.Assumed || d.AssumedSize || deferredOnly {
			out = append(out, ir.Dimension{})
			continue
		}
		var dim ir.Dimension
		lower := d.Lower
		if lower == nil {
			dim.Start = ir.IntConst(1, ir.IntegerType(b.opts.DefaultIntegerKind), source.Span{})
		} else {
			lo, err := b.expr(lower)
			if err != nil {
				return nil, err
			}
			dim.Start = lo
		}
		if d.Upper != nil {
			up, err := b.expr(d.Upper)
			if err != nil {
				return nil, err
			}
			// Length = upper - lower + 1 when both fold; otherwise keep
			// the upper bound expression as the extent marker.
			if uv, ok := up.ConstInt(); ok {
				if lv, lok := dim.Start.ConstInt(); lok {
					dim.Length = ir.IntConst(uv-lv+1, up.Type, up.Loc)
				} else {
					dim.Length = up
				}
			} else {
				dim.Length = up
			}
		}
		out = append(out, dim)
	}
	return out, nil
}

// buildEntityDecl declares each entity of a typed declaration.
func (b *Builder) buildEntityDecl(d *ast.EntityDecl) error {
	for i := range d.Items {
		if err := b.buildEntity(d, &d.Items[i]); err != nil {
			return err
		}
	}
	return nil
}

func (b *Builder) buildEntity(d *ast.EntityDecl, ent *ast.Entity) error {
	attrs := d.Attrs
	if len(ent.Dims) > 0 {
		attrs.Dims = ent.Dims
	}
	spec := d.Type
	if ent.Len != nil {
		spec.Len = ent.Len
		spec.LenAssumed = false
		spec.LenDeferred = false
	}
	folded := fold(ent.Name)

	// A declaration may retype an existing dummy argument placeholder.
	if prev := b.tbl.Lookup(b.scope, folded); prev.IsValid() {
		sym := b.tbl.Symbols.Get(prev)
		if sym != nil && sym.Kind == ir.SymbolVariable && sym.Var != nil && sym.Var.Type == nil {
			return b.fillVariable(sym, &spec, &attrs, ent)
		}
		return b.abort(diag.SemaRedefinition, ent.Loc, "redefinition of %q", ent.Name)
	}

	v := &ir.Symbol{Kind: ir.SymbolVariable, Var: &ir.VariableData{}}
	id, err := b.declare(folded, v, ent.Loc)
	if err != nil {
		return err
	}
	return b.fillVariable(b.tbl.Symbols.Get(id), &spec, &attrs, ent)
}

// fillVariable resolves the type and attributes into an existing
// variable symbol.
func (b *Builder) fillVariable(sym *ir.Symbol, spec *ast.TypeSpec, attrs *ast.DeclAttrs, ent *ast.Entity) error {
	ty, err := b.resolveType(spec, attrs, ent.Loc)
	if err != nil {
		return err
	}
	v := sym.Var
	v.Type = ty
	if u := ty.Unwrap(); u != nil && (u.Kind == ir.TStruct || u.Kind == ir.TEnumT || u.Kind == ir.TUnionT) {
		v.TypeDecl = u.Decl
	}
	switch attrs.Intent {
	case ast.IntentIn:
		v.Intent = ir.IntentIn
	case ast.IntentOut:
		v.Intent = ir.IntentOut
	case ast.IntentInOut:
		v.Intent = ir.IntentInOut
	}
	if attrs.Optional {
		v.Presence = ir.PresenceOptional
	}
	switch attrs.Access {
	case ast.AccessPublic:
		sym.Access = ir.AccessPublic
	case ast.AccessPrivate:
		sym.Access = ir.AccessPrivate
	}
	if attrs.Parameter {
		v.Storage = ir.StorageParameter
	} else if attrs.Save || b.unit.defaultSave || b.unit.saveNames[sym.Name] || b.moduleLevelScope() {
		v.Storage = ir.StorageSave
	}
	if attrs.External {
		// EXTERNAL turns the name into an undefined procedure, not a
		// variable.
		sym.Kind = ir.SymbolFunction
		sym.Fn = &ir.FunctionData{ABI: ir.ABIExternalUndefined, Deftype: ir.DeftypeInterface}
		if spec.Base != ast.TypeNone {
			sym.Fn.Return = ir.VarRef(ir.NoSymbolID, ty, ent.Loc)
		}
		sym.Var = nil
		return nil
	}
	if ent.Init != nil {
		val, err := b.expr(ent.Init)
		if err != nil {
			return err
		}
		v.SymbolicValue = val
		v.Value = val.Value
	}
	// The variable carries its own exact dependency list; the unit's
	// list accumulates the same names.
	vdeps := ir.NewNameSet()
	ir.CollectTypeDeps(b.tbl, b.scope, ty, vdeps)
	ir.CollectExprDeps(b.tbl, b.scope, v.SymbolicValue, vdeps)
	sym.Deps = vdeps.Names()
	for _, d := range sym.Deps {
		b.unit.deps.Add(d)
	}
	return nil
}

// moduleLevelScope reports whether the current scope is a module body,
// where variables implicitly get save storage.
func (b *Builder) moduleLevelScope() bool {
	owner := b.tbl.OwnerSymbol(b.scope)
	return owner != nil && owner.Kind == ir.SymbolModule
}

// buildSave records a SAVE statement for later variable declarations
// and applies it to already-declared ones.
func (b *Builder) buildSave(d *ast.SaveDecl) error {
	if len(d.Names) == 0 {
		b.unit.defaultSave = true
	}
	sc := b.tbl.Scopes.Get(b.scope)
	for _, n := range d.Names {
		folded := fold(n)
		b.unit.saveNames[folded] = true
		if id := sc.Get(folded); id.IsValid() {
			if sym := b.tbl.Symbols.Get(id); sym != nil && sym.Kind == ir.SymbolVariable {
				if sym.Var.Storage == ir.StorageDefault {
					sym.Var.Storage = ir.StorageSave
				}
			}
		}
	}
	if b.unit.defaultSave {
		for _, n := range sc.Order {
			if sym := b.tbl.Symbols.Get(sc.Get(n)); sym != nil && sym.Kind == ir.SymbolVariable {
				if sym.Var.Storage == ir.StorageDefault {
					sym.Var.Storage = ir.StorageSave
				}
			}
		}
	}
	return nil
}

// buildAccess applies a public/private statement.
func (b *Builder) buildAccess(d *ast.AccessDecl) error {
	acc := ir.AccessPublic
	if d.Access == ast.AccessPrivate {
		acc = ir.AccessPrivate
	}
	if len(d.Names) == 0 {
		b.unit.defaultAccess = acc
		return nil
	}
	sc := b.tbl.Scopes.Get(b.scope)
	for _, n := range d.Names {
		folded := fold(n)
		b.unit.accessOverrides[folded] = acc
		if id := sc.Get(folded); id.IsValid() {
			b.tbl.Symbols.Get(id).Access = acc
		}
	}
	return nil
}

// buildDecl dispatches one specification-part construct.
func (b *Builder) buildDecl(d ast.Decl) error {
	switch d := d.(type) {
	case *ast.EntityDecl:
		return b.buildEntityDecl(d)
	case *ast.DerivedType:
		return b.buildDerivedType(d)
	case *ast.Union:
		return b.buildUnion(d)
	case *ast.InterfaceBlock:
		return b.buildInterface(d)
	case *ast.EnumDecl:
		return b.buildEnum(d)
	case *ast.CommonDecl:
		return b.buildCommon(d)
	case *ast.SaveDecl:
		return b.buildSave(d)
	case *ast.AccessDecl:
		return b.buildAccess(d)
	case *ast.TemplateDecl:
		return b.buildTemplate(d)
	case *ast.RequirementDecl:
		return b.buildRequirement(d)
	case *ast.InstantiateDecl:
		return b.buildInstantiate(d)
	default:
		return b.abort(diag.SemaUnresolvedSymbol, d.Span(), "unsupported declaration")
	}
}
