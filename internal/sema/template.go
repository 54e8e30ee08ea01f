package sema

import (
	"fmt"

	"ferrite/internal/ast"
	"ferrite/internal/diag"
	"ferrite/internal/ir"
	"ferrite/internal/source"
)

// buildTemplate resolves a template declaration. Formal parameters
// become type-parameter variables in the template's own scope, so the
// body resolves against them like ordinary declarations.
func (b *Builder) buildTemplate(d *ast.TemplateDecl) error {
	folded := fold(d.Name)
	tpl := &ir.TemplateData{Params: foldAll(d.Params)}
	sym := &ir.Symbol{Kind: ir.SymbolTemplate, Tpl: tpl}
	id, err := b.declare(folded, sym, d.Loc)
	if err != nil {
		return err
	}
	scope := b.tbl.NewScope(b.scope, id)
	b.tbl.Symbols.Get(id).Symtab = scope

	b.enter(scope)
	defer b.leave(scope)
	b.pushUnit(id)
	defer b.popUnit()

	for _, p := range d.Params {
		_, err := b.declare(fold(p), &ir.Symbol{
			Kind: ir.SymbolVariable,
			Var:  &ir.VariableData{Type: &ir.Type{Kind: ir.TTypeParameter, Param: fold(p)}},
		}, d.Loc)
		if err != nil {
			return err
		}
	}
	for _, req := range d.Requires {
		if err := b.applyRequirement(id, req); err != nil {
			return err
		}
	}
	for _, decl := range d.Decls {
		if err := b.buildDecl(decl); err != nil {
			return err
		}
	}
	for _, p := range d.Contains {
		if err := b.buildProcedure(p, ir.DeftypeImplementation); err != nil {
			return err
		}
	}
	return b.closeUnit(d.Loc)
}

// buildRequirement resolves a requirement declaration, structured like
// a template without a requires clause of its own body procedures
// being implementations.
func (b *Builder) buildRequirement(d *ast.RequirementDecl) error {
	folded := fold(d.Name)
	sym := &ir.Symbol{Kind: ir.SymbolRequirement, Tpl: &ir.TemplateData{Params: foldAll(d.Params)}}
	id, err := b.declare(folded, sym, d.Loc)
	if err != nil {
		return err
	}
	scope := b.tbl.NewScope(b.scope, id)
	b.tbl.Symbols.Get(id).Symtab = scope

	b.enter(scope)
	defer b.leave(scope)
	b.pushUnit(id)
	defer b.popUnit()

	for _, p := range d.Params {
		_, err := b.declare(fold(p), &ir.Symbol{
			Kind: ir.SymbolVariable,
			Var:  &ir.VariableData{Type: &ir.Type{Kind: ir.TTypeParameter, Param: fold(p)}},
		}, d.Loc)
		if err != nil {
			return err
		}
	}
	for _, decl := range d.Decls {
		if err := b.buildDecl(decl); err != nil {
			return err
		}
	}
	for _, p := range d.Contains {
		if err := b.buildProcedure(p, ir.DeftypeInterface); err != nil {
			return err
		}
	}
	return b.closeUnit(d.Loc)
}

// applyRequirement checks a requires clause inside a template: the
// requirement must exist and the argument count must match its formal
// parameters.
func (b *Builder) applyRequirement(tplID ir.SymbolID, req *ast.RequireSpec) error {
	id := b.tbl.Resolve(b.scope, fold(req.Requirement))
	if !id.IsValid() {
		return b.abort(diag.SemaRequirementUnresolved, req.Loc,
			"unknown requirement %q", req.Requirement)
	}
	reqSym := b.tbl.Symbols.Get(b.tbl.PastExternal(id))
	if reqSym == nil || reqSym.Kind != ir.SymbolRequirement {
		return b.abort(diag.SemaRequirementUnresolved, req.Loc,
			"%q is not a requirement", req.Requirement)
	}
	if len(req.Args) != len(reqSym.Tpl.Params) {
		return b.abort(diag.SemaTemplateArity, req.Loc,
			"requirement %q takes %d parameters, %d given",
			req.Requirement, len(reqSym.Tpl.Params), len(req.Args))
	}
	tpl := b.tbl.Symbols.Get(tplID)
	tpl.Tpl.Requires = append(tpl.Tpl.Requires, ir.Require{
		Requirement: fold(req.Requirement),
		Args:        foldAll(req.Args),
	})
	// Interfaces declared by the requirement become visible inside the
	// template under the bound parameter names.
	reqScope := b.tbl.Scopes.Get(reqSym.Symtab)
	for i, formal := range reqSym.Tpl.Params {
		actual := fold(req.Args[i])
		declID := reqScope.Get(formal)
		if !declID.IsValid() {
			continue
		}
		decl := b.tbl.Symbols.Get(declID)
		if decl.Kind != ir.SymbolFunction {
			continue
		}
		if b.tbl.Lookup(b.scope, actual).IsValid() {
			continue
		}
		ext := &ir.Symbol{
			Kind: ir.SymbolExternal,
			Ext: &ir.ExternalData{
				Target:       declID,
				ModuleName:   b.owningModuleName(declID),
				ScopeNames:   []string{reqSym.Name},
				OriginalName: formal,
			},
		}
		ext.Loc = req.Loc
		b.tbl.Declare(b.scope, actual, ext)
	}
	return nil
}

// buildInstantiate monomorphizes a template: the template must
// resolve, the argument count must match, and every argument must name
// a type, a resolvable symbol or an intrinsic operator. Each symbol of
// the template scope is then cloned into the current scope with the
// formal parameters substituted by their concrete bindings.
func (b *Builder) buildInstantiate(d *ast.InstantiateDecl) error {
	id := b.tbl.Resolve(b.scope, fold(d.Template))
	if !id.IsValid() {
		return b.abort(diag.SemaTemplateUnresolved, d.Loc,
			"unknown template %q", d.Template)
	}
	tpl := b.tbl.Symbols.Get(b.tbl.PastExternal(id))
	if tpl == nil || tpl.Kind != ir.SymbolTemplate {
		return b.abort(diag.SemaTemplateUnresolved, d.Loc,
			"%q is not a template", d.Template)
	}
	if len(d.Args) != len(tpl.Tpl.Params) {
		return b.abort(diag.SemaTemplateArity, d.Loc,
			"template %q takes %d parameters, %d given",
			d.Template, len(tpl.Tpl.Params), len(d.Args))
	}

	// Type bindings first: operator wrappers derive their signature from
	// the concrete types, regardless of argument order.
	types := make(map[string]*ir.Type, len(d.Args))
	for i, a := range d.Args {
		if a.Type == nil {
			continue
		}
		ty, err := b.resolveType(a.Type, nil, a.Loc)
		if err != nil {
			return err
		}
		types[tpl.Tpl.Params[i]] = ty
	}
	syms := make(map[string]ir.SymbolID)
	for i, a := range d.Args {
		param := tpl.Tpl.Params[i]
		switch {
		case a.Type != nil:
		case a.Operator != "":
			wid, err := b.operatorWrapper(a.Operator, tpl, param, types, a.Loc)
			if err != nil {
				return err
			}
			syms[param] = wid
		case a.Symbol != "":
			sid := b.tbl.Resolve(b.scope, fold(a.Symbol))
			if !sid.IsValid() {
				return b.abort(diag.SemaInstantiateBadArgument, a.Loc,
					"instantiate argument %q does not resolve", a.Symbol)
			}
			syms[param] = sid
		default:
			return b.abort(diag.SemaInstantiateBadArgument, a.Loc,
				"empty instantiate argument")
		}
	}

	tplScope := b.tbl.Scopes.Get(tpl.Symtab)
	if len(d.Only) > 0 {
		for _, r := range d.Only {
			remote := fold(r.Remote)
			if remote == "" {
				remote = fold(r.Local)
			}
			declID := tplScope.Get(remote)
			if !declID.IsValid() {
				return b.abort(diag.SemaUseSymbolNotFound, r.Loc,
					"symbol %q not found in template %q", remote, d.Template)
			}
			local := fold(r.Local)
			if local == "" {
				local = remote
			}
			if err := b.instantiateSymbol(local, declID, tpl, types, syms, r.Loc); err != nil {
				return err
			}
		}
		return nil
	}
	for _, remote := range tplScope.Order {
		if err := b.instantiateSymbol(remote, tplScope.Get(remote), tpl, types, syms, d.Loc); err != nil {
			return err
		}
	}
	return nil
}

// instantiateSymbol clones one template-scope symbol into the current
// scope under local, substituting type parameters with their concrete
// bindings. Formal parameter placeholders are consumed by the bindings
// and produce nothing.
func (b *Builder) instantiateSymbol(local string, declID ir.SymbolID, tpl *ir.Symbol,
	types map[string]*ir.Type, syms map[string]ir.SymbolID, sp source.Span) error {
	decl := b.tbl.Symbols.Get(declID)
	if decl == nil {
		return nil
	}
	switch decl.Kind {
	case ir.SymbolExternal:
		// Requirement interfaces surfaced inside the template; they are
		// not part of the instantiation.
		return nil
	case ir.SymbolFunction:
		return b.cloneFunction(local, decl, types, syms, sp)
	case ir.SymbolVariable:
		if decl.Var != nil && decl.Var.Type != nil && decl.Var.Type.Kind == ir.TTypeParameter {
			return nil
		}
		nv := b.newVariableClone(decl, nil, types, syms)
		nid, err := b.declare(local, nv, sp)
		if err != nil {
			return err
		}
		b.recomputeVariableDeps(nid)
		return nil
	default:
		// Structs, nested templates and requirements keep their single
		// definition; an alias in the caller's scope is enough.
		b.exposeTemplateSymbol(local, declID, tpl.Name)
		return nil
	}
}

// cloneFunction copies a template procedure into the current scope:
// fresh child scope, fresh dummy-argument and local variables with
// substituted types, and a body with every reference rewired to the
// clones or to the concrete symbol bindings.
func (b *Builder) cloneFunction(local string, src *ir.Symbol,
	types map[string]*ir.Type, syms map[string]ir.SymbolID, sp source.Span) error {
	fn := &ir.FunctionData{
		ABI:        src.Fn.ABI,
		Deftype:    src.Fn.Deftype,
		BindName:   src.Fn.BindName,
		Pure:       src.Fn.Pure,
		Elemental:  src.Fn.Elemental,
		ModuleProc: src.Fn.ModuleProc,
	}
	sym := &ir.Symbol{Kind: ir.SymbolFunction, Access: src.Access, Fn: fn}
	id, err := b.declare(local, sym, sp)
	if err != nil {
		return err
	}
	sym = b.tbl.Symbols.Get(id)
	ns := b.tbl.NewScope(b.scope, id)
	sym.Symtab = ns

	mapping := make(map[ir.SymbolID]ir.SymbolID)
	srcScope := b.tbl.Scopes.Get(src.Symtab)
	for _, name := range srcScope.Order {
		oldID := srcScope.Get(name)
		old := b.tbl.Symbols.Get(oldID)
		if old == nil || old.Kind != ir.SymbolVariable {
			continue
		}
		nv := b.newVariableClone(old, mapping, types, syms)
		nid := b.tbl.Declare(ns, name, nv)
		b.recomputeVariableDeps(nid)
		mapping[oldID] = nid
	}
	for _, a := range src.Fn.Args {
		fn.Args = append(fn.Args, b.substituteExpr(a, mapping, types, syms))
	}
	if src.Fn.Return != nil {
		fn.Return = b.substituteExpr(src.Fn.Return, mapping, types, syms)
	}
	for _, st := range src.Fn.Body {
		fn.Body = append(fn.Body, b.substituteStmt(st, mapping, types, syms))
	}

	sym.Deps = ir.CollectFunctionDeps(b.tbl, sym).Names()
	return nil
}

// newVariableClone builds an unregistered copy of a variable with its
// type and initializers substituted.
func (b *Builder) newVariableClone(src *ir.Symbol, mapping map[ir.SymbolID]ir.SymbolID,
	types map[string]*ir.Type, syms map[string]ir.SymbolID) *ir.Symbol {
	nv := &ir.Symbol{
		Kind:   ir.SymbolVariable,
		Access: src.Access,
		Var: &ir.VariableData{
			Type:          substituteType(src.Var.Type, types),
			Intent:        src.Var.Intent,
			Storage:       src.Var.Storage,
			Presence:      src.Var.Presence,
			TypeDecl:      src.Var.TypeDecl,
			Value:         b.substituteExpr(src.Var.Value, mapping, types, syms),
			SymbolicValue: b.substituteExpr(src.Var.SymbolicValue, mapping, types, syms),
		},
	}
	nv.Loc = src.Loc
	return nv
}

func (b *Builder) recomputeVariableDeps(id ir.SymbolID) {
	sym := b.tbl.Symbols.Get(id)
	if sym == nil || sym.Kind != ir.SymbolVariable {
		return
	}
	deps := ir.NewNameSet()
	ir.CollectTypeDeps(b.tbl, sym.Parent, sym.Var.Type, deps)
	ir.CollectExprDeps(b.tbl, sym.Parent, sym.Var.SymbolicValue, deps)
	sym.Deps = deps.Names()
}

// operatorWrapper synthesizes a small function around an intrinsic
// operator supplied as the binding of a required operator restriction.
// The signature comes from the requirement obligation covering the
// parameter, with that requirement's own formals mapped through to the
// concrete types of this instantiation.
func (b *Builder) operatorWrapper(op string, tpl *ir.Symbol, param string,
	types map[string]*ir.Type, sp source.Span) (ir.SymbolID, error) {
	argTypes, retType := b.operatorSignature(tpl, param, types)
	fn := &ir.FunctionData{Pure: true}
	sym := &ir.Symbol{Kind: ir.SymbolFunction, Fn: fn}
	name := b.tbl.UniqueName(b.scope, "~wrapper_"+operatorToken(op))
	id, err := b.declare(name, sym, sp)
	if err != nil {
		return ir.NoSymbolID, err
	}
	scope := b.tbl.NewScope(b.scope, id)
	b.tbl.Symbols.Get(id).Symtab = scope

	for i, at := range argTypes {
		v := &ir.Symbol{Kind: ir.SymbolVariable, Var: &ir.VariableData{Type: at, Intent: ir.IntentIn}}
		v.Loc = sp
		vid := b.tbl.Declare(scope, fmt.Sprintf("arg%d", i+1), v)
		fn.Args = append(fn.Args, ir.VarRef(vid, at, sp))
	}
	rv := &ir.Symbol{Kind: ir.SymbolVariable, Var: &ir.VariableData{Type: retType, Intent: ir.IntentReturnVar}}
	rv.Loc = sp
	rid := b.tbl.Declare(scope, "result", rv)
	fn.Return = ir.VarRef(rid, retType, sp)

	if k, ok := binOpFor(op); ok && len(fn.Args) == 2 {
		fn.Body = []*ir.Stmt{{
			Kind:   ir.StAssign,
			Loc:    sp,
			Target: ir.VarRef(rid, retType, sp),
			Value: &ir.Expr{
				Kind: ir.ExBinOp,
				Op:   k,
				L:    ir.VarRef(fn.Args[0].Sym, argTypes[0], sp),
				R:    ir.VarRef(fn.Args[1].Sym, argTypes[1], sp),
				Type: retType,
				Loc:  sp,
			},
		}}
	}
	return id, nil
}

// operatorSignature finds the requirement obligation binding param and
// substitutes its interface signature with the concrete types. Falls
// back to a homogeneous binary signature over the first bound type.
func (b *Builder) operatorSignature(tpl *ir.Symbol, param string,
	types map[string]*ir.Type) ([]*ir.Type, *ir.Type) {
	outer := b.tbl.Scopes.Get(tpl.Symtab).Parent
	for _, req := range tpl.Tpl.Requires {
		idx := -1
		for i, a := range req.Args {
			if a == param {
				idx = i
				break
			}
		}
		if idx < 0 {
			continue
		}
		reqSym := b.tbl.Symbols.Get(b.tbl.PastExternal(b.tbl.Resolve(outer, req.Requirement)))
		if reqSym == nil || reqSym.Kind != ir.SymbolRequirement || idx >= len(reqSym.Tpl.Params) {
			continue
		}
		decl := b.tbl.Symbols.Get(b.tbl.Scopes.Get(reqSym.Symtab).Get(reqSym.Tpl.Params[idx]))
		if decl == nil || decl.Kind != ir.SymbolFunction {
			continue
		}
		bind := make(map[string]*ir.Type, len(reqSym.Tpl.Params))
		for i, formal := range reqSym.Tpl.Params {
			if i < len(req.Args) {
				if t, ok := types[req.Args[i]]; ok {
					bind[formal] = t
				}
			}
		}
		var args []*ir.Type
		for _, a := range decl.Fn.Args {
			args = append(args, substituteType(a.Type, bind))
		}
		var ret *ir.Type
		if decl.Fn.Return != nil {
			ret = substituteType(decl.Fn.Return.Type, bind)
		}
		return args, ret
	}
	for _, p := range tpl.Tpl.Params {
		if t, ok := types[p]; ok {
			return []*ir.Type{t, t}, t
		}
	}
	t := ir.IntegerType(b.opts.DefaultIntegerKind)
	return []*ir.Type{t, t}, t
}

// substituteType replaces type parameters with their bindings, copying
// only the spine that changes.
func substituteType(t *ir.Type, bind map[string]*ir.Type) *ir.Type {
	if t == nil || len(bind) == 0 {
		return t
	}
	switch t.Kind {
	case ir.TTypeParameter:
		if c, ok := bind[t.Param]; ok {
			return c
		}
	case ir.TArray, ir.TPointer, ir.TAllocatable:
		elem := substituteType(t.Elem, bind)
		if elem != t.Elem {
			c := *t
			c.Elem = elem
			return &c
		}
	case ir.TFunction:
		changed := false
		args := make([]*ir.Type, len(t.ArgTypes))
		for i, a := range t.ArgTypes {
			args[i] = substituteType(a, bind)
			changed = changed || args[i] != a
		}
		ret := substituteType(t.RetType, bind)
		if changed || ret != t.RetType {
			c := *t
			c.ArgTypes = args
			c.RetType = ret
			return &c
		}
	}
	return t
}

// substituteSym rewires a symbol reference: cloned locals map to their
// clones, formal parameter placeholders map to the concrete binding.
func (b *Builder) substituteSym(id ir.SymbolID, mapping map[ir.SymbolID]ir.SymbolID,
	syms map[string]ir.SymbolID) ir.SymbolID {
	if nid, ok := mapping[id]; ok {
		return nid
	}
	sym := b.tbl.Symbols.Get(id)
	if sym != nil && sym.Kind == ir.SymbolVariable && sym.Var != nil &&
		sym.Var.Type != nil && sym.Var.Type.Kind == ir.TTypeParameter {
		if nid, ok := syms[sym.Name]; ok {
			return nid
		}
	}
	return id
}

func (b *Builder) substituteExpr(e *ir.Expr, mapping map[ir.SymbolID]ir.SymbolID,
	types map[string]*ir.Type, syms map[string]ir.SymbolID) *ir.Expr {
	if e == nil {
		return nil
	}
	c := *e
	c.Type = substituteType(e.Type, types)
	switch e.Kind {
	case ir.ExVar:
		c.Sym = b.substituteSym(e.Sym, mapping, syms)
	case ir.ExFunctionCall:
		c.Sym = b.substituteSym(e.Sym, mapping, syms)
		c.Args = make([]ir.CallArg, len(e.Args))
		for i, a := range e.Args {
			c.Args[i] = ir.CallArg{Value: b.substituteExpr(a.Value, mapping, types, syms)}
		}
	case ir.ExBinOp:
		c.L = b.substituteExpr(e.L, mapping, types, syms)
		c.R = b.substituteExpr(e.R, mapping, types, syms)
	case ir.ExArrayConstant, ir.ExStructConstant:
		c.Elems = make([]*ir.Expr, len(e.Elems))
		for i, el := range e.Elems {
			c.Elems[i] = b.substituteExpr(el, mapping, types, syms)
		}
	case ir.ExStringPhysicalCast:
		c.Operand = b.substituteExpr(e.Operand, mapping, types, syms)
	}
	// Constants carry themselves as their folded value.
	if e.Value == e {
		c.Value = &c
	}
	return &c
}

func (b *Builder) substituteStmt(st *ir.Stmt, mapping map[ir.SymbolID]ir.SymbolID,
	types map[string]*ir.Type, syms map[string]ir.SymbolID) *ir.Stmt {
	if st == nil {
		return nil
	}
	c := *st
	switch st.Kind {
	case ir.StAssign:
		c.Target = b.substituteExpr(st.Target, mapping, types, syms)
		c.Value = b.substituteExpr(st.Value, mapping, types, syms)
	case ir.StCall:
		c.Sym = b.substituteSym(st.Sym, mapping, syms)
		c.Args = make([]ir.CallArg, len(st.Args))
		for i, a := range st.Args {
			c.Args[i] = ir.CallArg{Value: b.substituteExpr(a.Value, mapping, types, syms)}
		}
	}
	return &c
}

func binOpFor(op string) (ir.BinOpKind, bool) {
	switch op {
	case "+":
		return ir.OpAdd, true
	case "-":
		return ir.OpSub, true
	case "*":
		return ir.OpMul, true
	case "/":
		return ir.OpDiv, true
	case "**":
		return ir.OpPow, true
	}
	return 0, false
}

func operatorToken(op string) string {
	switch op {
	case "+":
		return "add"
	case "-":
		return "sub"
	case "*":
		return "mul"
	case "/":
		return "div"
	case "**":
		return "pow"
	case "==":
		return "eq"
	case "/=":
		return "ne"
	case "<":
		return "lt"
	case "<=":
		return "le"
	case ">":
		return "gt"
	case ">=":
		return "ge"
	}
	return "op"
}

func (b *Builder) exposeTemplateSymbol(local string, declID ir.SymbolID, tplName string) {
	if b.tbl.Lookup(b.scope, local).IsValid() {
		return
	}
	decl := b.tbl.Symbols.Get(declID)
	ext := &ir.Symbol{
		Kind: ir.SymbolExternal,
		Ext: &ir.ExternalData{
			Target:       declID,
			ModuleName:   b.owningModuleName(declID),
			ScopeNames:   []string{tplName},
			OriginalName: decl.Name,
		},
	}
	ext.Loc = decl.Loc
	b.tbl.Declare(b.scope, local, ext)
}

// buildTemplatedProcedure wraps a procedure carrying its own formal
// type parameters in an implicit single-member template.
func (b *Builder) buildTemplatedProcedure(p *ast.Procedure) error {
	folded := fold(p.Name)
	tplName := b.tbl.UniqueName(b.scope, "~template_"+folded)
	sym := &ir.Symbol{Kind: ir.SymbolTemplate, Tpl: &ir.TemplateData{Params: foldAll(p.TempArgs)}}
	id, err := b.declare(tplName, sym, p.Loc)
	if err != nil {
		return err
	}
	scope := b.tbl.NewScope(b.scope, id)
	b.tbl.Symbols.Get(id).Symtab = scope

	b.enter(scope)
	defer b.leave(scope)
	b.pushUnit(id)
	defer b.popUnit()

	for _, tp := range p.TempArgs {
		_, err := b.declare(fold(tp), &ir.Symbol{
			Kind: ir.SymbolVariable,
			Var:  &ir.VariableData{Type: &ir.Type{Kind: ir.TTypeParameter, Param: fold(tp)}},
		}, p.Loc)
		if err != nil {
			return err
		}
	}
	inner := *p
	inner.TempArgs = nil
	return b.buildProcedure(&inner, ir.DeftypeImplementation)
}

func foldAll(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = fold(n)
	}
	return out
}
