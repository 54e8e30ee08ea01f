package sema

import (
	"ferrite/internal/ast"
	"ferrite/internal/diag"
	"ferrite/internal/ir"
	"ferrite/internal/source"
)

// masterSuffix and selectorName follow the conventional spellings for
// multiplexed entry points, so downstream passes and linked objects
// agree on them.
const (
	masterSuffix = "_main__lcompilers"
	selectorName = "entry__lcompilers"
)

// synthesizeEntries rewrites a procedure containing entry statements
// into one master procedure plus one thin stub per entry point. The
// master takes an integer selector as its first argument followed by
// the stable union of every entry's arguments; each stub forwards to
// the master with its selector value. EntryArgsMapping records, per
// entry name, where its arguments sit in the master's argument list.
func (b *Builder) synthesizeEntries(p *ast.Procedure, fnID ir.SymbolID) error {
	fnSym := b.tbl.Symbols.Get(fnID)
	procScope := fnSym.Symtab
	parent := fnSym.Parent

	type entryPoint struct {
		name string
		args []ast.Arg
		loc  source.Span
	}
	points := []entryPoint{{name: fold(p.Name), args: p.Args, loc: p.Loc}}
	for _, e := range b.unit.entries {
		for _, a := range e.Args {
			if a.Name == "" {
				return b.abort(diag.SemaAlternateReturn, a.Loc,
					"alternate returns are not supported")
			}
		}
		points = append(points, entryPoint{name: fold(e.Name), args: e.Args, loc: e.Loc})
	}

	// Stable union of all argument names across entry points.
	union := ir.NewNameSet()
	for _, pt := range points {
		for _, a := range pt.args {
			union.Add(fold(a.Name))
		}
	}

	// Master function in the parent scope.
	masterName := fold(p.Name) + masterSuffix
	master := &ir.Symbol{
		Kind: ir.SymbolFunction,
		Fn: &ir.FunctionData{
			Deftype:          ir.DeftypeImplementation,
			EntryArgsMapping: make(map[string][]int),
		},
	}
	master.Loc = p.Loc
	masterID := b.declareIn(parent, masterName, master)
	if !masterID.IsValid() {
		return b.abort(diag.SemaRedefinition, p.Loc, "redefinition of %q", masterName)
	}
	masterScope := b.tbl.NewScope(parent, masterID)
	b.tbl.Symbols.Get(masterID).Symtab = masterScope

	masterFn := b.tbl.Symbols.Get(masterID).Fn

	// Selector argument sits at position 0.
	selID := b.declareIn(masterScope, selectorName, &ir.Symbol{
		Kind: ir.SymbolVariable,
		Var: &ir.VariableData{
			Type:   ir.IntegerType(b.opts.DefaultIntegerKind),
			Intent: ir.IntentIn,
		},
	})
	masterFn.Args = append(masterFn.Args, ir.VarRef(selID, ir.IntegerType(b.opts.DefaultIntegerKind), p.Loc))

	// Position of each union argument in the master's list.
	position := map[string]int{selectorName: 0}
	for _, name := range union.Names() {
		ty := b.argType(procScope, name)
		argID := b.declareIn(masterScope, name, &ir.Symbol{
			Kind: ir.SymbolVariable,
			Var:  &ir.VariableData{Type: ty, Intent: ir.IntentInOut},
		})
		position[name] = len(masterFn.Args)
		masterFn.Args = append(masterFn.Args, ir.VarRef(argID, ty, p.Loc))
	}

	// The master gets a copy of every local of the original procedure,
	// with module aliases hoisted into the parent scope so all entry
	// points share one import. The body then moves over, rewired to the
	// copies.
	masterMap := b.duplicateLocals(procScope, masterScope, parent)
	for _, st := range fnSym.Fn.Body {
		masterFn.Body = append(masterFn.Body, b.substituteStmt(st, masterMap, nil, nil))
	}
	fnSym = b.tbl.Symbols.Get(fnID)
	fnSym.Fn.Body = nil
	masterSym := b.tbl.Symbols.Get(masterID)
	masterSym.Deps = ir.CollectFunctionDeps(b.tbl, masterSym).Names()

	// One stub per entry point, the original procedure included. The
	// original keeps its existing symbol; extra entries get new ones in
	// the parent scope.
	for i, pt := range points {
		mapping := []int{0}
		for _, a := range pt.args {
			mapping = append(mapping, position[fold(a.Name)])
		}
		masterFn.EntryArgsMapping[pt.name] = mapping

		var stubID ir.SymbolID
		if i == 0 {
			stubID = fnID
		} else {
			stub := &ir.Symbol{Kind: ir.SymbolFunction, Fn: &ir.FunctionData{}}
			stub.Loc = pt.loc
			stubID = b.declareIn(parent, pt.name, stub)
			if !stubID.IsValid() {
				return b.abort(diag.SemaRedefinition, pt.loc, "redefinition of %q", pt.name)
			}
			stubScope := b.tbl.NewScope(parent, stubID)
			b.tbl.Symbols.Get(stubID).Symtab = stubScope
			stubFn := b.tbl.Symbols.Get(stubID).Fn
			for _, a := range pt.args {
				ty := b.argType(procScope, fold(a.Name))
				argID := b.declareIn(stubScope, fold(a.Name), &ir.Symbol{
					Kind: ir.SymbolVariable,
					Var:  &ir.VariableData{Type: ty, Intent: ir.IntentInOut},
				})
				stubFn.Args = append(stubFn.Args, ir.VarRef(argID, ty, a.Loc))
			}
			// Every entry point carries the full local table of the
			// original procedure, not just its own arguments.
			b.duplicateLocals(procScope, stubScope, parent)
		}

		// The stub body is a single call to the master with the entry's
		// selector value and its arguments forwarded.
		stubSym := b.tbl.Symbols.Get(stubID)
		sel := ir.IntConst(int64(i+1), ir.IntegerType(b.opts.DefaultIntegerKind), pt.loc)
		call := &ir.Stmt{Kind: ir.StCall, Sym: masterID, Loc: pt.loc}
		call.Args = append(call.Args, ir.CallArg{Value: sel})
		for _, a := range stubSym.Fn.Args {
			call.Args = append(call.Args, ir.CallArg{Value: a})
		}
		stubSym.Fn.Body = []*ir.Stmt{call}
		if i > 0 {
			// The original procedure's list is recomputed when its unit
			// context pops; synthesized stubs get theirs here.
			stubSym.Deps = ir.CollectFunctionDeps(b.tbl, stubSym).Names()
		}
	}
	b.unit.entries = nil
	return nil
}

// duplicateLocals copies the variables of the original procedure's
// scope into dst, skipping names dst already declares (its arguments).
// Module aliases are not copied: they hoist into parent so every entry
// point resolves imports through one shared set. The returned mapping
// rewires statements moved out of src.
func (b *Builder) duplicateLocals(src, dst, parent ir.ScopeID) map[ir.SymbolID]ir.SymbolID {
	mapping := make(map[ir.SymbolID]ir.SymbolID)
	srcScope := b.tbl.Scopes.Get(src)
	dstScope := b.tbl.Scopes.Get(dst)
	parentScope := b.tbl.Scopes.Get(parent)
	for _, name := range srcScope.Order {
		oldID := srcScope.Get(name)
		old := b.tbl.Symbols.Get(oldID)
		if old == nil {
			continue
		}
		if dstScope.Has(name) {
			mapping[oldID] = dstScope.Get(name)
			continue
		}
		switch old.Kind {
		case ir.SymbolExternal:
			if parentScope.Has(name) {
				mapping[oldID] = parentScope.Get(name)
				continue
			}
			ext := *old.Ext
			hoisted := &ir.Symbol{Kind: ir.SymbolExternal, Access: old.Access, Ext: &ext}
			hoisted.Loc = old.Loc
			mapping[oldID] = b.declareIn(parent, name, hoisted)
		case ir.SymbolVariable:
			nv := b.newVariableClone(old, mapping, nil, nil)
			nid := b.tbl.Declare(dst, name, nv)
			b.recomputeVariableDeps(nid)
			mapping[oldID] = nid
		}
	}
	return mapping
}

// declareIn registers sym under name in an arbitrary scope, bypassing
// the current-scope cursor.
func (b *Builder) declareIn(scope ir.ScopeID, name string, sym *ir.Symbol) ir.SymbolID {
	sym.Name = name
	sym.Parent = scope
	if b.tbl.Scopes.Get(scope).Has(name) {
		return ir.NoSymbolID
	}
	return b.tbl.Declare(scope, name, sym)
}

// argType finds the declared type of an entry argument in the original
// procedure's scope, falling back to the unit's implicit rules.
func (b *Builder) argType(procScope ir.ScopeID, name string) *ir.Type {
	if id := b.tbl.Lookup(procScope, name); id.IsValid() {
		if sym := b.tbl.Symbols.Get(id); sym.Kind == ir.SymbolVariable && sym.Var.Type != nil {
			return sym.Var.Type
		}
	}
	if ty := b.unit.implicit.typeFor(name); ty != nil {
		return ty
	}
	return ir.IntegerType(b.opts.DefaultIntegerKind)
}
