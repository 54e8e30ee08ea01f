// Package sema builds symbol tables from the syntax tree: it resolves
// declarations, imports, interfaces, derived types, templates and
// entry points into the arena-backed IR consumed by later phases.
package sema

import (
	"errors"
	"fmt"
	"strings"

	"ferrite/internal/ast"
	"ferrite/internal/config"
	"ferrite/internal/diag"
	"ferrite/internal/ir"
	"ferrite/internal/source"
)

// ErrAbort signals that the current program unit cannot be analyzed
// further. The diagnostic has already been reported when it surfaces.
var ErrAbort = errors.New("semantic analysis aborted")

// Loader materializes an already-resolved module into the table, for
// use statements referencing modules outside the current compilation.
type Loader interface {
	// Load returns the Module symbol for name, declared in the table's
	// root scope, or ir.NoSymbolID when the module is unknown.
	Load(tbl *ir.Table, name string) (ir.SymbolID, error)
}

// Oracle types and folds expressions on behalf of the scope builder.
// The default implementation is ConstFolder; a full compiler plugs in
// its body-resolution pass here.
type Oracle interface {
	Expr(tbl *ir.Table, scope ir.ScopeID, e ast.Expr) (*ir.Expr, error)
}

// Builder drives symbol-table construction for one translation unit.
type Builder struct {
	tbl    *ir.Table
	rep    diag.Reporter
	opts   config.Options
	loader Loader
	oracle Oracle

	scope      ir.ScopeID
	scopeStack []ir.ScopeID

	unit *unitCtx
}

// unitCtx is the per-program-unit traversal state. Module-level
// reconciliation maps live here and are materialized when the unit
// closes.
type unitCtx struct {
	sym      ir.SymbolID
	deps     *ir.NameSet
	implicit *implicitTable
	// implicitSeen guards against rules after an implicit none.
	implicitNone bool
	implicitSeen bool

	defaultAccess ir.Access
	// accessOverrides holds public/private statements naming symbols
	// that may not exist yet.
	accessOverrides map[string]ir.Access
	// defaultSave marks a bare SAVE statement covering the whole unit.
	defaultSave bool
	saveNames   map[string]bool

	// Deferred reconciliation, resolved at unit close.
	generics    map[string][]string
	genericLocs map[string]source.Span
	operators   map[string][]string
	assignments []string
	classProcs  []pendingBound

	// Entry statements gathered while walking procedure bodies.
	entries []*ast.Entry

	prev *unitCtx
}

type pendingBound struct {
	owner ir.SymbolID // the struct symbol
	bound *ast.BoundProc
}

// New creates a builder over tbl. loader may be nil when no external
// modules are referenced; oracle defaults to a constant folder.
func New(tbl *ir.Table, rep diag.Reporter, opts config.Options, loader Loader, oracle Oracle) *Builder {
	if oracle == nil {
		oracle = &ConstFolder{DefaultIntegerKind: opts.DefaultIntegerKind}
	}
	return &Builder{tbl: tbl, rep: rep, opts: opts, loader: loader, oracle: oracle, scope: tbl.Root}
}

// Table returns the table under construction.
func (b *Builder) Table() *ir.Table { return b.tbl }

// Build resolves every program unit of tu. Units that abort are
// skipped; remaining units are still processed when the options ask
// for it. The returned error is non-nil when any unit aborted.
func (b *Builder) Build(tu *ast.TranslationUnit) error {
	var failed bool
	for _, u := range tu.Units {
		if err := b.buildUnit(u); err != nil {
			if !errors.Is(err, ErrAbort) {
				return err
			}
			failed = true
			if !b.opts.ContinueCompilation {
				return ErrAbort
			}
			// Unwind to the root before the next unit.
			b.scope = b.tbl.Root
			b.scopeStack = b.scopeStack[:0]
			b.unit = nil
		}
	}
	if failed {
		return ErrAbort
	}
	return nil
}

func (b *Builder) buildUnit(u ast.ProgramUnit) error {
	switch u := u.(type) {
	case *ast.Module:
		return b.buildModule(u)
	case *ast.Submodule:
		return b.buildSubmodule(u)
	case *ast.Program:
		return b.buildProgram(u)
	case *ast.Procedure:
		return b.buildProcedure(u, ir.DeftypeImplementation)
	case *ast.BlockData:
		return b.buildBlockData(u)
	default:
		return b.abort(diag.SemaUnresolvedSymbol, u.Span(), "unsupported program unit")
	}
}

// fold normalizes an identifier for scope lookup. The language is case
// insensitive and ASCII-only.
func fold(name string) string { return strings.ToLower(name) }

// enter pushes scope as the current lookup scope.
func (b *Builder) enter(scope ir.ScopeID) {
	b.scopeStack = append(b.scopeStack, b.scope)
	b.scope = scope
}

// leave pops the current scope and checks the unwound value matches
// what the caller expects.
func (b *Builder) leave(expected ir.ScopeID) {
	if b.scope != expected {
		panic(fmt.Sprintf("sema: scope stack imbalance: leaving %d, expected %d", b.scope, expected))
	}
	n := len(b.scopeStack)
	b.scope = b.scopeStack[n-1]
	b.scopeStack = b.scopeStack[:n-1]
}

// pushUnit installs a fresh unit context for sym.
func (b *Builder) pushUnit(sym ir.SymbolID) {
	b.unit = &unitCtx{
		sym:             sym,
		deps:            ir.NewNameSet(),
		implicit:        b.inheritImplicit(),
		accessOverrides: make(map[string]ir.Access),
		saveNames:       make(map[string]bool),
		generics:        make(map[string][]string),
		genericLocs:     make(map[string]source.Span),
		operators:       make(map[string][]string),
		prev:            b.unit,
	}
}

func (b *Builder) popUnit() {
	sym := b.tbl.Symbols.Get(b.unit.sym)
	if sym != nil {
		if sym.Kind == ir.SymbolFunction {
			// The running set over-collects names consumed during
			// building (kind expressions, use statements); a function's
			// list must be exactly what its finished form references.
			sym.Deps = ir.CollectFunctionDeps(b.tbl, sym).Names()
		} else {
			sym.Deps = append(sym.Deps[:0], b.unit.deps.Names()...)
		}
	}
	b.unit = b.unit.prev
}

// abort reports an error diagnostic and returns ErrAbort.
func (b *Builder) abort(code diag.Code, sp source.Span, format string, args ...any) error {
	diag.ReportError(b.rep, code, sp, fmt.Sprintf(format, args...)).Emit()
	return ErrAbort
}

// warn reports a warning and continues.
func (b *Builder) warn(code diag.Code, sp source.Span, format string, args ...any) {
	diag.ReportWarning(b.rep, code, sp, fmt.Sprintf(format, args...)).Emit()
}

// declare registers sym in the current scope, aborting on redefinition.
func (b *Builder) declare(name string, sym *ir.Symbol, sp source.Span) (ir.SymbolID, error) {
	folded := fold(name)
	if prev := b.tbl.Lookup(b.scope, folded); prev.IsValid() {
		if id, ok := b.shadowable(prev, sym, folded); ok {
			return id, nil
		}
		prevSym := b.tbl.Symbols.Get(prev)
		rb := diag.ReportError(b.rep, diag.SemaRedefinition, sp,
			fmt.Sprintf("redefinition of %q", name))
		if prevSym != nil {
			rb.WithNote(prevSym.Loc, "previously declared here")
		}
		rb.Emit()
		return ir.NoSymbolID, ErrAbort
	}
	sym.Loc = sp
	if sym.Access == ir.AccessPublic && b.unit != nil {
		sym.Access = b.effectiveAccess(folded)
	}
	id := b.tbl.Declare(b.scope, folded, sym)
	return id, nil
}

// shadowable lets a function implementation replace a prior bare
// interface declaration or an external declaration of the same name.
// Inside a template or requirement, a procedure may also replace the
// type-parameter placeholder of its own formal name, turning the
// formal into a restricted-procedure skeleton.
func (b *Builder) shadowable(prev ir.SymbolID, next *ir.Symbol, name string) (ir.SymbolID, bool) {
	if next.Kind != ir.SymbolFunction {
		return ir.NoSymbolID, false
	}
	prevSym := b.tbl.Symbols.Get(prev)
	if prevSym != nil && prevSym.Kind == ir.SymbolVariable && prevSym.Var != nil &&
		prevSym.Var.Type != nil && prevSym.Var.Type.Kind == ir.TTypeParameter {
		id := b.tbl.Redeclare(b.scope, name, next)
		return id, id.IsValid()
	}
	if prevSym == nil || prevSym.Kind != ir.SymbolFunction || prevSym.Fn == nil {
		return ir.NoSymbolID, false
	}
	if prevSym.Fn.Deftype != ir.DeftypeInterface && prevSym.Fn.ABI != ir.ABIExternalUndefined {
		return ir.NoSymbolID, false
	}
	id := b.tbl.Redeclare(b.scope, name, next)
	return id, id.IsValid()
}

// effectiveAccess applies the unit's default access and any
// public/private statement naming the symbol.
func (b *Builder) effectiveAccess(folded string) ir.Access {
	if a, ok := b.unit.accessOverrides[folded]; ok {
		return a
	}
	return b.unit.defaultAccess
}

// resolve looks a name up through the scope chain, recording a
// dependency when the hit lives outside the current scope.
func (b *Builder) resolve(name string, sp source.Span) (ir.SymbolID, error) {
	folded := fold(name)
	id := b.tbl.Resolve(b.scope, folded)
	if !id.IsValid() {
		return ir.NoSymbolID, b.abort(diag.SemaUnresolvedSymbol, sp, "undeclared name %q", name)
	}
	return id, nil
}

// expr runs the oracle and records dependencies of the result.
func (b *Builder) expr(e ast.Expr) (*ir.Expr, error) {
	if e == nil {
		return nil, nil
	}
	out, err := b.oracle.Expr(b.tbl, b.scope, e)
	if err != nil {
		var oerr *OracleError
		if errors.As(err, &oerr) {
			return nil, b.abort(oerr.Code, oerr.Span, "%s", oerr.Msg)
		}
		return nil, b.abort(diag.SemaUnresolvedSymbol, e.Span(), "%v", err)
	}
	if b.unit != nil {
		ir.CollectExprDeps(b.tbl, b.scope, out, b.unit.deps)
	}
	return out, nil
}
