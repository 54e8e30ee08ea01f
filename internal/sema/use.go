package sema

import (
	"ferrite/internal/ast"
	"ferrite/internal/diag"
	"ferrite/internal/ir"
	"ferrite/internal/source"
)

// buildUse resolves a use statement: the module is located (loading it
// through the module loader if needed) and the requested symbols are
// re-exposed in the current scope as external aliases.
func (b *Builder) buildUse(u *ast.Use) error {
	modID, err := b.requireModule(u.Module, u.Loc)
	if err != nil {
		return err
	}
	mod := b.tbl.Symbols.Get(modID)
	b.unit.deps.Add(fold(u.Module))

	if len(u.Only) > 0 {
		for _, r := range u.Only {
			remote := r.Remote
			if remote == "" {
				remote = r.Local
			}
			if r.Operator {
				if err := b.importOperator(modID, fold(remote), r.Loc); err != nil {
					return err
				}
				continue
			}
			local := r.Local
			if local == "" {
				local = remote
			}
			if err := b.importSymbol(modID, fold(local), fold(remote), r.Loc); err != nil {
				return err
			}
		}
		return nil
	}

	// Wildcard import, honoring the rename list.
	renamed := make(map[string]string, len(u.Renames))
	for _, r := range u.Renames {
		renamed[fold(r.Remote)] = fold(r.Local)
	}
	sc := b.tbl.Scopes.Get(mod.Symtab)
	for _, remote := range sc.Order {
		target := b.tbl.Symbols.Get(sc.Get(remote))
		if target.Access == ir.AccessPrivate {
			continue
		}
		local := remote
		if l, ok := renamed[remote]; ok {
			local = l
		}
		if err := b.importSymbol(modID, local, remote, u.Loc); err != nil {
			return err
		}
	}
	return nil
}

// importSymbol aliases one module symbol into the current scope. When
// both sides are generic procedures or custom operators their
// candidate lists merge into a fresh local symbol instead.
func (b *Builder) importSymbol(modID ir.SymbolID, local, remote string, sp source.Span) error {
	mod := b.tbl.Symbols.Get(modID)
	remoteID := b.tbl.Lookup(mod.Symtab, remote)
	if !remoteID.IsValid() {
		return b.abort(diag.SemaUseSymbolNotFound, sp,
			"symbol %q not found in module %q", remote, mod.Name)
	}
	// Never alias an alias: point at the defining symbol.
	targetID := b.tbl.PastExternal(remoteID)
	target := b.tbl.Symbols.Get(targetID)

	if existing := b.tbl.Lookup(b.scope, local); existing.IsValid() {
		prevReal := b.tbl.Symbols.Get(b.tbl.PastExternal(existing))
		if prevReal != nil && target != nil &&
			prevReal.Kind == target.Kind &&
			(target.Kind == ir.SymbolGenericProcedure || target.Kind == ir.SymbolCustomOperator) {
			return b.mergeImportedGeneric(existing, targetID, local, sp)
		}
		if b.tbl.PastExternal(existing) == targetID {
			// Same symbol imported twice is harmless.
			return nil
		}
		b.warn(diag.SemaShadowedImport, sp,
			"imported symbol %q shadows an existing declaration", local)
		return nil
	}

	ext := &ir.Symbol{
		Kind:   ir.SymbolExternal,
		Access: ir.AccessPublic,
		Ext: &ir.ExternalData{
			Target:       targetID,
			ModuleName:   b.owningModuleName(targetID),
			ScopeNames:   b.interveningScopes(targetID),
			OriginalName: target.Name,
		},
	}
	ext.Loc = sp
	b.tbl.Declare(b.scope, local, ext)
	return nil
}

// importOperator merges an operator's candidates from the module into
// the unit's deferred operator map.
func (b *Builder) importOperator(modID ir.SymbolID, op string, sp source.Span) error {
	mod := b.tbl.Symbols.Get(modID)
	name := operatorSymbolName(op)
	remoteID := b.tbl.Lookup(mod.Symtab, name)
	if !remoteID.IsValid() {
		return b.abort(diag.SemaUseSymbolNotFound, sp,
			"operator %q not found in module %q", op, mod.Name)
	}
	return b.importSymbol(modID, name, name, sp)
}

// mergeImportedGeneric replaces the local binding with a fresh generic
// whose candidate list is the union of both sides.
func (b *Builder) mergeImportedGeneric(localID, importedID ir.SymbolID, name string, sp source.Span) error {
	local := b.tbl.Symbols.Get(b.tbl.PastExternal(localID))
	imported := b.tbl.Symbols.Get(importedID)
	merged := &ir.Symbol{
		Kind:   local.Kind,
		Access: b.tbl.Symbols.Get(localID).Access,
		Gen:    &ir.GenericData{Procs: mergeProcs(append([]ir.SymbolID(nil), local.Gen.Procs...), imported.Gen.Procs)},
	}
	merged.Loc = sp
	b.tbl.Redeclare(b.scope, name, merged)
	return nil
}

// owningModuleName walks up from a symbol to the module that truly
// defines it.
func (b *Builder) owningModuleName(id ir.SymbolID) string {
	sym := b.tbl.Symbols.Get(id)
	if sym == nil {
		return ""
	}
	scope := sym.Parent
	for scope.IsValid() {
		owner := b.tbl.OwnerSymbol(scope)
		if owner == nil {
			return ""
		}
		if owner.Kind == ir.SymbolModule {
			return owner.Name
		}
		scope = b.tbl.Scopes.Get(scope).Parent
	}
	return ""
}

// interveningScopes lists the scope-owner names between the defining
// module and the symbol, for aliases of nested symbols such as enum
// members or struct methods.
func (b *Builder) interveningScopes(id ir.SymbolID) []string {
	sym := b.tbl.Symbols.Get(id)
	if sym == nil {
		return nil
	}
	var rev []string
	scope := sym.Parent
	for scope.IsValid() {
		owner := b.tbl.OwnerSymbol(scope)
		if owner == nil || owner.Kind == ir.SymbolModule {
			break
		}
		rev = append(rev, owner.Name)
		scope = b.tbl.Scopes.Get(scope).Parent
	}
	out := make([]string, 0, len(rev))
	for i := len(rev) - 1; i >= 0; i-- {
		out = append(out, rev[i])
	}
	return out
}
