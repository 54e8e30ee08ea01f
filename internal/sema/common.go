package sema

import (
	"ferrite/internal/ast"
	"ferrite/internal/diag"
	"ferrite/internal/ir"
	"ferrite/internal/source"
)

// commonModuleName is the synthetic module collecting every common
// block of the compilation as struct-typed globals.
const commonModuleName = "~common_blocks"

// buildCommon lowers common blocks into shared storage: each block
// becomes a struct in a synthetic global module plus one instance
// variable, and every declaring unit aliases the instance. Member
// layout must agree across units.
func (b *Builder) buildCommon(d *ast.CommonDecl) error {
	modID, err := b.commonModule(d.Loc)
	if err != nil {
		return err
	}
	for i := range d.Blocks {
		if err := b.buildCommonBlock(modID, &d.Blocks[i], d.Loc); err != nil {
			return err
		}
	}
	return nil
}

// commonModule returns the synthetic module, creating it on first use.
func (b *Builder) commonModule(sp source.Span) (ir.SymbolID, error) {
	if id := b.tbl.Lookup(b.tbl.Root, commonModuleName); id.IsValid() {
		return id, nil
	}
	sym := &ir.Symbol{Kind: ir.SymbolModule, Mod: &ir.ModuleData{}}
	sym.Loc = sp
	id := b.tbl.Declare(b.tbl.Root, commonModuleName, sym)
	scope := b.tbl.NewScope(b.tbl.Root, id)
	b.tbl.Symbols.Get(id).Symtab = scope
	return id, nil
}

func (b *Builder) buildCommonBlock(modID ir.SymbolID, blk *ast.CommonBlock, sp source.Span) error {
	blockName := fold(blk.Name)
	if blockName == "" {
		blockName = "~blank"
	}
	mod := b.tbl.Symbols.Get(modID)
	modScope := mod.Symtab
	structName := "common_block_" + blockName

	// Resolve member types in the declaring unit's scope. Undeclared
	// objects fall back to implicit typing.
	type member struct {
		name string
		ty   *ir.Type
		loc  source.Span
	}
	members := make([]member, 0, len(blk.Objects))
	for i := range blk.Objects {
		obj := &blk.Objects[i]
		folded := fold(obj.Name)
		var ty *ir.Type
		if id := b.tbl.Lookup(b.scope, folded); id.IsValid() {
			local := b.tbl.Symbols.Get(id)
			if local.Kind != ir.SymbolVariable {
				return b.abort(diag.SemaCommonBlockInconsistent, obj.Loc,
					"common object %q is not a variable", obj.Name)
			}
			ty = local.Var.Type
		}
		if ty == nil {
			ty = b.unit.implicit.typeFor(folded)
		}
		if ty == nil {
			return b.abort(diag.SemaNoImplicitType, obj.Loc,
				"common object %q has no type", obj.Name)
		}
		members = append(members, member{name: folded, ty: ty, loc: obj.Loc})
	}

	structID := b.tbl.Lookup(modScope, structName)
	if structID.IsValid() {
		// The block already exists: the member layout must agree.
		str := b.tbl.Symbols.Get(structID)
		if len(str.Str.Members) != len(members) {
			return b.abort(diag.SemaCommonBlockInconsistent, sp,
				"common block /%s/ declared with %d objects, previously %d",
				blockName, len(members), len(str.Str.Members))
		}
		for i, m := range members {
			prevID := b.tbl.Lookup(str.Symtab, str.Str.Members[i])
			prev := b.tbl.Symbols.Get(prevID)
			if !ir.SameShape(prev.Var.Type, m.ty) {
				return b.abort(diag.SemaCommonBlockInconsistent, m.loc,
					"common block /%s/ object %d differs in type from an earlier declaration",
					blockName, i+1)
			}
		}
	} else {
		str := &ir.Symbol{Kind: ir.SymbolStruct, Str: &ir.StructData{}}
		str.Loc = sp
		structID = b.tbl.Declare(modScope, structName, str)
		strScope := b.tbl.NewScope(modScope, structID)
		b.tbl.Symbols.Get(structID).Symtab = strScope
		for _, m := range members {
			mem := &ir.Symbol{Kind: ir.SymbolVariable, Var: &ir.VariableData{Type: m.ty}}
			mem.Loc = m.loc
			b.tbl.Declare(strScope, m.name, mem)
		}
		s := b.tbl.Symbols.Get(structID)
		s.Str.Members = append(s.Str.Members, b.tbl.Scopes.Get(strScope).Order...)

		inst := &ir.Symbol{
			Kind: ir.SymbolVariable,
			Deps: []string{structName},
			Var: &ir.VariableData{
				Type:     ir.StructType(structID),
				Storage:  ir.StorageSave,
				TypeDecl: structID,
			},
		}
		inst.Loc = sp
		b.tbl.Declare(modScope, blockName, inst)
	}

	// The declaring unit sees the shared instance through an alias.
	instID := b.tbl.Lookup(modScope, blockName)
	aliasName := b.tbl.UniqueName(b.scope, "~common_"+blockName)
	ext := &ir.Symbol{
		Kind: ir.SymbolExternal,
		Ext: &ir.ExternalData{
			Target:       instID,
			ModuleName:   commonModuleName,
			OriginalName: blockName,
		},
	}
	ext.Loc = sp
	b.tbl.Declare(b.scope, aliasName, ext)
	b.unit.deps.Add(commonModuleName)
	return nil
}
