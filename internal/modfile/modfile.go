// Package modfile serializes resolved module interfaces to disk, so
// separate compilations can import a module without re-resolving its
// source. The format is a flat record list in msgpack, one record per
// symbol, with scope structure reconstructed from parent links.
package modfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vmihailenco/msgpack/v5"

	"ferrite/internal/ir"
	"ferrite/internal/source"
)

// Current schema version - increment when the record format changes.
const schemaVersion uint16 = 1

// Ext is the conventional file extension for serialized modules.
const Ext = ".fmod"

var errSchema = errors.New("modfile: unsupported schema version")

// Payload is the on-disk form of one resolved module.
type Payload struct {
	Schema uint16
	// Module is the module's folded name.
	Module string
	// Symbols lists every symbol of the module subtree in arena order;
	// index 0 is the module itself.
	Symbols []Record
}

// Record is one flattened symbol. Scope-local references use indices
// into Payload.Symbols; -1 means absent.
type Record struct {
	Name   string
	Kind   uint8
	Access uint8
	// Parent is the index of the symbol owning the scope this record
	// is registered in; -1 for the module record.
	Parent int
	Deps   []string

	// Variable payload.
	Type     *TypeRecord
	Intent   uint8
	Storage  uint8
	Presence uint8
	// Value is a folded constant rendered portably.
	IntValue  *int64
	RealValue *float64
	StrValue  *string
	BoolValue *bool

	// Function payload.
	ABI       uint8
	Deftype   uint8
	BindName  string
	Pure      bool
	Elemental bool
	// Args and Return reference records by index.
	Args   []int
	Return int
	// EntryMapping carries multiplexed entry-point argument positions.
	EntryMapping map[string][]int

	// Struct and enum payloads.
	Members      []string
	StructParent int
	EnumKind     uint8

	// Generic candidates by index.
	Procs []int

	// External alias payload. Aliases inside a serialized module can
	// only point at symbols of the same subtree.
	Target       int
	ModuleName   string
	ScopeNames   []string
	OriginalName string

	// Bound-method payload. Proc references the implementation record.
	Proc     int
	PassArg  string
	NoPass   bool
	Deferred bool
}

// TypeRecord is a portable rendering of an IR type.
type TypeRecord struct {
	Kind      uint8
	KindBytes int
	Elem      *TypeRecord
	// Rank is the dimension count for arrays; bounds are not part of a
	// module interface.
	Rank    int
	LenKind uint8
	// Len is the folded constant string length, -1 when not constant.
	Len int64
	// Decl indexes the declaring record for composite types.
	Decl  int
	Param string
}

// Save serializes the module symbol mod and its subtree to path,
// writing atomically via a temp file.
func Save(tbl *ir.Table, mod ir.SymbolID, path string) error {
	payload, err := Flatten(tbl, mod)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(path), "tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(f.Name())

	enc := msgpack.NewEncoder(f)
	if err := enc.Encode(payload); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(f.Name(), path)
}

// Load reads a serialized module from path and materializes it into
// tbl's root scope, returning the module symbol.
func Load(tbl *ir.Table, path string) (ir.SymbolID, error) {
	f, err := os.Open(path)
	if err != nil {
		return ir.NoSymbolID, err
	}
	defer f.Close()

	var payload Payload
	dec := msgpack.NewDecoder(f)
	if err := dec.Decode(&payload); err != nil {
		return ir.NoSymbolID, fmt.Errorf("%s: failed to decode: %w", path, err)
	}
	return Materialize(tbl, &payload)
}

// Flatten converts a module subtree into its portable payload.
func Flatten(tbl *ir.Table, mod ir.SymbolID) (*Payload, error) {
	modSym := tbl.Symbols.Get(mod)
	if modSym == nil || modSym.Kind != ir.SymbolModule {
		return nil, errors.New("modfile: not a module symbol")
	}
	fl := &flattener{
		tbl:   tbl,
		index: make(map[ir.SymbolID]int),
	}
	fl.visit(mod, -1)
	fl.resolveRefs()
	return &Payload{
		Schema:  schemaVersion,
		Module:  modSym.Name,
		Symbols: fl.records,
	}, nil
}

type flattener struct {
	tbl     *ir.Table
	records []Record
	ids     []ir.SymbolID
	index   map[ir.SymbolID]int
}

// visit appends sym's record and recurses into its scope.
func (f *flattener) visit(id ir.SymbolID, parent int) {
	sym := f.tbl.Symbols.Get(id)
	idx := len(f.records)
	f.index[id] = idx
	f.ids = append(f.ids, id)
	f.records = append(f.records, f.record(sym, parent))
	if sym.Symtab.IsValid() {
		sc := f.tbl.Scopes.Get(sym.Symtab)
		for _, name := range sc.Order {
			f.visit(sc.Get(name), idx)
		}
	}
}

func (f *flattener) record(sym *ir.Symbol, parent int) Record {
	r := Record{
		Name:         sym.Name,
		Kind:         uint8(sym.Kind),
		Access:       uint8(sym.Access),
		Parent:       parent,
		Deps:         sym.Deps,
		Return:       -1,
		StructParent: -1,
		Target:       -1,
		Proc:         -1,
	}
	switch sym.Kind {
	case ir.SymbolVariable:
		r.Type = typeRecord(f.tbl, f.index, sym.Var.Type)
		r.Intent = uint8(sym.Var.Intent)
		r.Storage = uint8(sym.Var.Storage)
		r.Presence = uint8(sym.Var.Presence)
		recordValue(&r, sym.Var.Value)
	case ir.SymbolFunction:
		r.ABI = uint8(sym.Fn.ABI)
		r.Deftype = uint8(sym.Fn.Deftype)
		r.BindName = sym.Fn.BindName
		r.Pure = sym.Fn.Pure
		r.Elemental = sym.Fn.Elemental
		r.EntryMapping = sym.Fn.EntryArgsMapping
	case ir.SymbolStruct, ir.SymbolUnion:
		r.Members = sym.Str.Members
	case ir.SymbolEnum:
		r.Members = sym.Enum.Members
		r.EnumKind = uint8(sym.Enum.ValueKind)
		r.ABI = uint8(sym.Enum.ABI)
	case ir.SymbolExternal:
		r.ModuleName = sym.Ext.ModuleName
		r.ScopeNames = sym.Ext.ScopeNames
		r.OriginalName = sym.Ext.OriginalName
	case ir.SymbolMethod:
		r.PassArg = sym.Mth.PassArg
		r.NoPass = sym.Mth.NoPass
		r.Deferred = sym.Mth.Deferred
	case ir.SymbolTemplate, ir.SymbolRequirement:
		// Template params travel in the shared name-list field.
		r.Members = sym.Tpl.Params
	}
	return r
}

// resolveRefs fills the index-based references that need the complete
// index map: function args, struct parents, generic candidates and
// alias targets.
func (f *flattener) resolveRefs() {
	for i, id := range f.ids {
		sym := f.tbl.Symbols.Get(id)
		r := &f.records[i]
		switch sym.Kind {
		case ir.SymbolFunction:
			for _, a := range sym.Fn.Args {
				if idx, ok := f.index[a.Sym]; ok {
					r.Args = append(r.Args, idx)
				}
			}
			if sym.Fn.Return != nil {
				if idx, ok := f.index[sym.Fn.Return.Sym]; ok {
					r.Return = idx
				}
			}
		case ir.SymbolStruct:
			if sym.Str.Parent.IsValid() {
				if idx, ok := f.index[sym.Str.Parent]; ok {
					r.StructParent = idx
				}
			}
		case ir.SymbolGenericProcedure, ir.SymbolCustomOperator:
			for _, p := range sym.Gen.Procs {
				if idx, ok := f.index[p]; ok {
					r.Procs = append(r.Procs, idx)
				}
			}
		case ir.SymbolExternal:
			if idx, ok := f.index[sym.Ext.Target]; ok {
				r.Target = idx
			}
		case ir.SymbolMethod:
			if idx, ok := f.index[sym.Mth.Proc]; ok {
				r.Proc = idx
			}
		case ir.SymbolVariable:
			if r.Type != nil {
				fixTypeDecl(f.tbl, f.index, sym.Var.Type, r.Type)
			}
		}
	}
}

func recordValue(r *Record, val *ir.Expr) {
	if val == nil {
		return
	}
	switch val.Kind {
	case ir.ExIntConst:
		v := val.Int
		r.IntValue = &v
	case ir.ExRealConst:
		v := val.Real
		r.RealValue = &v
	case ir.ExStringConst:
		v := val.Str
		r.StrValue = &v
	case ir.ExLogicalConst:
		v := val.Bool
		r.BoolValue = &v
	}
}

func typeRecord(tbl *ir.Table, index map[ir.SymbolID]int, t *ir.Type) *TypeRecord {
	if t == nil {
		return nil
	}
	r := &TypeRecord{
		Kind:      uint8(t.Kind),
		KindBytes: t.KindBytes,
		Rank:      len(t.Dims),
		LenKind:   uint8(t.LenKind),
		Len:       -1,
		Decl:      -1,
		Param:     t.Param,
	}
	if t.Len != nil {
		if v, ok := t.Len.ConstInt(); ok {
			r.Len = v
		}
	}
	// A non-constant length expression cannot cross the interface
	// boundary; the reloaded declaration takes its length from use.
	if t.Kind == ir.TString && t.LenKind == ir.ExpressionLength && r.Len < 0 {
		r.LenKind = uint8(ir.AssumedLength)
	}
	if t.Elem != nil {
		r.Elem = typeRecord(tbl, index, t.Elem)
	}
	return r
}

// fixTypeDecl patches composite declaration indices once the index map
// is complete.
func fixTypeDecl(tbl *ir.Table, index map[ir.SymbolID]int, t *ir.Type, r *TypeRecord) {
	if t == nil || r == nil {
		return
	}
	if t.Decl.IsValid() {
		if idx, ok := index[tbl.PastExternal(t.Decl)]; ok {
			r.Decl = idx
		}
	}
	fixTypeDecl(tbl, index, t.Elem, r.Elem)
}

// Materialize rebuilds the module subtree from a payload inside tbl.
func Materialize(tbl *ir.Table, payload *Payload) (ir.SymbolID, error) {
	if payload.Schema != schemaVersion {
		return ir.NoSymbolID, errSchema
	}
	if len(payload.Symbols) == 0 || ir.SymbolKind(payload.Symbols[0].Kind) != ir.SymbolModule {
		return ir.NoSymbolID, errors.New("modfile: payload has no module record")
	}
	if tbl.Lookup(tbl.Root, payload.Module).IsValid() {
		return ir.NoSymbolID, fmt.Errorf("modfile: module %q already present", payload.Module)
	}

	ids := make([]ir.SymbolID, len(payload.Symbols))

	// First pass: create symbols and scopes top-down. Records are in
	// pre-order, so a parent always precedes its children.
	for i := range payload.Symbols {
		r := &payload.Symbols[i]
		sym := &ir.Symbol{
			Kind:   ir.SymbolKind(r.Kind),
			Access: ir.Access(r.Access),
			Deps:   r.Deps,
		}
		switch sym.Kind {
		case ir.SymbolModule:
			sym.Mod = &ir.ModuleData{}
		case ir.SymbolFunction:
			sym.Fn = &ir.FunctionData{
				ABI:       ir.ABI(r.ABI),
				Deftype:   ir.Deftype(r.Deftype),
				BindName:  r.BindName,
				Pure:      r.Pure,
				Elemental: r.Elemental,

				EntryArgsMapping: r.EntryMapping,
			}
		case ir.SymbolVariable:
			sym.Var = &ir.VariableData{
				Intent:   ir.Intent(r.Intent),
				Storage:  ir.Storage(r.Storage),
				Presence: ir.Presence(r.Presence),
			}
		case ir.SymbolStruct, ir.SymbolUnion:
			sym.Str = &ir.StructData{Members: r.Members}
		case ir.SymbolEnum:
			sym.Enum = &ir.EnumData{
				Members:   r.Members,
				Type:      ir.IntegerType(4),
				ValueKind: ir.EnumValueKind(r.EnumKind),
				ABI:       ir.ABI(r.ABI),
			}
		case ir.SymbolGenericProcedure, ir.SymbolCustomOperator:
			sym.Gen = &ir.GenericData{}
		case ir.SymbolExternal:
			sym.Ext = &ir.ExternalData{
				ModuleName:   r.ModuleName,
				ScopeNames:   r.ScopeNames,
				OriginalName: r.OriginalName,
			}
		case ir.SymbolTemplate, ir.SymbolRequirement:
			sym.Tpl = &ir.TemplateData{Params: r.Members}
		case ir.SymbolMethod:
			sym.Mth = &ir.MethodData{
				PassArg:  r.PassArg,
				NoPass:   r.NoPass,
				Deferred: r.Deferred,
			}
		case ir.SymbolBlock, ir.SymbolAssociateBlock:
			sym.Blk = &ir.BlockBody{}
		}

		var scope ir.ScopeID
		if r.Parent < 0 {
			scope = tbl.Root
		} else {
			parent := tbl.Symbols.Get(ids[r.Parent])
			scope = parent.Symtab
		}
		id := tbl.Declare(scope, r.Name, sym)
		if !id.IsValid() {
			return ir.NoSymbolID, fmt.Errorf("modfile: duplicate symbol %q", r.Name)
		}
		if sym.Kind.HasOwnScope() {
			s := tbl.NewScope(scope, id)
			tbl.Symbols.Get(id).Symtab = s
		}
		ids[i] = id
	}

	// Second pass: resolve indices into symbol IDs and rebuild types
	// and constant values.
	for i := range payload.Symbols {
		r := &payload.Symbols[i]
		sym := tbl.Symbols.Get(ids[i])
		switch sym.Kind {
		case ir.SymbolFunction:
			for _, idx := range r.Args {
				arg := tbl.Symbols.Get(ids[idx])
				sym.Fn.Args = append(sym.Fn.Args, ir.VarRef(ids[idx], arg.Var.Type, arg.Loc))
			}
			if r.Return >= 0 {
				res := tbl.Symbols.Get(ids[r.Return])
				sym.Fn.Return = ir.VarRef(ids[r.Return], res.Var.Type, res.Loc)
			}
		case ir.SymbolStruct:
			if r.StructParent >= 0 {
				sym.Str.Parent = ids[r.StructParent]
			}
		case ir.SymbolGenericProcedure, ir.SymbolCustomOperator:
			for _, idx := range r.Procs {
				sym.Gen.Procs = append(sym.Gen.Procs, ids[idx])
			}
		case ir.SymbolExternal:
			if r.Target >= 0 {
				sym.Ext.Target = ids[r.Target]
			}
		case ir.SymbolMethod:
			if r.Proc >= 0 {
				sym.Mth.Proc = ids[r.Proc]
				sym.Mth.ProcName = payload.Symbols[r.Proc].Name
			}
		case ir.SymbolVariable:
			sym.Var.Type = rebuildType(r.Type, ids)
			rebuildValue(sym, r)
			// Array bounds are not serialized, so the recorded dependency
			// list may cite bound expressions the rebuilt type no longer
			// carries. Recompute from what survived the round trip.
			deps := ir.NewNameSet()
			ir.CollectTypeDeps(tbl, sym.Parent, sym.Var.Type, deps)
			ir.CollectExprDeps(tbl, sym.Parent, sym.Var.SymbolicValue, deps)
			sym.Deps = deps.Names()
		}
	}

	// Function argument types depend on variable types, so patch them
	// in a final pass.
	for i := range payload.Symbols {
		sym := tbl.Symbols.Get(ids[i])
		if sym.Kind != ir.SymbolFunction {
			continue
		}
		for _, a := range sym.Fn.Args {
			if arg := tbl.Symbols.Get(a.Sym); arg != nil && arg.Var != nil {
				a.Type = arg.Var.Type
			}
		}
		if sym.Fn.Return != nil {
			if res := tbl.Symbols.Get(sym.Fn.Return.Sym); res != nil && res.Var != nil {
				sym.Fn.Return.Type = res.Var.Type
			}
		}
		// Bodies are not serialized and local types were rebuilt above,
		// so the recorded list may disagree with what the rebuilt
		// function actually references. Recompute it the same way the
		// builder does.
		sym.Deps = ir.CollectFunctionDeps(tbl, sym).Names()
	}
	return ids[0], nil
}

func rebuildType(r *TypeRecord, ids []ir.SymbolID) *ir.Type {
	if r == nil {
		return nil
	}
	t := &ir.Type{
		Kind:      ir.TypeKind(r.Kind),
		KindBytes: r.KindBytes,
		LenKind:   ir.StringLenKind(r.LenKind),
		Param:     r.Param,
	}
	if t.Kind == ir.TArray {
		t.Dims = make([]ir.Dimension, r.Rank)
	}
	if t.Kind == ir.TString && t.LenKind == ir.ExpressionLength && r.Len >= 0 {
		t.Len = ir.IntConst(r.Len, ir.IntegerType(4), source.Span{})
	}
	if r.Decl >= 0 && r.Decl < len(ids) {
		t.Decl = ids[r.Decl]
	}
	t.Elem = rebuildType(r.Elem, ids)
	return t
}

func rebuildValue(sym *ir.Symbol, r *Record) {
	switch {
	case r.IntValue != nil:
		sym.Var.Value = ir.IntConst(*r.IntValue, sym.Var.Type, source.Span{})
	case r.RealValue != nil:
		sym.Var.Value = ir.RealConst(*r.RealValue, sym.Var.Type, source.Span{})
	case r.StrValue != nil:
		sym.Var.Value = ir.StringConst(*r.StrValue, sym.Var.Type, source.Span{})
	case r.BoolValue != nil:
		sym.Var.Value = ir.LogicalConst(*r.BoolValue, sym.Var.Type, source.Span{})
	}
	if sym.Var.Value != nil {
		sym.Var.SymbolicValue = sym.Var.Value
	}
}
