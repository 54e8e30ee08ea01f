package ir

import "ferrite/internal/source"

// SymbolKind classifies the semantic meaning of a symbol.
type SymbolKind uint8

const (
	SymbolInvalid SymbolKind = iota
	SymbolModule
	SymbolProgram
	SymbolFunction
	SymbolVariable
	SymbolStruct
	SymbolUnion
	SymbolEnum
	SymbolGenericProcedure
	SymbolCustomOperator
	SymbolExternal
	SymbolTemplate
	SymbolRequirement
	SymbolMethod // type-bound (class) procedure declaration
	SymbolBlock
	SymbolAssociateBlock
)

func (k SymbolKind) String() string {
	switch k {
	case SymbolModule:
		return "module"
	case SymbolProgram:
		return "program"
	case SymbolFunction:
		return "function"
	case SymbolVariable:
		return "variable"
	case SymbolStruct:
		return "struct"
	case SymbolUnion:
		return "union"
	case SymbolEnum:
		return "enum"
	case SymbolGenericProcedure:
		return "generic-procedure"
	case SymbolCustomOperator:
		return "custom-operator"
	case SymbolExternal:
		return "external-symbol"
	case SymbolTemplate:
		return "template"
	case SymbolRequirement:
		return "requirement"
	case SymbolMethod:
		return "struct-method"
	case SymbolBlock:
		return "block"
	case SymbolAssociateBlock:
		return "associate-block"
	default:
		return "invalid"
	}
}

// HasOwnScope reports whether symbols of this kind own a child scope.
func (k SymbolKind) HasOwnScope() bool {
	switch k {
	case SymbolModule, SymbolProgram, SymbolFunction, SymbolStruct,
		SymbolUnion, SymbolEnum, SymbolTemplate, SymbolRequirement,
		SymbolBlock, SymbolAssociateBlock:
		return true
	}
	return false
}

// Access is symbol visibility.
type Access uint8

const (
	AccessPublic Access = iota
	AccessPrivate
)

// Intent of a variable.
type Intent uint8

const (
	IntentLocal Intent = iota
	IntentIn
	IntentOut
	IntentInOut
	IntentReturnVar
	IntentUnspecified
)

// Storage class of a variable.
type Storage uint8

const (
	StorageDefault Storage = iota
	StorageSave
	StorageParameter
)

// Presence of a dummy argument.
type Presence uint8

const (
	PresenceRequired Presence = iota
	PresenceOptional
)

// ABI tags how a function is defined.
type ABI uint8

const (
	ABISource ABI = iota
	ABIExternalUndefined
	ABIBindC
)

// Deftype distinguishes implementations from bare interface declarations.
type Deftype uint8

const (
	DeftypeImplementation Deftype = iota
	DeftypeInterface
)

// EnumValueKind classifies the numbering discipline of an enum.
type EnumValueKind uint8

const (
	EnumIntegerConsecutiveFromZero EnumValueKind = iota
	EnumIntegerUnique
	EnumIntegerNotUnique
	EnumNonInteger
)

// Symbol is one named entity in the IR. Kind decides which of the
// per-kind payloads is set.
type Symbol struct {
	Name string
	Kind SymbolKind
	// Parent is the scope this symbol is registered in.
	Parent ScopeID
	// Symtab is the symbol's own scope for scope-owning kinds.
	Symtab ScopeID
	Access Access
	// Deps is the deduplicated list of external symbol names this
	// symbol's definition references, for topological ordering.
	Deps []string
	Loc  source.Span

	Mod  *ModuleData
	Fn   *FunctionData
	Var  *VariableData
	Str  *StructData
	Enum *EnumData
	Gen  *GenericData
	Ext  *ExternalData
	Tpl  *TemplateData
	Mth  *MethodData
	Blk  *BlockBody
}

// ModuleData is the payload of Module symbols.
type ModuleData struct {
	// ParentModule names the parent for submodules.
	ParentModule  string
	Intrinsic     bool
	HasSubmodules bool
}

// FunctionData is the payload of Function symbols. It covers both
// function and subroutine forms; a subroutine has a nil Return.
type FunctionData struct {
	// Args are Var expressions referencing dummy-argument variables in
	// the function's own scope, in declaration order.
	Args []*Expr
	// Return is a Var expression referencing the result variable, nil
	// for subroutines.
	Return     *Expr
	ABI        ABI
	Deftype    Deftype
	BindName   string
	Pure       bool
	Elemental  bool
	ModuleProc bool
	Body       []*Stmt
	// EntryArgsMapping maps each entry name of a multiplexed procedure
	// to the indices of its arguments inside the master's unified
	// argument list.
	EntryArgsMapping map[string][]int
}

// VariableData is the payload of Variable symbols.
type VariableData struct {
	Type    *Type
	Intent  Intent
	Storage Storage
	// Value is the compile-time value; SymbolicValue the unevaluated
	// initializer expression.
	Value         *Expr
	SymbolicValue *Expr
	// TypeDecl links struct-typed variables to their type declaration.
	TypeDecl SymbolID
	Presence Presence
}

// StructData is the payload of Struct and Union symbols.
type StructData struct {
	// Members lists member names in declaration order.
	Members []string
	// Parent is the single-inheritance base struct, if any.
	Parent    SymbolID
	Abstract  bool
	Alignment *Expr
}

// EnumData is the payload of Enum symbols.
type EnumData struct {
	Members []string
	// Type is the common element type of all members.
	Type      *Type
	ValueKind EnumValueKind
	ABI       ABI
}

// GenericData is the payload of GenericProcedure and CustomOperator
// symbols: the ordered candidate set for call-site resolution.
type GenericData struct {
	Procs []SymbolID
}

// ExternalData is the payload of ExternalSymbol aliases.
type ExternalData struct {
	// Target is the real symbol defined in another scope.
	Target SymbolID
	// ModuleName is the name of the unit truly owning Target.
	ModuleName string
	// ScopeNames is the path of nested scope names between the module
	// scope and the target, outermost first.
	ScopeNames []string
	// OriginalName is Target's name in its defining scope.
	OriginalName string
}

// Require records one requirement obligation applied to template
// parameters.
type Require struct {
	Requirement string
	Args        []string
}

// TemplateData is the payload of Template and Requirement symbols.
type TemplateData struct {
	Params   []string
	Requires []Require
}

// MethodData is the payload of struct-method declarations.
type MethodData struct {
	// Proc is the implementing Function symbol.
	Proc SymbolID
	// ProcName is the implementation's declared name, for diagnostics.
	ProcName string
	// PassArg names the passed-object dummy argument; empty with
	// NoPass false means the first argument.
	PassArg  string
	NoPass   bool
	Deferred bool
}

// BlockBody is the payload of Block and AssociateBlock symbols.
type BlockBody struct {
	Body []*Stmt
}
