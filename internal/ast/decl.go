package ast

import "ferrite/internal/source"

// BaseType enumerates the syntactic type keywords.
type BaseType uint8

const (
	TypeNone BaseType = iota
	TypeInteger
	TypeReal
	TypeDoublePrecision
	TypeComplex
	TypeLogical
	TypeCharacter
	TypeDerived   // type(Name) / class(Name)
	TypeProcedure // procedure(Name) function pointer
)

// TypeSpec is a syntactic type reference, resolved by the scope builder.
type TypeSpec struct {
	Base BaseType
	Kind Expr   // kind expression, nil for default
	Len  Expr   // character length expression
	Name string // derived-type or procedure interface name
	// LenAssumed marks character(len=*), LenDeferred character(len=:).
	LenAssumed  bool
	LenDeferred bool
	// Class marks class(Name), the polymorphic form of TypeDerived.
	Class bool
	Loc   source.Span
}

// Intent of a dummy argument.
type Intent uint8

const (
	IntentUnspecified Intent = iota
	IntentIn
	IntentOut
	IntentInOut
)

// Access is the visibility of a declaration.
type Access uint8

const (
	AccessDefault Access = iota
	AccessPublic
	AccessPrivate
)

// DeclAttrs collects the attribute list of an entity declaration.
type DeclAttrs struct {
	Intent      Intent
	Access      Access
	Allocatable bool
	Pointer     bool
	Parameter   bool
	Save        bool
	Optional    bool
	Target      bool
	External    bool
	Dims        []DimSpec
}

// DimSpec is one dimension of an array specification.
type DimSpec struct {
	Lower Expr
	Upper Expr
	// Assumed marks `:` (deferred/assumed shape); AssumedSize marks `*`.
	Assumed     bool
	AssumedSize bool
}

// Entity is one declared name in an entity declaration.
type Entity struct {
	Name string
	Dims []DimSpec // per-entity dimensions override attribute dims
	Init Expr      // initialization / parameter value
	Len  Expr      // per-entity character length
	Loc  source.Span
}

// EntityDecl declares one or more entities of a common type.
type EntityDecl struct {
	Type  TypeSpec
	Attrs DeclAttrs
	Items []Entity
	Loc   source.Span
}

func (d *EntityDecl) Span() source.Span { return d.Loc }
func (d *EntityDecl) declNode()         {}

// DerivedType declares a structure type, optionally extending a parent.
type DerivedType struct {
	Name      string
	Extends   string
	Abstract  bool
	Private   bool
	Alignment Expr
	Members   []*EntityDecl
	Bound     []*BoundProc
	Generics  []*GenericBound
	Loc       source.Span
}

func (d *DerivedType) Span() source.Span { return d.Loc }
func (d *DerivedType) declNode()         {}

// BoundProc is a type-bound procedure binding.
type BoundProc struct {
	Name           string
	Implementation string // empty means same as Name
	PassName       string // pass(name); empty with Pass set means pass first arg
	Pass           bool
	NoPass         bool
	Deferred       bool
	Access         Access
	Loc            source.Span
}

// GenericBound is a generic binding inside a derived type, including
// operator and assignment forms (Name "operator(+)", "assignment(=)",
// "write(formatted)" and so on).
type GenericBound struct {
	Name  string
	Procs []string
	Loc   source.Span
}

// Union declares an overlapping-storage aggregate.
type Union struct {
	Name    string
	Members []*EntityDecl
	Loc     source.Span
}

func (u *Union) Span() source.Span { return u.Loc }
func (u *Union) declNode()         {}

// InterfaceKind distinguishes the three interface-block flavors.
type InterfaceKind uint8

const (
	InterfaceBare InterfaceKind = iota
	InterfaceNamed
	InterfaceOperator
	InterfaceAssignment
	InterfaceWrite // write(formatted)/write(unformatted) dispatch hooks
	InterfaceRead
)

// InterfaceBlock groups procedure declarations under a generic name,
// operator or as bare explicit interfaces.
type InterfaceBlock struct {
	Kind InterfaceKind
	Name string // generic name, operator token, or format kind
	// ModuleProcs lists `module procedure` entries.
	ModuleProcs []string
	// Bodies are full interface bodies (procedures with deftype
	// Interface).
	Bodies []*Procedure
	Loc    source.Span
}

func (i *InterfaceBlock) Span() source.Span { return i.Loc }
func (i *InterfaceBlock) declNode()         {}

// Enumerator is one named enum member with an optional explicit value.
type Enumerator struct {
	Name  string
	Value Expr
	Loc   source.Span
}

// EnumDecl declares an enumeration. Only bind(c) enums are supported.
type EnumDecl struct {
	Bind  *BindSpec
	Items []Enumerator
	Loc   source.Span
}

func (e *EnumDecl) Span() source.Span { return e.Loc }
func (e *EnumDecl) declNode()         {}

// CommonBlock is one named (or blank) common block.
type CommonBlock struct {
	Name    string // empty for blank common
	Objects []Entity
	Loc     source.Span
}

// CommonDecl declares one or more common blocks.
type CommonDecl struct {
	Blocks []CommonBlock
	Loc    source.Span
}

func (c *CommonDecl) Span() source.Span { return c.Loc }
func (c *CommonDecl) declNode()         {}

// SaveDecl is a SAVE statement. An empty Names list saves everything in
// the unit.
type SaveDecl struct {
	Names []string
	Loc   source.Span
}

func (s *SaveDecl) Span() source.Span { return s.Loc }
func (s *SaveDecl) declNode()         {}

// AccessDecl is a public/private statement. An empty Names list sets the
// unit's default access.
type AccessDecl struct {
	Access Access
	Names  []string
	Loc    source.Span
}

func (a *AccessDecl) Span() source.Span { return a.Loc }
func (a *AccessDecl) declNode()         {}

// TemplateDecl declares a parametric unit for later instantiation.
type TemplateDecl struct {
	Name     string
	Params   []string
	Requires []*RequireSpec
	Decls    []Decl
	Contains []*Procedure
	Loc      source.Span
}

func (t *TemplateDecl) Span() source.Span { return t.Loc }
func (t *TemplateDecl) declNode()         {}

// RequirementDecl declares a named set of obligations over formal
// parameters.
type RequirementDecl struct {
	Name     string
	Params   []string
	Decls    []Decl
	Contains []*Procedure
	Loc      source.Span
}

func (r *RequirementDecl) Span() source.Span { return r.Loc }
func (r *RequirementDecl) declNode()         {}

// RequireSpec applies a named requirement to template parameters.
type RequireSpec struct {
	Requirement string
	Args        []string
	Loc         source.Span
}

// InstArg supplies one concrete binding in an instantiate statement:
// either a type, a symbol name, or an intrinsic operator spelling.
type InstArg struct {
	Type     *TypeSpec
	Symbol   string
	Operator string
	Loc      source.Span
}

// InstantiateDecl monomorphizes a template with concrete arguments.
type InstantiateDecl struct {
	Template string
	Args     []InstArg
	// Only restricts and renames the instantiated symbols.
	Only []Rename
	Loc  source.Span
}

func (i *InstantiateDecl) Span() source.Span { return i.Loc }
func (i *InstantiateDecl) declNode()         {}
