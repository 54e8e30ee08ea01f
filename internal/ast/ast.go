// Package ast defines the input syntax tree consumed by the semantic
// phases. The tree is produced by an external parser; the semantic core
// never mutates it.
package ast

import "ferrite/internal/source"

// Node is the common interface of every syntax node.
type Node interface {
	Span() source.Span
}

// ProgramUnit is a top-level construct: module, submodule, program,
// subroutine, function or block data.
type ProgramUnit interface {
	Node
	programUnitNode()
}

// Decl is a specification-part construct inside a program unit.
type Decl interface {
	Node
	declNode()
}

// Stmt is an execution-part statement. The symbol-table phase only
// inspects the statement kinds it needs (ENTRY, DATA, calls, assignment);
// everything else arrives as Opaque.
type Stmt interface {
	Node
	stmtNode()
}

// Expr is a syntactic expression, resolved on demand through the typing
// oracle.
type Expr interface {
	Node
	exprNode()
}

// TranslationUnit is the root of one parsed compilation.
type TranslationUnit struct {
	Units []ProgramUnit
	Loc   source.Span
}

func (t *TranslationUnit) Span() source.Span { return t.Loc }

// Module is a reusable program unit with public/private visibility.
type Module struct {
	Name     string
	Implicit []*ImplicitStmt
	Uses     []*Use
	Decls    []Decl
	Contains []ProgramUnit
	Loc      source.Span
}

func (m *Module) Span() source.Span { return m.Loc }
func (m *Module) programUnitNode()  {}

// Submodule extends a parent module, inheriting its whole scope.
type Submodule struct {
	Name     string
	Parent   string
	Implicit []*ImplicitStmt
	Uses     []*Use
	Decls    []Decl
	Contains []ProgramUnit
	Loc      source.Span
}

func (s *Submodule) Span() source.Span { return s.Loc }
func (s *Submodule) programUnitNode()  {}

// Program is the entry unit. It is never importable.
type Program struct {
	Name     string
	Implicit []*ImplicitStmt
	Uses     []*Use
	Decls    []Decl
	Body     []Stmt
	Contains []ProgramUnit
	Loc      source.Span
}

func (p *Program) Span() source.Span { return p.Loc }
func (p *Program) programUnitNode()  {}

// Procedure covers both subroutine and function forms.
type Procedure struct {
	Name       string
	IsFunction bool
	Args       []Arg
	// TempArgs are template formal parameters; a non-empty list makes
	// this a templated procedure.
	TempArgs   []string
	ResultName string    // function result variable; empty means Name
	ReturnType *TypeSpec // explicit prefix return type, if any
	Pure       bool
	Elemental  bool
	ModuleProc bool // declared with the `module` prefix
	Bind       *BindSpec
	Implicit   []*ImplicitStmt
	Uses       []*Use
	Decls      []Decl
	Body       []Stmt
	Contains   []ProgramUnit
	Loc        source.Span
}

func (p *Procedure) Span() source.Span { return p.Loc }
func (p *Procedure) programUnitNode()  {}

// Arg is one dummy argument. An empty Name denotes an alternate return
// marker, which the semantic core rejects.
type Arg struct {
	Name string
	Loc  source.Span
}

// BlockData is a legacy unit initializing common-block storage.
type BlockData struct {
	Name  string
	Decls []Decl
	Body  []Stmt
	Loc   source.Span
}

func (b *BlockData) Span() source.Span { return b.Loc }
func (b *BlockData) programUnitNode()  {}

// BindSpec is a bind(lang, name=...) attribute.
type BindSpec struct {
	Lang string
	Name string
	Loc  source.Span
}

// Use imports symbols from another module. An empty Only list with no
// Renames is a wildcard import.
type Use struct {
	Module  string
	Only    []Rename // `only:` allow-list; Remote may equal Local
	Renames []Rename // rename list outside only:
	Loc     source.Span
}

func (u *Use) Span() source.Span { return u.Loc }

// Rename maps a local name to the remote declaration name.
type Rename struct {
	Local  string
	Remote string
	// Operator marks `operator(op)` entries in only: lists.
	Operator bool
	Loc      source.Span
}

// ImplicitStmt is either `implicit none` or a list of letter-range specs.
type ImplicitStmt struct {
	None  bool
	Specs []ImplicitSpec
	Loc   source.Span
}

func (i *ImplicitStmt) Span() source.Span { return i.Loc }

// ImplicitSpec maps letter ranges to a type.
type ImplicitSpec struct {
	Type   TypeSpec
	Ranges []LetterRange
}

// LetterRange is an inclusive range of identifier initials. Start == End
// for a single letter.
type LetterRange struct {
	Start byte
	End   byte
}
