package ast

import "ferrite/internal/source"

// Entry declares an alternate entry point inside a procedure body.
type Entry struct {
	Name string
	Args []Arg
	Loc  source.Span
}

func (e *Entry) Span() source.Span { return e.Loc }
func (e *Entry) stmtNode()         {}

// Assign is `target = value`.
type Assign struct {
	Target Expr
	Value  Expr
	Loc    source.Span
}

func (a *Assign) Span() source.Span { return a.Loc }
func (a *Assign) stmtNode()         {}

// CallStmt invokes a subroutine.
type CallStmt struct {
	Name string
	Args []Expr
	Loc  source.Span
}

func (c *CallStmt) Span() source.Span { return c.Loc }
func (c *CallStmt) stmtNode()         {}

// DataStmt assigns compile-time initial values to objects.
type DataStmt struct {
	Objects []string
	Values  []Expr
	Loc     source.Span
}

func (d *DataStmt) Span() source.Span { return d.Loc }
func (d *DataStmt) stmtNode()         {}

// Opaque is any statement the symbol-table phase does not inspect; the
// statement-typing oracle handles it during body resolution.
type Opaque struct {
	Loc source.Span
}

func (o *Opaque) Span() source.Span { return o.Loc }
func (o *Opaque) stmtNode()         {}
