package ast

import "ferrite/internal/source"

// IntLit is an integer literal.
type IntLit struct {
	Value int64
	Loc   source.Span
}

func (l *IntLit) Span() source.Span { return l.Loc }
func (l *IntLit) exprNode()         {}

// RealLit is a real literal.
type RealLit struct {
	Value float64
	Loc   source.Span
}

func (l *RealLit) Span() source.Span { return l.Loc }
func (l *RealLit) exprNode()         {}

// StrLit is a character literal.
type StrLit struct {
	Value string
	Loc   source.Span
}

func (l *StrLit) Span() source.Span { return l.Loc }
func (l *StrLit) exprNode()         {}

// LogicalLit is .true. or .false.
type LogicalLit struct {
	Value bool
	Loc   source.Span
}

func (l *LogicalLit) Span() source.Span { return l.Loc }
func (l *LogicalLit) exprNode()         {}

// Ident is a bare name reference.
type Ident struct {
	Name string
	Loc  source.Span
}

func (i *Ident) Span() source.Span { return i.Loc }
func (i *Ident) exprNode()         {}

// BinOpKind enumerates the binary operators the constant oracle folds.
type BinOpKind uint8

const (
	OpAdd BinOpKind = iota
	OpSub
	OpMul
	OpDiv
	OpPow
)

// BinOp is a binary operation.
type BinOp struct {
	Op   BinOpKind
	L, R Expr
	Loc  source.Span
}

func (b *BinOp) Span() source.Span { return b.Loc }
func (b *BinOp) exprNode()         {}

// CallExpr references a function call (or array element, disambiguated
// by the typing oracle).
type CallExpr struct {
	Name string
	Args []Expr
	Loc  source.Span
}

func (c *CallExpr) Span() source.Span { return c.Loc }
func (c *CallExpr) exprNode()         {}
