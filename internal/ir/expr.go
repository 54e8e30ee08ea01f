package ir

import "ferrite/internal/source"

// ExprKind tags the variants of Expr.
type ExprKind uint8

const (
	ExInvalid ExprKind = iota
	ExIntConst
	ExRealConst
	ExLogicalConst
	ExStringConst
	ExVar
	ExFunctionCall
	ExBinOp
	ExArrayConstant
	ExStructConstant
	ExStringPhysicalCast
)

// BinOpKind enumerates folded binary operators.
type BinOpKind uint8

const (
	OpAdd BinOpKind = iota
	OpSub
	OpMul
	OpDiv
	OpPow
)

// CallArg is one actual argument. A nil Value marks an omitted optional
// argument at the call site.
type CallArg struct {
	Value *Expr
}

// Expr is a tagged union over IR expressions. Every expression carries
// its type; Value holds the folded compile-time value when known.
type Expr struct {
	Kind ExprKind
	Type *Type
	// Value is the compile-time constant value of this expression, when
	// the constant oracle could fold it.
	Value *Expr
	Loc   source.Span

	// Constants.
	Int  int64
	Real float64
	Bool bool
	Str  string

	// Var and FunctionCall target.
	Sym SymbolID

	// FunctionCall.
	Args []CallArg

	// BinOp.
	Op   BinOpKind
	L, R *Expr

	// ArrayConstant / StructConstant elements.
	Elems []*Expr

	// StringPhysicalCast operand and representations.
	Operand *Expr
	FromRep StringPhysical
	ToRep   StringPhysical
}

// IntConst returns an integer constant expression.
func IntConst(v int64, t *Type, loc source.Span) *Expr {
	e := &Expr{Kind: ExIntConst, Int: v, Type: t, Loc: loc}
	e.Value = e
	return e
}

// RealConst returns a real constant expression.
func RealConst(v float64, t *Type, loc source.Span) *Expr {
	e := &Expr{Kind: ExRealConst, Real: v, Type: t, Loc: loc}
	e.Value = e
	return e
}

// LogicalConst returns a logical constant expression.
func LogicalConst(v bool, t *Type, loc source.Span) *Expr {
	e := &Expr{Kind: ExLogicalConst, Bool: v, Type: t, Loc: loc}
	e.Value = e
	return e
}

// StringConst returns a character constant expression.
func StringConst(v string, t *Type, loc source.Span) *Expr {
	e := &Expr{Kind: ExStringConst, Str: v, Type: t, Loc: loc}
	e.Value = e
	return e
}

// VarRef returns a variable reference expression.
func VarRef(sym SymbolID, t *Type, loc source.Span) *Expr {
	return &Expr{Kind: ExVar, Sym: sym, Type: t, Loc: loc}
}

// IsConst reports whether the expression has a folded value.
func (e *Expr) IsConst() bool { return e != nil && e.Value != nil }

// ConstInt returns the folded integer value, if any.
func (e *Expr) ConstInt() (int64, bool) {
	if e == nil || e.Value == nil || e.Value.Kind != ExIntConst {
		return 0, false
	}
	return e.Value.Int, true
}

// StmtKind tags the variants of Stmt.
type StmtKind uint8

const (
	StNop StmtKind = iota
	StAssign
	StCall
	StBlockCall
)

// Stmt is a tagged union over IR statements. Only the statement forms
// the resolution phase inspects are distinguished; everything else is a
// Nop placeholder preserving position.
type Stmt struct {
	Kind StmtKind
	Loc  source.Span

	// Assign.
	Target *Expr
	Value  *Expr

	// Call target and arguments.
	Sym  SymbolID
	Args []CallArg

	// BlockCall.
	Block SymbolID
	// LabelID is the numeric label of the block call, or -1.
	LabelID int
}
