package ir

// TypeKind tags the variants of Type.
type TypeKind uint8

const (
	TInvalid TypeKind = iota
	TInteger
	TReal
	TComplex
	TLogical
	TString
	TArray
	TPointer
	TAllocatable
	TStruct
	TEnumT
	TUnionT
	TFunction
	TTypeParameter
)

func (k TypeKind) String() string {
	switch k {
	case TInteger:
		return "integer"
	case TReal:
		return "real"
	case TComplex:
		return "complex"
	case TLogical:
		return "logical"
	case TString:
		return "character"
	case TArray:
		return "array"
	case TPointer:
		return "pointer"
	case TAllocatable:
		return "allocatable"
	case TStruct:
		return "type"
	case TEnumT:
		return "enum"
	case TUnionT:
		return "union"
	case TFunction:
		return "procedure"
	case TTypeParameter:
		return "type-parameter"
	default:
		return "invalid"
	}
}

// StringLenKind classifies how a character type's length is known.
type StringLenKind uint8

const (
	// ExpressionLength has a compile-time or runtime length expression.
	ExpressionLength StringLenKind = iota
	// AssumedLength is character(len=*): length comes from the actual
	// argument.
	AssumedLength
	// DeferredLength is character(len=:): length set at allocation.
	DeferredLength
	// ImplicitLength has no stored length; valid only directly under a
	// string physical cast.
	ImplicitLength
)

// StringPhysical is the runtime representation of a character value.
type StringPhysical uint8

const (
	DescriptorString StringPhysical = iota
	CChar
)

// ArrayPhysical is the runtime representation of an array.
type ArrayPhysical uint8

const (
	DescriptorArray ArrayPhysical = iota
	FixedSizeArray
	PointerToDataArray
)

// Dimension is one array extent. A dimension is compile-time known when
// both bounds are set, deferred when both are nil.
type Dimension struct {
	Start  *Expr
	Length *Expr
}

// Deferred reports whether the dimension carries no bounds.
func (d Dimension) Deferred() bool { return d.Start == nil && d.Length == nil }

// Type is a tagged union over all IR types. Kind decides which fields
// are meaningful.
type Type struct {
	Kind TypeKind
	// KindBytes is the numeric kind (byte width) for intrinsic scalars.
	KindBytes int

	// String-specific.
	Len         *Expr
	LenKind     StringLenKind
	StrPhysical StringPhysical

	// Array-specific.
	Elem        *Type
	Dims        []Dimension
	ArrPhysical ArrayPhysical

	// Pointer/Allocatable wrap Elem.

	// Struct/Enum/Union reference their declaration.
	Decl SymbolID

	// TypeParameter name.
	Param string

	// Function signature type.
	ArgTypes []*Type
	RetType  *Type
}

// IntegerType returns an integer scalar of the given kind.
func IntegerType(kind int) *Type { return &Type{Kind: TInteger, KindBytes: kind} }

// RealType returns a real scalar of the given kind.
func RealType(kind int) *Type { return &Type{Kind: TReal, KindBytes: kind} }

// ComplexType returns a complex scalar of the given kind.
func ComplexType(kind int) *Type { return &Type{Kind: TComplex, KindBytes: kind} }

// LogicalType returns a logical scalar of the given kind.
func LogicalType(kind int) *Type { return &Type{Kind: TLogical, KindBytes: kind} }

// StringType returns a character type with an explicit length expression.
func StringType(kind int, length *Expr) *Type {
	return &Type{Kind: TString, KindBytes: kind, Len: length, LenKind: ExpressionLength}
}

// ArrayType wraps elem with the given dimensions.
func ArrayType(elem *Type, dims []Dimension) *Type {
	return &Type{Kind: TArray, Elem: elem, Dims: dims}
}

// PointerType wraps elem in a pointer.
func PointerType(elem *Type) *Type { return &Type{Kind: TPointer, Elem: elem} }

// AllocatableType wraps elem in an allocatable.
func AllocatableType(elem *Type) *Type { return &Type{Kind: TAllocatable, Elem: elem} }

// StructType references a struct declaration symbol.
func StructType(decl SymbolID) *Type { return &Type{Kind: TStruct, Decl: decl} }

// Unwrap strips Pointer and Allocatable wrappers.
func (t *Type) Unwrap() *Type {
	for t != nil && (t.Kind == TPointer || t.Kind == TAllocatable) {
		t = t.Elem
	}
	return t
}

// ElemType returns the scalar element type under arrays and wrappers.
func (t *Type) ElemType() *Type {
	t = t.Unwrap()
	for t != nil && t.Kind == TArray {
		t = t.Elem.Unwrap()
	}
	return t
}

// IsArray reports whether the type is an array once wrappers are
// stripped.
func (t *Type) IsArray() bool {
	u := t.Unwrap()
	return u != nil && u.Kind == TArray
}

// SameShape reports whether two types agree on kind, numeric kind and
// array rank. Used for enum member homogeneity and common-block checks.
func SameShape(a, b *Type) bool {
	if a == nil || b == nil {
		return a == b
	}
	a, b = a.Unwrap(), b.Unwrap()
	if a.Kind != b.Kind || a.KindBytes != b.KindBytes {
		return false
	}
	if a.Kind == TArray {
		return len(a.Dims) == len(b.Dims) && SameShape(a.Elem, b.Elem)
	}
	return true
}
