package lang

import (
	"fmt"
	"strconv"
	"strings"
)

// TypeKind enumerates the value types of the language.
type TypeKind int

const (
	Byte       TypeKind = iota // 1 byte
	Integer                    // 4 bytes
	BigInteger                 // 8 bytes
	Str                        // NUL-terminated bytes, held by pointer
	StaticArray                // T[] : length taken from the initializer
	FixedArray                 // T[n]
)

// PointerSize is the frame slot size of a Str value.
const PointerSize = 8

// Type describes the storage of a variable. Elem is set for both array kinds.
type Type struct {
	Kind TypeKind
	Elem *Type
	Len  int
}

func NewType(k TypeKind) Type { return Type{Kind: k} }

func NewArray(elem Type, n int) Type { return Type{Kind: FixedArray, Elem: &elem, Len: n} }

func NewStaticArray(elem Type) Type { return Type{Kind: StaticArray, Elem: &elem} }

// IsArray reports whether t holds several elements.
func (t Type) IsArray() bool { return t.Kind == FixedArray || t.Kind == StaticArray }

// ElemType returns the element type of an array, or t itself for scalars.
func (t Type) ElemType() Type {
	if t.IsArray() && t.Elem != nil {
		return *t.Elem
	}
	return t
}

// SizeOf is the number of bytes t occupies in a stack frame.
func (t Type) SizeOf() int {
	switch t.Kind {
	case Byte:
		return 1
	case Integer:
		return 4
	case BigInteger:
		return 8
	case Str:
		return PointerSize
	case StaticArray:
		return t.ElemType().SizeOf()
	case FixedArray:
		return t.ElemType().SizeOf() * t.Len
	}
	return 0
}

// Directive is the data-definition directive for one element of t.
func (t Type) Directive() string {
	switch t.ElemType().Kind {
	case Byte, Str:
		return "db"
	case BigInteger:
		return "dq"
	default:
		return "dd"
	}
}

func (t Type) String() string {
	switch t.Kind {
	case Byte:
		return "byte"
	case Integer:
		return "int"
	case BigInteger:
		return "bigint"
	case Str:
		return "str"
	case StaticArray:
		return t.ElemType().String() + "[]"
	case FixedArray:
		return fmt.Sprintf("%s[%d]", t.ElemType(), t.Len)
	}
	return fmt.Sprintf("Type(%d)", int(t.Kind))
}

// ParseType reads the source spelling of a type: byte, int, bigint, str,
// T[n] or T[].
func ParseType(s string) (Type, error) {
	s = strings.TrimSpace(s)
	if base, rest, ok := strings.Cut(s, "["); ok {
		elem, err := ParseType(base)
		if err != nil {
			return Type{}, err
		}
		if elem.IsArray() {
			return Type{}, fmt.Errorf("nested array type %q", s)
		}
		size, found := strings.CutSuffix(rest, "]")
		if !found {
			return Type{}, fmt.Errorf("unterminated array type %q", s)
		}
		if size == "" {
			return NewStaticArray(elem), nil
		}
		n, err := strconv.Atoi(size)
		if err != nil || n <= 0 {
			return Type{}, fmt.Errorf("invalid array length in %q", s)
		}
		return NewArray(elem, n), nil
	}

	switch s {
	case "byte":
		return NewType(Byte), nil
	case "int":
		return NewType(Integer), nil
	case "bigint":
		return NewType(BigInteger), nil
	case "str":
		return NewType(Str), nil
	}
	return Type{}, fmt.Errorf("unknown type %q", s)
}
