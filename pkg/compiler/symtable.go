package compiler

import (
	"fmt"
	"sort"
	"strings"

	"juc/pkg/lang"
)

// Symbol is a variable known to the generator. Locals live Offset bytes below
// the frame base; statics live at Label in the data section.
type Symbol struct {
	Name   string
	Type   lang.Type
	Offset int
	Label  string
	Static bool
}

type frame struct {
	// Stack of block scopes, innermost last.
	scopes []map[string]Symbol
	offset int // bytes allocated so far
}

// SymbolTable maps identifiers to frame slots and static labels.
// Every function gets its own frame; blocks push scopes within it and
// inner declarations shadow outer ones until the block closes.
type SymbolTable struct {
	statics map[string]Symbol
	frames  []*frame
}

func NewSymbolTable() *SymbolTable {
	return &SymbolTable{statics: make(map[string]Symbol)}
}

// EnterFunction opens a fresh frame with a zero offset. Frames of enclosing
// functions are kept and become invisible until ExitFunction.
func (s *SymbolTable) EnterFunction() {
	s.frames = append(s.frames, &frame{scopes: []map[string]Symbol{make(map[string]Symbol)}})
}

// ExitFunction closes the current frame and returns its size rounded up to
// the 16-byte stack alignment.
func (s *SymbolTable) ExitFunction() int {
	if len(s.frames) == 0 {
		return 0
	}
	size := s.FrameSize()
	s.frames = s.frames[:len(s.frames)-1]
	return size
}

func (s *SymbolTable) EnterScope() {
	if f := s.top(); f != nil {
		f.scopes = append(f.scopes, make(map[string]Symbol))
	}
}

// ExitScope forgets the innermost block's names. Their slots stay allocated.
func (s *SymbolTable) ExitScope() {
	if f := s.top(); f != nil && len(f.scopes) > 1 {
		f.scopes = f.scopes[:len(f.scopes)-1]
	}
}

// InFunction reports whether a frame is open.
func (s *SymbolTable) InFunction() bool { return len(s.frames) > 0 }

// Offset is the number of bytes allocated in the current frame.
func (s *SymbolTable) Offset() int {
	if f := s.top(); f != nil {
		return f.offset
	}
	return 0
}

// FrameSize is the current offset rounded up to a multiple of 16.
func (s *SymbolTable) FrameSize() int {
	return (s.Offset() + 15) &^ 15
}

// Declare allocates the next slot for name in the innermost scope:
// offset = previous offset + size of typ. Redeclaring a name in the same
// scope takes a new slot and replaces the entry.
func (s *SymbolTable) Declare(name string, typ lang.Type) (Symbol, error) {
	f := s.top()
	if f == nil {
		return Symbol{}, fmt.Errorf("%w: local variable %q outside a function", ErrUnsupported, name)
	}
	size := typ.SizeOf()
	if size <= 0 {
		return Symbol{}, fmt.Errorf("%w: variable %q has no size", ErrInternal, name)
	}
	f.offset += size
	sym := Symbol{Name: name, Type: typ, Offset: f.offset}
	f.scopes[len(f.scopes)-1][name] = sym
	return sym, nil
}

// Temp reserves an unnamed 8-byte slot in the current frame and returns its
// offset. Temporaries hold values across a sub-expression so that rsp keeps
// its call alignment.
func (s *SymbolTable) Temp() (int, error) {
	f := s.top()
	if f == nil {
		return 0, fmt.Errorf("%w: expression temporary outside a function", ErrUnsupported)
	}
	f.offset = (f.offset+7)&^7 + 8
	return f.offset, nil
}

// DeclareStatic records a data-section variable. Statics are visible from
// every function of the file.
func (s *SymbolTable) DeclareStatic(name, label string, typ lang.Type) Symbol {
	sym := Symbol{Name: name, Type: typ, Label: label, Static: true}
	s.statics[name] = sym
	return sym
}

// Lookup searches the scopes of the current frame innermost first, then the
// statics.
func (s *SymbolTable) Lookup(name string) (Symbol, bool) {
	if f := s.top(); f != nil {
		for i := len(f.scopes) - 1; i >= 0; i-- {
			if sym, ok := f.scopes[i][name]; ok {
				return sym, true
			}
		}
	}
	sym, ok := s.statics[name]
	return sym, ok
}

func (s *SymbolTable) top() *frame {
	if len(s.frames) == 0 {
		return nil
	}
	return s.frames[len(s.frames)-1]
}

// String returns a deterministically ordered dump of the table.
func (s *SymbolTable) String() string {
	var sb strings.Builder
	if len(s.statics) > 0 {
		sb.WriteString("Statics:\n")
		for _, name := range sortedNames(s.statics) {
			sym := s.statics[name]
			fmt.Fprintf(&sb, "  %-20s  Label: %s (Type: %s)\n", name, sym.Label, sym.Type)
		}
	} else {
		sb.WriteString("Statics: (empty)\n")
	}

	if f := s.top(); f != nil {
		fmt.Fprintf(&sb, "Frame (Offset: %d):\n", f.offset)
		for i, scope := range f.scopes {
			fmt.Fprintf(&sb, "  Scope %d:\n", i)
			for _, name := range sortedNames(scope) {
				sym := scope[name]
				fmt.Fprintf(&sb, "    %-20s  Offset: %d (Type: %s)\n", name, sym.Offset, sym.Type)
			}
		}
	}
	return sb.String()
}

func sortedNames(m map[string]Symbol) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
