package compiler

import "strings"

// Scope is the dotted path of the function being lowered. The first segment is
// the module name.
type Scope struct {
	segments []string
}

func (s *Scope) Push(name string) { s.segments = append(s.segments, name) }

// Reset drops every segment and starts a new path at root.
func (s *Scope) Reset(root string) {
	s.segments = append(s.segments[:0], root)
}

// Clone returns an independent copy, restored with Restore after a function
// body so that changes inside do not leak to siblings.
func (s *Scope) Clone() Scope {
	return Scope{segments: append([]string(nil), s.segments...)}
}

func (s *Scope) Restore(saved Scope) { s.segments = saved.segments }

// Depth is the number of segments.
func (s *Scope) Depth() int { return len(s.segments) }

// Qualify joins the path and id into a label.
func (s *Scope) Qualify(id string) string {
	if len(s.segments) == 0 {
		return id
	}
	return s.String() + "." + id
}

func (s *Scope) String() string { return strings.Join(s.segments, ".") }
