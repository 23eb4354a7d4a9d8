package hir

// scope is one lexical frame of block-introduced bindings. Frames chain
// through parent so lookups resolve to the innermost binding; shadowing an
// outer name is legal and simply wins from the inside out.
type scope struct {
	parent *scope
	names  map[string]struct{}
}

// push creates a child scope binding the given names.
func (s *scope) push(names ...string) *scope {
	child := &scope{parent: s, names: make(map[string]struct{}, len(names))}
	for _, n := range names {
		child.names[n] = struct{}{}
	}
	return child
}

// bound reports whether name resolves to a block-introduced binding in
// this scope or any enclosing one.
func (s *scope) bound(name string) bool {
	for cur := s; cur != nil; cur = cur.parent {
		if _, ok := cur.names[name]; ok {
			return true
		}
	}
	return false
}
