package ir

// Scope is one symbol table: a name-to-symbol mapping for a single
// lexical nesting level. Names are stored case-folded by the builder.
type Scope struct {
	// Counter is the process-unique identity of this scope, assigned
	// once at creation and never reused.
	Counter uint32
	Parent  ScopeID
	// Owner is the symbol whose own scope this is. Invalid only for the
	// root (translation unit) scope.
	Owner SymbolID
	names map[string]SymbolID
	// Order keeps insertion order for deterministic iteration.
	Order []string
}

// Get returns the symbol registered under name in this scope only.
func (s *Scope) Get(name string) SymbolID {
	return s.names[name]
}

// Has reports whether name is registered in this scope.
func (s *Scope) Has(name string) bool {
	_, ok := s.names[name]
	return ok
}

// Add registers a symbol under name. Returns false if the name is taken.
func (s *Scope) Add(name string, id SymbolID) bool {
	if _, ok := s.names[name]; ok {
		return false
	}
	s.names[name] = id
	s.Order = append(s.Order, name)
	return true
}

// Overwrite replaces (or adds) the binding for name.
func (s *Scope) Overwrite(name string, id SymbolID) {
	if _, ok := s.names[name]; !ok {
		s.Order = append(s.Order, name)
	}
	s.names[name] = id
}

// Erase removes the binding for name, if present.
func (s *Scope) Erase(name string) {
	if _, ok := s.names[name]; !ok {
		return
	}
	delete(s.names, name)
	for i, n := range s.Order {
		if n == name {
			s.Order = append(s.Order[:i], s.Order[i+1:]...)
			break
		}
	}
}

// Len returns the number of registered symbols.
func (s *Scope) Len() int { return len(s.names) }
