package copilot

// RefKind identifies what kind of entity a symbolic reference points at
type RefKind string

const (
	RefProgram   RefKind = "program"
	RefPhoneLine RefKind = "phone_line"
)

// RefEntry is a resolved symbolic reference
type RefEntry struct {
	Kind RefKind
	ID   int64
}

// RefRegistry maps symbolic names to entities created earlier in the same
// proposal execution. It is ephemeral: rebuilt fresh on every confirm attempt
// and never persisted.
type RefRegistry struct {
	entries map[string]RefEntry
}

// NewRefRegistry creates an empty registry
func NewRefRegistry() *RefRegistry {
	return &RefRegistry{entries: make(map[string]RefEntry)}
}

// Bind registers a symbolic name for a newly created entity. Rebinding an
// existing name is a validation error: refs are single-assignment within a
// proposal.
func (r *RefRegistry) Bind(name string, kind RefKind, id int64) error {
	if name == "" {
		return nil
	}
	if _, exists := r.entries[name]; exists {
		return Validationf("ref %q is already bound", name)
	}
	r.entries[name] = RefEntry{Kind: kind, ID: id}
	return nil
}

// Resolve looks a symbolic name up, checking the expected kind
func (r *RefRegistry) Resolve(name string, kind RefKind) (int64, error) {
	entry, ok := r.entries[name]
	if !ok {
		return 0, NotFoundf("ref %q does not resolve to anything in this proposal", name)
	}
	if entry.Kind != kind {
		return 0, Validationf("ref %q is a %s, expected %s", name, entry.Kind, kind)
	}
	return entry.ID, nil
}
