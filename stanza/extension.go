package stanza

import "sync"

// Extension decodes and re-encodes a single foreign-namespace payload
// attached to a stanza. Application code registers factories for the
// namespaces it cares about (vCard, MUC user, delayed delivery, ...) and
// decodes a child on demand via Session.DecodeExtension once its handler
// recognizes the (name, xmlns) pair among Stanza.Extensions; nothing is
// decoded unless a handler asks for it.
type Extension interface {
	// Name and XMLNS identify which child element this extension decodes.
	Name() string
	XMLNS() string
	// FromTag populates the extension's fields from its Tag representation.
	FromTag(t *Tag) error
	// ToTag serializes the extension back into a Tag.
	ToTag() *Tag
}

// Factory constructs a new, empty Extension value ready to have FromTag
// called on it.
type Factory func() Extension

// ExtensionRegistry maps (name, xmlns) pairs to the factories that decode
// them. It is safe for concurrent use, since extensions are typically
// registered once at startup from multiple init()s but looked up on demand
// from handler code running on whatever goroutine the handler is called on.
type ExtensionRegistry struct {
	mu sync.Mutex
	m  map[string]Factory
}

// NewExtensionRegistry returns an empty registry.
func NewExtensionRegistry() *ExtensionRegistry {
	return &ExtensionRegistry{m: make(map[string]Factory)}
}

// Register associates a factory with the given element name and namespace.
func (r *ExtensionRegistry) Register(name, xmlns string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.m[name+"|"+xmlns] = f
}

// Decode looks up a factory for t's (name, xmlns) and, if found, decodes t
// into a fresh Extension. It returns (nil, nil) for an unregistered pair.
func (r *ExtensionRegistry) Decode(t *Tag) (Extension, error) {
	r.mu.Lock()
	f, ok := r.m[t.Name+"|"+t.XMLNS]
	r.mu.Unlock()
	if !ok {
		return nil, nil
	}
	ext := f()
	if err := ext.FromTag(t); err != nil {
		return nil, err
	}
	return ext, nil
}
