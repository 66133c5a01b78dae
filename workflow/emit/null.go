package emit

// NullEmitter discards every event. It is the engine's default when no
// emitter is configured.
type NullEmitter struct{}

// NewNullEmitter creates a NullEmitter.
func NewNullEmitter() *NullEmitter {
	return &NullEmitter{}
}

// Emit does nothing.
func (n *NullEmitter) Emit(event Event) {}
