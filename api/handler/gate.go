package handler

// Gate admits one extraction at a time. Callers that find it held are
// turned away instead of queued.
type Gate struct {
	slot chan struct{}
}

// NewGate returns an open gate.
func NewGate() *Gate {
	return &Gate{slot: make(chan struct{}, 1)}
}

// TryAcquire takes the gate if it is free.
func (g *Gate) TryAcquire() bool {
	select {
	case g.slot <- struct{}{}:
		return true
	default:
		return false
	}
}

// Release frees the gate. It must follow a successful TryAcquire.
func (g *Gate) Release() {
	<-g.slot
}

// Busy reports whether an extraction holds the gate.
func (g *Gate) Busy() bool {
	return len(g.slot) > 0
}
