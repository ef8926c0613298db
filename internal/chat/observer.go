package chat

// Observer receives engine notifications for instrumentation. Calls are made
// while the engine lock is held and must not call back into the Engine.
type Observer interface {
	OnlineChanged(count int)
	MessageStored(m Message)
	EventDropped(kind EventKind)
	ConnectionRejected(err error)
}

type nopObserver struct{}

func (nopObserver) OnlineChanged(int)        {}
func (nopObserver) MessageStored(Message)    {}
func (nopObserver) EventDropped(EventKind)   {}
func (nopObserver) ConnectionRejected(error) {}
