package checkout

// EventKind classifies controller notifications.
type EventKind string

const (
	// EventCartModified fires after an add changes the cart. It is a UI hint
	// (e.g. open the cart panel), decoupled from the state mutation itself.
	EventCartModified EventKind = "cart_modified"
)

// Event is an in-process notification emitted by the controller.
type Event struct {
	Kind EventKind
	Line CartLine
}

// Listener receives controller events. Listeners run synchronously after the
// mutation commits, outside the state lock.
type Listener func(Event)
