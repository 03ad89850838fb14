// Package host defines the capability boundary between the broker and the
// application hosting it. The host's signal mechanism is treated as an opaque
// provider of raw callback arguments; nothing beyond the payload shapes below
// is assumed about it.
//
// Hosts invoke callbacks synchronously on their own control thread. Callback
// implementations registered through these interfaces must therefore never
// block and never panic outward; the broker's signal adapters take care of
// both before any other code runs.
package host

// DisconnectFunc detaches a previously connected callback. It is idempotent,
// and it must synchronize with the host: once it returns, no further
// callbacks are invoked.
type DisconnectFunc func()

// DocumentOp enumerates the document lifecycle transitions a host reports.
type DocumentOp string

// Document lifecycle operations.
const (
	DocumentCreated   DocumentOp = "created"
	DocumentChanged   DocumentOp = "changed"
	DocumentClosed    DocumentOp = "closed"
	DocumentActivated DocumentOp = "activated"
	SelectionChanged  DocumentOp = "selection"
)

// DocumentSignal is the raw callback argument for the document family.
type DocumentSignal struct {
	Op         DocumentOp
	DocumentID string

	// RecomputedIDs identifies the objects recomputed by a change, when the
	// host reports them.
	RecomputedIDs []string
}

// CommandSignal is the raw callback argument for the command family.
type CommandSignal struct {
	CommandID string
}

// ErrorSignal is the raw callback argument for the error family.
type ErrorSignal struct {
	Message string
	Source  string
	Stack   string
}

// DocumentSource provides document lifecycle signals from the host.
// A Connect failure is non-fatal to the broker; the adapter is marked
// unavailable and the rest of the system continues.
type DocumentSource interface {
	Name() string
	Connect(func(DocumentSignal)) (DisconnectFunc, error)
}

// CommandSource provides command execution signals from the host.
type CommandSource interface {
	Name() string
	Connect(func(CommandSignal)) (DisconnectFunc, error)
}

// ErrorSource provides error/exception signals from the host.
type ErrorSource interface {
	Name() string
	Connect(func(ErrorSignal)) (DisconnectFunc, error)
}
