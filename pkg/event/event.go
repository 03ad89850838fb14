// Package event defines the normalized event representation shared by the
// whole broker: the kind taxonomy, the immutable Event value, and its JSON
// wire shape.
package event

import (
	"regexp"
	"sync"

	"github.com/agentstation/utc"
)

// Kind identifies the category of host state change an event describes.
type Kind string

// Kinds emitted by the built-in signal adapters.
const (
	// Document adapter kinds.
	KindDocumentCreated       Kind = "document_created"
	KindDocumentChanged       Kind = "document_changed"
	KindDocumentClosed        Kind = "document_closed"
	KindActiveDocumentChanged Kind = "active_document_changed"
	KindSelectionChanged      Kind = "selection_changed"

	// Command adapter kind.
	KindCommandExecuted Kind = "command_executed"

	// Error adapter kind.
	KindError Kind = "error"
)

// Wildcard matches every kind in a subscriber interest set.
const Wildcard = "*"

// Category groups kinds by the adapter family that produces them.
type Category string

// Categories used for per-category history sizing.
const (
	CategoryDocument Category = "document"
	CategoryCommand  Category = "command"
	CategoryError    Category = "error"
	CategoryCustom   Category = "custom"
)

// kindPattern constrains kind names to lowercase identifiers.
var kindPattern = regexp.MustCompile(`^[a-z0-9_.]+$`)

// adapterKinds is the fixed set declared by the built-in adapters.
var adapterKinds = map[Kind]Category{
	KindDocumentCreated:       CategoryDocument,
	KindDocumentChanged:       CategoryDocument,
	KindDocumentClosed:        CategoryDocument,
	KindActiveDocumentChanged: CategoryDocument,
	KindSelectionChanged:      CategoryDocument,
	KindCommandExecuted:       CategoryCommand,
	KindError:                 CategoryError,
}

// AdapterKinds returns the kinds declared by the built-in adapters.
func AdapterKinds() []Kind {
	kinds := make([]Kind, 0, len(adapterKinds))
	for k := range adapterKinds {
		kinds = append(kinds, k)
	}
	return kinds
}

// ValidName reports whether k is a syntactically valid kind name.
func (k Kind) ValidName() bool {
	return k != "" && kindPattern.MatchString(string(k))
}

// Category returns the history category k belongs to.
func (k Kind) Category() Category {
	if cat, ok := adapterKinds[k]; ok {
		return cat
	}
	return CategoryCustom
}

// KindRegistry tracks the kinds a broker instance may record: the fixed
// adapter-declared set plus custom kinds declared through the custom-emit
// path. Each manager owns one registry; there is deliberately no process-wide
// shared instance.
type KindRegistry struct {
	mu     sync.RWMutex
	custom map[Kind]struct{}
}

// NewKindRegistry creates a registry seeded with the adapter-declared kinds.
func NewKindRegistry() *KindRegistry {
	return &KindRegistry{custom: make(map[Kind]struct{})}
}

// Known reports whether k has been declared by an adapter or registered as a
// custom kind.
func (r *KindRegistry) Known(k Kind) bool {
	if _, ok := adapterKinds[k]; ok {
		return true
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.custom[k]
	return ok
}

// RegisterCustom declares a custom kind so events of that kind may be
// recorded and subscribed to. Adapter-declared kinds are a no-op.
func (r *KindRegistry) RegisterCustom(k Kind) {
	if _, ok := adapterKinds[k]; ok {
		return
	}
	r.mu.Lock()
	r.custom[k] = struct{}{}
	r.mu.Unlock()
}

// Kinds returns all known kinds: adapter-declared plus registered custom.
func (r *KindRegistry) Kinds() []Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]Kind, 0, len(adapterKinds)+len(r.custom))
	for k := range adapterKinds {
		kinds = append(kinds, k)
	}
	for k := range r.custom {
		kinds = append(kinds, k)
	}
	return kinds
}

// Event is an immutable record of something the host reported.
// The JSON shape is the wire contract consumed by remote subscribers.
type Event struct {
	Kind      Kind           `json:"type"`
	Timestamp utc.Time       `json:"timestamp"`
	Payload   map[string]any `json:"data"`
	Source    string         `json:"source,omitempty"`

	// Seq is a monotonic record sequence assigned when the event enters
	// history; it orders merged history snapshots across categories.
	Seq uint64 `json:"-"`
}

// New creates an event with the current UTC timestamp. The payload map is
// copied so later mutation by the caller cannot alter the event.
func New(kind Kind, payload map[string]any, source string) Event {
	return Event{
		Kind:      kind,
		Timestamp: utc.Now(),
		Payload:   copyPayload(payload),
		Source:    source,
	}
}

// Clone returns a copy of the event with its own payload map. Payload values
// are shared; they are treated as immutable by convention.
func (e Event) Clone() Event {
	e.Payload = copyPayload(e.Payload)
	return e
}

// WithSeq returns a copy of the event with the sequence number set.
func (e Event) WithSeq(seq uint64) Event {
	e.Seq = seq
	return e
}

func copyPayload(payload map[string]any) map[string]any {
	if payload == nil {
		return map[string]any{}
	}
	cp := make(map[string]any, len(payload))
	for k, v := range payload {
		cp[k] = v
	}
	return cp
}
