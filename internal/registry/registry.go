// Package registry tracks subscribers, their interest filters, and their
// notification sinks, and performs the filtered fan-out of events.
package registry

import (
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/forgeline/signalbus/pkg/errors"
	"github.com/forgeline/signalbus/pkg/event"
	"github.com/forgeline/signalbus/pkg/sink"
)

// subscriber is one registered consumer. The registry owns these records
// exclusively; callers only ever see copies (SubscriberInfo).
type subscriber struct {
	id           string
	wildcard     bool
	interest     map[event.Kind]struct{}
	sink         sink.Sink
	registeredAt time.Time

	// lastActivity is unix nanos, updated on every successful delivery
	// attempt and on subscription changes.
	lastActivity atomic.Int64

	delivered  atomic.Uint64
	sinkErrors atomic.Uint64
}

func (s *subscriber) touch() {
	s.lastActivity.Store(time.Now().UnixNano())
}

func (s *subscriber) matches(kind event.Kind) bool {
	if s.wildcard {
		return true
	}
	_, ok := s.interest[kind]
	return ok
}

// SubscriberInfo is a read-only snapshot of one subscriber's state.
type SubscriberInfo struct {
	ID           string    `json:"id"`
	Interest     []string  `json:"interest"`
	RegisteredAt time.Time `json:"registered_at"`
	LastActivity time.Time `json:"last_activity"`
	Delivered    uint64    `json:"delivered"`
	SinkErrors   uint64    `json:"sink_errors"`
}

// Registry is the subscriber registry. All methods are safe for concurrent
// use; delivery iterates an immutable snapshot so register/unregister can
// never corrupt an in-flight fan-out.
type Registry struct {
	kinds  *event.KindRegistry
	logger *zerolog.Logger

	mu   sync.RWMutex
	subs map[string]*subscriber
}

// New creates an empty registry validating interest against kinds.
func New(kinds *event.KindRegistry, logger *zerolog.Logger) *Registry {
	return &Registry{
		kinds:  kinds,
		logger: logger,
		subs:   make(map[string]*subscriber),
	}
}

// Register adds a subscriber. The id must be non-empty and unused; interest
// must be the wildcard "*" or a non-empty set of known kinds.
func (r *Registry) Register(id string, interest []string, snk sink.Sink) error {
	if id == "" {
		return errors.NewValidationError("id", id, "subscriber id must not be empty")
	}
	if snk == nil {
		return errors.NewValidationError("sink", nil, "sink must not be nil")
	}

	wildcard, kinds, err := r.parseInterest(interest)
	if err != nil {
		return err
	}

	sub := &subscriber{
		id:           id,
		wildcard:     wildcard,
		interest:     kinds,
		sink:         snk,
		registeredAt: time.Now(),
	}
	sub.touch()

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.subs[id]; exists {
		return errors.NewDuplicateError("subscriber", id)
	}
	r.subs[id] = sub

	r.logger.Info().
		Str("subscriber_id", id).
		Strs("interest", interest).
		Int("total_subscribers", len(r.subs)).
		Msg("Subscriber registered")
	return nil
}

// UpdateSubscription atomically replaces a subscriber's interest set.
func (r *Registry) UpdateSubscription(id string, interest []string) error {
	wildcard, kinds, err := r.parseInterest(interest)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	sub, ok := r.subs[id]
	if !ok {
		return errors.NewNotFoundError("subscriber", id)
	}

	// Replace the record wholesale so a concurrent delivery snapshot keeps
	// seeing a consistent interest set.
	replacement := &subscriber{
		id:           sub.id,
		wildcard:     wildcard,
		interest:     kinds,
		sink:         sub.sink,
		registeredAt: sub.registeredAt,
	}
	replacement.delivered.Store(sub.delivered.Load())
	replacement.sinkErrors.Store(sub.sinkErrors.Load())
	replacement.touch()
	r.subs[id] = replacement

	r.logger.Info().
		Str("subscriber_id", id).
		Strs("interest", interest).
		Msg("Subscription updated")
	return nil
}

// Unregister removes a subscriber immediately. Deliveries already dispatched
// may still complete; no new delivery to this id starts after return.
func (r *Registry) Unregister(id string) error {
	r.mu.Lock()
	sub, ok := r.subs[id]
	if ok {
		delete(r.subs, id)
	}
	total := len(r.subs)
	r.mu.Unlock()

	if !ok {
		return errors.NewNotFoundError("subscriber", id)
	}

	if err := sub.sink.Close(); err != nil {
		r.logger.Warn().Err(err).Str("subscriber_id", id).Msg("Sink close failed")
	}

	r.logger.Info().
		Str("subscriber_id", id).
		Int("total_subscribers", total).
		Msg("Subscriber unregistered")
	return nil
}

// Deliver fans the event out to every subscriber whose interest matches its
// kind. A failing or panicking sink is isolated: it is logged and counted,
// and delivery continues to the remaining subscribers. Returns the number of
// successful deliveries.
func (r *Registry) Deliver(ev event.Event) int {
	r.mu.RLock()
	matched := make([]*subscriber, 0, len(r.subs))
	for _, sub := range r.subs {
		if sub.matches(ev.Kind) {
			matched = append(matched, sub)
		}
	}
	r.mu.RUnlock()

	delivered := 0
	for _, sub := range matched {
		if r.send(sub, ev) {
			delivered++
		}
	}
	return delivered
}

// send pushes one event into one sink with panic isolation.
func (r *Registry) send(sub *subscriber, ev event.Event) (ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			ok = false
			sub.sinkErrors.Add(1)
			r.logger.Error().
				Str("subscriber_id", sub.id).
				Str("event_type", string(ev.Kind)).
				Interface("panic", rec).
				Str("stack", string(debug.Stack())).
				Msg("Subscriber sink panicked")
		}
	}()

	sub.touch()
	if err := sub.sink.Send(ev); err != nil {
		sub.sinkErrors.Add(1)
		r.logger.Warn().
			Err(errors.NewDispatchError(sub.id, string(ev.Kind), err)).
			Str("subscriber_id", sub.id).
			Str("event_type", string(ev.Kind)).
			Msg("Failed to deliver event to subscriber")
		return false
	}

	sub.delivered.Add(1)
	return true
}

// CleanupInactive removes subscribers whose last activity is older than the
// threshold and returns the number removed.
func (r *Registry) CleanupInactive(threshold time.Duration) int {
	cutoff := time.Now().Add(-threshold).UnixNano()

	r.mu.Lock()
	var stale []*subscriber
	for id, sub := range r.subs {
		if sub.lastActivity.Load() < cutoff {
			stale = append(stale, sub)
			delete(r.subs, id)
		}
	}
	total := len(r.subs)
	r.mu.Unlock()

	for _, sub := range stale {
		if err := sub.sink.Close(); err != nil {
			r.logger.Warn().Err(err).Str("subscriber_id", sub.id).Msg("Sink close failed")
		}
		r.logger.Info().
			Str("subscriber_id", sub.id).
			Msg("Inactive subscriber removed")
	}

	if len(stale) > 0 {
		r.logger.Info().
			Int("removed", len(stale)).
			Int("total_subscribers", total).
			Msg("Inactivity sweep complete")
	}
	return len(stale)
}

// Count returns the number of registered subscribers.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs)
}

// Snapshot returns read-only copies of every subscriber record.
func (r *Registry) Snapshot() []SubscriberInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]SubscriberInfo, 0, len(r.subs))
	for _, sub := range r.subs {
		interest := make([]string, 0, len(sub.interest))
		if sub.wildcard {
			interest = append(interest, event.Wildcard)
		} else {
			for k := range sub.interest {
				interest = append(interest, string(k))
			}
		}
		infos = append(infos, SubscriberInfo{
			ID:           sub.id,
			Interest:     interest,
			RegisteredAt: sub.registeredAt,
			LastActivity: time.Unix(0, sub.lastActivity.Load()),
			Delivered:    sub.delivered.Load(),
			SinkErrors:   sub.sinkErrors.Load(),
		})
	}
	return infos
}

// Clear removes every subscriber, closing their sinks. Used at shutdown.
func (r *Registry) Clear() {
	r.mu.Lock()
	subs := r.subs
	r.subs = make(map[string]*subscriber)
	r.mu.Unlock()

	for _, sub := range subs {
		if err := sub.sink.Close(); err != nil {
			r.logger.Warn().Err(err).Str("subscriber_id", sub.id).Msg("Sink close failed")
		}
	}

	if len(subs) > 0 {
		r.logger.Info().Int("cleared", len(subs)).Msg("Subscriber registry cleared")
	}
}

// parseInterest validates an interest declaration.
func (r *Registry) parseInterest(interest []string) (wildcard bool, kinds map[event.Kind]struct{}, err error) {
	if len(interest) == 0 {
		return false, nil, errors.NewValidationError("interest", interest, "interest set must not be empty")
	}

	kinds = make(map[event.Kind]struct{}, len(interest))
	for _, raw := range interest {
		if raw == event.Wildcard {
			return true, nil, nil
		}
		kind := event.Kind(raw)
		if !r.kinds.Known(kind) {
			return false, nil, errors.NewValidationError("interest", raw, "unknown event kind")
		}
		kinds[kind] = struct{}{}
	}
	return false, kinds, nil
}
