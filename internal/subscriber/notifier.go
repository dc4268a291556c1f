package subscriber

import (
	"sort"
	"sync"

	"github.com/stacklok/syncstate/internal/resource"
)

// Delta reports the resources whose synchronization state may have changed
type Delta struct {
	SubscriberID string
	// Changed is sorted and free of duplicates
	Changed []resource.Path
}

// Listener receives deltas. It is called synchronously from the goroutine
// that refreshed and must not block.
type Listener func(Delta)

// notifier fans deltas out to listeners. Listener panics are not recovered.
type notifier struct {
	mu        sync.Mutex
	nextID    int
	listeners map[int]Listener
}

func newNotifier() *notifier {
	return &notifier{listeners: make(map[int]Listener)}
}

// add registers l and returns a function removing it again
func (n *notifier) add(l Listener) func() {
	n.mu.Lock()
	defer n.mu.Unlock()
	id := n.nextID
	n.nextID++
	n.listeners[id] = l

	var once sync.Once
	return func() {
		once.Do(func() {
			n.mu.Lock()
			delete(n.listeners, id)
			n.mu.Unlock()
		})
	}
}

func (n *notifier) clear() {
	n.mu.Lock()
	n.listeners = make(map[int]Listener)
	n.mu.Unlock()
}

func (n *notifier) emit(d Delta) {
	n.mu.Lock()
	ids := make([]int, 0, len(n.listeners))
	for id := range n.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	listeners := make([]Listener, 0, len(ids))
	for _, id := range ids {
		listeners = append(listeners, n.listeners[id])
	}
	n.mu.Unlock()

	for _, l := range listeners {
		l(d)
	}
}

// union merges path sets into one sorted set
func union(sets ...[]resource.Path) []resource.Path {
	seen := make(map[resource.Path]struct{})
	var out []resource.Path
	for _, set := range sets {
		for _, p := range set {
			if _, ok := seen[p]; ok {
				continue
			}
			seen[p] = struct{}{}
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
