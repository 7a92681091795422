package gateway

import (
	"sort"
	"sync"
)

// Registry maps a user id to the set of open connections belonging to that
// user. An entry exists iff the user has at least one open connection; the
// entry is deleted, never left empty, when the last connection goes away.
type Registry struct {
	mu      sync.RWMutex
	entries map[int]map[*Client]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[int]map[*Client]struct{}),
	}
}

// register adds the client to the user's entry, creating the entry if
// absent. Registering the same client twice is a no-op. It reports whether
// the user came online with this registration.
func (r *Registry) register(userId int, c *Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	clients, ok := r.entries[userId]
	if !ok {
		clients = make(map[*Client]struct{})
		r.entries[userId] = clients
	}
	clients[c] = struct{}{}

	return !ok
}

// deregister removes the client from its user's entry and deletes the entry
// if it becomes empty. Unknown clients are a no-op, since a double close is
// a benign race. It reports whether the user went offline.
func (r *Registry) deregister(c *Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	clients, ok := r.entries[c.user.Id]
	if !ok {
		return false
	}

	if _, ok := clients[c]; !ok {
		return false
	}

	delete(clients, c)
	if len(clients) == 0 {
		delete(r.entries, c.user.Id)
		return true
	}

	return false
}

// activeClients returns the user's open connections. Empty when the user
// has none.
func (r *Registry) activeClients(userId int) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	clients := make([]*Client, 0, len(r.entries[userId]))
	for c := range r.entries[userId] {
		clients = append(clients, c)
	}

	return clients
}

// onlineUserIds returns a sorted snapshot of all users with at least one
// open connection.
func (r *Registry) onlineUserIds() []int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]int, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	return ids
}
