// Package relay implements the connection registry, fan-out/routing engine,
// and batched-persistence pipeline behind the socket relay's three rooms.
package relay

import "sync"

// Room is one of the three independent routing namespaces served by the
// relay. Each room has its own registry table and routing rules.
type Room string

const (
	// RoomGeneral is the broadcast chat room on "/".
	RoomGeneral Room = "general"
	// RoomP2P is the directed-messaging room on "/p2p".
	RoomP2P Room = "p2p"
	// RoomVoice is the call-signaling room on "/voice".
	RoomVoice Room = "voice"
)

// Registry maps a stable identity to exactly one live client per room. It is
// the single source of truth for reachability and is safe for concurrent use
// from all connection goroutines.
type Registry struct {
	mu    sync.RWMutex
	rooms map[Room]map[string]*Client
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{rooms: make(map[Room]map[string]*Client)}
}

// Register stores c under (room, id), overwriting any prior entry for the
// same pair. It returns the displaced client, if any, so the caller can
// close the stale channel.
func (r *Registry) Register(room Room, id string, c *Client) *Client {
	r.mu.Lock()
	defer r.mu.Unlock()

	table := r.rooms[room]
	if table == nil {
		table = make(map[string]*Client)
		r.rooms[room] = table
	}

	displaced := table[id]
	table[id] = c
	if displaced == c {
		return nil
	}
	return displaced
}

// Unregister removes the entry for (room, id) if it currently holds c.
// Passing nil for c removes the entry unconditionally. Removing an absent
// identity is a no-op, so a late or duplicate close event cannot evict a
// replacement connection that re-registered the same identity.
func (r *Registry) Unregister(room Room, id string, c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	table := r.rooms[room]
	current, ok := table[id]
	if !ok {
		return
	}
	if c != nil && current != c {
		return
	}
	delete(table, id)
}

// Lookup returns the live client registered under (room, id), or nil when
// the identity is absent or its connection reports closed. Lookup never
// blocks on network I/O.
func (r *Registry) Lookup(room Room, id string) *Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c := r.rooms[room][id]
	if c == nil || !c.IsOpen() {
		return nil
	}
	return c
}

// Snapshot returns a copy of the room's current clients so callers can fan
// out without holding the registry lock across sends.
func (r *Registry) Snapshot(room Room) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	table := r.rooms[room]
	clients := make([]*Client, 0, len(table))
	for _, c := range table {
		clients = append(clients, c)
	}
	return clients
}

// Count returns the number of registered clients in a room.
func (r *Registry) Count(room Room) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[room])
}
