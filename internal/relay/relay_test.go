package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/kojihq/relay/internal/config"
	"github.com/kojihq/relay/internal/model"
	"github.com/kojihq/relay/internal/store"
)

// fakeMessageStore records calls in memory so tests can assert on the
// persistence paths without a database.
type fakeMessageStore struct {
	mu sync.Mutex

	insertBatches [][]model.ChatMessage
	dms           map[string]*model.DirectMessage
	nextID        int

	failInsert   bool
	failCreate   bool
	failMarkRead bool
}

func newFakeMessageStore() *fakeMessageStore {
	return &fakeMessageStore{dms: make(map[string]*model.DirectMessage)}
}

func (f *fakeMessageStore) InsertMessages(_ context.Context, msgs []model.ChatMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failInsert {
		return errors.New("insert failed")
	}
	batch := make([]model.ChatMessage, len(msgs))
	copy(batch, msgs)
	f.insertBatches = append(f.insertBatches, batch)
	return nil
}

func (f *fakeMessageStore) CreateDirectMessage(_ context.Context, dm *model.DirectMessage) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreate {
		return "", errors.New("create failed")
	}
	f.nextID++
	id := fmt.Sprintf("msg-%d", f.nextID)
	dm.ID = id
	stored := *dm
	f.dms[id] = &stored
	return id, nil
}

func (f *fakeMessageStore) GetDirectMessage(_ context.Context, id string) (*model.DirectMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	dm, ok := f.dms[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *dm
	return &copied, nil
}

func (f *fakeMessageStore) MarkDirectMessageRead(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failMarkRead {
		return errors.New("update failed")
	}
	dm, ok := f.dms[id]
	if !ok {
		return store.ErrNotFound
	}
	dm.Read = true
	return nil
}

func (f *fakeMessageStore) batches() [][]model.ChatMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]model.ChatMessage, len(f.insertBatches))
	copy(out, f.insertBatches)
	return out
}

func (f *fakeMessageStore) directMessage(id string) *model.DirectMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	dm, ok := f.dms[id]
	if !ok {
		return nil
	}
	copied := *dm
	return &copied
}

// seed inserts a directed message under a fixed id, bypassing Create.
func (f *fakeMessageStore) seed(id string, dm model.DirectMessage) {
	f.mu.Lock()
	defer f.mu.Unlock()
	dm.ID = id
	f.dms[id] = &dm
}

// fakePresenceStore records presence operations in call order.
type fakePresenceStore struct {
	mu      sync.Mutex
	upserts []string
	deletes []string
}

func (f *fakePresenceStore) UpsertPresence(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts = append(f.upserts, userID)
	return nil
}

func (f *fakePresenceStore) DeletePresence(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, userID)
	return nil
}

func (f *fakePresenceStore) ActiveVoiceUsers(_ context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	active := map[string]bool{}
	for _, u := range f.upserts {
		active[u] = true
	}
	for _, u := range f.deletes {
		delete(active, u)
	}
	var users []string
	for u := range active {
		users = append(users, u)
	}
	return users, nil
}

func (f *fakePresenceStore) calls() (upserts, deletes []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.upserts...), append([]string(nil), f.deletes...)
}

func testConfig() *config.Config {
	return &config.Config{
		Port:            "0",
		Env:             "test",
		AllowedOrigins:  []string{"*"},
		MaxMessageSize:  4096,
		RateLimitBurst:  1000,
		RateLimitRefill: time.Second,
		BatchSize:       5,
		FlushInterval:   30 * time.Second,
	}
}

func newTestRelay(t *testing.T) (*Relay, *fakeMessageStore, *fakePresenceStore) {
	t.Helper()
	messages := newFakeMessageStore()
	presence := &fakePresenceStore{}
	r := New(testConfig(), messages, presence, zerolog.Nop())
	return r, messages, presence
}

// testClient builds a client without a network connection and places it in
// the registry, mirroring what attach does minus the pump goroutines.
func testClient(r *Relay, room Room, identity string) *Client {
	c := newClient(nil, r, room, identity, "test")
	r.registry.Register(room, identity, c)
	return c
}

// recv pops the next queued outbound payload or fails the test.
func recv(t *testing.T, c *Client) []byte {
	t.Helper()
	select {
	case msg := <-c.send:
		return msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for outbound message")
		return nil
	}
}

// recvJSON decodes the next queued outbound payload into a generic map.
func recvJSON(t *testing.T, c *Client) map[string]any {
	t.Helper()
	var decoded map[string]any
	if err := json.Unmarshal(recv(t, c), &decoded); err != nil {
		t.Fatalf("outbound payload is not valid JSON: %v", err)
	}
	return decoded
}

// assertNoMessage asserts nothing was queued for c. Dispatch is synchronous
// in these tests, so no settling time is needed.
func assertNoMessage(t *testing.T, c *Client) {
	t.Helper()
	select {
	case msg := <-c.send:
		t.Fatalf("unexpected outbound message: %s", msg)
	default:
	}
}
