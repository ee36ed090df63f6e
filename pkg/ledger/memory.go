package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/SudoSuOps/swarmpool/pkg/canonhash"
)

// Memory is an in-process Ledger used by tests and dry runs. Content ids
// are derived from the record bytes, so identical records share an id.
type Memory struct {
	mu       sync.Mutex
	byID     map[string][]byte
	byPath   map[string]string
	messages map[string][]json.RawMessage
	state    PoolState
}

// NewMemory builds an empty in-process ledger.
func NewMemory() *Memory {
	return &Memory{
		byID:     make(map[string][]byte),
		byPath:   make(map[string]string),
		messages: make(map[string][]json.RawMessage),
		state:    PoolState{PoolID: "swarmpool.eth", LastUpdated: time.Now().Unix()},
	}
}

func (m *Memory) Publish(_ context.Context, path string, record any) (string, error) {
	body, err := json.Marshal(record)
	if err != nil {
		return "", err
	}
	// Qm + keccak hex satisfies the content-id shape the gate expects.
	id := "Qm" + canonhash.Keccak256Hex(body)[2:48]

	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[id] = body
	m.byPath[path] = id
	return id, nil
}

func (m *Memory) Fetch(_ context.Context, id string, dst any) error {
	m.mu.Lock()
	body, ok := m.byID[id]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return json.Unmarshal(body, dst)
}

func (m *Memory) Broadcast(_ context.Context, topic string, message any) error {
	body, err := json.Marshal(message)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages[topic] = append(m.messages[topic], body)
	return nil
}

func (m *Memory) PollState(_ context.Context) (PoolState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state, nil
}

// SetState replaces the shared state snapshot returned by PollState.
func (m *Memory) SetState(state PoolState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = state
}

// Messages returns the broadcasts observed on a topic.
func (m *Memory) Messages(topic string) []json.RawMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]json.RawMessage, len(m.messages[topic]))
	copy(out, m.messages[topic])
	return out
}

// IDAt returns the content id last published at a canonical path.
func (m *Memory) IDAt(path string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byPath[path]
	return id, ok
}
