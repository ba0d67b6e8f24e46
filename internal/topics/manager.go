// Package topics groups committed transcript text into topics.
package topics

import (
	"fmt"
	"strings"
	"sync"
)

type Topic struct {
	ID          string
	Description string
	Chunks      []string
}

// Manager is a thread-safe ledger of topics and the chunks assigned to them.
// Topics keep the order in which they were first seen.
type Manager struct {
	mu     sync.Mutex
	order  []string
	topics map[string]*Topic
}

func NewManager() *Manager {
	return &Manager{topics: make(map[string]*Topic)}
}

func (m *Manager) topicLocked(id, description string) *Topic {
	t, ok := m.topics[id]
	if !ok {
		t = &Topic{ID: id, Description: description}
		m.topics[id] = t
		m.order = append(m.order, id)
	}
	return t
}

// AddChunk appends chunk to the topic, creating it with description if new.
func (m *Manager) AddChunk(id, chunk, description string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := m.topicLocked(id, description)
	t.Chunks = append(t.Chunks, chunk)
}

func (m *Manager) UpdateDescription(id, description string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.topicLocked(id, description).Description = description
}

// Summaries maps topic IDs to their descriptions.
func (m *Manager) Summaries() map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string, len(m.topics))
	for id, t := range m.topics {
		out[id] = t.Description
	}
	return out
}

// Formatted renders the topics as a bullet list for prompting.
func (m *Manager) Formatted() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.order) == 0 {
		return "No topics yet."
	}
	var b strings.Builder
	for i, id := range m.order {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "- %s: %s", id, m.topics[id].Description)
	}
	return b.String()
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.order)
}

// Topics returns copies of all topics in first-seen order.
func (m *Manager) Topics() []Topic {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Topic, 0, len(m.order))
	for _, id := range m.order {
		t := m.topics[id]
		out = append(out, Topic{ID: t.ID, Description: t.Description, Chunks: append([]string(nil), t.Chunks...)})
	}
	return out
}

// Chunks returns the chunks recorded for a topic, or nil if it is unknown.
func (m *Manager) Chunks(id string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.topics[id]
	if !ok {
		return nil
	}
	return append([]string(nil), t.Chunks...)
}

func (m *Manager) AllChunks() map[string][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string][]string, len(m.topics))
	for id, t := range m.topics {
		out[id] = append([]string(nil), t.Chunks...)
	}
	return out
}

func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.order = nil
	m.topics = make(map[string]*Topic)
}
