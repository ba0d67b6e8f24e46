package topics

import (
	"context"
	"log"
	"strings"
	"sync"
)

// Tracker chunks committed transcript text in the background. Submit never
// blocks, so it can be called straight from an engine dump callback.
type Tracker struct {
	chunker  Chunker
	manager  *Manager
	onChunks func(map[string]string)

	mu      sync.Mutex
	pending []string
	carry   string // incomplete text from the previous round
	running bool

	wake     chan struct{}
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

func NewTracker(chunker Chunker, manager *Manager, onChunks func(map[string]string)) *Tracker {
	return &Tracker{
		chunker:  chunker,
		manager:  manager,
		onChunks: onChunks,
		wake:     make(chan struct{}, 1),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (t *Tracker) Manager() *Manager { return t.manager }

// Start launches the worker. It runs until ctx is done or Close is called.
func (t *Tracker) Start(ctx context.Context) {
	t.mu.Lock()
	if t.running {
		t.mu.Unlock()
		return
	}
	t.running = true
	t.mu.Unlock()

	go t.run(ctx)
}

// Submit queues dumped text for chunking.
func (t *Tracker) Submit(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	t.mu.Lock()
	t.pending = append(t.pending, text)
	t.mu.Unlock()

	select {
	case t.wake <- struct{}{}:
	default:
	}
}

// Incomplete returns text waiting to be completed by later speech.
func (t *Tracker) Incomplete() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.carry
}

// Reset drops queued and carried text and clears the topic ledger.
func (t *Tracker) Reset() {
	t.mu.Lock()
	t.pending = nil
	t.carry = ""
	t.mu.Unlock()
	t.manager.Clear()
}

// Close processes whatever is still queued and stops the worker.
func (t *Tracker) Close() {
	t.mu.Lock()
	running := t.running
	t.mu.Unlock()
	if !running {
		return
	}
	t.stopOnce.Do(func() { close(t.stop) })
	<-t.done
}

func (t *Tracker) run(ctx context.Context) {
	defer close(t.done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.stop:
			t.process(ctx)
			return
		case <-t.wake:
			t.process(ctx)
		}
	}
}

func (t *Tracker) process(ctx context.Context) {
	t.mu.Lock()
	if len(t.pending) == 0 {
		t.mu.Unlock()
		return
	}
	input := joinText(t.carry, strings.Join(t.pending, " "))
	t.pending = nil
	t.mu.Unlock()

	existing := ""
	if t.manager.Len() > 0 {
		existing = t.manager.Formatted()
	}
	res := t.chunker.Chunk(ctx, input, existing)

	for id, chunk := range res.Chunks {
		t.manager.AddChunk(id, chunk, res.Descriptions[id])
	}
	for id, desc := range res.Descriptions {
		t.manager.UpdateDescription(id, desc)
	}

	t.mu.Lock()
	t.carry = res.Incomplete
	t.mu.Unlock()

	if len(res.Chunks) == 0 {
		return
	}
	log.Printf("topics: %d new chunks, %d topics total", len(res.Chunks), t.manager.Len())
	if t.onChunks != nil {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Printf("topics: chunk callback panicked: %v", r)
				}
			}()
			t.onChunks(res.Chunks)
		}()
	}
}
