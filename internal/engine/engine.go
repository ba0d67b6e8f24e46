package engine

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/leonardotrapani/hyprscribe/internal/transcript"
)

type State string

const (
	Idle    State = "idle"
	Running State = "running"
	Stopped State = "stopped"
)

// stopGrace bounds how long Stop waits for a source to close its stream
// after the source's own Stop returned.
const stopGrace = 10 * time.Second

// Config holds the dump policy and the optional callbacks of an Engine.
type Config struct {
	Policy transcript.DumpPolicy

	// OnWorkingBufferUpdate receives the aggregate working text whenever a
	// result changes it.
	OnWorkingBufferUpdate func(text string)
	// OnDump receives the text of every commit to the long-term buffer.
	OnDump func(text string)

	// Clock defaults to time.Now.
	Clock func() time.Time
}

func DefaultConfig() Config {
	return Config{Policy: transcript.DefaultDumpPolicy()}
}

type eventKind int

const (
	updateEvent eventKind = iota
	dumpEvent
	endEvent
)

// event is a callback invocation captured inside the critical section.
type event struct {
	kind eventKind
	text string
}

// Engine consumes recognition results, maintains the working and long-term
// buffers and commits working text according to its dump policy.
//
// Callbacks are queued under the buffer lock and delivered in order with no
// lock held, one at a time. With a source they run on a dedicated goroutine;
// in push mode the goroutine that triggered them delivers. Callbacks may
// read snapshots and call ClearBuffers, Ingest or Stop.
type Engine struct {
	source Source
	now    func() time.Time

	onUpdate func(string)
	onDump   func(string)

	lifeMu sync.Mutex // serializes Start

	mu         sync.Mutex // guards everything below
	state      State
	stopping   bool
	policy     transcript.DumpPolicy
	working    *transcript.WorkingBuffer
	longTerm   *transcript.LongTermBuffer
	events     []event
	delivering bool
	cancel     context.CancelFunc
	consumed   chan struct{}

	wake     chan struct{} // nil in push mode
	done     chan struct{}
	doneOnce sync.Once
}

// New creates an idle engine reading from source. A nil source leaves the
// engine in push mode where results are delivered through Ingest.
func New(source Source, cfg Config) *Engine {
	now := cfg.Clock
	if now == nil {
		now = time.Now
	}
	e := &Engine{
		source:   source,
		now:      now,
		onUpdate: cfg.OnWorkingBufferUpdate,
		onDump:   cfg.OnDump,
		state:    Idle,
		policy:   cfg.Policy,
		working:  transcript.NewWorkingBuffer(now()),
		longTerm: transcript.NewLongTermBuffer(),
		done:     make(chan struct{}),
	}
	if source != nil {
		e.wake = make(chan struct{}, 1)
	}
	return e
}

// Start moves an idle engine to Running and begins consuming its source.
func (e *Engine) Start(ctx context.Context) error {
	e.lifeMu.Lock()
	defer e.lifeMu.Unlock()

	if state := e.State(); state != Idle {
		return &InvalidStateError{Op: "start", State: state}
	}

	var results <-chan Result
	runCtx, cancel := context.WithCancel(ctx)
	if e.source != nil {
		var err error
		results, err = e.source.Start(runCtx)
		if err != nil {
			cancel()
			return fmt.Errorf("start source: %w", err)
		}
	}

	e.mu.Lock()
	e.working.ResetDumpTime(e.now())
	e.state = Running
	e.cancel = cancel
	if results != nil {
		e.consumed = make(chan struct{})
	}
	e.mu.Unlock()

	if results != nil {
		go e.dispatch()
		go e.consume(runCtx, results)
	}

	policy := e.Policy()
	log.Printf("engine: started, min_words=%d, min_interval=%v", policy.MinWordCount, policy.MinTimeSinceDump)
	return nil
}

// Stop ends the stream and commits whatever the working buffer still holds
// regardless of the dump policy. Results a source delivers while it shuts
// down, such as the recognizer's last final, are ingested before that
// commit. Stop returns once the commit is in the long-term buffer; Done is
// closed after its callbacks have run.
//
// A second Stop, including one made while the first is still waiting for
// the source, fails with InvalidStateError.
func (e *Engine) Stop() error {
	e.mu.Lock()
	if e.state != Running || e.stopping {
		state := e.state
		e.mu.Unlock()
		return &InvalidStateError{Op: "stop", State: state}
	}
	if e.source == nil {
		dumped := e.flushLocked()
		e.mu.Unlock()
		logFlush(dumped)
		e.emit()
		log.Printf("engine: stopped")
		return nil
	}
	e.stopping = true
	cancel := e.cancel
	e.mu.Unlock()

	if err := e.source.Stop(); err != nil {
		log.Printf("engine: source stop error: %v", err)
	}
	select {
	case <-e.consumed:
	case <-time.After(stopGrace):
		log.Printf("engine: source kept its stream open %v after stop, cancelling", stopGrace)
		cancel()
		<-e.consumed
	}

	log.Printf("engine: stopped")
	return nil
}

// Done is closed once the engine has stopped, flushed and delivered every
// callback, whether through Stop or because the source ended the stream.
func (e *Engine) Done() <-chan struct{} {
	return e.done
}

func (e *Engine) consume(ctx context.Context, results <-chan Result) {
	defer close(e.consumed)

	for {
		select {
		case <-ctx.Done():
			e.endOfStream("context done")
			return
		case r, ok := <-results:
			if !ok {
				e.endOfStream("result stream closed")
				return
			}
			if r.Err != nil {
				log.Printf("engine: source error: %v", r.Err)
				continue
			}
			e.Ingest(r)
		}
	}
}

// endOfStream commits the remaining working text once the stream is over.
// When the source ended on its own it is the implicit stop.
func (e *Engine) endOfStream(reason string) {
	e.mu.Lock()
	implicit := !e.stopping
	e.mu.Unlock()

	if implicit {
		log.Printf("engine: %s, flushing working buffer", reason)
		if err := e.source.Stop(); err != nil {
			log.Printf("engine: source stop error: %v", err)
		}
	}

	e.mu.Lock()
	dumped := e.flushLocked()
	e.mu.Unlock()
	logFlush(dumped)
	e.emit()
}

// Ingest applies one result. Outside Running it is silently ignored.
func (e *Engine) Ingest(r Result) {
	e.mu.Lock()
	if e.state != Running {
		e.mu.Unlock()
		return
	}
	now := e.now()
	before := e.working.Text()
	e.working.Apply(r.Text, r.IsFinal, now)
	if after := e.working.Text(); after != before {
		e.events = append(e.events, event{kind: updateEvent, text: after})
	}

	var dumped string
	if r.IsFinal && e.policy.Eligible(e.working, now) {
		if dumped = e.dumpLocked(now); dumped != "" {
			e.events = append(e.events, event{kind: dumpEvent, text: dumped})
		}
	}
	e.mu.Unlock()

	if dumped != "" {
		log.Printf("engine: dump fired, words=%d", transcript.CountWords(dumped))
	}
	e.emit()
}

// flushLocked commits the working text, ends the run and queues the end
// marker that closes Done. Must be called with mu held.
func (e *Engine) flushLocked() string {
	dumped := e.dumpLocked(e.now())
	if dumped != "" {
		e.events = append(e.events, event{kind: dumpEvent, text: dumped})
	}
	e.events = append(e.events, event{kind: endEvent})
	e.state = Stopped
	e.stopping = false
	if e.cancel != nil {
		e.cancel()
	}
	return dumped
}

func logFlush(dumped string) {
	if dumped != "" {
		log.Printf("engine: forced dump, words=%d", transcript.CountWords(dumped))
	}
}

// dumpLocked moves the working text into the long-term buffer. Must be called with mu held.
func (e *Engine) dumpLocked(now time.Time) string {
	text := e.working.Drain(now)
	if text == "" {
		return ""
	}
	e.longTerm.Append(text)
	return text
}

// emit hands queued events to the dispatcher, or delivers them inline in
// push mode.
func (e *Engine) emit() {
	if e.wake == nil {
		e.deliver()
		return
	}
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

func (e *Engine) dispatch() {
	for {
		select {
		case <-e.wake:
			e.deliver()
		case <-e.done:
			return
		}
	}
}

// deliver runs queued events in order. Only one goroutine delivers at a
// time; events queued meanwhile, including by a callback, are picked up by
// the active deliverer.
func (e *Engine) deliver() {
	e.mu.Lock()
	if e.delivering {
		e.mu.Unlock()
		return
	}
	e.delivering = true
	for len(e.events) > 0 {
		ev := e.events[0]
		e.events = e.events[1:]
		e.mu.Unlock()

		switch ev.kind {
		case updateEvent:
			e.invoke("working update", e.onUpdate, ev.text)
		case dumpEvent:
			e.invoke("dump", e.onDump, ev.text)
		case endEvent:
			e.doneOnce.Do(func() { close(e.done) })
		}

		e.mu.Lock()
	}
	e.delivering = false
	e.mu.Unlock()
}

func (e *Engine) invoke(name string, fn func(string), text string) {
	if fn == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Printf("engine: %s callback panicked: %v", name, r)
		}
	}()
	fn(text)
}

// ClearBuffers empties both buffers without reporting a dump. Valid in any state.
func (e *Engine) ClearBuffers() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.working.Clear()
	e.longTerm.Clear()
	e.working.ResetDumpTime(e.now())
}

// SetPolicy replaces the dump policy; it applies from the next evaluation.
func (e *Engine) SetPolicy(p transcript.DumpPolicy) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.policy = p
}

func (e *Engine) Policy() transcript.DumpPolicy {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.policy
}

func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Engine) WorkingBufferText() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.working.Text()
}

func (e *Engine) LongTermBufferText() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.longTerm.Text()
}

// FullTranscript joins the long-term and working text, omitting an empty side.
func (e *Engine) FullTranscript() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return joinTiers(e.longTerm.Text(), e.working.Text())
}

// FinalWordCount is the number of final words waiting in the working buffer.
func (e *Engine) FinalWordCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.working.FinalWordCount()
}

// Chunks returns the committed chunks in commit order.
func (e *Engine) Chunks() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.longTerm.Chunks()
}

// Snapshot captures both tiers in a single critical section.
type Snapshot struct {
	State    State
	Working  string
	LongTerm string
}

func (s Snapshot) Full() string {
	return joinTiers(s.LongTerm, s.Working)
}

func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Snapshot{
		State:    e.state,
		Working:  e.working.Text(),
		LongTerm: e.longTerm.Text(),
	}
}

func joinTiers(longTerm, working string) string {
	longTerm = strings.TrimSpace(longTerm)
	working = strings.TrimSpace(working)
	switch {
	case longTerm == "":
		return working
	case working == "":
		return longTerm
	default:
		return longTerm + " " + working
	}
}
