package testutil

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"

	"github.com/leonardotrapani/hyprscribe/internal/config"
	"github.com/leonardotrapani/hyprscribe/internal/engine"
	"github.com/leonardotrapani/hyprscribe/internal/recording"
	"github.com/leonardotrapani/hyprscribe/internal/topics"
)

// TestConfig returns a valid configuration whose dump thresholds are high
// enough that nothing is committed until a session stops.
func TestConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Buffer = config.BufferConfig{MinWordCount: 100, MinTimeSinceDump: time.Hour}
	cfg.Transcription.Source = config.SourceReplay
	cfg.Transcription.ReplayFile = "/dev/null"
	cfg.Notifications = config.NotificationsConfig{Enabled: false, Type: "none"}
	return cfg
}

// CreateTempConfigFile creates a temporary config file for testing
func CreateTempConfigFile(t *testing.T, configContent string) string {
	t.Helper()

	configPath := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to create temp config file: %v", err)
	}
	return configPath
}

// TestContext returns a context with timeout for testing
func TestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 5*time.Second)
}

// WaitForCondition waits for a condition to be true or times out
func WaitForCondition(t *testing.T, condition func() bool, timeout time.Duration) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			t.Fatalf("Condition not met within %v", timeout)
		default:
			if condition() {
				return
			}
			time.Sleep(5 * time.Millisecond)
		}
	}
}

// MockAudioFrame creates a test audio frame
func MockAudioFrame(data []byte) recording.AudioFrame {
	if data == nil {
		data = make([]byte, 1024)
		for i := range data {
			data[i] = byte(i % 256)
		}
	}
	return recording.AudioFrame{Data: data, Timestamp: time.Now()}
}

// MockSource is an engine.Source fed by the test through Send. Stop closes
// the result stream, and so does End for a source that finishes on its own.
type MockSource struct {
	StartError error
	// FinalOnStop is delivered as a final result before Stop closes the
	// stream, like a recognizer flushing its last utterance.
	FinalOnStop string
	// StopHold makes Stop wait until it is closed.
	StopHold chan struct{}

	results  chan engine.Result
	stopOnce sync.Once

	mu      sync.Mutex
	started bool
	stopped bool
}

func NewMockSource() *MockSource {
	return &MockSource{results: make(chan engine.Result, 32)}
}

func (m *MockSource) Start(ctx context.Context) (<-chan engine.Result, error) {
	if m.StartError != nil {
		return nil, m.StartError
	}
	m.mu.Lock()
	m.started = true
	m.mu.Unlock()
	return m.results, nil
}

func (m *MockSource) Stop() error {
	m.mu.Lock()
	m.stopped = true
	m.mu.Unlock()
	if m.StopHold != nil {
		<-m.StopHold
	}
	m.stopOnce.Do(func() {
		if m.FinalOnStop != "" {
			m.results <- engine.Result{Text: m.FinalOnStop, IsFinal: true}
		}
		close(m.results)
	})
	return nil
}

func (m *MockSource) End() {
	m.stopOnce.Do(func() { close(m.results) })
}

func (m *MockSource) Send(text string, final bool) {
	m.results <- engine.Result{Text: text, IsFinal: final}
}

func (m *MockSource) Started() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.started
}

func (m *MockSource) Stopped() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopped
}

// MockSourceFactory hands out a fresh MockSource for every session and keeps
// the most recent one.
type MockSourceFactory struct {
	StartError  error
	FinalOnStop string
	StopHold    chan struct{}

	mu   sync.Mutex
	last *MockSource
	made int
}

func (f *MockSourceFactory) New(*config.Config) (engine.Source, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.last = NewMockSource()
	f.last.StartError = f.StartError
	f.last.FinalOnStop = f.FinalOnStop
	f.last.StopHold = f.StopHold
	f.made++
	return f.last, nil
}

func (f *MockSourceFactory) Last() *MockSource {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}

func (f *MockSourceFactory) Made() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.made
}

// MockChunker implements topics.Chunker for testing
type MockChunker struct {
	ChunkFunc func(transcript, existing string) topics.Result

	mu     sync.Mutex
	Inputs []string
}

func (m *MockChunker) Chunk(ctx context.Context, transcript, existing string) topics.Result {
	m.mu.Lock()
	m.Inputs = append(m.Inputs, transcript)
	m.mu.Unlock()

	if m.ChunkFunc != nil {
		return m.ChunkFunc(transcript, existing)
	}
	return topics.Result{Incomplete: transcript}
}

func (m *MockChunker) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.Inputs))
	copy(out, m.Inputs)
	return out
}

// RunNATSServer starts an in-process NATS server on a random port.
func RunNATSServer(t *testing.T) *server.Server {
	t.Helper()

	ns, err := server.NewServer(&server.Options{Host: "127.0.0.1", Port: -1, NoLog: true, NoSigs: true})
	if err != nil {
		t.Fatalf("Failed to create nats server: %v", err)
	}
	go ns.Start()
	if !ns.ReadyForConnections(5 * time.Second) {
		t.Fatal("nats server not ready")
	}
	t.Cleanup(ns.Shutdown)
	return ns
}
