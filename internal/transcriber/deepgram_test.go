package transcriber

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestDeepgramAdapter_ImplementsStreamingAdapter(t *testing.T) {
	var _ StreamingAdapter = (*DeepgramAdapter)(nil)
}

func TestNewDeepgramAdapter_Defaults(t *testing.T) {
	adapter := NewDeepgramAdapter(DeepgramConfig{APIKey: "test-api-key", Model: "nova-3"})

	if adapter.cfg.URL != DefaultDeepgramURL {
		t.Errorf("URL = %q, want %q", adapter.cfg.URL, DefaultDeepgramURL)
	}
	if adapter.cfg.SampleRate != 16000 {
		t.Errorf("SampleRate = %d, want 16000", adapter.cfg.SampleRate)
	}
	if adapter.cfg.Channels != 1 {
		t.Errorf("Channels = %d, want 1", adapter.cfg.Channels)
	}
	if adapter.maxRetries != 3 {
		t.Errorf("maxRetries = %d, want 3", adapter.maxRetries)
	}
}

func TestDeepgramAdapter_BuildURL(t *testing.T) {
	tests := []struct {
		name    string
		cfg     DeepgramConfig
		want    []string
		notWant []string
	}{
		{
			name: "english",
			cfg:  DeepgramConfig{Model: "nova-3", Language: "en"},
			want: []string{"model=nova-3", "language=en-US", "encoding=linear16", "sample_rate=16000", "interim_results=true"},
		},
		{
			name: "underscore locale",
			cfg:  DeepgramConfig{Model: "nova-3", Language: "en_us"},
			want: []string{"language=en-US"},
		},
		{
			name: "spanish at 44.1k stereo",
			cfg:  DeepgramConfig{Model: "nova-2", Language: "es", SampleRate: 44100, Channels: 2},
			want: []string{"model=nova-2", "language=es", "sample_rate=44100", "channels=2"},
		},
		{
			name:    "auto-detect",
			cfg:     DeepgramConfig{Model: "nova-3"},
			want:    []string{"model=nova-3"},
			notWant: []string{"language="},
		},
		{
			name: "keywords and punctuation",
			cfg:  DeepgramConfig{Keywords: []string{"hyprland", "wayland"}, Punctuate: true},
			want: []string{"keywords=hyprland%2Cwayland", "punctuate=true"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adapter := NewDeepgramAdapter(tt.cfg)
			got, err := adapter.buildURL()
			if err != nil {
				t.Fatalf("buildURL() error = %v", err)
			}
			for _, want := range tt.want {
				if !strings.Contains(got, want) {
					t.Errorf("buildURL() = %q, want to contain %q", got, want)
				}
			}
			for _, bad := range tt.notWant {
				if strings.Contains(got, bad) {
					t.Errorf("buildURL() = %q, should not contain %q", got, bad)
				}
			}
		})
	}
}

func TestDeepgramAdapter_NotStarted(t *testing.T) {
	adapter := NewDeepgramAdapter(DeepgramConfig{APIKey: "test-key"})

	if err := adapter.SendChunk([]byte("audio data")); !errors.Is(err, ErrNotStarted) {
		t.Errorf("SendChunk() error = %v, want ErrNotStarted", err)
	}
	if err := adapter.Finalize(context.Background()); err != nil {
		t.Errorf("Finalize() error = %v, want nil", err)
	}
	if err := adapter.Close(); err != nil {
		t.Errorf("Close() error = %v, want nil", err)
	}
}

// mockDeepgramServer runs handler for every upgraded websocket connection.
func mockDeepgramServer(t *testing.T, handler func(*websocket.Conn)) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.Header.Get("Authorization"), "Token ") {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		defer conn.Close()
		handler(conn)
	}))
	t.Cleanup(server.Close)
	return server
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func drainUntilClosed(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func result(text string, final bool) deepgramWSResponse {
	return deepgramWSResponse{
		Type:    "Results",
		IsFinal: final,
		Channel: &deepgramChannel{Alternatives: []deepgramAlternative{{Transcript: text, Confidence: 0.9}}},
	}
}

func TestDeepgramAdapter_StartAndClose(t *testing.T) {
	server := mockDeepgramServer(t, func(conn *websocket.Conn) {
		metadata := deepgramWSResponse{Type: "Metadata", Metadata: &deepgramMetadata{RequestID: "test-123"}}
		_ = conn.WriteJSON(metadata)
		drainUntilClosed(conn)
	})

	adapter := NewDeepgramAdapter(DeepgramConfig{URL: wsURL(server), APIKey: "test-api-key", Model: "nova-3"})
	if err := adapter.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := adapter.Start(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("second Start() error = %v, want ErrAlreadyStarted", err)
	}
	if err := adapter.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}

	select {
	case _, ok := <-adapter.Results():
		if ok {
			for range adapter.Results() {
			}
		}
	case <-time.After(2 * time.Second):
		t.Error("results channel not closed after Close()")
	}
}

func TestDeepgramAdapter_ReceivesInterimAndFinal(t *testing.T) {
	server := mockDeepgramServer(t, func(conn *websocket.Conn) {
		_ = conn.WriteJSON(result("hello", false))
		_ = conn.WriteJSON(result("hello world", false))
		_ = conn.WriteJSON(result("hello world", true))
		_ = conn.WriteJSON(deepgramWSResponse{Type: "UtteranceEnd"})
		_ = conn.WriteJSON(result("", true))
		drainUntilClosed(conn)
	})

	adapter := NewDeepgramAdapter(DeepgramConfig{URL: wsURL(server), APIKey: "test-api-key"})
	if err := adapter.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer adapter.Close()

	want := []TranscriptionResult{
		{Text: "hello"},
		{Text: "hello world"},
		{Text: "hello world", IsFinal: true},
		{Text: "", IsFinal: true},
	}

	timeout := time.After(2 * time.Second)
	for i, w := range want {
		select {
		case got := <-adapter.Results():
			if got.Text != w.Text || got.IsFinal != w.IsFinal || got.Error != nil {
				t.Errorf("result %d = %+v, want %+v", i, got, w)
			}
		case <-timeout:
			t.Fatalf("timeout waiting for result %d", i)
		}
	}
}

func TestDeepgramAdapter_SendsRawBinaryAudio(t *testing.T) {
	received := make(chan []byte, 1)
	server := mockDeepgramServer(t, func(conn *websocket.Conn) {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.BinaryMessage {
			t.Errorf("message type = %d, want binary", msgType)
		}
		received <- data
		drainUntilClosed(conn)
	})

	adapter := NewDeepgramAdapter(DeepgramConfig{URL: wsURL(server), APIKey: "test-api-key"})
	if err := adapter.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer adapter.Close()

	audio := []byte{0x01, 0x02, 0x03, 0x04}
	if err := adapter.SendChunk(audio); err != nil {
		t.Fatalf("SendChunk() error = %v", err)
	}

	select {
	case got := <-received:
		if string(got) != string(audio) {
			t.Errorf("received %v, want %v", got, audio)
		}
	case <-time.After(time.Second):
		t.Error("timeout waiting for audio")
	}
}

func TestDeepgramAdapter_HandlesError(t *testing.T) {
	server := mockDeepgramServer(t, func(conn *websocket.Conn) {
		_ = conn.WriteJSON(deepgramWSResponse{
			Type:  "Error",
			Error: &deepgramError{Type: "AuthError", Message: "Invalid API key"},
		})
		drainUntilClosed(conn)
	})

	adapter := NewDeepgramAdapter(DeepgramConfig{URL: wsURL(server), APIKey: "test-api-key"})
	if err := adapter.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer adapter.Close()

	select {
	case r := <-adapter.Results():
		if r.Error == nil || !strings.Contains(r.Error.Error(), "Invalid API key") {
			t.Errorf("result error = %v, want Invalid API key", r.Error)
		}
		if IsFatalTranscriptionError(r.Error) {
			t.Error("protocol error should not be fatal")
		}
	case <-time.After(time.Second):
		t.Error("timeout waiting for error")
	}
}

func TestDeepgramAdapter_Finalize(t *testing.T) {
	server := mockDeepgramServer(t, func(conn *websocket.Conn) {
		for {
			msgType, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if msgType == websocket.TextMessage && strings.Contains(string(data), "CloseStream") {
				_ = conn.WriteJSON(result("last words", true))
			}
		}
	})

	adapter := NewDeepgramAdapter(DeepgramConfig{URL: wsURL(server), APIKey: "test-api-key"})
	if err := adapter.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer adapter.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := adapter.Finalize(ctx); err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}

	select {
	case r := <-adapter.Results():
		if r.Text != "last words" || !r.IsFinal {
			t.Errorf("result = %+v", r)
		}
	case <-time.After(time.Second):
		t.Error("final result not delivered")
	}
}

func TestDeepgramAdapter_DialFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
	}))
	defer server.Close()

	adapter := NewDeepgramAdapter(DeepgramConfig{URL: wsURL(server), APIKey: "bad"})
	if err := adapter.Start(context.Background()); err == nil {
		t.Fatal("Start() should fail when the upgrade is rejected")
	}
	if err := adapter.SendChunk([]byte{0}); !errors.Is(err, ErrNotStarted) {
		t.Errorf("SendChunk() after failed start = %v, want ErrNotStarted", err)
	}
}

func TestFatalTranscriptionError(t *testing.T) {
	if NewFatalTranscriptionError(nil) != nil {
		t.Error("NewFatalTranscriptionError(nil) should be nil")
	}

	base := errors.New("socket gone")
	err := NewFatalTranscriptionError(base)
	if !IsFatalTranscriptionError(err) {
		t.Error("IsFatalTranscriptionError() = false")
	}
	if !errors.Is(err, base) {
		t.Error("fatal error should unwrap to its cause")
	}
	if IsFatalTranscriptionError(base) {
		t.Error("plain error reported as fatal")
	}
	if got := err.Error(); got != "fatal: socket gone" {
		t.Errorf("Error() = %q", got)
	}
}
