package transcriber

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const DefaultDeepgramURL = "wss://api.deepgram.com/v1/listen"

var defaultRetryDelays = []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second}

// DeepgramConfig configures a Deepgram live transcription session.
type DeepgramConfig struct {
	URL        string // websocket endpoint, DefaultDeepgramURL when empty
	APIKey     string
	Model      string
	Language   string
	Keywords   []string
	SampleRate int
	Channels   int
	Punctuate  bool
}

// DeepgramAdapter streams linear16 PCM to Deepgram and reports interim and final results.
type DeepgramAdapter struct {
	cfg       DeepgramConfig
	conn      *websocket.Conn
	resultsCh chan TranscriptionResult
	mu        sync.Mutex
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	started   bool

	maxRetries  int
	retryDelays []time.Duration

	finalizeDone chan struct{}
}

type deepgramCloseStream struct {
	Type string `json:"type"`
}

type deepgramWSResponse struct {
	Type        string            `json:"type"`
	Channel     *deepgramChannel  `json:"channel,omitempty"`
	Metadata    *deepgramMetadata `json:"metadata,omitempty"`
	Error       *deepgramError    `json:"error,omitempty"`
	Duration    float64           `json:"duration,omitempty"`
	Start       float64           `json:"start,omitempty"`
	IsFinal     bool              `json:"is_final,omitempty"`
	SpeechFinal bool              `json:"speech_final,omitempty"`
	FromFinal   bool              `json:"from_finalize,omitempty"`
}

type deepgramChannel struct {
	Alternatives []deepgramAlternative `json:"alternatives,omitempty"`
}

type deepgramAlternative struct {
	Transcript string  `json:"transcript"`
	Confidence float64 `json:"confidence"`
}

type deepgramMetadata struct {
	RequestID string `json:"request_id"`
	ModelInfo struct {
		Name    string `json:"name"`
		Version string `json:"version"`
	} `json:"model_info"`
}

type deepgramError struct {
	Type        string `json:"type"`
	Message     string `json:"message"`
	Description string `json:"description,omitempty"`
}

func NewDeepgramAdapter(cfg DeepgramConfig) *DeepgramAdapter {
	if cfg.URL == "" {
		cfg.URL = DefaultDeepgramURL
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.Channels <= 0 {
		cfg.Channels = 1
	}
	return &DeepgramAdapter{
		cfg:          cfg,
		resultsCh:    make(chan TranscriptionResult, 100),
		maxRetries:   3,
		retryDelays:  defaultRetryDelays,
		finalizeDone: make(chan struct{}, 1),
	}
}

func (a *DeepgramAdapter) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.started {
		return ErrAlreadyStarted
	}

	a.ctx, a.cancel = context.WithCancel(ctx)

	if err := a.connectLocked(); err != nil {
		a.cancel()
		return err
	}
	a.started = true

	a.wg.Add(1)
	go a.readLoop()

	log.Printf("deepgram: connected, model=%s, language=%s", a.cfg.Model, a.cfg.Language)
	return nil
}

// connectLocked dials the websocket. Must be called with mu held.
func (a *DeepgramAdapter) connectLocked() error {
	wsURL, err := a.buildURL()
	if err != nil {
		return fmt.Errorf("build websocket url: %w", err)
	}

	headers := http.Header{}
	headers.Set("Authorization", "Token "+a.cfg.APIKey)

	conn, resp, err := websocket.DefaultDialer.DialContext(a.ctx, wsURL, headers)
	if err != nil {
		if resp != nil {
			log.Printf("deepgram: dial failed with status %d", resp.StatusCode)
		}
		return fmt.Errorf("websocket dial: %w", err)
	}
	a.conn = conn
	return nil
}

// reconnect re-establishes the connection with backoff and reports whether it succeeded.
func (a *DeepgramAdapter) reconnect() bool {
	for attempt := 0; attempt < a.maxRetries; attempt++ {
		if attempt > 0 {
			idx := attempt - 1
			if idx >= len(a.retryDelays) {
				idx = len(a.retryDelays) - 1
			}
			delay := a.retryDelays[idx]
			log.Printf("deepgram: reconnect attempt %d/%d after %v", attempt+1, a.maxRetries, delay)

			select {
			case <-a.ctx.Done():
				return false
			case <-time.After(delay):
			}
		} else {
			select {
			case <-a.ctx.Done():
				return false
			default:
			}
			log.Printf("deepgram: reconnect attempt %d/%d", attempt+1, a.maxRetries)
		}

		a.mu.Lock()
		if a.conn != nil {
			a.conn.Close()
			a.conn = nil
		}
		err := a.connectLocked()
		a.mu.Unlock()

		if err == nil {
			log.Printf("deepgram: reconnected")
			a.emit(TranscriptionResult{Error: fmt.Errorf("connection interrupted, reconnected")})
			return true
		}
		log.Printf("deepgram: reconnect failed: %v", err)
	}
	return false
}

func (a *DeepgramAdapter) buildURL() (string, error) {
	u, err := url.Parse(a.cfg.URL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}

	q := u.Query()
	if a.cfg.Model != "" {
		q.Set("model", a.cfg.Model)
	}
	q.Set("encoding", "linear16")
	q.Set("sample_rate", strconv.Itoa(a.cfg.SampleRate))
	q.Set("channels", strconv.Itoa(a.cfg.Channels))
	q.Set("interim_results", "true")
	q.Set("smart_format", "true")
	q.Set("punctuate", strconv.FormatBool(a.cfg.Punctuate))

	if lang := normalizeDeepgramLanguage(a.cfg.Language); lang != "" {
		q.Set("language", lang)
	}
	if len(a.cfg.Keywords) > 0 {
		q.Set("keywords", strings.Join(a.cfg.Keywords, ","))
	}

	u.RawQuery = q.Encode()
	return u.String(), nil
}

func normalizeDeepgramLanguage(code string) string {
	switch strings.ToLower(strings.ReplaceAll(code, "_", "-")) {
	case "":
		return ""
	case "en", "en-us":
		return "en-US"
	default:
		return code
	}
}

// emit delivers a result unless the adapter is shutting down.
func (a *DeepgramAdapter) emit(r TranscriptionResult) {
	select {
	case a.resultsCh <- r:
	case <-a.ctx.Done():
	}
}

func (a *DeepgramAdapter) readLoop() {
	defer a.wg.Done()
	defer close(a.resultsCh)

	for {
		select {
		case <-a.ctx.Done():
			return
		default:
		}

		a.mu.Lock()
		conn := a.conn
		a.mu.Unlock()

		if conn == nil {
			if !a.reconnect() {
				a.emit(TranscriptionResult{Error: NewFatalTranscriptionError(fmt.Errorf("connection lost, reconnection failed after %d attempts", a.maxRetries))})
				return
			}
			continue
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-a.ctx.Done():
				return
			default:
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				log.Printf("deepgram: server closed the stream")
				return
			}

			log.Printf("deepgram: read error: %v, attempting reconnection", err)
			if !a.reconnect() {
				a.emit(TranscriptionResult{Error: NewFatalTranscriptionError(fmt.Errorf("websocket read: %w, reconnection failed", err))})
				return
			}
			continue
		}

		a.handleMessage(message)
	}
}

func (a *DeepgramAdapter) handleMessage(message []byte) {
	var resp deepgramWSResponse
	if err := json.Unmarshal(message, &resp); err != nil {
		log.Printf("deepgram: parse error: %v", err)
		return
	}

	switch resp.Type {
	case "Metadata":
		if resp.Metadata != nil {
			log.Printf("deepgram: session started, request_id=%s, model=%s",
				resp.Metadata.RequestID, resp.Metadata.ModelInfo.Name)
		}

	case "Results":
		if resp.Channel == nil || len(resp.Channel.Alternatives) == 0 {
			return
		}
		// empty finals still matter: they close an interim slot the recognizer dropped
		transcript := resp.Channel.Alternatives[0].Transcript
		isFinal := resp.IsFinal || resp.SpeechFinal
		a.emit(TranscriptionResult{Text: transcript, IsFinal: isFinal})
		if isFinal {
			select {
			case a.finalizeDone <- struct{}{}:
			default:
			}
		}

	case "Error":
		if resp.Error != nil {
			errMsg := resp.Error.Message
			if resp.Error.Description != "" {
				errMsg = fmt.Sprintf("%s: %s", errMsg, resp.Error.Description)
			}
			log.Printf("deepgram: error: %s", errMsg)
			a.emit(TranscriptionResult{Error: fmt.Errorf("deepgram: %s", errMsg)})
		}

	case "UtteranceEnd", "SpeechStarted":
		// vad events carry no text

	default:
		log.Printf("deepgram: unknown message type: %s", resp.Type)
	}
}

// SendChunk sends raw binary PCM; Deepgram does not expect base64.
func (a *DeepgramAdapter) SendChunk(audio []byte) error {
	a.mu.Lock()
	if !a.started {
		a.mu.Unlock()
		return ErrNotStarted
	}
	ctx := a.ctx
	a.mu.Unlock()

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	a.mu.Lock()
	if a.conn == nil {
		a.mu.Unlock()
		return ErrNoConnection
	}
	err := a.conn.WriteMessage(websocket.BinaryMessage, audio)
	a.mu.Unlock()
	if err == nil {
		return nil
	}

	log.Printf("deepgram: write error: %v, attempting reconnection", err)
	if a.reconnect() {
		a.mu.Lock()
		if a.conn != nil {
			err = a.conn.WriteMessage(websocket.BinaryMessage, audio)
		}
		a.mu.Unlock()
		if err == nil {
			return nil
		}
	}
	return fmt.Errorf("websocket write: %w", err)
}

func (a *DeepgramAdapter) Results() <-chan TranscriptionResult {
	return a.resultsCh
}

// Finalize sends CloseStream and waits for the final result or ctx.
func (a *DeepgramAdapter) Finalize(ctx context.Context) error {
	a.mu.Lock()
	if !a.started || a.conn == nil {
		a.mu.Unlock()
		return nil
	}

	select {
	case <-a.finalizeDone:
	default:
	}

	err := a.conn.WriteJSON(deepgramCloseStream{Type: "CloseStream"})
	adapterCtx := a.ctx
	a.mu.Unlock()

	if err != nil {
		return fmt.Errorf("finalize write: %w", err)
	}

	log.Printf("deepgram: sent CloseStream, waiting for final transcript")

	select {
	case <-a.finalizeDone:
		return nil
	case <-ctx.Done():
		log.Printf("deepgram: finalize timeout")
		return ctx.Err()
	case <-adapterCtx.Done():
		return adapterCtx.Err()
	}
}

func (a *DeepgramAdapter) Close() error {
	a.mu.Lock()
	if !a.started {
		a.mu.Unlock()
		return nil
	}
	if a.cancel != nil {
		a.cancel()
	}
	conn := a.conn
	a.started = false
	a.mu.Unlock()

	// readLoop may be blocked in ReadMessage, close outside the lock
	if conn != nil {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		conn.Close()
	}

	a.wg.Wait()
	log.Printf("deepgram: closed")
	return nil
}
