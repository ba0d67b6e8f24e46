package source

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/leonardotrapani/hyprscribe/internal/engine"
	"github.com/leonardotrapani/hyprscribe/internal/recording"
	"github.com/leonardotrapani/hyprscribe/internal/transcriber"
)

const DefaultFinalizeTimeout = 3 * time.Second

// AudioInput produces raw PCM frames. Both recording.Recorder and
// recording.WAVInput satisfy it.
type AudioInput interface {
	Start(ctx context.Context) (<-chan recording.AudioFrame, <-chan error, error)
	Stop() error
}

// Streaming feeds audio from an AudioInput into a streaming recognizer and
// exposes the recognizer's results as an engine.Source.
type Streaming struct {
	audio           AudioInput
	adapter         transcriber.StreamingAdapter
	finalizeTimeout time.Duration

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc

	out        chan engine.Result
	wg         sync.WaitGroup
	finishOnce sync.Once
}

func NewStreaming(audio AudioInput, adapter transcriber.StreamingAdapter) *Streaming {
	return &Streaming{
		audio:           audio,
		adapter:         adapter,
		finalizeTimeout: DefaultFinalizeTimeout,
	}
}

// WithFinalizeTimeout bounds how long Stop waits for the recognizer's last final result.
func (s *Streaming) WithFinalizeTimeout(d time.Duration) *Streaming {
	s.finalizeTimeout = d
	return s
}

func (s *Streaming) Start(ctx context.Context) (<-chan engine.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil, fmt.Errorf("streaming source already started")
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := s.adapter.Start(runCtx); err != nil {
		cancel()
		return nil, fmt.Errorf("start recognizer: %w", err)
	}
	frames, audioErrs, err := s.audio.Start(runCtx)
	if err != nil {
		cancel()
		_ = s.adapter.Close()
		return nil, fmt.Errorf("start audio: %w", err)
	}

	s.started = true
	s.cancel = cancel
	s.out = make(chan engine.Result, 16)

	s.wg.Add(2)
	go s.sendAudio(runCtx, frames, audioErrs)
	go s.forward(runCtx)
	go func() {
		s.wg.Wait()
		close(s.out)
	}()

	return s.out, nil
}

func (s *Streaming) sendAudio(ctx context.Context, frames <-chan recording.AudioFrame, errs <-chan error) {
	defer s.wg.Done()

	for frames != nil || errs != nil {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			log.Printf("source: audio error: %v", err)
			s.send(ctx, engine.Result{Err: fmt.Errorf("audio: %w", err)})
		case frame, ok := <-frames:
			if !ok {
				frames = nil
				continue
			}
			if len(frame.Data) == 0 {
				continue
			}
			if err := s.adapter.SendChunk(frame.Data); err != nil {
				log.Printf("source: send error: %v", err)
				s.send(ctx, engine.Result{Err: err})
			}
		}
	}

	// audio ran out: collect the last final and let the result stream close
	log.Printf("source: audio input ended")
	s.finish()
}

func (s *Streaming) forward(ctx context.Context) {
	defer s.wg.Done()

	results := s.adapter.Results()
	for {
		select {
		case <-ctx.Done():
			return
		case r, ok := <-results:
			if !ok {
				return
			}
			if r.Error != nil {
				if transcriber.IsFatalTranscriptionError(r.Error) {
					log.Printf("source: %v, ending stream", r.Error)
					s.cancel()
					return
				}
				s.send(ctx, engine.Result{Err: r.Error})
				continue
			}
			s.send(ctx, engine.Result{Text: r.Text, IsFinal: r.IsFinal})
		}
	}
}

func (s *Streaming) send(ctx context.Context, r engine.Result) {
	select {
	case s.out <- r:
	case <-ctx.Done():
	}
}

// finish asks the recognizer for its last final result and closes it.
func (s *Streaming) finish() {
	s.finishOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.finalizeTimeout)
		defer cancel()
		if err := s.adapter.Finalize(ctx); err != nil {
			log.Printf("source: finalize: %v", err)
		}
		if err := s.adapter.Close(); err != nil {
			log.Printf("source: close recognizer: %v", err)
		}
	})
}

// Stop ends audio capture, drains the recognizer and waits for the result
// stream to close. It is safe to call more than once.
func (s *Streaming) Stop() error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	cancel := s.cancel
	s.mu.Unlock()

	if err := s.audio.Stop(); err != nil {
		log.Printf("source: audio stop: %v", err)
	}
	s.finish()

	// give the forwarder a chance to deliver what the recognizer flushed
	drained := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-time.After(s.finalizeTimeout):
	}

	cancel()
	s.wg.Wait()
	return nil
}
