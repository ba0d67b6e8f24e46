package source

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/leonardotrapani/hyprscribe/internal/engine"
)

// Script is a recorded result stream, usually loaded from YAML:
//
//	results:
//	  - text: hello
//	    delay: 200ms
//	  - text: hello world
//	    final: true
type Script struct {
	Results []ScriptedResult `yaml:"results"`
}

type ScriptedResult struct {
	Text  string        `yaml:"text"`
	Final bool          `yaml:"final"`
	Delay time.Duration `yaml:"delay,omitempty"` // wait before emitting
}

func LoadScript(path string) (Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Script{}, fmt.Errorf("read script: %w", err)
	}
	return ParseScript(data)
}

func ParseScript(data []byte) (Script, error) {
	var s Script
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Script{}, fmt.Errorf("parse script: %w", err)
	}
	for i, r := range s.Results {
		if r.Delay < 0 {
			return Script{}, fmt.Errorf("parse script: result %d has negative delay", i)
		}
	}
	return s, nil
}

// Replay emits a Script's results in order and then ends the stream.
type Replay struct {
	script Script

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewReplay(script Script) *Replay {
	return &Replay{script: script}
}

func (r *Replay) Start(ctx context.Context) (<-chan engine.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.done != nil {
		return nil, fmt.Errorf("replay already started")
	}

	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})
	out := make(chan engine.Result)

	go func() {
		defer close(r.done)
		defer close(out)
		for _, sr := range r.script.Results {
			if sr.Delay > 0 {
				timer := time.NewTimer(sr.Delay)
				select {
				case <-timer.C:
				case <-runCtx.Done():
					timer.Stop()
					return
				}
			}
			select {
			case out <- engine.Result{Text: sr.Text, IsFinal: sr.Final}:
			case <-runCtx.Done():
				return
			}
		}
	}()

	return out, nil
}

func (r *Replay) Stop() error {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	return nil
}
