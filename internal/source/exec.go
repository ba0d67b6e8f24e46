package source

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/mattn/go-shellwords"

	"github.com/leonardotrapani/hyprscribe/internal/engine"
)

// Exec runs an external recognizer that prints one JSON result per line on
// stdout, e.g. {"text":"hello world","is_final":true}. The stream ends when
// the process closes stdout.
type Exec struct {
	env  []string
	args []string

	mu     sync.Mutex
	cmd    *exec.Cmd
	cancel context.CancelFunc
	done   chan struct{}
}

type execLine struct {
	Text    string `json:"text"`
	IsFinal bool   `json:"is_final"`
	Error   string `json:"error,omitempty"`
}

func NewExec(command string) (*Exec, error) {
	env, args, err := ParseCommand(command)
	if err != nil {
		return nil, err
	}
	return &Exec{env: env, args: args}, nil
}

// ParseCommand splits a shell-style command line. $VARS are expanded and
// leading NAME=value words are returned separately as environment.
func ParseCommand(command string) (env, args []string, err error) {
	parser := shellwords.NewParser()
	parser.ParseEnv = true
	words, err := parser.Parse(command)
	if err != nil {
		return nil, nil, fmt.Errorf("parse recognizer command: %w", err)
	}
	for len(words) > 0 && isAssignment(words[0]) {
		env = append(env, words[0])
		words = words[1:]
	}
	if len(words) == 0 {
		return nil, nil, fmt.Errorf("recognizer command is empty")
	}
	return env, words, nil
}

func isAssignment(word string) bool {
	name, _, ok := strings.Cut(word, "=")
	if !ok || name == "" {
		return false
	}
	for i, r := range name {
		if r == '_' || (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') || (i > 0 && r >= '0' && r <= '9') {
			continue
		}
		return false
	}
	return true
}

func (e *Exec) Start(ctx context.Context) (<-chan engine.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.done != nil {
		return nil, fmt.Errorf("exec source already started")
	}

	runCtx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(runCtx, e.args[0], e.args[1:]...)
	if len(e.env) > 0 {
		cmd.Env = append(os.Environ(), e.env...)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("start recognizer: %w", err)
	}
	log.Printf("source: started recognizer %s (pid %d)", e.args[0], cmd.Process.Pid)

	e.cmd = cmd
	e.cancel = cancel
	e.done = make(chan struct{})
	out := make(chan engine.Result, 16)

	stderrDone := make(chan struct{})
	go func() {
		defer close(stderrDone)
		scanner := bufio.NewScanner(stderr)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			log.Printf("source: recognizer stderr: %s", scanner.Text())
		}
		if err := scanner.Err(); err != nil && runCtx.Err() == nil {
			log.Printf("source: read recognizer stderr: %v", err)
			cancel()
		}
	}()

	go func() {
		defer close(e.done)
		defer close(out)
		if err := e.readResults(runCtx, stdout, out); err != nil {
			log.Printf("source: read recognizer output: %v", err)
			cancel()
		}
		// both pipes must be drained before Wait closes them
		<-stderrDone
		if err := cmd.Wait(); err != nil && runCtx.Err() == nil {
			log.Printf("source: recognizer exited: %v", err)
		}
	}()

	return out, nil
}

// readResults forwards parsed lines until the output ends. A read error is
// returned unless ctx was already done.
func (e *Exec) readResults(ctx context.Context, r io.Reader, out chan<- engine.Result) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var res engine.Result
		var parsed execLine
		switch err := json.Unmarshal([]byte(line), &parsed); {
		case err != nil:
			res.Err = fmt.Errorf("decode recognizer output: %w", err)
		case parsed.Error != "":
			res.Err = fmt.Errorf("recognizer: %s", parsed.Error)
		default:
			res.Text, res.IsFinal = parsed.Text, parsed.IsFinal
		}

		select {
		case out <- res:
		case <-ctx.Done():
			return nil
		}
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// Stop kills the recognizer process and waits for the stream to close.
func (e *Exec) Stop() error {
	e.mu.Lock()
	cancel, done := e.cancel, e.done
	e.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	return nil
}
