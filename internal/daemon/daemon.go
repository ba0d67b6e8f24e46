package daemon

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/leonardotrapani/hyprscribe/internal/bus"
	"github.com/leonardotrapani/hyprscribe/internal/config"
	"github.com/leonardotrapani/hyprscribe/internal/engine"
	"github.com/leonardotrapani/hyprscribe/internal/notify"
	"github.com/leonardotrapani/hyprscribe/internal/publish"
	"github.com/leonardotrapani/hyprscribe/internal/telemetry"
	"github.com/leonardotrapani/hyprscribe/internal/topics"
	"github.com/leonardotrapani/hyprscribe/internal/transcript"
)

type Option func(*Daemon)

func WithNotifier(n notify.Notifier) Option { return func(d *Daemon) { d.notifier = n } }

func WithMetrics(m *telemetry.Metrics) Option { return func(d *Daemon) { d.metrics = m } }

func WithPublisher(p *publish.Publisher) Option { return func(d *Daemon) { d.publisher = p } }

func WithTracker(t *topics.Tracker) Option { return func(d *Daemon) { d.tracker = t } }

func WithSourceFactory(f SourceFactory) Option { return func(d *Daemon) { d.newSource = f } }

// session is one engine run, from toggle-on to stop or end of stream.
type session struct {
	id      string
	engine  *engine.Engine
	started time.Time
	dumps   atomic.Int64
}

type Daemon struct {
	notifier  notify.Notifier
	metrics   *telemetry.Metrics
	publisher *publish.Publisher
	tracker   *topics.Tracker
	newSource SourceFactory

	mu      sync.Mutex // guards cfg and session
	cfg     *config.Config
	session *session

	ctx    context.Context
	cancel context.CancelFunc
}

func New(cfg *config.Config, opts ...Option) *Daemon {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	ctx, cancel := context.WithCancel(context.Background())
	d := &Daemon{
		notifier:  notify.New(cfg.NotificationType()),
		newSource: NewSource,
		cfg:       cfg,
		ctx:       ctx,
		cancel:    cancel,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.tracker != nil {
		d.tracker.Start(ctx)
	}
	return d
}

// ApplyConfig is a config.Manager subscriber. Buffer thresholds reach a
// running session immediately; everything else applies to the next session.
func (d *Daemon) ApplyConfig(old, new *config.Config) {
	d.mu.Lock()
	d.cfg = new
	s := d.session
	d.mu.Unlock()

	if s != nil && old.Buffer != new.Buffer {
		s.engine.SetPolicy(new.ToDumpPolicy())
		log.Printf("Daemon: dump policy updated to %d words / %v", new.Buffer.MinWordCount, new.Buffer.MinTimeSinceDump)
	}
}

func (d *Daemon) Run() error {
	if err := bus.CheckExistingDaemon(); err != nil {
		return err
	}

	ln, err := bus.Listen()
	if err != nil {
		return err
	}
	defer ln.Close()

	if err := bus.CreatePidFile(); err != nil {
		return fmt.Errorf("failed to create PID file: %w", err)
	}
	defer bus.RemovePidFile()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigCh)

	go func() {
		select {
		case sig := <-sigCh:
			log.Printf("Daemon: received signal %v, shutting down gracefully", sig)
			d.cancel()
		case <-d.ctx.Done():
		}
	}()

	go func() {
		<-d.ctx.Done()
		ln.Close()
	}()

	d.mu.Lock()
	metricsCfg := d.cfg.Metrics
	d.mu.Unlock()
	if d.metrics != nil && metricsCfg.Enabled {
		go func() {
			if err := d.metrics.Serve(d.ctx, metricsCfg.Addr); err != nil {
				log.Printf("Daemon: %v", err)
			}
		}()
	}

	log.Printf("Daemon: started, listening on socket")

	for {
		c, err := ln.Accept()
		if err != nil {
			if d.ctx.Err() != nil {
				log.Printf("Daemon: shutdown requested")
				d.shutdown()
				return nil
			}
			log.Printf("Daemon: accept error: %v", err)
			d.shutdown()
			return fmt.Errorf("accept failed: %w", err)
		}
		go d.handle(c)
	}
}

func (d *Daemon) shutdown() {
	d.mu.Lock()
	s := d.session
	d.mu.Unlock()
	if s != nil && s.engine.State() == engine.Running {
		if err := s.engine.Stop(); err != nil {
			log.Printf("Daemon: stop session: %v", err)
		}
	}
	if d.tracker != nil {
		d.tracker.Close()
	}
}

func (d *Daemon) handle(c net.Conn) {
	defer c.Close()
	_ = c.SetDeadline(time.Now().Add(30 * time.Second))

	line, err := bufio.NewReader(c).ReadString('\n')
	if err != nil {
		log.Printf("Daemon: client read error: %v", err)
		fmt.Fprintf(c, "ERR read_error: %v\n", err)
		return
	}
	cmd, args := bus.ParseRequest(line)
	if cmd == "" {
		fmt.Fprint(c, "ERR empty\n")
		return
	}
	fmt.Fprint(c, d.Execute(cmd, args))
}

// Execute runs one control command and returns the reply line.
func (d *Daemon) Execute(cmd string, args []string) string {
	switch cmd {
	case bus.CmdToggle:
		return d.toggle()
	case bus.CmdStatus:
		return d.status()
	case bus.CmdTranscript:
		tier := "full"
		if len(args) > 0 {
			tier = args[0]
		}
		return d.transcript(tier)
	case bus.CmdClear:
		return d.clear()
	case bus.CmdTopics:
		if d.tracker == nil {
			return "ERR topics disabled\n"
		}
		return bus.FormatText(d.tracker.Manager().Formatted())
	case bus.CmdVersion:
		return fmt.Sprintf("STATUS proto=%s\n", bus.ProtoVer)
	case bus.CmdQuit:
		d.cancel()
		return "OK quitting\n"
	default:
		log.Printf("Daemon: unknown command: %q", cmd)
		return fmt.Sprintf("ERR unknown=%q\n", cmd)
	}
}

func (d *Daemon) toggle() string {
	d.mu.Lock()
	if s := d.session; s != nil && s.engine.State() == engine.Running {
		d.mu.Unlock()
		return d.stopSession(s)
	}
	defer d.mu.Unlock()

	s, err := d.startSession()
	if err != nil {
		log.Printf("Daemon: failed to start session: %v", err)
		go d.notifier.Error(fmt.Sprintf("failed to start: %v", err))
		return fmt.Sprintf("ERR start: %v\n", err)
	}
	d.session = s
	return fmt.Sprintf("OK started session=%s\n", s.id)
}

// stopSession runs without mu so readers stay served while the source
// finalizes. A concurrent stop is not an error; both wait for the flush.
func (d *Daemon) stopSession(s *session) string {
	if err := s.engine.Stop(); err != nil && !engine.IsInvalidState(err) {
		return fmt.Sprintf("ERR stop: %v\n", err)
	}
	<-s.engine.Done()
	return fmt.Sprintf("OK stopped session=%s words=%d\n", s.id, transcript.CountWords(s.engine.FullTranscript()))
}

// startSession must be called with mu held.
func (d *Daemon) startSession() (*session, error) {
	cfg := d.cfg
	src, err := d.newSource(cfg)
	if err != nil {
		return nil, err
	}
	if d.metrics != nil {
		src = d.metrics.InstrumentSource(src)
	}

	s := &session{id: uuid.NewString(), started: time.Now()}
	notifyDumps := cfg.Notifications.Dumps
	s.engine = engine.New(src, engine.Config{
		Policy:                cfg.ToDumpPolicy(),
		OnWorkingBufferUpdate: d.onUpdate,
		OnDump:                func(text string) { d.onDump(s, text, notifyDumps) },
	})

	if d.tracker != nil {
		d.tracker.Reset()
	}
	if err := s.engine.Start(d.ctx); err != nil {
		return nil, err
	}

	if d.metrics != nil {
		d.metrics.SessionStarted(d.ctx)
	}
	go d.notifier.SessionStarted(s.id)
	log.Printf("Daemon: session %s started, source=%s", s.id, cfg.Transcription.Source)

	go d.awaitEnd(s)
	return s, nil
}

// awaitEnd observes both explicit stops and sources that end on their own.
func (d *Daemon) awaitEnd(s *session) {
	<-s.engine.Done()
	words := transcript.CountWords(s.engine.FullTranscript())
	log.Printf("Daemon: session %s ended after %v, dumps=%d words=%d",
		s.id, time.Since(s.started).Round(time.Millisecond), s.dumps.Load(), words)
	if d.metrics != nil {
		d.metrics.SessionEnded(context.Background())
	}
	d.notifier.SessionStopped(s.id, words)
}

func (d *Daemon) onUpdate(text string) {
	if d.metrics != nil {
		d.metrics.RecordUpdate(d.ctx)
	}
}

func (d *Daemon) onDump(s *session, text string, notifyDumps bool) {
	seq := s.dumps.Add(1)
	words := transcript.CountWords(text)

	if d.metrics != nil {
		d.metrics.RecordDump(d.ctx, words, s.engine.State() != engine.Running)
	}
	if d.publisher != nil {
		ev := publish.DumpEvent{SessionID: s.id, Sequence: int(seq), Text: text, Words: words, Timestamp: time.Now()}
		if err := d.publisher.PublishDump(ev); err != nil {
			log.Printf("Daemon: publish dump: %v", err)
		}
	}
	if d.tracker != nil {
		d.tracker.Submit(text)
	}
	if notifyDumps {
		go d.notifier.Dumped(text)
	}
}

// PublishChunks forwards topic chunks of the current session to NATS.
// It is meant to be the tracker's chunk callback.
func (d *Daemon) PublishChunks(chunks map[string]string) {
	if d.publisher == nil {
		return
	}
	d.mu.Lock()
	id := ""
	if d.session != nil {
		id = d.session.id
	}
	d.mu.Unlock()

	for topic, text := range chunks {
		ev := publish.ChunkEvent{SessionID: id, TopicID: topic, Text: text, Timestamp: time.Now()}
		if err := d.publisher.PublishChunk(ev); err != nil {
			log.Printf("Daemon: publish chunk: %v", err)
		}
	}
}

func (d *Daemon) current() *session {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.session
}

func (d *Daemon) status() string {
	s := d.current()
	if s == nil {
		return "STATUS state=idle\n"
	}
	snap := s.engine.Snapshot()
	policy := s.engine.Policy()
	return fmt.Sprintf("STATUS state=%s session=%s final_words=%d long_words=%d dumps=%d min_words=%d min_interval=%v\n",
		snap.State, s.id, s.engine.FinalWordCount(), transcript.CountWords(snap.LongTerm), s.dumps.Load(),
		policy.MinWordCount, policy.MinTimeSinceDump)
}

func (d *Daemon) transcript(tier string) string {
	s := d.current()
	if s == nil {
		return "ERR no session\n"
	}
	snap := s.engine.Snapshot()
	switch strings.ToLower(tier) {
	case "working":
		return bus.FormatText(snap.Working)
	case "long", "longterm", "long-term":
		return bus.FormatText(snap.LongTerm)
	case "full":
		return bus.FormatText(snap.Full())
	default:
		return fmt.Sprintf("ERR unknown tier=%q (working, long, full)\n", tier)
	}
}

func (d *Daemon) clear() string {
	s := d.current()
	if s == nil {
		return "ERR no session\n"
	}
	s.engine.ClearBuffers()
	if d.tracker != nil {
		d.tracker.Reset()
	}
	return "OK cleared\n"
}
