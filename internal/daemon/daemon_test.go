package daemon

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/leonardotrapani/hyprscribe/internal/bus"
	"github.com/leonardotrapani/hyprscribe/internal/config"
	"github.com/leonardotrapani/hyprscribe/internal/engine"
	"github.com/leonardotrapani/hyprscribe/internal/notify"
	"github.com/leonardotrapani/hyprscribe/internal/publish"
	"github.com/leonardotrapani/hyprscribe/internal/source"
	"github.com/leonardotrapani/hyprscribe/internal/testutil"
	"github.com/leonardotrapani/hyprscribe/internal/topics"
)

func newTestDaemon(t *testing.T, opts ...Option) (*Daemon, *testutil.MockSourceFactory) {
	t.Helper()
	srcs := &testutil.MockSourceFactory{}
	opts = append([]Option{WithNotifier(notify.Nop{}), WithSourceFactory(srcs.New)}, opts...)
	d := New(testutil.TestConfig(), opts...)
	t.Cleanup(func() {
		d.cancel()
		d.shutdown()
	})
	return d, srcs
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	testutil.WaitForCondition(t, cond, 5*time.Second)
}

func text(t *testing.T, d *Daemon, tier string) string {
	t.Helper()
	got, err := bus.ParseText(d.Execute(bus.CmdTranscript, []string{tier}))
	if err != nil {
		t.Fatalf("transcript %s: %v", tier, err)
	}
	return got
}

func TestToggleLifecycle(t *testing.T) {
	d, srcs := newTestDaemon(t)

	if got := d.Execute(bus.CmdStatus, nil); got != "STATUS state=idle\n" {
		t.Errorf("idle status = %q", got)
	}

	resp := d.Execute(bus.CmdToggle, nil)
	if !strings.HasPrefix(resp, "OK started session=") {
		t.Fatalf("first toggle = %q", resp)
	}
	id := bus.ParseFields(resp)["session"]

	srcs.Last().Send("hello", false)
	srcs.Last().Send("hello world", true)
	waitFor(t, func() bool { return text(t, d, "working") == "hello world" })

	fields := bus.ParseFields(d.Execute(bus.CmdStatus, nil))
	if fields["state"] != "running" || fields["session"] != id || fields["final_words"] != "2" {
		t.Errorf("running status = %v", fields)
	}

	resp = d.Execute(bus.CmdToggle, nil)
	if resp != "OK stopped session="+id+" words=2\n" {
		t.Errorf("second toggle = %q", resp)
	}
	if got := text(t, d, "long"); got != "hello world" {
		t.Errorf("long-term after stop = %q", got)
	}
	if got := text(t, d, "working"); got != "" {
		t.Errorf("working after stop = %q", got)
	}
	if fields := bus.ParseFields(d.Execute(bus.CmdStatus, nil)); fields["state"] != "stopped" || fields["dumps"] != "1" {
		t.Errorf("stopped status = %v", fields)
	}

	resp = d.Execute(bus.CmdToggle, nil)
	if !strings.HasPrefix(resp, "OK started session=") || bus.ParseFields(resp)["session"] == id {
		t.Errorf("third toggle should start a new session, got %q", resp)
	}
	if got := text(t, d, "full"); got != "" {
		t.Errorf("new session should start empty, got %q", got)
	}
}

func TestSessionEndsWithSource(t *testing.T) {
	script := source.Script{Results: []source.ScriptedResult{
		{Text: "one two"},
		{Text: "one two three", Final: true},
		{Text: "four", Final: true},
	}}
	d, _ := newTestDaemon(t, WithSourceFactory(func(*config.Config) (engine.Source, error) {
		return source.NewReplay(script), nil
	}))

	d.Execute(bus.CmdToggle, nil)
	s := d.current()
	select {
	case <-s.engine.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("session did not end with its source")
	}

	if got := text(t, d, "full"); got != "one two three four" {
		t.Errorf("full transcript = %q", got)
	}
	if got := bus.ParseFields(d.Execute(bus.CmdStatus, nil))["state"]; got != "stopped" {
		t.Errorf("state = %q, want stopped", got)
	}
	if !strings.HasPrefix(d.Execute(bus.CmdToggle, nil), "OK started") {
		t.Error("toggle after an ended session should start a new one")
	}
}

func TestTranscriptAndClearErrors(t *testing.T) {
	d, srcs := newTestDaemon(t)

	if got := d.Execute(bus.CmdTranscript, nil); got != "ERR no session\n" {
		t.Errorf("transcript without session = %q", got)
	}
	if got := d.Execute(bus.CmdClear, nil); got != "ERR no session\n" {
		t.Errorf("clear without session = %q", got)
	}
	if got := d.Execute(bus.CmdTopics, nil); !strings.HasPrefix(got, "ERR") {
		t.Errorf("topics when disabled = %q", got)
	}
	if got := d.Execute("dance", nil); !strings.HasPrefix(got, "ERR unknown") {
		t.Errorf("unknown command = %q", got)
	}
	if got := d.Execute(bus.CmdVersion, nil); got != "STATUS proto="+bus.ProtoVer+"\n" {
		t.Errorf("version = %q", got)
	}

	d.Execute(bus.CmdToggle, nil)
	if got := d.Execute(bus.CmdTranscript, []string{"middle"}); !strings.HasPrefix(got, "ERR unknown tier") {
		t.Errorf("bad tier = %q", got)
	}

	srcs.Last().Send("keep this", true)
	waitFor(t, func() bool { return text(t, d, "working") == "keep this" })
	if got := d.Execute(bus.CmdClear, nil); got != "OK cleared\n" {
		t.Errorf("clear = %q", got)
	}
	if got := text(t, d, "full"); got != "" {
		t.Errorf("full after clear = %q", got)
	}
}

func TestToggleStopServesReadersWhileFinalizing(t *testing.T) {
	d, srcs := newTestDaemon(t)
	hold := make(chan struct{})
	srcs.StopHold = hold
	srcs.FinalOnStop = "almost done"

	d.Execute(bus.CmdToggle, nil)
	src := srcs.Last()
	src.Send("almost", false)
	waitFor(t, func() bool { return text(t, d, "working") == "almost" })

	stopped := make(chan string, 1)
	go func() { stopped <- d.Execute(bus.CmdToggle, nil) }()
	waitFor(t, src.Stopped)

	status := make(chan string, 1)
	go func() { status <- d.Execute(bus.CmdStatus, nil) }()
	select {
	case got := <-status:
		if !strings.Contains(got, "state=running") {
			t.Errorf("status while finalizing = %q", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("status blocked while the session was finalizing")
	}

	close(hold)
	select {
	case resp := <-stopped:
		if !strings.HasPrefix(resp, "OK stopped") || !strings.HasSuffix(resp, "words=2\n") {
			t.Errorf("toggle = %q", resp)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("toggle did not return")
	}
	if got := text(t, d, "long"); got != "almost done" {
		t.Errorf("long-term = %q, want the recognizer's last final", got)
	}
	if fields := bus.ParseFields(d.Execute(bus.CmdStatus, nil)); fields["dumps"] != "1" {
		t.Errorf("status after stop = %v", fields)
	}
}

func TestStartFailure(t *testing.T) {
	d, srcs := newTestDaemon(t)
	srcs.StartError = errors.New("no microphone")
	if got := d.Execute(bus.CmdToggle, nil); !strings.Contains(got, "no microphone") {
		t.Errorf("toggle = %q", got)
	}
	if got := d.Execute(bus.CmdStatus, nil); got != "STATUS state=idle\n" {
		t.Errorf("status after failed start = %q", got)
	}
}

func TestApplyConfigUpdatesPolicy(t *testing.T) {
	d, srcs := newTestDaemon(t)
	d.Execute(bus.CmdToggle, nil)

	old := d.cfg
	updated := *old
	updated.Buffer = config.BufferConfig{MinWordCount: 2, MinTimeSinceDump: 0}
	d.ApplyConfig(old, &updated)

	fields := bus.ParseFields(d.Execute(bus.CmdStatus, nil))
	if fields["min_words"] != "2" {
		t.Errorf("policy not applied: %v", fields)
	}

	srcs.Last().Send("now dumps", true)
	waitFor(t, func() bool { return text(t, d, "long") == "now dumps" })
}

func TestTopicsCommand(t *testing.T) {
	chunker := &testutil.MockChunker{ChunkFunc: func(transcript, existing string) topics.Result {
		return topics.Result{
			Chunks:       map[string]string{"greeting": transcript},
			Descriptions: map[string]string{"greeting": "saying hello"},
		}
	}}
	tracker := topics.NewTracker(chunker, topics.NewManager(), nil)
	d, srcs := newTestDaemon(t, WithTracker(tracker))
	cfg := d.cfg
	cfg.Buffer = config.BufferConfig{MinWordCount: 1}

	d.Execute(bus.CmdToggle, nil)
	srcs.Last().Send("hello there", true)

	waitFor(t, func() bool {
		got, err := bus.ParseText(d.Execute(bus.CmdTopics, nil))
		return err == nil && got == "- greeting: saying hello"
	})
	if calls := chunker.Calls(); len(calls) != 1 || calls[0] != "hello there" {
		t.Errorf("chunker inputs = %q", calls)
	}
}

func TestDumpsArePublished(t *testing.T) {
	ns := testutil.RunNATSServer(t)
	sub, err := nats.Connect(ns.ClientURL())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer sub.Close()
	msgs, err := sub.SubscribeSync(publish.DefaultSubject)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	_ = sub.Flush()

	pub, err := publish.Connect(publish.Config{URL: ns.ClientURL()})
	if err != nil {
		t.Fatalf("publish.Connect: %v", err)
	}
	defer pub.Close()

	d, srcs := newTestDaemon(t, WithPublisher(pub))
	resp := d.Execute(bus.CmdToggle, nil)
	id := bus.ParseFields(resp)["session"]
	srcs.Last().Send("ship it", true)
	waitFor(t, func() bool { return text(t, d, "working") == "ship it" })
	d.Execute(bus.CmdToggle, nil)

	msg, err := msgs.NextMsg(5 * time.Second)
	if err != nil {
		t.Fatalf("no dump published: %v", err)
	}
	var ev publish.DumpEvent
	if err := json.Unmarshal(msg.Data, &ev); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ev.SessionID != id || ev.Text != "ship it" || ev.Words != 2 || ev.Sequence != 1 {
		t.Errorf("event = %+v", ev)
	}
}

func TestRunOverSocket(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", t.TempDir())

	srcs := &testutil.MockSourceFactory{}
	d := New(testutil.TestConfig(), WithNotifier(notify.Nop{}), WithSourceFactory(srcs.New))

	errCh := make(chan error, 1)
	go func() { errCh <- d.Run() }()

	waitFor(t, func() bool {
		_, err := bus.SendCommand(bus.CmdStatus)
		return err == nil
	})

	if out, err := bus.SendCommand(bus.CmdToggle); err != nil || !strings.HasPrefix(out, "OK started") {
		t.Fatalf("toggle over socket = %q, %v", out, err)
	}
	srcs.Last().Send("over the wire", true)
	waitFor(t, func() bool {
		out, err := bus.SendCommand(bus.CmdTranscript, "working")
		if err != nil {
			return false
		}
		got, err := bus.ParseText(out)
		return err == nil && got == "over the wire"
	})

	if out, err := bus.SendCommand(bus.CmdQuit); err != nil || out != "OK quitting\n" {
		t.Errorf("quit = %q, %v", out, err)
	}
	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Run() error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not exit")
	}

	// quitting flushes the running session
	if got := d.current().engine.LongTermBufferText(); got != "over the wire" {
		t.Errorf("long-term after quit = %q", got)
	}
}
