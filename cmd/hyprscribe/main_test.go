package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/leonardotrapani/hyprscribe/internal/config"
	"github.com/leonardotrapani/hyprscribe/internal/source"
	"github.com/leonardotrapani/hyprscribe/internal/testutil"
	"github.com/leonardotrapani/hyprscribe/internal/transcript"
)

func TestCommandTree(t *testing.T) {
	want := []string{"serve", "toggle", "status", "transcript", "clear", "topics", "version", "stop", "watch", "replay", "listen", "configure", "doctor"}
	for _, name := range want {
		cmd, _, err := rootCmd.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Errorf("command %q not registered", name)
		}
	}
	if cmd, _, err := rootCmd.Find([]string{"quit"}); err != nil || cmd.Name() != "stop" {
		t.Error("quit should alias stop")
	}
}

func TestTranscriptArgs(t *testing.T) {
	cmd := transcriptCmd()
	for _, tier := range transcriptTiers {
		if err := cmd.Args(cmd, []string{tier}); err != nil {
			t.Errorf("tier %q rejected: %v", tier, err)
		}
	}
	if err := cmd.Args(cmd, nil); err != nil {
		t.Errorf("no tier rejected: %v", err)
	}
	if err := cmd.Args(cmd, []string{"middle"}); err == nil {
		t.Error("unknown tier accepted")
	}
	if err := cmd.Args(cmd, []string{"working", "long"}); err == nil {
		t.Error("two tiers accepted")
	}
}

func TestRunLocalReplay(t *testing.T) {
	script := source.Script{Results: []source.ScriptedResult{
		{Text: "hello"},
		{Text: "hello world", Final: true},
		{Text: "again", Final: true},
	}}

	var out bytes.Buffer
	policy := transcript.DumpPolicy{MinWordCount: 2}
	if err := runLocal(context.Background(), &out, source.NewReplay(script), policy, false); err != nil {
		t.Fatalf("runLocal() error: %v", err)
	}

	got := out.String()
	for _, want := range []string{
		"~ hello\n",
		"~ hello world\n",
		"» dump 1: hello world\n",
		"~ again\n",
		"» dump 2: again\n",
		"2 dumps, 3 words\n",
		"hello world again\n",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
	if strings.Index(got, "dump 1") > strings.Index(got, "~ again") {
		t.Error("first dump should come before the next update")
	}
}

func TestRunLocalQuiet(t *testing.T) {
	script := source.Script{Results: []source.ScriptedResult{{Text: "only dumps", Final: true}}}

	var out bytes.Buffer
	if err := runLocal(context.Background(), &out, source.NewReplay(script), transcript.DumpPolicy{}, true); err != nil {
		t.Fatalf("runLocal() error: %v", err)
	}
	if strings.Contains(out.String(), "~") {
		t.Errorf("quiet run printed updates:\n%s", out.String())
	}
	if !strings.Contains(out.String(), "» dump 1: only dumps") {
		t.Errorf("dump missing:\n%s", out.String())
	}
}

func TestRunLocalCancelFlushes(t *testing.T) {
	src := testutil.NewMockSource()
	src.Send("unfinished thought", false)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	var out bytes.Buffer
	policy := transcript.DumpPolicy{MinWordCount: 100, MinTimeSinceDump: time.Hour}
	if err := runLocal(ctx, &out, src, policy, true); err != nil {
		t.Fatalf("runLocal() error: %v", err)
	}
	if !strings.Contains(out.String(), "» dump 1: unfinished thought") {
		t.Errorf("cancel should force a final dump:\n%s", out.String())
	}
	if !src.Stopped() {
		t.Error("source not stopped")
	}
}

func TestLocalPolicyFromConfig(t *testing.T) {
	path := testutil.CreateTempConfigFile(t, "[buffer]\nmin_word_count = 4\nmin_time_since_dump = \"1s\"\n")
	old := configPath
	configPath = path
	t.Cleanup(func() { configPath = old })

	opts := localOptions{minWords: -1, minInterval: -1}
	if p := opts.policy(); p.MinWordCount != 4 || p.MinTimeSinceDump != time.Second {
		t.Errorf("config policy = %+v", p)
	}

	opts = localOptions{minWords: 0, minInterval: 2 * time.Second}
	if p := opts.policy(); p.MinWordCount != 0 || p.MinTimeSinceDump != 2*time.Second {
		t.Errorf("overridden policy = %+v", p)
	}
}

func TestLocalPolicyWithoutConfig(t *testing.T) {
	old := configPath
	configPath = filepath.Join(t.TempDir(), "missing.toml")
	t.Cleanup(func() { configPath = old })

	opts := localOptions{minWords: -1, minInterval: -1}
	if p := opts.policy(); p != transcript.DefaultDumpPolicy() {
		t.Errorf("policy = %+v, want defaults", p)
	}
	if _, err := os.Stat(configPath); !os.IsNotExist(err) {
		t.Error("an explicit missing config should not be created")
	}
}

func TestRunDoctor(t *testing.T) {
	cfg := testutil.TestConfig()
	var out bytes.Buffer
	if err := runDoctor(&out, cfg); err != nil {
		t.Fatalf("runDoctor() error: %v\n%s", err, out.String())
	}
	if !strings.Contains(out.String(), "config is valid") {
		t.Errorf("output = %q", out.String())
	}

	cfg.Transcription.Source = config.SourceExec
	cfg.Transcription.Command = "hyprscribe-no-such-recognizer --stream"
	out.Reset()
	err := runDoctor(&out, cfg)
	if err == nil || !strings.Contains(err.Error(), "1 problem") {
		t.Errorf("runDoctor() error = %v", err)
	}
	if !strings.Contains(out.String(), "hyprscribe-no-such-recognizer (recognizer command) not found") {
		t.Errorf("output = %q", out.String())
	}
}
