//go:build integration

package main

import (
	"bytes"
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/leonardotrapani/hyprscribe/internal/config"
	"github.com/leonardotrapani/hyprscribe/internal/daemon"
	"github.com/leonardotrapani/hyprscribe/internal/transcript"
)

const testTimeout = 90 * time.Second

// TestDeepgramWAVSession streams a WAV file through the live Deepgram API and
// checks that the session ends with a non-empty long-term transcript.
//
//	DEEPGRAM_API_KEY=... HYPRSCRIBE_TEST_AUDIO=speech.wav go test -tags integration ./cmd/hyprscribe
func TestDeepgramWAVSession(t *testing.T) {
	if os.Getenv("DEEPGRAM_API_KEY") == "" {
		t.Skip("DEEPGRAM_API_KEY not set")
	}
	audio := os.Getenv("HYPRSCRIBE_TEST_AUDIO")
	if audio == "" {
		t.Skip("HYPRSCRIBE_TEST_AUDIO not set")
	}

	for _, lang := range []string{"en", "multi"} {
		t.Run("lang="+lang, func(t *testing.T) {
			cfg := config.DefaultConfig()
			cfg.Transcription.AudioFile = audio
			cfg.Transcription.Language = lang
			cfg.Transcription.Keywords = []string{"Hyprland", "transcription"}
			if err := cfg.Validate(); err != nil {
				t.Fatalf("config: %v", err)
			}

			src, err := daemon.NewSource(cfg)
			if err != nil {
				t.Fatalf("NewSource: %v", err)
			}

			ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
			defer cancel()

			var out bytes.Buffer
			policy := transcript.DumpPolicy{MinWordCount: 5, MinTimeSinceDump: time.Second}
			if err := runLocal(ctx, &out, src, policy, true); err != nil {
				t.Fatalf("runLocal: %v", err)
			}
			if ctx.Err() != nil {
				t.Fatalf("session did not end before the timeout:\n%s", out.String())
			}

			lines := strings.Split(strings.TrimSpace(out.String()), "\n")
			final := lines[len(lines)-1]
			if transcript.CountWords(final) == 0 {
				t.Errorf("empty transcript:\n%s", out.String())
			}
			t.Logf("%s", final)
		})
	}
}
