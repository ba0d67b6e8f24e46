package config

import (
	"fmt"
	"net"
	"strings"

	"github.com/leonardotrapani/hyprscribe/internal/language"
)

func (c *Config) Validate() error {
	if c.Buffer.MinWordCount < 0 {
		return fmt.Errorf("invalid buffer.min_word_count: %d", c.Buffer.MinWordCount)
	}
	if c.Buffer.MinTimeSinceDump < 0 {
		return fmt.Errorf("invalid buffer.min_time_since_dump: %v", c.Buffer.MinTimeSinceDump)
	}

	if c.Recording.SampleRate <= 0 {
		return fmt.Errorf("invalid recording.sample_rate: %d", c.Recording.SampleRate)
	}
	if c.Recording.Channels <= 0 {
		return fmt.Errorf("invalid recording.channels: %d", c.Recording.Channels)
	}
	if c.Recording.BufferSize <= 0 {
		return fmt.Errorf("invalid recording.buffer_size: %d", c.Recording.BufferSize)
	}
	if c.Recording.ChannelBufferSize <= 0 {
		return fmt.Errorf("invalid recording.channel_buffer_size: %d", c.Recording.ChannelBufferSize)
	}
	if c.Recording.Format == "" {
		return fmt.Errorf("invalid recording.format: empty")
	}

	if err := c.validateTranscription(); err != nil {
		return err
	}

	if c.Topics.Enabled {
		if c.APIKey("openai") == "" {
			return fmt.Errorf("OpenAI API key required for topics: not found in config (providers.openai.api_key) or environment variable (OPENAI_API_KEY)")
		}
		if c.Topics.Model == "" {
			return fmt.Errorf("invalid topics.model: empty")
		}
		if c.Topics.Timeout < 0 {
			return fmt.Errorf("invalid topics.timeout: %v", c.Topics.Timeout)
		}
	}

	if c.Publish.Enabled {
		if c.Publish.URL == "" {
			return fmt.Errorf("invalid publish.url: empty")
		}
		if c.Publish.Subject == "" || strings.ContainsAny(c.Publish.Subject, " \t*>") {
			return fmt.Errorf("invalid publish.subject: %q (must be a literal NATS subject)", c.Publish.Subject)
		}
	}

	if c.Metrics.Enabled {
		if _, _, err := net.SplitHostPort(c.Metrics.Addr); err != nil {
			return fmt.Errorf("invalid metrics.addr: %q: %w", c.Metrics.Addr, err)
		}
	}

	validTypes := map[string]bool{"desktop": true, "log": true, "none": true}
	if !validTypes[c.Notifications.Type] {
		return fmt.Errorf("invalid notifications.type: %s (must be desktop, log, or none)", c.Notifications.Type)
	}

	return nil
}

func (c *Config) validateTranscription() error {
	t := c.Transcription
	switch t.Source {
	case SourceDeepgram:
		if c.APIKey("deepgram") == "" {
			return fmt.Errorf("Deepgram API key required: not found in config (providers.deepgram.api_key) or environment variable (DEEPGRAM_API_KEY)")
		}
		if t.Model == "" {
			return fmt.Errorf("invalid transcription.model: empty")
		}
		if !language.IsValidCode(t.Language) {
			return fmt.Errorf("invalid transcription.language: %s (use ISO-639-1 codes like 'en', 'es', 'fr', optionally with a region like 'en-US')", t.Language)
		}
	case SourceReplay:
		if t.ReplayFile == "" {
			return fmt.Errorf("invalid transcription.replay_file: required for source %q", SourceReplay)
		}
	case SourceExec:
		if strings.TrimSpace(t.Command) == "" {
			return fmt.Errorf("invalid transcription.command: required for source %q", SourceExec)
		}
	default:
		return fmt.Errorf("invalid transcription.source: %q (must be deepgram, replay, or exec)", t.Source)
	}
	if t.FinalizeTimeout < 0 {
		return fmt.Errorf("invalid transcription.finalize_timeout: %v", t.FinalizeTimeout)
	}
	return nil
}
