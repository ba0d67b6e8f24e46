package config

import (
	"os"
	"strings"

	"github.com/leonardotrapani/hyprscribe/internal/publish"
	"github.com/leonardotrapani/hyprscribe/internal/recording"
	"github.com/leonardotrapani/hyprscribe/internal/topics"
	"github.com/leonardotrapani/hyprscribe/internal/transcriber"
	"github.com/leonardotrapani/hyprscribe/internal/transcript"
)

func (c *Config) ToDumpPolicy() transcript.DumpPolicy {
	return transcript.DumpPolicy{
		MinWordCount:     c.Buffer.MinWordCount,
		MinTimeSinceDump: c.Buffer.MinTimeSinceDump,
	}
}

func (c *Config) ToRecordingConfig() recording.Config {
	return recording.Config{
		SampleRate:        c.Recording.SampleRate,
		Channels:          c.Recording.Channels,
		Format:            c.Recording.Format,
		BufferSize:        c.Recording.BufferSize,
		Device:            c.Recording.Device,
		ChannelBufferSize: c.Recording.ChannelBufferSize,
	}
}

func (c *Config) ToDeepgramConfig() transcriber.DeepgramConfig {
	return transcriber.DeepgramConfig{
		URL:        c.Providers["deepgram"].BaseURL,
		APIKey:     c.APIKey("deepgram"),
		Model:      c.Transcription.Model,
		Language:   c.Transcription.Language,
		Keywords:   c.Transcription.Keywords,
		SampleRate: c.Recording.SampleRate,
		Channels:   c.Recording.Channels,
		Punctuate:  c.Transcription.Punctuate,
	}
}

func (c *Config) ToChunkerConfig() topics.ChunkerConfig {
	return topics.ChunkerConfig{
		APIKey:  c.APIKey("openai"),
		BaseURL: c.Providers["openai"].BaseURL,
		Model:   c.Topics.Model,
		Timeout: c.Topics.Timeout,
	}
}

func (c *Config) ToPublishConfig() publish.Config {
	return publish.Config{
		URL:     c.Publish.URL,
		Subject: c.Publish.Subject,
	}
}

// NotificationType folds notifications.enabled into the notifier kind.
func (c *Config) NotificationType() string {
	if !c.Notifications.Enabled {
		return "none"
	}
	return c.Notifications.Type
}

// APIKey resolves a provider key from [providers.<name>] or <NAME>_API_KEY.
func (c *Config) APIKey(provider string) string {
	if c.Providers != nil {
		if pc, ok := c.Providers[provider]; ok && pc.APIKey != "" {
			return pc.APIKey
		}
	}
	return os.Getenv(EnvVarForProvider(provider))
}

func EnvVarForProvider(provider string) string {
	return strings.ToUpper(strings.ReplaceAll(provider, "-", "_")) + "_API_KEY"
}
