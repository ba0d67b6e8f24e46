package config

import "time"

type Config struct {
	Buffer        BufferConfig              `toml:"buffer"`
	Recording     RecordingConfig           `toml:"recording"`
	Transcription TranscriptionConfig       `toml:"transcription"`
	Providers     map[string]ProviderConfig `toml:"providers"`
	Topics        TopicsConfig              `toml:"topics"`
	Publish       PublishConfig             `toml:"publish"`
	Metrics       MetricsConfig             `toml:"metrics"`
	Notifications NotificationsConfig       `toml:"notifications"`
}

// BufferConfig is the dump policy: working text moves to long-term storage
// once both thresholds are met on a final result.
type BufferConfig struct {
	MinWordCount     int           `toml:"min_word_count"`
	MinTimeSinceDump time.Duration `toml:"min_time_since_dump"`
}

type RecordingConfig struct {
	SampleRate        int    `toml:"sample_rate"`
	Channels          int    `toml:"channels"`
	Format            string `toml:"format"`
	BufferSize        int    `toml:"buffer_size"`
	Device            string `toml:"device"`
	ChannelBufferSize int    `toml:"channel_buffer_size"`
}

const (
	SourceDeepgram = "deepgram"
	SourceReplay   = "replay"
	SourceExec     = "exec"
)

type TranscriptionConfig struct {
	Source          string        `toml:"source"` // "deepgram", "replay", "exec"
	Model           string        `toml:"model"`
	Language        string        `toml:"language"`
	Keywords        []string      `toml:"keywords"`
	Punctuate       bool          `toml:"punctuate"`
	AudioFile       string        `toml:"audio_file"`  // stream a WAV file instead of the microphone
	ReplayFile      string        `toml:"replay_file"` // YAML result script for source = "replay"
	Command         string        `toml:"command"`     // recognizer command for source = "exec"
	FinalizeTimeout time.Duration `toml:"finalize_timeout"`
}

// ProviderConfig holds credentials for a remote provider.
type ProviderConfig struct {
	APIKey  string `toml:"api_key"`
	BaseURL string `toml:"base_url"`
}

type TopicsConfig struct {
	Enabled bool          `toml:"enabled"`
	Model   string        `toml:"model"`
	Timeout time.Duration `toml:"timeout"`
}

type PublishConfig struct {
	Enabled bool   `toml:"enabled"`
	URL     string `toml:"url"`
	Subject string `toml:"subject"`
}

type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Addr    string `toml:"addr"`
}

type NotificationsConfig struct {
	Enabled bool   `toml:"enabled"`
	Type    string `toml:"type"`  // "desktop", "log", "none"
	Dumps   bool   `toml:"dumps"` // also notify on every dump
}
