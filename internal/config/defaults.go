package config

import "time"

// DefaultConfig returns the configuration written on first run.
func DefaultConfig() *Config {
	return &Config{
		Buffer: BufferConfig{
			MinWordCount:     10,
			MinTimeSinceDump: 5 * time.Second,
		},
		Recording: RecordingConfig{
			SampleRate:        16000,
			Channels:          1,
			Format:            "s16",
			BufferSize:        8192,
			Device:            "",
			ChannelBufferSize: 30,
		},
		Transcription: TranscriptionConfig{
			Source:          SourceDeepgram,
			Model:           "nova-3",
			Language:        "en",
			Punctuate:       true,
			FinalizeTimeout: 3 * time.Second,
		},
		Providers: make(map[string]ProviderConfig),
		Topics: TopicsConfig{
			Enabled: false,
			Model:   "gpt-4o-mini",
			Timeout: 30 * time.Second,
		},
		Publish: PublishConfig{
			Enabled: false,
			URL:     "nats://127.0.0.1:4222",
			Subject: "hyprscribe.transcript.dump",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    "127.0.0.1:9464",
		},
		Notifications: NotificationsConfig{
			Enabled: true,
			Type:    "desktop",
		},
	}
}
