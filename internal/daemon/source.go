package daemon

import (
	"fmt"

	"github.com/leonardotrapani/hyprscribe/internal/config"
	"github.com/leonardotrapani/hyprscribe/internal/engine"
	"github.com/leonardotrapani/hyprscribe/internal/recording"
	"github.com/leonardotrapani/hyprscribe/internal/source"
	"github.com/leonardotrapani/hyprscribe/internal/transcriber"
)

// SourceFactory builds the result source for a new session.
type SourceFactory func(cfg *config.Config) (engine.Source, error)

// NewSource builds the source selected by transcription.source.
func NewSource(cfg *config.Config) (engine.Source, error) {
	switch cfg.Transcription.Source {
	case config.SourceDeepgram:
		return newStreamingSource(cfg)
	case config.SourceReplay:
		script, err := source.LoadScript(cfg.Transcription.ReplayFile)
		if err != nil {
			return nil, err
		}
		return source.NewReplay(script), nil
	case config.SourceExec:
		return source.NewExec(cfg.Transcription.Command)
	default:
		return nil, fmt.Errorf("unsupported transcription source: %q", cfg.Transcription.Source)
	}
}

func newStreamingSource(cfg *config.Config) (engine.Source, error) {
	dgCfg := cfg.ToDeepgramConfig()

	var audio source.AudioInput
	if path := cfg.Transcription.AudioFile; path != "" {
		wav, err := recording.OpenWAV(path, 0, true)
		if err != nil {
			return nil, err
		}
		dgCfg.SampleRate = wav.SampleRate()
		dgCfg.Channels = wav.Channels()
		audio = wav
	} else {
		audio = recording.NewRecorder(cfg.ToRecordingConfig())
	}

	src := source.NewStreaming(audio, transcriber.NewDeepgramAdapter(dgCfg))
	if cfg.Transcription.FinalizeTimeout > 0 {
		src.WithFinalizeTimeout(cfg.Transcription.FinalizeTimeout)
	}
	return src, nil
}
