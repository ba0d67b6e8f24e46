package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/leonardotrapani/hyprscribe/internal/config"
	"github.com/leonardotrapani/hyprscribe/internal/language"
)

func editBuffer(cfg *config.Config) error {
	minWords := strconv.Itoa(cfg.Buffer.MinWordCount)
	minInterval := cfg.Buffer.MinTimeSinceDump.String()

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Minimum Final Words").
				Description("Finalized words required before the working text is committed. 0 commits on every final.").
				Placeholder("10").
				Value(&minWords).
				Validate(validateNonNegativeInt),
			huh.NewInput().
				Title("Minimum Time Between Dumps").
				Description("Both thresholds must be met (e.g., '5s', '1m'). A running daemon picks this up on save.").
				Placeholder("5s").
				Value(&minInterval).
				Validate(validateDuration),
		),
	).WithTheme(getTheme())

	if err := form.Run(); err != nil {
		return err
	}

	cfg.Buffer.MinWordCount = atoi(minWords)
	cfg.Buffer.MinTimeSinceDump = parseDuration(minInterval)
	return nil
}

func editTranscription(cfg *config.Config) error {
	src := cfg.Transcription.Source
	if src == "" {
		src = config.SourceDeepgram
	}

	sourceForm := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Recognition Source").
				Description("Where transcription results come from").
				Options(
					huh.NewOption("Deepgram streaming (microphone or WAV file)", config.SourceDeepgram),
					huh.NewOption("Replay a YAML result script", config.SourceReplay),
					huh.NewOption("External recognizer command (JSON lines)", config.SourceExec),
				).
				Value(&src),
		),
	).WithTheme(getTheme())

	if err := sourceForm.Run(); err != nil {
		return err
	}

	switch src {
	case config.SourceReplay:
		return editReplaySource(cfg)
	case config.SourceExec:
		return editExecSource(cfg)
	default:
		return editDeepgramSource(cfg)
	}
}

func editDeepgramSource(cfg *config.Config) error {
	t := cfg.Transcription
	model := t.Model
	lang := t.Language
	keywords := strings.Join(t.Keywords, ", ")
	punctuate := t.Punctuate
	audioFile := t.AudioFile
	finalize := t.FinalizeTimeout.String()

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Model").
				Options(
					huh.NewOption("nova-3 - Recommended", "nova-3"),
					huh.NewOption("nova-2", "nova-2"),
				).
				Value(&model),
			huh.NewInput().
				Title("Language").
				Description(fmt.Sprintf("Currently %s. ISO code such as 'en' or 'pt-BR', or 'multi' for code switching.", language.Label(t.Language))).
				Placeholder("en").
				Value(&lang).
				Validate(validateLanguage),
			huh.NewConfirm().
				Title("Smart punctuation?").
				Value(&punctuate),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Keywords").
				Description("Comma separated terms to boost (names, jargon)").
				Value(&keywords),
			huh.NewInput().
				Title("Audio File").
				Description("Stream a 16-bit WAV file instead of the microphone. Empty = microphone.").
				Placeholder("(microphone)").
				Value(&audioFile),
			huh.NewInput().
				Title("Finalize Timeout").
				Description("How long to wait for the last results after stopping").
				Placeholder("3s").
				Value(&finalize).
				Validate(validateDuration),
		),
	).WithTheme(getTheme())

	if err := form.Run(); err != nil {
		return err
	}

	if cfg.APIKey(config.SourceDeepgram) == "" {
		fmt.Println(StyleWarning.Render("No Deepgram API key found. Add one under Providers or set " +
			config.EnvVarForProvider(config.SourceDeepgram) + "."))
	}

	cfg.Transcription.Source = config.SourceDeepgram
	cfg.Transcription.Model = model
	cfg.Transcription.Language = strings.TrimSpace(lang)
	cfg.Transcription.Punctuate = punctuate
	cfg.Transcription.Keywords = parseKeywords(keywords)
	cfg.Transcription.AudioFile = strings.TrimSpace(audioFile)
	cfg.Transcription.FinalizeTimeout = parseDuration(finalize)
	return nil
}

func editReplaySource(cfg *config.Config) error {
	file := cfg.Transcription.ReplayFile

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Replay Script").
				Description("YAML file with a list of results (text, final, delay)").
				Value(&file).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("a script path is required")
					}
					return nil
				}),
		),
	).WithTheme(getTheme())

	if err := form.Run(); err != nil {
		return err
	}

	cfg.Transcription.Source = config.SourceReplay
	cfg.Transcription.ReplayFile = strings.TrimSpace(file)
	return nil
}

func editExecSource(cfg *config.Config) error {
	command := cfg.Transcription.Command

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Recognizer Command").
				Description(`Prints one JSON object per line: {"text": "...", "is_final": true}`).
				Value(&command).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("a command is required")
					}
					return nil
				}),
		),
	).WithTheme(getTheme())

	if err := form.Run(); err != nil {
		return err
	}

	cfg.Transcription.Source = config.SourceExec
	cfg.Transcription.Command = strings.TrimSpace(command)
	return nil
}

// providerNames lists the providers hyprscribe talks to.
var providerNames = []string{"deepgram", "openai"}

func editProviders(cfg *config.Config) error {
	name := providerNames[0]
	var options []huh.Option[string]
	for _, p := range providerNames {
		label := p
		if pc, ok := cfg.Providers[p]; ok && pc.APIKey != "" {
			label = fmt.Sprintf("%s (%s)", p, maskAPIKey(pc.APIKey))
		}
		options = append(options, huh.NewOption(label, p))
	}

	selectForm := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Provider").
				Description("deepgram runs recognition, openai runs topic chunking").
				Options(options...).
				Value(&name),
		),
	).WithTheme(getTheme())

	if err := selectForm.Run(); err != nil {
		return err
	}

	pc := cfg.Providers[name]
	apiKey := pc.APIKey
	baseURL := pc.BaseURL

	keyForm := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title(name+" API Key").
				Description("Leave empty to use "+config.EnvVarForProvider(name)).
				EchoMode(huh.EchoModePassword).
				Value(&apiKey),
			huh.NewInput().
				Title("Base URL").
				Description("Optional endpoint override").
				Value(&baseURL),
		),
	).WithTheme(getTheme())

	if err := keyForm.Run(); err != nil {
		return err
	}

	if cfg.Providers == nil {
		cfg.Providers = make(map[string]config.ProviderConfig)
	}
	pc.APIKey = strings.TrimSpace(apiKey)
	pc.BaseURL = strings.TrimSpace(baseURL)
	if pc.APIKey == "" && pc.BaseURL == "" {
		delete(cfg.Providers, name)
	} else {
		cfg.Providers[name] = pc
	}
	return nil
}

func editRecording(cfg *config.Config) error {
	sampleRate := strconv.Itoa(cfg.Recording.SampleRate)
	channels := strconv.Itoa(cfg.Recording.Channels)
	bufferSize := strconv.Itoa(cfg.Recording.BufferSize)
	channelBufferSize := strconv.Itoa(cfg.Recording.ChannelBufferSize)
	device := cfg.Recording.Device

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Sample Rate (Hz)").
				Description("16000 is optimal for speech recognition").
				Placeholder("16000").
				Value(&sampleRate).
				Validate(validatePositiveInt),
			huh.NewSelect[string]().
				Title("Channels").
				Options(
					huh.NewOption("1 (Mono) - Recommended", "1"),
					huh.NewOption("2 (Stereo)", "2"),
				).
				Value(&channels),
			huh.NewInput().
				Title("Device").
				Description("PipeWire target. Empty = default microphone.").
				Placeholder("(default)").
				Value(&device),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Buffer Size (bytes)").
				Description("Bytes read from pw-record per frame").
				Placeholder("8192").
				Value(&bufferSize).
				Validate(validatePositiveInt),
			huh.NewInput().
				Title("Channel Buffer Size").
				Description("Frames queued before new audio is dropped").
				Placeholder("30").
				Value(&channelBufferSize).
				Validate(validatePositiveInt),
		),
	).WithTheme(getTheme())

	if err := form.Run(); err != nil {
		return err
	}

	cfg.Recording.SampleRate = atoi(sampleRate)
	cfg.Recording.Channels = atoi(channels)
	cfg.Recording.Device = strings.TrimSpace(device)
	cfg.Recording.BufferSize = atoi(bufferSize)
	cfg.Recording.ChannelBufferSize = atoi(channelBufferSize)
	return nil
}

func editTopics(cfg *config.Config) error {
	enabled := cfg.Topics.Enabled
	model := cfg.Topics.Model
	timeout := cfg.Topics.Timeout.String()

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Group dumps into topics?").
				Description("Each dump is sent to an OpenAI chat model that files it under a topic").
				Value(&enabled),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Model").
				Placeholder("gpt-4o-mini").
				Value(&model),
			huh.NewInput().
				Title("Request Timeout").
				Placeholder("30s").
				Value(&timeout).
				Validate(validateDuration),
		).WithHideFunc(func() bool { return !enabled }),
	).WithTheme(getTheme())

	if err := form.Run(); err != nil {
		return err
	}

	cfg.Topics.Enabled = enabled
	if enabled {
		cfg.Topics.Model = strings.TrimSpace(model)
		cfg.Topics.Timeout = parseDuration(timeout)
		if cfg.APIKey("openai") == "" {
			fmt.Println(StyleWarning.Render("Topics need an OpenAI API key. Add one under Providers or set OPENAI_API_KEY."))
		}
	}
	return nil
}

func editPublish(cfg *config.Config) error {
	enabled := cfg.Publish.Enabled
	url := cfg.Publish.URL
	subject := cfg.Publish.Subject

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Publish dumps to NATS?").
				Value(&enabled),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Server URL").
				Placeholder("nats://127.0.0.1:4222").
				Value(&url),
			huh.NewInput().
				Title("Subject").
				Description("Topic chunks go to <subject>.chunks").
				Placeholder("hyprscribe.transcript.dump").
				Value(&subject).
				Validate(validateSubject),
		).WithHideFunc(func() bool { return !enabled }),
	).WithTheme(getTheme())

	if err := form.Run(); err != nil {
		return err
	}

	cfg.Publish.Enabled = enabled
	if enabled {
		cfg.Publish.URL = strings.TrimSpace(url)
		cfg.Publish.Subject = strings.TrimSpace(subject)
	}
	return nil
}

func editMetrics(cfg *config.Config) error {
	enabled := cfg.Metrics.Enabled
	addr := cfg.Metrics.Addr

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Expose Prometheus metrics?").
				Value(&enabled),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Listen Address").
				Description("Served at /metrics").
				Placeholder("127.0.0.1:9464").
				Value(&addr).
				Validate(validateHostPort),
		).WithHideFunc(func() bool { return !enabled }),
	).WithTheme(getTheme())

	if err := form.Run(); err != nil {
		return err
	}

	cfg.Metrics.Enabled = enabled
	if enabled {
		cfg.Metrics.Addr = strings.TrimSpace(addr)
	}
	return nil
}

func editNotifications(cfg *config.Config) error {
	enabled := cfg.Notifications.Enabled
	notifType := cfg.Notifications.Type
	if notifType == "" {
		notifType = "desktop"
	}
	dumps := cfg.Notifications.Dumps

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Enable notifications?").
				Description("Shown when a session starts or stops").
				Value(&enabled),
		),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Notification Type").
				Options(
					huh.NewOption("Desktop notifications (notify-send)", "desktop"),
					huh.NewOption("Log to console only", "log"),
					huh.NewOption("None (silent)", "none"),
				).
				Value(&notifType),
			huh.NewConfirm().
				Title("Also notify on every dump?").
				Value(&dumps),
		).WithHideFunc(func() bool { return !enabled }),
	).WithTheme(getTheme())

	if err := form.Run(); err != nil {
		return err
	}

	cfg.Notifications.Enabled = enabled
	cfg.Notifications.Type = notifType
	cfg.Notifications.Dumps = enabled && dumps
	return nil
}
