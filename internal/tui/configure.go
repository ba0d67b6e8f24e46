package tui

import (
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/muesli/termenv"

	"github.com/leonardotrapani/hyprscribe/internal/config"
)

// ConfigureResult holds the configuration result from the TUI
type ConfigureResult struct {
	Config    *config.Config
	Cancelled bool
}

// ConfigSection represents a configuration section
type ConfigSection string

const (
	SectionBuffer        ConfigSection = "buffer"
	SectionTranscription ConfigSection = "transcription"
	SectionProviders     ConfigSection = "providers"
	SectionRecording     ConfigSection = "recording"
	SectionTopics        ConfigSection = "topics"
	SectionPublish       ConfigSection = "publish"
	SectionMetrics       ConfigSection = "metrics"
	SectionNotifications ConfigSection = "notifications"
	SectionSaveExit      ConfigSection = "save_exit"
	SectionDiscardExit   ConfigSection = "discard_exit"
)

// Run starts the configuration menu on a copy of existing. The copy is
// returned only when the user saves and it validates.
func Run(existing *config.Config) (*ConfigureResult, error) {
	if existing == nil {
		existing = config.DefaultConfig()
	}
	cfg := cloneConfig(existing)

	for {
		clearScreen()
		fmt.Println(Logo())
		fmt.Println()

		section, err := selectSection(cfg)
		if err != nil {
			return &ConfigureResult{Cancelled: true}, nil
		}

		switch section {
		case SectionSaveExit:
			if err := cfg.Validate(); err != nil {
				fmt.Println(StyleError.Render("Configuration is invalid: " + err.Error()))
				if !confirm("Keep editing?", "Back to menu", "Discard") {
					return &ConfigureResult{Cancelled: true}, nil
				}
				continue
			}
			confirmed, err := showSummary(cfg)
			if err != nil {
				return &ConfigureResult{Cancelled: true}, nil
			}
			if confirmed {
				return &ConfigureResult{Config: cfg}, nil
			}

		case SectionDiscardExit:
			return &ConfigureResult{Cancelled: true}, nil

		default:
			edit, ok := sectionEditors[section]
			if !ok {
				continue
			}
			// esc inside a section keeps the previous values
			_ = edit(cfg)
		}
	}
}

var sectionEditors = map[ConfigSection]func(*config.Config) error{
	SectionBuffer:        editBuffer,
	SectionTranscription: editTranscription,
	SectionProviders:     editProviders,
	SectionRecording:     editRecording,
	SectionTopics:        editTopics,
	SectionPublish:       editPublish,
	SectionMetrics:       editMetrics,
	SectionNotifications: editNotifications,
}

func selectSection(cfg *config.Config) (ConfigSection, error) {
	var options []huh.Option[ConfigSection]
	for _, s := range menuSections {
		options = append(options, huh.NewOption(sectionLabel(cfg, s), s))
	}

	var selected ConfigSection
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[ConfigSection]().
				Title("Configuration Menu").
				Description("↑/↓ navigate • enter select • esc cancel").
				Options(options...).
				Value(&selected),
		),
	).WithTheme(getTheme())

	if err := form.Run(); err != nil {
		return "", err
	}
	return selected, nil
}

var menuSections = []ConfigSection{
	SectionBuffer,
	SectionTranscription,
	SectionProviders,
	SectionRecording,
	SectionTopics,
	SectionPublish,
	SectionMetrics,
	SectionNotifications,
	SectionSaveExit,
	SectionDiscardExit,
}

func confirm(title, yes, no string) bool {
	ok := true
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(title).
				Affirmative(yes).
				Negative(no).
				Value(&ok),
		),
	).WithTheme(getTheme())
	if err := form.Run(); err != nil {
		return false
	}
	return ok
}

func cloneConfig(src *config.Config) *config.Config {
	cfg := *src
	cfg.Transcription.Keywords = append([]string(nil), src.Transcription.Keywords...)
	cfg.Providers = make(map[string]config.ProviderConfig, len(src.Providers))
	for name, pc := range src.Providers {
		cfg.Providers[name] = pc
	}
	return &cfg
}

// clearScreen clears the terminal screen
func clearScreen() {
	output := termenv.NewOutput(os.Stdout)
	output.ClearScreen()
}
