package tui

import (
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/huh"

	"github.com/leonardotrapani/hyprscribe/internal/config"
	"github.com/leonardotrapani/hyprscribe/internal/language"
)

// sectionLabel formats a menu entry with the section's current setting.
func sectionLabel(cfg *config.Config, s ConfigSection) string {
	switch s {
	case SectionBuffer:
		return fmt.Sprintf("Dump Policy (%d words, %s)", cfg.Buffer.MinWordCount, cfg.Buffer.MinTimeSinceDump)
	case SectionTranscription:
		return fmt.Sprintf("Transcription (%s)", transcriptionSummary(cfg))
	case SectionProviders:
		if p := configuredProviders(cfg); len(p) > 0 {
			return fmt.Sprintf("Providers (%s)", strings.Join(p, ", "))
		}
		return "Providers (none)"
	case SectionRecording:
		return fmt.Sprintf("Recording (%d Hz, %d ch)", cfg.Recording.SampleRate, cfg.Recording.Channels)
	case SectionTopics:
		return "Topics " + onOff(cfg.Topics.Enabled)
	case SectionPublish:
		return "NATS Publishing " + onOff(cfg.Publish.Enabled)
	case SectionMetrics:
		return "Metrics " + onOff(cfg.Metrics.Enabled)
	case SectionNotifications:
		if !cfg.Notifications.Enabled {
			return "Notifications (off)"
		}
		return fmt.Sprintf("Notifications (%s)", cfg.Notifications.Type)
	case SectionSaveExit:
		return "Save & Exit"
	case SectionDiscardExit:
		return "Discard & Exit"
	}
	return string(s)
}

func transcriptionSummary(cfg *config.Config) string {
	t := cfg.Transcription
	switch t.Source {
	case config.SourceReplay:
		return "replay " + t.ReplayFile
	case config.SourceExec:
		return "exec " + t.Command
	default:
		s := fmt.Sprintf("%s %s", t.Source, t.Model)
		if t.AudioFile != "" {
			s += " from " + t.AudioFile
		}
		return s
	}
}

func onOff(enabled bool) string {
	if enabled {
		return "(on)"
	}
	return "(off)"
}

func configuredProviders(cfg *config.Config) []string {
	providers := make([]string, 0, len(cfg.Providers))
	for name, pc := range cfg.Providers {
		if pc.APIKey != "" {
			providers = append(providers, name)
		}
	}
	sort.Strings(providers)
	return providers
}

func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "***"
	}
	return key[:7] + "..." + key[len(key)-4:]
}

func validateNonNegativeInt(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("must be a number")
	}
	if n < 0 {
		return fmt.Errorf("must not be negative")
	}
	return nil
}

func validatePositiveInt(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("must be a number")
	}
	if n <= 0 {
		return fmt.Errorf("must be greater than zero")
	}
	return nil
}

func validateDuration(s string) error {
	d, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("invalid duration format (use '5s', '1m30s', etc.)")
	}
	if d < 0 {
		return fmt.Errorf("must not be negative")
	}
	return nil
}

func validateLanguage(s string) error {
	if !language.IsValidCode(s) {
		return fmt.Errorf("unsupported language (try one of %s, or multi)", strings.Join(language.Codes()[:6], ", "))
	}
	return nil
}

func validateHostPort(s string) error {
	if _, _, err := net.SplitHostPort(strings.TrimSpace(s)); err != nil {
		return fmt.Errorf("expected host:port")
	}
	return nil
}

func validateSubject(s string) error {
	s = strings.TrimSpace(s)
	if s == "" || strings.ContainsAny(s, " \t*>") {
		return fmt.Errorf("must be a literal NATS subject")
	}
	return nil
}

func atoi(s string) int {
	n, _ := strconv.Atoi(strings.TrimSpace(s))
	return n
}

func parseDuration(s string) time.Duration {
	d, _ := time.ParseDuration(strings.TrimSpace(s))
	return d
}

// parseKeywords splits a comma separated list, dropping blanks.
func parseKeywords(s string) []string {
	var out []string
	for _, kw := range strings.Split(s, ",") {
		if kw = strings.TrimSpace(kw); kw != "" {
			out = append(out, kw)
		}
	}
	return out
}

// summaryLines lists the settings shown before saving.
func summaryLines(cfg *config.Config) [][2]string {
	lines := [][2]string{
		{"Dump policy:", fmt.Sprintf("%d words, %s", cfg.Buffer.MinWordCount, cfg.Buffer.MinTimeSinceDump)},
		{"Source:", transcriptionSummary(cfg)},
	}
	if cfg.Transcription.Source == config.SourceDeepgram && cfg.Transcription.Language != "" {
		lines = append(lines, [2]string{"Language:", language.Label(cfg.Transcription.Language)})
	}
	if len(cfg.Transcription.Keywords) > 0 {
		lines = append(lines, [2]string{"Keywords:", strings.Join(cfg.Transcription.Keywords, ", ")})
	}
	if p := configuredProviders(cfg); len(p) > 0 {
		lines = append(lines, [2]string{"Providers:", strings.Join(p, ", ")})
	}
	if cfg.Topics.Enabled {
		lines = append(lines, [2]string{"Topics:", cfg.Topics.Model})
	} else {
		lines = append(lines, [2]string{"Topics:", "disabled"})
	}
	if cfg.Publish.Enabled {
		lines = append(lines, [2]string{"Publish:", cfg.Publish.Subject + " @ " + cfg.Publish.URL})
	} else {
		lines = append(lines, [2]string{"Publish:", "disabled"})
	}
	if cfg.Metrics.Enabled {
		lines = append(lines, [2]string{"Metrics:", "http://" + cfg.Metrics.Addr + "/metrics"})
	} else {
		lines = append(lines, [2]string{"Metrics:", "disabled"})
	}
	lines = append(lines, [2]string{"Notifications:", cfg.NotificationType()})
	return lines
}

func showSummary(cfg *config.Config) (bool, error) {
	fmt.Println()
	fmt.Println(StyleHeader.Render("Configuration Summary"))
	for _, l := range summaryLines(cfg) {
		fmt.Printf("  %s %s\n", StyleLabel.Render(l[0]), l[1])
	}
	fmt.Println()

	var confirmed bool
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Save this configuration?").
				Affirmative("Save").
				Negative("Cancel").
				Value(&confirmed),
		),
	).WithTheme(getTheme())

	if err := form.Run(); err != nil {
		return false, err
	}
	return confirmed, nil
}
