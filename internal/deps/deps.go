package deps

import (
	"os/exec"
	"strings"

	"github.com/leonardotrapani/hyprscribe/internal/config"
	"github.com/leonardotrapani/hyprscribe/internal/source"
)

// Status represents the installation status of a dependency
type Status struct {
	Name      string
	Purpose   string
	Required  bool
	Installed bool
	Path      string
	Version   string
}

// Check looks name up in PATH and, when found, records the first line the
// binary prints for versionArgs.
func Check(name string, versionArgs ...string) Status {
	path, err := exec.LookPath(name)
	if err != nil {
		return Status{Name: name}
	}

	status := Status{Name: name, Installed: true, Path: path}
	if len(versionArgs) == 0 {
		return status
	}

	output, err := exec.Command(path, versionArgs...).CombinedOutput()
	if err == nil {
		lines := strings.Split(string(output), "\n")
		if len(lines) > 0 {
			status.Version = strings.TrimSpace(lines[0])
		}
	}
	return status
}

// CheckPWRecord checks for the PipeWire capture tool used for microphone input.
func CheckPWRecord() Status {
	return Check("pw-record", "--version")
}

// CheckNotifySend checks for the desktop notification helper.
func CheckNotifySend() Status {
	return Check("notify-send", "--version")
}

// ForConfig lists the external binaries cfg needs, in the order a user
// would fix them.
func ForConfig(cfg *config.Config) []Status {
	var out []Status

	if cfg.Transcription.Source == config.SourceDeepgram && cfg.Transcription.AudioFile == "" {
		s := CheckPWRecord()
		s.Purpose = "microphone capture"
		s.Required = true
		out = append(out, s)
	}

	if cfg.Transcription.Source == config.SourceExec {
		if name := commandName(cfg.Transcription.Command); name != "" {
			s := Check(name)
			s.Purpose = "recognizer command"
			s.Required = true
			out = append(out, s)
		}
	}

	if cfg.NotificationType() == "desktop" {
		s := CheckNotifySend()
		s.Purpose = "desktop notifications"
		out = append(out, s)
	}

	return out
}

// Missing returns the required entries that are not installed.
func Missing(statuses []Status) []Status {
	var out []Status
	for _, s := range statuses {
		if s.Required && !s.Installed {
			out = append(out, s)
		}
	}
	return out
}

func commandName(command string) string {
	_, args, err := source.ParseCommand(command)
	if err != nil {
		return ""
	}
	return args[0]
}
