package tui

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/leonardotrapani/hyprscribe/internal/bus"
)

// Frame is one poll of the daemon.
type Frame struct {
	State      string
	Session    string
	FinalWords string
	Dumps      string
	Working    string
	LongTerm   string
	Topics     string
}

// FetchFunc reads the current Frame, usually from the daemon socket.
type FetchFunc func() (Frame, error)

// FetchFrame queries status and both transcript tiers over the control socket.
func FetchFrame(withTopics bool) (Frame, error) {
	status, err := bus.SendCommand(bus.CmdStatus)
	if err != nil {
		return Frame{}, err
	}
	fields := bus.ParseFields(status)
	f := Frame{
		State:      fields["state"],
		Session:    fields["session"],
		FinalWords: fields["final_words"],
		Dumps:      fields["dumps"],
	}
	if f.Session == "" {
		return f, nil
	}

	if f.Working, err = fetchText(bus.CmdTranscript, "working"); err != nil {
		return f, err
	}
	if f.LongTerm, err = fetchText(bus.CmdTranscript, "long"); err != nil {
		return f, err
	}
	if withTopics {
		// topics may be disabled on the daemon side
		f.Topics, _ = fetchText(bus.CmdTopics)
	}
	return f, nil
}

func fetchText(cmd string, args ...string) (string, error) {
	resp, err := bus.SendCommand(cmd, args...)
	if err != nil {
		return "", err
	}
	return bus.ParseText(resp)
}

// RenderFrame draws a Frame at the given terminal width.
func RenderFrame(f Frame, width int) string {
	if width < 20 {
		width = 80
	}
	inner := width - 4

	var b strings.Builder
	b.WriteString(StyleHeader.Render("hyprscribe"))
	b.WriteString("\n")
	b.WriteString(statusLine(f))
	b.WriteString("\n\n")

	if f.Session == "" {
		b.WriteString(StyleMuted.Render("No session yet. Run `hyprscribe toggle` to start one."))
		b.WriteString("\n")
		return b.String()
	}

	longTerm := f.LongTerm
	if longTerm == "" {
		longTerm = StyleMuted.Render("(nothing committed yet)")
	}
	b.WriteString(StyleLabel.Render("Long-term"))
	b.WriteString("\n")
	b.WriteString(StyleBox.Width(inner).Render(tail(longTerm, 12, inner)))
	b.WriteString("\n")

	working := StyleWorking.Render(f.Working)
	if f.Working == "" {
		working = StyleMuted.Render("(listening)")
	}
	b.WriteString(StyleLabel.Render("Working"))
	b.WriteString("\n")
	b.WriteString(StyleFocusedBox.Width(inner).Render(working))
	b.WriteString("\n")

	if f.Topics != "" {
		b.WriteString(StyleLabel.Render("Topics"))
		b.WriteString("\n")
		b.WriteString(StyleBox.Width(inner).Render(f.Topics))
		b.WriteString("\n")
	}
	return b.String()
}

func statusLine(f Frame) string {
	state := f.State
	if state == "" {
		state = "unknown"
	}
	var stateStyle lipgloss.Style
	switch state {
	case "running":
		stateStyle = StyleSuccess
	case "stopped":
		stateStyle = StyleWarning
	default:
		stateStyle = StyleMuted
	}

	parts := []string{stateStyle.Render("● " + state)}
	if f.Session != "" {
		parts = append(parts, StyleMuted.Render("session "+shortID(f.Session)))
	}
	if f.FinalWords != "" {
		parts = append(parts, StyleMuted.Render(f.FinalWords+" final words"))
	}
	if f.Dumps != "" {
		parts = append(parts, StyleMuted.Render(f.Dumps+" dumps"))
	}
	return strings.Join(parts, StyleMuted.Render("  ·  "))
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// tail keeps roughly the last maxLines wrapped lines of text.
func tail(text string, maxLines, width int) string {
	if width <= 0 {
		return text
	}
	words := strings.Fields(text)
	var lines []string
	var line strings.Builder
	for _, w := range words {
		if line.Len() > 0 && line.Len()+1+len(w) > width {
			lines = append(lines, line.String())
			line.Reset()
		}
		if line.Len() > 0 {
			line.WriteByte(' ')
		}
		line.WriteString(w)
	}
	if line.Len() > 0 {
		lines = append(lines, line.String())
	}
	if len(lines) > maxLines {
		lines = append([]string{"…"}, lines[len(lines)-maxLines:]...)
	}
	return strings.Join(lines, "\n")
}

// Watch redraws the daemon state every interval until ctx is cancelled.
func Watch(ctx context.Context, w io.Writer, interval time.Duration, width int, fetch FetchFunc) error {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	out := termenv.NewOutput(w)
	out.HideCursor()
	defer out.ShowCursor()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		f, err := fetch()
		out.ClearScreen()
		if err != nil {
			fmt.Fprintln(out, StyleError.Render("daemon unreachable: "+err.Error()))
			fmt.Fprintln(out, StyleMuted.Render("start it with `hyprscribe serve`"))
		} else {
			fmt.Fprint(out, RenderFrame(f, width))
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
