package notify

import (
	"fmt"
	"log"
	"os/exec"
	"strings"
)

const appName = "Hyprscribe"

type Notifier interface {
	SessionStarted(id string)
	SessionStopped(id string, words int)
	Dumped(text string)
	Error(msg string)
}

// New picks a notifier by config type: "desktop", "log" or anything else for none.
func New(kind string) Notifier {
	switch kind {
	case "desktop":
		return Desktop{}
	case "log":
		return Log{}
	default:
		return Nop{}
	}
}

// preview shortens text for a notification body.
func preview(text string, maxWords int) string {
	words := strings.Fields(text)
	if len(words) <= maxWords {
		return strings.Join(words, " ")
	}
	return strings.Join(words[:maxWords], " ") + "…"
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

type Desktop struct{}

func (Desktop) SessionStarted(id string) {
	send("normal", appName+": Transcribing", "session "+shortID(id))
}

func (Desktop) SessionStopped(id string, words int) {
	send("normal", appName+": Stopped", fmt.Sprintf("session %s, %d words", shortID(id), words))
}

func (Desktop) Dumped(text string) {
	send("low", appName+": Committed", preview(text, 12))
}

func (Desktop) Error(msg string) {
	send("critical", appName+": Error", msg)
}

func send(urgency, title, body string) {
	cmd := exec.Command("notify-send", "-a", appName, "-u", urgency, title, body)
	if err := cmd.Run(); err != nil {
		log.Printf("notify: failed to send notification: %v", err)
	}
}

// Log writes notifications to the standard logger.
type Log struct{}

func (Log) SessionStarted(id string) {
	log.Printf("notify: %s session %s started", appName, id)
}

func (Log) SessionStopped(id string, words int) {
	log.Printf("notify: %s session %s stopped, %d words", appName, id, words)
}

func (Log) Dumped(text string) {
	log.Printf("notify: %s committed %q", appName, preview(text, 12))
}

func (Log) Error(msg string) {
	log.Printf("notify: %s error: %s", appName, msg)
}

// Nop is a Notifier that does nothing.
type Nop struct{}

func (Nop) SessionStarted(string)      {}
func (Nop) SessionStopped(string, int) {}
func (Nop) Dumped(string)              {}
func (Nop) Error(string)               {}
