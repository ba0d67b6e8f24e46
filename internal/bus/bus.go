package bus

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
)

const SockName = "control.sock"
const PidName = "hyprscribe.pid"
const ProtoVer = "0.2"

// Commands understood by the daemon.
const (
	CmdToggle     = "toggle"
	CmdStatus     = "status"
	CmdTranscript = "transcript"
	CmdClear      = "clear"
	CmdTopics     = "topics"
	CmdVersion    = "version"
	CmdQuit       = "quit"
)

// ~/.cache/hyprscribe
func Dir() (string, error) {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "hyprscribe"), nil
}

// ~/.cache/hyprscribe/control.sock
func SockPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, SockName), nil
}

// ~/.cache/hyprscribe/hyprscribe.pid
func PidPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, PidName), nil
}

type socketManager struct {
	path string
}

func (s *socketManager) listen() (net.Listener, error) {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return nil, err
	}
	_ = os.Remove(s.path) // stale socket from last run
	return net.Listen("unix", s.path)
}

func (s *socketManager) dial() (net.Conn, error) {
	return net.DialTimeout("unix", s.path, 2*time.Second)
}

func defaultSocketManager() (*socketManager, error) {
	sp, err := SockPath()
	if err != nil {
		return nil, err
	}
	return &socketManager{path: sp}, nil
}

func Listen() (net.Listener, error) {
	sm, err := defaultSocketManager()
	if err != nil {
		return nil, err
	}
	return sm.listen()
}

func Dial() (net.Conn, error) {
	sm, err := defaultSocketManager()
	if err != nil {
		return nil, err
	}
	return sm.dial()
}

// SendCommand sends one request line and returns the daemon's one-line reply.
func SendCommand(cmd string, args ...string) (string, error) {
	c, err := Dial()
	if err != nil {
		return "", err
	}
	defer c.Close()

	line := strings.Join(append([]string{cmd}, args...), " ")
	if _, err := c.Write([]byte(line + "\n")); err != nil {
		return "", err
	}

	resp, err := bufio.NewReader(c).ReadString('\n')
	return resp, err
}

// ParseRequest splits a request line into command and arguments.
func ParseRequest(line string) (string, []string) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "", nil
	}
	return fields[0], fields[1:]
}

// FormatText encodes arbitrary text as a single reply line.
func FormatText(text string) string {
	return "TEXT " + strconv.Quote(text) + "\n"
}

// ParseText decodes a reply produced by FormatText. ERR replies become errors.
func ParseText(resp string) (string, error) {
	resp = strings.TrimRight(resp, "\n")
	switch {
	case strings.HasPrefix(resp, "TEXT "):
		text, err := strconv.Unquote(strings.TrimPrefix(resp, "TEXT "))
		if err != nil {
			return "", fmt.Errorf("malformed reply: %w", err)
		}
		return text, nil
	case strings.HasPrefix(resp, "ERR "):
		return "", errors.New(strings.TrimPrefix(resp, "ERR "))
	default:
		return "", fmt.Errorf("unexpected reply: %q", resp)
	}
}

// ParseFields reads key=value pairs from a STATUS or OK reply.
func ParseFields(resp string) map[string]string {
	out := make(map[string]string)
	for _, f := range strings.Fields(resp) {
		if k, v, ok := strings.Cut(f, "="); ok {
			out[k] = v
		}
	}
	return out
}

type pidManager struct {
	path string
}

func defaultPidManager() (*pidManager, error) {
	path, err := PidPath()
	if err != nil {
		return nil, err
	}
	return &pidManager{path: path}, nil
}

// checkExisting fails if a live daemon owns the pid file and clears stale ones.
func (p *pidManager) checkExisting() error {
	pidData, err := os.ReadFile(p.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(pidData)))
	if err != nil {
		_ = os.Remove(p.path)
		return nil
	}
	if p.isProcessAlive(pid) {
		return fmt.Errorf("daemon already running with PID %d", pid)
	}
	_ = os.Remove(p.path)
	return nil
}

func (p *pidManager) isProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	return err == nil || errors.Is(err, syscall.EPERM)
}

func (p *pidManager) create() error {
	if err := os.MkdirAll(filepath.Dir(p.path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(p.path, []byte(strconv.Itoa(os.Getpid())), 0o600)
}

func (p *pidManager) remove() error {
	return os.Remove(p.path)
}

func CheckExistingDaemon() error {
	pm, err := defaultPidManager()
	if err != nil {
		return err
	}
	return pm.checkExisting()
}

func CreatePidFile() error {
	pm, err := defaultPidManager()
	if err != nil {
		return err
	}
	return pm.create()
}

func RemovePidFile() error {
	pm, err := defaultPidManager()
	if err != nil {
		return err
	}
	return pm.remove()
}
