package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/leonardotrapani/hyprscribe/internal/bus"
	"github.com/leonardotrapani/hyprscribe/internal/config"
	"github.com/leonardotrapani/hyprscribe/internal/daemon"
	"github.com/leonardotrapani/hyprscribe/internal/deps"
	"github.com/leonardotrapani/hyprscribe/internal/notify"
	"github.com/leonardotrapani/hyprscribe/internal/publish"
	"github.com/leonardotrapani/hyprscribe/internal/telemetry"
	"github.com/leonardotrapani/hyprscribe/internal/topics"
	"github.com/leonardotrapani/hyprscribe/internal/tui"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var configPath string

var rootCmd = &cobra.Command{
	Use:   "hyprscribe",
	Short: "Live two-tier transcription daemon for Wayland/Hyprland",
	Long: `hyprscribe keeps a live transcript in two tiers: a working buffer that
tracks what the recognizer is still revising, and a long-term buffer that
only ever grows. Working text is committed ("dumped") once enough words are
final and enough time has passed since the previous dump.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default $XDG_CONFIG_HOME/hyprscribe/config.toml)")
	rootCmd.AddCommand(
		serveCmd(),
		toggleCmd(),
		statusCmd(),
		transcriptCmd(),
		clearCmd(),
		topicsCmd(),
		versionCmd(),
		stopCmd(),
		watchCmd(),
		replayCmd(),
		listenCmd(),
		configureCmd(),
		doctorCmd(),
	)
}

func newConfigManager() (*config.Manager, error) {
	if configPath != "" {
		return config.NewManagerFrom(configPath)
	}
	return config.NewManager()
}

func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.LoadFrom(configPath)
	}
	return config.Load()
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := newConfigManager()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			cfg := mgr.GetConfig()
			for _, m := range deps.Missing(deps.ForConfig(cfg)) {
				log.Printf("Daemon: warning: %s not found in PATH, %s will fail", m.Name, m.Purpose)
			}

			var opts []daemon.Option
			opts = append(opts, daemon.WithNotifier(notify.New(cfg.NotificationType())))

			if cfg.Metrics.Enabled {
				m, err := telemetry.New("hyprscribe")
				if err != nil {
					return fmt.Errorf("failed to set up metrics: %w", err)
				}
				defer func() {
					ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
					defer cancel()
					_ = m.Shutdown(ctx)
				}()
				opts = append(opts, daemon.WithMetrics(m))
			}

			if cfg.Publish.Enabled {
				p, err := publish.Connect(cfg.ToPublishConfig())
				if err != nil {
					return fmt.Errorf("failed to connect to NATS: %w", err)
				}
				defer p.Close()
				opts = append(opts, daemon.WithPublisher(p))
			}

			// the tracker's callback needs the daemon, which needs the tracker
			var d *daemon.Daemon
			if cfg.Topics.Enabled {
				chunker := topics.NewOpenAIChunker(cfg.ToChunkerConfig())
				tracker := topics.NewTracker(chunker, topics.NewManager(), func(chunks map[string]string) {
					d.PublishChunks(chunks)
				})
				opts = append(opts, daemon.WithTracker(tracker))
			}

			d = daemon.New(cfg, opts...)

			mgr.OnChange(d.ApplyConfig)
			watchCtx, stopWatching := context.WithCancel(context.Background())
			defer stopWatching()
			if err := mgr.StartWatching(watchCtx); err != nil {
				log.Printf("Config manager: hot reload disabled: %v", err)
			}
			defer mgr.Stop()

			return d.Run()
		},
	}
}

// sendAndPrint forwards one control command and prints the reply verbatim.
func sendAndPrint(what, cmd string, args ...string) error {
	resp, err := bus.SendCommand(cmd, args...)
	if err != nil {
		return fmt.Errorf("failed to %s: %w", what, err)
	}
	fmt.Print(resp)
	return nil
}

func toggleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "toggle",
		Short: "Start a new transcription session, or stop the running one",
		RunE: func(cmd *cobra.Command, args []string) error {
			return sendAndPrint("toggle session", bus.CmdToggle)
		},
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show session state and buffer counters",
		RunE: func(cmd *cobra.Command, args []string) error {
			return sendAndPrint("get status", bus.CmdStatus)
		},
	}
}

var transcriptTiers = []string{"working", "long", "full"}

func transcriptCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "transcript [working|long|full]",
		Short:     "Print the current session's transcript",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: transcriptTiers,
		RunE: func(cmd *cobra.Command, args []string) error {
			tier := "full"
			if len(args) == 1 {
				tier = args[0]
			}
			return printText("get transcript", bus.CmdTranscript, tier)
		},
	}
}

func topicsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "topics",
		Short: "List the topics the current session has been grouped into",
		RunE: func(cmd *cobra.Command, args []string) error {
			return printText("get topics", bus.CmdTopics)
		},
	}
}

func printText(what, cmd string, args ...string) error {
	resp, err := bus.SendCommand(cmd, args...)
	if err != nil {
		return fmt.Errorf("failed to %s: %w", what, err)
	}
	text, err := bus.ParseText(resp)
	if err != nil {
		return err
	}
	fmt.Println(text)
	return nil
}

func clearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Empty both buffers of the current session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return sendAndPrint("clear buffers", bus.CmdClear)
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Get protocol version",
		RunE: func(cmd *cobra.Command, args []string) error {
			return sendAndPrint("get version", bus.CmdVersion)
		},
	}
}

func stopCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "stop",
		Aliases: []string{"quit"},
		Short:   "Stop the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return sendAndPrint("stop daemon", bus.CmdQuit)
		},
	}
}

func watchCmd() *cobra.Command {
	var interval time.Duration
	var width int
	var withTopics bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow the live transcript in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return tui.Watch(ctx, os.Stdout, interval, width, func() (tui.Frame, error) {
				return tui.FetchFrame(withTopics)
			})
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", 500*time.Millisecond, "poll interval")
	cmd.Flags().IntVar(&width, "width", 80, "render width in columns")
	cmd.Flags().BoolVar(&withTopics, "topics", false, "also show the topic ledger")
	return cmd
}

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check the config and the external tools it relies on",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			return runDoctor(cmd.OutOrStdout(), cfg)
		},
	}
}

func runDoctor(w io.Writer, cfg *config.Config) error {
	problems := 0
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(w, tui.StyleError.Render("✗ config: "+err.Error()))
		problems++
	} else {
		fmt.Fprintln(w, tui.StyleSuccess.Render("✓ config is valid"))
	}

	for _, s := range deps.ForConfig(cfg) {
		switch {
		case s.Installed:
			line := fmt.Sprintf("✓ %s (%s) %s", s.Name, s.Purpose, s.Path)
			if s.Version != "" {
				line += " " + tui.StyleMuted.Render(s.Version)
			}
			fmt.Fprintln(w, tui.StyleSuccess.Render(line))
		case s.Required:
			fmt.Fprintln(w, tui.StyleError.Render(fmt.Sprintf("✗ %s (%s) not found in PATH", s.Name, s.Purpose)))
			problems++
		default:
			fmt.Fprintln(w, tui.StyleWarning.Render(fmt.Sprintf("! %s (%s) not found, optional", s.Name, s.Purpose)))
		}
	}

	if problems > 0 {
		return fmt.Errorf("%d problem(s) found", problems)
	}
	return nil
}

func configureCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "configure",
		Short: "Interactive configuration setup",
		Long: `Interactive configuration menu for hyprscribe.
This covers:
- Dump policy (minimum final words and time between dumps)
- Recognition source (Deepgram, replay script or external command)
- Provider API keys, recording, topics, NATS publishing, metrics and notifications

A running daemon reloads the file on save.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigure()
		},
	}
}

func runConfigure() error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	result, err := tui.Run(cfg)
	if err != nil {
		return fmt.Errorf("configuration menu error: %w", err)
	}
	if result.Cancelled {
		fmt.Println("Configuration cancelled.")
		return nil
	}

	if configPath != "" {
		err = config.SaveTo(configPath, result.Config)
	} else {
		err = config.Save(result.Config)
	}
	if err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Println()
	fmt.Println("Configuration saved successfully!")
	fmt.Println()
	showNextSteps()
	return nil
}

func showNextSteps() {
	serviceRunning := false
	if err := exec.Command("systemctl", "--user", "is-active", "--quiet", "hyprscribe.service").Run(); err == nil {
		serviceRunning = true
	}

	fmt.Println("Next Steps:")
	if serviceRunning {
		fmt.Println("1. The running daemon picks up the new config automatically")
	} else {
		fmt.Println("1. Start the daemon: hyprscribe serve (or systemctl --user start hyprscribe.service)")
	}
	fmt.Println("2. Start a session: hyprscribe toggle")
	fmt.Println("3. Follow along: hyprscribe watch")
	fmt.Println()

	path := configPath
	if path == "" {
		path, _ = config.GetConfigPath()
	}
	fmt.Printf("Config file location: %s\n", path)
}
