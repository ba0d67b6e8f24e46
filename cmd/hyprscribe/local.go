package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/leonardotrapani/hyprscribe/internal/daemon"
	"github.com/leonardotrapani/hyprscribe/internal/engine"
	"github.com/leonardotrapani/hyprscribe/internal/source"
	"github.com/leonardotrapani/hyprscribe/internal/transcript"
)

// localOptions control a foreground engine run that bypasses the daemon.
type localOptions struct {
	minWords    int
	minInterval time.Duration
	quiet       bool
}

func (o *localOptions) bind(cmd *cobra.Command) {
	cmd.Flags().IntVar(&o.minWords, "min-words", -1, "override buffer.min_word_count")
	cmd.Flags().DurationVar(&o.minInterval, "min-interval", -1, "override buffer.min_time_since_dump")
	cmd.Flags().BoolVarP(&o.quiet, "quiet", "q", false, "print dumps only, not working-buffer updates")
}

// policy starts from the configured thresholds, falling back to the built-in
// defaults when no config can be read, and applies flag overrides.
func (o *localOptions) policy() transcript.DumpPolicy {
	p := engine.DefaultConfig().Policy
	if cfg, err := loadConfig(); err == nil {
		p = cfg.ToDumpPolicy()
	}
	if o.minWords >= 0 {
		p.MinWordCount = o.minWords
	}
	if o.minInterval >= 0 {
		p.MinTimeSinceDump = o.minInterval
	}
	return p
}

func replayCmd() *cobra.Command {
	var opts localOptions

	cmd := &cobra.Command{
		Use:   "replay <script.yaml>",
		Short: "Run the buffering engine against a scripted result sequence",
		Long: `Replay feeds a YAML list of recognizer results through a local engine and
prints every working-buffer update and every dump. Useful for tuning the dump
policy without a microphone. Example script:

  results:
    - text: "hello"
    - text: "hello world"
      final: true
      delay: 500ms`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			script, err := source.LoadScript(args[0])
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runLocal(ctx, cmd.OutOrStdout(), source.NewReplay(script), opts.policy(), opts.quiet)
		},
	}
	opts.bind(cmd)
	return cmd
}

func listenCmd() *cobra.Command {
	var opts localOptions

	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Transcribe in the foreground with the configured source, without the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			src, err := daemon.NewSource(cfg)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runLocal(ctx, cmd.OutOrStdout(), src, opts.policy(), opts.quiet)
		},
	}
	opts.bind(cmd)
	return cmd
}

// runLocal drives one engine session until the source ends or ctx is
// cancelled, then prints the long-term transcript.
func runLocal(ctx context.Context, w io.Writer, src engine.Source, policy transcript.DumpPolicy, quiet bool) error {
	dumps := 0
	eng := engine.New(src, engine.Config{
		Policy: policy,
		OnWorkingBufferUpdate: func(text string) {
			if !quiet {
				fmt.Fprintf(w, "~ %s\n", text)
			}
		},
		OnDump: func(text string) {
			dumps++
			fmt.Fprintf(w, "» dump %d: %s\n", dumps, text)
		},
	})

	if err := eng.Start(ctx); err != nil {
		return err
	}

	select {
	case <-eng.Done():
	case <-ctx.Done():
		if err := eng.Stop(); err != nil && !engine.IsInvalidState(err) {
			return err
		}
	}
	<-eng.Done()

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%d dumps, %d words\n", dumps, transcript.CountWords(eng.LongTermBufferText()))
	fmt.Fprintln(w, eng.LongTermBufferText())
	return nil
}
