package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/changdang/companion/internal/audio"
	"github.com/changdang/companion/internal/config"
	"github.com/changdang/companion/internal/logging"
	"github.com/changdang/companion/internal/player"
)

var (
	playRate   float64
	playTitle  string
	playDevice string

	playCmd = &cobra.Command{
		Use:     "play FILE",
		Short:   "Play an audio guide",
		Long:    paragraph(fmt.Sprintf("\nPlay a WAV or raw PCM %s through the configured device. Press ctrl+c to stop.", keyword("audio guide"))),
		Example: paragraph("changdang play guide.wav\nchangdang play guide.wav --rate 1.25 --title \"Drum tower\""),
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("rate") && (playRate < config.MinRate || playRate > config.MaxRate) {
				return fmt.Errorf("rate must be between %.1f and %.1f, got %g", config.MinRate, config.MaxRate, playRate)
			}
			if cmd.Flags().Changed("device") {
				cfg.Player.Device = playDevice
				if err := cfg.Validate(); err != nil {
					return err
				}
			}
			watchConfig()
			return runPlay(cmd.Context(), cmd.OutOrStdout(), args[0])
		},
	}
)

func runPlay(parent context.Context, w io.Writer, file string) error {
	src, err := filepath.Abs(file)
	if err != nil {
		return fmt.Errorf("unable to get absolute path: %w", err)
	}

	audioCfg := cfg.AudioConfig()
	format := audio.Format{SampleRate: audioCfg.SampleRate, Channels: audioCfg.Channels}
	pcm, err := audio.LoadFile(src, format)
	if err != nil {
		return fmt.Errorf("unable to load %s: %w", file, err)
	}

	dev, err := audio.NewDevice(audioCfg, logging.Named(logging.PrefixAudio))
	if err != nil {
		return fmt.Errorf("unable to open audio device: %w", err)
	}
	defer func() { _ = dev.Close() }()

	ctrl := player.New(dev,
		player.WithLogger(logging.Named(logging.PrefixPlayer)),
		player.WithDefaultRate(cfg.Player.DefaultRate),
	)
	if playRate > 0 {
		if err := ctrl.SetRate(playRate); err != nil {
			return err
		}
	}

	states := make(chan player.State, 1)
	unsubscribe := ctrl.Subscribe(func(s player.State) {
		// keep only the newest state without ever blocking the notifier
		for {
			select {
			case states <- s:
				return
			default:
			}
			select {
			case <-states:
			default:
			}
		}
	})
	defer unsubscribe()

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	runCtx, cancelRun := context.WithCancel(context.Background())
	runDone := make(chan error, 1)
	go func() { runDone <- ctrl.Run(runCtx) }()
	defer func() {
		cancelRun()
		if err := <-runDone; err != nil && !errors.Is(err, context.Canceled) {
			log.Debug("controller stopped", "err", err)
		}
	}()

	// The mock device has no clock of its own.
	var tick <-chan time.Time
	mock, simulated := dev.(*audio.MockDevice)
	if simulated {
		mock.SetDuration(format.Duration(len(pcm)))
		ticker := time.NewTicker(audioCfg.TimeUpdateInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	title := playTitle
	if title == "" {
		title = filepath.Base(file)
	}
	if err := ctrl.Play(src, title); err != nil {
		return err
	}

	progress := newProgressPrinter(w, term.IsTerminal(int(os.Stdout.Fd()))) //nolint:gosec
	started := false
	for {
		select {
		case <-ctx.Done():
			ctrl.Background()
			ctrl.Reset()
			progress.finish("stopped")
			return nil
		case <-tick:
			mock.Advance(audioCfg.TimeUpdateInterval.Seconds())
		case s := <-states:
			progress.print(s)
			switch {
			case s.IsPlaying:
				started = true
			case ended(s):
				progress.finish("done")
				return nil
			case started:
				progress.finish("interrupted")
				return errors.New("playback stopped unexpectedly")
			}
		}
	}
}

// ended reports whether s is a finished, non-playing source.
func ended(s player.State) bool {
	return !s.IsPlaying && s.Duration > 0 && s.CurrentTime >= s.Duration
}

// progressPrinter writes one status line per second of playback, redrawn
// in place on a terminal.
type progressPrinter struct {
	w       io.Writer
	inPlace bool
	last    string
}

func newProgressPrinter(w io.Writer, inPlace bool) *progressPrinter {
	return &progressPrinter{w: w, inPlace: inPlace}
}

func (p *progressPrinter) print(s player.State) {
	line := progressLine(s)
	if line == p.last {
		return
	}
	p.last = line
	if p.inPlace {
		fmt.Fprintf(p.w, "\r\033[K%s", line)
		return
	}
	fmt.Fprintln(p.w, line)
}

func (p *progressPrinter) finish(status string) {
	if p.inPlace && p.last != "" {
		fmt.Fprintln(p.w)
	}
	fmt.Fprintln(p.w, faintStyle.Render(status))
}

func progressLine(s player.State) string {
	return fmt.Sprintf("%s %s  %s / %s  %gx",
		phaseSymbol(s.Phase()),
		s.CurrentTitle,
		formatClock(s.CurrentTime),
		formatClock(s.Duration),
		s.PlaybackRate,
	)
}

func phaseSymbol(p player.Phase) string {
	switch p {
	case player.PhasePlaying:
		return "▶"
	case player.PhaseLoaded:
		return "⏸"
	default:
		return "■"
	}
}

// formatClock renders seconds as m:ss, or h:mm:ss from an hour up.
func formatClock(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	total := int(seconds)
	h, m, sec := total/3600, total/60%60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, sec)
	}
	return fmt.Sprintf("%d:%02d", m, sec)
}

func init() {
	playCmd.Flags().Float64VarP(&playRate, "rate", "r", 0, "playback rate (0.5 to 2.0, default from config)")
	playCmd.Flags().StringVarP(&playTitle, "title", "t", "", "title shown while playing (default file name)")
	playCmd.Flags().StringVarP(&playDevice, "device", "d", "", "audio device, oto or mock (default from config)")
}
