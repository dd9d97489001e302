package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/INLOpen/sbr/core"
	"github.com/INLOpen/sbr/hooks"
	"github.com/INLOpen/sbr/playback"
	"github.com/INLOpen/sbr/sources"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

type playOptions struct {
	loop  bool
	speed float64
}

func newPlayCmd(c *cli) *cobra.Command {
	var opts playOptions
	cmd := &cobra.Command{
		Use:   "play FILE",
		Short: "Replay a recording and print each applied frame",
		Long: `Replays a recording at its recorded pace. When stdin is a terminal the
playback is interactive:

  space  pause / play      n  next frame       p  previous frame
  0      first frame       l  toggle looping   q  quit`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("loop") {
				opts.loop = c.cfg.Playback.Looping
			}
			if !cmd.Flags().Changed("speed") {
				opts.speed = c.cfg.Playback.Speed
			}
			return runPlay(cmd.Context(), c, args[0], opts, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVar(&opts.loop, "loop", false, "wrap to the first frame at the end (defaults to playback.looping)")
	cmd.Flags().Float64Var(&opts.speed, "speed", 1, "playback speed multiplier (defaults to playback.speed)")
	return cmd
}

var (
	frameColor  = color.New(color.FgCyan)
	burstColor  = color.New(color.FgYellow)
	sourceColor = color.New(color.Bold)
	stateColor  = color.New(color.FgGreen, color.Bold)
)

// framePrinter prints applied frames and wakes the waiting command.
type framePrinter struct {
	mu      sync.Mutex
	out     io.Writer
	newline string
	notify  chan struct{}
	count   int
}

func newFramePrinter(out io.Writer) *framePrinter {
	return &framePrinter{out: out, newline: "\n", notify: make(chan struct{}, 1)}
}

func (p *framePrinter) OnEvent(ctx context.Context, event hooks.HookEvent) error {
	payload, ok := event.Payload().(hooks.FrameAppliedPayload)
	if !ok {
		return nil
	}
	marker := frameColor
	if payload.Burst {
		marker = burstColor
	}
	p.mu.Lock()
	fmt.Fprintf(p.out, "%s %s = %s%s",
		marker.Sprintf("[%6d @ %8.3fs]", payload.Frame, float64(payload.Data.Timestamp)/1000),
		sourceColor.Sprint(payload.Data.SourceID),
		core.FormatValue(payload.Data.Value),
		p.newline)
	p.count++
	p.mu.Unlock()

	select {
	case p.notify <- struct{}{}:
	default:
	}
	return nil
}

// printed returns the number of frames printed so far.
func (p *framePrinter) printed() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.count
}

func (p *framePrinter) Priority() int { return 100 }
func (p *framePrinter) IsAsync() bool { return false }

func (p *framePrinter) status(format string, args ...interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprint(p.out, stateColor.Sprintf(format, args...), p.newline)
}

func runPlay(ctx context.Context, c *cli, path string, opts playOptions, in io.Reader, out io.Writer) error {
	hookManager := hooks.NewHookManager(c.logger)
	defer hookManager.Stop()
	printer := newFramePrinter(out)
	hookManager.Register(hooks.EventPostFrameApplied, printer)

	stdin, interactive := in.(*os.File)
	interactive = interactive && term.IsTerminal(int(stdin.Fd()))
	var restore func()
	if interactive {
		state, err := term.MakeRaw(int(stdin.Fd()))
		if err != nil {
			return fmt.Errorf("failed to switch terminal to raw mode: %w", err)
		}
		restore = func() { _ = term.Restore(int(stdin.Fd()), state) }
		defer restore()
		printer.newline = "\r\n"
	}

	p, err := playback.Load(ctx, path, playback.Options{
		Registry: c.registry,
		Sources:  sources.NewMemoryLayer(c.logger),
		Hooks:    hookManager,
		Logger:   c.logger,
		Tracer:   c.tracer,
		Looping:  opts.loop,
		Speed:    opts.speed,
	})
	if err != nil {
		return err
	}
	defer p.Stop()

	if interactive {
		return playInteractive(ctx, p, stdin, printer)
	}
	return playThrough(ctx, p, printer)
}

// playThrough plays to the last frame, or until cancelled when looping. Every
// frame is printed once on the way, so the end is reached when all are printed.
func playThrough(ctx context.Context, p *playback.Playback, printer *framePrinter) error {
	if p.NumFrames() == 0 {
		return nil
	}
	if err := p.Play(); err != nil {
		return err
	}
	poll := time.NewTicker(100 * time.Millisecond)
	defer poll.Stop()
	for {
		if err := p.Err(); err != nil {
			return err
		}
		if !p.Looping() && printer.printed() >= p.NumFrames() {
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		case <-printer.notify:
		case <-poll.C:
		}
	}
}

func playInteractive(ctx context.Context, p *playback.Playback, stdin io.Reader, printer *framePrinter) error {
	keys := make(chan byte)
	go func() {
		buf := make([]byte, 1)
		for {
			if _, err := stdin.Read(buf); err != nil {
				close(keys)
				return
			}
			keys <- buf[0]
		}
	}()

	printer.status("%d frames, paused. space: play/pause  n/p: step  0: rewind  l: loop  q: quit", p.NumFrames())
	for {
		select {
		case <-ctx.Done():
			return nil
		case key, ok := <-keys:
			if !ok {
				return nil
			}
			var err error
			switch key {
			case ' ':
				if p.State() == playback.Playing {
					p.Pause()
					printer.status("paused at frame %d", p.Frame())
				} else {
					err = p.Play()
				}
			case 'n':
				err = p.NextFrame()
			case 'p':
				err = p.PreviousFrame()
			case '0':
				if p.NumFrames() > 0 {
					err = p.SetFrame(0)
				}
			case 'l':
				p.SetLooping(!p.Looping())
				printer.status("looping %t", p.Looping())
			case 'q', 3: // 3 is Ctrl-C in raw mode.
				return nil
			}
			if err != nil {
				printer.status("error: %v", err)
			}
		}
	}
}
