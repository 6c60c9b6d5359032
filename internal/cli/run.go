package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	connectx "github.com/mintelligence/connectx-go"
)

func newRunCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Simulate a host application reading lifecycle commands from stdin",
		Long: `run opens the application, emitting "open app", then reads one command
per line from stdin until EOF, "quit" or an interrupt. SIGUSR1 pauses and
SIGUSR2 resumes the application, like the pause and resume commands.

  pause          app moved to the background ("app pause")
  resume         app returned to the foreground ("app resume")
  show NAME      panel NAME became visible ("open NAME")
  hide NAME      panel NAME was hidden ("close NAME")
  toggle NAME    flip panel NAME
  submit NAME    panel NAME was submitted ("submit NAME")
  track EVENT    any other event
  quit           stop`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.openSession(cmd)
			if err != nil {
				return err
			}

			signals, stop := lifecycleSignals()
			defer stop()

			app := newHostApp(s.client)
			runErr := app.run(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), signals)
			if err := s.finish(context.WithoutCancel(cmd.Context())); err != nil {
				return err
			}
			return runErr
		},
	}
}

// hostApp maps stdin commands onto lifecycle and panel tracking.
type hostApp struct {
	tracker   connectx.Tracker
	lifecycle *connectx.Lifecycle
	panels    map[string]*connectx.Toggle
}

func newHostApp(t connectx.Tracker) *hostApp {
	return &hostApp{
		tracker:   t,
		lifecycle: connectx.NewLifecycle(t),
		panels:    make(map[string]*connectx.Toggle),
	}
}

func (a *hostApp) panel(name string) *connectx.Toggle {
	p, ok := a.panels[name]
	if !ok {
		p = connectx.NewToggle(a.tracker, name, nil)
		a.panels[name] = p
	}
	return p
}

// run drives the app from stdin lines and lifecycle signals until EOF, quit
// or ctx ends. signals may be nil.
func (a *hostApp) run(ctx context.Context, in io.Reader, out io.Writer, signals <-chan os.Signal) error {
	if err := a.lifecycle.Open(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case sig := <-signals:
			if err := a.signal(sig); err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
			}
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			quit, err := a.handle(strings.TrimSpace(line))
			if err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
				continue
			}
			if quit {
				return nil
			}
		}
	}
}

func (a *hostApp) signal(sig os.Signal) error {
	switch sig {
	case pauseSignal:
		return a.lifecycle.Pause()
	case resumeSignal:
		return a.lifecycle.Resume()
	default:
		return nil
	}
}

func (a *hostApp) handle(line string) (quit bool, err error) {
	verb, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch verb {
	case "":
		return false, nil
	case "quit", "exit":
		return true, nil
	case "pause":
		return false, a.lifecycle.Pause()
	case "resume":
		return false, a.lifecycle.Resume()
	case "track":
		return false, a.tracker.Track(connectx.TrackingEvent{Name: arg})
	}

	if arg == "" {
		return false, fmt.Errorf("%s needs a panel name", verb)
	}
	switch verb {
	case "show":
		return false, a.panel(arg).Set(true)
	case "hide":
		return false, a.panel(arg).Set(false)
	case "toggle":
		return false, a.panel(arg).Flip()
	case "submit":
		return false, a.panel(arg).Submit()
	default:
		return false, fmt.Errorf("unknown command %q", verb)
	}
}

// lifecycleSignals relays the pause and resume signals. On platforms
// without them the channel never fires.
func lifecycleSignals() (<-chan os.Signal, func()) {
	ch := make(chan os.Signal, 1)
	if pauseSignal == nil {
		return ch, func() {}
	}
	signal.Notify(ch, pauseSignal, resumeSignal)
	return ch, func() { signal.Stop(ch) }
}
