package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/gdamore/tcell/v2"
	"golang.org/x/term"

	"github.com/nickorlow/rosco/machine"
)

const refreshInterval = time.Second / 30

type runCmd struct {
	Script string `type:"existingfile" help:"Script to run after boot."`
}

// Run shows the kernel's screen in the terminal and forwards key presses.
// Without a terminal on stdin, the input is run as a script and the final
// screen is printed instead.
func (r *runCmd) Run(g *Globals) error {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return r.runBatch(g, os.Stdin, os.Stdout)
	}

	logger, closeLog, err := g.logger(io.Discard)
	if err != nil {
		return err
	}
	defer closeLog()

	screen, err := tcell.NewScreen()
	if err != nil {
		return err
	}
	if err := screen.Init(); err != nil {
		return err
	}
	defer screen.Fini()

	m, err := g.boot(logger)
	if err != nil {
		return err
	}
	defer m.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if r.Script != "" {
		s, err := loadScript(r.Script)
		if err != nil {
			return err
		}
		go func() {
			if err := s.run(ctx, m); err != nil && ctx.Err() == nil {
				logger.Warn("script stopped", "err", err)
			}
		}()
	}

	events := make(chan tcell.Event)
	go func() {
		for {
			ev := screen.PollEvent()
			if ev == nil {
				return
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()

	var (
		stopped error
		done    = m.Done()
	)
	for {
		select {
		case <-ticker.C:
			snap := m.Snapshot()
			screen.Clear()
			drawScreen(screen, &snap, 0, 0, machine.Columns, machine.Rows)
			if stopped != nil {
				drawStatus(screen, machine.Rows, fmt.Sprintf("%v (press any key to exit)", stopped))
			}
			screen.Show()
		case <-done:
			stopped, done = m.Wait(ctx), nil
		case ev := <-events:
			switch ev := ev.(type) {
			case *tcell.EventResize:
				screen.Sync()
			case *tcell.EventKey:
				if stopped != nil || ev.Key() == tcell.KeyCtrlC {
					return nil
				}
				m.SendScancodes(keyScancodes(ev)...)
			}
		}
	}
}

// runBatch types the lines read from in and prints the final screen to out.
func (r *runCmd) runBatch(g *Globals, in io.Reader, out io.Writer) error {
	logger, closeLog, err := g.logger(os.Stderr)
	if err != nil {
		return err
	}
	defer closeLog()

	s, err := parseScript(in)
	if err != nil {
		return err
	}
	if r.Script != "" {
		pre, err := loadScript(r.Script)
		if err != nil {
			return err
		}
		s = append(pre, s...)
	}

	ctx, cancel := signalContext()
	defer cancel()

	m, err := g.boot(logger)
	if err != nil {
		return err
	}
	defer m.Close()

	err = s.run(ctx, m)
	snap := m.Snapshot()
	fmt.Fprintln(out, snap.Text())

	if errors.Is(err, machine.ErrHalted) {
		return nil
	}
	return err
}

func drawStatus(s tcell.Screen, y int, msg string) {
	style := tcell.StyleDefault.Reverse(true)
	for x, r := range msg {
		s.SetContent(x, y, r, nil, style)
	}
}
