package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/nickorlow/rosco/machine"
	"github.com/nickorlow/rosco/machine/render"
)

type screenshotCmd struct {
	Script string `arg:"" type:"existingfile" help:"Script to run after boot."`
	Out    string `short:"o" type:"path" default:"rosco.png" help:"PNG file to write."`
	Text   bool   `help:"Also print the screen as text."`
}

// Run boots the kernel, runs the script and saves the final screen.
func (c *screenshotCmd) Run(g *Globals) error {
	s, err := loadScript(c.Script)
	if err != nil {
		return err
	}

	logger, closeLog, err := g.logger(os.Stderr)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, cancel := signalContext()
	defer cancel()

	var out io.Writer
	if c.Text {
		out = os.Stdout
	}
	return runAndCapture(ctx, g, logger, s, c.Out, out)
}

// runAndCapture boots a machine, runs s and saves the resulting screen to
// pngPath. The screen text is written to textOut if it is not nil. A kernel
// that halts during the script is not an error.
func runAndCapture(ctx context.Context, g *Globals, logger *slog.Logger, s script, pngPath string, textOut io.Writer) error {
	m, err := g.boot(logger)
	if err != nil {
		return err
	}
	defer m.Close()

	runErr := s.run(ctx, m)
	if errors.Is(runErr, machine.ErrHalted) {
		runErr = nil
	}

	snap := m.Snapshot()
	if textOut != nil {
		fmt.Fprintln(textOut, snap.Text())
	}

	if pngPath != "" {
		if err := render.New().SavePNG(pngPath, &snap.Screen); err != nil {
			return err
		}
		logger.Info("screenshot saved", slog.String("path", pngPath), slog.String("state", snap.State.String()))
	}

	return runErr
}
