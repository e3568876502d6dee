package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/howeyc/fsnotify"
)

type devCmd struct {
	Script string `arg:"" type:"existingfile" help:"Script to watch."`
	Out    string `short:"o" type:"path" help:"Also save the final screen to this PNG file."`
}

// Run re-runs the script on a freshly booted machine every time it is
// saved and prints the resulting screen.
func (c *devCmd) Run(g *Globals) error {
	script := filepath.Clean(c.Script)

	logger, closeLog, err := g.logger(os.Stderr)
	if err != nil {
		return err
	}
	defer closeLog()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	if err := watcher.Watch(filepath.Dir(script)); err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	run := time.After(time.Millisecond)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-run:
			logger.Info("dev: run", "script", filepath.Base(script))

			s, err := loadScript(script)
			if err != nil {
				logger.Error("dev: load", "err", err)
				break
			}

			fmt.Print("\033[H\033[2J")
			runCtx, stop := context.WithTimeout(ctx, 30*time.Second)
			err = runAndCapture(runCtx, g, logger, s, c.Out, os.Stdout)
			stop()
			if err != nil {
				logger.Error("dev: run", "err", err)
			}
		case ev := <-watcher.Event:
			if filepath.Clean(ev.Name) == script && !ev.IsAttrib() {
				run = time.After(100 * time.Millisecond)
			}
		case err := <-watcher.Error:
			logger.Error("dev: watcher", "err", err)
		}
	}
}
