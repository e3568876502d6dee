// Command rosco boots the kernel on an emulated PC and connects its screen
// and keyboard to the terminal, a monitor, a window or a script.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/alecthomas/kong"

	"github.com/nickorlow/rosco/kernel/kmain"
	"github.com/nickorlow/rosco/kernel/shell"
	"github.com/nickorlow/rosco/machine"
)

// Globals are the flags shared by all commands.
type Globals struct {
	CmdLine  string  `name:"cmdline" env:"ROSCO_CMDLINE" help:"Kernel command line, e.g. \"banner=off tick=0.06\"."`
	Hz       float64 `name:"hz" env:"ROSCO_HZ" default:"18.2065" help:"Timer interrupt rate in Hz. 0 disables the timer."`
	LogLevel string  `name:"log-level" env:"ROSCO_LOG_LEVEL" enum:"debug,info,warn,error" default:"info" help:"Minimum level of hardware log messages."`
	LogFile  string  `name:"log-file" env:"ROSCO_LOG_FILE" type:"path" help:"Write hardware log messages to this file."`
}

func main() {
	var cli struct {
		Globals

		Version kong.VersionFlag `help:"Print the version and exit."`

		Run        runCmd        `cmd:"" default:"1" help:"Run the kernel in the terminal."`
		Monitor    monitorCmd    `cmd:"" help:"Run the kernel next to a hardware monitor."`
		GUI        guiCmd        `cmd:"" name:"gui" help:"Run the kernel in a window."`
		Screenshot screenshotCmd `cmd:"" help:"Run a script and save the screen as PNG."`
		Dev        devCmd        `cmd:"" help:"Re-run a script whenever it changes."`
	}

	ctx := kong.Parse(&cli,
		kong.Name("rosco"),
		kong.Description("Boot the rosco kernel on an emulated PC."),
		kong.UsageOnError(),
		kong.Vars{"version": shell.Name + " " + shell.Version},
	)
	err := ctx.Run(&cli.Globals)
	ctx.FatalIfErrorf(err)
}

// logger returns the logger for hardware events. Messages go to the log
// file if one is configured and to fallback otherwise.
func (g *Globals) logger(fallback io.Writer) (*slog.Logger, func(), error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(g.LogLevel)); err != nil {
		return nil, nil, err
	}

	w, closeFn := fallback, func() {}
	if g.LogFile != "" {
		f, err := os.OpenFile(g.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("opening log file: %w", err)
		}
		w, closeFn = f, func() { f.Close() }
	}

	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})), closeFn, nil
}

// boot powers on a machine running the kernel.
func (g *Globals) boot(logger *slog.Logger) (*machine.Machine, error) {
	m := machine.New(machine.Config{
		CmdLine: g.CmdLine,
		TimerHz: g.Hz,
		Logger:  logger,
	})
	if err := m.Boot(kmain.Kmain); err != nil {
		return nil, err
	}
	return m, nil
}

// signalContext returns a context that is cancelled on interrupt.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}
