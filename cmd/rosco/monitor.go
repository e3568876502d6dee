package main

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/nickorlow/rosco/machine"
	"github.com/nickorlow/rosco/machine/render"
)

type monitorCmd struct {
	Script string `type:"existingfile" help:"Script to run after boot."`
}

// monitor shows the kernel's screen next to the state of the emulated
// hardware. Text entered in the input field is typed into the machine;
// input starting with ':' is a monitor command.
type monitor struct {
	m      *machine.Machine
	ctx    context.Context
	logger *slog.Logger

	screen *tview.Box
	state  *tview.TextView
	log    *tview.TextView
	input  *tview.InputField
	cols   *tview.Flex
	rows   *tview.Flex
	app    *tview.Application

	snap machine.Snapshot
}

func (c *monitorCmd) Run(g *Globals) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mon := newMonitor(ctx)

	logger, closeLog, err := g.logger(mon.log)
	if err != nil {
		return err
	}
	defer closeLog()

	mon.logger = logger
	mon.m, err = g.boot(logger)
	if err != nil {
		return err
	}
	defer mon.m.Close()

	if c.Script != "" {
		s, err := loadScript(c.Script)
		if err != nil {
			return err
		}
		go mon.runScript(s)
	}

	go mon.refresh()
	return mon.app.Run()
}

func newMonitor(ctx context.Context) *monitor {
	mon := &monitor{
		ctx:    ctx,
		screen: tview.NewBox(),
		state: tview.NewTextView().
			SetWrap(false),
		log: tview.NewTextView().
			SetMaxLines(1000),
		input: tview.NewInputField().
			SetLabel("> "),
		cols: tview.NewFlex(),
		rows: tview.NewFlex().
			SetDirection(tview.FlexRow),
		app: tview.NewApplication(),
	}

	mon.log.SetChangedFunc(func() { mon.app.Draw() })
	mon.state.SetBackgroundColor(tcell.ColorDarkBlue)
	mon.screen.SetDrawFunc(func(s tcell.Screen, x, y, w, h int) (int, int, int, int) {
		drawScreen(s, &mon.snap, x, y, w, h)
		return x, y, w, h
	})

	mon.cols.
		AddItem(mon.screen, machine.Columns, 0, false).
		AddItem(mon.state, 0, 1, false)
	mon.rows.
		AddItem(mon.cols, machine.Rows, 0, false).
		AddItem(mon.log, 0, 1, false).
		AddItem(mon.input, 1, 0, true)
	mon.app.SetRoot(mon.rows, true)

	mon.input.SetDoneFunc(func(key tcell.Key) {
		if key != tcell.KeyEnter {
			return
		}
		text := mon.input.GetText()
		mon.input.SetText("")
		mon.exec(text)
	})

	return mon
}

func (mon *monitor) logf(format string, args ...any) {
	fmt.Fprintf(mon.log, format+"\n", args...)
}

func (mon *monitor) exec(text string) {
	if !strings.HasPrefix(text, ":") {
		go func() {
			if err := mon.m.Type(mon.ctx, text+"\n"); err != nil && mon.ctx.Err() == nil {
				mon.logf("type: %v", err)
			}
		}()
		return
	}

	fields := strings.Fields(text[1:])
	if len(fields) == 0 {
		return
	}

	switch cmd, args := fields[0], fields[1:]; cmd {
	case "q", "quit":
		mon.app.Stop()
	case "tick":
		n := 1
		if len(args) == 1 {
			if v, err := strconv.Atoi(args[0]); err == nil && v > 0 {
				n = v
			}
		}
		for i := 0; i < n; i++ {
			mon.m.Tick()
		}
	case "key":
		var codes []uint8
		for _, arg := range args {
			code, err := strconv.ParseUint(strings.TrimPrefix(arg, "0x"), 16, 8)
			if err != nil {
				mon.logf("key: invalid scancode %q", arg)
				return
			}
			codes = append(codes, uint8(code))
		}
		mon.m.SendScancodes(codes...)
	case "png":
		if len(args) != 1 {
			mon.logf("usage: :png <file>")
			return
		}
		snap := mon.m.Snapshot()
		if err := render.New().SavePNG(args[0], &snap.Screen); err != nil {
			mon.logf("png: %v", err)
			return
		}
		mon.logger.Info("screenshot saved", slog.String("path", args[0]))
	default:
		mon.logf("commands: :tick [n], :key <hex>..., :png <file>, :quit")
	}
}

func (mon *monitor) runScript(s script) {
	if err := s.run(mon.ctx, mon.m); err != nil && mon.ctx.Err() == nil {
		mon.logf("script: %v", err)
		return
	}
	mon.logf("script done")
}

func (mon *monitor) refresh() {
	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-mon.ctx.Done():
			return
		case <-ticker.C:
		}

		snap := mon.m.Snapshot()
		state := stateText(&snap)
		mon.app.QueueUpdateDraw(func() {
			mon.snap = snap
			mon.state.SetText(state)
			if snap.State == machine.StateRunning {
				mon.state.SetBackgroundColor(tcell.ColorDarkBlue)
			} else {
				mon.state.SetBackgroundColor(tcell.ColorDarkRed)
			}
		})
	}
}

func stateText(snap *machine.Snapshot) string {
	var b strings.Builder

	fmt.Fprintf(&b, "state   %s\n", snap.State)
	fmt.Fprintf(&b, "IF      %t\n", snap.InterruptsEnabled)
	fmt.Fprintf(&b, "halted  %t\n", snap.Halting)
	fmt.Fprintf(&b, "cursor  %d,%d\n\n", snap.CursorX, snap.CursorY)

	for i, name := range []string{"master", "slave"} {
		p := snap.PIC[i]
		fmt.Fprintf(&b, "%-7s off %.2x imr %.2x irr %.2x isr %.2x\n", name, p.Offset, p.IMR, p.IRR, p.ISR)
	}

	fmt.Fprintf(&b, "\ntimer   %d ticks @ %.2fHz\n", snap.Ticks, snap.TimerHz)
	fmt.Fprintf(&b, "kbd     %d read, %d queued, %d dropped\n", snap.KeyboardDelivered, snap.KeyboardPending, snap.KeyboardDropped)
	fmt.Fprintf(&b, "eoi     irq0 %d, irq1 %d\n", snap.EOIs[0], snap.EOIs[1])
	fmt.Fprintf(&b, "int3    %d\n\nvectors\n", snap.Breakpoints)

	for vec, n := range snap.Vectors {
		if n != 0 {
			fmt.Fprintf(&b, "  %.2x    %d\n", vec, n)
		}
	}
	return b.String()
}
