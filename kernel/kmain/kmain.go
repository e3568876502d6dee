// Package kmain contains the kernel entrypoint.
package kmain

import (
	"github.com/nickorlow/rosco/device"
	"github.com/nickorlow/rosco/device/keyboard"
	"github.com/nickorlow/rosco/device/pic"
	"github.com/nickorlow/rosco/device/timer"
	"github.com/nickorlow/rosco/device/tty"
	"github.com/nickorlow/rosco/device/video/console"
	"github.com/nickorlow/rosco/kernel"
	"github.com/nickorlow/rosco/kernel/cmdline"
	"github.com/nickorlow/rosco/kernel/gate"
	"github.com/nickorlow/rosco/kernel/hal"
	"github.com/nickorlow/rosco/kernel/irq"
	"github.com/nickorlow/rosco/kernel/kfmt"
	"github.com/nickorlow/rosco/kernel/shell"
	"github.com/nickorlow/rosco/kernel/sync"
)

const (
	// Banner is printed at the top of the screen once the console is up.
	Banner = "CONTROL TRANSFERRED TO ROSCO..."

	// BannerAttr is light cyan on black.
	BannerAttr uint8 = 0x0b

	// DefaultColor is light green on black.
	DefaultColor uint8 = 0x0a
)

var errNoConsole = &kernel.Error{Module: "kmain", Message: "no console available"}

// Kmain is the kernel entrypoint. It is invoked by the machine with the boot
// command line after the CPU has been reset.
//
// Kmain brings up the console, installs the interrupt handlers, enables
// interrupts and then runs the shell on top of the line reader. It is not
// expected to return.
func Kmain(cmdLine string) {
	var (
		args  = cmdline.Parse(cmdLine)
		color = args.Hex8("color", DefaultColor)

		// lock is shared between the console and the keyboard so that
		// a keystroke is decoded and echoed in one critical section.
		lock = &sync.IRQLock{}

		vga = console.ProbeVgaText()
		con = tty.NewConsole(vga, lock, color)
		pc  = pic.New(pic.DefaultMasterOffset, pic.DefaultSlaveOffset)
		kbd = keyboard.New(lock, con)
		tmr = timer.New(con, timer.Config{
			SecondsPerTick: args.Float("tick", timer.DefaultSecondsPerTick),
			Attr:           args.Hex8("status", timer.DefaultAttr),
			StatusLine:     args.Bool("statusline", true),
		})
	)

	// Output from a previous boot must not leak into this one.
	kfmt.SetOutputSink(nil)

	hal.DetectHardware(device.DriverInfoList{
		{Order: device.DetectOrderEarly, Probe: func() device.Driver { return vga }},
		{Order: device.DetectOrderInterrupts, Probe: func() device.Driver { return pc }},
		{Order: device.DetectOrderNormal, Probe: func() device.Driver { return kbd }},
		{Order: device.DetectOrderNormal, Probe: func() device.Driver { return tmr }},
	})

	if hal.ActiveConsole() == nil {
		kfmt.Panic(errNoConsole)
		return
	}

	if args.Bool("statusline", true) {
		con.ReserveRows(1)
	}

	con.Clear()
	if args.Bool("banner", true) {
		con.SetColor(BannerAttr)
		con.Print(Banner + "\n")
		con.SetColor(color)
	}

	// Replay the driver output that was buffered while the console was
	// being set up.
	kfmt.SetOutputSink(con)

	table, err := setupInterrupts(pc, kbd, tmr)
	if err != nil {
		kfmt.Panic(err)
		return
	}

	sh := shell.New(con, tmr, args)
	sh.SetInterrupts(table, pc)
	for {
		sh.PrintPrompt()

		line := kbd.ReadLine()
		if n := line.Len(); n == 0 || line[n-1] != '\n' {
			// the line was terminated without an echoed line feed
			con.Print("\n")
		}

		sh.Exec(line.String())
	}
}

// setupInterrupts builds and loads the vector table, routes the timer and
// keyboard lines and finally enables interrupts.
func setupInterrupts(pc *pic.Controller, kbd *keyboard.Keyboard, tmr *timer.Timer) (*gate.Table, *kernel.Error) {
	table := gate.NewTable()
	if err := irq.InstallExceptionHandlers(table); err != nil {
		return nil, err
	}

	// Start from a fully masked controller; Install unmasks each line
	// once its handler is in place.
	pc.SetMasks(0xff, 0xff)

	if err := irq.Install(table, pc, pic.TimerLine, tmr.HandleIRQ); err != nil {
		return nil, err
	}
	if err := irq.Install(table, pc, pic.KeyboardLine, kbd.HandleIRQ); err != nil {
		return nil, err
	}

	if err := table.Load(); err != nil {
		return nil, err
	}

	if err := pc.Enable(); err != nil {
		return nil, err
	}

	return table, nil
}
