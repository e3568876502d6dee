// Package shell implements the command interpreter that the kernel runs on
// top of the line reader.
package shell

import (
	"io"
	"sort"
	"strings"
	"time"

	"github.com/nickorlow/rosco/kernel/cmdline"
	"github.com/nickorlow/rosco/device/pic"
	"github.com/nickorlow/rosco/kernel/cpu"
	"github.com/nickorlow/rosco/kernel/gate"
	"github.com/nickorlow/rosco/kernel/kfmt"
)

const (
	// Prompt is printed before every line read.
	Prompt = "> "

	// Name and Version identify the kernel in the banner and in the
	// version command.
	Name    = "rosco"
	Version = "0.1.0"
)

var (
	// the following functions are mocked by tests.
	breakpointFn = cpu.Breakpoint
	stopFn       = cpu.Stop
)

// Console is the output device used by the shell.
type Console interface {
	io.Writer
	Clear()
	SetColor(attr uint8)
	Color() uint8
}

// Clock reports the time elapsed since interrupts were enabled.
type Clock interface {
	Ticks() uint64
	Elapsed() time.Duration
}

// Interrupts reports how often each vector has been dispatched.
type Interrupts interface {
	Count(num gate.InterruptNumber) uint64
}

// Lines maps vectors back to interrupt controller lines.
type Lines interface {
	Offsets() (master, slave uint8)
	Line(vector uint8) (pic.Line, bool)
}

type command struct {
	name string
	help string
	run  func(s *Shell, args []string)
}

var commands []command

func init() {
	// Assigned here because help refers back to the table.
	commands = []command{
		{"help", "list commands", (*Shell).help},
		{"clear", "clear the screen", (*Shell).clear},
		{"echo", "print the arguments", (*Shell).echo},
		{"color", "set the text attribute: color <hex>", (*Shell).color},
		{"ticks", "print the number of timer ticks", (*Shell).ticks},
		{"uptime", "print the time since boot", (*Shell).uptime},
		{"irqs", "print interrupt counts per vector", (*Shell).irqs},
		{"cmdline", "print the boot command line", (*Shell).cmdline},
		{"version", "print the kernel version", (*Shell).version},
		{"int3", "raise a breakpoint exception", (*Shell).int3},
		{"halt", "stop the machine", (*Shell).halt},
	}
}

// Shell executes commands read from the keyboard.
type Shell struct {
	out   Console
	clock Clock
	args  cmdline.Args

	counts Interrupts
	lines  Lines
}

// New returns a shell that prints to out. The clock and boot arguments are
// optional.
func New(out Console, clock Clock, args cmdline.Args) *Shell {
	return &Shell{out: out, clock: clock, args: args}
}

// SetInterrupts attaches the vector table and controller used by the irqs
// command.
func (s *Shell) SetInterrupts(counts Interrupts, lines Lines) {
	s.counts, s.lines = counts, lines
}

// PrintPrompt prints the command prompt.
func (s *Shell) PrintPrompt() {
	kfmt.Fprintf(s.out, Prompt)
}

// Exec runs the command contained in line. Blank lines are ignored.
func (s *Shell) Exec(line string) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return
	}

	for _, cmd := range commands {
		if cmd.name == fields[0] {
			cmd.run(s, fields[1:])
			return
		}
	}

	kfmt.Fprintf(s.out, "unknown command: %s (try help)\n", fields[0])
}

func (s *Shell) help(_ []string) {
	kfmt.Fprintf(s.out, "Commands:\n")
	for _, cmd := range commands {
		kfmt.Fprintf(s.out, "  %s%s\n", padRight(cmd.name, 9), cmd.help)
	}
}

func (s *Shell) clear(_ []string) {
	s.out.Clear()
}

func (s *Shell) echo(args []string) {
	kfmt.Fprintf(s.out, "%s\n", strings.Join(args, " "))
}

func (s *Shell) color(args []string) {
	if len(args) != 1 {
		kfmt.Fprintf(s.out, "color: current attribute is %2x\n", s.out.Color())
		return
	}

	attr := cmdline.Args{"attr": args[0]}.Hex8("attr", 0)
	if attr == 0 {
		kfmt.Fprintf(s.out, "color: invalid attribute %s\n", args[0])
		return
	}

	s.out.SetColor(attr)
}

func (s *Shell) ticks(_ []string) {
	if s.clock == nil {
		kfmt.Fprintf(s.out, "ticks: no timer\n")
		return
	}
	kfmt.Fprintf(s.out, "%d\n", s.clock.Ticks())
}

func (s *Shell) uptime(_ []string) {
	if s.clock == nil {
		kfmt.Fprintf(s.out, "uptime: no timer\n")
		return
	}

	centis := uint64(s.clock.Elapsed() / (10 * time.Millisecond))
	kfmt.Fprintf(s.out, "up %d.%02ds\n", centis/100, centis%100)
}

func (s *Shell) irqs(_ []string) {
	if s.counts == nil {
		kfmt.Fprintf(s.out, "irqs: no interrupt table\n")
		return
	}

	if s.lines != nil {
		master, slave := s.lines.Offsets()
		kfmt.Fprintf(s.out, "pic: IRQ 0-7 at 0x%2x, IRQ 8-15 at 0x%2x\n", master, slave)
	}

	for v := 0; v < 256; v++ {
		n := s.counts.Count(gate.InterruptNumber(v))
		if n == 0 {
			continue
		}

		if s.lines != nil {
			if line, ok := s.lines.Line(uint8(v)); ok {
				kfmt.Fprintf(s.out, "  0x%2x irq%d %d\n", v, uint8(line), n)
				continue
			}
		}
		kfmt.Fprintf(s.out, "  0x%2x %d\n", v, n)
	}
}

func (s *Shell) cmdline(_ []string) {
	for _, key := range sortedKeys(s.args) {
		kfmt.Fprintf(s.out, "%s=%s\n", key, s.args[key])
	}
}

func (s *Shell) version(_ []string) {
	kfmt.Fprintf(s.out, "%s %s\n", Name, Version)
}

func (s *Shell) int3(_ []string) {
	breakpointFn()
}

func (s *Shell) halt(_ []string) {
	kfmt.Fprintf(s.out, "halting\n")
	stopFn()
}

func padRight(s string, width int) string {
	if len(s) >= width {
		return s + " "
	}
	return s + strings.Repeat(" ", width-len(s))
}

// sortedKeys returns the keys of args in lexical order.
func sortedKeys(args cmdline.Args) []string {
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
