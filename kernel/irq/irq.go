// Package irq binds hardware interrupt lines and CPU exceptions to their
// handlers.
package irq

import (
	"github.com/nickorlow/rosco/device/pic"
	"github.com/nickorlow/rosco/kernel"
	"github.com/nickorlow/rosco/kernel/cpu"
	"github.com/nickorlow/rosco/kernel/gate"
)

// Controller is implemented by interrupt controllers that map lines to
// vectors and need to be told when a line has been serviced.
type Controller interface {
	Vector(line pic.Line) uint8
	Acknowledge(line pic.Line)
	Unmask(line pic.Line)
}

// Handler services a hardware interrupt. It does not need to acknowledge
// the interrupt; Install takes care of that.
type Handler func(regs *cpu.Registers)

var errNilHandler = &kernel.Error{Module: "irq", Message: "nil handler"}

// Install routes line to handler and unmasks it. The installed entry
// acknowledges the interrupt exactly once after handler returns, even if
// handler panics, so that the controller keeps signaling the line.
func Install(table *gate.Table, ctrl Controller, line pic.Line, handler Handler) *kernel.Error {
	if handler == nil {
		return errNilHandler
	}

	err := table.HandleInterrupt(gate.InterruptNumber(ctrl.Vector(line)), func(regs *cpu.Registers) {
		defer ctrl.Acknowledge(line)
		handler(regs)
	})
	if err != nil {
		return err
	}

	ctrl.Unmask(line)
	return nil
}
