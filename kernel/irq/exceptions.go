package irq

import (
	"github.com/nickorlow/rosco/kernel"
	"github.com/nickorlow/rosco/kernel/cpu"
	"github.com/nickorlow/rosco/kernel/gate"
	"github.com/nickorlow/rosco/kernel/kfmt"
)

var (
	// panicFn is mocked by tests.
	panicFn = kfmt.Panic

	errBreakpoint  = &kernel.Error{Module: "irq", Message: "EXCEPTION: BREAKPOINT"}
	errDoubleFault = &kernel.Error{Module: "irq", Message: "EXCEPTION: DOUBLE FAULT"}
	errGPF         = &kernel.Error{Module: "irq", Message: "EXCEPTION: GENERAL PROTECTION FAULT"}
)

// InstallExceptionHandlers registers handlers for the CPU exceptions that
// the kernel reports. All of them are fatal.
func InstallExceptionHandlers(table *gate.Table) *kernel.Error {
	handlers := []struct {
		num     gate.InterruptNumber
		handler gate.Handler
	}{
		{gate.Breakpoint, breakpointHandler},
		{gate.DoubleFault, doubleFaultHandler},
		{gate.GPFException, gpfHandler},
	}

	for _, h := range handlers {
		if err := table.HandleInterrupt(h.num, h.handler); err != nil {
			return err
		}
	}

	return nil
}

func breakpointHandler(regs *cpu.Registers) {
	fatalException(errBreakpoint, regs)
}

func doubleFaultHandler(regs *cpu.Registers) {
	fatalException(errDoubleFault, regs)
}

func gpfHandler(regs *cpu.Registers) {
	fatalException(errGPF, regs)
}

func fatalException(err *kernel.Error, regs *cpu.Registers) {
	kfmt.Printf("\n%s\nRegisters:\n", err.Message)
	gate.DumpRegisters(kfmt.GetOutputSink(), regs)
	panicFn(err)
}
