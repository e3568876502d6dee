// Package pic drives a pair of cascaded 8259A programmable interrupt
// controllers.
package pic

import (
	"io"

	"github.com/nickorlow/rosco/kernel"
	"github.com/nickorlow/rosco/kernel/cpu"
	"github.com/nickorlow/rosco/kernel/kfmt"
)

// 8259A I/O ports.
const (
	MasterCmdPort  uint16 = 0x20
	MasterDataPort uint16 = 0x21
	SlaveCmdPort   uint16 = 0xa0
	SlaveDataPort  uint16 = 0xa1

	// writes to this unused port give the controller time to settle
	// between initialization words.
	ioWaitPort uint16 = 0x80
)

// Initialization and operation command words.
const (
	ICW1Init     uint8 = 0x10
	ICW1NeedICW4 uint8 = 0x01
	ICW4Mode8086 uint8 = 0x01
	OCW2EOI      uint8 = 0x20

	// CascadeLine is the master input that the slave controller is wired to.
	CascadeLine Line = 2
)

// Default vector offsets. They move the 16 IRQ lines past the 32 vectors
// that are reserved for CPU exceptions.
const (
	DefaultMasterOffset uint8 = 0x20
	DefaultSlaveOffset  uint8 = 0x28
)

// Line identifies one of the 16 interrupt request inputs.
type Line uint8

// Well-known IRQ lines.
const (
	TimerLine    Line = 0
	KeyboardLine Line = 1
)

var (
	// the following functions are mocked by tests.
	portWriteByteFn    = cpu.PortWriteByte
	portReadByteFn     = cpu.PortReadByte
	enableInterruptsFn = cpu.EnableInterrupts

	errInvalidOffset  = &kernel.Error{Module: "pic", Message: "vector offset must be a multiple of 8 past the exception range"}
	errOverlap        = &kernel.Error{Module: "pic", Message: "master and slave vector ranges overlap"}
	errNotInitialized = &kernel.Error{Module: "pic", Message: "controller not initialized"}
)

// Controller is the kernel's gateway to the chained interrupt controllers.
// Vector offsets are fixed once Init succeeds.
type Controller struct {
	masterOffset uint8
	slaveOffset  uint8
	initialized  bool

	masterMask uint8
	slaveMask  uint8
}

// New returns a controller that will be remapped to the supplied offsets
// when DriverInit runs.
func New(masterOffset, slaveOffset uint8) *Controller {
	return &Controller{
		masterOffset: masterOffset,
		slaveOffset:  slaveOffset,
		masterMask:   0xff,
		slaveMask:    0xff,
	}
}

// Init runs the ICW1-ICW4 sequence on both controllers so that IRQ 0-7 are
// delivered at masterOffset and IRQ 8-15 at slaveOffset. The interrupt masks
// that were active before the call are preserved.
func (c *Controller) Init(masterOffset, slaveOffset uint8) *kernel.Error {
	switch {
	case masterOffset < 32 || slaveOffset < 32 || masterOffset%8 != 0 || slaveOffset%8 != 0:
		return errInvalidOffset
	case masterOffset == slaveOffset:
		return errOverlap
	}

	savedMaster := portReadByteFn(MasterDataPort)
	savedSlave := portReadByteFn(SlaveDataPort)

	c.writeWait(MasterCmdPort, ICW1Init|ICW1NeedICW4)
	c.writeWait(SlaveCmdPort, ICW1Init|ICW1NeedICW4)

	// ICW2: vector offsets
	c.writeWait(MasterDataPort, masterOffset)
	c.writeWait(SlaveDataPort, slaveOffset)

	// ICW3: tell the master that the slave sits on the cascade line and
	// tell the slave its cascade identity
	c.writeWait(MasterDataPort, 1<<CascadeLine)
	c.writeWait(SlaveDataPort, uint8(CascadeLine))

	// ICW4: 8086 mode
	c.writeWait(MasterDataPort, ICW4Mode8086)
	c.writeWait(SlaveDataPort, ICW4Mode8086)

	c.masterOffset, c.slaveOffset = masterOffset, slaveOffset
	c.initialized = true
	c.SetMasks(savedMaster, savedSlave)

	return nil
}

func (c *Controller) writeWait(port uint16, val uint8) {
	portWriteByteFn(port, val)
	portWriteByteFn(ioWaitPort, 0)
}

// Offsets returns the vector offsets of the master and slave controllers.
func (c *Controller) Offsets() (master, slave uint8) {
	return c.masterOffset, c.slaveOffset
}

// Vector returns the interrupt vector that line is delivered at.
func (c *Controller) Vector(line Line) uint8 {
	if line < 8 {
		return c.masterOffset + uint8(line)
	}
	return c.slaveOffset + uint8(line-8)
}

// Line returns the interrupt line that is delivered at vector. The bool is
// false for vectors outside both controller ranges.
func (c *Controller) Line(vector uint8) (Line, bool) {
	v := int(vector)
	switch {
	case v >= int(c.masterOffset) && v < int(c.masterOffset)+8:
		return Line(v - int(c.masterOffset)), true
	case v >= int(c.slaveOffset) && v < int(c.slaveOffset)+8:
		return Line(v - int(c.slaveOffset) + 8), true
	}
	return 0, false
}

// SetMasks programs the interrupt mask registers. A set bit disables the
// matching line.
func (c *Controller) SetMasks(master, slave uint8) {
	c.masterMask, c.slaveMask = master, slave
	portWriteByteFn(MasterDataPort, master)
	portWriteByteFn(SlaveDataPort, slave)
}

// Masks returns the interrupt masks last written via SetMasks or Unmask.
func (c *Controller) Masks() (master, slave uint8) {
	return c.masterMask, c.slaveMask
}

// Unmask enables delivery of line. Unmasking a slave line also unmasks the
// cascade line on the master.
func (c *Controller) Unmask(line Line) {
	master, slave := c.masterMask, c.slaveMask
	if line < 8 {
		master &^= 1 << line
	} else {
		slave &^= 1 << (line - 8)
		master &^= 1 << CascadeLine
	}
	c.SetMasks(master, slave)
}

// Acknowledge signals end-of-interrupt for line. Lines served by the slave
// require an EOI on both controllers. It must be called exactly once per
// delivered interrupt; the controller does not signal the line again until
// it is acknowledged.
func (c *Controller) Acknowledge(line Line) {
	if line >= 8 {
		portWriteByteFn(SlaveCmdPort, OCW2EOI)
	}
	portWriteByteFn(MasterCmdPort, OCW2EOI)
}

// Enable sets the CPU interrupt flag so that unmasked lines are delivered.
// It fails if the controllers have not been remapped yet since the BIOS
// default offsets collide with CPU exception vectors.
func (c *Controller) Enable() *kernel.Error {
	if !c.initialized {
		return errNotInitialized
	}

	enableInterruptsFn()
	return nil
}

// DriverName returns the name of this driver.
func (c *Controller) DriverName() string {
	return "8259a_pic"
}

// DriverVersion returns the version of this driver.
func (c *Controller) DriverVersion() (uint16, uint16, uint16) {
	return 0, 1, 0
}

// DriverInit remaps the controllers to the offsets supplied to New.
func (c *Controller) DriverInit(w io.Writer) *kernel.Error {
	if err := c.Init(c.masterOffset, c.slaveOffset); err != nil {
		return err
	}

	kfmt.Fprintf(w, "IRQ 0-7 at vector 0x%x, IRQ 8-15 at vector 0x%x\n", c.masterOffset, c.slaveOffset)
	return nil
}
