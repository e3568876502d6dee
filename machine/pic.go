package machine

import "github.com/nickorlow/rosco/device/pic"

const (
	icw1Init   uint8 = 0x10
	icw1Single uint8 = 0x02
	icw1IC4    uint8 = 0x01

	ocw2EOI      uint8 = 0x20
	ocw2Specific uint8 = 0x40

	ocw3Select uint8 = 0x08
	ocw3Read   uint8 = 0x02
	ocw3ReadIS uint8 = 0x01
)

// PICState describes the registers of one 8259 chip.
type PICState struct {
	Offset uint8
	IMR    uint8
	IRR    uint8
	ISR    uint8

	// Ready is true once the chip completed its initialization sequence.
	Ready bool
}

// picChip emulates a single 8259A running in fully nested mode with
// edge-triggered inputs.
type picChip struct {
	PICState

	// icwStep is the next initialization word expected on the data port
	// or 0 if the chip is operational.
	icwStep  int
	needICW4 bool
	single   bool

	readISR bool
}

func (c *picChip) reset() {
	*c = picChip{}
	c.IMR = 0xff
}

func (c *picChip) writeCommand(val uint8, eoiDone func(line uint8)) {
	switch {
	case val&icw1Init != 0:
		// ICW1 restarts initialization and clears the mask.
		c.icwStep = 2
		c.needICW4 = val&icw1IC4 != 0
		c.single = val&icw1Single != 0
		c.IMR, c.IRR, c.ISR = 0, 0, 0
		c.Ready = false
		c.readISR = false
	case val&0x18 == ocw3Select:
		if val&ocw3Read != 0 {
			c.readISR = val&ocw3ReadIS != 0
		}
	case val&ocw2EOI != 0:
		if val&ocw2Specific != 0 {
			line := val & 0x07
			c.ISR &^= 1 << line
			eoiDone(line)
			return
		}

		for line := uint8(0); line < 8; line++ {
			if c.ISR&(1<<line) != 0 {
				c.ISR &^= 1 << line
				eoiDone(line)
				return
			}
		}
	}
}

func (c *picChip) writeData(val uint8) {
	switch c.icwStep {
	case 0:
		c.IMR = val
	case 2:
		c.Offset = val & 0xf8
		switch {
		case !c.single:
			c.icwStep = 3
		case c.needICW4:
			c.icwStep = 4
		default:
			c.finishInit()
		}
	case 3:
		if c.needICW4 {
			c.icwStep = 4
		} else {
			c.finishInit()
		}
	case 4:
		c.finishInit()
	}
}

func (c *picChip) finishInit() {
	c.icwStep = 0
	c.Ready = true
}

func (c *picChip) readCommand() uint8 {
	if c.readISR {
		return c.ISR
	}
	return c.IRR
}

// highest returns the highest priority request that is not blocked by a
// line in service.
func (c *picChip) highest() (uint8, bool) {
	for line := uint8(0); line < 8; line++ {
		bit := uint8(1) << line
		if c.ISR&bit != 0 {
			return 0, false
		}
		if c.IRR&bit != 0 && c.IMR&bit == 0 {
			return line, true
		}
	}
	return 0, false
}

// picPair emulates the master/slave 8259 pair of a PC/AT.
type picPair struct {
	master picChip
	slave  picChip

	// eois counts end-of-interrupt commands per IRQ line.
	eois [16]uint64
}

func (p *picPair) reset() {
	p.master.reset()
	p.slave.reset()
	p.eois = [16]uint64{}
}

// raise latches a request on irq.
func (p *picPair) raise(irq uint8) {
	if irq < 8 {
		p.master.IRR |= 1 << irq
		return
	}
	p.slave.IRR |= 1 << (irq - 8)
}

// pending returns the IRQ line that the pair would signal to the CPU.
func (p *picPair) pending() (uint8, bool) {
	if !p.master.Ready {
		return 0, false
	}

	cascade := uint8(pic.CascadeLine)
	for line := uint8(0); line < 8; line++ {
		bit := uint8(1) << line
		if p.master.ISR&bit != 0 {
			return 0, false
		}

		if line == cascade {
			if p.master.IMR&bit != 0 || !p.slave.Ready {
				continue
			}
			if sl, ok := p.slave.highest(); ok {
				return 8 + sl, true
			}
			continue
		}

		if p.master.IRR&bit != 0 && p.master.IMR&bit == 0 {
			return line, true
		}
	}
	return 0, false
}

// acknowledge runs the INTA cycle for the pending line and returns its
// vector.
func (p *picPair) acknowledge() (irq, vector uint8, ok bool) {
	irq, ok = p.pending()
	if !ok {
		return 0, 0, false
	}

	if irq < 8 {
		bit := uint8(1) << irq
		p.master.IRR &^= bit
		p.master.ISR |= bit
		return irq, p.master.Offset + irq, true
	}

	bit := uint8(1) << (irq - 8)
	p.slave.IRR &^= bit
	p.slave.ISR |= bit
	p.master.ISR |= 1 << pic.CascadeLine
	return irq, p.slave.Offset + irq - 8, true
}

func (p *picPair) portRead(port uint16) uint8 {
	switch port {
	case pic.MasterCmdPort:
		return p.master.readCommand()
	case pic.MasterDataPort:
		return p.master.IMR
	case pic.SlaveCmdPort:
		return p.slave.readCommand()
	default:
		return p.slave.IMR
	}
}

func (p *picPair) portWrite(port uint16, val uint8) {
	switch port {
	case pic.MasterCmdPort:
		p.master.writeCommand(val, func(line uint8) { p.eois[line]++ })
	case pic.MasterDataPort:
		p.master.writeData(val)
	case pic.SlaveCmdPort:
		p.slave.writeCommand(val, func(line uint8) { p.eois[8+line]++ })
	case pic.SlaveDataPort:
		p.slave.writeData(val)
	}
}

func (p *picPair) state() [2]PICState {
	return [2]PICState{p.master.PICState, p.slave.PICState}
}
