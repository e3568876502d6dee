package machine

import (
	"testing"

	"github.com/nickorlow/rosco/device/pic"
)

// initPair runs the same initialization sequence as the pic driver.
func initPair(p *picPair, masterOffset, slaveOffset uint8) {
	for _, w := range []struct {
		port uint16
		val  uint8
	}{
		{pic.MasterCmdPort, icw1Init | icw1IC4},
		{pic.SlaveCmdPort, icw1Init | icw1IC4},
		{pic.MasterDataPort, masterOffset},
		{pic.SlaveDataPort, slaveOffset},
		{pic.MasterDataPort, 1 << pic.CascadeLine},
		{pic.SlaveDataPort, uint8(pic.CascadeLine)},
		{pic.MasterDataPort, 0x01},
		{pic.SlaveDataPort, 0x01},
	} {
		p.portWrite(w.port, w.val)
	}
}

func TestPICInitSequence(t *testing.T) {
	var p picPair
	p.reset()

	if _, ok := p.pending(); ok {
		t.Fatal("expected uninitialized pair to signal nothing")
	}

	initPair(&p, 0x20, 0x28)

	state := p.state()
	for i, exp := range []PICState{
		{Offset: 0x20, Ready: true},
		{Offset: 0x28, Ready: true},
	} {
		if state[i] != exp {
			t.Errorf("[chip %d] expected state %+v; got %+v", i, exp, state[i])
		}
	}

	// ICW1 clears the mask; data writes after ICW4 program it
	p.portWrite(pic.MasterDataPort, 0xfd)
	p.portWrite(pic.SlaveDataPort, 0xff)
	if got := p.portRead(pic.MasterDataPort); got != 0xfd {
		t.Errorf("expected master IMR 0xfd; got 0x%x", got)
	}
	if got := p.portRead(pic.SlaveDataPort); got != 0xff {
		t.Errorf("expected slave IMR 0xff; got 0x%x", got)
	}
}

func TestPICAcknowledge(t *testing.T) {
	specs := []struct {
		masterMask, slaveMask uint8
		raise                 []uint8
		expIRQ                uint8
		expVector             uint8
		expOK                 bool
	}{
		{0x00, 0x00, []uint8{1}, 1, 0x21, true},
		{0x00, 0x00, []uint8{1, 0}, 0, 0x20, true},
		{0x01, 0x00, []uint8{1, 0}, 1, 0x21, true},
		{0xff, 0xff, []uint8{0, 1}, 0, 0, false},
		{0x00, 0x00, []uint8{12}, 12, 0x2c, true},
		{0x00, 0x00, []uint8{12, 3}, 12, 0x2c, true},
		// masking the cascade line masks the whole slave
		{0x04, 0x00, []uint8{12}, 0, 0, false},
		{0x00, 0x10, []uint8{12}, 0, 0, false},
	}

	for specIndex, spec := range specs {
		var p picPair
		p.reset()
		initPair(&p, 0x20, 0x28)
		p.portWrite(pic.MasterDataPort, spec.masterMask)
		p.portWrite(pic.SlaveDataPort, spec.slaveMask)

		for _, irq := range spec.raise {
			p.raise(irq)
		}

		irq, vector, ok := p.acknowledge()
		if ok != spec.expOK || irq != spec.expIRQ || vector != spec.expVector {
			t.Errorf("[spec %d] expected (%d, 0x%x, %t); got (%d, 0x%x, %t)", specIndex, spec.expIRQ, spec.expVector, spec.expOK, irq, vector, ok)
		}
	}
}

func TestPICNestingAndEOI(t *testing.T) {
	var p picPair
	p.reset()
	initPair(&p, 0x20, 0x28)
	p.portWrite(pic.MasterDataPort, 0)
	p.portWrite(pic.SlaveDataPort, 0)

	p.raise(1)
	if irq, _, _ := p.acknowledge(); irq != 1 {
		t.Fatalf("expected IRQ 1; got %d", irq)
	}

	// a lower priority request waits for the EOI
	p.raise(3)
	if _, ok := p.pending(); ok {
		t.Fatal("expected IRQ 3 to be blocked while IRQ 1 is in service")
	}

	// a higher priority request nests
	p.raise(0)
	if irq, ok := p.pending(); !ok || irq != 0 {
		t.Fatalf("expected IRQ 0 to preempt; got %d, %t", irq, ok)
	}
	p.acknowledge()

	// a non-specific EOI clears the highest priority line in service
	p.portWrite(pic.MasterCmdPort, ocw2EOI)
	if exp, got := uint8(0x02), p.master.ISR; got != exp {
		t.Fatalf("expected ISR 0x%x; got 0x%x", exp, got)
	}
	p.portWrite(pic.MasterCmdPort, ocw2EOI)

	if irq, ok := p.pending(); !ok || irq != 3 {
		t.Fatalf("expected IRQ 3 to be signalled after EOI; got %d, %t", irq, ok)
	}

	if p.eois[0] != 1 || p.eois[1] != 1 {
		t.Fatalf("expected one EOI for IRQ 0 and IRQ 1; got %v", p.eois[:2])
	}

	// slave lines need an EOI on both chips
	p.acknowledge()
	p.portWrite(pic.MasterCmdPort, ocw2EOI)
	p.raise(9)
	p.acknowledge()
	p.portWrite(pic.SlaveCmdPort, ocw2EOI)
	p.portWrite(pic.MasterCmdPort, ocw2EOI)
	if p.eois[9] != 1 || p.eois[pic.CascadeLine] != 1 {
		t.Fatalf("expected cascaded EOI accounting; got %v", p.eois)
	}
	if p.master.ISR != 0 || p.slave.ISR != 0 {
		t.Fatalf("expected no line in service; got master 0x%x slave 0x%x", p.master.ISR, p.slave.ISR)
	}
}

func TestPICReadRegisters(t *testing.T) {
	var p picPair
	p.reset()
	initPair(&p, 0x20, 0x28)
	p.portWrite(pic.MasterDataPort, 0)

	p.raise(0)
	p.raise(4)
	p.acknowledge()

	if exp, got := uint8(0x10), p.portRead(pic.MasterCmdPort); got != exp {
		t.Errorf("expected IRR 0x%x; got 0x%x", exp, got)
	}

	p.portWrite(pic.MasterCmdPort, ocw3Select|ocw3Read|ocw3ReadIS)
	if exp, got := uint8(0x01), p.portRead(pic.MasterCmdPort); got != exp {
		t.Errorf("expected ISR 0x%x; got 0x%x", exp, got)
	}

	// specific EOI
	p.portWrite(pic.MasterCmdPort, ocw2EOI|ocw2Specific|0)
	if got := p.portRead(pic.MasterCmdPort); got != 0 {
		t.Errorf("expected empty ISR after specific EOI; got 0x%x", got)
	}
}
