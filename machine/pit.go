package machine

import (
	"context"
	"time"
)

const (
	// PITFrequency is the input clock of the 8253 in Hz.
	PITFrequency = 1193182

	// DefaultTimerHz is the rate of channel 0 when it is left at its
	// power-on divisor of 65536.
	DefaultTimerHz = float64(PITFrequency) / 65536

	pitChannel0Port uint16 = 0x40
	pitCommandPort  uint16 = 0x43

	pitAccessLoHi uint8 = 0x30
)

// pit tracks the programming of channel 0 of an 8253. The tick source
// itself runs in its own goroutine and reads the rate via period.
type pit struct {
	divisor uint16

	// writeHi is true when the next channel 0 write is the high byte.
	writeHi bool
	lo      uint8

	// rate receives the new tick period whenever channel 0 is
	// reprogrammed.
	rate chan time.Duration
}

func (p *pit) reset() {
	p.divisor = 0
	p.writeHi = false
	p.rate = make(chan time.Duration, 1)
}

func (p *pit) portWrite(port uint16, val uint8) {
	switch port {
	case pitCommandPort:
		// only channel 0 with lo/hi access is modeled
		if val>>6 == 0 && val&pitAccessLoHi == pitAccessLoHi {
			p.writeHi = false
		}
	case pitChannel0Port:
		if !p.writeHi {
			p.lo, p.writeHi = val, true
			return
		}

		p.writeHi = false
		p.divisor = uint16(val)<<8 | uint16(p.lo)
		select {
		case <-p.rate:
		default:
		}
		p.rate <- periodFor(p.divisor)
	}
}

// hz returns the rate that channel 0 is programmed to.
func (p *pit) hz() float64 {
	div := float64(p.divisor)
	if p.divisor == 0 {
		div = 65536
	}
	return PITFrequency / div
}

func periodFor(divisor uint16) time.Duration {
	div := float64(divisor)
	if divisor == 0 {
		div = 65536
	}
	return time.Duration(div / PITFrequency * float64(time.Second))
}

// runTicker raises tick at hz until ctx is cancelled. Periods sent to rate
// replace the current one.
func runTicker(ctx context.Context, hz float64, rate <-chan time.Duration, tick func()) {
	ticker := time.NewTicker(time.Duration(float64(time.Second) / hz))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tick()
		case period := <-rate:
			if period > 0 {
				ticker.Reset(period)
			}
		}
	}
}
