package hal

import (
	"bytes"
	"io"
	"testing"

	"github.com/nickorlow/rosco/device"
	"github.com/nickorlow/rosco/device/video/console"
	"github.com/nickorlow/rosco/kernel"
	"github.com/nickorlow/rosco/kernel/cpu/cputest"
	"github.com/nickorlow/rosco/kernel/kfmt"
)

type fakeDriver struct {
	name    string
	initErr *kernel.Error
	log     string
	inits   *[]string
}

func (d *fakeDriver) DriverName() string                      { return d.name }
func (d *fakeDriver) DriverVersion() (uint16, uint16, uint16) { return 1, 2, 3 }
func (d *fakeDriver) DriverInit(w io.Writer) *kernel.Error {
	*d.inits = append(*d.inits, d.name)
	if d.log != "" {
		kfmt.Fprintf(w, d.log)
	}
	return d.initErr
}

func probeFor(drv device.Driver) device.ProbeFn {
	return func() device.Driver { return drv }
}

func TestDetectHardware(t *testing.T) {
	cputest.New()

	var buf bytes.Buffer
	kfmt.SetOutputSink(&buf)
	defer kfmt.SetOutputSink(nil)

	var (
		inits []string
		vga   = console.NewVgaText(80, 25, console.DefaultFramebufferAddr)
		pic   = &fakeDriver{name: "pic", log: "remapped\n", inits: &inits}
		kbd   = &fakeDriver{name: "kbd", inits: &inits}
		bad   = &fakeDriver{name: "bad", initErr: &kernel.Error{Module: "bad", Message: "no device"}, inits: &inits}
	)

	DetectHardware(device.DriverInfoList{
		{Order: device.DetectOrderNormal, Probe: probeFor(kbd)},
		{Order: device.DetectOrderLast, Probe: probeFor(bad)},
		{Order: device.DetectOrderNormal, Probe: func() device.Driver { return nil }},
		{Order: device.DetectOrderInterrupts, Probe: probeFor(pic)},
		{Order: device.DetectOrderEarly, Probe: func() device.Driver { return vga }},
	})

	if exp := []string{"pic", "kbd", "bad"}; len(inits) != len(exp) || inits[0] != exp[0] || inits[1] != exp[1] || inits[2] != exp[2] {
		t.Fatalf("expected init order %v; got %v", exp, inits)
	}

	exp := "[hal] vga_text_console(0.1.0): mapped 80x25 framebuffer at 0xb8000\n" +
		"[hal] vga_text_console(0.1.0): initialized\n" +
		"[hal] pic(1.2.3): remapped\n" +
		"[hal] pic(1.2.3): initialized\n" +
		"[hal] kbd(1.2.3): initialized\n" +
		"[hal] bad(1.2.3): init failed: no device\n"
	if got := buf.String(); got != exp {
		t.Fatalf("expected output:\n%q\ngot:\n%q", exp, got)
	}

	if got := len(ActiveDrivers()); got != 3 {
		t.Fatalf("expected 3 active drivers; got %d", got)
	}

	if ActiveConsole() != console.Device(vga) {
		t.Fatal("expected the vga console to become the active console")
	}
}

type fakeConsole struct {
	console.Device
	fakeDriver
}

func TestActiveConsoleIsFirstConsole(t *testing.T) {
	kfmt.SetOutputSink(io.Discard)
	defer kfmt.SetOutputSink(nil)

	var (
		inits  []string
		first  = &fakeConsole{fakeDriver: fakeDriver{name: "first", inits: &inits}}
		second = &fakeConsole{fakeDriver: fakeDriver{name: "second", inits: &inits}}
	)

	DetectHardware(device.DriverInfoList{
		{Order: device.DetectOrderEarly, Probe: probeFor(first)},
		{Order: device.DetectOrderEarly, Probe: probeFor(second)},
	})

	if ActiveConsole() != console.Device(first) {
		t.Fatal("expected the first initialized console to become active")
	}

	DetectHardware(nil)
	if ActiveConsole() != nil || len(ActiveDrivers()) != 0 {
		t.Fatal("expected a new detection pass to forget previous devices")
	}
}
