package kfmt

import (
	"bytes"
	"errors"
	"testing"
)

func TestPrefixWriter(t *testing.T) {
	specs := []struct {
		input string
		exp   string
	}{
		{"", ""},
		{"\n", "[pic] \n"},
		{"IRQ 0-7 at vector 0x20", "[pic] IRQ 0-7 at vector 0x20"},
		{"IRQ 8-15 at vector 0x28\n", "[pic] IRQ 8-15 at vector 0x28\n"},
		{
			"\nremapped\nIRQ 0-7 at vector 0x20\nIRQ 8-15 at vector 0x28\nmasks fc ff",
			"[pic] \n[pic] remapped\n[pic] IRQ 0-7 at vector 0x20\n[pic] IRQ 8-15 at vector 0x28\n[pic] masks fc ff",
		},
	}

	var (
		buf bytes.Buffer
		w   = PrefixWriter{
			Sink:   &buf,
			Prefix: []byte("[pic] "),
		}
	)

	for specIndex, spec := range specs {
		buf.Reset()
		w.midLine = false

		wrote, err := w.Write([]byte(spec.input))
		if err != nil {
			t.Errorf("[spec %d] unexpected error: %v", specIndex, err)
		}

		if expLen := len(spec.input); expLen != wrote {
			t.Errorf("[spec %d] expected writer to write %d bytes; wrote %d", specIndex, expLen, wrote)
		}

		if got := buf.String(); got != spec.exp {
			t.Errorf("[spec %d] expected output:\n%q\ngot:\n%q", specIndex, spec.exp, got)
		}
	}
}

func TestPrefixWriterAcrossWrites(t *testing.T) {
	var (
		buf bytes.Buffer
		w   = PrefixWriter{Sink: &buf, Prefix: []byte("[hal] ")}
	)

	w.Write([]byte("vga_text("))
	w.Write([]byte("0.1.0): ok\npic"))
	w.Write([]byte(": remapped\n"))

	if exp, got := "[hal] vga_text(0.1.0): ok\n[hal] pic: remapped\n", buf.String(); got != exp {
		t.Fatalf("expected output:\n%q\ngot:\n%q", exp, got)
	}
}

func TestPrefixWriterErrors(t *testing.T) {
	specs := []string{
		"probing",
		"\nprobing\ninitialized\n",
	}

	var (
		expErr = errors.New("framebuffer not mapped")
		w      = PrefixWriter{
			Sink:   writerThatAlwaysErrors{expErr},
			Prefix: []byte("[hal] "),
		}
	)

	for specIndex, spec := range specs {
		w.midLine = false
		_, err := w.Write([]byte(spec))
		if err != expErr {
			t.Errorf("[spec %d] expected error: %v; got %v", specIndex, expErr, err)
		}
	}
}

type writerThatAlwaysErrors struct {
	err error
}

func (w writerThatAlwaysErrors) Write(_ []byte) (int, error) {
	return 0, w.err
}
