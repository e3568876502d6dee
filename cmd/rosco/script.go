package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/nickorlow/rosco/machine"
)

// A script drives the machine like a user at the keyboard. Every line is
// typed followed by enter once the kernel waits for input. Lines starting
// with '#' are comments and lines starting with '@' are directives:
//
//	@tick [n]         raise n timer interrupts
//	@keys 2a 1e 9e    send raw scancodes
//	@sleep 250ms      pause
type script []step

type stepKind uint8

const (
	stepType stepKind = iota
	stepTick
	stepKeys
	stepSleep
)

type step struct {
	kind  stepKind
	line  int
	text  string
	n     int
	codes []uint8
	d     time.Duration
}

func loadScript(path string) (script, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return parseScript(f)
}

func parseScript(r io.Reader) (script, error) {
	var (
		s      script
		lineNo int
		sc     = bufio.NewScanner(r)
	)

	for sc.Scan() {
		lineNo++
		text := strings.TrimRight(sc.Text(), "\r")

		switch {
		case strings.HasPrefix(text, "#"):
			continue
		case !strings.HasPrefix(text, "@"):
			s = append(s, step{kind: stepType, line: lineNo, text: text})
			continue
		}

		st, err := parseDirective(strings.Fields(text[1:]))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		st.line = lineNo
		s = append(s, st)
	}

	return s, sc.Err()
}

func parseDirective(fields []string) (step, error) {
	if len(fields) == 0 {
		return step{}, fmt.Errorf("empty directive")
	}

	name, args := fields[0], fields[1:]
	switch name {
	case "tick":
		st := step{kind: stepTick, n: 1}
		if len(args) > 1 {
			return step{}, fmt.Errorf("tick: too many arguments")
		}
		if len(args) == 1 {
			n, err := strconv.Atoi(args[0])
			if err != nil || n < 1 {
				return step{}, fmt.Errorf("tick: invalid count %q", args[0])
			}
			st.n = n
		}
		return st, nil
	case "keys":
		if len(args) == 0 {
			return step{}, fmt.Errorf("keys: no scancodes")
		}
		st := step{kind: stepKeys}
		for _, arg := range args {
			code, err := strconv.ParseUint(strings.TrimPrefix(arg, "0x"), 16, 8)
			if err != nil {
				return step{}, fmt.Errorf("keys: invalid scancode %q", arg)
			}
			st.codes = append(st.codes, uint8(code))
		}
		return st, nil
	case "sleep":
		if len(args) != 1 {
			return step{}, fmt.Errorf("sleep: expected a duration")
		}
		d, err := time.ParseDuration(args[0])
		if err != nil {
			return step{}, fmt.Errorf("sleep: %w", err)
		}
		return step{kind: stepSleep, d: d}, nil
	}

	return step{}, fmt.Errorf("unknown directive %q", name)
}

// run executes the script on m. It returns once the kernel waits for input
// after the last step.
func (s script) run(ctx context.Context, m *machine.Machine) error {
	for _, st := range s {
		if err := st.run(ctx, m); err != nil {
			return fmt.Errorf("line %d: %w", st.line, err)
		}
	}
	return m.WaitIdle(ctx)
}

func (st *step) run(ctx context.Context, m *machine.Machine) error {
	switch st.kind {
	case stepType:
		return m.Type(ctx, st.text+"\n")
	case stepTick:
		for i := 0; i < st.n; i++ {
			if err := m.WaitIdle(ctx); err != nil {
				return err
			}
			m.Tick()
		}
	case stepKeys:
		if err := m.WaitIdle(ctx); err != nil {
			return err
		}
		m.SendScancodes(st.codes...)
	case stepSleep:
		select {
		case <-time.After(st.d):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
