package main

import (
	"context"
	"image"
	"image/draw"
	"log/slog"
	"os"
	"time"

	"golang.org/x/exp/shiny/driver"
	"golang.org/x/exp/shiny/screen"
	"golang.org/x/mobile/event/key"
	"golang.org/x/mobile/event/lifecycle"
	"golang.org/x/mobile/event/paint"
	"golang.org/x/mobile/event/size"

	"github.com/nickorlow/rosco/device/keyboard"
	"github.com/nickorlow/rosco/machine"
	"github.com/nickorlow/rosco/machine/render"
)

type guiCmd struct {
	Script string `type:"existingfile" help:"Script to run after boot."`
	Scale  int    `default:"2" help:"Initial window scale factor."`
}

// keyCodes maps the keys that the kernel understands to their set 1 make
// codes.
var keyCodes = map[key.Code]keyboard.Scancode{
	key.CodeReturnEnter:     keyboard.EnterMake,
	key.CodeSpacebar:        keyboard.SpaceMake,
	key.CodeLeftShift:       keyboard.LeftShiftMake,
	key.CodeRightShift:      keyboard.RightShiftMake,
	key.CodeEscape:          0x01,
	key.CodeDeleteBackspace: 0x0e,
	key.CodeTab:             0x0f,
}

func init() {
	for i := 0; i < 26; i++ {
		code, _, _ := keyboard.Encode(byte('a' + i))
		keyCodes[key.CodeA+key.Code(i)] = code
	}
	for i := 1; i <= 9; i++ {
		code, _, _ := keyboard.Encode(byte('0' + i))
		keyCodes[key.Code1+key.Code(i-1)] = code
	}
	code, _, _ := keyboard.Encode('0')
	keyCodes[key.Code0] = code
}

// scancodeFor returns the scancode for a key event. Windows report key
// presses and releases separately so they map to make and break codes.
func scancodeFor(e key.Event) (uint8, bool) {
	code, ok := keyCodes[e.Code]
	if !ok {
		return 0, false
	}

	switch e.Direction {
	case key.DirPress:
		return uint8(code.Make()), true
	case key.DirRelease:
		return uint8(code.Break()), true
	}
	return 0, false
}

// Run shows the kernel's screen in a window.
func (c *guiCmd) Run(g *Globals) error {
	logger, closeLog, err := g.logger(os.Stderr)
	if err != nil {
		return err
	}
	defer closeLog()

	m, err := g.boot(logger)
	if err != nil {
		return err
	}
	defer m.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if c.Script != "" {
		s, err := loadScript(c.Script)
		if err != nil {
			return err
		}
		go func() {
			if err := s.run(ctx, m); err != nil && ctx.Err() == nil {
				logger.Warn("script stopped", "err", err)
			}
		}()
	}

	var runErr error
	driver.Main(func(s screen.Screen) {
		runErr = c.runWindow(ctx, s, m, logger)
	})
	return runErr
}

func (c *guiCmd) runWindow(ctx context.Context, s screen.Screen, m *machine.Machine, logger *slog.Logger) error {
	scale := c.Scale
	if scale < 1 {
		scale = 1
	}

	w, err := s.NewWindow(&screen.NewWindowOptions{
		Title:  "rosco",
		Width:  render.Width * scale,
		Height: render.Height * scale,
	})
	if err != nil {
		return err
	}
	defer w.Release()

	canvas := image.Pt(render.Width, render.Height)
	buf, err := s.NewBuffer(canvas)
	if err != nil {
		return err
	}
	defer buf.Release()

	tex, err := s.NewTexture(canvas)
	if err != nil {
		return err
	}
	defer tex.Release()

	type update struct{}
	go func() {
		t := time.NewTicker(refreshInterval)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				w.Send(update{})
			case <-ctx.Done():
				return
			}
		}
	}()

	var (
		r  = render.New()
		sz size.Event
	)
	for {
		switch e := w.NextEvent().(type) {
		case lifecycle.Event:
			if e.To == lifecycle.StageDead {
				return nil
			}

		case size.Event:
			sz = e
			if sz.WidthPx+sz.HeightPx == 0 {
				return nil
			}

		case key.Event:
			if code, ok := scancodeFor(e); ok {
				m.SendScancodes(code)
			}

		case update, paint.Event:
			snap := m.Snapshot()
			img := r.Draw(&snap.Screen)
			draw.Draw(buf.RGBA(), buf.Bounds(), img, image.Point{}, draw.Src)
			tex.Upload(image.Point{}, buf, buf.Bounds())
			w.Scale(sz.Bounds(), tex, tex.Bounds(), draw.Src, nil)
			w.Publish()

		case error:
			logger.Error("window", slog.String("err", e.Error()))
		}
	}
}
