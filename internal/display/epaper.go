package display

import (
	"errors"
	"fmt"
	"image"
	"image/draw"
	"log/slog"
	"reflect"
	"unsafe"

	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/devices/v3/waveshare2in13v4"

	"github.com/sweeney/epaper-clock/internal/logic"
)

// EPaper drives a Waveshare 2.13" v4 HAT over SPI.
type EPaper struct {
	*Canvas

	port   spi.PortCloser
	dev    *waveshare2in13v4.Dev
	logger *slog.Logger

	style  logic.RefreshStyle
	asleep bool
}

// NewEPaper opens the panel on the named SPI port (empty for the first).
// periph's host.Init must have run first. With wipe set the panel is
// cleared to white, which is needed after a power loss.
func NewEPaper(port string, wipe bool, logger *slog.Logger) (*EPaper, error) {
	if logger == nil {
		logger = slog.Default()
	}
	p, err := spireg.Open(port)
	if err != nil {
		return nil, fmt.Errorf("open spi port: %w", err)
	}
	opts := waveshare2in13v4.EPD2in13v4
	dev, err := waveshare2in13v4.NewHat(p, &opts)
	if err != nil {
		p.Close()
		return nil, fmt.Errorf("open e-paper: %w", err)
	}
	if err := dev.Init(); err != nil {
		p.Close()
		return nil, fmt.Errorf("init e-paper: %w", err)
	}
	e := &EPaper{Canvas: NewCanvas(), port: p, dev: dev, logger: logger}
	if wipe {
		if err := setMode(dev, false); err != nil {
			logger.Warn("display:mode", slog.String("err", err.Error()))
		}
		if err := dev.Clear(image.White.C); err != nil {
			p.Close()
			return nil, fmt.Errorf("wipe e-paper: %w", err)
		}
	}
	return e, nil
}

// BeginFrame starts a blank frame, waking the panel if needed.
func (e *EPaper) BeginFrame(style logic.RefreshStyle) error {
	if e.asleep {
		if err := e.dev.Init(); err != nil {
			return fmt.Errorf("wake e-paper: %w", err)
		}
		e.asleep = false
	}
	e.style = style
	e.Clear()
	return nil
}

// EndFrame pushes the frame to the panel.
func (e *EPaper) EndFrame() error {
	if err := setMode(e.dev, e.style == logic.RefreshPartial); err != nil {
		// Driver stays in its previous mode.
		e.logger.Warn("display:mode", slog.String("err", err.Error()))
	}
	img := image1bit.NewVerticalLSB(e.dev.Bounds())
	draw.Draw(img, img.Bounds(), toPortrait(e.Image()), image.Point{}, draw.Src)
	if err := e.dev.Draw(e.dev.Bounds(), img, image.Point{}); err != nil {
		return fmt.Errorf("draw e-paper: %w", err)
	}
	return nil
}

// PowerDown puts the panel into deep sleep.
func (e *EPaper) PowerDown() error {
	if e.asleep {
		return nil
	}
	if err := e.dev.Sleep(); err != nil {
		return fmt.Errorf("sleep e-paper: %w", err)
	}
	e.asleep = true
	return nil
}

// Close releases the SPI port.
func (e *EPaper) Close() error {
	return e.port.Close()
}

// setMode selects partial or full refresh. The driver keeps the mode in an
// unexported field and only exposes it through its own partial helpers.
func setMode(dev *waveshare2in13v4.Dev, partial bool) error {
	v := reflect.ValueOf(dev).Elem().FieldByName("mode")
	if !v.IsValid() || !v.CanAddr() {
		return errors.New("display mode field unavailable")
	}
	ptr := reflect.NewAt(v.Type(), unsafe.Pointer(v.UnsafeAddr())).Elem()
	if partial {
		ptr.Set(reflect.ValueOf(waveshare2in13v4.Partial))
	} else {
		ptr.Set(reflect.ValueOf(waveshare2in13v4.Full))
	}
	return nil
}
