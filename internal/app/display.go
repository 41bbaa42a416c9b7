package app

import (
	"context"
	"fmt"
	"image"
	"log"
	"math"
	"time"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/golf_rangefinder/internal/session"
)

const (
	displayWidth  = 128
	displayHeight = 64
	lineHeight    = 13
)

// drawTarget is the part of *ssd1306.Dev the display loop needs.
type drawTarget interface {
	Bounds() image.Rectangle
	Draw(r image.Rectangle, src image.Image, sp image.Point) error
}

// viewer is satisfied by *session.Coordinator.
type viewer interface {
	View() session.View
}

// addrBus sends every transaction to one fixed address, so a panel strapped
// to 0x3D works with drivers that assume 0x3C.
type addrBus struct {
	i2c.Bus
	addr uint16
}

func (b addrBus) Tx(_ uint16, w, r []byte) error {
	return b.Bus.Tx(b.addr, w, r)
}

// openDisplay initializes periph and the SSD1306 at addr on the default
// I2C bus. The returned close func releases the bus.
func openDisplay(addr uint16) (*ssd1306.Dev, func() error, error) {
	if _, err := host.Init(); err != nil {
		return nil, nil, fmt.Errorf("failed to initialize periph: %w", err)
	}

	bus, err := i2creg.Open("")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open I2C bus: %w", err)
	}

	dev, err := ssd1306.NewI2C(addrBus{Bus: bus, addr: addr}, &ssd1306.DefaultOpts)
	if err != nil {
		bus.Close()
		return nil, nil, fmt.Errorf("failed to initialize display: %w", err)
	}
	log.Printf("display: initialized at 0x%02X", addr)
	return dev, bus.Close, nil
}

// runDisplay redraws the session view on dev every interval until ctx is
// done.
func runDisplay(ctx context.Context, dev drawTarget, v viewer, interval time.Duration) {
	if err := drawLines(dev, splashLines()); err != nil {
		log.Printf("display: error showing splash: %v", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Println("display: starting update loop")

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if err := drawLines(dev, viewLines(v.View())); err != nil {
			log.Printf("display: error updating: %v", err)
		}
	}
}

func splashLines() []string {
	return []string{"", "Golf Rangefinder", "Looking for", "sats"}
}

// viewLines lays a view out as at most four 18-character lines.
func viewLines(v session.View) []string {
	hole := fmt.Sprintf("H%d", v.Hole)
	if v.Course != "" {
		hole += " " + v.Course
	}

	if v.Fix == nil {
		return []string{hole, "GPS Position", "Waiting..."}
	}

	lines := []string{
		hole,
		"Pin " + withUnit(v.RangeToPin, v.Unit),
	}
	switch v.State {
	case session.TeeMarked.String():
		lines = append(lines, "Tee marked")
	case session.DriveMeasured.String():
		lines = append(lines, "Drv "+withUnit(v.Drive, v.Unit))
		lines = append(lines, "Left "+withUnit(v.PinFromDrive, v.Unit))
	default:
		pos := v.Fix.Position
		lines = append(lines, fmt.Sprintf("%.4f%s", math.Abs(pos.Latitude), hemisphere(pos.Latitude, "N", "S")))
		lines = append(lines, fmt.Sprintf("%.4f%s", math.Abs(pos.Longitude), hemisphere(pos.Longitude, "E", "W")))
	}
	return lines
}

func withUnit(s, unit string) string {
	if s == session.NotAvailable {
		return s
	}
	return s + " " + unit
}

func hemisphere(deg float64, pos, neg string) string {
	if deg < 0 {
		return neg
	}
	return pos
}

// renderLines draws lines top to bottom in the 7x13 face.
func renderLines(lines []string) *image1bit.VerticalLSB {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, displayWidth, displayHeight))

	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}

	for i, line := range lines {
		if (i+1)*lineHeight > displayHeight {
			break
		}
		drawer.Dot = fixed.P(0, (i+1)*lineHeight)
		drawer.DrawString(line)
	}
	return img
}

func drawLines(dev drawTarget, lines []string) error {
	return dev.Draw(dev.Bounds(), renderLines(lines), image.Point{})
}
