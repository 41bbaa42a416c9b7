package app

import (
	"context"
	"image"
	"reflect"
	"sync"
	"testing"
	"time"

	"periph.io/x/devices/v3/ssd1306/image1bit"

	"github.com/relabs-tech/golf_rangefinder/internal/gps"
	"github.com/relabs-tech/golf_rangefinder/internal/session"
)

type fakePanel struct {
	mu     sync.Mutex
	frames []image.Image
}

func (p *fakePanel) Bounds() image.Rectangle {
	return image.Rect(0, 0, displayWidth, displayHeight)
}

func (p *fakePanel) Draw(_ image.Rectangle, src image.Image, _ image.Point) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.frames = append(p.frames, src)
	return nil
}

func (p *fakePanel) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.frames)
}

type staticView session.View

func (v staticView) View() session.View { return session.View(v) }

func TestViewLines_NoFix(t *testing.T) {
	got := viewLines(session.View{Hole: 3, Course: "Links"})
	want := []string{"H3 Links", "GPS Position", "Waiting..."}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("lines = %q, want %q", got, want)
	}
}

func TestViewLines_IdleShowsPosition(t *testing.T) {
	fix := gps.Fix{Position: gps.Coordinate{Latitude: -33.8688, Longitude: 151.2093}, Valid: true}
	got := viewLines(session.View{
		State:      session.Idle.String(),
		Fix:        &fix,
		Hole:       1,
		RangeToPin: session.NotAvailable,
		Unit:       "yd",
	})
	want := []string{"H1", "Pin N/A", "33.8688S", "151.2093E"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("lines = %q, want %q", got, want)
	}
}

func TestViewLines_DriveMeasured(t *testing.T) {
	fix := gps.Fix{Position: gps.Coordinate{Latitude: 51.5, Longitude: -0.12}, Valid: true}
	got := viewLines(session.View{
		State:        session.DriveMeasured.String(),
		Fix:          &fix,
		Hole:         7,
		RangeToPin:   "142.35",
		Drive:        "231.10",
		PinFromDrive: "145.00",
		Unit:         "yd",
	})
	want := []string{"H7", "Pin 142.35 yd", "Drv 231.10 yd", "Left 145.00 yd"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("lines = %q, want %q", got, want)
	}
}

func TestRenderLines_DrawsPixels(t *testing.T) {
	img := renderLines([]string{"Pin 142.35 yd"})
	if img.Bounds() != image.Rect(0, 0, displayWidth, displayHeight) {
		t.Fatalf("bounds = %v", img.Bounds())
	}
	lit := 0
	for _, b := range img.Pix {
		if b != 0 {
			lit++
		}
	}
	if lit == 0 {
		t.Fatalf("nothing drawn")
	}
	if img.BitAt(127, 63) != image1bit.Off {
		t.Fatalf("bottom-right pixel set")
	}
}

func TestRunDisplay_RedrawsUntilCancelled(t *testing.T) {
	panel := &fakePanel{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		runDisplay(ctx, panel, staticView{Hole: 1}, 5*time.Millisecond)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for panel.count() < 3 {
		if time.Now().After(deadline) {
			t.Fatalf("only %d frames drawn", panel.count())
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("runDisplay did not return after cancel")
	}
}
