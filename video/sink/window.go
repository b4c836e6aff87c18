package sink

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"captioncam/video/source"
)

var (
	colorText = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	colorBG   = color.RGBA{R: 0, G: 0, B: 0, A: 255}
)

// KeyAction classifies keyboard input on the display window.
type KeyAction int

const (
	KeyIgnore KeyAction = iota

	// KeyToggle pauses or resumes captioning.
	KeyToggle

	// KeySnapshot saves the current frame and caption to the snapshot
	// store.
	KeySnapshot

	// KeyQuit shuts the application down.
	KeyQuit
)

// Window renders frames locally and forwards keyboard events. Must be
// driven from a single goroutine; HighGUI is not thread safe.
type Window struct {
	window  *gocv.Window
	sizeSet bool

	// KeyFunc, when set, receives classified key events from Put.
	KeyFunc func(KeyAction)
}

func NewWindow(name string) *Window {
	return &Window{
		window: gocv.NewWindow(name),
	}
}

func (w *Window) Put(input source.Image) {
	if !w.sizeSet {
		w.window.ResizeWindow(input.Mat.Cols(), input.Mat.Rows())
		w.sizeSet = true
	}
	w.window.IMShow(input.Mat)
	k := w.window.WaitKey(1)
	if w.KeyFunc == nil {
		return
	}
	switch k {
	case 'q', 27: // esc
		w.KeyFunc(KeyQuit)
	case 't', ' ':
		w.KeyFunc(KeyToggle)
	case 's':
		w.KeyFunc(KeySnapshot)
	}
}

func (w *Window) Close() {
	w.window.Close()
}

// DrawCaption draws the caption and smoothed confidence on a banner at the
// bottom of the image.
func DrawCaption(img source.Image, text string, confidence float32) source.Image {
	if text == "" {
		text = "Waiting for caption..."
	} else {
		text = fmt.Sprintf("%s (Confidence: %.0f%%)", text, confidence*100)
	}

	font := gocv.FontHersheySimplex
	scale := 0.6
	thickness := 1

	sz := gocv.GetTextSize(text, font, scale, thickness)

	pad := 4
	rows := img.Mat.Rows()

	gocv.Rectangle(&img.Mat, image.Rectangle{
		Min: image.Point{X: 0, Y: rows - sz.Y - pad*2},
		Max: image.Point{X: sz.X + pad*2, Y: rows},
	}, colorBG, -1)

	gocv.PutText(&img.Mat, text, image.Point{X: pad, Y: rows - pad}, font, scale, colorText, thickness)

	return img
}
