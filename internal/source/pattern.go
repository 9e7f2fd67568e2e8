package source

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"io"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"siteguard/internal/dao"
)

var colorBars = []color.RGBA{
	{R: 255, G: 255, B: 255, A: 255},
	{R: 255, G: 255, B: 0, A: 255},
	{R: 0, G: 255, B: 255, A: 255},
	{R: 0, G: 255, B: 0, A: 255},
	{R: 255, G: 0, B: 255, A: 255},
	{R: 255, G: 0, B: 0, A: 255},
	{R: 0, G: 0, B: 255, A: 255},
	{R: 0, G: 0, B: 0, A: 255},
}

// RGBAPicture is a Picture backed by an in-memory image.
type RGBAPicture struct {
	img *image.RGBA
}

func NewRGBAPicture(width, height int) *RGBAPicture {
	return &RGBAPicture{img: image.NewRGBA(image.Rect(0, 0, width, height))}
}

func (p *RGBAPicture) Image() *image.RGBA {
	return p.img
}

func (p *RGBAPicture) Size() (int, int) {
	b := p.img.Bounds()
	return b.Dx(), b.Dy()
}

func (p *RGBAPicture) DrawText(lines []string) {
	d := &font.Drawer{
		Dst:  p.img,
		Src:  image.NewUniform(color.RGBA{R: 0, G: 255, B: 0, A: 255}),
		Face: basicfont.Face7x13,
	}
	for i, line := range lines {
		d.Dot = fixed.P(10, 20+i*18)
		d.DrawString(line)
	}
}

func (p *RGBAPicture) DrawBoxes(boxes []*dao.DetectionBox) {
	green := color.RGBA{R: 0, G: 255, B: 0, A: 255}
	b := p.img.Bounds()
	for _, box := range boxes {
		r := image.Rect(box.X1, box.Y1, box.X2, box.Y2).Intersect(b)
		if r.Empty() {
			continue
		}
		for x := r.Min.X; x < r.Max.X; x++ {
			p.img.SetRGBA(x, r.Min.Y, green)
			p.img.SetRGBA(x, r.Max.Y-1, green)
		}
		for y := r.Min.Y; y < r.Max.Y; y++ {
			p.img.SetRGBA(r.Min.X, y, green)
			p.img.SetRGBA(r.Max.X-1, y, green)
		}
	}
}

func (p *RGBAPicture) EncodeJPEG(quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, p.img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (p *RGBAPicture) Close() error {
	return nil
}

// PatternDecoder generates color-bar frames. It stands in for a camera when none is available.
type PatternDecoder struct {
	Width  int
	Height int
	Rate   float64
	// Frames bounds the stream length, 0 means endless.
	Frames int
	Label  string
	pos    int
}

func (d *PatternDecoder) Read() (Picture, error) {
	if d.Frames > 0 && d.pos >= d.Frames {
		return nil, io.EOF
	}
	w, h := d.Width, d.Height
	if w <= 0 || h <= 0 {
		w, h = 640, 480
	}
	pic := NewRGBAPicture(w, h)
	barWidth := w / len(colorBars)
	if barWidth == 0 {
		barWidth = 1
	}
	for i, c := range colorBars {
		r := image.Rect(i*barWidth, 0, (i+1)*barWidth, h)
		draw.Draw(pic.img, r, image.NewUniform(c), image.Point{}, draw.Src)
	}
	// moving band so that viewers can tell the feed is alive
	bandY := (d.pos * 4) % h
	draw.Draw(pic.img, image.Rect(0, bandY, w, bandY+8), image.NewUniform(color.Gray{Y: 64}), image.Point{}, draw.Src)
	if d.Label != "" {
		pic.DrawText([]string{"", "", "", "", "", "", d.Label})
	}
	d.pos++
	return pic, nil
}

func (d *PatternDecoder) Rewind() error {
	d.pos = 0
	return nil
}

func (d *PatternDecoder) FPS() float64 {
	return d.Rate
}

func (d *PatternDecoder) FrameCount() int {
	return d.Frames
}

func (d *PatternDecoder) Live() bool {
	return d.Frames == 0
}

func (d *PatternDecoder) Close() error {
	return nil
}

// PatternOpener opens a simulated feed for any path.
type PatternOpener struct {
	Width  int
	Height int
	Rate   float64
}

func (o PatternOpener) Open(path string, opts Options) (*Source, error) {
	src := New(&PatternDecoder{
		Width:  o.Width,
		Height: o.Height,
		Rate:   o.Rate,
		Label:  "SIMULATED FEED",
	}, opts)
	src.simulated = true
	src.name = "pattern"
	return src, nil
}

// FallbackOpener tries Primary and serves Fallback when the primary source is unavailable.
type FallbackOpener struct {
	Primary  Opener
	Fallback Opener
	OnError  func(path string, err error)
}

func (o FallbackOpener) Open(path string, opts Options) (*Source, error) {
	src, err := o.Primary.Open(path, opts)
	if err == nil {
		return src, nil
	}
	if o.OnError != nil {
		o.OnError(path, err)
	}
	if o.Fallback == nil {
		return nil, err
	}
	src, ferr := o.Fallback.Open(path, opts)
	if ferr != nil {
		return nil, fmt.Errorf("open fallback after %v: %w", err, ferr)
	}
	return src, nil
}
