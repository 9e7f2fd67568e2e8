package vision

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"os"
	"path/filepath"

	"gocv.io/x/gocv"

	"siteguard/internal/dao"
	"siteguard/internal/source"
)

// DecoderAvailable reports whether OpenCV is linked and usable.
func DecoderAvailable() bool {
	return gocv.OpenCVVersion() != ""
}

// FileOpener decodes video files with OpenCV.
type FileOpener struct{}

func (FileOpener) Open(path string, opts source.Options) (*source.Source, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: no video configured", source.ErrUnavailable)
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %w", source.ErrUnavailable, err)
	}
	video, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", source.ErrUnavailable, path, err)
	}
	if !video.IsOpened() {
		video.Close()
		return nil, fmt.Errorf("%w: cannot decode %s", source.ErrUnavailable, path)
	}
	return source.New(&matDecoder{video: video}, opts).WithName(filepath.Base(path)), nil
}

// DeviceOpener serves a capture device whatever path is asked for.
type DeviceOpener struct {
	Device int
	Width  int
	Height int
}

func (o DeviceOpener) Open(path string, opts source.Options) (*source.Source, error) {
	if o.Device < 0 {
		return nil, fmt.Errorf("%w: no capture device configured", source.ErrUnavailable)
	}
	video, err := gocv.VideoCaptureDevice(o.Device)
	if err != nil {
		return nil, fmt.Errorf("%w: open device %d: %w", source.ErrUnavailable, o.Device, err)
	}
	if o.Width > 0 && o.Height > 0 {
		video.Set(gocv.VideoCaptureFrameWidth, float64(o.Width))
		video.Set(gocv.VideoCaptureFrameHeight, float64(o.Height))
	}
	return source.New(&matDecoder{video: video, live: true}, opts).WithName(fmt.Sprintf("camera %d", o.Device)), nil
}

type matDecoder struct {
	video *gocv.VideoCapture
	live  bool
}

func (d *matDecoder) Read() (source.Picture, error) {
	frame := gocv.NewMat()
	if ok := d.video.Read(&frame); !ok || frame.Empty() {
		frame.Close()
		if d.live {
			return nil, errors.New("capture device read failed")
		}
		return nil, io.EOF
	}
	return &matPicture{mat: frame}, nil
}

func (d *matDecoder) Rewind() error {
	d.video.Set(gocv.VideoCapturePosFrames, 0)
	return nil
}

func (d *matDecoder) FPS() float64 {
	return d.video.Get(gocv.VideoCaptureFPS)
}

func (d *matDecoder) FrameCount() int {
	if d.live {
		return 0
	}
	return max(int(d.video.Get(gocv.VideoCaptureFrameCount)), 0)
}

func (d *matDecoder) Live() bool {
	return d.live
}

func (d *matDecoder) Close() error {
	return d.video.Close()
}

// matPicture is a decoded OpenCV frame.
type matPicture struct {
	mat gocv.Mat
}

func (p *matPicture) Size() (int, int) {
	return p.mat.Cols(), p.mat.Rows()
}

func (p *matPicture) DrawText(lines []string) {
	for i, line := range lines {
		gocv.PutText(&p.mat, line, image.Pt(10, 30+i*30), gocv.FontHersheySimplex, 0.7, color.RGBA{0, 255, 0, 255}, 2)
	}
}

func (p *matPicture) DrawBoxes(boxes []*dao.DetectionBox) {
	for _, box := range boxes {
		label := fmt.Sprintf("%s: %.2f", box.Label, box.Confidence)
		labelSize := gocv.GetTextSize(label, gocv.FontHersheySimplex, 0.5, 2)

		gocv.Rectangle(&p.mat, image.Rect(box.X1, box.Y1, box.X2, box.Y2), color.RGBA{0, 255, 0, 255}, 2)
		gocv.Rectangle(&p.mat, image.Rect(box.X1, box.Y1-labelSize.Y-10, box.X1+labelSize.X, box.Y1), color.RGBA{0, 255, 0, 255}, -1)
		gocv.PutText(&p.mat, label, image.Pt(box.X1, box.Y1-5), gocv.FontHersheySimplex, 0.5, color.RGBA{0, 0, 0, 255}, 2)
	}
}

func (p *matPicture) EncodeJPEG(quality int) ([]byte, error) {
	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, p.mat, []int{gocv.IMWriteJpegQuality, quality})
	if err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	defer buf.Close()
	data := buf.GetBytes()
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (p *matPicture) Close() error {
	return p.mat.Close()
}
