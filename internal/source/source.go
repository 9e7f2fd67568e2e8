package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"siteguard/internal/dao"
)

// ErrUnavailable is returned by an Opener when the file or device cannot be opened.
var ErrUnavailable = errors.New("source unavailable")

// Picture is one decoded image. Implementations own native memory, callers must Close it.
type Picture interface {
	Size() (width, height int)
	DrawText(lines []string)
	DrawBoxes(boxes []*dao.DetectionBox)
	EncodeJPEG(quality int) ([]byte, error)
	Close() error
}

type Frame struct {
	// Seq counts every frame handed out by the source, it is not reset by looping.
	Seq int
	// Pos is the position inside the underlying file, reset to 0 when the source loops.
	Pos     int
	Offset  time.Duration
	Picture Picture
}

func (f *Frame) Close() {
	if f != nil && f.Picture != nil {
		f.Picture.Close()
	}
}

// Decoder is the raw frame reader behind a Source.
type Decoder interface {
	// Read returns io.EOF at the end of a finite stream.
	Read() (Picture, error)
	Rewind() error
	// FPS returns 0 when the rate is unknown.
	FPS() float64
	// FrameCount returns 0 for live or unknown-length sources.
	FrameCount() int
	Live() bool
	Close() error
}

type Options struct {
	// Loop restarts finite sources from position 0 at end of stream instead of returning io.EOF.
	Loop bool
}

type Opener interface {
	Open(path string, opts Options) (*Source, error)
}

type Source struct {
	dec       Decoder
	loop      bool
	seq       int
	pos       int
	loops     int
	simulated bool
	name      string
}

func New(dec Decoder, opts Options) *Source {
	return &Source{
		dec:  dec,
		loop: opts.Loop,
	}
}

// Next returns the next frame. With looping disabled a finite source ends with io.EOF.
func (s *Source) Next() (*Frame, error) {
	pic, err := s.dec.Read()
	if errors.Is(err, io.EOF) && s.loop && !s.dec.Live() && s.pos > 0 {
		if rerr := s.dec.Rewind(); rerr != nil {
			return nil, fmt.Errorf("rewind source: %w", rerr)
		}
		s.pos = 0
		s.loops++
		pic, err = s.dec.Read()
	}
	if err != nil {
		return nil, err
	}

	f := &Frame{
		Seq:     s.seq,
		Pos:     s.pos,
		Offset:  offset(s.pos, s.dec.FPS()),
		Picture: pic,
	}
	s.seq++
	s.pos++
	return f, nil
}

func offset(pos int, fps float64) time.Duration {
	if fps <= 0 {
		return 0
	}
	return time.Duration(float64(pos) / fps * float64(time.Second))
}

func (s *Source) FPS() float64 {
	return s.dec.FPS()
}

func (s *Source) FrameCount() int {
	return s.dec.FrameCount()
}

func (s *Source) Live() bool {
	return s.dec.Live()
}

func (s *Source) Loops() int {
	return s.loops
}

// Simulated reports whether frames come from a generated pattern instead of a camera or file.
func (s *Source) Simulated() bool {
	return s.simulated
}

// WithName labels the source for logs and overlays.
func (s *Source) WithName(name string) *Source {
	s.name = name
	return s
}

func (s *Source) Name() string {
	return s.name
}

func (s *Source) Close() error {
	return s.dec.Close()
}

// Pacer rate-limits a consumer to the source frame rate.
type Pacer struct {
	interval time.Duration
}

// NewPacer uses fps when known, else defaultFps.
func NewPacer(fps, defaultFps float64) *Pacer {
	rate := fps
	if rate <= 0 {
		rate = defaultFps
	}
	if rate <= 0 {
		rate = 10
	}
	return &Pacer{interval: time.Duration(float64(time.Second) / rate)}
}

func (p *Pacer) Interval() time.Duration {
	return p.interval
}

func (p *Pacer) Wait(ctx context.Context) error {
	t := time.NewTimer(p.interval)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
