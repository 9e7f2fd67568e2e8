package ppe

import (
	"context"
	"math/rand/v2"
	"sync"

	"siteguard/internal/dao"
	"siteguard/internal/source"
)

// Detector turns one frame into labelled boxes.
type Detector interface {
	Name() string
	// Simulated reports whether boxes come from a stand-in rather than a model.
	Simulated() bool
	Detect(ctx context.Context, frame *source.Frame) ([]*dao.DetectionBox, error)
}

// PresentDetector stands in when no model is available: every category is reported present.
// The analyzer classifies its frames with Classifier.AssumePresent.
type PresentDetector struct{}

func (PresentDetector) Name() string {
	return "present"
}

func (PresentDetector) Simulated() bool {
	return true
}

func (PresentDetector) Detect(context.Context, *source.Frame) ([]*dao.DetectionBox, error) {
	return nil, nil
}

// RandomDetector emits synthetic detections. The chance of a missing item grows with
// the position of the frame inside each block of 100 frames.
type RandomDetector struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func NewRandomDetector(seed int64) *RandomDetector {
	return &RandomDetector{
		rnd: rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15)),
	}
}

func (d *RandomDetector) Name() string {
	return "random"
}

func (d *RandomDetector) Simulated() bool {
	return true
}

func (d *RandomDetector) Detect(ctx context.Context, frame *source.Frame) ([]*dao.DetectionBox, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	chance := 0.1 + float64(frame.Seq%100)*0.001

	d.mu.Lock()
	hat := d.rnd.Float64() > chance
	mask := d.rnd.Float64() > chance*0.5
	vest := d.rnd.Float64() > chance*0.3
	d.mu.Unlock()

	var boxes []*dao.DetectionBox
	if hat {
		boxes = append(boxes, syntheticBox(0, "helmet", 100))
	}
	if mask {
		boxes = append(boxes, syntheticBox(1, "mask", 140))
	}
	if vest {
		boxes = append(boxes, syntheticBox(2, "vest", 200))
	}
	return boxes, nil
}

func syntheticBox(classId int, label string, y int) *dao.DetectionBox {
	return &dao.DetectionBox{
		X1:         280,
		Y1:         y,
		X2:         360,
		Y2:         y + 60,
		Confidence: 0.9,
		ClassId:    classId,
		Label:      label,
	}
}
