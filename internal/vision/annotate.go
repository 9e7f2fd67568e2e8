package vision

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"siteguard/internal/dao"
	"siteguard/internal/source"
)

// FrameDetector is the detection half of ppe.Detector.
type FrameDetector interface {
	Detect(ctx context.Context, frame *source.Frame) ([]*dao.DetectionBox, error)
}

// Annotate runs detector on every frame of inputPath and writes the frames with their
// detection boxes to outputPath. It returns the number of frames written.
func Annotate(ctx context.Context, detector FrameDetector, inputPath, outputPath string, logger *logrus.Entry) (int, error) {
	video, err := gocv.VideoCaptureFile(inputPath)
	if err != nil {
		return 0, fmt.Errorf("failed to open input video: %w", err)
	}
	defer video.Close()

	fps := video.Get(gocv.VideoCaptureFPS)
	width := int(video.Get(gocv.VideoCaptureFrameWidth))
	height := int(video.Get(gocv.VideoCaptureFrameHeight))
	logger.Infof("video properties: %dx%d @ %.2f FPS", width, height, fps)

	writer, err := gocv.VideoWriterFile(outputPath, "mp4v", fps, width, height, true)
	if err != nil {
		return 0, fmt.Errorf("failed to create output video writer: %w", err)
	}
	defer writer.Close()

	mat := gocv.NewMat()
	defer mat.Close()

	frameCount := 0
	totalInferenceTime := time.Duration(0)
	for {
		if err := ctx.Err(); err != nil {
			return frameCount, err
		}
		if ok := video.Read(&mat); !ok {
			break
		}
		if mat.Empty() {
			continue
		}

		frame := &source.Frame{
			Seq:     frameCount,
			Pos:     frameCount,
			Picture: &matPicture{mat: mat},
		}
		start := time.Now()
		boxes, err := detector.Detect(ctx, frame)
		totalInferenceTime += time.Since(start)
		if err != nil {
			logger.WithError(err).Warnf("inference for frame %d", frameCount)
		} else {
			frame.Picture.DrawBoxes(boxes)
		}
		if err := writer.Write(mat); err != nil {
			return frameCount, fmt.Errorf("write frame %d: %w", frameCount, err)
		}
		frameCount++

		if frameCount%30 == 0 {
			logger.Infof("processed %d frames, avg inference time: %.2fms",
				frameCount, float64(totalInferenceTime.Nanoseconds())/float64(frameCount)/1e6)
		}
	}

	logger.Infof("total frames processed: %d", frameCount)
	return frameCount, nil
}
