package vision

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Trendyol/go-triton-client/base"
	tritonGrpc "github.com/Trendyol/go-triton-client/client/grpc"
	"gocv.io/x/gocv"

	"siteguard/internal/config"
	"siteguard/internal/dao"
	"siteguard/internal/source"
)

// TritonDetector runs a YOLO model served by Triton. The model takes a FRAME
// tensor and returns DETECTIONS rows of [x1, y1, x2, y2, confidence, class_id].
type TritonDetector struct {
	cli       base.Client
	modelName string
	labels    map[int]string
}

func NewTritonDetector(conf config.TritonConfig) (*TritonDetector, error) {
	tritonCli, err := tritonGrpc.NewClient(
		conf.ServerAddr,
		false, // verbose logging
		30,    // connection timeout in seconds
		30,    // network timeout in seconds
		false, // use ssl
		true,  // insecure connection
		nil,   // existing grpc connection
		nil,   // logger
	)
	if err != nil {
		return nil, err
	}
	return &TritonDetector{
		cli:       tritonCli,
		modelName: conf.ModelName,
		labels:    LabelMap(conf.Labels),
	}, nil
}

// LabelMap splits a comma separated class list, index is the class id.
func LabelMap(labels string) map[int]string {
	labelMap := make(map[int]string)
	for i, label := range strings.Split(labels, ",") {
		labelMap[i] = strings.TrimSpace(label)
	}
	return labelMap
}

// Ready checks that the server and the model can serve requests.
func (d *TritonDetector) Ready(ctx context.Context) error {
	if isLive, err := d.cli.IsServerLive(ctx, nil); err != nil {
		return err
	} else if !isLive {
		return errors.New("triton server is not live")
	}

	if isReady, err := d.cli.IsServerReady(ctx, nil); err != nil {
		return err
	} else if !isReady {
		return errors.New("triton server is not ready")
	}

	if isReady, err := d.cli.IsModelReady(ctx, d.modelName, "1", nil); err != nil {
		return err
	} else if !isReady {
		return fmt.Errorf("triton model %s is not ready", d.modelName)
	}
	return nil
}

func (d *TritonDetector) Name() string {
	return "triton:" + d.modelName
}

func (d *TritonDetector) Simulated() bool {
	return false
}

func (d *TritonDetector) Detect(ctx context.Context, frame *source.Frame) ([]*dao.DetectionBox, error) {
	switch pic := frame.Picture.(type) {
	case *matPicture:
		return performInference(ctx, d.cli, &pic.mat, d.modelName, d.labels)
	case *source.RGBAPicture:
		mat, err := gocv.ImageToMatRGB(pic.Image())
		if err != nil {
			return nil, fmt.Errorf("convert frame: %w", err)
		}
		defer mat.Close()
		return performInference(ctx, d.cli, &mat, d.modelName, d.labels)
	default:
		return nil, fmt.Errorf("unsupported picture type %T", frame.Picture)
	}
}

func performInference(ctx context.Context, client base.Client, frame *gocv.Mat, modelName string, labelMap map[int]string) ([]*dao.DetectionBox, error) {
	frameBytes := frame.ToBytes()

	frameInput := tritonGrpc.NewInferInput("FRAME", "BYTES", []int64{int64(frame.Rows()), int64(frame.Cols()), 3}, nil)
	err := frameInput.SetData(frameBytes, true)
	if err != nil {
		return nil, fmt.Errorf("failed to set FRAME input data: %w", err)
	}
	frameInput.SetDatatype("UINT8")

	outputs := []base.InferOutput{
		tritonGrpc.NewInferOutput("DETECTIONS", map[string]any{"binary_data": false}),
	}

	response, err := client.Infer(
		ctx,
		modelName,
		"1",
		[]base.InferInput{frameInput},
		outputs,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	detections, err := response.AsFloat32Slice("DETECTIONS")
	if err != nil {
		return nil, fmt.Errorf("failed to get detection data: %w", err)
	}
	return parseDetections(detections, labelMap), nil
}

// parseDetections reads [N, 6] rows and drops classes without a label.
func parseDetections(detections []float32, labelMap map[int]string) []*dao.DetectionBox {
	var boxes []*dao.DetectionBox
	for i := 0; i+5 < len(detections); i += 6 {
		classID := int(detections[i+5])
		className, exists := labelMap[classID]
		if !exists || className == "" {
			continue
		}
		boxes = append(boxes, &dao.DetectionBox{
			X1:         int(detections[i]),
			Y1:         int(detections[i+1]),
			X2:         int(detections[i+2]),
			Y2:         int(detections[i+3]),
			Confidence: detections[i+4],
			ClassId:    classID,
			Label:      className,
		})
	}
	return boxes
}
