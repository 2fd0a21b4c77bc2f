package detector

import (
	"fmt"
	"image"
	"image/color"

	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"github.com/amontes/poserig/internal/pose"
)

// Default YOLOv8-pose postprocessing parameters for COCO-trained models.
const (
	DefaultInputSize    = 640
	DefaultBoxThreshold = 0.5
	DefaultNMSThreshold = 0.45
)

// YOLOv8Params configures the YOLOv8 pose detector.
type YOLOv8Params struct {
	// InputSize is the square model input resolution.
	InputSize int
	// BoxThreshold is the minimum box score for a detection to be kept.
	BoxThreshold float32
	// NMSThreshold is the maximum IoU between two kept detections.
	NMSThreshold float32
}

// YOLOv8COCOParams returns the default parameters for a COCO pose model.
func YOLOv8COCOParams() YOLOv8Params {
	return YOLOv8Params{
		InputSize:    DefaultInputSize,
		BoxThreshold: DefaultBoxThreshold,
		NMSThreshold: DefaultNMSThreshold,
	}
}

// YOLOv8 runs a YOLOv8-pose ONNX export through the OpenCV DNN backend.
type YOLOv8 struct {
	net    gocv.Net
	params YOLOv8Params
	log    *logrus.Logger
}

// NewYOLOv8 loads the ONNX weights at modelPath.
func NewYOLOv8(modelPath string, params YOLOv8Params, log *logrus.Logger) (*YOLOv8, error) {
	net := gocv.ReadNetFromONNX(modelPath)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load pose model from %s", modelPath)
	}

	log.WithFields(logrus.Fields{"component": "detector", "model": modelPath}).
		Info("pose model loaded")

	return &YOLOv8{net: net, params: params, log: log}, nil
}

// Detect runs the model on one BGR frame and returns the detected poses,
// highest scoring first. An empty frame is an error; an empty result is not.
func (y *YOLOv8) Detect(img gocv.Mat) ([]pose.Pose, error) {
	if img.Empty() {
		return nil, fmt.Errorf("empty input frame")
	}

	size := y.params.InputSize
	lb := newLetterbox(img.Cols(), img.Rows(), size)

	// Aspect-preserving resize onto a padded square canvas, matching the
	// letterbox the model was trained with.
	scaledW := int(float32(img.Cols()) * lb.scale)
	scaledH := int(float32(img.Rows()) * lb.scale)

	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(img, &resized, image.Pt(scaledW, scaledH), 0, 0, gocv.InterpolationLinear)

	padded := gocv.NewMat()
	defer padded.Close()
	gocv.CopyMakeBorder(resized, &padded,
		int(lb.padY), size-scaledH-int(lb.padY),
		int(lb.padX), size-scaledW-int(lb.padX),
		gocv.BorderConstant, color.RGBA{R: 114, G: 114, B: 114})

	blob := gocv.BlobFromImage(padded, 1.0/255.0,
		image.Pt(size, size), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	y.net.SetInput(blob, "")
	out := y.net.Forward("")
	defer out.Close()

	// Output shape is [1, 56, anchors]; flatten and decode.
	total := out.Total()
	rows := 5 + pose.NumKeypoints*3
	if total%rows != 0 {
		return nil, fmt.Errorf("unexpected model output size %d", total)
	}
	numAnchors := total / rows

	flat, err := out.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("failed to read model output: %w", err)
	}

	cands := decodeOutput(flat, numAnchors, lb, y.params.BoxThreshold)
	kept := nonMaxSuppression(cands, y.params.NMSThreshold)
	return toPoses(kept), nil
}

func (y *YOLOv8) Close() error {
	return y.net.Close()
}
