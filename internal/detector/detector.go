// Package detector wraps the external pose estimation model. The mapping
// core only ever sees the Detector interface; zero detected poses is a
// normal outcome, not an error.
package detector

import (
	"gocv.io/x/gocv"

	"github.com/amontes/poserig/internal/pose"
)

// Detector runs pose estimation on one BGR frame. It may return zero or
// more poses; callers consume only the first for rig control.
type Detector interface {
	Detect(img gocv.Mat) ([]pose.Pose, error)
	Close() error
}
