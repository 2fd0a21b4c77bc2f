// Package pose defines the keypoint data model shared by the detector, the
// rig controller and the metrics pipeline.
package pose

import (
	"gonum.org/v1/gonum/stat"

	"github.com/amontes/poserig/internal/geometry"
)

// NumKeypoints is the number of COCO body landmarks per detected person.
const NumKeypoints = 17

// DefaultThreshold is the minimum confidence for a keypoint to be usable.
const DefaultThreshold = 0.25

// COCO keypoint indices. The order is fixed by the detector output and must
// never be reordered.
const (
	Nose = iota
	LeftEye
	RightEye
	LeftEar
	RightEar
	LeftShoulder
	RightShoulder
	LeftElbow
	RightElbow
	LeftWrist
	RightWrist
	LeftHip
	RightHip
	LeftKnee
	RightKnee
	LeftAnkle
	RightAnkle
)

// Skeleton lists the keypoint index pairs connected by a limb, used for
// overlay drawing.
var Skeleton = [][2]int{
	{LeftShoulder, LeftElbow}, {LeftElbow, LeftWrist},
	{RightShoulder, RightElbow}, {RightElbow, RightWrist},
	{LeftHip, LeftKnee}, {LeftKnee, LeftAnkle},
	{RightHip, RightKnee}, {RightKnee, RightAnkle},
	{LeftShoulder, RightShoulder}, {LeftHip, RightHip},
	{LeftShoulder, LeftHip}, {RightShoulder, RightHip},
}

// Keypoint is a single detected landmark with its confidence score.
type Keypoint struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Conf float64 `json:"conf"`
}

// Pose is the full 17-point skeleton of one detected person in one frame.
type Pose struct {
	Keypoints [NumKeypoints]Keypoint `json:"keypoints"`
	Score     float64                `json:"score"`
}

// SafePoint returns the 2D coordinate at idx if its confidence meets the
// threshold. A below-threshold keypoint is a normal outcome, not an error:
// callers skip the derived angle.
func SafePoint(p *Pose, idx int, threshold float64) (geometry.Point, bool) {
	kp := p.Keypoints[idx]
	if kp.Conf < threshold {
		return geometry.Point{}, false
	}
	return geometry.Point{X: kp.X, Y: kp.Y}, true
}

// Stats summarises keypoint visibility for one person.
type Stats struct {
	MeanConf     float64
	VisibleRatio float64
	VisibleCount int
}

// KeypointStats computes the mean confidence of keypoints at or above the
// threshold, the visible count, and the visible ratio over all 17 points.
func KeypointStats(p *Pose, threshold float64) Stats {
	confs := make([]float64, 0, NumKeypoints)
	for _, kp := range p.Keypoints {
		if kp.Conf >= threshold {
			confs = append(confs, kp.Conf)
		}
	}

	s := Stats{VisibleCount: len(confs)}
	s.VisibleRatio = float64(len(confs)) / float64(NumKeypoints)
	if len(confs) > 0 {
		s.MeanConf = stat.Mean(confs, nil)
	}
	return s
}
