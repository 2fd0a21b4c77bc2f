package detector

import (
	"sort"

	"github.com/amontes/poserig/internal/pose"
)

// letterbox describes how a source frame was fitted into the square model
// input: uniform scale plus padding, so detections can be mapped back.
type letterbox struct {
	scale float32
	padX  float32
	padY  float32
}

func newLetterbox(srcW, srcH, inputSize int) letterbox {
	scale := float32(inputSize) / float32(srcW)
	if s := float32(inputSize) / float32(srcH); s < scale {
		scale = s
	}
	return letterbox{
		scale: scale,
		padX:  (float32(inputSize) - float32(srcW)*scale) / 2,
		padY:  (float32(inputSize) - float32(srcH)*scale) / 2,
	}
}

// toSource maps a model-input coordinate back onto the source frame.
func (lb letterbox) toSource(x, y float32) (float32, float32) {
	return (x - lb.padX) / lb.scale, (y - lb.padY) / lb.scale
}

// candidate is one raw detection before non-maximum suppression.
type candidate struct {
	x1, y1, x2, y2 float32
	score          float32
	keypoints      [pose.NumKeypoints]pose.Keypoint
}

// decodeOutput parses the flat YOLOv8-pose output tensor. Layout is
// channel-major: 56 rows of numAnchors values (cx, cy, w, h, box score,
// then x/y/conf triples for the 17 keypoints). Coordinates are mapped back
// through the letterbox into source-frame pixels.
func decodeOutput(data []float32, numAnchors int, lb letterbox, boxThreshold float32) []candidate {
	if len(data) < (5+pose.NumKeypoints*3)*numAnchors {
		return nil
	}

	row := func(r, a int) float32 { return data[r*numAnchors+a] }

	var cands []candidate
	for a := 0; a < numAnchors; a++ {
		score := row(4, a)
		if score < boxThreshold {
			continue
		}

		cx, cy := row(0, a), row(1, a)
		w, h := row(2, a), row(3, a)

		x1, y1 := lb.toSource(cx-w/2, cy-h/2)
		x2, y2 := lb.toSource(cx+w/2, cy+h/2)

		c := candidate{x1: x1, y1: y1, x2: x2, y2: y2, score: score}
		for k := 0; k < pose.NumKeypoints; k++ {
			kx, ky := lb.toSource(row(5+k*3, a), row(5+k*3+1, a))
			c.keypoints[k] = pose.Keypoint{
				X:    float64(kx),
				Y:    float64(ky),
				Conf: float64(row(5+k*3+2, a)),
			}
		}
		cands = append(cands, c)
	}
	return cands
}

func iou(a, b candidate) float32 {
	ix1 := max32(a.x1, b.x1)
	iy1 := max32(a.y1, b.y1)
	ix2 := min32(a.x2, b.x2)
	iy2 := min32(a.y2, b.y2)

	iw := ix2 - ix1
	ih := iy2 - iy1
	if iw <= 0 || ih <= 0 {
		return 0
	}

	inter := iw * ih
	union := (a.x2-a.x1)*(a.y2-a.y1) + (b.x2-b.x1)*(b.y2-b.y1) - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// nonMaxSuppression keeps the highest scoring candidates, dropping any
// whose overlap with an already kept box exceeds the threshold.
func nonMaxSuppression(cands []candidate, nmsThreshold float32) []candidate {
	sort.SliceStable(cands, func(i, j int) bool {
		return cands[i].score > cands[j].score
	})

	var kept []candidate
	for _, c := range cands {
		suppressed := false
		for _, k := range kept {
			if iou(c, k) > nmsThreshold {
				suppressed = true
				break
			}
		}
		if !suppressed {
			kept = append(kept, c)
		}
	}
	return kept
}

func toPoses(cands []candidate) []pose.Pose {
	poses := make([]pose.Pose, 0, len(cands))
	for _, c := range cands {
		p := pose.Pose{Score: float64(c.score)}
		p.Keypoints = c.keypoints
		poses = append(poses, p)
	}
	return poses
}

func max32(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}

func min32(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}
