package capture

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/amontes/poserig/internal/pose"
)

var (
	limbColor  = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	jointColor = color.RGBA{B: 255, A: 255}
)

// DrawPoses draws skeleton lines and keypoint circles onto a BGR frame.
// Keypoints and limbs below the confidence threshold are not drawn.
func DrawPoses(img *gocv.Mat, poses []pose.Pose, threshold float64) {
	for i := range poses {
		p := &poses[i]

		for _, limb := range pose.Skeleton {
			a := p.Keypoints[limb[0]]
			b := p.Keypoints[limb[1]]
			if a.Conf < threshold || b.Conf < threshold {
				continue
			}
			gocv.Line(img,
				image.Pt(int(a.X), int(a.Y)),
				image.Pt(int(b.X), int(b.Y)),
				limbColor, 2)
		}

		for _, kp := range p.Keypoints {
			if kp.Conf < threshold {
				continue
			}
			gocv.Circle(img, image.Pt(int(kp.X), int(kp.Y)), 3, jointColor, -1)
		}
	}
}
