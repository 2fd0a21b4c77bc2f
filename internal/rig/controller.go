// Package rig maps 2D pose keypoints onto the joint rotations of a 3D
// skeletal rig, driven by a per-rig configuration table.
package rig

import (
	"github.com/sirupsen/logrus"

	"github.com/amontes/poserig/internal/geometry"
	"github.com/amontes/poserig/internal/pose"
)

// Segment scale factors damp hip and knee rotations before they are
// written to the rig.
const (
	armScale  = 1.0
	hipScale  = 0.8
	kneeScale = 0.9
)

// Controller converts one detected pose into joint rotation writes on an
// externally-owned Rig, plus a per-segment angle map. It keeps no per-frame
// state besides each joint's bind rotation, captured once here.
type Controller struct {
	rig  Rig
	cfg  Config
	log  *logrus.Logger
	bind map[string]Rotation
}

// NewController resolves every mapped joint against the rig and captures
// bind rotations. A joint name the rig cannot resolve is logged once as a
// warning and silently skipped for all subsequent frames; it is never fatal.
func NewController(r Rig, cfg Config, log *logrus.Logger) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Controller{
		rig:  r,
		cfg:  cfg,
		log:  log,
		bind: make(map[string]Rotation, len(Roles)),
	}

	for _, role := range Roles {
		name := cfg.Mapping[role]
		if !r.ResolveJoint(name) {
			log.WithFields(logrus.Fields{"component": "rig", "joint": name}).
				Warnf("joint not found in rig, role %s will not be driven", role)
			continue
		}
		if rot, ok := r.BindRotation(name); ok {
			c.bind[name] = rot
		}
	}

	return c, nil
}

// ControlledJoints returns how many mapped joints were resolved.
func (c *Controller) ControlledJoints() int {
	return len(c.bind)
}

// fixedRotation returns the joint's bind rotation with any pinned override
// channels applied. Overrides take precedence over everything computed.
func (c *Controller) fixedRotation(name string) Rotation {
	rot := c.bind[name]
	ov, ok := c.cfg.Overrides[name]
	if !ok {
		return rot
	}
	if ov.H != nil {
		rot.H = *ov.H
	}
	if ov.P != nil {
		rot.P = *ov.P
	}
	if ov.R != nil {
		rot.R = *ov.R
	}
	return rot
}

// setAxisAngle writes angleDeg on the joint's given axis while holding the
// other two channels at their override-adjusted bind values.
func (c *Controller) setAxisAngle(name string, axis Axis, angleDeg float64) {
	if _, ok := c.bind[name]; !ok {
		return
	}
	rot := c.fixedRotation(name).WithAxis(axis, angleDeg)
	c.rig.SetRotation(name, rot)
}

// driveSegment orients the joint for role along the vector from a to b,
// applying the configured axis, sign and offset plus the segment scale.
func (c *Controller) driveSegment(role JointRole, a, b geometry.Point, scale float64) {
	name := c.cfg.Mapping[role]
	ac := c.cfg.Axes[name]
	angle := geometry.Angle2D(a, b) * scale
	c.setAxisAngle(name, ac.Axis, ac.Sign*angle+ac.OffsetDeg)
}

// Apply maps the detected pose onto the rig and returns the computed raw
// segment angles in degrees. Segments with an occluded endpoint are not
// written, so those joints hold their last applied rotation.
func (c *Controller) Apply(p *pose.Pose, boxConf float64) map[string]float64 {
	th := c.cfg.Threshold

	ls, lsOK := pose.SafePoint(p, pose.LeftShoulder, th)
	rs, rsOK := pose.SafePoint(p, pose.RightShoulder, th)
	le, leOK := pose.SafePoint(p, pose.LeftElbow, th)
	re, reOK := pose.SafePoint(p, pose.RightElbow, th)
	lw, lwOK := pose.SafePoint(p, pose.LeftWrist, th)
	rw, rwOK := pose.SafePoint(p, pose.RightWrist, th)
	lh, lhOK := pose.SafePoint(p, pose.LeftHip, th)
	rh, rhOK := pose.SafePoint(p, pose.RightHip, th)
	lk, lkOK := pose.SafePoint(p, pose.LeftKnee, th)
	rk, rkOK := pose.SafePoint(p, pose.RightKnee, th)
	la, laOK := pose.SafePoint(p, pose.LeftAnkle, th)
	ra, raOK := pose.SafePoint(p, pose.RightAnkle, th)

	angles := make(map[string]float64, 8)

	// Upper arms: shoulder -> elbow.
	if lsOK && leOK {
		angles["L_upperarm"] = geometry.Angle2D(ls, le)
		c.driveSegment(LeftUpperArm, ls, le, armScale)
	}
	if rsOK && reOK {
		angles["R_upperarm"] = geometry.Angle2D(rs, re)
		c.driveSegment(RightUpperArm, rs, re, armScale)
	}

	// Elbows: forearm angle relative to the upper arm, continuous across
	// the wrap boundary.
	if lsOK && leOK && lwOK {
		rel := geometry.AngleDiff(geometry.Angle2D(le, lw), geometry.Angle2D(ls, le))
		name := c.cfg.Mapping[LeftForearm]
		ac := c.cfg.Axes[name]
		c.setAxisAngle(name, ac.Axis, ac.Sign*rel+ac.OffsetDeg)
		angles["L_elbow_rel"] = rel
	}
	if rsOK && reOK && rwOK {
		rel := geometry.AngleDiff(geometry.Angle2D(re, rw), geometry.Angle2D(rs, re))
		name := c.cfg.Mapping[RightForearm]
		ac := c.cfg.Axes[name]
		c.setAxisAngle(name, ac.Axis, ac.Sign*rel+ac.OffsetDeg)
		angles["R_elbow_rel"] = rel
	}

	// Legs: hip -> knee and knee -> ankle.
	if lhOK && lkOK {
		angles["L_hip"] = geometry.Angle2D(lh, lk)
		c.driveSegment(LeftHip, lh, lk, hipScale)
	}
	if rhOK && rkOK {
		angles["R_hip"] = geometry.Angle2D(rh, rk)
		c.driveSegment(RightHip, rh, rk, hipScale)
	}
	if lkOK && laOK {
		angles["L_knee"] = geometry.Angle2D(lk, la)
		c.driveSegment(LeftKnee, lk, la, kneeScale)
	}
	if rkOK && raOK {
		angles["R_knee"] = geometry.Angle2D(rk, ra)
		c.driveSegment(RightKnee, rk, ra, kneeScale)
	}

	return angles
}
