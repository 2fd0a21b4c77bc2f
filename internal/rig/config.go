package rig

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Axis selects one of the three independent rotation channels of a joint.
type Axis string

const (
	AxisH Axis = "H"
	AxisP Axis = "P"
	AxisR Axis = "R"
)

// JointRole is the closed set of semantic joint roles driven by 2D keypoints.
type JointRole string

const (
	LeftUpperArm  JointRole = "L_UPPERARM"
	RightUpperArm JointRole = "R_UPPERARM"
	LeftForearm   JointRole = "L_FOREARM"
	RightForearm  JointRole = "R_FOREARM"
	LeftHip       JointRole = "L_HIP"
	RightHip      JointRole = "R_HIP"
	LeftKnee      JointRole = "L_KNEE"
	RightKnee     JointRole = "R_KNEE"
	LeftAnkle     JointRole = "L_ANKLE"
	RightAnkle    JointRole = "R_ANKLE"
	Spine         JointRole = "SPINE"
	Hips          JointRole = "HIPS"
)

// Roles lists every joint role; a Config mapping must cover all of them.
var Roles = []JointRole{
	LeftUpperArm, RightUpperArm,
	LeftForearm, RightForearm,
	LeftHip, RightHip,
	LeftKnee, RightKnee,
	LeftAnkle, RightAnkle,
	Spine, Hips,
}

// AxisConfig describes how a computed 2D angle maps onto one rig joint:
// which rotation channel is driven, the sign correcting left/right
// mirroring, and a constant offset aligning the bind pose with the
// anatomical convention.
type AxisConfig struct {
	Axis      Axis    `validate:"oneof=H P R"`
	Sign      float64 `validate:"eq=-1|eq=0|eq=1"`
	OffsetDeg float64
}

// Override pins individual rotation channels of a joint to constant values
// regardless of input. A nil channel is left at the bind pose.
type Override struct {
	H *float64
	P *float64
	R *float64
}

// Config is the single source of truth for how 2D screen geometry maps onto
// a specific rig's bone conventions. It is loaded once at startup and never
// mutated; swapping rigs means swapping the Config, not the controller.
type Config struct {
	// Mapping resolves a semantic joint role to a rig joint name.
	Mapping map[JointRole]string `validate:"required,dive,required"`
	// Axes holds the per-joint axis/sign/offset transform, keyed by rig
	// joint name.
	Axes map[string]AxisConfig `validate:"required,dive"`
	// Overrides optionally pins rotation channels, keyed by rig joint name.
	Overrides map[string]Override
	// Threshold is the minimum keypoint confidence used by the controller.
	Threshold float64 `validate:"gte=0,lte=1"`
}

var validate = validator.New()

// Validate checks the table for structural errors: every role mapped, every
// mapped joint configured, axis and sign values legal, threshold in range.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid rig config: %w", err)
	}

	for _, role := range Roles {
		name, ok := c.Mapping[role]
		if !ok || name == "" {
			return fmt.Errorf("invalid rig config: role %s has no joint mapping", role)
		}
		if _, ok := c.Axes[name]; !ok {
			return fmt.Errorf("invalid rig config: joint %q has no axis config", name)
		}
	}

	return nil
}

// JointNames returns the mapped rig joint names in role order.
func (c Config) JointNames() []string {
	names := make([]string, 0, len(Roles))
	for _, role := range Roles {
		names = append(names, c.Mapping[role])
	}
	return names
}

// MixamoConfig returns the mapping table for a Mixamo-rigged humanoid.
// Offsets align the Mixamo bind pose with the on-screen angle convention;
// zero-sign entries keep the joint pinned at its bind rotation.
func MixamoConfig() Config {
	return Config{
		Mapping: map[JointRole]string{
			LeftUpperArm:  "mixamorig:LeftArm",
			RightUpperArm: "mixamorig:RightArm",
			LeftForearm:   "mixamorig:LeftForeArm",
			RightForearm:  "mixamorig:RightForeArm",
			LeftHip:       "mixamorig:LeftUpLeg",
			RightHip:      "mixamorig:RightUpLeg",
			LeftKnee:      "mixamorig:LeftLeg",
			RightKnee:     "mixamorig:RightLeg",
			LeftAnkle:     "mixamorig:LeftFoot",
			RightAnkle:    "mixamorig:RightFoot",
			Spine:         "mixamorig:Spine1",
			Hips:          "mixamorig:Spine",
		},
		Axes: map[string]AxisConfig{
			"mixamorig:LeftArm":      {Axis: AxisP, Sign: -1, OffsetDeg: 0},
			"mixamorig:RightArm":     {Axis: AxisP, Sign: +1, OffsetDeg: 180},
			"mixamorig:LeftForeArm":  {Axis: AxisP, Sign: -1, OffsetDeg: 0},
			"mixamorig:RightForeArm": {Axis: AxisP, Sign: +1, OffsetDeg: 0},
			"mixamorig:LeftUpLeg":    {Axis: AxisR, Sign: -1, OffsetDeg: 100},
			"mixamorig:RightUpLeg":   {Axis: AxisR, Sign: -1, OffsetDeg: 100},
			"mixamorig:LeftLeg":      {Axis: AxisP, Sign: 0, OffsetDeg: 0},
			"mixamorig:RightLeg":     {Axis: AxisP, Sign: 0, OffsetDeg: 0},
			"mixamorig:LeftFoot":     {Axis: AxisP, Sign: 0, OffsetDeg: 0},
			"mixamorig:RightFoot":    {Axis: AxisP, Sign: 0, OffsetDeg: 0},
			"mixamorig:Spine1":       {Axis: AxisR, Sign: +1, OffsetDeg: 0},
			"mixamorig:Spine":        {Axis: AxisR, Sign: +1, OffsetDeg: 0},
		},
		Overrides: map[string]Override{},
		Threshold: 0.25,
	}
}
