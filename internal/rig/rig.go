package rig

import (
	"sync"
)

// Rotation is a joint's local rotation split over the three channels,
// in degrees.
type Rotation struct {
	H float64 `json:"h"`
	P float64 `json:"p"`
	R float64 `json:"r"`
}

// Get returns the value of one channel.
func (r Rotation) Get(axis Axis) float64 {
	switch axis {
	case AxisH:
		return r.H
	case AxisP:
		return r.P
	default:
		return r.R
	}
}

// WithAxis returns a copy with one channel replaced.
func (r Rotation) WithAxis(axis Axis, deg float64) Rotation {
	switch axis {
	case AxisH:
		r.H = deg
	case AxisP:
		r.P = deg
	default:
		r.R = deg
	}
	return r
}

// Rig is the externally-owned skeletal actor as seen by the controller.
// ResolveJoint reports ok=false for an unknown joint name instead of
// failing; the controller warns once and skips that joint afterwards.
type Rig interface {
	// ResolveJoint checks that the named joint exists and is controllable.
	ResolveJoint(name string) bool
	// BindRotation returns the joint's rotation at rig load time.
	BindRotation(name string) (Rotation, bool)
	// SetRotation overwrites the joint's full local rotation.
	SetRotation(name string, rot Rotation) bool
}

// Skeleton is an in-memory Rig: a flat table of named joints with their
// bind and current rotations. The pipeline is the single writer; HTTP
// readers take snapshots, so access is mutex-guarded.
type Skeleton struct {
	mu     sync.RWMutex
	joints map[string]*jointState
	order  []string
}

type jointState struct {
	bind    Rotation
	current Rotation
}

// NewSkeleton builds a skeleton containing the given joints, all at a zero
// bind rotation.
func NewSkeleton(names []string) *Skeleton {
	s := &Skeleton{joints: make(map[string]*jointState, len(names))}
	for _, n := range names {
		if _, dup := s.joints[n]; dup {
			continue
		}
		s.joints[n] = &jointState{}
		s.order = append(s.order, n)
	}
	return s
}

// SetBind sets a joint's bind rotation and resets its current rotation to
// it. Used when loading a rig whose rest pose is not all zeroes.
func (s *Skeleton) SetBind(name string, rot Rotation) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.joints[name]
	if !ok {
		return false
	}
	j.bind = rot
	j.current = rot
	return true
}

func (s *Skeleton) ResolveJoint(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.joints[name]
	return ok
}

func (s *Skeleton) BindRotation(name string) (Rotation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.joints[name]
	if !ok {
		return Rotation{}, false
	}
	return j.bind, true
}

func (s *Skeleton) SetRotation(name string, rot Rotation) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.joints[name]
	if !ok {
		return false
	}
	j.current = rot
	return true
}

// Snapshot returns the current rotation of every joint, keyed by joint
// name. Safe to call concurrently with pipeline writes.
func (s *Skeleton) Snapshot() map[string]Rotation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]Rotation, len(s.joints))
	for name, j := range s.joints {
		out[name] = j.current
	}
	return out
}

// JointNames returns the joint names in insertion order.
func (s *Skeleton) JointNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, len(s.order))
	copy(names, s.order)
	return names
}
