package core

import "github.com/dkeye/Teleop/internal/domain"

// TrackedHand is one hand currently seen by the tracking source.
type TrackedHand interface {
	Handedness() domain.Handedness
	// JointPose resolves the pose of a joint by its canonical name.
	JointPose(joint string) (domain.Pose, bool)
}

type HandSource interface {
	TrackedHands() []TrackedHand
}
