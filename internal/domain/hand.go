// Package domain contains entities without transport or lifecycle logic.
package domain

import (
	"errors"
	"fmt"
)

const (
	// JointCount is the number of joints reported per tracked hand.
	JointCount = 25
	// PoseSize is the number of floats in one column-major 4x4 transform.
	PoseSize = 16
	// FrameSize is the number of floats in one JointFrame.
	FrameSize = JointCount * PoseSize
)

var ErrUnknownHandedness = errors.New("unknown handedness")

type Handedness string

const (
	HandLeft  Handedness = "left"
	HandRight Handedness = "right"
)

func ParseHandedness(s string) (Handedness, error) {
	switch Handedness(s) {
	case HandLeft, HandRight:
		return Handedness(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownHandedness, s)
}

// Joints lists the hand joint names in wire order.
var Joints = [JointCount]string{
	"wrist",
	"thumb-metacarpal",
	"thumb-phalanx-proximal",
	"thumb-phalanx-distal",
	"thumb-tip",
	"index-finger-metacarpal",
	"index-finger-phalanx-proximal",
	"index-finger-phalanx-intermediate",
	"index-finger-phalanx-distal",
	"index-finger-tip",
	"middle-finger-metacarpal",
	"middle-finger-phalanx-proximal",
	"middle-finger-phalanx-intermediate",
	"middle-finger-phalanx-distal",
	"middle-finger-tip",
	"ring-finger-metacarpal",
	"ring-finger-phalanx-proximal",
	"ring-finger-phalanx-intermediate",
	"ring-finger-phalanx-distal",
	"ring-finger-tip",
	"pinky-finger-metacarpal",
	"pinky-finger-phalanx-proximal",
	"pinky-finger-phalanx-intermediate",
	"pinky-finger-phalanx-distal",
	"pinky-finger-tip",
}

type Pose [PoseSize]float32

// IdentityPose is written for joints whose pose cannot be resolved.
var IdentityPose = Pose{
	1, 0, 0, 0,
	0, 1, 0, 0,
	0, 0, 1, 0,
	0, 0, 0, 1,
}

// JointFrame is one sample of one hand: 25 poses laid out back to back.
type JointFrame [FrameSize]float32

// SetJoint writes pose p into slot i. i must be below JointCount.
func (f *JointFrame) SetJoint(i int, p Pose) {
	copy(f[i*PoseSize:(i+1)*PoseSize], p[:])
}

func (f *JointFrame) Joint(i int) Pose {
	var p Pose
	copy(p[:], f[i*PoseSize:(i+1)*PoseSize])
	return p
}
