package domain

// TelemetryMessage carries the frames of the currently tracked hands.
// An absent hand is omitted, never sent empty.
type TelemetryMessage struct {
	Left  *JointFrame `json:"left,omitempty"`
	Right *JointFrame `json:"right,omitempty"`
}

func (m *TelemetryMessage) Set(h Handedness, f *JointFrame) {
	switch h {
	case HandLeft:
		m.Left = f
	case HandRight:
		m.Right = f
	}
}

func (m TelemetryMessage) Get(h Handedness) (*JointFrame, bool) {
	switch h {
	case HandLeft:
		return m.Left, m.Left != nil
	case HandRight:
		return m.Right, m.Right != nil
	}
	return nil, false
}

// Hands returns the number of hands present.
func (m TelemetryMessage) Hands() int {
	n := 0
	if m.Left != nil {
		n++
	}
	if m.Right != nil {
		n++
	}
	return n
}

const (
	RoleTeleop = "teleop"
	RoleRobot  = "robot"
)

// RoleAnnouncement is the first message on a relay connection.
type RoleAnnouncement struct {
	Role    string `json:"role"`
	RobotID string `json:"robot_id"`
}
