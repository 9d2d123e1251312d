package negotiator

import "github.com/dkeye/Teleop/internal/domain"

type CandidateAction int

const (
	DropCandidate CandidateAction = iota
	QueueCandidate
)

// CandidatePolicy decides what happens to a local ICE candidate gathered
// while signaling is down. queued is the number already held back.
type CandidatePolicy interface {
	OnSignalingDown(c domain.ICECandidate, queued int) CandidateAction
}

// DropPolicy discards the candidate.
type DropPolicy struct{}

func (DropPolicy) OnSignalingDown(domain.ICECandidate, int) CandidateAction { return DropCandidate }

// QueuePolicy holds candidates until signaling reopens, up to Limit.
type QueuePolicy struct {
	Limit int
}

func (p QueuePolicy) OnSignalingDown(_ domain.ICECandidate, queued int) CandidateAction {
	if p.Limit > 0 && queued >= p.Limit {
		return DropCandidate
	}
	return QueueCandidate
}
