package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var ErrMalformedEnvelope = errors.New("malformed signaling envelope")

// HelloMessage is sent bare, as a JSON string, to request a fresh offer.
const HelloMessage = "HELLO"

const (
	SDPTypeOffer  = "offer"
	SDPTypeAnswer = "answer"
)

type EnvelopeKind int

const (
	KindHello EnvelopeKind = iota + 1
	KindOffer
	KindAnswer
	KindCandidate
)

func (k EnvelopeKind) String() string {
	switch k {
	case KindHello:
		return "hello"
	case KindOffer:
		return "offer"
	case KindAnswer:
		return "answer"
	case KindCandidate:
		return "candidate"
	}
	return "unknown"
}

type SessionDescription struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

type ICECandidate struct {
	Candidate     string `json:"candidate"`
	SDPMLineIndex uint16 `json:"sdpMLineIndex"`
}

// Envelope is one signaling message. Exactly one of SDP and ICE is set for
// the offer, answer and candidate kinds; neither is set for hello.
type Envelope struct {
	Kind EnvelopeKind
	SDP  *SessionDescription
	ICE  *ICECandidate
}

func Hello() Envelope { return Envelope{Kind: KindHello} }

func Offer(sdp string) Envelope {
	return Envelope{Kind: KindOffer, SDP: &SessionDescription{Type: SDPTypeOffer, SDP: sdp}}
}

func Answer(sdp string) Envelope {
	return Envelope{Kind: KindAnswer, SDP: &SessionDescription{Type: SDPTypeAnswer, SDP: sdp}}
}

func Candidate(c ICECandidate) Envelope {
	return Envelope{Kind: KindCandidate, ICE: &c}
}

type sdpWire struct {
	SDP *SessionDescription `json:"sdp"`
}

type iceWire struct {
	ICE *ICECandidate `json:"ice"`
}

func (e Envelope) MarshalJSON() ([]byte, error) {
	switch e.Kind {
	case KindHello:
		return json.Marshal(HelloMessage)
	case KindOffer, KindAnswer:
		if e.SDP == nil {
			return nil, fmt.Errorf("%w: %s without sdp", ErrMalformedEnvelope, e.Kind)
		}
		return json.Marshal(sdpWire{SDP: e.SDP})
	case KindCandidate:
		if e.ICE == nil {
			return nil, fmt.Errorf("%w: candidate without ice", ErrMalformedEnvelope)
		}
		return json.Marshal(iceWire{ICE: e.ICE})
	}
	return nil, fmt.Errorf("%w: kind %d", ErrMalformedEnvelope, int(e.Kind))
}

// UnmarshalJSON accepts the bare "HELLO" string as well as {"type":"HELLO"}.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
		}
		if s != HelloMessage {
			return fmt.Errorf("%w: unexpected string %q", ErrMalformedEnvelope, s)
		}
		*e = Hello()
		return nil
	}

	var wire struct {
		Type string              `json:"type"`
		SDP  *SessionDescription `json:"sdp"`
		ICE  *ICECandidate       `json:"ice"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}

	switch {
	case wire.Type == HelloMessage:
		*e = Hello()
	case wire.SDP != nil:
		switch wire.SDP.Type {
		case SDPTypeOffer:
			*e = Envelope{Kind: KindOffer, SDP: wire.SDP}
		case SDPTypeAnswer:
			*e = Envelope{Kind: KindAnswer, SDP: wire.SDP}
		default:
			return fmt.Errorf("%w: sdp type %q", ErrMalformedEnvelope, wire.SDP.Type)
		}
	case wire.ICE != nil:
		*e = Envelope{Kind: KindCandidate, ICE: wire.ICE}
	default:
		return fmt.Errorf("%w: no known field", ErrMalformedEnvelope)
	}
	return nil
}
