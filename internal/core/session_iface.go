package core

import (
	"context"

	"github.com/dkeye/Teleop/internal/domain"
)

// TelemetrySender accepts frames without blocking. Frames that cannot be
// delivered are dropped.
type TelemetrySender interface {
	Send(domain.TelemetryMessage) error
}

// TelemetryTransport is the pose stream to the robot. One per media session.
type TelemetryTransport interface {
	TelemetrySender
	// Connect dials asynchronously and announces the role before any frame.
	Connect(ctx context.Context, url string)
	IsOpen() bool
	Close() error
}

type TelemetryFactory func() TelemetryTransport
