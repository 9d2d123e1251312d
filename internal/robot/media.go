package robot

import (
	"context"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
)

// frame is a fixed VP8 key frame header padded to a plausible size. The
// operator relays RTP without decoding, so content does not matter.
var frame = func() []byte {
	b := make([]byte, 1200)
	copy(b, []byte{0x10, 0x02, 0x00, 0x9d, 0x01, 0x2a, 0x40, 0x01, 0xf0, 0x00})
	return b
}()

func (r *Robot) writeSamples(ctx context.Context, tracks []*webrtc.TrackLocalStaticSample) {
	period := time.Second / time.Duration(r.opts.FPS)
	t := time.NewTicker(period)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			for _, track := range tracks {
				if err := track.WriteSample(media.Sample{Data: frame, Duration: period}); err != nil {
					r.logger.Debug().Err(err).Str("track", track.ID()).Msg("write sample")
				}
			}
		}
	}
}
