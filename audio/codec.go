package audio

import (
	"fmt"

	"github.com/pion/opus"
	"github.com/sirupsen/logrus"
)

// maxDecodedFrame bounds the decode buffer: one 40 ms fullband frame of
// int16 samples, as raw bytes.
const maxDecodedFrame = 1920 * 2

// Decoder decodes Opus payloads to mono PCM. The underlying decoder is
// stateful (packet-loss concealment, bandwidth tracking), so one Decoder
// serves exactly one stream; group calls keep one per participant.
type Decoder struct {
	dec opus.Decoder
	buf []byte
}

// NewDecoder creates a decoder for one Opus stream.
func NewDecoder() *Decoder {
	return &Decoder{
		dec: opus.NewDecoder(),
		buf: make([]byte, maxDecodedFrame),
	}
}

// Decode decodes one Opus payload and returns the PCM samples and the
// stream's sample rate as signaled by the packet's bandwidth.
func (d *Decoder) Decode(data []byte) ([]int16, uint32, error) {
	if len(data) == 0 {
		return nil, 0, fmt.Errorf("empty opus payload")
	}

	bandwidth, isStereo, err := d.dec.Decode(data, d.buf)
	if err != nil {
		return nil, 0, fmt.Errorf("opus decode failed: %w", err)
	}

	sampleCount := len(d.buf) / 2
	if isStereo {
		sampleCount /= 2
		logrus.WithFields(logrus.Fields{
			"function": "Decode",
		}).Debug("Stereo opus payload, downmix handled by sink")
	}

	pcm := make([]int16, sampleCount)
	for i := 0; i < sampleCount; i++ {
		pcm[i] = int16(d.buf[i*2]) | int16(d.buf[i*2+1])<<8
	}

	return pcm, uint32(bandwidth.SampleRate()), nil
}
