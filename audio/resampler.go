package audio

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// Resampler converts mono PCM audio between two fixed sample rates using
// linear interpolation. It is stateful: the fractional read position and the
// last sample of the previous buffer carry over, so consecutive buffers of a
// continuous stream resample without seams.
//
// One Resampler serves one direction of one stream. It is not safe for
// concurrent use; the Pipeline serializes access.
type Resampler struct {
	inputRate  uint32
	outputRate uint32

	lastSample int16
	position   float64
}

// NewResampler creates a mono resampler between the given rates.
func NewResampler(inputRate, outputRate uint32) (*Resampler, error) {
	if inputRate == 0 || outputRate == 0 {
		return nil, fmt.Errorf("invalid sample rates: input=%d, output=%d", inputRate, outputRate)
	}

	logrus.WithFields(logrus.Fields{
		"function":    "NewResampler",
		"input_rate":  inputRate,
		"output_rate": outputRate,
	}).Debug("Creating audio resampler")

	return &Resampler{
		inputRate:  inputRate,
		outputRate: outputRate,
	}, nil
}

// NewDownsampler creates the capture-path resampler, 48 kHz down to the
// 16 kHz filter rate.
func NewDownsampler() *Resampler {
	r, _ := NewResampler(48000, 16000)
	return r
}

// NewUpsampler creates the return-path resampler, 16 kHz back up to 48 kHz.
func NewUpsampler() *Resampler {
	r, _ := NewResampler(16000, 48000)
	return r
}

// minInputSamples is the smallest buffer Process accepts: one output sample's
// worth of input.
func (r *Resampler) minInputSamples() int {
	min := int(r.inputRate / r.outputRate)
	if min < 1 {
		min = 1
	}
	return min
}

// Process resamples one mono buffer and returns the converted samples.
//
// Returns an error, producing no output, when the input is empty or shorter
// than one output sample's worth of input. The output length for a buffer of
// n samples is round(n * outputRate / inputRate), which makes integer-ratio
// conversions exact: 4800 samples at 3:1 down yield 1600, and back up 4800.
func (r *Resampler) Process(input []int16) ([]int16, error) {
	if len(input) < r.minInputSamples() {
		return nil, fmt.Errorf("input too short: %d samples, need at least %d", len(input), r.minInputSamples())
	}

	ratio := float64(r.inputRate) / float64(r.outputRate)
	outputFrames := int(float64(len(input))/ratio + 0.5)
	output := make([]int16, 0, outputFrames)

	for frame := 0; frame < outputFrames; frame++ {
		idx := int(r.position)
		frac := r.position - float64(idx)
		output = append(output, r.interpolate(input, idx, frac))
		r.position += ratio
	}

	r.position -= float64(len(input))
	r.lastSample = input[len(input)-1]

	return output, nil
}

// interpolate reads the sample at a fractional position, falling back to the
// previous buffer's final sample below the lower boundary and clamping at the
// upper one.
func (r *Resampler) interpolate(input []int16, idx int, frac float64) int16 {
	if idx < 0 {
		return r.lastSample
	}
	if idx >= len(input)-1 {
		return input[len(input)-1]
	}
	a := float64(input[idx])
	b := float64(input[idx+1])
	return int16(a*(1.0-frac) + b*frac)
}

// Reset clears the carry-over state, for stream discontinuities.
func (r *Resampler) Reset() {
	r.position = 0.0
	r.lastSample = 0
}
