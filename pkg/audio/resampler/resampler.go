package resampler

import (
	"fmt"
	"math"

	resampling "github.com/tphakala/go-audio-resampling"

	"github.com/haivivi/studio/pkg/audio/pcm"
)

// Resample converts buf to the target sample rate. Each channel is processed
// independently and the output keeps the input duration: its length is
// round(len * sampleRate / buf.SampleRate). When the rates already match,
// buf is returned unchanged.
func Resample(buf *pcm.Buffer, sampleRate int) (*pcm.Buffer, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("resampler: invalid sample rate %d", sampleRate)
	}
	if buf.SampleRate == sampleRate || buf.Len() == 0 {
		return &pcm.Buffer{SampleRate: sampleRate, Data: buf.Data}, nil
	}

	want := int(math.Round(float64(buf.Len()) * float64(sampleRate) / float64(buf.SampleRate)))
	out := &pcm.Buffer{
		SampleRate: sampleRate,
		Data:       make([][]float32, buf.Channels()),
	}
	for ch, samples := range buf.Data {
		r, err := resampling.New(&resampling.Config{
			InputRate:  float64(buf.SampleRate),
			OutputRate: float64(sampleRate),
			Channels:   1,
			Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create resampler: %w", err)
		}

		input := make([]float64, len(samples))
		for i, s := range samples {
			input[i] = float64(s)
		}
		output, err := r.Process(input)
		if err != nil {
			return nil, fmt.Errorf("resample error: %w", err)
		}
		tail, err := r.Flush()
		if err != nil {
			return nil, fmt.Errorf("resample flush: %w", err)
		}
		output = append(output, tail...)

		// The filter tail may be a few samples short or long; zero-pad or
		// cut so every channel matches the input duration.
		converted := make([]float32, want)
		for i := range min(want, len(output)) {
			converted[i] = float32(output[i])
		}
		out.Data[ch] = converted
	}
	return out, nil
}
