// Package audio provides audio processing utilities.
//
// This package serves as an umbrella for audio-related sub-packages:
//
//   - pcm: linear PCM formats and sample buffers
//   - wav: RIFF/WAVE container encoding for PCM buffers
//   - resampler: sample rate conversion for PCM buffers
//
// A typical speech synthesis result flows through all three:
//
//	buf, err := pcm.L16Mono24K.Decode(raw)
//	buf, err = resampler.Resample(buf, 16000)
//	data := wav.Encode(buf)
package audio
