// Package pcm provides types and utilities for working with PCM (Pulse Code Modulation) audio data.
//
// The package defines audio formats for common configurations (16-bit mono at various sample rates)
// and a planar float sample buffer used as the interchange type between decoders,
// resamplers and container encoders.
//
// Key types:
//   - Format: Represents audio format (sample rate, channels, bit depth)
//   - Buffer: Planar float32 samples normalized to [-1, 1]
//
// Example usage:
//
//	// Raw audio returned by a speech model is 16-bit little-endian mono at 24kHz
//	buf, err := pcm.L16Mono24K.Decode(raw)
//
//	// Duration of the decoded audio
//	d := buf.Duration()
package pcm
