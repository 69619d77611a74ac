// Package wav encodes PCM sample buffers into RIFF/WAVE containers.
//
// Only the canonical 44-byte header layout with 16-bit integer PCM is
// produced. Float samples are clamped to [-1, 1] and scaled with 32767 for
// positive values and 32768 for negative values so that -1.0 maps to the
// minimum int16 without overflow.
package wav

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/haivivi/studio/pkg/audio/pcm"
)

const (
	// HeaderSize is the size of the canonical RIFF/WAVE header in bytes.
	HeaderSize = 44

	// MIMEType is the content type of encoded containers.
	MIMEType = "audio/wav"

	formatPCM     = 1
	bitsPerSample = 16
)

// Header describes the fields of a canonical WAVE header.
type Header struct {
	AudioFormat   uint16
	Channels      uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	DataSize      uint32
}

// Encode builds a playable WAVE container from buf. Every channel is read up
// to the length of the first channel.
func Encode(buf *pcm.Buffer) []byte {
	return EncodeSamples(buf.Data, buf.SampleRate)
}

// EncodeSamples builds a WAVE container from planar float samples.
func EncodeSamples(channels [][]float32, sampleRate int) []byte {
	numCh := len(channels)
	length := 0
	if numCh > 0 {
		length = len(channels[0])
	}
	dataSize := length * numCh * 2
	out := make([]byte, HeaderSize+dataSize)

	copy(out[0:], "RIFF")
	binary.LittleEndian.PutUint32(out[4:], uint32(HeaderSize+dataSize-8))
	copy(out[8:], "WAVE")
	copy(out[12:], "fmt ")
	binary.LittleEndian.PutUint32(out[16:], 16)
	binary.LittleEndian.PutUint16(out[20:], formatPCM)
	binary.LittleEndian.PutUint16(out[22:], uint16(numCh))
	binary.LittleEndian.PutUint32(out[24:], uint32(sampleRate))
	binary.LittleEndian.PutUint32(out[28:], uint32(sampleRate*numCh*2))
	binary.LittleEndian.PutUint16(out[32:], uint16(numCh*2))
	binary.LittleEndian.PutUint16(out[34:], bitsPerSample)
	copy(out[36:], "data")
	binary.LittleEndian.PutUint32(out[40:], uint32(dataSize))

	pos := HeaderSize
	for i := range length {
		for ch := range numCh {
			var s float32
			if i < len(channels[ch]) {
				s = channels[ch][i]
			}
			binary.LittleEndian.PutUint16(out[pos:], uint16(Sample16(s)))
			pos += 2
		}
	}
	return out
}

// Sample16 converts one float sample to a saturated 16-bit integer.
// NaN encodes as silence.
func Sample16(s float32) int16 {
	switch {
	case s != s:
		return 0
	case s > 1:
		s = 1
	case s < -1:
		s = -1
	}
	if s < 0 {
		return int16(s * 32768)
	}
	return int16(s * 32767)
}

// ReadHeader parses the canonical 44-byte header at the start of data.
func ReadHeader(data []byte) (*Header, error) {
	if len(data) < HeaderSize {
		return nil, errors.New("wav: short header")
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, errors.New("wav: not a RIFF/WAVE container")
	}
	if string(data[12:16]) != "fmt " || string(data[36:40]) != "data" {
		return nil, fmt.Errorf("wav: unexpected chunk layout")
	}
	return &Header{
		AudioFormat:   binary.LittleEndian.Uint16(data[20:]),
		Channels:      binary.LittleEndian.Uint16(data[22:]),
		SampleRate:    binary.LittleEndian.Uint32(data[24:]),
		ByteRate:      binary.LittleEndian.Uint32(data[28:]),
		BlockAlign:    binary.LittleEndian.Uint16(data[32:]),
		BitsPerSample: binary.LittleEndian.Uint16(data[34:]),
		DataSize:      binary.LittleEndian.Uint32(data[40:]),
	}, nil
}
