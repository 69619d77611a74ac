package pcm

import (
	"encoding/binary"
	"fmt"
	"time"
)

const (
	// L16Mono16K represents audio/L16; rate=16000; channels=1
	L16Mono16K Format = iota
	// L16Mono24K represents audio/L16; rate=24000; channels=1
	L16Mono24K
	// L16Mono48K represents audio/L16; rate=48000; channels=1
	L16Mono48K
)

// Format represents an audio format configuration.
type Format int

// SampleRate returns the sample rate in Hz for this format.
func (f Format) SampleRate() int {
	switch f {
	case L16Mono16K:
		return 16000
	case L16Mono24K:
		return 24000
	case L16Mono48K:
		return 48000
	}
	panic("pcm: invalid audio type")
}

// Channels returns the number of audio channels for this format.
func (f Format) Channels() int {
	switch f {
	case L16Mono16K, L16Mono24K, L16Mono48K:
		return 1
	}
	panic("pcm: invalid audio type")
}

// Depth returns the bit depth for this format.
func (f Format) Depth() int {
	switch f {
	case L16Mono16K, L16Mono24K, L16Mono48K:
		return 16
	}
	panic("pcm: invalid audio type")
}

// Samples returns the number of samples per channel in the given number of bytes.
func (f Format) Samples(bytes int64) int64 {
	return bytes * 8 / int64(f.Channels()) / int64(f.Depth())
}

// Duration returns the duration of the given number of bytes.
func (f Format) Duration(bytes int64) time.Duration {
	return time.Duration(f.Samples(bytes)) * time.Second / time.Duration(f.SampleRate())
}

// BytesRate returns the byte rate of the audio data.
func (f Format) BytesRate() int {
	return f.SampleRate() * f.Channels() * f.Depth() / 8
}

// String returns a human-readable string representation of the format.
func (f Format) String() string {
	switch f {
	case L16Mono16K:
		return "audio/L16; rate=16000; channels=1"
	case L16Mono24K:
		return "audio/L16; rate=24000; channels=1"
	case L16Mono48K:
		return "audio/L16; rate=48000; channels=1"
	}
	panic("pcm: invalid audio type")
}

// Decode converts interleaved 16-bit little-endian samples in this format
// into a planar float buffer. A trailing partial frame is dropped.
func (f Format) Decode(data []byte) (*Buffer, error) {
	return DecodeL16(data, f.SampleRate(), f.Channels())
}

// FormatOf returns the Format matching the given rate and channel count.
func FormatOf(sampleRate, channels int) (Format, error) {
	if channels == 1 {
		switch sampleRate {
		case 16000:
			return L16Mono16K, nil
		case 24000:
			return L16Mono24K, nil
		case 48000:
			return L16Mono48K, nil
		}
	}
	return 0, fmt.Errorf("pcm: unsupported format rate=%d channels=%d", sampleRate, channels)
}

// Buffer holds planar PCM samples normalized to [-1, 1].
type Buffer struct {
	SampleRate int
	Data       [][]float32
}

// NewBuffer allocates a silent buffer with the given channel count and
// per-channel length.
func NewBuffer(sampleRate, channels, length int) *Buffer {
	data := make([][]float32, channels)
	for i := range data {
		data[i] = make([]float32, length)
	}
	return &Buffer{SampleRate: sampleRate, Data: data}
}

// Channels returns the number of channels in the buffer.
func (b *Buffer) Channels() int {
	return len(b.Data)
}

// Len returns the number of samples per channel.
func (b *Buffer) Len() int {
	if len(b.Data) == 0 {
		return 0
	}
	return len(b.Data[0])
}

// Duration returns the playback duration of the buffer.
func (b *Buffer) Duration() time.Duration {
	if b.SampleRate == 0 {
		return 0
	}
	return time.Duration(b.Len()) * time.Second / time.Duration(b.SampleRate)
}

// DecodeL16 converts interleaved 16-bit little-endian samples into a planar
// float buffer. Each sample is divided by 32768.
func DecodeL16(data []byte, sampleRate, channels int) (*Buffer, error) {
	if channels <= 0 {
		return nil, fmt.Errorf("pcm: invalid channel count %d", channels)
	}
	frameSize := 2 * channels
	frames := len(data) / frameSize
	buf := NewBuffer(sampleRate, channels, frames)
	for i := range frames {
		for ch := range channels {
			off := i*frameSize + ch*2
			s := int16(binary.LittleEndian.Uint16(data[off:]))
			buf.Data[ch][i] = float32(s) / 32768
		}
	}
	return buf, nil
}
