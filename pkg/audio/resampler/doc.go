// Package resampler provides sample rate conversion for pcm.Buffer values
// using a pure Go polyphase resampler (no CGO dependencies).
//
// Example usage:
//
//	out, err := resampler.Resample(buf, 16000)
//	if err != nil {
//	    return err
//	}
//	data := wav.Encode(out)
package resampler
