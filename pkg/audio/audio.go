// Package audio provides the PCM plumbing shared by the speech engines:
// RIFF/WAVE encoding and decoding, linear-interpolation resampling, stereo
// downmix, and the int16-to-float32 conversion recognition models consume.
//
// All PCM buffers hold 16-bit signed little-endian samples, interleaved when
// the channel count is greater than one.
package audio

import "time"

// bytesPerSample is fixed at 2 for the 16-bit PCM this package handles.
const bytesPerSample = 2

// Clip is a decoded run of PCM audio together with its format.
type Clip struct {
	Data       []byte // 16-bit signed little-endian samples
	SampleRate int    // samples per second per channel
	Channels   int    // 1 = mono, 2 = stereo
}

// Duration returns the playback length of the clip. Returns 0 for clips with
// a non-positive sample rate or channel count.
func (c Clip) Duration() time.Duration {
	if c.SampleRate <= 0 || c.Channels <= 0 {
		return 0
	}
	frames := len(c.Data) / bytesPerSample / c.Channels
	return time.Duration(frames) * time.Second / time.Duration(c.SampleRate)
}
