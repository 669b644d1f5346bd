package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrInvalidWAV is wrapped by every DecodeWAV failure so callers can classify
// malformed uploads with errors.Is without matching message text.
var ErrInvalidWAV = errors.New("audio: invalid WAV data")

// EncodeWAV wraps the clip's PCM samples in a standard 44-byte RIFF/WAVE
// container. No external dependencies are required.
func EncodeWAV(c Clip) []byte {
	const bps = 8 * bytesPerSample
	byteRate := c.SampleRate * c.Channels * bytesPerSample
	blockAlign := c.Channels * bytesPerSample
	dataSize := len(c.Data)

	buf := make([]byte, 44+dataSize)

	// RIFF chunk descriptor
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataSize)) // file size − 8
	copy(buf[8:12], "WAVE")

	// fmt sub-chunk
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)                 // sub-chunk size (PCM)
	binary.LittleEndian.PutUint16(buf[20:22], 1)                  // audio format: PCM
	binary.LittleEndian.PutUint16(buf[22:24], uint16(c.Channels)) // num channels
	binary.LittleEndian.PutUint32(buf[24:28], uint32(c.SampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(buf[34:36], uint16(bps))

	// data sub-chunk
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))
	copy(buf[44:], c.Data)

	return buf
}

// DecodeWAV scans the RIFF/WAVE container in wav and returns its PCM payload
// and format. Walking the chunk list is more robust than hardcoding a fixed
// 44-byte offset because the fmt chunk size may vary and encoders are free to
// insert LIST or fact chunks before the data.
//
// Only 16-bit PCM with one or two channels is accepted; anything else returns
// an error wrapping ErrInvalidWAV.
func DecodeWAV(wav []byte) (Clip, error) {
	if len(wav) < 12 {
		return Clip{}, fmt.Errorf("%w: too short to be a RIFF file", ErrInvalidWAV)
	}
	if string(wav[0:4]) != "RIFF" {
		return Clip{}, fmt.Errorf("%w: missing RIFF header", ErrInvalidWAV)
	}
	if string(wav[8:12]) != "WAVE" {
		return Clip{}, fmt.Errorf("%w: missing WAVE identifier", ErrInvalidWAV)
	}

	var clip Clip
	foundFmt := false

	// Walk RIFF chunks starting immediately after the 12-byte RIFF/WAVE header.
	offset := 12
	for offset+8 <= len(wav) {
		chunkID := string(wav[offset : offset+4])
		chunkSize := int(binary.LittleEndian.Uint32(wav[offset+4 : offset+8]))

		switch chunkID {
		case "fmt ":
			if chunkSize < 16 || offset+8+16 > len(wav) {
				return Clip{}, fmt.Errorf("%w: truncated fmt chunk", ErrInvalidWAV)
			}
			fmtData := wav[offset+8:]
			format := binary.LittleEndian.Uint16(fmtData[0:2])
			clip.Channels = int(binary.LittleEndian.Uint16(fmtData[2:4]))
			clip.SampleRate = int(binary.LittleEndian.Uint32(fmtData[4:8]))
			bits := int(binary.LittleEndian.Uint16(fmtData[14:16]))
			if format != 1 || bits != 16 {
				return Clip{}, fmt.Errorf("%w: only 16-bit PCM is supported (format %d, %d bits)", ErrInvalidWAV, format, bits)
			}
			if clip.Channels != 1 && clip.Channels != 2 {
				return Clip{}, fmt.Errorf("%w: unsupported channel count %d", ErrInvalidWAV, clip.Channels)
			}
			if clip.SampleRate <= 0 {
				return Clip{}, fmt.Errorf("%w: invalid sample rate %d", ErrInvalidWAV, clip.SampleRate)
			}
			foundFmt = true
		case "data":
			if !foundFmt {
				return Clip{}, fmt.Errorf("%w: data chunk precedes fmt chunk", ErrInvalidWAV)
			}
			end := offset + 8 + chunkSize
			if end > len(wav) {
				// Some encoders write a data size larger than the file;
				// accept whatever bytes are actually present.
				end = len(wav)
			}
			clip.Data = wav[offset+8 : end]
			return clip, nil
		}

		// Advance past this chunk (chunks are word-aligned: pad by 1 if odd size).
		offset += 8 + chunkSize
		if chunkSize%2 != 0 {
			offset++
		}
	}
	return Clip{}, fmt.Errorf("%w: missing data chunk", ErrInvalidWAV)
}
