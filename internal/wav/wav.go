// Package wav converts between raw 16-bit little-endian PCM samples and the
// canonical RIFF/WAVE container produced by the pipeline.
//
// The container layout is the fixed 44-byte PCM header followed by the raw
// sample bytes. Audio players consume this format directly, so the encoder
// must be bit-exact for a given input.
package wav

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"fmt"
)

// HeaderSize is the byte length of the canonical PCM WAV header.
const HeaderSize = 44

// Header is the 44-byte RIFF/WAVE header for uncompressed mono PCM.
type Header struct {
	ChunkID       [4]byte // "RIFF"
	ChunkSize     uint32  // total size - 8
	Format        [4]byte // "WAVE"
	Subchunk1ID   [4]byte // "fmt "
	Subchunk1Size uint32  // 16 for PCM
	AudioFormat   uint16  // 1 for PCM
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32 // SampleRate * NumChannels * BitsPerSample / 8
	BlockAlign    uint16 // NumChannels * BitsPerSample / 8
	BitsPerSample uint16
	Subchunk2ID   [4]byte // "data"
	Subchunk2Size uint32  // byte length of sample data
}

// DecodeError reports a malformed base64 or PCM payload.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decoding pcm payload: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Encode wraps mono 16-bit PCM samples in the canonical WAV container.
// It is a pure function of its inputs: the same samples and sample rate
// always produce the same bytes, including for an empty sample sequence.
func Encode(samples []int16, sampleRate uint32) []byte {
	dataSize := uint32(len(samples) * 2)

	hdr := Header{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     36 + dataSize,
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   1,
		NumChannels:   1,
		SampleRate:    sampleRate,
		ByteRate:      sampleRate * 2,
		BlockAlign:    2,
		BitsPerSample: 16,
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: dataSize,
	}

	buf := bytes.NewBuffer(make([]byte, 0, HeaderSize+len(samples)*2))
	// Writing fixed-size values into a bytes.Buffer cannot fail.
	_ = binary.Write(buf, binary.LittleEndian, hdr)
	_ = binary.Write(buf, binary.LittleEndian, samples)

	return buf.Bytes()
}

// Decode parses a canonical container back into samples and sample rate.
func Decode(data []byte) ([]int16, uint32, error) {
	if len(data) < HeaderSize {
		return nil, 0, fmt.Errorf("wav data too short: need at least %d bytes, got %d", HeaderSize, len(data))
	}

	r := bytes.NewReader(data)
	var hdr Header
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return nil, 0, fmt.Errorf("reading wav header: %w", err)
	}

	if string(hdr.ChunkID[:]) != "RIFF" || string(hdr.Format[:]) != "WAVE" {
		return nil, 0, fmt.Errorf("not a RIFF/WAVE container")
	}
	if string(hdr.Subchunk1ID[:]) != "fmt " || string(hdr.Subchunk2ID[:]) != "data" {
		return nil, 0, fmt.Errorf("missing fmt or data chunk")
	}
	if hdr.AudioFormat != 1 {
		return nil, 0, fmt.Errorf("unsupported audio format %d: only PCM is supported", hdr.AudioFormat)
	}
	if hdr.BitsPerSample != 16 {
		return nil, 0, fmt.Errorf("unsupported bit depth %d: only 16-bit is supported", hdr.BitsPerSample)
	}
	if hdr.NumChannels != 1 {
		return nil, 0, fmt.Errorf("unsupported channel count %d: only mono is supported", hdr.NumChannels)
	}

	// The declared data size is untrusted; never allocate past the buffer.
	if int64(hdr.Subchunk2Size) > int64(len(data)-HeaderSize) {
		return nil, 0, fmt.Errorf("data chunk size %d exceeds remaining %d bytes", hdr.Subchunk2Size, len(data)-HeaderSize)
	}

	samples := make([]int16, hdr.Subchunk2Size/2)
	if err := binary.Read(r, binary.LittleEndian, samples); err != nil {
		return nil, 0, fmt.Errorf("reading wav samples: %w", err)
	}

	return samples, hdr.SampleRate, nil
}

// DecodeBase64PCM decodes a base64 payload of raw headerless 16-bit LE
// samples, as returned by a synthesis backend, into the sample sequence
// consumed by Encode.
func DecodeBase64PCM(text string) ([]int16, error) {
	raw, err := base64.StdEncoding.DecodeString(text)
	if err != nil {
		return nil, &DecodeError{Err: err}
	}
	if len(raw)%2 != 0 {
		return nil, &DecodeError{Err: fmt.Errorf("odd pcm payload length %d", len(raw))}
	}

	samples := make([]int16, len(raw)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(raw[i*2:]))
	}
	return samples, nil
}

// StripHeader returns the raw sample bytes of a canonical container,
// or the input unchanged when it does not start with a RIFF header.
// Synthesis backends that emit full WAV files are normalized through this.
func StripHeader(data []byte) []byte {
	if len(data) >= HeaderSize && bytes.Equal(data[0:4], []byte("RIFF")) {
		return data[HeaderSize:]
	}
	return data
}
