package wav

import (
	"bytes"
	"fmt"

	"github.com/go-audio/audio"
	gowav "github.com/go-audio/wav"
)

// Info describes a probed WAV buffer.
type Info struct {
	SampleRate int
	Channels   int
	BitDepth   int
	Samples    int
}

// Duration returns the audio length in seconds.
func (i Info) Duration() float64 {
	if i.SampleRate == 0 || i.Channels == 0 {
		return 0
	}
	return float64(i.Samples) / float64(i.SampleRate*i.Channels)
}

// Probe inspects a WAV buffer without assuming the canonical fixed layout.
// The conditioning stage uses it to verify the engine's output format before
// the audio is handed to recognition.
func Probe(data []byte) (Info, error) {
	d := gowav.NewDecoder(bytes.NewReader(data))
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return Info{}, fmt.Errorf("probing wav buffer: %w", err)
	}
	if buf.Format == nil {
		return Info{}, fmt.Errorf("probing wav buffer: no pcm data")
	}
	return infoFromBuffer(buf, int(d.BitDepth)), nil
}

func infoFromBuffer(buf *audio.IntBuffer, bitDepth int) Info {
	return Info{
		SampleRate: buf.Format.SampleRate,
		Channels:   buf.Format.NumChannels,
		BitDepth:   bitDepth,
		Samples:    len(buf.Data),
	}
}
