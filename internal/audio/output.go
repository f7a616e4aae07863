package audio

import (
	"fmt"
	"time"

	"github.com/ebitengine/oto/v3"
)

// Source produces the next slice of interleaved float32 samples on demand;
// the looper's Render method satisfies it.
type Source interface {
	Render(out []float32)
}

// Output plays a Source through the system audio device
type Output struct {
	ctx    *oto.Context
	player *oto.Player
}

// NewOutput opens the audio device and binds it to the source. The source
// is pulled from oto's own playback goroutine, so callers only Start/Close.
func NewOutput(sampleRate, channels int, src Source) (*Output, error) {
	op := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: channels,
		Format:       oto.FormatSignedInt16LE,
	}
	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("cannot create audio context: %w", err)
	}
	select {
	case <-ready:
	case <-time.After(5 * time.Second):
		return nil, fmt.Errorf("audio context not ready")
	}
	player := ctx.NewPlayer(&sourceReader{src: src})
	return &Output{ctx: ctx, player: player}, nil
}

// Start begins pulling audio from the source
func (o *Output) Start() {
	o.player.Play()
}

// Close stops playback and releases the device
func (o *Output) Close() error {
	if err := o.player.Close(); err != nil {
		return fmt.Errorf("cannot close audio player: %w", err)
	}
	return nil
}

// sourceReader adapts a float32 Source to the io.Reader oto pulls from,
// reusing its scratch buffer between reads.
type sourceReader struct {
	src     Source
	scratch []float32
}

func (r *sourceReader) Read(p []byte) (int, error) {
	samples := len(p) / 2
	if samples == 0 {
		return 0, nil
	}
	if cap(r.scratch) < samples {
		r.scratch = make([]float32, samples)
	}
	buf := r.scratch[:samples]
	r.src.Render(buf)
	FloatBufferTo16BitLE(buf, p)
	return samples * 2, nil
}

// FloatBufferTo16BitLE converts float32 samples in -1..1 to signed 16-bit
// little-endian bytes. out must hold 2 bytes per sample. Values outside the
// unit range are hard-clipped.
func FloatBufferTo16BitLE(in []float32, out []byte) {
	for i, s := range in {
		if s > 1 {
			s = 1
		}
		if s < -1 {
			s = -1
		}
		v := int16(s * 32767)
		out[2*i] = byte(v)
		out[2*i+1] = byte(v >> 8)
	}
}
