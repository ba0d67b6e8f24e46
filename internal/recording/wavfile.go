package recording

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WAVInput streams a 16-bit PCM WAV file as audio frames, optionally paced
// at the file's real-time rate so it behaves like a live microphone.
type WAVInput struct {
	path       string
	sampleRate int
	channels   int
	frameSize  int // samples per frame
	realtime   bool
}

// OpenWAV validates the file header. frameSamples <= 0 selects 100ms frames.
func OpenWAV(path string, frameSamples int, realtime bool) (*WAVInput, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open wav: %w", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("open wav %s: not a valid wav file", path)
	}
	if dec.BitDepth != 16 {
		return nil, fmt.Errorf("open wav %s: unsupported bit depth %d (want 16)", path, dec.BitDepth)
	}

	in := &WAVInput{
		path:       path,
		sampleRate: int(dec.SampleRate),
		channels:   int(dec.NumChans),
		frameSize:  frameSamples,
		realtime:   realtime,
	}
	if in.frameSize <= 0 {
		in.frameSize = in.sampleRate * in.channels / 10
	}
	return in, nil
}

func (in *WAVInput) SampleRate() int { return in.sampleRate }
func (in *WAVInput) Channels() int   { return in.channels }

// Start reads the file in a goroutine. The frame channel is closed at end of file.
func (in *WAVInput) Start(ctx context.Context) (<-chan AudioFrame, <-chan error, error) {
	f, err := os.Open(in.path)
	if err != nil {
		return nil, nil, fmt.Errorf("open wav: %w", err)
	}

	frameCh := make(chan AudioFrame, 8)
	errCh := make(chan error, 1)

	go func() {
		defer close(errCh)
		defer close(frameCh)
		defer f.Close()

		if err := in.stream(ctx, wav.NewDecoder(f), frameCh); err != nil {
			errCh <- err
		}
	}()

	return frameCh, errCh, nil
}

// Stop is a no-op; cancel the Start context to end streaming early.
func (in *WAVInput) Stop() error { return nil }

func (in *WAVInput) stream(ctx context.Context, dec *wav.Decoder, frameCh chan<- AudioFrame) error {
	buf := &audio.IntBuffer{
		Format: &audio.Format{NumChannels: in.channels, SampleRate: in.sampleRate},
		Data:   make([]int, in.frameSize),
	}
	frameDur := time.Duration(float64(in.frameSize) / float64(in.sampleRate*in.channels) * float64(time.Second))

	var ticker *time.Ticker
	if in.realtime {
		ticker = time.NewTicker(frameDur)
		defer ticker.Stop()
	}

	for {
		n, err := dec.PCMBuffer(buf)
		if err != nil {
			return fmt.Errorf("decode wav: %w", err)
		}
		if n == 0 {
			return nil
		}

		data := make([]byte, n*2)
		for i := 0; i < n; i++ {
			binary.LittleEndian.PutUint16(data[i*2:], uint16(int16(buf.Data[i])))
		}

		if ticker != nil {
			select {
			case <-ticker.C:
			case <-ctx.Done():
				return nil
			}
		}

		select {
		case frameCh <- AudioFrame{Data: data, Timestamp: time.Now()}:
		case <-ctx.Done():
			return nil
		}
	}
}
