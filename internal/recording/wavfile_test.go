package recording

import (
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

func writeTestWAV(t *testing.T, samples []int, rate, bitDepth int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	enc := wav.NewEncoder(f, rate, bitDepth, 1, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: rate},
		Data:           samples,
		SourceBitDepth: bitDepth,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("close encoder: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close file: %v", err)
	}
	return path
}

func TestWAVInputStreamsPCM(t *testing.T) {
	samples := make([]int, 2500)
	for i := range samples {
		samples[i] = i - 1250
	}
	path := writeTestWAV(t, samples, 16000, 16)

	in, err := OpenWAV(path, 1000, false)
	if err != nil {
		t.Fatalf("OpenWAV() error: %v", err)
	}
	if in.SampleRate() != 16000 || in.Channels() != 1 {
		t.Errorf("format = %d Hz/%d ch, want 16000/1", in.SampleRate(), in.Channels())
	}

	frames, errs, err := in.Start(context.Background())
	if err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	var got []int
	count := 0
	for f := range frames {
		count++
		for i := 0; i+1 < len(f.Data); i += 2 {
			got = append(got, int(int16(binary.LittleEndian.Uint16(f.Data[i:]))))
		}
	}
	for err := range errs {
		t.Fatalf("stream error: %v", err)
	}

	if count != 3 {
		t.Errorf("frames = %d, want 3", count)
	}
	if len(got) != len(samples) {
		t.Fatalf("decoded %d samples, want %d", len(got), len(samples))
	}
	for i := range samples {
		if got[i] != samples[i] {
			t.Fatalf("sample %d = %d, want %d", i, got[i], samples[i])
		}
	}
}

func TestWAVInputCancel(t *testing.T) {
	path := writeTestWAV(t, make([]int, 16000), 16000, 16)
	in, err := OpenWAV(path, 160, true)
	if err != nil {
		t.Fatalf("OpenWAV() error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	frames, _, err := in.Start(ctx)
	if err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	<-frames
	cancel()
	n := 0
	for range frames {
		n++
	}
	if n > 99 {
		t.Errorf("received %d frames after cancel, expected early stop", n)
	}
}

func TestOpenWAVRejects(t *testing.T) {
	dir := t.TempDir()
	bogus := filepath.Join(dir, "bogus.wav")
	if err := os.WriteFile(bogus, []byte("not a wav file at all"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		path string
	}{
		{"missing", filepath.Join(dir, "missing.wav")},
		{"invalid", bogus},
		{"8-bit", writeTestWAV(t, []int{1, 2, 3, 4}, 8000, 8)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := OpenWAV(tt.path, 0, false); err == nil {
				t.Errorf("OpenWAV(%s) should fail", tt.name)
			}
		})
	}
}
