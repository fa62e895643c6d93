package audio

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func sinePCM(samples int, amplitude int16) []byte {
	pcm := make([]byte, samples*2)
	for i := 0; i < samples; i++ {
		// crude square wave, enough energy for RMS checks
		v := amplitude
		if i%2 == 0 {
			v = -amplitude
		}
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(v))
	}
	return pcm
}

func TestEncodeParseWAV(t *testing.T) {
	t.Parallel()

	pcm := sinePCM(320, 1000)
	wav := EncodeWAV(pcm, SampleRate, Channels)

	info, err := ParseWAV(wav)
	if err != nil {
		t.Fatalf("ParseWAV: %v", err)
	}
	if info.SampleRate != SampleRate {
		t.Errorf("SampleRate = %d, want %d", info.SampleRate, SampleRate)
	}
	if info.Channels != Channels {
		t.Errorf("Channels = %d, want %d", info.Channels, Channels)
	}
	got, err := PCM(wav)
	if err != nil {
		t.Fatalf("PCM: %v", err)
	}
	if !bytes.Equal(got, pcm) {
		t.Error("PCM payload does not round-trip")
	}
}

func TestParseWAVRejectsGarbage(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"short", []byte("RIF")},
		{"not riff", bytes.Repeat([]byte{0x42}, 64)},
		{"riff no data chunk", append([]byte("RIFF\x00\x00\x00\x00WAVE"), bytes.Repeat([]byte{0}, 8)...)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if _, err := ParseWAV(tc.data); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestRMS(t *testing.T) {
	t.Parallel()

	if got := RMS(nil); got != 0 {
		t.Errorf("RMS(nil) = %f, want 0", got)
	}
	silence := make([]byte, 640)
	if got := RMS(silence); got != 0 {
		t.Errorf("RMS(silence) = %f, want 0", got)
	}
	loud := sinePCM(320, 10000)
	if got := RMS(loud); got < 5000 {
		t.Errorf("RMS(loud) = %f, want >= 5000", got)
	}
}

func TestResampleMono16(t *testing.T) {
	t.Parallel()

	pcm := sinePCM(1600, 2000) // 100 ms at 16 kHz
	out := ResampleMono16(pcm, 16000, 48000)
	if len(out) != len(pcm)*3 {
		t.Errorf("len(out) = %d, want %d", len(out), len(pcm)*3)
	}
	if got := ResampleMono16(pcm, 16000, 16000); !bytes.Equal(got, pcm) {
		t.Error("same-rate resample should return input unchanged")
	}
}
