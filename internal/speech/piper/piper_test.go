package piper

import (
	"context"
	"encoding/base64"
	"net"
	"testing"

	"github.com/nadzzz/crosstalk/internal/config"
)

// serveOnce accepts a single Wyoming connection and replies with the given
// event sequence.
func serveOnce(t *testing.T, respond func(t *testing.T, conn net.Conn)) string {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { lis.Close() })

	go func() {
		conn, err := lis.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		respond(t, conn)
	}()

	return lis.Addr().String()
}

func TestSynthesize(t *testing.T) {
	pcm := []byte{100, 0, 156, 255} // two int16 samples: 100, -100

	addr := serveOnce(t, func(t *testing.T, conn net.Conn) {
		evt, _, err := readEvent(conn)
		if err != nil {
			t.Errorf("reading synthesize event: %v", err)
			return
		}
		if evt.Type != "synthesize" {
			t.Errorf("event type = %q, want synthesize", evt.Type)
		}
		if text, _ := evt.Data["text"].(string); text != "hola" {
			t.Errorf("text = %q, want hola", text)
		}

		_ = writeEvent(conn, wyomingEvent{Type: "audio-start", Data: map[string]any{
			"rate": float64(24000), "width": float64(2), "channels": float64(1),
		}}, nil)
		_ = writeEvent(conn, wyomingEvent{Type: "audio-chunk"}, pcm)
		_ = writeEvent(conn, wyomingEvent{Type: "audio-stop"}, nil)
	})

	s := New(config.PiperConfig{Endpoint: addr}, "es-ES")

	res, err := s.Synthesize(context.Background(), "hola")
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}

	got, err := base64.StdEncoding.DecodeString(res.AudioBase64)
	if err != nil {
		t.Fatalf("result is not valid base64: %v", err)
	}
	if string(got) != string(pcm) {
		t.Errorf("pcm = %v, want %v", got, pcm)
	}
	if res.SampleRate != 24000 {
		t.Errorf("sample rate = %d, want 24000", res.SampleRate)
	}
}

func TestSynthesizeServerError(t *testing.T) {
	addr := serveOnce(t, func(t *testing.T, conn net.Conn) {
		_, _, _ = readEvent(conn)
		_ = writeEvent(conn, wyomingEvent{Type: "error", Data: map[string]any{
			"text": "voice not loaded",
		}}, nil)
	})

	s := New(config.PiperConfig{Endpoint: addr}, "es-ES")

	if _, err := s.Synthesize(context.Background(), "hola"); err == nil {
		t.Error("expected error from piper error event")
	}
}

func TestSynthesizeRejectsEmptyText(t *testing.T) {
	s := New(config.PiperConfig{Endpoint: "localhost:1"}, "en-US")
	if _, err := s.Synthesize(context.Background(), ""); err == nil {
		t.Error("expected error for empty text")
	}
}

func TestVoiceSelection(t *testing.T) {
	if s := New(config.PiperConfig{}, "es-ES"); s.voice != defaultVoices["es"] {
		t.Errorf("voice = %q, want %q", s.voice, defaultVoices["es"])
	}
	if s := New(config.PiperConfig{Voice: "custom-voice"}, "es-ES"); s.voice != "custom-voice" {
		t.Errorf("voice = %q, want custom-voice", s.voice)
	}
	if s := New(config.PiperConfig{}, "xx-XX"); s.voice != defaultVoices["en"] {
		t.Errorf("unknown language fallback voice = %q, want %q", s.voice, defaultVoices["en"])
	}
	if s := New(config.PiperConfig{Endpoint: "tcp://host:10200"}, "en"); s.endpoint != "host:10200" {
		t.Errorf("endpoint = %q, want host:10200", s.endpoint)
	}
}
