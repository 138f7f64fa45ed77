package protocol

import (
	"strings"
	"testing"
	"time"
)

func TestDecodeClientMessage(t *testing.T) {
	msg, err := DecodeClientMessage([]byte(`{"type":"audio","data":"AAAA","sample_rate":16000}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.Type != TypeAudio || msg.Data != "AAAA" || msg.SampleRate != 16000 {
		t.Fatalf("unexpected message: %+v", msg)
	}

	msg, err = DecodeClientMessage([]byte(`{"type":"end"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.Type != TypeEnd {
		t.Fatalf("expected end, got %q", msg.Type)
	}

	msg, err = DecodeClientMessage([]byte(`{"type":"reset"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.Type != TypeReset {
		t.Fatalf("expected reset, got %q", msg.Type)
	}
}

func TestDecodeClientMessageDefaultsSampleRate(t *testing.T) {
	msg, err := DecodeClientMessage([]byte(`{"type":"audio","data":"AAAA"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.SampleRate != DefaultSampleRate {
		t.Fatalf("expected default sample rate, got %d", msg.SampleRate)
	}
}

func TestDecodeClientMessageRejectsBadTags(t *testing.T) {
	if _, err := DecodeClientMessage([]byte(`{"type":"bogus"}`)); err == nil {
		t.Fatal("expected error for unknown tag")
	}
	if _, err := DecodeClientMessage([]byte(`{"data":"AAAA"}`)); err == nil {
		t.Fatal("expected error for missing tag")
	}
	if _, err := DecodeClientMessage([]byte(`not json`)); err == nil {
		t.Fatal("expected error for malformed payload")
	}
}

func TestAudioBytesRejectsBadBase64(t *testing.T) {
	msg := ClientMessage{Type: TypeAudio, Data: "!!not-base64!!"}
	if _, err := msg.AudioBytes(); err == nil {
		t.Fatal("expected base64 decode error")
	}
}

func TestServerMessageEncoding(t *testing.T) {
	now := time.UnixMilli(12345)

	data, err := Partial("hello", now).Encode()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	json := string(data)
	if !strings.Contains(json, `"type":"partial"`) || !strings.Contains(json, `"text":"hello"`) || !strings.Contains(json, `"ts":12345`) {
		t.Fatalf("unexpected encoding: %s", json)
	}

	data, err = Final("", now).Encode()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	json = string(data)
	// An empty final transcript still carries its text field.
	if !strings.Contains(json, `"type":"final"`) || !strings.Contains(json, `"text":""`) {
		t.Fatalf("unexpected encoding: %s", json)
	}

	data, err = Error("boom").Encode()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	json = string(data)
	if !strings.Contains(json, `"type":"error"`) || !strings.Contains(json, `"message":"boom"`) {
		t.Fatalf("unexpected encoding: %s", json)
	}
	if strings.Contains(json, `"ts"`) {
		t.Fatalf("error message should not carry a timestamp: %s", json)
	}

	data, err = Ready("go ahead").Encode()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(string(data), `"type":"ready"`) {
		t.Fatalf("unexpected encoding: %s", data)
	}
}
