package ingest

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"chatguard/internal/model"
)

func TestDecodeMessage(t *testing.T) {
	msg, err := DecodeMessage([]byte(`{"external_message_id":12,"channel_id":-100,"user_id":7,"text":"hello"}`))
	if err != nil {
		t.Fatalf("DecodeMessage: %v", err)
	}
	if msg.ExternalMessageID != 12 || msg.ChannelID != -100 {
		t.Fatalf("unexpected ids: %+v", msg)
	}
	if msg.MessageType != "text" {
		t.Fatalf("message type = %q, want text", msg.MessageType)
	}
	if msg.ReceivedAt.IsZero() {
		t.Fatalf("ReceivedAt should be defaulted")
	}
}

func TestDecodeMessageRequiredFields(t *testing.T) {
	cases := []string{
		`{"channel_id":-100,"text":"x"}`,
		`{"external_message_id":12,"text":"x"}`,
		`{not json`,
	}
	for _, raw := range cases {
		if _, err := DecodeMessage([]byte(raw)); err == nil {
			t.Errorf("expected error for %s", raw)
		}
	}
}

func TestDecodeMessageInferType(t *testing.T) {
	msg, err := DecodeMessage([]byte(`{"external_message_id":1,"channel_id":2,"image_file_id":"abc"}`))
	if err != nil {
		t.Fatalf("DecodeMessage: %v", err)
	}
	if msg.MessageType != "photo" {
		t.Fatalf("message type = %q, want photo", msg.MessageType)
	}
	msg, err = DecodeMessage([]byte(`{"external_message_id":1,"channel_id":2}`))
	if err != nil {
		t.Fatalf("DecodeMessage: %v", err)
	}
	if msg.MessageType != "other" {
		t.Fatalf("message type = %q, want other", msg.MessageType)
	}
}

func TestSendNonBlockingDropsWhenFull(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ch := make(chan model.InboundMessage, 1)
	ev := model.InboundMessage{ExternalMessageID: 1, ChannelID: 2}

	if !SendNonBlocking(context.Background(), ch, ev, logger) {
		t.Fatalf("first send should succeed")
	}
	if SendNonBlocking(context.Background(), ch, ev, logger) {
		t.Fatalf("second send should be dropped, buffer is full")
	}
	<-ch
	if !SendNonBlocking(context.Background(), ch, ev, logger) {
		t.Fatalf("send should succeed after drain")
	}
}

func TestBackoffSleepCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if BackoffSleep(ctx, time.Minute) {
		t.Fatalf("cancelled context should abort the sleep")
	}
}
