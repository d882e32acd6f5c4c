package consumer

import (
	"encoding/json"
	"testing"

	"github.com/segmentio/kafka-go"

	"github.com/Lalitha-balijepalli/FileFlexor/internal/model"
)

func TestDecode(t *testing.T) {
	want := model.NewEvent(model.EventProcessed, "results", "file-1-2_compressed.jpg", 2048)
	data, err := json.Marshal(want)
	if err != nil {
		t.Fatal(err)
	}

	got, err := Decode(kafka.Message{Key: []byte(want.Name), Value: data})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if got.ID != want.ID || got.Type != want.Type || got.Name != want.Name || got.Size != want.Size {
		t.Fatalf("decoded %+v, want %+v", got, want)
	}
	if !got.OccurredAt.Equal(want.OccurredAt) {
		t.Fatalf("occurred_at %v, want %v", got.OccurredAt, want.OccurredAt)
	}
}

func TestDecodeMalformed(t *testing.T) {
	if _, err := Decode(kafka.Message{Value: []byte("{not json")}); err == nil {
		t.Fatal("expected error for malformed message")
	}
}
