package queue

import (
	"testing"

	"github.com/google/uuid"
)

func TestEncodeDecode(t *testing.T) {
	id := uuid.New()
	data, err := Encode(&Job{ID: id, Attempt: 2})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	job, err := Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if job.ID != id || job.Attempt != 2 {
		t.Errorf("got %+v", job)
	}
}

func TestDecodeRejectsBadPayloads(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", "render me"},
		{"missing id", `{"attempt":1}`},
		{"bad id", `{"id":"nope"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Decode([]byte(tt.data)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestNewWithClientDefaultsName(t *testing.T) {
	q := NewWithClient(nil, "")
	if q.name != QueueRender {
		t.Errorf("expected %q, got %q", QueueRender, q.name)
	}
}
