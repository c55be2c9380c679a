package event

import (
	"errors"
	"testing"

	"github.com/example/flotilla/internal/core/errs"
)

func TestDecode(t *testing.T) {
	t.Run("known type decodes to typed payload", func(t *testing.T) {
		p, err := Decode(MissionProgressed, []byte(`{"progress_percent":50,"note":"halfway"}`))
		if err != nil {
			t.Fatalf("Decode failed: %v", err)
		}
		progressed, ok := p.(*MissionProgressedPayload)
		if !ok {
			t.Fatalf("Decode returned %T, want *MissionProgressedPayload", p)
		}
		if progressed.ProgressPercent != 50 {
			t.Errorf("ProgressPercent = %d, want 50", progressed.ProgressPercent)
		}
	})

	t.Run("unknown type decodes without error", func(t *testing.T) {
		p, err := Decode("mission.teleported", []byte(`{"where":"mars"}`))
		if err != nil {
			t.Fatalf("Decode failed: %v", err)
		}
		u, ok := p.(*Unknown)
		if !ok {
			t.Fatalf("Decode returned %T, want *Unknown", p)
		}
		if string(u.Raw) != `{"where":"mars"}` {
			t.Errorf("Raw = %s", u.Raw)
		}
		if !errors.Is(u.Validate(), errs.ErrValidation) {
			t.Error("Unknown.Validate() should return a validation error")
		}
	})

	t.Run("malformed json", func(t *testing.T) {
		if _, err := Decode(MissionCreated, []byte(`{"title":`)); err == nil {
			t.Error("expected error for malformed payload")
		}
	})
}

func TestCheckAppend(t *testing.T) {
	tests := []struct {
		name    string
		stream  StreamType
		payload Payload
		wantErr bool
	}{
		{name: "mission event on mission stream", stream: StreamMission, payload: &MissionStartedPayload{}},
		{name: "sortie event on sortie stream", stream: StreamSortie, payload: &SortieStartedPayload{}},
		{name: "sortie event on mission stream", stream: StreamMission, payload: &SortieStartedPayload{}, wantErr: true},
		{name: "unknown payload", stream: StreamMission, payload: &Unknown{Kind: "x.y"}, wantErr: true},
		{name: "nil payload", stream: StreamMission, payload: nil, wantErr: true},
		{name: "missing title", stream: StreamMission, payload: &MissionCreatedPayload{}, wantErr: true},
		{name: "progress above 100", stream: StreamMission, payload: &MissionProgressedPayload{ProgressPercent: 101}, wantErr: true},
		{name: "negative sortie progress", stream: StreamSortie, payload: &SortieProgressedPayload{ProgressPercent: -1}, wantErr: true},
		{name: "sortie without mission", stream: StreamSortie, payload: &SortieCreatedPayload{Title: "orphan"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckAppend(tt.stream, tt.payload)
			if tt.wantErr {
				if !errors.Is(err, errs.ErrValidation) {
					t.Errorf("CheckAppend() = %v, want validation error", err)
				}
				return
			}
			if err != nil {
				t.Errorf("CheckAppend() unexpected error: %v", err)
			}
		})
	}
}

func TestEncodeDecodePreservesSlices(t *testing.T) {
	in := &SortieProgressedPayload{ProgressPercent: 40, FilesModified: []string{"/a.txt", "/b.txt"}}
	raw, err := Encode(in)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	out, err := Decode(SortieProgressed, raw)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	got := out.(*SortieProgressedPayload)
	if len(got.FilesModified) != 2 || got.FilesModified[1] != "/b.txt" {
		t.Errorf("FilesModified = %v", got.FilesModified)
	}
}

func TestSummary(t *testing.T) {
	tests := []struct {
		payload Payload
		want    string
	}{
		{&MissionProgressedPayload{ProgressPercent: 50}, "Progress 50%"},
		{&MissionProgressedPayload{ProgressPercent: 75, Note: "tests green"}, "Progress 75%: tests green"},
		{&MissionFailedPayload{Reason: "oom"}, "Mission failed: oom"},
		{&SortieProgressedPayload{ProgressPercent: 10, FilesModified: []string{"/a.txt"}}, "Sortie progress 10%: touched /a.txt"},
		{&MissionPausedPayload{}, "Paused mission"},
	}
	for _, tt := range tests {
		if got := tt.payload.Summary(); got != tt.want {
			t.Errorf("%s Summary() = %q, want %q", tt.payload.EventType(), got, tt.want)
		}
	}
}
