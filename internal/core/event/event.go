// Package event defines the closed set of coordination event kinds.
// This is part of the Functional Core - no I/O, only pure functions.
//
// Each kind carries its own strongly-typed payload. Anything outside the set
// decodes to Unknown, which never validates, so it can be read back from
// storage but never appended.
package event

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/example/flotilla/internal/core/errs"
)

// Type identifies an event kind.
type Type string

// StreamType identifies the aggregate family a stream belongs to.
type StreamType string

const (
	StreamMission StreamType = "mission"
	StreamSortie  StreamType = "sortie"
)

// Mission stream event types.
const (
	MissionCreated    Type = "mission.created"
	MissionStarted    Type = "mission.started"
	MissionProgressed Type = "mission.progressed"
	MissionPaused     Type = "mission.paused"
	MissionResumed    Type = "mission.resumed"
	MissionCompleted  Type = "mission.completed"
	MissionFailed     Type = "mission.failed"
	MissionCancelled  Type = "mission.cancelled"
	MissionRecovered  Type = "mission.recovered"
	CheckpointCreated Type = "checkpoint.created"
)

// Sortie stream event types.
const (
	SortieCreated    Type = "sortie.created"
	SortieStarted    Type = "sortie.started"
	SortieProgressed Type = "sortie.progressed"
	SortiePaused     Type = "sortie.paused"
	SortieCompleted  Type = "sortie.completed"
	SortieFailed     Type = "sortie.failed"
	SortieCancelled  Type = "sortie.cancelled"
	SortieRestored   Type = "sortie.restored"
)

// Payload is implemented by every event kind.
type Payload interface {
	// EventType returns the kind tag stored alongside the payload.
	EventType() Type
	// Validate checks required fields.
	Validate() error
	// Summary returns a one-line human-readable description.
	Summary() string
}

var registry = map[Type]struct {
	stream StreamType
	new    func() Payload
}{
	MissionCreated:    {StreamMission, func() Payload { return &MissionCreatedPayload{} }},
	MissionStarted:    {StreamMission, func() Payload { return &MissionStartedPayload{} }},
	MissionProgressed: {StreamMission, func() Payload { return &MissionProgressedPayload{} }},
	MissionPaused:     {StreamMission, func() Payload { return &MissionPausedPayload{} }},
	MissionResumed:    {StreamMission, func() Payload { return &MissionResumedPayload{} }},
	MissionCompleted:  {StreamMission, func() Payload { return &MissionCompletedPayload{} }},
	MissionFailed:     {StreamMission, func() Payload { return &MissionFailedPayload{} }},
	MissionCancelled:  {StreamMission, func() Payload { return &MissionCancelledPayload{} }},
	MissionRecovered:  {StreamMission, func() Payload { return &MissionRecoveredPayload{} }},
	CheckpointCreated: {StreamMission, func() Payload { return &CheckpointCreatedPayload{} }},
	SortieCreated:     {StreamSortie, func() Payload { return &SortieCreatedPayload{} }},
	SortieStarted:     {StreamSortie, func() Payload { return &SortieStartedPayload{} }},
	SortieProgressed:  {StreamSortie, func() Payload { return &SortieProgressedPayload{} }},
	SortiePaused:      {StreamSortie, func() Payload { return &SortiePausedPayload{} }},
	SortieCompleted:   {StreamSortie, func() Payload { return &SortieCompletedPayload{} }},
	SortieFailed:      {StreamSortie, func() Payload { return &SortieFailedPayload{} }},
	SortieCancelled:   {StreamSortie, func() Payload { return &SortieCancelledPayload{} }},
	SortieRestored:    {StreamSortie, func() Payload { return &SortieRestoredPayload{} }},
}

// IsKnown reports whether t belongs to the closed set.
func IsKnown(t Type) bool {
	_, ok := registry[t]
	return ok
}

// StreamOf returns the stream type a kind must be appended to.
func StreamOf(t Type) (StreamType, bool) {
	entry, ok := registry[t]
	return entry.stream, ok
}

// ValidStream reports whether s is a recognised stream type.
func ValidStream(s StreamType) bool {
	return s == StreamMission || s == StreamSortie
}

// Decode turns a stored (type, json) pair back into a typed payload.
// Unrecognised types decode to *Unknown without error so historical rows
// remain readable.
func Decode(t Type, raw []byte) (Payload, error) {
	entry, ok := registry[t]
	if !ok {
		return &Unknown{Kind: t, Raw: append(json.RawMessage(nil), raw...)}, nil
	}
	p := entry.new()
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, p); err != nil {
			return nil, fmt.Errorf("failed to decode %s payload: %w", t, err)
		}
	}
	return p, nil
}

// Encode serialises a payload for storage.
func Encode(p Payload) ([]byte, error) {
	if u, ok := p.(*Unknown); ok {
		return u.Raw, nil
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s payload: %w", p.EventType(), err)
	}
	return data, nil
}

// CheckAppend validates a payload for appending to the given stream type.
func CheckAppend(stream StreamType, p Payload) error {
	if p == nil {
		return errs.Validation("payload", "missing")
	}
	if err := p.Validate(); err != nil {
		return err
	}
	want, ok := StreamOf(p.EventType())
	if !ok {
		return errs.Validation("event_type", "unrecognized event type %q", p.EventType())
	}
	if want != stream {
		return errs.Validation("event_type", "%s cannot be appended to a %s stream", p.EventType(), stream)
	}
	return nil
}

func validPercent(field string, v int) error {
	if v < 0 || v > 100 {
		return errs.Validation(field, "must be between 0 and 100, got %d", v)
	}
	return nil
}

func required(field, v string) error {
	if strings.TrimSpace(v) == "" {
		return errs.Validation(field, "required")
	}
	return nil
}

// Unknown holds a payload whose type is outside the closed set.
type Unknown struct {
	Kind Type
	Raw  json.RawMessage
}

func (p *Unknown) EventType() Type { return p.Kind }
func (p *Unknown) Validate() error {
	return errs.Validation("event_type", "unrecognized event type %q", p.Kind)
}
func (p *Unknown) Summary() string { return fmt.Sprintf("unrecognized event %s", p.Kind) }
