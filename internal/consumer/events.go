package consumer

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// EventType is the closed set of file lifecycle changes the consumer routes.
// Parsing happens once at the message boundary; after that every switch over
// EventType is exhaustive — there is no string fallthrough at routing time.
type EventType int

const (
	// EventCreate signals a newly uploaded file to ingest.
	EventCreate EventType = iota
	// EventUpdate signals changed content: prior chunks are replaced.
	EventUpdate
	// EventDelete signals file removal: all chunks are deleted.
	EventDelete
)

// String returns the wire name of the event type.
func (t EventType) String() string {
	switch t {
	case EventCreate:
		return "create"
	case EventUpdate:
		return "update"
	case EventDelete:
		return "delete"
	default:
		return fmt.Sprintf("EventType(%d)", int(t))
	}
}

// ParseEventType maps a wire tag onto the closed enum.
// Unrecognised tags return ErrUnknownEventType.
func ParseEventType(s string) (EventType, error) {
	switch s {
	case "create":
		return EventCreate, nil
	case "update":
		return EventUpdate, nil
	case "delete":
		return EventDelete, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownEventType, s)
	}
}

// FileEvent is one parsed and validated file lifecycle event. Immutable once
// parsed; it lives only for the duration of one message's processing.
type FileEvent struct {
	// Type is the lifecycle change to apply.
	Type EventType

	// WorkspaceID is the workspace the file belongs to.
	WorkspaceID int64

	// FileID is the external file identifier.
	FileID int64

	// StorageKey is the object-storage key of the file content.
	StorageKey string
}

// envelope is the wire shape of a queue message body. Pointer fields
// distinguish absent from zero so missing fields fail validation.
type envelope struct {
	WorkspaceID *int64  `json:"workspaceId"`
	FileID      *int64  `json:"fileId"`
	StorageKey  *string `json:"s3Key"`
	EventType   *string `json:"eventType"`
}

// ParseFileEvent decodes and validates a message body. Structural problems
// (invalid JSON, unknown or missing fields, non-positive ids) return
// ErrMalformedMessage; a well-formed envelope with an unrecognised event tag
// returns ErrUnknownEventType. Both are terminal for the message.
func ParseFileEvent(body []byte) (FileEvent, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()

	var env envelope
	if err := dec.Decode(&env); err != nil {
		return FileEvent{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}

	switch {
	case env.EventType == nil:
		return FileEvent{}, fmt.Errorf("%w: missing eventType", ErrMalformedMessage)
	case env.WorkspaceID == nil || *env.WorkspaceID <= 0:
		return FileEvent{}, fmt.Errorf("%w: missing or invalid workspaceId", ErrMalformedMessage)
	case env.FileID == nil || *env.FileID <= 0:
		return FileEvent{}, fmt.Errorf("%w: missing or invalid fileId", ErrMalformedMessage)
	case env.StorageKey == nil || *env.StorageKey == "":
		return FileEvent{}, fmt.Errorf("%w: missing s3Key", ErrMalformedMessage)
	}

	typ, err := ParseEventType(*env.EventType)
	if err != nil {
		return FileEvent{}, err
	}

	return FileEvent{
		Type:        typ,
		WorkspaceID: *env.WorkspaceID,
		FileID:      *env.FileID,
		StorageKey:  *env.StorageKey,
	}, nil
}
