package events

import (
	"encoding/json"
	"time"
)

// Event types published while campaigns run.
const (
	TypeSendStarted  = "send.started"
	TypeSendProgress = "send.progress"
	TypeSendFinished = "send.finished"
	TypeLeadUpdated  = "lead.updated"
	TypeEnrichDone   = "enrich.finished"
	TypePing         = "ping"
)

// Event is the envelope every subscriber receives.
type Event struct {
	Type      string          `json:"type"`
	Version   int             `json:"v"`
	At        time.Time       `json:"at"`
	RequestID string          `json:"requestId,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// MakeEvent encodes an event envelope as a JSON string.
func MakeEvent(reqID, typ string, data any) string {
	var raw json.RawMessage
	if data != nil {
		b, _ := json.Marshal(data)
		raw = b
	}
	b, _ := json.Marshal(Event{
		Type:      typ,
		Version:   1,
		At:        time.Now().UTC(),
		RequestID: reqID,
		Data:      raw,
	})
	return string(b)
}
