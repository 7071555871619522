package protocol

import "encoding/json"

// SessionMessageType is the tag of the inner "data" of an outbound
// "session" event.
type SessionMessageType string

const (
	SessionStream SessionMessageType = "stream"
	SessionInvoke SessionMessageType = "invoke"
	SessionEnd    SessionMessageType = "end"
	SessionError  SessionMessageType = "error"
)

// SessionMessage is the tagged union wrapped by the writer into a
// "session" event envelope (component C3 / §3 data model).
type SessionMessage struct {
	Type SessionMessageType `json:"type"`
	Data interface{}        `json:"data,omitempty"`
}

// InvokePayload is the Data of a SessionMessage{Type: SessionInvoke}: a
// backwards invocation the plugin is issuing into the host.
type InvokePayload struct {
	Type               string          `json:"type"`
	BackwardsRequestID string          `json:"backwards_request_id"`
	Request            json.RawMessage `json:"request"`
}

// ErrorPayload is the Data of a SessionMessage{Type: SessionError}.
type ErrorPayload struct {
	ErrorType string                 `json:"error_type"`
	Message   string                 `json:"message"`
	Args      map[string]interface{} `json:"args,omitempty"`
}

// BackwardsEventType is the tag of a backwards-invocation reply.
type BackwardsEventType string

const (
	BackwardsResponse BackwardsEventType = "response"
	BackwardsErrorEvt BackwardsEventType = "error"
	BackwardsEnd      BackwardsEventType = "end"
)

// BackwardsInvocationResponseEvent is the Data of an inbound envelope
// with Event == EventBackwardsResponse (§3, §4.8).
type BackwardsInvocationResponseEvent struct {
	BackwardsRequestID string             `json:"backwards_request_id"`
	Event              BackwardsEventType `json:"event"`
	Message            string             `json:"message,omitempty"`
	Data               json.RawMessage    `json:"data,omitempty"`
}

// RequestEnvelopeData is the Data of an inbound "request" envelope before
// being routed: every dispatcher predicate inspects Type+Action, then the
// full raw data is re-decoded into the handler's declared input struct.
type RequestEnvelopeData struct {
	Type   string `json:"type"`
	Action string `json:"action"`
}

// BlobChunk is one fragment of the blob-chunking protocol (component C12).
type BlobChunk struct {
	ID          string `json:"id"`
	Sequence    uint32 `json:"sequence"`
	TotalLength uint64 `json:"total_length"`
	End         bool   `json:"end"`
	Blob        []byte `json:"blob"`
}

// BlobChunkSize is the fixed fragment size used by the blob streamer.
const BlobChunkSize = 8 * 1024
