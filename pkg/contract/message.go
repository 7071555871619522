package contract

// ToolMessageType discriminates the messages a Tool streams back through
// its result channel (component C11's "generator of structured messages").
type ToolMessageType string

const (
	ToolMessageText     ToolMessageType = "text"
	ToolMessageJSON     ToolMessageType = "json"
	ToolMessageBlob     ToolMessageType = "blob"
	ToolMessageImage    ToolMessageType = "image"
	ToolMessageLink     ToolMessageType = "link"
	ToolMessageVariable ToolMessageType = "variable"
)

// ToolMessage is one item a Tool.Invoke sends on its output channel.
// The executor passes every case through unchanged except ToolMessageBlob,
// which is fragmented by pkg/blob before reaching the wire (§4.12).
type ToolMessage struct {
	Type    ToolMessageType        `json:"type"`
	Message map[string]interface{} `json:"message,omitempty"`
	Blob    []byte                 `json:"-"`
}

// Text builds a simple text ToolMessage, the common case exercised by
// scenario S1 ("The result is 3").
func Text(text string) ToolMessage {
	return ToolMessage{Type: ToolMessageText, Message: map[string]interface{}{"text": text}}
}

// Blob builds a binary ToolMessage that the executor will fragment.
func Blob(data []byte) ToolMessage {
	return ToolMessage{Type: ToolMessageBlob, Blob: data}
}
