// Package contract defines the narrow interfaces a plugin-supplied Tool,
// Model, Endpoint, AgentStrategy or OAuth handler must implement. The core
// IO server only ever calls through these contracts; it never knows the
// concrete user types.
package contract

import "encoding/json"

// ContentType discriminates the PromptMessageContent tagged variant.
type ContentType string

const (
	ContentText     ContentType = "text"
	ContentImage    ContentType = "image"
	ContentAudio    ContentType = "audio"
	ContentVideo    ContentType = "video"
	ContentDocument ContentType = "document"
)

// PromptMessageContent is the tagged variant replacing the distilled
// spec's "inheritance hierarchy for prompt-message variants" (§9), and
// is discriminated by Type(). The media cases carry Data/MIMEType/URL;
// TextContent carries only Text, and no case has a Format field. Modeled on the teacher's types.ContentPart family
// (TextContent/ImageContent/FileContent in provider/types/message.go).
type PromptMessageContent interface {
	Type() ContentType
}

// TextContent is plain text content.
type TextContent struct {
	Text string `json:"text"`
}

func (TextContent) Type() ContentType { return ContentText }

// ImageContent is inline or remote image content.
type ImageContent struct {
	Data     []byte `json:"data,omitempty"`
	MIMEType string `json:"mime_type"`
	URL      string `json:"url,omitempty"`
}

func (ImageContent) Type() ContentType { return ContentImage }

// AudioContent is inline or remote audio content.
type AudioContent struct {
	Data     []byte `json:"data,omitempty"`
	MIMEType string `json:"mime_type"`
	URL      string `json:"url,omitempty"`
}

func (AudioContent) Type() ContentType { return ContentAudio }

// VideoContent is inline or remote video content.
type VideoContent struct {
	Data     []byte `json:"data,omitempty"`
	MIMEType string `json:"mime_type"`
	URL      string `json:"url,omitempty"`
}

func (VideoContent) Type() ContentType { return ContentVideo }

// DocumentContent is an arbitrary file attachment (PDF, text, etc.).
type DocumentContent struct {
	Data     []byte `json:"data,omitempty"`
	MIMEType string `json:"mime_type"`
	Filename string `json:"filename,omitempty"`
	URL      string `json:"url,omitempty"`
}

func (DocumentContent) Type() ContentType { return ContentDocument }

// taggedContent is the wire shape used to marshal/unmarshal any
// PromptMessageContent by its "type" tag.
type taggedContent struct {
	Type     ContentType `json:"type"`
	Text     string      `json:"text,omitempty"`
	Data     []byte      `json:"data,omitempty"`
	MIMEType string      `json:"mime_type,omitempty"`
	URL      string      `json:"url,omitempty"`
	Filename string      `json:"filename,omitempty"`
}

// MarshalContent serializes a PromptMessageContent with its type tag.
func MarshalContent(c PromptMessageContent) ([]byte, error) {
	t := taggedContent{Type: c.Type()}
	switch v := c.(type) {
	case TextContent:
		t.Text = v.Text
	case ImageContent:
		t.Data, t.MIMEType, t.URL = v.Data, v.MIMEType, v.URL
	case AudioContent:
		t.Data, t.MIMEType, t.URL = v.Data, v.MIMEType, v.URL
	case VideoContent:
		t.Data, t.MIMEType, t.URL = v.Data, v.MIMEType, v.URL
	case DocumentContent:
		t.Data, t.MIMEType, t.URL, t.Filename = v.Data, v.MIMEType, v.URL, v.Filename
	default:
		return nil, &UnsupportedContentError{Type: c.Type()}
	}
	return json.Marshal(t)
}

// UnmarshalContent parses a tagged-content record into the concrete
// PromptMessageContent case named by its "type" field.
func UnmarshalContent(raw []byte) (PromptMessageContent, error) {
	var t taggedContent
	if err := json.Unmarshal(raw, &t); err != nil {
		return nil, err
	}
	switch t.Type {
	case ContentText:
		return TextContent{Text: t.Text}, nil
	case ContentImage:
		return ImageContent{Data: t.Data, MIMEType: t.MIMEType, URL: t.URL}, nil
	case ContentAudio:
		return AudioContent{Data: t.Data, MIMEType: t.MIMEType, URL: t.URL}, nil
	case ContentVideo:
		return VideoContent{Data: t.Data, MIMEType: t.MIMEType, URL: t.URL}, nil
	case ContentDocument:
		return DocumentContent{Data: t.Data, MIMEType: t.MIMEType, URL: t.URL, Filename: t.Filename}, nil
	default:
		return nil, &UnsupportedContentError{Type: t.Type}
	}
}

// UnsupportedContentError is returned for an unrecognized content tag.
type UnsupportedContentError struct {
	Type ContentType
}

func (e *UnsupportedContentError) Error() string {
	return "contract: unsupported prompt message content type: " + string(e.Type)
}
