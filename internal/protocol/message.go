package protocol

import "fmt"

// Line-oriented XML protocol spoken between clients and the server.
// One request -> one response per connection; the writer half-closes its side
// after a message so the reader sees the end of the stream.

// Size limits enforced by the server before a request touches any state.
const (
	MaxKeySize   = 256
	MaxValueSize = 256 * 1024
)

// Success is the status text of a response to a successful put or delete.
const Success = "Success"

// MsgType enumerates the four message kinds.
type MsgType int

const (
	GetRequest MsgType = iota + 1
	PutRequest
	DelRequest
	Response
)

var typeNames = map[MsgType]string{
	GetRequest: "getreq",
	PutRequest: "putreq",
	DelRequest: "delreq",
	Response:   "resp",
}

// String returns the wire name of the type.
func (t MsgType) String() string {
	if s, ok := typeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("MsgType(%d)", int(t))
}

// ParseMsgType maps a wire name to its MsgType.
func ParseMsgType(s string) (MsgType, bool) {
	for t, name := range typeNames {
		if name == s {
			return t, true
		}
	}
	return 0, false
}

// Message is a single protocol message. Which fields are meaningful depends
// on Type:
//
//	GetRequest, DelRequest  Key
//	PutRequest              Key, Value
//	Response                Key and Value (get result) or Text (status)
type Message struct {
	Type  MsgType
	Key   string
	Value string
	Text  string
}

// NewGet builds a get request.
func NewGet(key string) Message { return Message{Type: GetRequest, Key: key} }

// NewPut builds a put request.
func NewPut(key, value string) Message { return Message{Type: PutRequest, Key: key, Value: value} }

// NewDel builds a delete request.
func NewDel(key string) Message { return Message{Type: DelRequest, Key: key} }

// NewValueResponse builds the response to a successful get.
func NewValueResponse(key, value string) Message {
	return Message{Type: Response, Key: key, Value: value}
}

// NewStatusResponse builds a response that carries only status text.
func NewStatusResponse(text string) Message { return Message{Type: Response, Text: text} }

// HasKeyValue reports whether a response carries a key/value pair rather
// than status text.
func (m Message) HasKeyValue() bool { return m.Type == Response && m.Key != "" }

// IsRequest reports whether the message is one of the three request kinds.
func (m Message) IsRequest() bool {
	switch m.Type {
	case GetRequest, PutRequest, DelRequest:
		return true
	default:
		return false
	}
}
