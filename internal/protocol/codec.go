package protocol

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	xmlDecl  = `<?xml version="1.0" encoding="UTF-8"?>`
	openPre  = `<KVMessage type="`
	openPost = `">`
	closeTag = `</KVMessage>`

	elemKey     = "Key"
	elemValue   = "Value"
	elemMessage = "Message"

	// maxLine bounds a single protocol line. Escaping can grow a value up to
	// five times, so this leaves room for MaxValueSize plus tags.
	maxLine = 4 << 20
)

var (
	escaper = strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&#34;",
		"'", "&#39;",
		"\n", "&#xA;",
		"\r", "&#xD;",
		"\t", "&#x9;",
	)
	unescaper = strings.NewReplacer(
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&apos;", "'",
		"&#34;", `"`,
		"&#39;", "'",
		"&#xA;", "\n",
		"&#10;", "\n",
		"&#xD;", "\r",
		"&#13;", "\r",
		"&#x9;", "\t",
		"&#9;", "\t",
	)
)

// Marshal returns the wire form of m. It fails with a format error when m
// lacks a field its type requires.
func Marshal(m Message) ([]byte, error) {
	if err := validate(m); err != nil {
		return nil, err
	}
	var b bytes.Buffer
	b.WriteString(xmlDecl)
	b.WriteByte('\n')
	b.WriteString(openPre)
	b.WriteString(m.Type.String())
	b.WriteString(openPost)
	b.WriteByte('\n')
	switch m.Type {
	case GetRequest, DelRequest:
		writeElem(&b, elemKey, m.Key)
	case PutRequest:
		writeElem(&b, elemKey, m.Key)
		writeElem(&b, elemValue, m.Value)
	case Response:
		if m.HasKeyValue() {
			writeElem(&b, elemKey, m.Key)
			writeElem(&b, elemValue, m.Value)
		} else {
			writeElem(&b, elemMessage, m.Text)
		}
	}
	b.WriteString(closeTag)
	b.WriteByte('\n')
	return b.Bytes(), nil
}

// Encode writes the wire form of m to w.
func Encode(w io.Writer, m Message) error {
	data, err := Marshal(m)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return SendError(err)
	}
	return nil
}

func validate(m Message) error {
	switch m.Type {
	case GetRequest, DelRequest, PutRequest:
		if m.Key == "" {
			return formatError(fmt.Errorf("%s without key", m.Type))
		}
	case Response:
		if !m.HasKeyValue() && m.Text == "" {
			return formatError(errors.New("resp without key/value or message"))
		}
	default:
		return &Error{Kind: KindUnrecognizedType, Msg: textFormat, Err: fmt.Errorf("type %d", int(m.Type))}
	}
	return nil
}

func writeElem(b *bytes.Buffer, name, text string) {
	b.WriteByte('<')
	b.WriteString(name)
	b.WriteByte('>')
	escaper.WriteString(b, text)
	b.WriteString("</")
	b.WriteString(name)
	b.WriteString(">\n")
}

// state is a position in the line-by-line decoder.
type state int

const (
	stateDecl state = iota
	stateOpen
	stateKeyOrText
	stateValue
	stateClose
	stateDone
)

func (s state) String() string {
	switch s {
	case stateDecl:
		return "declaration"
	case stateOpen:
		return "open tag"
	case stateKeyOrText:
		return "key or message"
	case stateValue:
		return "value"
	case stateClose:
		return "close tag"
	default:
		return "done"
	}
}

// transitions holds the step for each non-terminal state. A step consumes one
// line, fills in m and returns the next state.
var transitions = [...]func(m *Message, line string) (state, error){
	stateDecl:      stepDecl,
	stateOpen:      stepOpen,
	stateKeyOrText: stepKeyOrText,
	stateValue:     stepValue,
	stateClose:     stepClose,
}

// Decode reads one message from r and ignores anything after the closing
// tag. r is read through a buffer, so bytes past the closing tag may be
// consumed; each stream carries a single message. Every failure is an *Error.
func Decode(r io.Reader) (Message, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)

	var m Message
	st := stateDecl
	for st != stateDone {
		if !sc.Scan() {
			return Message{}, scanFailure(sc.Err(), st, m.Type)
		}
		line := strings.TrimSpace(sc.Text())
		next, err := transitions[st](&m, line)
		if err != nil {
			return Message{}, err
		}
		st = next
	}
	return m, nil
}

// Unmarshal decodes a message held in memory.
func Unmarshal(data []byte) (Message, error) {
	return Decode(bytes.NewReader(data))
}

// scanFailure classifies a stream that ended before stateDone. A line over
// maxLine in the key or value position is far beyond the size limits, so it
// is reported as the matching oversize error.
func scanFailure(err error, st state, t MsgType) error {
	switch {
	case errors.Is(err, bufio.ErrTooLong) && st == stateValue && t == PutRequest:
		return &Error{Kind: KindOversizedValue, Msg: textOversizedVal, Err: err}
	case errors.Is(err, bufio.ErrTooLong) && st == stateKeyOrText && t != Response:
		return &Error{Kind: KindOversizedKey, Msg: textOversizedKey, Err: err}
	case errors.Is(err, bufio.ErrTooLong):
		return formatError(err)
	case err != nil:
		return ReceiveError(err)
	case st == stateDecl:
		return &Error{Kind: KindMalformedStream, Msg: textUnparseable, Err: io.ErrUnexpectedEOF}
	default:
		return formatError(fmt.Errorf("stream ended while expecting %s: %w", st, io.ErrUnexpectedEOF))
	}
}

func stepDecl(_ *Message, line string) (state, error) {
	if !isDecl(line) {
		return stateDecl, &Error{Kind: KindMalformedStream, Msg: textUnparseable, Err: fmt.Errorf("bad declaration %q", clip(line))}
	}
	return stateOpen, nil
}

func stepOpen(m *Message, line string) (state, error) {
	name, ok := openType(line)
	if !ok {
		return stateOpen, formatError(fmt.Errorf("bad open tag %q", clip(line)))
	}
	t, ok := ParseMsgType(name)
	if !ok {
		return stateOpen, &Error{Kind: KindUnrecognizedType, Msg: textFormat, Err: fmt.Errorf("type %q", clip(name))}
	}
	m.Type = t
	return stateKeyOrText, nil
}

func stepKeyOrText(m *Message, line string) (state, error) {
	if m.Type == Response {
		if text, ok := element(line, elemMessage); ok {
			m.Text = text
			return stateClose, nil
		}
	}
	key, ok := element(line, elemKey)
	if !ok || key == "" {
		return stateKeyOrText, formatError(fmt.Errorf("expected key in %s, got %q", m.Type, clip(line)))
	}
	m.Key = key
	switch m.Type {
	case PutRequest, Response:
		return stateValue, nil
	default:
		return stateClose, nil
	}
}

func stepValue(m *Message, line string) (state, error) {
	v, ok := element(line, elemValue)
	if !ok {
		return stateValue, formatError(fmt.Errorf("expected value in %s, got %q", m.Type, clip(line)))
	}
	m.Value = v
	return stateClose, nil
}

func stepClose(_ *Message, line string) (state, error) {
	if !isClose(line) {
		return stateClose, formatError(fmt.Errorf("expected %s, got %q", closeTag, clip(line)))
	}
	return stateDone, nil
}

func isDecl(line string) bool { return line == xmlDecl }

func isClose(line string) bool { return line == closeTag }

// openType extracts TYPE from `<KVMessage type="TYPE">`.
func openType(line string) (string, bool) {
	if !strings.HasPrefix(line, openPre) || !strings.HasSuffix(line, openPost) {
		return "", false
	}
	name := line[len(openPre) : len(line)-len(openPost)]
	if name == "" || strings.ContainsAny(name, `"<>`) {
		return "", false
	}
	return name, true
}

// element extracts and unescapes the text of `<name>text</name>`.
func element(line, name string) (string, bool) {
	open, end := "<"+name+">", "</"+name+">"
	if len(line) < len(open)+len(end) || !strings.HasPrefix(line, open) || !strings.HasSuffix(line, end) {
		return "", false
	}
	raw := line[len(open) : len(line)-len(end)]
	if strings.ContainsAny(raw, "<>") {
		return "", false
	}
	return unescaper.Replace(raw), true
}

func clip(s string) string {
	const n = 64
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
