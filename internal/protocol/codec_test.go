package protocol

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	cases := map[string]Message{
		"get":            NewGet("k"),
		"put":            NewPut("k", "v"),
		"del":            NewDel("k"),
		"resp value":     NewValueResponse("k", "v"),
		"resp success":   NewStatusResponse(Success),
		"resp error":     NewStatusResponse("msg"),
		"put empty":      NewPut("k", ""),
		"resp empty val": NewValueResponse("k", ""),
	}
	for name, m := range cases {
		t.Run(name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, Encode(&buf, m))
			got, err := Decode(&buf)
			require.NoError(t, err)
			assert.Equal(t, m, got)
		})
	}
}

func TestWireLayout(t *testing.T) {
	data, err := Marshal(NewPut("k", "v"))
	require.NoError(t, err)
	want := `<?xml version="1.0" encoding="UTF-8"?>
<KVMessage type="putreq">
<Key>k</Key>
<Value>v</Value>
</KVMessage>
`
	assert.Equal(t, want, string(data))

	data, err = Marshal(NewStatusResponse(Success))
	require.NoError(t, err)
	assert.Equal(t, `<?xml version="1.0" encoding="UTF-8"?>
<KVMessage type="resp">
<Message>Success</Message>
</KVMessage>
`, string(data))
}

func TestRoundTripPreservesAwkwardPayloads(t *testing.T) {
	value := "line one\nline two\r\n\t<tag attr=\"x\">&amp; 'quoted'</tag>  \xff\xfe"
	key := "k <&> key"
	data, err := Marshal(NewPut(key, value))
	require.NoError(t, err)
	got, err := Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, key, got.Key)
	assert.Equal(t, value, got.Value)
}

func TestRoundTripMaxSizes(t *testing.T) {
	key := strings.Repeat("K", MaxKeySize)
	value := strings.Repeat("<&>", MaxValueSize/3) + strings.Repeat("\n", MaxValueSize%3)
	data, err := Marshal(NewPut(key, value))
	require.NoError(t, err)
	got, err := Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, key, got.Key)
	assert.Len(t, got.Value, MaxValueSize)
	assert.Equal(t, value, got.Value)
}

func TestDecodeIgnoresBytesAfterCloseTag(t *testing.T) {
	data, err := Marshal(NewGet("a"))
	require.NoError(t, err)
	got, err := Unmarshal(append(data, []byte("trailing garbage\n")...))
	require.NoError(t, err)
	assert.Equal(t, NewGet("a"), got)
}

func TestDecodeOverlongLinesAreOversized(t *testing.T) {
	// Escaped, each '&' takes five bytes: 1 MiB of them overflows maxLine.
	huge := strings.Repeat("&", 1<<20)

	data, err := Marshal(NewPut("k", huge))
	require.NoError(t, err)
	_, err = Unmarshal(data)
	assert.ErrorIs(t, err, ErrOversizedValue)
	assert.Equal(t, "Oversized value", StatusText(err))

	data, err = Marshal(NewGet(huge))
	require.NoError(t, err)
	_, err = Unmarshal(data)
	assert.ErrorIs(t, err, ErrOversizedKey)

	data, err = Marshal(NewPut(huge, "v"))
	require.NoError(t, err)
	_, err = Unmarshal(data)
	assert.ErrorIs(t, err, ErrOversizedKey)

	data, err = Marshal(NewStatusResponse(huge))
	require.NoError(t, err)
	_, err = Unmarshal(data)
	assert.ErrorIs(t, err, ErrFormat)
}

func TestDecodeAcceptsMissingFinalNewline(t *testing.T) {
	in := "<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n<KVMessage type=\"delreq\">\n<Key>a</Key>\n</KVMessage>"
	got, err := Unmarshal([]byte(in))
	require.NoError(t, err)
	assert.Equal(t, NewDel("a"), got)
}

func TestDecodeErrors(t *testing.T) {
	decl := `<?xml version="1.0" encoding="UTF-8"?>` + "\n"
	cases := []struct {
		name string
		in   string
		want error
	}{
		{"empty stream", "", ErrMalformedStream},
		{"bad declaration", "<xml>\n", ErrMalformedStream},
		{"bad open tag", decl + "<KVMessage>\n", ErrFormat},
		{"unknown type", decl + `<KVMessage type="putrequest">` + "\n", ErrUnrecognizedType},
		{"missing key", decl + `<KVMessage type="getreq">` + "\n</KVMessage>\n", ErrFormat},
		{"empty key", decl + `<KVMessage type="getreq">` + "\n<Key></Key>\n</KVMessage>\n", ErrFormat},
		{"get with value", decl + `<KVMessage type="getreq">` + "\n<Key>a</Key>\n<Value>b</Value>\n</KVMessage>\n", ErrFormat},
		{"put without value", decl + `<KVMessage type="putreq">` + "\n<Key>a</Key>\n</KVMessage>\n", ErrFormat},
		{"value before key", decl + `<KVMessage type="putreq">` + "\n<Value>b</Value>\n<Key>a</Key>\n</KVMessage>\n", ErrFormat},
		{"request with message", decl + `<KVMessage type="delreq">` + "\n<Message>hi</Message>\n</KVMessage>\n", ErrFormat},
		{"resp message without close", decl + `<KVMessage type="resp">` + "\n<Message>hi</Message>\n<Key>a</Key>\n", ErrFormat},
		{"truncated", decl + `<KVMessage type="putreq">` + "\n<Key>a</Key>\n", ErrFormat},
		{"unescaped markup", decl + `<KVMessage type="getreq">` + "\n<Key>a</Key>b</Key>\n</KVMessage>\n", ErrFormat},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Unmarshal([]byte(tc.in))
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.want)
			var pe *Error
			require.True(t, errors.As(err, &pe))
			assert.NotEmpty(t, ErrorResponse(err).Text)
		})
	}
}

func TestDecodeTransportError(t *testing.T) {
	boom := errors.New("connection reset")
	_, err := Decode(failingReader{err: boom})
	assert.ErrorIs(t, err, ErrTransport)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "Network Error: Could not receive data", StatusText(err))
}

func TestEncodeRejectsIncompleteMessages(t *testing.T) {
	cases := map[string]Message{
		"put without key": {Type: PutRequest, Value: "v"},
		"get without key": {Type: GetRequest},
		"del without key": {Type: DelRequest},
		"empty resp":      {Type: Response},
	}
	for name, m := range cases {
		t.Run(name, func(t *testing.T) {
			var buf bytes.Buffer
			err := Encode(&buf, m)
			assert.ErrorIs(t, err, ErrFormat)
			assert.Zero(t, buf.Len())
		})
	}
	_, err := Marshal(Message{Type: MsgType(42), Key: "k"})
	assert.ErrorIs(t, err, ErrUnrecognizedType)
}

func TestEncodeTransportError(t *testing.T) {
	err := Encode(failingWriter{}, NewGet("a"))
	assert.ErrorIs(t, err, ErrTransport)
	assert.Equal(t, "Network Error: Could not send data", StatusText(err))
}

func TestStepPredicates(t *testing.T) {
	name, ok := openType(`<KVMessage type="getreq">`)
	assert.True(t, ok)
	assert.Equal(t, "getreq", name)
	_, ok = openType(`<KVMessage type="">`)
	assert.False(t, ok)
	_, ok = openType(`<KVMessage kind="getreq">`)
	assert.False(t, ok)

	text, ok := element("<Key>a&amp;b</Key>", elemKey)
	assert.True(t, ok)
	assert.Equal(t, "a&b", text)
	_, ok = element("<Key>a</Value>", elemKey)
	assert.False(t, ok)
	_, ok = element("<Key>", elemKey)
	assert.False(t, ok)

	assert.True(t, isDecl(xmlDecl))
	assert.True(t, isClose(closeTag))
	assert.False(t, isClose("</KVMessage >"))
}

type failingReader struct{ err error }

func (r failingReader) Read([]byte) (int, error) { return 0, r.err }

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("broken pipe") }
