package client

import (
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leonardcser/kvd/internal/protocol"
	"github.com/leonardcser/kvd/internal/server"
	"github.com/leonardcser/kvd/internal/store"
)

func startServer(t *testing.T) string {
	t.Helper()
	srv, err := server.New(server.Config{NumSets: 4, MaxElemsPerSet: 2, PoolSize: 2}, store.NewMemory())
	require.NoError(t, err)
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, l) }()
	t.Cleanup(func() {
		cancel()
		<-done
		_ = srv.Close()
	})
	return l.Addr().String()
}

func TestClientScenario(t *testing.T) {
	c := New(startServer(t), WithTimeout(2*time.Second))
	require.NoError(t, c.Ping())

	_, err := c.Get("a")
	assert.ErrorIs(t, err, protocol.ErrKeyNotFound)

	require.NoError(t, c.Put("a", "1"))
	v, err := c.Get("a")
	require.NoError(t, err)
	assert.Equal(t, "1", v)

	require.NoError(t, c.Delete("a"))
	_, err = c.Get("a")
	assert.ErrorIs(t, err, protocol.ErrKeyNotFound)
	assert.ErrorIs(t, c.Delete("a"), protocol.ErrKeyNotFound)
}

func TestClientSurfacesValidationErrors(t *testing.T) {
	c := New(startServer(t))
	assert.ErrorIs(t, c.Put(strings.Repeat("k", 257), "v"), protocol.ErrOversizedKey)
	assert.ErrorIs(t, c.Put("k", strings.Repeat("v", 256*1024+1)), protocol.ErrOversizedValue)
	assert.ErrorIs(t, c.Put("", "v"), protocol.ErrFormat)
}

func TestClientPreservesPayload(t *testing.T) {
	c := New(startServer(t))
	value := "multi\nline <xml> & \"quotes\"\ttabs"
	require.NoError(t, c.Put("odd key", value))
	got, err := c.Get("odd key")
	require.NoError(t, err)
	assert.Equal(t, value, got)
}

func TestClientConnectError(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	c := New(addr, WithTimeout(200*time.Millisecond))
	_, err = c.Get("a")
	assert.ErrorIs(t, err, protocol.ErrTransport)
	assert.Equal(t, "Network Error: Could not connect", protocol.StatusText(err))
	assert.ErrorIs(t, c.Ping(), protocol.ErrTransport)
}
