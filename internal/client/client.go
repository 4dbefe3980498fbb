package client

import (
	"errors"
	"net"
	"time"

	"github.com/leonardcser/kvd/internal/protocol"
)

// DefaultTimeout bounds dialing and each request/response exchange.
const DefaultTimeout = 5 * time.Second

// Client talks to a kvd server over TCP, one connection per request.
type Client struct {
	addr    string
	timeout time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func New(addr string, opts ...Option) *Client {
	c := &Client{addr: addr, timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Addr returns the server address.
func (c *Client) Addr() string { return c.addr }

// Get returns the value stored under key. A missing key yields
// protocol.ErrKeyNotFound.
func (c *Client) Get(key string) (string, error) {
	resp, err := c.do(protocol.NewGet(key))
	if err != nil {
		return "", err
	}
	if !resp.HasKeyValue() {
		return "", errors.New("kvd: get response without value")
	}
	return resp.Value, nil
}

// Put stores value under key.
func (c *Client) Put(key, value string) error {
	_, err := c.do(protocol.NewPut(key, value))
	return err
}

// Delete removes key. A missing key yields protocol.ErrKeyNotFound.
func (c *Client) Delete(key string) error {
	_, err := c.do(protocol.NewDel(key))
	return err
}

// Ping checks that the server accepts connections.
func (c *Client) Ping() error {
	conn, err := net.DialTimeout("tcp", c.addr, c.timeout)
	if err != nil {
		return protocol.ConnectError(err)
	}
	return conn.Close()
}

// do sends req and returns the response, converting error responses into
// typed errors.
func (c *Client) do(req protocol.Message) (protocol.Message, error) {
	var resp protocol.Message
	err := c.withConn(func(conn net.Conn) error {
		if err := protocol.Encode(conn, req); err != nil {
			return err
		}
		if cw, ok := conn.(interface{ CloseWrite() error }); ok {
			if err := cw.CloseWrite(); err != nil {
				return protocol.SendError(err)
			}
		}
		m, err := protocol.Decode(conn)
		if err != nil {
			return err
		}
		resp = m
		return protocol.ResponseError(m)
	})
	return resp, err
}

func (c *Client) withConn(fn func(conn net.Conn) error) error {
	conn, err := net.DialTimeout("tcp", c.addr, c.timeout)
	if err != nil {
		return protocol.ConnectError(err)
	}
	defer conn.Close()
	if err := conn.SetDeadline(time.Now().Add(c.timeout)); err != nil {
		return protocol.ConnectError(err)
	}
	return fn(conn)
}
