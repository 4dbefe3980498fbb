package server

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/leonardcser/kvd/internal/cache"
	"github.com/leonardcser/kvd/internal/logger"
	"github.com/leonardcser/kvd/internal/pool"
	"github.com/leonardcser/kvd/internal/protocol"
	"github.com/leonardcser/kvd/internal/store"
)

// lingerTimeout bounds how long a finished connection is drained before it is
// closed. Closing with unread input makes TCP reset the connection, which can
// destroy a response the client has not read yet.
const lingerTimeout = 100 * time.Millisecond

// Accept failures such as EMFILE are retried after a doubling delay.
const (
	minAcceptBackoff = 5 * time.Millisecond
	maxAcceptBackoff = time.Second
)

// Config describes the shape of a server.
type Config struct {
	Addr           string
	NumSets        int
	MaxElemsPerSet int
	PoolSize       int
	// AcceptRate caps accepted connections per second. Zero means unlimited.
	AcceptRate float64
}

// Server accepts connections and hands each one to the worker pool. A worker
// decodes one request, runs it through the Router and writes one response.
//
// In-flight requests have no timeout: a worker blocked on a slow client or a
// contended set lock stays blocked.
type Server struct {
	cfg     Config
	cache   *cache.Cache
	pool    *pool.Pool
	router  *Router
	limiter *rate.Limiter

	mu       sync.Mutex
	listener net.Listener
	closed   bool
}

// New builds a server over st. The server does not own st; the caller closes
// it after Close returns.
func New(cfg Config, st store.Store) (*Server, error) {
	if st == nil {
		return nil, errors.New("server: nil store")
	}
	c, err := cache.New(cfg.NumSets, cfg.MaxElemsPerSet)
	if err != nil {
		return nil, err
	}
	s := &Server{
		cfg:    cfg,
		cache:  c,
		pool:   pool.New(cfg.PoolSize),
		router: NewRouter(c, st),
	}
	if cfg.AcceptRate > 0 {
		burst := int(cfg.AcceptRate)
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(cfg.AcceptRate), burst)
	}
	return s, nil
}

// Cache exposes the cache for diagnostics.
func (s *Server) Cache() *cache.Cache { return s.cache }

// Pool exposes the worker pool for diagnostics.
func (s *Server) Pool() *pool.Pool { return s.pool }

// Router returns the request router.
func (s *Server) Router() *Router { return s.router }

// Addr returns the listening address, or nil before Serve is called.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// ListenAndServe listens on cfg.Addr and serves until ctx is done or Close
// is called.
func (s *Server) ListenAndServe(ctx context.Context) error {
	l, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, l)
}

// Serve accepts connections on l until ctx is done or Close is called. It
// returns nil on an orderly stop.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = l.Close()
		return pool.ErrClosed
	}
	s.listener = l
	s.mu.Unlock()

	stop := context.AfterFunc(ctx, func() { _ = l.Close() })
	defer stop()

	logger.Infof("server: listening on %s (sets=%d, per-set=%d, workers=%d)",
		l.Addr(), s.cache.NumSets(), s.cache.MaxElemsPerSet(), s.pool.Size())

	var backoff time.Duration
	for {
		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				return nil
			}
		}
		conn, err := l.Accept()
		if err != nil {
			if s.stopping(ctx) || errors.Is(err, net.ErrClosed) {
				return nil
			}
			if backoff == 0 {
				backoff = minAcceptBackoff
			} else if backoff *= 2; backoff > maxAcceptBackoff {
				backoff = maxAcceptBackoff
			}
			logger.Warnf("server: accept: %v; retrying in %v", err, backoff)
			t := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				t.Stop()
				return nil
			case <-t.C:
			}
			continue
		}
		backoff = 0
		if err := s.pool.Submit(func() { s.handleConn(conn) }); err != nil {
			_ = conn.Close()
			return nil
		}
	}
}

// Close stops accepting connections, waits for queued connections to be
// served and stops the workers. Close is safe to call multiple times.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	l := s.listener
	s.mu.Unlock()

	var err error
	if l != nil {
		if cerr := l.Close(); cerr != nil && !errors.Is(cerr, net.ErrClosed) {
			err = cerr
		}
	}
	s.pool.Close()
	return err
}

func (s *Server) stopping(ctx context.Context) bool {
	if ctx.Err() != nil {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// handleConn serves exactly one request on conn.
func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()
	remote := conn.RemoteAddr()

	var resp protocol.Message
	req, err := protocol.Decode(conn)
	if err != nil {
		logger.Warnf("server: %s: decode: %v", remote, err)
		resp = protocol.ErrorResponse(err)
	} else {
		resp = s.router.Handle(req)
		logger.Debugf("server: %s: %s %q -> %s", remote, req.Type, req.Key, describe(resp))
	}

	if err := protocol.Encode(conn, resp); err != nil {
		logger.Errorf("server: %s: send response: %v", remote, err)
		return
	}
	if cw, ok := conn.(interface{ CloseWrite() error }); ok {
		if err := cw.CloseWrite(); err != nil {
			logger.Warnf("server: %s: close write: %v", remote, err)
			return
		}
	}
	_ = conn.SetReadDeadline(time.Now().Add(lingerTimeout))
	_, _ = io.Copy(io.Discard, conn)
}

func describe(m protocol.Message) string {
	if m.HasKeyValue() {
		return "value"
	}
	return m.Text
}
