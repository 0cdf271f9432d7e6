// Package kasatest provides an in-process smart plug for tests and demos,
// in the spirit of net/http/httptest.
package kasatest

import (
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/jpalmerr/meterpulse/internal/kasa"
)

// Handler answers one decrypted request with a plaintext response.
// Returning nil closes the connection without replying.
type Handler func(req []byte) []byte

// Server is a TCP listener speaking the smart-home framing.
type Server struct {
	// Addr is the host:port the server listens on.
	Addr string

	ln      net.Listener
	handler Handler

	mu     sync.Mutex
	conns  map[net.Conn]struct{}
	closed bool
}

// NewServer starts a server on a loopback port. It panics if it cannot
// listen, as httptest.NewServer does.
func NewServer(h Handler) *Server {
	return newServer("127.0.0.1:0", h)
}

// NewServerAt starts a server on addr.
func NewServerAt(addr string, h Handler) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return start(ln, h), nil
}

func newServer(addr string, h Handler) *Server {
	s, err := NewServerAt(addr, h)
	if err != nil {
		panic(fmt.Sprintf("kasatest: failed to listen: %v", err))
	}
	return s
}

func start(ln net.Listener, h Handler) *Server {
	s := &Server{
		Addr:    ln.Addr().String(),
		ln:      ln,
		handler: h,
		conns:   make(map[net.Conn]struct{}),
	}
	go s.serve()
	return s
}

func (s *Server) serve() {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			_ = conn.Close()
			return
		}
		s.conns[conn] = struct{}{}
		s.mu.Unlock()

		go s.handle(conn)
	}
}

func (s *Server) handle(conn net.Conn) {
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		_ = conn.Close()
	}()

	req, err := kasa.ReadFrame(conn)
	if err != nil {
		return
	}
	resp := s.handler(req)
	if resp == nil {
		return
	}
	_ = kasa.WriteFrame(conn, resp)
}

// Close stops listening and drops open connections.
func (s *Server) Close() {
	s.mu.Lock()
	s.closed = true
	for c := range s.conns {
		_ = c.Close()
	}
	s.mu.Unlock()
	_ = s.ln.Close()
}

// Plug simulates an HS110 with a fixed alias and meter reading.
//
// Plug is safe for concurrent use; fields may be changed between requests
// through the setters.
type Plug struct {
	mu       sync.Mutex
	alias    string
	realtime map[string]any
	delay    time.Duration
}

// NewPlug creates a plug reporting alias and realtime.
func NewPlug(alias string, realtime map[string]any) *Plug {
	return &Plug{alias: alias, realtime: realtime}
}

// SetRealtime replaces the reported meter fields.
func (p *Plug) SetRealtime(realtime map[string]any) {
	p.mu.Lock()
	p.realtime = realtime
	p.mu.Unlock()
}

// SetDelay makes every response wait d before being sent.
func (p *Plug) SetDelay(d time.Duration) {
	p.mu.Lock()
	p.delay = d
	p.mu.Unlock()
}

// Handle implements [Handler].
func (p *Plug) Handle(req []byte) []byte {
	p.mu.Lock()
	alias, delay := p.alias, p.delay
	realtime := make(map[string]any, len(p.realtime)+1)
	for k, v := range p.realtime {
		realtime[k] = v
	}
	p.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(req, &probe); err != nil {
		return []byte(`{"err_code":-1,"err_msg":"bad request"}`)
	}

	var resp any
	switch {
	case probe["emeter"] != nil:
		realtime["err_code"] = 0
		resp = map[string]any{"emeter": map[string]any{"get_realtime": realtime}}
	case probe["system"] != nil:
		resp = map[string]any{"system": map[string]any{"get_sysinfo": map[string]any{
			"alias":    alias,
			"model":    "HS110(EU)",
			"err_code": 0,
		}}}
	default:
		return []byte(`{"err_code":-2,"err_msg":"module not support"}`)
	}

	out, err := json.Marshal(resp)
	if err != nil {
		return nil
	}
	return out
}
