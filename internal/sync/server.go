package sync

import (
	"bufio"
	"errors"
	"log"
	"net"
	"sync"
)

// Server accepts TCP subscribers for the borrow event feed. Clients receive
// one JSON event per line; anything they send is ignored.
type Server struct {
	Addr string
	Hub  *Hub

	mu     sync.Mutex
	ln     net.Listener
	closed bool
}

func NewServer(addr string, hub *Hub) *Server {
	return &Server{Addr: addr, Hub: hub}
}

func (s *Server) Run() error {
	if s.isClosed() {
		return nil
	}
	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve accepts on ln until Close is called. After Close it closes ln and
// returns at once.
func (s *Server) Serve(ln net.Listener) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ln.Close()
	}
	s.ln = ln
	s.mu.Unlock()
	log.Printf("[tcp-sync] listening on %s", ln.Addr())

	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			log.Printf("[tcp-sync] accept: %v", err)
			continue
		}

		s.Hub.Welcome(conn)
		s.Hub.Add(conn)
		log.Printf("[tcp-sync] client connected: %s", conn.RemoteAddr())

		go s.drain(conn)
	}
}

func (s *Server) drain(c net.Conn) {
	defer func() {
		s.Hub.Remove(c)
		log.Printf("[tcp-sync] client disconnected: %s", c.RemoteAddr())
	}()

	sc := bufio.NewScanner(c)
	for sc.Scan() {
	}
}

func (s *Server) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.ln == nil {
		return nil
	}
	return s.ln.Close()
}
