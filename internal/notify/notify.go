// Package notify delivers borrow lifecycle events over UDP to the borrower
// they concern. A client registers by sending its API token; from then on it
// receives a datagram for every change to one of its requests.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net"
	"sync"
	"time"

	"bookhub/internal/policy"
	synchub "bookhub/internal/sync"
)

const (
	RegisterMessageType   = "register"
	RegisteredMessageType = "registered"
	ErrorMessageType      = "error"
	BorrowMessageType     = "borrow_update"
)

type RegisterMessage struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

type ReplyMessage struct {
	Type   string `json:"type"`
	UserID string `json:"user_id,omitempty"`
	Detail string `json:"detail,omitempty"`
}

type BorrowMessage struct {
	Type  string               `json:"type"`
	Event synchub.BorrowEvent `json:"event"`
}

// Authenticator resolves a raw API token to the caller.
type Authenticator interface {
	Authenticate(ctx context.Context, raw string) (policy.Identity, error)
}

type Client struct {
	UserID string
	Addr   *net.UDPAddr
}

// Registry keeps the latest address each user registered from.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]Client
}

func NewRegistry() *Registry {
	return &Registry{clients: make(map[string]Client)}
}

func (r *Registry) Register(userID string, addr *net.UDPAddr) {
	if userID == "" || addr == nil {
		return
	}
	r.mu.Lock()
	r.clients[userID] = Client{UserID: userID, Addr: addr}
	r.mu.Unlock()
}

func (r *Registry) Remove(userID string) {
	r.mu.Lock()
	delete(r.clients, userID)
	r.mu.Unlock()
}

func (r *Registry) Lookup(userID string) (Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[userID]
	return c, ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

type Server struct {
	addr     string
	auth     Authenticator
	registry *Registry
	logger   *log.Logger

	mu   sync.Mutex
	conn *net.UDPConn
}

func NewServer(addr string, auth Authenticator, registry *Registry, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	if registry == nil {
		registry = NewRegistry()
	}
	return &Server{addr: addr, auth: auth, registry: registry, logger: logger}
}

// Listen binds the UDP socket. Run calls it when the server is not bound yet.
func (s *Server) Listen() error {
	udpAddr, err := net.ResolveUDPAddr("udp", s.addr)
	if err != nil {
		return err
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
	s.logger.Printf("[udp-notify] listening on %s", conn.LocalAddr())
	return nil
}

// LocalAddr is nil until Listen succeeds.
func (s *Server) LocalAddr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	return s.conn.LocalAddr()
}

// Run reads registrations until Close is called.
func (s *Server) Run() error {
	conn := s.socket()
	if conn == nil {
		if err := s.Listen(); err != nil {
			return err
		}
		conn = s.socket()
	}

	buffer := make([]byte, 2048)
	for {
		n, addr, err := conn.ReadFromUDP(buffer)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		s.handle(conn, buffer[:n], addr)
	}
}

func (s *Server) handle(conn *net.UDPConn, data []byte, addr *net.UDPAddr) {
	msg, err := parseRegisterMessage(data)
	if err != nil {
		s.logger.Printf("[udp-notify] invalid message from %s: %v", addr, err)
		s.reply(conn, addr, ReplyMessage{Type: ErrorMessageType, Detail: err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	id, err := s.auth.Authenticate(ctx, msg.Token)
	if err != nil {
		s.reply(conn, addr, ReplyMessage{Type: ErrorMessageType, Detail: err.Error()})
		return
	}

	s.registry.Register(id.UserID, addr)
	s.logger.Printf("[udp-notify] registered %s (%s)", id.Username, addr)
	s.reply(conn, addr, ReplyMessage{Type: RegisteredMessageType, UserID: id.UserID})
}

func (s *Server) reply(conn *net.UDPConn, addr *net.UDPAddr, msg ReplyMessage) {
	b, err := json.Marshal(msg)
	if err != nil {
		return
	}
	_, _ = conn.WriteToUDP(b, addr)
}

// BroadcastJSON sends borrow events to the registered borrower only; any
// other payload is ignored. It lets the server sit beside the hub as an
// event publisher.
func (s *Server) BroadcastJSON(v any) {
	ev, ok := v.(synchub.BorrowEvent)
	if !ok {
		return
	}
	s.Notify(ev)
}

func (s *Server) Notify(ev synchub.BorrowEvent) {
	conn := s.socket()
	if conn == nil {
		return
	}
	client, ok := s.registry.Lookup(ev.BorrowerID)
	if !ok {
		return
	}

	payload, err := json.Marshal(BorrowMessage{Type: BorrowMessageType, Event: ev})
	if err != nil {
		s.logger.Printf("[udp-notify] marshal event: %v", err)
		return
	}
	s.sendWithRetry(conn, client, payload)
}

func (s *Server) sendWithRetry(conn *net.UDPConn, client Client, payload []byte) {
	if _, err := conn.WriteToUDP(payload, client.Addr); err == nil {
		return
	}
	if _, err := conn.WriteToUDP(payload, client.Addr); err != nil {
		s.logger.Printf("[udp-notify] failed to notify user %s at %s: %v", client.UserID, client.Addr, err)
		s.registry.Remove(client.UserID)
	}
}

func (s *Server) socket() *net.UDPConn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn
}

func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

func parseRegisterMessage(data []byte) (RegisterMessage, error) {
	var msg RegisterMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return msg, err
	}
	if msg.Type != RegisterMessageType {
		return msg, errors.New("unsupported message type")
	}
	if msg.Token == "" {
		return msg, errors.New("missing token")
	}
	return msg, nil
}
