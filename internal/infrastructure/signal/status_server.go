package signal

import (
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"interviewroom/internal/core/domain"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	MessageStatus  = "status"
	MessageError   = "error"
	MessageMount   = "mount"
	MessageUnmount = "unmount"
)

// StatusSource is the call whose status is streamed.
type StatusSource interface {
	Subscribe() (<-chan domain.CallStatus, func())
}

// ViewMounter is told when the UI mounts or removes the view of a remote participant.
type ViewMounter interface {
	Mount(remoteID domain.UserID)
	Unmount(remoteID domain.UserID)
}

// ServerMessage is what the status stream sends to the UI.
type ServerMessage struct {
	Type    string             `json:"type"`
	Status  *domain.CallStatus `json:"status,omitempty"`
	Message string             `json:"message,omitempty"`
}

// ClientMessage is what the UI may send on the status stream.
type ClientMessage struct {
	Type     string        `json:"type"`
	RemoteID domain.UserID `json:"remote_id,omitempty"`
}

type Options struct {
	AllowedOrigins []string
	PingInterval   time.Duration
	PongTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxMessageSize int64
}

func DefaultOptions() Options {
	return Options{
		PingInterval:   30 * time.Second,
		PongTimeout:    60 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxMessageSize: 4096,
	}
}

// StatusServer streams call status snapshots to UI clients over websocket.
type StatusServer struct {
	opts     Options
	upgrader websocket.Upgrader
	mounter  ViewMounter

	mu    sync.RWMutex
	conns map[string]*websocket.Conn

	logger *zap.SugaredLogger
}

// NewStatusServer creates the server. mounter may be nil, in which case mount messages are ignored.
func NewStatusServer(opts Options, mounter ViewMounter, logger *zap.SugaredLogger) *StatusServer {
	defaults := DefaultOptions()
	if opts.PingInterval <= 0 {
		opts.PingInterval = defaults.PingInterval
	}
	if opts.PongTimeout <= opts.PingInterval {
		opts.PongTimeout = 2 * opts.PingInterval
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = defaults.WriteTimeout
	}
	if opts.MaxMessageSize <= 0 {
		opts.MaxMessageSize = defaults.MaxMessageSize
	}

	s := &StatusServer{
		opts:    opts,
		mounter: mounter,
		conns:   make(map[string]*websocket.Conn),
		logger:  logger,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

// checkOrigin accepts requests without an Origin header (non-browser clients) and browser
// requests whose origin is allowed. An empty allow list or "*" allows everything.
func (s *StatusServer) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(s.opts.AllowedOrigins) == 0 {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	for _, allowed := range s.opts.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) || strings.EqualFold(allowed, u.Host) {
			return true
		}
	}
	return false
}

// Serve upgrades the request and streams source until the call ends or the client goes away.
func (s *StatusServer) Serve(w http.ResponseWriter, r *http.Request, source StatusSource) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warnw("Websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	id := uuid.NewString()
	s.mu.Lock()
	s.conns[id] = conn
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.conns, id)
		s.mu.Unlock()
	}()

	log := s.logger.With("conn_id", id, "remote_addr", r.RemoteAddr)
	log.Infow("Status stream opened")

	statuses, unsubscribe := source.Subscribe()
	defer unsubscribe()

	conn.SetReadLimit(s.opts.MaxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(s.opts.PongTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(s.opts.PongTimeout))
	})

	replies := make(chan ServerMessage, 8)
	readErr := make(chan error, 1)
	go s.readLoop(conn, replies, readErr)

	ping := time.NewTicker(s.opts.PingInterval)
	defer ping.Stop()

	for {
		select {
		case status, ok := <-statuses:
			if !ok {
				s.closeWith(conn, websocket.CloseNormalClosure, "call ended")
				log.Infow("Status stream closed", "reason", "call ended")
				return
			}
			if err := s.write(conn, ServerMessage{Type: MessageStatus, Status: &status}); err != nil {
				log.Infow("Status stream closed", "reason", "write failed", "error", err)
				return
			}

		case reply := <-replies:
			if err := s.write(conn, reply); err != nil {
				log.Infow("Status stream closed", "reason", "write failed", "error", err)
				return
			}

		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(s.opts.WriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Infow("Status stream closed", "reason", "ping failed", "error", err)
				return
			}

		case err := <-readErr:
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Infow("Status stream read failed", "error", err)
			}
			log.Infow("Status stream closed", "reason", "client gone")
			return
		}
	}
}

func (s *StatusServer) readLoop(conn *websocket.Conn, replies chan<- ServerMessage, readErr chan<- error) {
	for {
		var msg ClientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			readErr <- err
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(s.opts.PongTimeout))

		if reply, ok := s.handle(msg); !ok {
			select {
			case replies <- reply:
			default:
			}
		}
	}
}

// handle applies a client message and returns an error reply when it is rejected.
func (s *StatusServer) handle(msg ClientMessage) (ServerMessage, bool) {
	switch msg.Type {
	case MessageMount, MessageUnmount:
		if msg.RemoteID == "" {
			return ServerMessage{Type: MessageError, Message: "remote_id is required"}, false
		}
		if s.mounter == nil {
			return ServerMessage{}, true
		}
		if msg.Type == MessageMount {
			s.mounter.Mount(msg.RemoteID)
		} else {
			s.mounter.Unmount(msg.RemoteID)
		}
		return ServerMessage{}, true
	}
	return ServerMessage{Type: MessageError, Message: "unknown message type " + msg.Type}, false
}

func (s *StatusServer) write(conn *websocket.Conn, msg ServerMessage) error {
	_ = conn.SetWriteDeadline(time.Now().Add(s.opts.WriteTimeout))
	return conn.WriteJSON(msg)
}

func (s *StatusServer) closeWith(conn *websocket.Conn, code int, text string) {
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, text), time.Now().Add(s.opts.WriteTimeout))
}

// ConnectedClients returns the number of open status streams.
func (s *StatusServer) ConnectedClients() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conns)
}

// CloseAll drops every open stream, used on shutdown.
func (s *StatusServer) CloseAll() {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, conn := range s.conns {
		s.closeWith(conn, websocket.CloseGoingAway, "server shutting down")
		_ = conn.Close()
	}
}
