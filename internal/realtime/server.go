// Package realtime answers JSON frames over websocket connections, one reply
// per inbound frame.
package realtime

import (
	"context"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/charlesng35/skycast/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 << 10

	defaultBufferSize = 16
)

// Handler produces the reply frame for one inbound payload. The returned
// value is written as JSON.
type Handler func(ctx context.Context, payload []byte) any

// Server upgrades requests and pumps frames through a Handler.
type Server struct {
	upgrader websocket.Upgrader
	origins  []string
}

// NewServer accepts same-host and loopback origins plus the listed ones. A
// "*" entry accepts any origin.
func NewServer(allowedOrigins ...string) *Server {
	s := &Server{}
	for _, origin := range allowedOrigins {
		if origin = strings.TrimRight(strings.TrimSpace(origin), "/"); origin != "" {
			s.origins = append(s.origins, origin)
		}
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range s.origins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	originHost := hostWithoutPort(origin)
	return originHost == hostWithoutPort(r.Host) || isLoopback(originHost)
}

// Serve upgrades the connection and blocks until the peer goes away or the
// request context ends. Either way the peer receives a close frame.
func (s *Server) Serve(w http.ResponseWriter, r *http.Request, userID string, handle Handler) {
	log := logger.WithModule("realtime")

	socket, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("upgrade failed", zap.String("user_id", userID), zap.Error(err))
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	conn := &connection{
		socket: socket,
		userID: userID,
		send:   make(chan any, defaultBufferSize),
		done:   make(chan struct{}),
		closed: make(chan struct{}),
	}
	go conn.writeLoop()
	go func() {
		select {
		case <-ctx.Done():
			conn.stop()
		case <-conn.done:
		}
	}()

	conn.readLoop(ctx, handle)
	<-conn.closed
}

// connection splits ownership of the socket: readLoop only reads, writeLoop
// does every write and the final Close.
type connection struct {
	socket *websocket.Conn
	userID string
	send   chan any
	done   chan struct{}
	closed chan struct{}
	once   sync.Once
}

func (c *connection) readLoop(ctx context.Context, handle Handler) {
	defer c.stop()

	c.socket.SetReadLimit(maxMessageSize)
	_ = c.socket.SetReadDeadline(time.Now().Add(pongWait))
	c.socket.SetPongHandler(func(string) error {
		_ = c.socket.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, payload, err := c.socket.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.WithModule("realtime").Debug("unexpected close",
					zap.String("user_id", c.userID),
					zap.Error(err),
				)
			}
			return
		}
		if len(payload) == 0 {
			continue
		}

		reply := handle(ctx, payload)
		select {
		case c.send <- reply:
		case <-c.done:
			return
		}
	}
}

func (c *connection) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.stop()
		_ = c.socket.Close()
		close(c.closed)
	}()

	for {
		select {
		case <-c.done:
			_ = c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.socket.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case frame := <-c.send:
			_ = c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.socket.WriteJSON(frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.socket.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *connection) stop() {
	c.once.Do(func() {
		close(c.done)
	})
}

func hostWithoutPort(host string) string {
	host = strings.TrimSpace(host)
	if host == "" {
		return ""
	}
	if strings.HasPrefix(host, "http://") || strings.HasPrefix(host, "https://") {
		if parsed, err := url.Parse(host); err == nil {
			return hostWithoutPort(parsed.Host)
		}
	}
	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	return host
}

func isLoopback(host string) bool {
	if ip := net.ParseIP(host); ip != nil {
		return ip.IsLoopback()
	}
	return strings.EqualFold(host, "localhost")
}
