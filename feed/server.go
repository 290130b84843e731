package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	handshakeTimeout = 5 * time.Second
	writeTimeout     = 10 * time.Second
	idleTimeout      = 60 * time.Second
)

// Server accepts observer connections on a loopback address and fans
// the latest frame out to every subscriber. It never blocks the caller
// of Publish: slow clients skip frames instead of stalling the run.
type Server struct {
	welcome  WelcomeMsg
	upgrader websocket.Upgrader
	commands chan string

	mu      sync.Mutex
	clients map[*client]struct{}

	httpSrv *http.Server
	ln      net.Listener
}

type client struct {
	conn  *websocket.Conn
	out   chan []byte
	every int64
}

// NewServer builds a feed server that greets subscribers with the
// given static world description.
func NewServer(welcome WelcomeMsg) *Server {
	return &Server{
		welcome: welcome,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 << 10,
			WriteBufferSize: 64 << 10,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		commands: make(chan string, 16),
		clients:  make(map[*client]struct{}),
	}
}

// Start binds addr and begins serving in the background. The returned
// error covers the bind only; serve errors after that are logged.
func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("feed listen on %s: %w", addr, err)
	}
	s.ln = ln
	mux := http.NewServeMux()
	mux.HandleFunc("/feed", s.handleFeed)
	s.httpSrv = &http.Server{Handler: mux}
	go func() {
		if err := s.httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("feed server stopped", "err", err)
		}
	}()
	slog.Info("feed listening", "addr", ln.Addr().String())
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

// Commands returns the queue of run-control commands received from
// clients. The owning loop drains it between ticks.
func (s *Server) Commands() <-chan string { return s.commands }

// ClientCount reports the number of connected subscribers.
func (s *Server) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// Publish sends a frame to every subscriber whose stride matches the
// frame's tick. A client that has not drained its previous frame gets
// the new one in its place.
func (s *Server) Publish(f FrameMsg) {
	f.Type = TypeFrame
	f.ProtocolVersion = Version
	b, err := json.Marshal(f)
	if err != nil {
		slog.Error("feed frame marshal", "err", err)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		if c.every > 1 && f.Tick%c.every != 0 {
			continue
		}
		select {
		case c.out <- b:
		default:
			select {
			case <-c.out:
			default:
			}
			select {
			case c.out <- b:
			default:
			}
		}
	}
}

// Shutdown notifies clients, stops the listener, and closes any
// sockets still open. Hijacked websocket connections are not tracked
// by http.Server.Shutdown, so they are closed explicitly.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	open := make([]*client, 0, len(s.clients))
	for c := range s.clients {
		open = append(open, c)
	}
	s.mu.Unlock()
	for _, c := range open {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye")
		_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	}
	var err error
	if s.httpSrv != nil {
		err = s.httpSrv.Shutdown(ctx)
	}
	for _, c := range open {
		_ = c.conn.Close()
	}
	return err
}

func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	if !isLoopbackRemote(r.RemoteAddr) {
		http.Error(w, "feed is loopback only", http.StatusForbidden)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("feed upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	sub, err := readSubscribe(conn)
	if err != nil {
		slog.Debug("feed handshake rejected", "err", err)
		return
	}
	if err := writeJSON(conn, s.welcomeMsg()); err != nil {
		return
	}

	c := &client{conn: conn, out: make(chan []byte, 1), every: strideOf(sub)}
	s.register(c)
	defer s.unregister(c)

	writeErr := make(chan error, 1)
	go func() {
		for b := range c.out {
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
				select {
				case writeErr <- err:
				default:
				}
				return
			}
		}
	}()

	for {
		select {
		case err := <-writeErr:
			slog.Debug("feed client write failed", "err", err)
			return
		default:
		}
		conn.SetReadDeadline(time.Now().Add(idleTimeout))
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		s.handleClientMessage(c, data)
	}
}

func (s *Server) register(c *client) {
	s.mu.Lock()
	s.clients[c] = struct{}{}
	n := len(s.clients)
	s.mu.Unlock()
	slog.Info("feed client connected", "clients", n)
}

func (s *Server) unregister(c *client) {
	s.mu.Lock()
	_, ok := s.clients[c]
	if ok {
		delete(s.clients, c)
		close(c.out)
	}
	n := len(s.clients)
	s.mu.Unlock()
	if ok {
		slog.Info("feed client disconnected", "clients", n)
	}
}

func (s *Server) handleClientMessage(c *client, data []byte) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		slog.Debug("feed client sent malformed message", "err", err)
		return
	}
	switch env.Type {
	case TypeSubscribe:
		var sub SubscribeMsg
		if err := json.Unmarshal(data, &sub); err != nil {
			return
		}
		s.mu.Lock()
		c.every = strideOf(sub)
		s.mu.Unlock()
	case TypeCommand:
		var cmd CommandMsg
		if err := json.Unmarshal(data, &cmd); err != nil {
			return
		}
		switch cmd.Command {
		case CmdPause, CmdResume, CmdStep:
			select {
			case s.commands <- cmd.Command:
			default:
				slog.Warn("feed command queue full, dropping", "command", cmd.Command)
			}
		default:
			slog.Debug("feed client sent unknown command", "command", cmd.Command)
		}
	default:
		slog.Debug("feed client sent unknown message type", "type", env.Type)
	}
}

func (s *Server) welcomeMsg() WelcomeMsg {
	w := s.welcome
	w.Type = TypeWelcome
	w.ProtocolVersion = Version
	return w
}

func readSubscribe(conn *websocket.Conn) (SubscribeMsg, error) {
	var sub SubscribeMsg
	conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	_, data, err := conn.ReadMessage()
	if err != nil {
		return sub, fmt.Errorf("read subscribe: %w", err)
	}
	if err := json.Unmarshal(data, &sub); err != nil {
		closeWith(conn, websocket.ClosePolicyViolation, "malformed subscribe")
		return sub, fmt.Errorf("decode subscribe: %w", err)
	}
	if sub.Type != TypeSubscribe {
		closeWith(conn, websocket.ClosePolicyViolation, "expected SUBSCRIBE")
		return sub, fmt.Errorf("unexpected first message %q", sub.Type)
	}
	if sub.ProtocolVersion != Version {
		closeWith(conn, websocket.ClosePolicyViolation, "unsupported protocol version")
		return sub, fmt.Errorf("unsupported protocol version %q", sub.ProtocolVersion)
	}
	return sub, nil
}

func strideOf(sub SubscribeMsg) int64 {
	if sub.EveryTick < 1 {
		return 1
	}
	return int64(sub.EveryTick)
}

func writeJSON(conn *websocket.Conn, v any) error {
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteJSON(v)
}

func closeWith(conn *websocket.Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
}

func isLoopbackRemote(remoteAddr string) bool {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
