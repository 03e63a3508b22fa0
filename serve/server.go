package main

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"

	chordlet "github.com/Paranoid-AF/chordlet"
	"github.com/Paranoid-AF/chordlet/observe"
	"github.com/Paranoid-AF/chordlet/service"
	"github.com/Paranoid-AF/chordlet/session"
)

// ServiceFactory builds the remote collaborators for one connection and
// returns a function releasing them.
type ServiceFactory func(cfg *chordlet.Config) (session.Services, func())

// RemoteServices is the default ServiceFactory: an HTTP client to the
// configured service, behind the suggestion cache when enabled.
func RemoteServices(cfg *chordlet.Config) (session.Services, func()) {
	stack := service.NewStack(cfg, chordlet.ResolveUserID(cfg))
	return session.NewServices(stack), stack.Close
}

// Server listens on a Unix domain socket. Each connection is one typing
// session.
type Server struct {
	listener    net.Listener
	sockPath    string
	newServices ServiceFactory
	metrics     *observe.Metrics

	mu    sync.Mutex
	cfg   *chordlet.Config
	conns map[net.Conn]struct{}
}

// NewServer creates a server bound to sockPath that talks to the service
// configured in cfg.
func NewServer(sockPath string, cfg *chordlet.Config, metrics *observe.Metrics) (*Server, error) {
	return NewServerWithServices(sockPath, cfg, metrics, RemoteServices)
}

// NewServerWithServices creates a server with a custom ServiceFactory.
func NewServerWithServices(sockPath string, cfg *chordlet.Config, metrics *observe.Metrics, factory ServiceFactory) (*Server, error) {
	// Remove stale socket file if it exists
	if err := os.Remove(sockPath); err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	listener, err := net.Listen("unix", sockPath)
	if err != nil {
		return nil, err
	}

	return &Server{
		listener:    listener,
		sockPath:    sockPath,
		newServices: factory,
		metrics:     metrics,
		cfg:         cfg,
		conns:       make(map[net.Conn]struct{}),
	}, nil
}

// Serve accepts connections until the listener is closed.
func (s *Server) Serve() error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return err
		}
		go s.handleConn(conn)
	}
}

// Close stops accepting, drops open connections and removes the socket file.
func (s *Server) Close() {
	s.listener.Close()
	os.Remove(s.sockPath)

	s.mu.Lock()
	for c := range s.conns {
		c.Close()
	}
	s.mu.Unlock()
}

// Config returns the configuration new sessions start with.
func (s *Server) Config() *chordlet.Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// Reload re-reads the config file. Running sessions keep their settings; a
// config that fails to load leaves the current one in place.
func (s *Server) Reload() (*chordlet.Config, error) {
	cfg, err := chordlet.LoadConfig()
	if err != nil {
		slog.Warn("config reload failed", "error", err)
		return nil, err
	}
	for _, w := range chordlet.ValidateConfig(cfg) {
		slog.Warn("config", "warning", w)
	}
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
	slog.Info("config reloaded", "path", chordlet.ConfigPath())
	return cfg, nil
}

func (s *Server) track(conn net.Conn, open bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if open {
		s.conns[conn] = struct{}{}
	} else {
		delete(s.conns, conn)
	}
}

// lineWriter serializes JSON lines written from the connection goroutine and
// the session goroutine.
type lineWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (lw *lineWriter) write(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("failed to marshal response", "error", err)
		return
	}
	slog.Debug("response", "data", string(data))

	lw.mu.Lock()
	defer lw.mu.Unlock()
	lw.w.Write(append(data, '\n'))
}

func (lw *lineWriter) fail(code, msg string) {
	lw.write(chordlet.ErrorResponse{Error: &chordlet.Error{Code: code, Message: msg}})
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()
	s.track(conn, true)
	defer s.track(conn, false)

	scanner := bufio.NewScanner(conn)
	if !scanner.Scan() {
		return
	}
	raw := scanner.Bytes()
	slog.Debug("request", "data", string(raw))

	out := &lineWriter{w: conn}

	// Check if this is a config request (has "action" field)
	var cfgReq chordlet.ConfigRequest
	if err := json.Unmarshal(raw, &cfgReq); err == nil && cfgReq.Action != "" {
		s.handleConfigRequest(out, &cfgReq)
		return
	}

	cfg := s.Config()
	svc, release := s.newServices(cfg)
	defer release()

	opts := session.OptionsFromConfig(cfg)
	opts.Metrics = s.metrics
	opts.OnChange = func(v chordlet.View) { out.write(v) }
	sess := session.New(opts, svc)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		sess.Run(ctx)
	}()
	defer func() {
		cancel()
		<-done
	}()

	s.handleEvent(ctx, sess, out, raw)
	for scanner.Scan() {
		raw := scanner.Bytes()
		slog.Debug("request", "data", string(raw))
		s.handleEvent(ctx, sess, out, raw)
	}
}

func (s *Server) handleEvent(ctx context.Context, sess *session.Session, out *lineWriter, raw []byte) {
	var ev chordlet.KeyEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		slog.Warn("invalid event", "error", err)
		out.fail("invalid_event", err.Error())
		return
	}

	switch ev.Type {
	case chordlet.EventKeyDown:
		sess.KeyDown(ev.Key)
	case chordlet.EventKeyUp:
		sess.KeyUp(ev.Key)
	case chordlet.EventAccept:
		switch {
		case ev.Candidate != "":
			sess.Accept(ev.Candidate)
		case ev.Index != nil:
			sess.AcceptIndex(*ev.Index)
		default:
			out.fail("invalid_event", "accept needs a candidate or an index")
		}
	case chordlet.EventFinish:
		sess.Finish()
	case chordlet.EventView:
		v, err := sess.View(ctx)
		if err != nil {
			return
		}
		out.write(v)
	default:
		out.fail("invalid_event", "unknown event type: "+ev.Type)
	}
}

func (s *Server) handleConfigRequest(out *lineWriter, req *chordlet.ConfigRequest) {
	var resp chordlet.ConfigResponse

	switch req.Action {
	case "get":
		resp.Config = s.Config()

	case "reload":
		cfg, err := s.Reload()
		if err != nil {
			resp.Error = &chordlet.Error{
				Code:    "config_error",
				Message: err.Error(),
			}
		} else {
			resp.Config = cfg
		}

	case "defaults":
		resp.Config = chordlet.DefaultConfig()

	case "validate":
		cfg, err := chordlet.LoadConfig()
		if err != nil {
			resp.Error = &chordlet.Error{
				Code:    "config_error",
				Message: err.Error(),
			}
		} else {
			resp.Warnings = chordlet.ValidateConfig(cfg)
		}

	default:
		resp.Error = &chordlet.Error{
			Code:    "unknown_action",
			Message: "unknown config action: " + req.Action,
		}
	}

	out.write(resp)
}
