// Package rpc is a small JSON-over-TCP RPC layer for internal callers such
// as triagectl. The protocol is newline-delimited JSON on a persistent
// connection: one Request in, one Response out, in order.
//
//	s := rpc.NewServer()
//	s.Register("TriageService.Predict", handler)
//	go s.ListenAndServe(":9100")
//
//	c, _ := rpc.Dial(ctx, "localhost:9100")
//	var resp proto.PredictResponse
//	err := c.Call(ctx, "TriageService.Predict", &proto.PredictRequest{Symptoms: names}, &resp)
package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/symptom-triage/pkg/logger"
)

// HandlerFunc processes the raw params of one call.
type HandlerFunc func(ctx context.Context, params json.RawMessage) (any, error)

// Request is the wire format of a call.
type Request struct {
	Method string          `json:"method"`
	ID     string          `json:"id"`
	Params json.RawMessage `json:"params"`
}

// Response is the wire format of a reply. Exactly one of Data and Error is set.
type Response struct {
	ID    string          `json:"id"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error string          `json:"error,omitempty"`
}

// Server dispatches calls to registered handlers.
type Server struct {
	handlers map[string]HandlerFunc
	mu       sync.RWMutex
	lnMu     sync.Mutex
	listener net.Listener
	conns    map[net.Conn]struct{}
	wg       sync.WaitGroup
	done     chan struct{}
	stopOnce sync.Once
	logger   *slog.Logger
}

// NewServer creates a Server with no methods.
func NewServer() *Server {
	return &Server{
		handlers: make(map[string]HandlerFunc),
		conns:    make(map[net.Conn]struct{}),
		done:     make(chan struct{}),
		logger:   slog.Default().With("component", "rpc-server"),
	}
}

// Register adds a handler. Method names follow "Service.Method".
func (s *Server) Register(method string, handler HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[method] = handler
	s.logger.Debug("method registered", "method", method)
}

// MethodCount returns the number of registered methods.
func (s *Server) MethodCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.handlers)
}

// ListenAndServe listens on addr and serves until Stop.
func (s *Server) ListenAndServe(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until Stop. It returns nil after Stop.
func (s *Server) Serve(ln net.Listener) error {
	s.lnMu.Lock()
	s.listener = ln
	s.lnMu.Unlock()
	s.logger.Info("rpc server listening", "addr", ln.Addr().String())

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-s.done:
				return nil
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.logger.Error("accept error", "error", err)
			continue
		}
		s.track(conn, true)
		s.wg.Add(1)
		go s.handleConn(conn)
	}
}

func (s *Server) track(conn net.Conn, add bool) {
	s.lnMu.Lock()
	defer s.lnMu.Unlock()
	if add {
		s.conns[conn] = struct{}{}
	} else {
		delete(s.conns, conn)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer s.wg.Done()
	defer s.track(conn, false)
	defer conn.Close()

	decoder := json.NewDecoder(conn)
	encoder := json.NewEncoder(conn)
	for {
		var req Request
		if err := decoder.Decode(&req); err != nil {
			return
		}
		resp := s.dispatch(req)
		if err := encoder.Encode(resp); err != nil {
			s.logger.Error("write error", "method", req.Method, "error", err)
			return
		}
	}
}

func (s *Server) dispatch(req Request) (resp Response) {
	resp.ID = req.ID
	s.mu.RLock()
	handler, exists := s.handlers[req.Method]
	s.mu.RUnlock()
	if !exists {
		resp.Error = fmt.Sprintf("unknown method: %s", req.Method)
		return resp
	}

	defer func() {
		if p := recover(); p != nil {
			s.logger.Error("panic in rpc handler", "method", req.Method, "panic", p)
			resp.Data = nil
			resp.Error = "internal error"
		}
	}()

	ctx := logger.WithRequestID(context.Background(), req.ID)
	data, err := handler(ctx, req.Params)
	if err != nil {
		resp.Error = err.Error()
		return resp
	}
	raw, err := json.Marshal(data)
	if err != nil {
		s.logger.Error("marshal error", "method", req.Method, "error", err)
		resp.Error = "internal error"
		return resp
	}
	resp.Data = raw
	return resp
}

// Stop closes the listener and every open connection, then waits for
// in-flight calls to finish.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
		s.lnMu.Lock()
		if s.listener != nil {
			s.listener.Close()
		}
		for conn := range s.conns {
			conn.Close()
		}
		s.lnMu.Unlock()
		s.wg.Wait()
		s.logger.Info("rpc server stopped")
	})
}
