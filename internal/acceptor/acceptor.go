// Package acceptor is the raw TCP accept loop and per-connection worker:
// one goroutine per accepted socket, upgraded to the framed protocol by
// internal/wsproto, fed one message at a time into the dispatcher.
// Generalizes the original server's accept() loop plus
// pthread_create(handle_client_connection, ...) from one thread per
// client to one goroutine per client.
package acceptor

import (
	"context"
	"net"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quietfen/chessd/internal/dispatcher"
	"github.com/quietfen/chessd/internal/obslog"
	"github.com/quietfen/chessd/internal/wsproto"
)

// Server owns the listening socket and hands every accepted connection to
// its own worker goroutine. It also keeps the live connID -> socket map
// that a match.BroadcastFunc needs to reach a specific connection from
// outside the read loop that owns it. Construct with New and call Serve
// once.
type Server struct {
	dispatch *dispatcher.Dispatcher

	mu    sync.Mutex
	conns map[string]*wsproto.Conn
}

func New(dispatch *dispatcher.Dispatcher) *Server {
	return &Server{dispatch: dispatch, conns: make(map[string]*wsproto.Conn)}
}

// SendToConn writes payload to connID's socket, if it is still open.
// Returns false if connID names no live connection — the composition
// root's broadcast callback treats that as "nothing to deliver to."
func (s *Server) SendToConn(connID string, payload []byte) bool {
	s.mu.Lock()
	conn := s.conns[connID]
	s.mu.Unlock()
	if conn == nil {
		return false
	}
	return conn.WriteText(payload) == nil
}

// Serve listens on addr and accepts connections until ctx is cancelled or
// the listener fails. Each accepted connection is handled on its own
// goroutine and never blocks the accept loop.
func (s *Server) Serve(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	defer ln.Close()

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	obslog.L().Info("acceptor: listening", zap.String("addr", addr))

	for {
		nc, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				obslog.L().Warn("acceptor: accept failed", zap.Error(err))
				continue
			}
		}
		go s.handleConn(ctx, nc)
	}
}

// handleConn performs the upgrade handshake, then loops reading one
// framed message at a time and dispatching it, until the connection
// breaks or the message loop is cancelled. Disconnect cleanup always
// runs, mirroring the original's unconditional
// remove_session_by_socket/close pairing after the receive loop exits.
func (s *Server) handleConn(ctx context.Context, nc net.Conn) {
	ip := remoteIP(nc)
	obslog.L().Info("acceptor: accepted connection", zap.String("ip", ip))

	conn, err := wsproto.Upgrade(nc)
	if err != nil {
		obslog.L().Warn("acceptor: handshake failed", zap.String("ip", ip), zap.Error(err))
		nc.Close()
		return
	}

	connID := uuid.NewString()
	s.mu.Lock()
	s.conns[connID] = conn
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.conns, connID)
		s.mu.Unlock()
		s.dispatch.HandleDisconnect(ctx, connID)
		conn.Close()
		obslog.L().Info("acceptor: connection closed", zap.String("ip", ip), zap.String("conn_id", connID))
	}()

	for {
		opcode, payload, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if opcode != wsproto.OpText && opcode != wsproto.OpBinary {
			continue
		}
		if len(payload) == 0 {
			continue
		}

		resp := s.dispatch.Dispatch(ctx, connID, ip, payload)
		if resp == nil {
			continue
		}
		if err := conn.WriteText(resp); err != nil {
			return
		}
	}
}

func remoteIP(nc net.Conn) string {
	addr := nc.RemoteAddr().String()
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return strings.TrimSpace(addr)
	}
	return host
}
