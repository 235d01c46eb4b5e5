package wsproto

import (
	"net"
	"time"
)

// noopConn is a minimal net.Conn stub for tests that only exercise the
// read or write side of Conn, never both through a real socket.
type noopConn struct{}

func (noopConn) Read(b []byte) (int, error)         { return 0, nil }
func (noopConn) Write(b []byte) (int, error)        { return len(b), nil }
func (noopConn) Close() error                       { return nil }
func (noopConn) LocalAddr() net.Addr                { return nil }
func (noopConn) RemoteAddr() net.Addr               { return nil }
func (noopConn) SetDeadline(t time.Time) error      { return nil }
func (noopConn) SetReadDeadline(t time.Time) error  { return nil }
func (noopConn) SetWriteDeadline(t time.Time) error { return nil }
