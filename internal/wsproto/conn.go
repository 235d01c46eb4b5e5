package wsproto

import (
	"bufio"
	"encoding/binary"
	"io"
	"net"
	"sync"
)

// Conn is a framed full-duplex connection over a raw byte stream: the
// upgrade handshake, frame encode/decode, fragmentation reassembly, and
// control-frame handling live here. A Conn is owned by exactly one
// per-client worker.
type Conn struct {
	nc net.Conn
	r  *bufio.Reader

	writeMu sync.Mutex
	closed  bool

	fragBuf    []byte
	fragOpcode Opcode
	fragActive bool
}

// Upgrade performs the server side of the handshake on an accepted raw
// connection and returns a framed Conn ready for ReadMessage/WriteText.
// Failure at any step leaves the underlying connection unclosed; the
// caller is expected to close it.
func Upgrade(nc net.Conn) (*Conn, error) {
	r := bufio.NewReaderSize(nc, 4096)

	header, err := readHandshakeRequest(r)
	if err != nil {
		return nil, err
	}
	key, err := extractWebSocketKey(header)
	if err != nil {
		return nil, err
	}
	resp := buildHandshakeResponse(acceptKey(key))
	if _, err := nc.Write(resp); err != nil {
		return nil, ErrConnectionBroken
	}
	return &Conn{nc: nc, r: r}, nil
}

// RemoteAddr returns the underlying connection's remote address.
func (c *Conn) RemoteAddr() net.Addr { return c.nc.RemoteAddr() }

// ReadMessage blocks for one complete logical message: the concatenation
// of payloads from one non-CONT frame through its terminating FIN,
// transparently servicing interleaved PING/CLOSE control frames without
// disturbing the fragment buffer. Returns the message opcode (TEXT or
// BINARY) and its assembled payload.
func (c *Conn) ReadMessage() (Opcode, []byte, error) {
	for {
		h, err := c.readFrameHeader()
		if err != nil {
			return 0, nil, err
		}
		payload, err := c.readFramePayload(h)
		if err != nil {
			return 0, nil, err
		}

		switch h.opcode {
		case OpText, OpBinary:
			if c.fragActive {
				return 0, nil, ErrConnectionBroken
			}
			if h.fin {
				return h.opcode, payload, nil
			}
			c.fragOpcode = h.opcode
			c.fragBuf = append(c.fragBuf[:0], payload...)
			c.fragActive = true

		case OpContinuation:
			if !c.fragActive {
				return 0, nil, ErrConnectionBroken
			}
			c.fragBuf = append(c.fragBuf, payload...)
			if h.fin {
				msg := c.fragBuf
				opcode := c.fragOpcode
				c.fragBuf = nil
				c.fragActive = false
				return opcode, msg, nil
			}

		case OpPing:
			if err := c.writeFrame(OpPong, payload, true); err != nil {
				return 0, nil, err
			}

		case OpPong:
			// No action required; pongs are purely informational here.

		case OpClose:
			code, reason := parseCloseCode(payload)
			_ = c.writeClose(code, reason)
			c.markClosed()
			return 0, nil, ErrConnectionBroken

		default:
			return 0, nil, ErrConnectionBroken
		}
	}
}

func parseCloseCode(payload []byte) (uint16, string) {
	code := uint16(1000)
	var reason string
	if len(payload) >= 2 {
		code = binary.BigEndian.Uint16(payload[:2])
	}
	if len(payload) > 2 {
		reason = string(payload[2:])
	}
	return code, reason
}

func (c *Conn) readFrameHeader() (frameHeader, error) {
	var first [2]byte
	if _, err := io.ReadFull(c.r, first[:]); err != nil {
		return frameHeader{}, ErrConnectionBroken
	}

	h := frameHeader{
		fin:    first[0]&0x80 != 0,
		rsv1:   first[0]&0x40 != 0,
		rsv2:   first[0]&0x20 != 0,
		rsv3:   first[0]&0x10 != 0,
		opcode: Opcode(first[0] & 0x0F),
		masked: first[1]&0x80 != 0,
	}
	if h.hasReservedBits() {
		return frameHeader{}, errReservedBitSet
	}

	length := first[1] & 0x7F
	switch length {
	case 126:
		var ext [2]byte
		if _, err := io.ReadFull(c.r, ext[:]); err != nil {
			return frameHeader{}, ErrConnectionBroken
		}
		h.payloadLength = uint64(binary.BigEndian.Uint16(ext[:]))
	case 127:
		var ext [8]byte
		if _, err := io.ReadFull(c.r, ext[:]); err != nil {
			return frameHeader{}, ErrConnectionBroken
		}
		h.payloadLength = binary.BigEndian.Uint64(ext[:])
	default:
		h.payloadLength = uint64(length)
	}

	if !h.masked {
		// Client-to-server frames must be masked.
		return frameHeader{}, errNotMasked
	}

	return h, nil
}

func (c *Conn) readFramePayload(h frameHeader) ([]byte, error) {
	if h.payloadLength > maxFramePayload {
		return nil, errPayloadTooLarge
	}

	var maskKey [4]byte
	if _, err := io.ReadFull(c.r, maskKey[:]); err != nil {
		return nil, ErrConnectionBroken
	}

	payload := make([]byte, h.payloadLength)
	if _, err := io.ReadFull(c.r, payload); err != nil {
		return nil, ErrConnectionBroken
	}
	unmask(payload, maskKey)
	return payload, nil
}

// WriteText sends a single-frame, FIN-set TEXT message.
func (c *Conn) WriteText(data []byte) error {
	return c.writeFrame(OpText, data, true)
}

// WriteBinary sends a single-frame, FIN-set BINARY message.
func (c *Conn) WriteBinary(data []byte) error {
	return c.writeFrame(OpBinary, data, true)
}

// WritePing sends a PING control frame with the given payload.
func (c *Conn) WritePing(data []byte) error {
	return c.writeFrame(OpPing, data, true)
}

// WriteClose sends a CLOSE control frame carrying the 16-bit code and
// reason text, then marks the connection closed. Send operations after
// close fail.
func (c *Conn) WriteClose(code uint16, reason string) error {
	if err := c.writeClose(code, reason); err != nil {
		return err
	}
	c.markClosed()
	return nil
}

func (c *Conn) writeClose(code uint16, reason string) error {
	payload := make([]byte, 2+len(reason))
	binary.BigEndian.PutUint16(payload[:2], code)
	copy(payload[2:], reason)
	return c.writeFrame(OpClose, payload, true)
}

func (c *Conn) markClosed() {
	c.writeMu.Lock()
	c.closed = true
	c.writeMu.Unlock()
}

func (c *Conn) writeFrame(opcode Opcode, data []byte, fin bool) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.closed {
		return errClosed
	}
	frame := encodeFrame(opcode, data, fin)
	if _, err := c.nc.Write(frame); err != nil {
		return ErrConnectionBroken
	}
	return nil
}

// Close closes the underlying transport without sending a CLOSE frame;
// used when the connection is already known to be broken.
func (c *Conn) Close() error {
	c.markClosed()
	return c.nc.Close()
}
