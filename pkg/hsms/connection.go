package hsms

import (
	"bytes"
	"context"
	"net"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wolimst/gosecs/internal/gemlog"
	"github.com/wolimst/gosecs/internal/secserr"
)

// Mode selects whether a Connection dials out (active) or listens for an
// inbound peer (passive).
type Mode int

const (
	ModeActive Mode = iota
	ModePassive
)

// Delegate receives the lifecycle events a Connection emits.
type Delegate interface {
	OnConnectionEstablished()
	OnConnectionBeforeClosed()
	OnConnectionClosed()
	OnPacketReceived(Packet)
}

// Connection is a single HSMS TCP link: either an active dialer that
// reconnects with a T5 separation, or a passive listener that accepts one
// inbound peer at a time and restarts the listener on disconnect.
//
// A Connection does not interpret SType semantics; it only frames bytes
// in and out. The session layer (C5) is the Delegate.
type Connection struct {
	mode   Mode
	addr   string
	config Config
	log    gemlog.Logger
	delegate Delegate

	mu      sync.Mutex
	writeMu sync.Mutex
	conn    net.Conn
	running bool
	cancel  context.CancelFunc
	group   *errgroup.Group
}

// NewActiveConnection builds a Connection that dials remoteAddr when enabled.
func NewActiveConnection(remoteAddr string, cfg Config, delegate Delegate, log gemlog.Logger) *Connection {
	if log == nil {
		log = gemlog.Nop{}
	}
	return &Connection{mode: ModeActive, addr: remoteAddr, config: cfg, delegate: delegate, log: log}
}

// NewPassiveConnection builds a Connection that listens on listenAddr when
// enabled, accepting a single peer at a time.
func NewPassiveConnection(listenAddr string, cfg Config, delegate Delegate, log gemlog.Logger) *Connection {
	if log == nil {
		log = gemlog.Nop{}
	}
	return &Connection{mode: ModePassive, addr: listenAddr, config: cfg, delegate: delegate, log: log}
}

// Enable starts the connection lifecycle: for an active connection, a
// reconnect loop that retries every T5 after the first attempt; for a
// passive connection, an accept loop that restarts after every disconnect.
// It returns once the lifecycle goroutines have been launched, not once a
// peer is connected.
func (c *Connection) Enable() {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	group, gctx := errgroup.WithContext(ctx)
	c.cancel = cancel
	c.group = group
	c.running = true
	c.mu.Unlock()

	group.Go(func() error {
		if c.mode == ModeActive {
			return c.runActive(gctx)
		}
		return c.runPassive(gctx)
	})
}

// Disable halts reconnection/listening and closes any active peer
// connection. It blocks until the lifecycle goroutines have returned.
func (c *Connection) Disable() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	cancel := c.cancel
	group := c.group
	conn := c.conn
	c.running = false
	c.mu.Unlock()

	cancel()
	if conn != nil {
		conn.Close()
	}
	if group != nil {
		_ = group.Wait()
	}
}

func (c *Connection) runActive(ctx context.Context) error {
	first := true
	for {
		if !first {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(c.config.T5):
			}
		}
		first = false

		dialer := net.Dialer{}
		conn, err := dialer.DialContext(ctx, "tcp", c.addr)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.log.Debugf("hsms: active connect to %s failed: %v", c.addr, err)
			continue
		}
		if err := c.serve(ctx, conn); err != nil && ctx.Err() == nil {
			c.log.Warnf("hsms: connection to %s ended: %v", c.addr, err)
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

func (c *Connection) runPassive(ctx context.Context) error {
	for {
		listener, err := net.Listen("tcp", c.addr)
		if err != nil {
			return secserr.Wrap(secserr.KindConnectFailed, err, "hsms: listen on %s", c.addr)
		}

		accepted := make(chan net.Conn, 1)
		acceptErr := make(chan error, 1)
		go func() {
			conn, err := listener.Accept()
			if err != nil {
				acceptErr <- err
				return
			}
			accepted <- conn
		}()

		var conn net.Conn
		select {
		case <-ctx.Done():
			listener.Close()
			return nil
		case err := <-acceptErr:
			listener.Close()
			if ctx.Err() != nil {
				return nil
			}
			c.log.Warnf("hsms: accept on %s failed: %v", c.addr, err)
			continue
		case conn = <-accepted:
			listener.Close()
		}

		if err := c.serve(ctx, conn); err != nil && ctx.Err() == nil {
			c.log.Warnf("hsms: connection from %s ended: %v", conn.RemoteAddr(), err)
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

// serve owns conn for the duration of a single peer session: it registers
// conn for SendPacket, runs the receive loop, and emits lifecycle events.
func (c *Connection) serve(ctx context.Context, conn net.Conn) error {
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	c.delegate.OnConnectionEstablished()
	defer func() {
		c.delegate.OnConnectionBeforeClosed()
		conn.Close()
		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
		c.delegate.OnConnectionClosed()
	}()

	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-connCtx.Done()
		conn.Close()
	}()

	return c.receiveLoop(conn)
}

// receiveLoop reads into a growing buffer, peels off as many complete
// frames as ScanFrame reports, and hands each decoded Packet to the
// delegate. Excess bytes carry over.
func (c *Connection) receiveLoop(conn net.Conn) error {
	var buf bytes.Buffer
	chunk := make([]byte, 64*1024)

	for {
		n, err := conn.Read(chunk)
		if n > 0 {
			buf.Write(chunk[:n])
			for {
				frameLen, ok := ScanFrame(buf.Bytes())
				if !ok {
					break
				}
				frame := buf.Next(frameLen)
				packet, decodeErr := DecodePacket(frame)
				if decodeErr != nil {
					c.log.Warnf("hsms: dropping malformed frame: %v", decodeErr)
					continue
				}
				c.delegate.OnPacketReceived(packet)
			}
		}
		if err != nil {
			return err
		}
	}
}

// SendPacket writes p's wire encoding to the currently connected peer, in
// chunks of at most config.SendBlockSize bytes, holding the connection's
// write lock for the whole packet so frames never interleave.
func (c *Connection) SendPacket(p Packet) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return secserr.New(secserr.KindConnectionClosed, "hsms: send on a closed connection")
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	data := p.Encode()
	blockSize := c.config.SendBlockSize
	if blockSize <= 0 {
		blockSize = len(data)
		if blockSize == 0 {
			blockSize = 1
		}
	}

	for len(data) > 0 {
		n := blockSize
		if n > len(data) {
			n = len(data)
		}
		written, err := conn.Write(data[:n])
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			return secserr.Wrap(secserr.KindSendFailed, err, "hsms: send failed")
		}
		data = data[written:]
	}
	return nil
}

// IsConnected reports whether a peer is currently attached.
func (c *Connection) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}
