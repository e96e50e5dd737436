// internal/lxp/lxptest/peer.go
package lxptest

import (
	"io"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tamzrod/lxp-replicator/internal/lxp"
)

// Handler answers one request. conn is the 1-based connection number.
// Each returned chunk is written separately, ChunkDelay apart.
// Returning nil sends nothing.
type Handler func(conn int, req *lxp.Frame) [][]byte

// Peer is a scripted fake dongle listening on loopback.
type Peer struct {
	ln      net.Listener
	handler Handler

	// Greeting is written right after accept, like the unsolicited
	// burst some dongles send.
	Greeting   []byte
	ChunkDelay time.Duration

	conns    atomic.Int32
	requests atomic.Int32
	wg       sync.WaitGroup
}

// NewPeer starts a fake dongle. It is closed by t.Cleanup.
func NewPeer(t testing.TB, h Handler) *Peer {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("lxptest: listen: %v", err)
	}
	p := &Peer{ln: ln, handler: h, ChunkDelay: 50 * time.Millisecond}

	p.wg.Add(1)
	go p.serve()
	t.Cleanup(p.Close)
	return p
}

// Host returns the listener host.
func (p *Peer) Host() string {
	host, _, _ := net.SplitHostPort(p.ln.Addr().String())
	return host
}

// Port returns the listener port.
func (p *Peer) Port() int {
	_, port, _ := net.SplitHostPort(p.ln.Addr().String())
	n, _ := strconv.Atoi(port)
	return n
}

// Connections returns how many connections were accepted.
func (p *Peer) Connections() int { return int(p.conns.Load()) }

// Requests returns how many request frames were received.
func (p *Peer) Requests() int { return int(p.requests.Load()) }

// Close stops the listener and waits for connection handlers.
func (p *Peer) Close() {
	_ = p.ln.Close()
	p.wg.Wait()
}

func (p *Peer) serve() {
	defer p.wg.Done()
	for {
		conn, err := p.ln.Accept()
		if err != nil {
			return
		}
		n := int(p.conns.Add(1))
		p.wg.Add(1)
		go p.handle(n, conn)
	}
}

func (p *Peer) handle(n int, conn net.Conn) {
	defer p.wg.Done()
	defer conn.Close()

	if len(p.Greeting) > 0 {
		if _, err := conn.Write(p.Greeting); err != nil {
			return
		}
	}

	req := make([]byte, lxp.RequestLength)
	for {
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		if _, err := io.ReadFull(conn, req); err != nil {
			return
		}
		p.requests.Add(1)

		for i, chunk := range p.handler(n, lxp.Parse(req)) {
			if i > 0 && p.ChunkDelay > 0 {
				time.Sleep(p.ChunkDelay)
			}
			if _, err := conn.Write(chunk); err != nil {
				return
			}
		}
	}
}

// Reply wraps a single frame as a handler result.
func Reply(frame []byte) [][]byte {
	return [][]byte{frame}
}
