package channel

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/autopeer-io/panellink/internal/panelagent/core"
	"github.com/autopeer-io/panellink/pkg/log"
)

var errNoPeer = errors.New("no simulator address known yet")

var (
	_ core.Channel          = (*UDP)(nil)
	_ core.EndpointNotifier = (*UDP)(nil)
)

// UDP exchanges "name=value" lines with the simulator export script over
// datagrams. Delivery is best effort and unordered.
type UDP struct {
	listenAddr  string
	simAddr     string
	maxDatagram int

	receive  core.Feed[core.Value]
	endpoint core.Feed[string]

	mu    sync.Mutex
	conn  *net.UDPConn
	fixed *net.UDPAddr
	peer  *net.UDPAddr
}

// NewUDP listens on listenAddr once opened. When simAddr is empty, sends go
// to the address the last datagram came from.
func NewUDP(listenAddr, simAddr string, maxDatagram int) *UDP {
	if maxDatagram <= 0 {
		maxDatagram = 8192
	}
	return &UDP{listenAddr: listenAddr, simAddr: simAddr, maxDatagram: maxDatagram}
}

// Open binds the local socket.
func (u *UDP) Open() error {
	laddr, err := net.ResolveUDPAddr("udp", u.listenAddr)
	if err != nil {
		return fmt.Errorf("resolve listen address: %w", err)
	}
	var fixed *net.UDPAddr
	if u.simAddr != "" {
		if fixed, err = net.ResolveUDPAddr("udp", u.simAddr); err != nil {
			return fmt.Errorf("resolve simulator address: %w", err)
		}
	}
	conn, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", u.listenAddr, err)
	}

	u.mu.Lock()
	u.conn = conn
	u.fixed = fixed
	u.mu.Unlock()

	log.Info("UDP channel listening", "addr", conn.LocalAddr().String(), "sim", u.simAddr)
	return nil
}

// LocalAddr returns the bound address, or nil before Open.
func (u *UDP) LocalAddr() net.Addr {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.conn == nil {
		return nil
	}
	return u.conn.LocalAddr()
}

// Run reads datagrams until ctx is done, then closes the socket.
func (u *UDP) Run(ctx context.Context) error {
	u.mu.Lock()
	conn := u.conn
	u.mu.Unlock()
	if conn == nil {
		return errors.New("udp channel not opened")
	}

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	buf := make([]byte, u.maxDatagram)
	for {
		n, src, err := conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			log.Warn("UDP read failed", "error", err)
			continue
		}
		u.observePeer(src)
		if skipped := decodeLines(buf[:n], u.deliver); skipped > 0 {
			log.Debug("Skipped malformed lines", "from", src.String(), "count", skipped)
		}
	}
}

func (u *UDP) deliver(name, value string) {
	u.receive.Publish(core.Value{Name: name, Value: value})
}

// observePeer remembers src and reports a changed simulator endpoint.
func (u *UDP) observePeer(src *net.UDPAddr) {
	u.mu.Lock()
	prev := u.peer
	u.peer = src
	u.mu.Unlock()

	if prev != nil && prev.String() != src.String() {
		log.Info("Simulator endpoint changed", "from", prev.String(), "to", src.String())
		u.endpoint.Publish(src.String())
	}
}

func (u *UDP) Send(_ context.Context, name, value string) error {
	line, err := encodeLine(name, value)
	if err != nil {
		return err
	}

	u.mu.Lock()
	conn, dst := u.conn, u.fixed
	if dst == nil {
		dst = u.peer
	}
	u.mu.Unlock()

	if conn == nil {
		return core.ErrTransportAbsent
	}
	if dst == nil {
		return errNoPeer
	}
	if _, err := conn.WriteToUDP(line, dst); err != nil {
		return fmt.Errorf("udp send: %w", err)
	}
	return nil
}

func (u *UDP) OnReceive(fn core.ReceiveFunc) (cancel func()) {
	return u.receive.Subscribe(func(v core.Value) { fn(v.Name, v.Value) })
}

func (u *UDP) OnEndpointChange(fn func(remote string)) (cancel func()) {
	return u.endpoint.Subscribe(fn)
}
