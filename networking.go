package statsdecoder

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stripe/statsdecoder/protocol"
	flock "github.com/theckman/go-flock"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
)

// packetReader reads one datagram at a time, along with the addresses its
// metrics are attributed to.
type packetReader interface {
	ReadPacket(buf []byte) (n int, sender, recipient netip.AddrPort, err error)
	LocalAddr() net.Addr
	Close() error
}

// udpReader asks the kernel for the destination address of every datagram,
// so a socket bound to a wildcard address still reports which local IP a
// packet was sent to. Where that is unsupported the recipient is the bound
// address.
type udpReader struct {
	conn  *net.UDPConn
	local netip.AddrPort
	v4    *ipv4.PacketConn
	v6    *ipv6.PacketConn
}

var _ packetReader = &udpReader{}

func newUDPReader(conn *net.UDPConn, logger *logrus.Entry) *udpReader {
	reader := &udpReader{
		conn:  conn,
		local: protocol.AddrPortOf(conn.LocalAddr()),
	}

	var err error
	if reader.local.Addr().Is4() {
		packetConn := ipv4.NewPacketConn(conn)
		if err = packetConn.SetControlMessage(ipv4.FlagDst, true); err == nil {
			reader.v4 = packetConn
		}
	} else {
		packetConn := ipv6.NewPacketConn(conn)
		if err = packetConn.SetControlMessage(ipv6.FlagDst, true); err == nil {
			reader.v6 = packetConn
		}
	}
	if err != nil {
		logger.WithError(err).WithField("address", conn.LocalAddr()).
			Debug("Destination addresses unavailable, using the bound address")
	}
	return reader
}

func (r *udpReader) ReadPacket(buf []byte) (int, netip.AddrPort, netip.AddrPort, error) {
	switch {
	case r.v4 != nil:
		n, cm, src, err := r.v4.ReadFrom(buf)
		if err != nil {
			return 0, netip.AddrPort{}, netip.AddrPort{}, err
		}
		recipient := r.local
		if cm != nil {
			recipient = protocol.WithAddr(r.local, cm.Dst)
		}
		return n, protocol.AddrPortOf(src), recipient, nil
	case r.v6 != nil:
		n, cm, src, err := r.v6.ReadFrom(buf)
		if err != nil {
			return 0, netip.AddrPort{}, netip.AddrPort{}, err
		}
		recipient := r.local
		if cm != nil {
			recipient = protocol.WithAddr(r.local, cm.Dst)
		}
		return n, protocol.AddrPortOf(src), recipient, nil
	default:
		n, src, err := r.conn.ReadFromUDPAddrPort(buf)
		if err != nil {
			return 0, netip.AddrPort{}, netip.AddrPort{}, err
		}
		return n, netip.AddrPortFrom(src.Addr().Unmap(), src.Port()), r.local, nil
	}
}

func (r *udpReader) LocalAddr() net.Addr {
	return r.conn.LocalAddr()
}

func (r *udpReader) Close() error {
	return r.conn.Close()
}

// unixReader reads datagrams from a unix socket. Neither end of a unix
// socket has an IP or port, so both addresses are the zero AddrPort.
type unixReader struct {
	conn *net.UnixConn
}

var _ packetReader = &unixReader{}

func (r *unixReader) ReadPacket(buf []byte) (int, netip.AddrPort, netip.AddrPort, error) {
	n, _, err := r.conn.ReadFromUnix(buf)
	return n, netip.AddrPort{}, netip.AddrPort{}, err
}

func (r *unixReader) LocalAddr() net.Addr {
	return r.conn.LocalAddr()
}

func (r *unixReader) Close() error {
	return r.conn.Close()
}

type unixSocket struct {
	path string
	lock *flock.Flock
}

// startStatsd starts reading statsd packets on the address a, and returns
// the concrete listening address.
func (server *Server) startStatsd(
	ctx context.Context, network string, a net.Addr,
) (net.Addr, error) {
	switch addr := a.(type) {
	case *net.UDPAddr:
		return server.startStatsdUDP(ctx, network, addr)
	case *net.UnixAddr:
		return server.startStatsdUnix(addr)
	default:
		return nil, fmt.Errorf("can't listen on %v: only udp and unixgram are supported", a)
	}
}

// startStatsdUDP opens num_readers sockets on addr, each read by its own
// goroutine. With more than one reader the sockets share the port through
// SO_REUSEPORT, and all of them bind the port the first one was given, which
// matters when addr asks for port 0.
func (server *Server) startStatsdUDP(
	ctx context.Context, network string, addr *net.UDPAddr,
) (net.Addr, error) {
	reusePort := server.numReaders > 1
	var bound *net.UDPAddr
	for i := 0; i < server.numReaders; i++ {
		listenAddr := addr
		if bound != nil {
			listenAddr = bound
		}
		conn, err := NewSocket(ctx, network, listenAddr, server.readBufferSizeBytes, reusePort)
		if err != nil {
			return nil, errors.Wrapf(err, "couldn't listen on UDP socket %v", addr)
		}
		if bound == nil {
			bound = conn.LocalAddr().(*net.UDPAddr)
		}
		server.startReader(newUDPReader(conn, server.logger))
	}

	server.logger.WithFields(logrus.Fields{
		"address":   bound,
		"network":   network,
		"listeners": server.numReaders,
	}).Info("Listening for statsd metrics on UDP socket")
	return bound, nil
}

// startStatsdUnix listens on a unix datagram socket. A lock file next to the
// socket ensures only one process serves a given path.
func (server *Server) startStatsdUnix(addr *net.UnixAddr) (net.Addr, error) {
	if addr.Network() != "unixgram" {
		return nil, fmt.Errorf("can't listen for statsd on %v: only unixgram sockets are supported", addr)
	}
	lockname := fmt.Sprintf("%s.lock", addr.String())
	lock := flock.NewFlock(lockname)
	locked, err := lock.TryLock()
	if err != nil {
		return nil, errors.Wrapf(err, "could not acquire the lock %q to listen on %v", lockname, addr)
	}
	if !locked {
		return nil, fmt.Errorf("lock file %q for %v is in use by another process already", lockname, addr)
	}

	// We have the exclusive use of the socket, clear away any old sockets and listen:
	_ = os.Remove(addr.String())
	conn, err := net.ListenUnixgram(addr.Network(), addr)
	if err != nil {
		lock.Unlock()
		return nil, errors.Wrapf(err, "couldn't listen on unix socket %v", addr)
	}

	// Make the socket writable by everyone with access to the socket pathname:
	if err := os.Chmod(addr.String(), 0666); err != nil {
		conn.Close()
		lock.Unlock()
		return nil, errors.Wrapf(err, "couldn't set permissions on %v", addr)
	}
	if err := conn.SetReadBuffer(server.readBufferSizeBytes); err != nil {
		server.logger.WithError(err).Warn("Couldn't set read buffer size on unix socket")
	}

	server.readerMtx.Lock()
	server.unixSockets = append(server.unixSockets, unixSocket{path: addr.String(), lock: lock})
	server.readerMtx.Unlock()
	server.startReader(&unixReader{conn: conn})

	server.logger.WithField("address", addr).
		Info("Listening for statsd metrics on unix datagram socket")
	return conn.LocalAddr(), nil
}

func (server *Server) startReader(reader packetReader) {
	server.readerMtx.Lock()
	server.readers = append(server.readers, reader)
	server.readerMtx.Unlock()

	server.readerWG.Add(1)
	go func() {
		defer server.readerWG.Done()
		defer func() {
			ConsumePanic(server.Hostname, recover())
		}()
		server.ReadMetricSocket(reader)
	}()
}

// stopReaders closes every listening socket and waits for the reading
// goroutines to exit. No packet is dispatched to a worker once it returns.
func (server *Server) stopReaders() {
	server.shuttingDown.Store(true)

	server.readerMtx.Lock()
	for _, reader := range server.readers {
		if err := reader.Close(); err != nil {
			server.logger.WithError(err).WithField("address", reader.LocalAddr()).
				Warn("Ignoring error closing statsd socket")
		}
	}
	server.readerMtx.Unlock()

	server.readerWG.Wait()

	server.readerMtx.Lock()
	defer server.readerMtx.Unlock()
	for _, socket := range server.unixSockets {
		_ = os.Remove(socket.path)
		socket.lock.Unlock()
	}
	server.unixSockets = nil
}

// ReadMetricSocket reads packets from reader until it is closed.
func (server *Server) ReadMetricSocket(reader packetReader) {
	for {
		buf := server.packetPool.Get()
		n, sender, recipient, err := reader.ReadPacket(buf)
		if err != nil {
			server.packetPool.Put(buf)
			if server.shuttingDown.Load() || errors.Is(err, net.ErrClosed) {
				return
			}
			server.logger.WithError(err).Error("Error reading from statsd socket")
			continue
		}
		server.processMetricPacket(n, buf, sender, recipient)
	}
}

// processMetricPacket decodes one datagram and hands the metrics to a
// worker. buf is returned to the pool.
func (server *Server) processMetricPacket(
	numBytes int, buf []byte, sender, recipient netip.AddrPort,
) {
	server.stats.packetsReceived.Inc()

	// buffers are one byte longer than the limit, so a full read means the
	// datagram was truncated
	if numBytes > server.metricMaxLength {
		server.packetPool.Put(buf)
		server.reportPacketError("toolong")
		return
	}

	metrics, stats, err := server.decoder.DecodeWithStats(buf[:numBytes], sender, recipient)
	// decoded metrics only hold strings, so nothing references buf anymore
	server.packetPool.Put(buf)
	if err != nil {
		server.reportPacketError("encoding")
		server.logger.WithError(err).Debug("Could not decode packet")
		return
	}

	server.stats.observe(stats)
	if len(metrics) == 0 {
		return
	}
	server.dispatch(metrics, sender)
}

func (server *Server) reportPacketError(reason string) {
	server.stats.packetErrors.WithLabelValues(reason).Inc()
	server.Statsd.Count("packet.error_total", 1, []string{"reason:" + reason}, 1.0)
}
