package statsdecoder

import (
	"context"
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

// NewSocket creates a UDP socket which is intended for use by a single
// goroutine. With reuseport, several sockets can bind the same address and
// the kernel distributes datagrams across them.
func NewSocket(
	ctx context.Context, network string, addr *net.UDPAddr, recvBuf int,
	reuseport bool,
) (*net.UDPConn, error) {
	listenConfig := net.ListenConfig{
		Control: func(_, _ string, conn syscall.RawConn) error {
			var sockErr error
			err := conn.Control(func(fd uintptr) {
				if reuseport {
					sockErr = unix.SetsockoptInt(
						int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
					if sockErr != nil {
						return
					}
				}
				sockErr = unix.SetsockoptInt(
					int(fd), unix.SOL_SOCKET, unix.SO_RCVBUF, recvBuf)
			})
			if err != nil {
				return err
			}
			return sockErr
		},
	}

	packetConn, err := listenConfig.ListenPacket(ctx, network, addr.String())
	if err != nil {
		return nil, err
	}
	return packetConn.(*net.UDPConn), nil
}
