//go:build !linux

package statsdecoder

import (
	"context"
	"errors"
	"net"
)

// NewSocket creates a UDP socket which is intended for use by a single
// goroutine. SO_REUSEPORT is only available on Linux.
func NewSocket(
	ctx context.Context, network string, addr *net.UDPAddr, recvBuf int,
	reuseport bool,
) (*net.UDPConn, error) {
	if reuseport {
		return nil, errors.New("SO_REUSEPORT is not supported on this platform")
	}
	serverConn, err := net.ListenUDP(network, addr)
	if err != nil {
		return nil, err
	}
	if err := serverConn.SetReadBuffer(recvBuf); err != nil {
		serverConn.Close()
		return nil, err
	}
	return serverConn, nil
}
