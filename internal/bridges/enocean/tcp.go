package enocean

import (
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
)

// DefaultLANPort is the TCP port Eltako LAN gateways listen on.
const DefaultLANPort = 5100

// TCPDialer opens a LAN gateway speaking ESP2 over TCP.
type TCPDialer struct {
	// Host is the gateway's hostname or IP address.
	Host string

	// Port is the TCP port; zero means DefaultLANPort.
	Port int
}

// Dial connects to the gateway.
func (d TCPDialer) Dial(ctx context.Context) (io.ReadWriteCloser, error) {
	port := d.Port
	if port == 0 {
		port = DefaultLANPort
	}

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(d.Host, strconv.Itoa(port)))
	if err != nil {
		return nil, fmt.Errorf("dial %s:%d: %w", d.Host, port, err)
	}
	return conn, nil
}

// String describes the endpoint for logs.
func (d TCPDialer) String() string {
	port := d.Port
	if port == 0 {
		port = DefaultLANPort
	}
	return fmt.Sprintf("tcp:%s:%d", d.Host, port)
}
