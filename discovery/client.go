package discovery

import (
	"crypto/rsa"
	"fmt"
	"net"
	"time"

	"golang.org/x/net/ipv4"
)

// Client searches the LAN for a backend holding the matching private
// key, grounded on
// original_source/src/frontend/multicast_cli.py's MulticastClient.
type Client struct {
	pub   *rsa.PublicKey
	nonce string
}

// NewClient constructs a Client that will only accept replies signed by
// pub.
func NewClient(pub *rsa.PublicKey) (*Client, error) {
	nonce, err := newNonce()
	if err != nil {
		return nil, err
	}
	return &Client{pub: pub, nonce: nonce}, nil
}

// Search sends an M-SEARCH from every local IPv4 interface and returns
// the Location of the first validly-signed reply, or an error if none
// arrives. The client iterates over all local interface addresses one
// after another, since the backend may only be reachable from one of
// several NICs; each interface waits up to timeout for a reply before
// the next one is tried.
func (c *Client) Search(timeout time.Duration) (string, error) {
	addrs, err := interfaceIPv4Addrs()
	if err != nil {
		return "", fmt.Errorf("discovery: enumerate interfaces: %w", err)
	}
	if len(addrs) == 0 {
		return "", fmt.Errorf("discovery: no usable IPv4 interfaces")
	}

	msg := searchMessage(c.nonce)
	dst := &net.UDPAddr{IP: net.ParseIP(Group), Port: Port}

	for _, addr := range addrs {
		if ip, ok := c.searchFrom(addr, msg, dst, timeout); ok {
			return ip, nil
		}
	}
	return "", fmt.Errorf("discovery: no server found")
}

func (c *Client) searchFrom(localIP net.IP, msg []byte, dst *net.UDPAddr, timeout time.Duration) (string, bool) {
	udpConn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: localIP})
	if err != nil {
		return "", false
	}
	defer udpConn.Close()

	pc := ipv4.NewPacketConn(udpConn)
	_ = pc.SetMulticastTTL(2)

	if _, err := udpConn.WriteTo(msg, dst); err != nil {
		return "", false
	}

	deadline := time.Now().Add(timeout)
	buf := make([]byte, 1024)
	for {
		if err := udpConn.SetReadDeadline(deadline); err != nil {
			return "", false
		}
		n, _, err := udpConn.ReadFrom(buf)
		if err != nil {
			return "", false
		}
		if ip, ok := c.handleResponse(buf[:n]); ok {
			return ip, true
		}
	}
}

func (c *Client) handleResponse(data []byte) (string, bool) {
	status, headers := parseHeaders(data)
	if !isValidReply(status, headers) {
		return "", false
	}
	if !verify(c.pub, c.nonce, headers["authorization"]) {
		return "", false
	}
	return headers["location"], true
}

// interfaceIPv4Addrs lists every non-loopback unicast IPv4 address
// assigned to a local interface, the Go analogue of the original's
// socket.getaddrinfo("", None) sweep.
func interfaceIPv4Addrs() ([]net.IP, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	var out []net.IP
	for _, iface := range ifaces {
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			ipNet, ok := a.(*net.IPNet)
			if !ok {
				continue
			}
			ip4 := ipNet.IP.To4()
			if ip4 == nil || ip4.IsLoopback() {
				continue
			}
			out = append(out, ip4)
		}
	}
	return out, nil
}
