package discovery

import (
	"crypto/rsa"
	"fmt"
	"net"

	"golang.org/x/net/ipv4"
)

// Server answers signed M-SEARCH probes on the multicast group with this
// backend's LAN address, grounded on
// original_source/src/backend/multicast_srv.py's MulticastServer.
type Server struct {
	key       *rsa.PrivateKey
	localAddr string
}

// NewServer constructs a Server that signs replies with key and
// advertises localAddr as its Location.
func NewServer(key *rsa.PrivateKey, localAddr string) *Server {
	return &Server{key: key, localAddr: localAddr}
}

// Listen blocks, answering search requests on the fixed multicast group
// until the connection errors or is closed. Callers typically run it in
// its own goroutine, mirroring the original's dedicated "SSDP" thread.
func (s *Server) Listen() error {
	udpConn, err := net.ListenUDP("udp4", &net.UDPAddr{Port: Port})
	if err != nil {
		return fmt.Errorf("discovery: listen: %w", err)
	}
	defer udpConn.Close()

	pc := ipv4.NewPacketConn(udpConn)
	group := &net.UDPAddr{IP: net.ParseIP(Group)}

	ifaces, err := net.Interfaces()
	if err != nil {
		return fmt.Errorf("discovery: list interfaces: %w", err)
	}
	joined := false
	for _, iface := range ifaces {
		if err := pc.JoinGroup(&iface, group); err == nil {
			joined = true
		}
	}
	if !joined {
		if err := pc.JoinGroup(nil, group); err != nil {
			return fmt.Errorf("discovery: join multicast group: %w", err)
		}
	}
	_ = pc.SetMulticastTTL(2)

	buf := make([]byte, 4096)
	for {
		n, _, addr, err := pc.ReadFrom(buf)
		if err != nil {
			return fmt.Errorf("discovery: read: %w", err)
		}
		go s.handle(buf[:n], addr, udpConn)
	}
}

func (s *Server) handle(data []byte, addr net.Addr, conn *net.UDPConn) {
	status, headers := parseHeaders(data)
	if !isSearch(status, headers) {
		return
	}

	sig, err := sign(s.key, headers["authorization"])
	if err != nil {
		return
	}
	reply := replyMessage(s.localAddr, sig)
	_, _ = conn.WriteTo(reply, addr)
}

// LocalIPv4 returns the local outbound IPv4 address, the same trick
// _get_local_addr uses: open a UDP "connection" to a public address and
// read back the address the kernel chose.
func LocalIPv4() (string, error) {
	conn, err := net.Dial("udp4", "8.8.8.8:80")
	if err != nil {
		return "", fmt.Errorf("discovery: determine local address: %w", err)
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).IP.String(), nil
}
