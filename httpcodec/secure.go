package httpcodec

import (
	"fmt"
	"math/big"
	"net"

	"github.com/joanet/controlplane/dh"
	"github.com/joanet/controlplane/wireproto"
)

// ServeSecure performs the server side of the SECURE handshake
// on an already-accepted, not-yet-encrypted stream: it expects a
// plaintext "SECURE * HTTP/1.1" request carrying DH-E, replies 101 with
// DH-F, and upgrades the stream's cipher in place. The connection stays
// open for the caller to read the next, now-encrypted request off the
// same stream.
func ServeSecure(s *wireproto.Stream) error {
	req, err := ReadRequest(s)
	if err != nil {
		return fmt.Errorf("httpcodec: secure: read request: %w", err)
	}
	if req.Method != "SECURE" {
		return fmt.Errorf("httpcodec: secure: expected SECURE, got %q", req.Method)
	}
	eStr := req.Headers.Get("DH-E")
	if eStr == "" {
		return fmt.Errorf("httpcodec: secure: missing DH-E header")
	}
	e, ok := new(big.Int).SetString(eStr, 10)
	if !ok {
		return fmt.Errorf("httpcodec: secure: malformed DH-E header")
	}

	agreement, err := dh.New(dh.RoleServer)
	if err != nil {
		return fmt.Errorf("httpcodec: secure: %w", err)
	}
	agreement.ReadPeer(e)

	h := NewHeader()
	h.Set("DH-F", agreement.Public().String())
	if err := WriteResponse(s, req, Response{Code: 101, Message: "SECURE", Headers: h}); err != nil {
		return fmt.Errorf("httpcodec: secure: write response: %w", err)
	}

	cipher, err := cipherFromAgreement(agreement)
	if err != nil {
		return err
	}
	s.UpdateCipher(cipher)
	return nil
}

// DialSecure opens a fresh TCP connection to addr and performs the
// client side of the SECURE handshake, returning a Stream whose cipher
// is already upgraded to AES-CBC and ready for the caller's payload
// request.
func DialSecure(addr string) (*wireproto.Stream, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("httpcodec: dial %s: %w", addr, err)
	}
	s := wireproto.NewStream(conn)

	agreement, err := dh.New(dh.RoleClient)
	if err != nil {
		s.Close()
		return nil, err
	}

	h := NewHeader()
	h.Set("DH-E", agreement.Public().String())
	h.Set("Accept", "*/*")
	h.Set("Cache-Control", "no-cache")
	h.Set("User-Agent", UserAgent)
	req := &Request{Method: "SECURE", Path: "*", Version: DefaultVersion, Headers: h}

	if err := writeRequest(s, req); err != nil {
		s.Close()
		return nil, err
	}

	resp, err := ReadClientResponse(s)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("httpcodec: secure: read 101 response: %w", err)
	}
	if resp.Code != 101 {
		s.Close()
		return nil, fmt.Errorf("httpcodec: secure: expected 101, got %d", resp.Code)
	}
	fStr := resp.Headers.Get("DH-F")
	f, ok := new(big.Int).SetString(fStr, 10)
	if !ok {
		s.Close()
		return nil, fmt.Errorf("httpcodec: secure: malformed DH-F header")
	}
	agreement.ReadPeer(f)

	cipher, err := cipherFromAgreement(agreement)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.UpdateCipher(cipher)
	return s, nil
}

func cipherFromAgreement(agreement *dh.Agreement) (*wireproto.AESCBCCipher, error) {
	key, err := agreement.Key()
	if err != nil {
		return nil, fmt.Errorf("httpcodec: secure: derive key: %w", err)
	}
	iv, err := agreement.IV()
	if err != nil {
		return nil, fmt.Errorf("httpcodec: secure: derive iv: %w", err)
	}
	c, err := wireproto.NewAESCBCCipher(key, iv)
	if err != nil {
		return nil, fmt.Errorf("httpcodec: secure: %w", err)
	}
	return c, nil
}
