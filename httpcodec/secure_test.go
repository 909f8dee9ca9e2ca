package httpcodec_test

import (
	"math/big"
	"net"
	"testing"

	"github.com/joanet/controlplane/dh"
	"github.com/joanet/controlplane/httpcodec"
	"github.com/joanet/controlplane/wireproto"
)

// TestSecureHandshakeUpgradesCipher drives ServeSecure and a hand-rolled
// client side (mirroring DialSecure but over net.Pipe, since DialSecure
// always dials a real TCP address) and checks that a post-handshake
// message sent by one side decrypts correctly on the other.
func TestSecureHandshakeUpgradesCipher(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()

	serverStream := wireproto.NewStream(a)
	clientStream := wireproto.NewStream(b)

	clientAgreement, err := dh.New(dh.RoleClient)
	if err != nil {
		t.Fatal(err)
	}

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- httpcodec.ServeSecure(serverStream)
	}()

	h := httpcodec.NewHeader()
	h.Set("DH-E", clientAgreement.Public().String())
	req := &httpcodec.Request{Method: "SECURE", Path: "*", Version: httpcodec.DefaultVersion, Headers: h}
	if err := httpcodec.WriteRequest(clientStream, req); err != nil {
		t.Fatalf("write SECURE request: %v", err)
	}

	resp, err := httpcodec.ReadClientResponse(clientStream)
	if err != nil {
		t.Fatalf("read 101 response: %v", err)
	}
	if resp.Code != 101 {
		t.Fatalf("code = %d, want 101", resp.Code)
	}
	if err := <-serverDone; err != nil {
		t.Fatalf("ServeSecure: %v", err)
	}

	fStr := resp.Headers.Get("DH-F")
	f, ok := new(big.Int).SetString(fStr, 10)
	if !ok {
		t.Fatalf("malformed DH-F %q", fStr)
	}
	clientAgreement.ReadPeer(f)

	key, err := clientAgreement.Key()
	if err != nil {
		t.Fatal(err)
	}
	iv, err := clientAgreement.IV()
	if err != nil {
		t.Fatal(err)
	}
	cipher, err := wireproto.NewAESCBCCipher(key, iv)
	if err != nil {
		t.Fatal(err)
	}
	clientStream.UpdateCipher(cipher)

	payloadReq := &httpcodec.Request{
		Method:  "GET",
		Path:    "/login",
		Version: httpcodec.DefaultVersion,
		Headers: httpcodec.NewHeader(),
	}
	done := make(chan error, 1)
	go func() {
		done <- httpcodec.WriteRequest(clientStream, payloadReq)
	}()

	got, err := httpcodec.ReadRequest(serverStream)
	if err != nil {
		t.Fatalf("server failed to decrypt post-handshake request: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatal(err)
	}
	if got.Method != "GET" || got.Path != "/login" {
		t.Errorf("got method=%q path=%q", got.Method, got.Path)
	}
}
