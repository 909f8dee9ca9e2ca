package httpcodec_test

import (
	"net"
	"testing"

	"github.com/joanet/controlplane/httpcodec"
	"github.com/joanet/controlplane/wireproto"
)

func TestParseQuery(t *testing.T) {
	q := httpcodec.ParseQuery("k=v&k2=v%202&flag")
	if q["k"] != "v" {
		t.Errorf("k = %v", q["k"])
	}
	if q["k2"] != "v 2" {
		t.Errorf("k2 = %v", q["k2"])
	}
	if q["flag"] != true {
		t.Errorf("flag = %v, want true", q["flag"])
	}
}

func TestSplitTarget(t *testing.T) {
	path, query := httpcodec.SplitTarget("/login?foo=bar")
	if path != "/login" || query != "foo=bar" {
		t.Errorf("got (%q, %q)", path, query)
	}

	path, query = httpcodec.SplitTarget("/login")
	if path != "/login" || query != "" {
		t.Errorf("got (%q, %q)", path, query)
	}
}

func TestNegotiateNoAcceptEncodingReturnsOriginal(t *testing.T) {
	body := []byte("hello world")
	out, enc := httpcodec.Negotiate(body, "")
	if enc != "" || string(out) != string(body) {
		t.Errorf("expected passthrough, got enc=%q out=%q", enc, out)
	}
}

func TestNegotiateCompressesWhenSmaller(t *testing.T) {
	body := make([]byte, 4096)
	for i := range body {
		body[i] = 'a'
	}
	out, enc := httpcodec.Negotiate(body, "gzip, deflate")
	if enc == "" {
		t.Fatal("expected a compression codec to be chosen for a highly compressible body")
	}
	if len(out) >= len(body) {
		t.Errorf("compressed length %d not smaller than original %d", len(out), len(body))
	}

	roundtrip, err := httpcodec.Decompress(out, enc)
	if err != nil {
		t.Fatalf("decompress: %v", err)
	}
	if string(roundtrip) != string(body) {
		t.Error("decompressed body does not match original")
	}
}

func TestReadWriteRequestRoundTrip(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()

	clientStream := wireproto.NewStream(a)
	serverStream := wireproto.NewStream(b)

	req := &httpcodec.Request{
		Method:  "POST",
		Path:    "/login",
		Version: httpcodec.DefaultVersion,
		Headers: httpcodec.NewHeader(),
		Body:    []byte(`{"version":0.1}`),
	}
	req.Headers.Set("Content-Type", "application/json")

	done := make(chan error, 1)
	go func() {
		done <- httpcodec.WriteRequest(clientStream, req)
	}()

	got, err := httpcodec.ReadRequest(serverStream)
	if err != nil {
		t.Fatalf("ReadRequest: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("WriteRequest: %v", err)
	}

	if got.Method != "POST" || got.Path != "/login" {
		t.Errorf("got method=%q path=%q", got.Method, got.Path)
	}
	if string(got.Body) != `{"version":0.1}` {
		t.Errorf("body = %q", got.Body)
	}
}

func TestWriteResponseOptions(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()

	serverStream := wireproto.NewStream(a)
	clientStream := wireproto.NewStream(b)

	req := &httpcodec.Request{Method: "OPTIONS", Path: "/", Version: httpcodec.DefaultVersion, Headers: httpcodec.NewHeader()}

	done := make(chan error, 1)
	go func() {
		done <- httpcodec.WriteOptions(serverStream, req)
	}()

	resp, err := httpcodec.ReadClientResponse(clientStream)
	if err != nil {
		t.Fatalf("ReadClientResponse: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("WriteOptions: %v", err)
	}
	if resp.Code != 204 {
		t.Errorf("code = %d, want 204", resp.Code)
	}
	if resp.Headers.Get("Allow") != "GET, POST, OPTIONS" {
		t.Errorf("Allow = %q", resp.Headers.Get("Allow"))
	}
}
