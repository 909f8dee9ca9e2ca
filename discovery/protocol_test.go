package discovery

import (
	"crypto/rand"
	"crypto/rsa"
	"strings"
	"testing"
)

func testKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 1024) // small key; tests only care about protocol shape
	if err != nil {
		t.Fatalf("generate test key: %v", err)
	}
	return key
}

func TestSearchMessageRoundTripsThroughParseHeaders(t *testing.T) {
	msg := searchMessage("deadbeef")
	status, headers := parseHeaders(msg)
	if !strings.HasPrefix(status, "M-SEARCH") {
		t.Fatalf("status = %q", status)
	}
	if !isSearch(status, headers) {
		t.Fatal("expected isSearch to accept a well-formed search message")
	}
	if headers["authorization"] != "deadbeef" {
		t.Errorf("authorization = %q", headers["authorization"])
	}
}

func TestMulticastVerification(t *testing.T) {
	key := testKey(t)
	nonce, err := newNonce()
	if err != nil {
		t.Fatal(err)
	}

	sig, err := sign(key, nonce)
	if err != nil {
		t.Fatal(err)
	}

	reply := replyMessage("10.0.0.5", sig)
	status, headers := parseHeaders(reply)
	if !isValidReply(status, headers) {
		t.Fatal("expected well-formed reply to pass shape validation")
	}
	if !verify(&key.PublicKey, nonce, headers["authorization"]) {
		t.Fatal("expected signature to verify against the matching public key")
	}

	// Tampering with the nonce must invalidate the signature.
	if verify(&key.PublicKey, "not-"+nonce, headers["authorization"]) {
		t.Error("verification should fail for a mismatched nonce")
	}

	// A reply signed by a different key must not verify.
	other := testKey(t)
	if verify(&other.PublicKey, nonce, headers["authorization"]) {
		t.Error("verification should fail against an unrelated public key")
	}
}

func TestIsSearchRejectsMissingAuthorization(t *testing.T) {
	msg := []byte(strings.Join([]string{
		"M-SEARCH * HTTP/1.1",
		"ST: " + searchType,
		"USN: " + ServiceName,
		`MAN: "ssdp:discover"`,
		"",
	}, "\r\n"))
	status, headers := parseHeaders(msg)
	if isSearch(status, headers) {
		t.Error("expected search without Authorization header to be rejected")
	}
}

func TestIsValidReplyRejectsWrongService(t *testing.T) {
	msg := []byte(strings.Join([]string{
		"HTTP/1.1 200 OK",
		"ST: someoneelse:other",
		"USN: other",
		"Location: 10.0.0.5",
		"Authorization: Zm9v",
		"",
	}, "\r\n"))
	status, headers := parseHeaders(msg)
	if isValidReply(status, headers) {
		t.Error("expected reply with mismatched ST/USN to be rejected")
	}
}
