package discovery

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"
)

// ServiceLibrary and ServiceName are the fixed ST/USN identifiers every
// search and reply carries, matching locations.MULTICAST_LIBRARY and
// locations.MULTICAST_SERVICE in the original.
const (
	ServiceLibrary = "joanet"
	ServiceName    = "joanet:controlplane"

	// Group and Port are the fixed IPv4 multicast rendezvous point.
	Group = "239.255.42.99"
	Port  = 1982
)

// searchType is the ST header value both sides expect.
const searchType = ServiceLibrary + ":" + ServiceName

func searchMessage(nonce string) []byte {
	lines := []string{
		"M-SEARCH * HTTP/1.1",
		"ST: " + searchType,
		"USN: " + ServiceName,
		`MAN: "ssdp:discover"`,
		"Authorization: " + nonce,
		"",
	}
	return []byte(strings.Join(lines, "\r\n"))
}

func replyMessage(location, signatureB64 string) []byte {
	lines := []string{
		"HTTP/1.1 200 OK",
		"ST: " + searchType,
		"USN: " + ServiceName,
		"Location: " + location,
		"Cache-Control: no-cache",
		"Authorization: " + signatureB64,
	}
	return []byte(strings.Join(lines, "\r\n"))
}

// parseHeaders splits a CRLF datagram into its status line and a
// lower-cased header map, mirroring both _handle_request and
// _handle_response in the original (neither distinguishes request from
// reply parsing beyond the status line prefix check).
func parseHeaders(data []byte) (status string, headers map[string]string) {
	lines := strings.Split(string(data), "\r\n")
	if len(lines) == 0 {
		return "", map[string]string{}
	}
	status = lines[0]
	headers = make(map[string]string, len(lines)-1)
	for _, l := range lines[1:] {
		idx := strings.Index(l, ":")
		if idx < 0 {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(l[:idx]))
		headers[key] = strings.TrimSpace(l[idx+1:])
	}
	return status, headers
}

func isSearch(status string, headers map[string]string) bool {
	return strings.HasPrefix(status, "M-SEARCH * HTTP/1.1") &&
		headers["st"] == searchType &&
		headers["usn"] == ServiceName &&
		strings.ToLower(headers["man"]) == `"ssdp:discover"` &&
		headers["authorization"] != ""
}

func isValidReply(status string, headers map[string]string) bool {
	return strings.HasPrefix(status, "HTTP/1.1 200") &&
		headers["location"] != "" &&
		headers["usn"] == ServiceName &&
		strings.HasPrefix(headers["st"], ServiceLibrary)
}

// newNonce produces a fresh SHA-1 hex digest of 64 random bytes, one
// per search.
func newNonce() (string, error) {
	buf := make([]byte, 64)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("discovery: generate nonce: %w", err)
	}
	sum := sha1.Sum(buf)
	return fmt.Sprintf("%x", sum), nil
}

func sign(key *rsa.PrivateKey, nonce string) (string, error) {
	digest := sha256.Sum256([]byte(nonce))
	sig, err := rsa.SignPSS(rand.Reader, key, crypto.SHA256, digest[:], &rsa.PSSOptions{
		SaltLength: rsa.PSSSaltLengthAuto,
	})
	if err != nil {
		return "", fmt.Errorf("discovery: sign: %w", err)
	}
	return base64.StdEncoding.EncodeToString(sig), nil
}

func verify(pub *rsa.PublicKey, nonce, signatureB64 string) bool {
	sig, err := base64.StdEncoding.DecodeString(signatureB64)
	if err != nil {
		return false
	}
	digest := sha256.Sum256([]byte(nonce))
	err = rsa.VerifyPSS(pub, crypto.SHA256, digest[:], sig, &rsa.PSSOptions{
		SaltLength: rsa.PSSSaltLengthAuto,
	})
	return err == nil
}
