// Package device models a logged-in peer: its RSA public key, bearer
// token, subdevices, and the set of local function names it has
// advertised as callable. Grounded on original_source/src/device/device.py.
package device

import (
	"bytes"
	"compress/gzip"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// SubDevice is a named secondary credential a Device can present on
// behalf of a physical sub-component (a second monitor, a smart plug
// chained off a hub), mirroring device.py's SubDevice.
type SubDevice struct {
	Name  string
	Token string
}

// Device is one logged-in peer, keyed by its IP address in a Registry.
type Device struct {
	mu sync.RWMutex

	ip         string
	token      string
	pubKey     *rsa.PublicKey
	subdevices []SubDevice
	localFuncs map[string]bool
	os         string
	version    float64
}

// newDevice builds a Device with a freshly minted token and the builtin
// "logout" local function, matching device.py's constructor.
func newDevice(ip string) *Device {
	return &Device{
		ip:         ip,
		token:      makeToken(),
		localFuncs: map[string]bool{"logout": true},
	}
}

// makeToken mints a random bearer token. The original derives one from
// an MD5 digest of random bytes; this uses a random UUID's hex form for
// the same "opaque random token" role with a standard-library-adjacent
// generator.
func makeToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Compress gzips data and base64-encodes the result, the wire form
// device.py uses for PEM keys and encrypted tokens alike.
func Compress(data []byte) string {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	w.Write(data)
	w.Close()
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

// Decompress reverses Compress.
func Decompress(data string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("device: base64 decode: %w", err)
	}
	r, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("device: gzip reader: %w", err)
	}
	defer r.Close()
	return io.ReadAll(r)
}

// AppendLocalFunc registers name (case-insensitively) as a function this
// device can be asked to run locally.
func (d *Device) AppendLocalFunc(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.localFuncs[strings.ToLower(name)] = true
}

// HasLocalFunc reports whether name was advertised via AppendLocalFunc.
func (d *Device) HasLocalFunc(name string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.localFuncs[strings.ToLower(name)]
}

// CompareToken reports whether hexToken, stripped of surrounding
// whitespace, matches this device's own token. Comparison is
// case-insensitive since hex tokens travel as plain text.
func (d *Device) CompareToken(hexToken string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return strings.EqualFold(strings.TrimSpace(hexToken), d.token)
}

// CheckToken reports whether an Authorization header value (e.g.
// "BEARER deadbeef") matches this device's own token or one of its
// subdevices' tokens.
func (d *Device) CheckToken(header string) bool {
	_, ok := d.Authenticate(header)
	return ok
}

// Authenticate resolves an Authorization header value against this
// device's own token and its subdevices' tokens, returning the matching
// PermissionLevel. A device's own token resolves to Max; a subdevice
// token resolves to Subdev, which the router holds to a lower
// permission ceiling on dispatch.
func (d *Device) Authenticate(header string) (PermissionLevel, bool) {
	tk := strings.TrimSpace(strings.ReplaceAll(strings.ToUpper(header), "BEARER", ""))
	if strings.EqualFold(tk, d.token) {
		return Max(d), true
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, sub := range d.subdevices {
		if strings.EqualFold(tk, sub.Token) {
			return Subdev(d), true
		}
	}
	return nil, false
}

// LoadPubKey parses a compressed PEM-encoded PKCS1 public key and stores
// it as the device's key for token encryption.
func (d *Device) LoadPubKey(compressed string) error {
	decomp, err := Decompress(compressed)
	if err != nil {
		return fmt.Errorf("device: decompress key: %w", err)
	}
	block, _ := pem.Decode(decomp)
	if block == nil {
		return fmt.Errorf("device: no PEM block in key")
	}
	pub, err := x509.ParsePKCS1PublicKey(block.Bytes)
	if err != nil {
		return fmt.Errorf("device: parse public key: %w", err)
	}
	d.mu.Lock()
	d.pubKey = pub
	d.mu.Unlock()
	return nil
}

// LoadSubdevs replaces the device's subdevice list from decoded login
// body entries.
func (d *Device) LoadSubdevs(entries []any) {
	var subs []SubDevice
	for _, raw := range entries {
		m, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		name, _ := m["name"].(string)
		token, _ := m["token"].(string)
		subs = append(subs, SubDevice{Name: name, Token: token})
	}
	d.mu.Lock()
	d.subdevices = subs
	d.mu.Unlock()
}

// EncToken RSA-OAEP/SHA-256 encrypts this device's token against its
// stored public key and returns the compressed ciphertext, or "" if no
// key has been loaded yet.
func (d *Device) EncToken() (string, error) {
	d.mu.RLock()
	pub := d.pubKey
	token := d.token
	d.mu.RUnlock()

	if pub == nil {
		return "", nil
	}
	ciphertext, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, pub, []byte(token), nil)
	if err != nil {
		return "", fmt.Errorf("device: encrypt token: %w", err)
	}
	return Compress(ciphertext), nil
}

// IP returns the device's registry key.
func (d *Device) IP() string { return d.ip }

// OS and Version report what the peer announced at login.
func (d *Device) OS() string       { return d.os }
func (d *Device) Version() float64 { return d.version }

// SubdeviceCount reports how many subdevices this device has presented,
// for the dashboard's device listing.
func (d *Device) SubdeviceCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.subdevices)
}

// SetMeta records the OS name and client version announced at login.
func (d *Device) SetMeta(os string, version float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.os = os
	d.version = version
}
