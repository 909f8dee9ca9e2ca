// Package discovery implements the signed SSDP-style multicast
// search/reply protocol that lets a frontend locate
// its backend on a LAN without any prior configuration beyond the
// backend's public key. Grounded on
// original_source/src/backend/multicast_srv.py and
// original_source/src/frontend/multicast_cli.py.
package discovery

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
)

// KeySize is the RSA modulus size used for the backend's identity key,
// matching MulticastServer.KEY_SIZE in the original.
const KeySize = 2048

// LoadOrCreatePrivateKey loads the backend's persisted RSA identity key
// from path, generating and persisting a fresh one (plus its public half
// at publicPath) if none exists yet.
func LoadOrCreatePrivateKey(path, publicPath string) (*rsa.PrivateKey, error) {
	if key, err := loadPrivateKey(path); err == nil {
		return key, nil
	}

	key, err := rsa.GenerateKey(rand.Reader, KeySize)
	if err != nil {
		return nil, fmt.Errorf("discovery: generate key: %w", err)
	}
	if err := writeKeyPair(key, path, publicPath); err != nil {
		return nil, err
	}
	return key, nil
}

func loadPrivateKey(path string) (*rsa.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("discovery: %s is not PEM-encoded", path)
	}
	key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("discovery: parse private key: %w", err)
	}
	return key, nil
}

func writeKeyPair(key *rsa.PrivateKey, privPath, pubPath string) error {
	privBytes := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})
	if err := os.WriteFile(privPath, privBytes, 0o600); err != nil {
		return fmt.Errorf("discovery: write private key: %w", err)
	}

	pubBytes, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return fmt.Errorf("discovery: marshal public key: %w", err)
	}
	pubPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "PUBLIC KEY",
		Bytes: pubBytes,
	})
	if err := os.WriteFile(pubPath, pubPEM, 0o644); err != nil {
		return fmt.Errorf("discovery: write public key: %w", err)
	}
	return nil
}

// LoadPublicKey loads the backend's public key as shipped with the
// frontend.
func LoadPublicKey(path string) (*rsa.PublicKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("discovery: read public key: %w", err)
	}
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("discovery: %s is not PEM-encoded", path)
	}
	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("discovery: parse public key: %w", err)
	}
	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("discovery: %s does not contain an RSA public key", path)
	}
	return rsaPub, nil
}
