package wireproto

import (
	"bytes"
	"net"
	"sync"
)

// Stream wraps a net.Conn with a framed, block-aligned encrypt/decrypt
// discipline: writes are buffered until a full cipher
// block accumulates, and a trailing partial block is zero-padded on
// Flush/Close. Grounded on
// original_source/src/encryption/enc_socket.py's EncSocket, which keeps a
// `_send_buff`/`_recv_buff` byte buffer per connection for exactly this
// reason.
type Stream struct {
	conn net.Conn

	mu     sync.Mutex
	cipher Cipher

	sendBuf bytes.Buffer
	recvBuf bytes.Buffer

	// pendingRaw holds ciphertext bytes read off the wire that didn't
	// complete a cipher block yet. TCP gives no guarantee that a Read
	// returns the same byte groups a peer's Write sent, so a block can
	// arrive split across two Read calls; those bytes sit here until
	// the rest of the block shows up.
	pendingRaw bytes.Buffer
}

// NewStream wraps conn, starting with IdentityCipher until a SECURE
// handshake installs a real cipher via UpdateCipher.
func NewStream(conn net.Conn) *Stream {
	return &Stream{conn: conn, cipher: IdentityCipher{}}
}

// UpdateCipher swaps the active cipher. Any buffered, not-yet-flushed
// plaintext is preserved; it will be framed under the new cipher's block
// size on the next Send/Flush.
func (s *Stream) UpdateCipher(c Cipher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cipher = c
}

// Send appends p to the outgoing buffer and writes out every full cipher
// block it now contains. Call Flush to force out a trailing partial
// block.
func (s *Stream) Send(p []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sendBuf.Write(p)
	return s.writeFullBlocks()
}

// writeFullBlocks encrypts and writes every complete cipher block
// currently sitting in sendBuf, leaving any remainder buffered. Caller
// must hold s.mu.
func (s *Stream) writeFullBlocks() error {
	bs := s.cipher.BlockSize()
	if bs <= 0 {
		bs = 1
	}
	n := s.sendBuf.Len()
	full := (n / bs) * bs
	if full == 0 {
		return nil
	}

	chunk := make([]byte, full)
	copy(chunk, s.sendBuf.Bytes()[:full])

	remainder := make([]byte, n-full)
	copy(remainder, s.sendBuf.Bytes()[full:])
	s.sendBuf.Reset()
	s.sendBuf.Write(remainder)

	encrypted := s.cipher.Encrypt(chunk)
	_, err := s.conn.Write(encrypted)
	return err
}

// Flush zero-pads any buffered partial block out to the cipher's block
// size and writes it, preserving the framing round-trip: a receiver
// always gets back at least as many bytes as were sent, zero-padded to
// the next block boundary. It is a no-op if the buffer is empty or
// already block-aligned.
func (s *Stream) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.writeFullBlocks(); err != nil {
		return err
	}

	n := s.sendBuf.Len()
	if n == 0 {
		return nil
	}
	bs := s.cipher.BlockSize()
	pad := (bs - n%bs) % bs
	if pad > 0 {
		s.sendBuf.Write(make([]byte, pad))
	}
	return s.writeFullBlocks()
}

// Recv reads and decrypts until at least n plaintext bytes are available,
// then returns exactly n of them, buffering any excess for the next
// call. Cipher blocks split across two wire reads are reassembled in
// pendingRaw before decryption, since a partial block cannot be
// decrypted on its own.
func (s *Stream) Recv(n int) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bs := s.cipher.BlockSize()
	if bs <= 0 {
		bs = 1
	}

	for s.recvBuf.Len() < n {
		raw := make([]byte, bs*4096)
		m, err := s.conn.Read(raw)
		if m > 0 {
			s.pendingRaw.Write(raw[:m])

			avail := s.pendingRaw.Len()
			alignedLen := (avail / bs) * bs
			if alignedLen > 0 {
				pending := s.pendingRaw.Bytes()
				s.recvBuf.Write(s.cipher.Decrypt(pending[:alignedLen]))

				remainder := make([]byte, avail-alignedLen)
				copy(remainder, pending[alignedLen:])
				s.pendingRaw.Reset()
				s.pendingRaw.Write(remainder)
			}
		}
		if err != nil {
			if s.recvBuf.Len() >= n {
				break
			}
			return nil, err
		}
	}

	out := make([]byte, n)
	copy(out, s.recvBuf.Bytes()[:n])
	remainder := make([]byte, s.recvBuf.Len()-n)
	copy(remainder, s.recvBuf.Bytes()[n:])
	s.recvBuf.Reset()
	s.recvBuf.Write(remainder)
	return out, nil
}

// Close flushes any pending buffered output and closes the underlying
// connection.
func (s *Stream) Close() error {
	_ = s.Flush()
	return s.conn.Close()
}

// Conn returns the underlying net.Conn, for callers that need peer
// address info or deadline control.
func (s *Stream) Conn() net.Conn {
	return s.conn
}
