package httpcodec

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/zstd"
)

// codec is one candidate Accept-Encoding entry, tried in the order the
// original's ENCODINGS list tries deflate then gzip — extended here with
// zstd and brotli, both already present in the dependency graph.
type codec struct {
	name    string
	compress func([]byte) ([]byte, bool)
}

var codecs = []codec{
	{"deflate", compressDeflate},
	{"gzip", compressGzip},
	{"zstd", compressZstd},
	{"br", compressBrotli},
}

// Negotiate applies every codec named in acceptEncoding, in our fixed
// preference order, and returns the smallest result along with its
// Content-Encoding name. Compression is only used if the result is
// strictly shorter than the original; otherwise the original bytes are
// returned with an empty encoding name.
func Negotiate(body []byte, acceptEncoding string) (out []byte, encoding string) {
	if acceptEncoding == "" {
		return body, ""
	}
	accepted := make(map[string]bool)
	for _, tok := range strings.Split(acceptEncoding, ",") {
		accepted[strings.TrimSpace(strings.ToLower(tok))] = true
	}

	best := body
	bestName := ""
	for _, c := range codecs {
		if !accepted[c.name] {
			continue
		}
		candidate, ok := c.compress(body)
		if !ok {
			continue
		}
		if len(candidate) < len(best) {
			best = candidate
			bestName = c.name
		}
	}
	if bestName == "" {
		return body, ""
	}
	return best, bestName
}

// Decompress reverses Negotiate's chosen encoding, used when this node
// is on the receiving end of a compressed response.
func Decompress(body []byte, encoding string) ([]byte, error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "", "identity":
		return body, nil
	case "deflate":
		r := flate.NewReader(bytes.NewReader(body))
		defer r.Close()
		return readAll(r)
	case "gzip":
		r, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		defer r.Close()
		return readAll(r)
	case "zstd":
		r, err := zstd.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		defer r.Close()
		return readAll(r)
	case "br":
		return readAll(brotli.NewReader(bytes.NewReader(body)))
	default:
		return body, nil
	}
}

func readAll(r interface{ Read([]byte) (int, error) }) ([]byte, error) {
	var buf bytes.Buffer
	chunk := make([]byte, 4096)
	for {
		n, err := r.Read(chunk)
		if n > 0 {
			buf.Write(chunk[:n])
		}
		if err != nil {
			if err.Error() == "EOF" {
				break
			}
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func compressDeflate(body []byte) ([]byte, bool) {
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.BestCompression)
	if err != nil {
		return nil, false
	}
	if _, err := w.Write(body); err != nil {
		return nil, false
	}
	if err := w.Close(); err != nil {
		return nil, false
	}
	return buf.Bytes(), true
}

func compressGzip(body []byte) ([]byte, bool) {
	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return nil, false
	}
	if _, err := w.Write(body); err != nil {
		return nil, false
	}
	if err := w.Close(); err != nil {
		return nil, false
	}
	return buf.Bytes(), true
}

func compressZstd(body []byte) ([]byte, bool) {
	var buf bytes.Buffer
	w, err := zstd.NewWriter(&buf, zstd.WithEncoderLevel(zstd.SpeedBestCompression))
	if err != nil {
		return nil, false
	}
	if _, err := w.Write(body); err != nil {
		return nil, false
	}
	if err := w.Close(); err != nil {
		return nil, false
	}
	return buf.Bytes(), true
}

func compressBrotli(body []byte) ([]byte, bool) {
	var buf bytes.Buffer
	w := brotli.NewWriterLevel(&buf, brotli.BestCompression)
	if _, err := w.Write(body); err != nil {
		return nil, false
	}
	if err := w.Close(); err != nil {
		return nil, false
	}
	return buf.Bytes(), true
}
