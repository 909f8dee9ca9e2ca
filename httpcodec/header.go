// Package httpcodec implements the HTTP/1.1-like request/response codec
// carried over a wireproto.Stream: status-line and
// header parsing, query-string decoding, compression negotiation, and
// the SECURE in-band key-exchange handshake. Grounded on
// original_source/src/webserver/webrequest.py.
package httpcodec

import "strings"

// Header is a case-insensitive header map, the Go analogue of the
// original's CaseInsensitiveDict.
type Header map[string]string

func NewHeader() Header {
	return make(Header)
}

func (h Header) Set(key, value string) {
	h[strings.ToLower(key)] = value
}

func (h Header) Get(key string) string {
	return h[strings.ToLower(key)]
}

func (h Header) Has(key string) bool {
	_, ok := h[strings.ToLower(key)]
	return ok
}
