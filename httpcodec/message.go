package httpcodec

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/joanet/controlplane/wireproto"
)

// Request is a parsed incoming request: status line plus headers plus
// body, with the query string already decoded.
type Request struct {
	Method  string
	Path    string
	Version string
	Query   map[string]any
	Headers Header
	Body    []byte
}

// Response is what a handler produces; WriteResponse serializes it onto
// a stream.
type Response struct {
	Code    int
	Message string
	Headers Header
	Body    []byte
	Mime    string
}

const (
	// DefaultVersion is used on requests this node originates.
	DefaultVersion = "HTTP/1.1"
	// UserAgent is this node's fixed wire identity.
	UserAgent = "JoaNetAPI/0.1"
)

// readLine reads bytes from s one at a time until a bare "\n",
// returning the line with any trailing "\r" stripped. Reads are cheap
// even though one-byte-at-a-time: Stream buffers whole decrypted cipher
// blocks internally and only serves them out incrementally.
func readLine(s *wireproto.Stream) (string, error) {
	var sb strings.Builder
	for {
		b, err := s.Recv(1)
		if err != nil {
			return "", err
		}
		if b[0] == '\n' {
			break
		}
		sb.WriteByte(b[0])
	}
	line := sb.String()
	return strings.TrimSuffix(line, "\r"), nil
}

// ReadRequest parses a status line, headers, and (for POST/PUT) a body
// off s, per webrequest.py's read_headers/read_body.
func ReadRequest(s *wireproto.Stream) (*Request, error) {
	statusLine, err := readLine(s)
	if err != nil {
		return nil, fmt.Errorf("httpcodec: read status line: %w", err)
	}
	parts := strings.SplitN(statusLine, " ", 3)
	if len(parts) < 2 {
		return nil, fmt.Errorf("httpcodec: malformed status line %q", statusLine)
	}
	req := &Request{
		Method:  parts[0],
		Headers: NewHeader(),
	}
	if len(parts) == 3 {
		req.Version = parts[2]
	} else {
		req.Version = DefaultVersion
	}

	path, query := SplitTarget(parts[1])
	req.Path = path
	req.Query = ParseQuery(query)

	for {
		line, err := readLine(s)
		if err != nil {
			return nil, fmt.Errorf("httpcodec: read headers: %w", err)
		}
		if line == "" {
			break
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			req.Headers.Set(strings.TrimSpace(line), "")
			continue
		}
		req.Headers.Set(strings.TrimSpace(key), strings.TrimSpace(value))
	}

	method := strings.ToUpper(req.Method)
	if method == "POST" || method == "PUT" {
		body, err := readBody(s, req.Headers)
		if err != nil {
			return nil, err
		}
		req.Body = body
	}

	return req, nil
}

func readBody(s *wireproto.Stream, headers Header) ([]byte, error) {
	clHeader := headers.Get("Content-Length")
	if clHeader == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(clHeader)
	if err != nil || n <= 0 {
		return nil, nil
	}
	body, err := s.Recv(n)
	if err != nil {
		return nil, fmt.Errorf("httpcodec: read body: %w", err)
	}
	return body, nil
}

// WriteResponse serializes resp onto s, applying compression negotiation
// against the request's Accept-Encoding and the fixed CORS/Server
// headers, then flushes the message boundary.
func WriteResponse(s *wireproto.Stream, req *Request, resp Response) error {
	version := DefaultVersion
	if req != nil && req.Version != "" {
		version = req.Version
	}

	if err := writeLine(s, fmt.Sprintf("%s %d %s", version, resp.Code, resp.Message)); err != nil {
		return err
	}

	headers := resp.Headers
	if headers == nil {
		headers = NewHeader()
	}
	defaultHeaders(headers)
	for k, v := range headers {
		if err := writeLine(s, fmt.Sprintf("%s: %s", canonicalHeaderKey(k), v)); err != nil {
			return err
		}
	}

	if len(resp.Body) > 0 {
		mime := resp.Mime
		if mime == "" {
			mime = "text/plain"
		}
		if err := writeLine(s, fmt.Sprintf("Content-Type: %s", mime)); err != nil {
			return err
		}

		body := resp.Body
		var acceptEncoding string
		if req != nil {
			acceptEncoding = req.Headers.Get("Accept-Encoding")
		}
		compressed, encoding := Negotiate(body, acceptEncoding)
		if encoding != "" {
			if err := writeLine(s, fmt.Sprintf("Content-Encoding: %s", encoding)); err != nil {
				return err
			}
			body = compressed
		}

		if err := writeLine(s, fmt.Sprintf("Content-Length: %d", len(body))); err != nil {
			return err
		}
		if err := writeLine(s, ""); err != nil {
			return err
		}
		if err := s.Send(body); err != nil {
			return err
		}
	} else {
		if err := writeLine(s, ""); err != nil {
			return err
		}
	}

	return s.Flush()
}

func writeLine(s *wireproto.Stream, line string) error {
	return s.Send([]byte(line + "\r\n"))
}

func defaultHeaders(h Header) {
	if !h.Has("Server") {
		h.Set("Server", "JoaNetAPI")
	}
	if !h.Has("Access-Control-Allow-Origin") {
		h.Set("Access-Control-Allow-Origin", "*")
	}
	if !h.Has("Access-Control-Allow-Methods") {
		h.Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
	}
	if !h.Has("Access-Control-Allow-Headers") {
		h.Set("Access-Control-Allow-Headers", "*")
	}
}

// canonicalHeaderKey title-cases a lower-cased header key for wire
// output ("content-type" -> "Content-Type").
func canonicalHeaderKey(key string) string {
	parts := strings.Split(key, "-")
	for i, p := range parts {
		if p == "" {
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, "-")
}

// WriteOptions responds to an OPTIONS request per webrequest.py's
// do_OPTIONS: 204, Allow: GET, POST, OPTIONS.
func WriteOptions(s *wireproto.Stream, req *Request) error {
	h := NewHeader()
	h.Set("Allow", "GET, POST, OPTIONS")
	return WriteResponse(s, req, Response{Code: 204, Message: "OPTIONS", Headers: h})
}
