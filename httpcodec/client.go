package httpcodec

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/joanet/controlplane/wireproto"
)

// ClientResponse is a parsed response as seen from the request's caller.
type ClientResponse struct {
	Version string
	Code    int
	Message string
	Headers Header
	Body    []byte
}

// BuildTarget joins path with a URL-encoded query string built from
// params, the inverse of ParseQuery. Boolean true values are emitted as
// bare flags.
func BuildTarget(path string, params map[string]any) string {
	if len(params) == 0 {
		return path
	}
	var parts []string
	for k, v := range params {
		if b, ok := v.(bool); ok && b {
			parts = append(parts, url.QueryEscape(k))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s=%s", url.QueryEscape(k), url.QueryEscape(fmt.Sprint(v))))
	}
	return path + "?" + strings.Join(parts, "&")
}

// writeRequest serializes req onto s and flushes the message boundary.
// Used both for the plaintext SECURE opener and for encrypted payload
// requests once a stream is upgraded.
func writeRequest(s *wireproto.Stream, req *Request) error {
	target := req.Path
	version := req.Version
	if version == "" {
		version = DefaultVersion
	}
	if err := s.Send([]byte(fmt.Sprintf("%s %s %s\r\n", req.Method, target, version))); err != nil {
		return err
	}
	for k, v := range req.Headers {
		if err := s.Send([]byte(fmt.Sprintf("%s: %s\r\n", canonicalHeaderKey(k), v))); err != nil {
			return err
		}
	}
	if len(req.Body) > 0 {
		if err := s.Send([]byte(fmt.Sprintf("Content-Length: %d\r\n", len(req.Body)))); err != nil {
			return err
		}
	}
	if err := s.Send([]byte("\r\n")); err != nil {
		return err
	}
	if len(req.Body) > 0 {
		if err := s.Send(req.Body); err != nil {
			return err
		}
	}
	return s.Flush()
}

// WriteRequest is the exported form of writeRequest, used by callers
// outside this package (device remote-call proxies, the peer login
// flow) that already hold an upgraded Stream.
func WriteRequest(s *wireproto.Stream, req *Request) error {
	return writeRequest(s, req)
}

// ReadClientResponse parses a status line, headers, and body off s, the
// client-side mirror of ReadRequest.
func ReadClientResponse(s *wireproto.Stream) (*ClientResponse, error) {
	statusLine, err := readLine(s)
	if err != nil {
		return nil, fmt.Errorf("httpcodec: read status line: %w", err)
	}
	parts := strings.SplitN(statusLine, " ", 3)
	if len(parts) < 2 {
		return nil, fmt.Errorf("httpcodec: malformed status line %q", statusLine)
	}
	code, err := strconv.Atoi(parts[1])
	if err != nil {
		return nil, fmt.Errorf("httpcodec: malformed status code %q", parts[1])
	}
	resp := &ClientResponse{
		Version: parts[0],
		Code:    code,
		Headers: NewHeader(),
	}
	if len(parts) == 3 {
		resp.Message = parts[2]
	}

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
			resp.Headers.Set(strings.TrimSpace(line), "")
			continue
		}
		resp.Headers.Set(strings.TrimSpace(key), strings.TrimSpace(value))
	}

	clHeader := resp.Headers.Get("Content-Length")
	if clHeader != "" {
		n, err := strconv.Atoi(clHeader)
		if err == nil && n > 0 {
			body, err := s.Recv(n)
			if err != nil {
				return nil, fmt.Errorf("httpcodec: read body: %w", err)
			}
			body, err = Decompress(body, resp.Headers.Get("Content-Encoding"))
			if err != nil {
				return nil, fmt.Errorf("httpcodec: decompress body: %w", err)
			}
			resp.Body = body
		}
	}

	return resp, nil
}
