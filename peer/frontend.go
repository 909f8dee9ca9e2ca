package peer

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/joanet/controlplane/apiresult"
	"github.com/joanet/controlplane/device"
	"github.com/joanet/controlplane/discovery"
	"github.com/joanet/controlplane/httpcodec"
	"github.com/joanet/controlplane/logger"
	"github.com/joanet/controlplane/plugins"
	"github.com/joanet/controlplane/webserver"
)

// FrontendConfig carries what RunFrontend needs to discover a backend,
// log in, and start serving frontend-function requests locally.
type FrontendConfig struct {
	Addr       string // local listen address, e.g. "0.0.0.0:4001"
	PubKeyPath string
	OS         string
	Version    float64
	Log        *logger.Logger
}

// Frontend is a logged-in, serving frontend process.
type Frontend struct {
	BackendIP string

	server *webserver.Server
	log    *logger.Logger
}

// RunFrontend discovers a backend via signed multicast, logs in over
// SECURE, and starts a local webserver dispatching frontend functions —
// grounded on main.py's "frontend" branch and frontend.py's
// FrontendRequest.
func RunFrontend(cfg FrontendConfig) (*Frontend, error) {
	log := cfg.Log
	if log == nil {
		log = logger.New(logger.LevelInfo)
	}

	pub, err := discovery.LoadPublicKey(cfg.PubKeyPath)
	if err != nil {
		return nil, fmt.Errorf("peer: load backend public key: %w", err)
	}
	client, err := discovery.NewClient(pub)
	if err != nil {
		return nil, fmt.Errorf("peer: build discovery client: %w", err)
	}
	backendIP, err := client.Search(discoverTimeout)
	if err != nil {
		return nil, fmt.Errorf("peer: discover backend: %w", err)
	}

	token, err := login(backendIP, cfg.OS, cfg.Version)
	if err != nil {
		return nil, fmt.Errorf("peer: login to %s: %w", backendIP, err)
	}

	f := &Frontend{BackendIP: backendIP, log: log}
	f.server = webserver.New(cfg.Addr, "", func(req *httpcodec.Request, remoteIP string) *httpcodec.Response {
		return f.handle(req, remoteIP, token)
	}, log)
	if err := f.server.Start(); err != nil {
		return nil, fmt.Errorf("peer: start frontend webserver: %w", err)
	}
	return f, nil
}

// login performs the SECURE handshake and /login round trip against the
// discovered backend, returning the bearer token it replies with.
func login(backendIP, os string, version float64) (string, error) {
	stream, err := httpcodec.DialSecure(fmt.Sprintf("%s:%d", backendIP, device.Port))
	if err != nil {
		return "", err
	}
	defer stream.Close()

	body, err := json.Marshal(map[string]any{"os": os, "version": version})
	if err != nil {
		return "", err
	}
	h := httpcodec.NewHeader()
	h.Set("Content-Type", "application/json")
	req := &httpcodec.Request{Method: "POST", Path: "/login", Version: httpcodec.DefaultVersion, Headers: h, Body: body}
	if err := httpcodec.WriteRequest(stream, req); err != nil {
		return "", err
	}

	resp, err := httpcodec.ReadClientResponse(stream)
	if err != nil {
		return "", err
	}
	if resp.Code != 200 {
		return "", fmt.Errorf("login rejected: %d %s", resp.Code, resp.Message)
	}

	var decoded map[string]any
	if err := json.Unmarshal(resp.Body, &decoded); err != nil {
		return "", fmt.Errorf("decode login response: %w", err)
	}
	token, _ := decoded["token"].(string)
	return token, nil
}

// handle answers one request against this frontend's advertised
// functions, matching FrontendRequest.REQUEST: any caller other than
// the logged-in backend is redirected there, "close" shuts the local
// server down, and everything else dispatches through the function
// registry with a Permissions-header check.
func (f *Frontend) handle(req *httpcodec.Request, remoteIP, token string) *httpcodec.Response {
	if remoteIP != f.BackendIP {
		h := httpcodec.NewHeader()
		h.Set("Location", fmt.Sprintf("http://%s:%d%s", f.BackendIP, device.Port, req.Path))
		return &httpcodec.Response{Code: 301, Message: "MOVED", Headers: h}
	}

	perms := 0
	if v := req.Headers.Get("Permissions"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			perms = n
		}
	}

	body := mergeBody(req)
	result := apiresult.Empty()

	for _, seg := range strings.Split(strings.Trim(req.Path, "/"), "/") {
		if seg == "" {
			continue
		}
		fargs := strings.Split(seg, ".")
		name := fargs[0]

		if strings.EqualFold(name, "close") {
			f.log.Infof("peer: close request received")
			go f.server.Stop()
			return jsonResponse(200, "CLOSED", map[string]any{"message": "Closed!"})
		}

		fn, ok := plugins.Lookup(name)
		if !ok {
			continue
		}
		if required := plugins.Permissions(name, 50); perms > required {
			return jsonResponse(403, "NO_PERMS", map[string]any{
				"message": fmt.Sprintf("Not enough permissions to execute `%s`!", strings.Join(fargs, ".")),
			})
		}

		res := fn.API(&plugins.Context{Request: req, Args: fargs[1:], Body: body})
		result = result.Combine(name, res)
	}

	code, message := result.StatusCode()
	respBody, mime, err := result.Encode()
	if err != nil {
		return jsonResponse(500, "ENCODE_FAILED", map[string]any{"message": err.Error()})
	}
	return &httpcodec.Response{Code: code, Message: message, Headers: httpcodec.NewHeader(), Body: respBody, Mime: mime}
}

func jsonResponse(code int, message string, body map[string]any) *httpcodec.Response {
	b, _ := json.Marshal(body)
	return &httpcodec.Response{Code: code, Message: message, Headers: httpcodec.NewHeader(), Body: b, Mime: "application/json"}
}

// Shutdown stops the local webserver.
func (f *Frontend) Shutdown() {
	f.server.Stop()
}
