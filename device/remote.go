package device

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/joanet/controlplane/apiresult"
	"github.com/joanet/controlplane/httpcodec"
)

// CallLocalFunc dials the device's own webserver over a fresh SECURE
// connection and invokes one of the local functions it advertised at
// login, the peer-to-peer analogue of device.py's call_local_fun. The
// "logout" function is handled without a round trip.
func (d *Device) CallLocalFunc(fargs []string, body map[string]any) (apiresult.Result, error) {
	if len(fargs) == 0 || !d.HasLocalFunc(fargs[0]) {
		return apiresult.Result{}, fmt.Errorf("device: local function not found: %s", strings.Join(fargs, "."))
	}

	if fargs[0] == "logout" {
		return apiresult.Msg("Logout successful!", true), nil
	}

	addr := fmt.Sprintf("%s:%d", d.ip, Port)
	s, err := httpcodec.DialSecure(addr)
	if err != nil {
		return apiresult.Result{}, fmt.Errorf("device: dial %s: %w", addr, err)
	}
	defer s.Close()

	payload, err := json.Marshal(body)
	if err != nil {
		return apiresult.Result{}, fmt.Errorf("device: marshal body: %w", err)
	}

	h := httpcodec.NewHeader()
	h.Set("Content-Type", "application/json")
	h.Set("User-Agent", httpcodec.UserAgent)
	req := &httpcodec.Request{
		Method:  "POST",
		Path:    "/" + strings.Join(fargs, "."),
		Version: httpcodec.DefaultVersion,
		Headers: h,
		Body:    payload,
	}
	if err := httpcodec.WriteRequest(s, req); err != nil {
		return apiresult.Result{}, fmt.Errorf("device: write request: %w", err)
	}

	resp, err := httpcodec.ReadClientResponse(s)
	if err != nil {
		return apiresult.Result{}, fmt.Errorf("device: read response: %w", err)
	}

	return apiresult.Data(resp.Body, resp.Headers.Get("Content-Type"), resp.Code < 300), nil
}

// Close sends a best-effort close request to the device's own webserver,
// matching device.py's Device.close: failures are swallowed, not
// surfaced to the caller, since there is nothing useful to do about a
// peer that has already gone away.
func (d *Device) Close() {
	addr := fmt.Sprintf("%s:%d", d.ip, Port)
	s, err := httpcodec.DialSecure(addr)
	if err != nil {
		return
	}
	defer s.Close()

	h := httpcodec.NewHeader()
	h.Set("User-Agent", httpcodec.UserAgent)
	req := &httpcodec.Request{Method: "GET", Path: "/close", Version: httpcodec.DefaultVersion, Headers: h}
	_ = httpcodec.WriteRequest(s, req)
}
