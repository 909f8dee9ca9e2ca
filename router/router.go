// Package router implements the request pipeline every incoming
// "/seg1/seg2/..." path is run through: device login/auth, output
// selection, sensor polling, backend/frontend functions, and the
// remote-call fallback onto a device's own advertised local functions.
// Grounded on original_source/src/backend/backend.py's
// BackendRequest.REQUEST.
package router

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/joanet/controlplane/apiresult"
	"github.com/joanet/controlplane/device"
	"github.com/joanet/controlplane/httpcodec"
	"github.com/joanet/controlplane/logger"
	"github.com/joanet/controlplane/metrics"
	"github.com/joanet/controlplane/plugins"
)

// LoopbackIP is exempt from token checks, matching backend.py's
// special-case for calls originating from the same host.
const LoopbackIP = "127.0.0.1"

// Router dispatches parsed requests against the device registry and the
// plugin/sensor/output registries.
type Router struct {
	Devices *device.Registry
	Guard   *plugins.PollGuard
	Log     *logger.Logger
	Metrics *metrics.Metrics
}

// New builds a Router over devices, logging through log (or a default
// logger if nil) and recording outcomes in m (optional).
func New(devices *device.Registry, log *logger.Logger, m *metrics.Metrics) *Router {
	if log == nil {
		log = logger.New(logger.LevelInfo)
	}
	return &Router{Devices: devices, Guard: plugins.NewPollGuard(), Log: log, Metrics: m}
}

type accumulator struct {
	json    map[string]any
	raw     []byte
	mime    string
	code    int
	message string
	headers httpcodec.Header
}

func newAccumulator() *accumulator {
	return &accumulator{json: map[string]any{}, code: 200, message: "OK", headers: httpcodec.NewHeader()}
}

func (a *accumulator) mergeJSON(add map[string]any) {
	if a.raw != nil || add == nil {
		return
	}
	for k, v := range add {
		a.json[k] = v
	}
}

func (a *accumulator) setRaw(data []byte, mime string) {
	a.raw = data
	a.mime = mime
}

func (a *accumulator) mergeHeaders(add map[string]string) {
	for k, v := range add {
		a.headers.Set(k, v)
	}
}

func (a *accumulator) response() *httpcodec.Response {
	if a.raw != nil {
		return &httpcodec.Response{Code: a.code, Message: a.message, Headers: a.headers, Body: a.raw, Mime: a.mime}
	}
	body, err := json.Marshal(a.json)
	if err != nil {
		body = []byte(`{"message":"failed to encode response"}`)
	}
	return &httpcodec.Response{Code: a.code, Message: a.message, Headers: a.headers, Body: body, Mime: "application/json"}
}

// Handle runs the full request pipeline for a parsed path against body,
// for a caller at remoteIP presenting authHeader.
func (r *Router) Handle(rawPath string, body map[string]any, remoteIP, authHeader string) *httpcodec.Response {
	path, err := url.PathUnescape(rawPath)
	if err != nil {
		path = rawPath
	}

	acc := newAccumulator()
	outputCtor, _ := LookupOutput("default")

	var dev *device.Device
	if d, ok := r.Devices.Get(remoteIP); ok {
		dev = d
	}

	perm := device.Default()
	if dev != nil {
		if remoteIP == LoopbackIP {
			perm = device.Max(dev)
		} else if p, ok := dev.Authenticate(authHeader); ok {
			perm = p
		}
	}

	for _, segment := range strings.Split(path, "/") {
		if segment == "" {
			continue
		}
		fargs := strings.Split(segment, ".")
		dotted := strings.Join(fargs, ".")

		result, stepErr := r.step(dev, fargs, body, remoteIP, authHeader, perm, outputCtor, acc)
		if stepErr != nil {
			rErr, ok := stepErr.(*Error)
			if !ok {
				rErr = funcFailedError(dotted, stepErr.Error())
			}
			r.recordOutcome(false)
			code, message := rErr.StatusCode()
			return &httpcodec.Response{
				Code:    code,
				Message: message,
				Headers: httpcodec.NewHeader(),
				Body:    mustJSON(map[string]any{"message": rErr.Message, "exception": rErr.Exception}),
				Mime:    "application/json",
			}
		}

		switch result.kind {
		case resultLogin:
			r.recordOutcome(result.loginResult.Success)
			return encodeLoginResponse(result.loginResult)
		case resultOutputSwitch:
			outputCtor = result.newOutputCtor
		case resultMerge:
			if result.res.Raw != nil {
				acc.setRaw(result.res.Raw, result.res.Mime)
			} else if obj, ok := asJSONObject(result.res.JSON); ok {
				acc.mergeJSON(obj)
			}
		}
	}

	r.recordOutcome(true)
	return acc.response()
}

func mustJSON(v map[string]any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		return []byte(`{}`)
	}
	return b
}

func asJSONObject(v any) (map[string]any, bool) {
	if v == nil {
		return nil, false
	}
	obj, ok := v.(map[string]any)
	return obj, ok
}

func encodeLoginResponse(res apiresult.Result) *httpcodec.Response {
	code := 200
	message := "LOGGED_IN"
	if !res.Success {
		code = 400
		message = "BAD_BODY"
	}
	body, _, _ := res.Encode()
	return &httpcodec.Response{Code: code, Message: message, Headers: httpcodec.NewHeader(), Body: body, Mime: "application/json"}
}

func (r *Router) recordOutcome(success bool) {
	if r.Metrics != nil {
		r.Metrics.RecordRequest(success)
	}
}

type stepResultKind int

const (
	resultNone stepResultKind = iota
	resultLogin
	resultOutputSwitch
	resultMerge
)

type stepResult struct {
	kind          stepResultKind
	loginResult   apiresult.Result
	newOutputCtor NewOutput
	res           apiresult.Result
}

// step runs one "/"-delimited path segment through the pipeline,
// returning what Handle should fold into its accumulator, or an *Error
// for an auth/lookup failure, or a plain error for an unexpected one.
func (r *Router) step(dev *device.Device, fargs []string, body map[string]any, remoteIP, authHeader string, perm device.PermissionLevel, outputCtor NewOutput, acc *accumulator) (stepResult, error) {
	name := fargs[0]

	if dev == nil || strings.EqualFold(name, "login") {
		newDev := r.Devices.Login(remoteIP)
		if strings.EqualFold(name, "login") {
			return stepResult{kind: resultLogin, loginResult: newDev.Login(body)}, nil
		}
		r.Devices.Remove(remoteIP)
		return stepResult{}, notLoginError()
	}

	if remoteIP != LoopbackIP && perm.IntLevel() <= device.Default().IntLevel() {
		return stepResult{}, invalidTokenError(authHeader != "")
	}

	if strings.HasPrefix(name, ":") {
		if ctor, ok := LookupOutput(strings.TrimPrefix(name, ":")); ok {
			return stepResult{kind: resultOutputSwitch, newOutputCtor: ctor}, nil
		}
		return stepResult{}, nil
	}

	if _, ok := LookupSensor(name); ok {
		out := outputCtor(body)
		_, err := pollAndRender(r.Guard, name, fargs[1:], out)
		if err != nil {
			return stepResult{}, funcFailedError(strings.Join(fargs, "."), err.Error())
		}
		res := apiresult.Result{Success: true, JSON: out.APIResp()}
		acc.mergeHeaders(out.APIHeaders())
		acc.code, acc.message = out.APICode(acc.code, acc.message)
		return stepResult{kind: resultMerge, res: res}, nil
	}

	if fn, ok := plugins.Lookup(name); ok {
		required := plugins.Permissions(name, 50)
		if perm.IntLevel() < required {
			return stepResult{}, noPermsError(name)
		}
		res := fn.API(&plugins.Context{Args: fargs[1:], Body: body})
		if !res.Success {
			return stepResult{}, funcFailedError(strings.Join(fargs, "."), fmt.Sprint(res.JSON))
		}
		return stepResult{kind: resultMerge, res: res}, nil
	}

	if dev.HasLocalFunc(name) {
		res, err := dev.CallLocalFunc(fargs, body)
		if err != nil {
			return stepResult{}, funcFailedError(strings.Join(fargs, "."), err.Error())
		}
		return stepResult{kind: resultMerge, res: res}, nil
	}

	return stepResult{}, funcNotFoundError(strings.Join(fargs, "."))
}

// ExecuteLocal runs a single dotted path as an internal call with no
// device or token involved, the side door the event bus and automation
// engine use to fire actions ("notify.send" -> function "notify" called
// with args ["send"]).
func (r *Router) ExecuteLocal(path string, body map[string]any) error {
	fargs := strings.Split(path, ".")
	if len(fargs) == 0 || fargs[0] == "" {
		return fmt.Errorf("router: empty action path")
	}
	fn, ok := plugins.Lookup(fargs[0])
	if !ok {
		return fmt.Errorf("router: no such function: %s", fargs[0])
	}
	res := fn.API(&plugins.Context{Args: fargs[1:], Body: body})
	if !res.Success {
		return fmt.Errorf("router: action %q failed: %v", path, res.JSON)
	}
	return nil
}
