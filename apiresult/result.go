// Package apiresult implements the composable result value shared by
// every stage of the request router: plugins, sensors, and remote-action
// proxies all return an APIResult, and the router folds a whole
// request's worth of them into a single HTTP response.
package apiresult

import "encoding/json"

// Result is the composable outcome of a router stage.
//
// Exactly one of JSON or Raw is meaningful at encoding time; Raw, when
// present, always wins over JSON in the final encoding. The zero value
// is a failed, empty result.
type Result struct {
	Success bool
	JSON    any // an object (map[string]any), a scalar, or nil
	Raw     []byte
	Mime    string
}

// Success builds a Result carrying no data beyond the success flag.
func Success(ok bool) Result {
	return Result{Success: ok}
}

// Msg builds a Result with the given success flag whose JSON body is
// {"message": msg}.
func Msg(msg string, success bool) Result {
	return Result{Success: success, JSON: map[string]any{"message": msg}}
}

// JSONValue builds a Result wrapping an arbitrary JSON-able value.
func JSONValue(v any, success bool) Result {
	return Result{Success: success, JSON: v}
}

// Data builds a Result carrying a raw byte payload with the given MIME
// type, overriding any JSON body at encoding time.
func Data(data []byte, mime string, success bool) Result {
	return Result{Success: success, Raw: data, Mime: mime}
}

// Empty returns the canonical "nothing happened, but it was fine" result:
// success with an empty JSON object, matching the original's
// `byJson({})` constructor.
func Empty() Result {
	return Result{Success: true, JSON: map[string]any{}}
}

// Combine merges other into r under key name and returns the updated
// value:
//
//   - success := r.Success && other.Success
//   - if r.JSON is an object and other has a JSON value, insert
//     name -> other.JSON into it
//   - if other has Raw data, it replaces r's Raw (and Mime) — raw
//     overrides JSON and, once set, is never "revived" back to JSON by a
//     later JSON-only result.
//
// r is returned by value; Combine does not mutate the receiver's JSON map
// in place when r.JSON is nil (a fresh map is allocated).
func (r Result) Combine(name string, other Result) Result {
	out := r
	out.Success = r.Success && other.Success

	if obj, ok := asObject(r.JSON); ok && other.JSON != nil {
		merged := make(map[string]any, len(obj)+1)
		for k, v := range obj {
			merged[k] = v
		}
		merged[name] = other.JSON
		out.JSON = merged
	}

	if other.Raw != nil {
		out.Raw = other.Raw
		out.Mime = other.Mime
	}

	return out
}

func asObject(v any) (map[string]any, bool) {
	if v == nil {
		return map[string]any{}, true
	}
	obj, ok := v.(map[string]any)
	return obj, ok
}

// Encode renders the Result as it should be written to the wire: a body
// and a MIME type. If Raw is present it is returned verbatim. Otherwise
// the JSON value is marshaled; JSON objects are served as
// "application/json", while bare scalars are stringified as
// "text/plain".
func (r Result) Encode() ([]byte, string, error) {
	if r.Raw != nil {
		mime := r.Mime
		if mime == "" {
			mime = "application/octet-stream"
		}
		return r.Raw, mime, nil
	}

	if obj, ok := r.JSON.(map[string]any); ok {
		b, err := json.Marshal(obj)
		if err != nil {
			return nil, "", err
		}
		return b, "application/json", nil
	}

	if r.JSON == nil {
		return []byte("null"), "text/plain", nil
	}

	b, err := json.Marshal(r.JSON)
	if err != nil {
		return nil, "", err
	}
	return b, "text/plain", nil
}

// StatusCode returns the HTTP status pair for this result: 200/"OK" on
// success, 500/"NOK" otherwise.
func (r Result) StatusCode() (int, string) {
	if r.Success {
		return 200, "OK"
	}
	return 500, "NOK"
}
