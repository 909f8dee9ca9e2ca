package peer

import (
	"encoding/json"
	"testing"

	"github.com/joanet/controlplane/apiresult"
	"github.com/joanet/controlplane/httpcodec"
	"github.com/joanet/controlplane/plugins"
	"github.com/joanet/controlplane/webserver"
)

func TestMergeBodyOverlaysQueryWithJSONBody(t *testing.T) {
	body, _ := json.Marshal(map[string]any{"a": "from-body"})
	req := &httpcodec.Request{
		Query: map[string]any{"a": "from-query", "b": "only-query"},
		Body:  body,
	}
	merged := mergeBody(req)
	if merged["a"] != "from-body" || merged["b"] != "only-query" {
		t.Errorf("merged = %v", merged)
	}
}

func TestMergeBodyWithoutBodyUsesQueryOnly(t *testing.T) {
	req := &httpcodec.Request{Query: map[string]any{"x": "y"}}
	merged := mergeBody(req)
	if merged["x"] != "y" || len(merged) != 1 {
		t.Errorf("merged = %v", merged)
	}
}

type peerEchoFunc struct{}

func (peerEchoFunc) API(ctx *plugins.Context) apiresult.Result {
	return apiresult.JSONValue(map[string]any{"ok": true}, true)
}

func newTestFrontend(backendIP string) *Frontend {
	return &Frontend{
		BackendIP: backendIP,
		server:    webserver.New("127.0.0.1:0", "", nil, nil),
		log:       nil,
	}
}

func TestHandleRedirectsNonBackendCaller(t *testing.T) {
	f := newTestFrontend("10.0.0.5")
	f.log = nil
	resp := callHandle(t, f, &httpcodec.Request{Path: "/anything", Headers: httpcodec.NewHeader()}, "10.0.0.9")
	if resp.Code != 301 {
		t.Fatalf("Code = %d, want 301", resp.Code)
	}
}

func TestHandleDispatchesRegisteredFunction(t *testing.T) {
	plugins.Register("peer-echo-test", peerEchoFunc{})
	f := newTestFrontend("10.0.0.5")
	resp := callHandle(t, f, &httpcodec.Request{Path: "/peer-echo-test", Headers: httpcodec.NewHeader()}, "10.0.0.5")
	if resp.Code != 200 {
		t.Fatalf("Code = %d, want 200, body=%s", resp.Code, resp.Body)
	}
}

func TestHandleRejectsInsufficientPermissions(t *testing.T) {
	plugins.Register("peer-perm-test", peerEchoFunc{})
	f := newTestFrontend("10.0.0.5")
	h := httpcodec.NewHeader()
	h.Set("Permissions", "100")
	resp := callHandle(t, f, &httpcodec.Request{Path: "/peer-perm-test", Headers: h}, "10.0.0.5")
	if resp.Code != 403 {
		t.Fatalf("Code = %d, want 403, body=%s", resp.Code, resp.Body)
	}
}

// callHandle invokes handle with a fixed token. It builds no logger:
// f.log stays nil, which is safe because no test here reaches the
// "close" path, the only place handle logs.
func callHandle(t *testing.T, f *Frontend, req *httpcodec.Request, remoteIP string) *httpcodec.Response {
	t.Helper()
	return f.handle(req, remoteIP, "tok")
}
