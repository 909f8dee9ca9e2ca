package builtin

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/joanet/controlplane/apiresult"
	"github.com/joanet/controlplane/config"
	"github.com/joanet/controlplane/plugins"
)

// Ntfy posts a notification to a configured ntfy server, merging the
// caller's body over a default topic/title. Grounded on
// original_source/plugins/bfunc/ntfy.py.
type Ntfy struct {
	Config *config.Store
	Client *http.Client
}

// NewNtfy registers an Ntfy function backed by cfg under name.
func NewNtfy(cfg *config.Store, name string) {
	plugins.Register(name, &Ntfy{Config: cfg, Client: http.DefaultClient})
}

func (n *Ntfy) API(ctx *plugins.Context) apiresult.Result {
	body := map[string]any{
		"topic": n.Config.GetString("ntfy.default_topic", ""),
		"title": "New notification!",
	}
	for k, v := range ctx.Body {
		body[k] = v
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return apiresult.Msg("Failed to send notification!", false)
	}

	url := fmt.Sprintf("http://%s:%s/",
		n.Config.GetString("ntfy.ip", ""),
		n.Config.GetString("ntfy.port", ""))

	client := n.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Post(url, "application/json", bytes.NewReader(raw))
	if err != nil {
		return apiresult.Msg("Failed to send notification!", false)
	}
	resp.Body.Close()

	return apiresult.Msg("Notification sent!", true)
}
