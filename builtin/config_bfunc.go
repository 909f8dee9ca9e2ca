package builtin

import (
	"fmt"

	"github.com/joanet/controlplane/apiresult"
	"github.com/joanet/controlplane/config"
	"github.com/joanet/controlplane/plugins"
)

// ConfigFunc exposes the running config.Store over the API: a bare call
// dumps the whole document, and "set" with a body's "config" object
// writes each dotted path in it. Grounded on
// original_source/plugins/bfunc/config.py.
type ConfigFunc struct {
	Config *config.Store
}

// NewConfigFunc registers a ConfigFunc backed by cfg under name.
func NewConfigFunc(cfg *config.Store, name string) {
	plugins.Register(name, &ConfigFunc{Config: cfg})
}

func (c *ConfigFunc) API(ctx *plugins.Context) apiresult.Result {
	if len(ctx.Args) == 0 {
		return apiresult.JSONValue(c.Config.Full(), true)
	}

	values, ok := ctx.Body["config"].(map[string]any)
	if !ok {
		return apiresult.Msg("Argument and body needed", false)
	}

	switch ctx.Args[0] {
	case "set":
		for k, v := range values {
			if err := c.Config.Set(k, v); err != nil {
				return apiresult.Msg(fmt.Sprintf("Failed to set %q: %v", k, err), false)
			}
		}
		return apiresult.Msg("Config value set", true)
	default:
		return apiresult.Msg(fmt.Sprintf("Argument %s not recognized!", ctx.Args[0]), false)
	}
}
