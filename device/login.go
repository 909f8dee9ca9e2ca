package device

import (
	"github.com/joanet/controlplane/apiresult"
)

// Login applies a decoded login request body to the device, loading its
// public key, subdevices, advertised local functions, OS, and version,
// then returns the response to hand back to the caller: the device's
// token RSA-encrypted against the key it just supplied.
func (d *Device) Login(body map[string]any) apiresult.Result {
	key, _ := body["key"].(string)
	if key != "" {
		if err := d.LoadPubKey(key); err != nil {
			return apiresult.Msg("Body has bad content", false)
		}
	}

	if subdevs, ok := body["subdevices"].([]any); ok {
		d.LoadSubdevs(subdevs)
	}

	if funcs, ok := body["funcs"].([]any); ok {
		for _, f := range funcs {
			if name, ok := f.(string); ok {
				d.AppendLocalFunc(name)
			}
		}
	}

	version, _ := body["version"].(float64)
	os, _ := body["os"].(string)
	if os == "" {
		os = "Unknown"
	}
	d.SetMeta(os, version)

	token, err := d.EncToken()
	if err != nil {
		return apiresult.Msg("Body has bad content", false)
	}

	return apiresult.JSONValue(map[string]any{
		"message": "Device logged in",
		"token":   token,
	}, true)
}
