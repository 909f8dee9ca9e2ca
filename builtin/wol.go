// Package builtin provides the in-tree API functions and sensors every
// backend registers at startup, the Go analogue of the original's
// plugins/bfunc and plugins/sensors directories. Unlike a dynamically
// loaded .so (see plugins.LoadDir), these are linked in statically. The
// API functions are registered by calling their constructors (NewWol,
// NewNtfy, NewConfigFunc, NewEvt) with the config store or event bus
// they need; only the wttr sensor registers itself from an init func.
package builtin

import (
	"encoding/hex"
	"fmt"
	"net"
	"strings"

	"github.com/joanet/controlplane/apiresult"
	"github.com/joanet/controlplane/config"
	"github.com/joanet/controlplane/plugins"
)

// Wol wakes a machine over the network by broadcasting a magic packet
// to a MAC address looked up from config under "wol.<name>", grounded
// on original_source/plugins/bfunc/wol.py.
type Wol struct {
	Config *config.Store
}

// NewWol registers a Wol function backed by cfg under name.
func NewWol(cfg *config.Store, name string) {
	plugins.Register(name, &Wol{Config: cfg})
}

func (w *Wol) API(ctx *plugins.Context) apiresult.Result {
	if len(ctx.Args) < 1 {
		return apiresult.Msg("You need to provide the config name of the device to wake.", false)
	}

	v, ok := w.Config.Get("wol." + ctx.Args[0])
	if !ok {
		return apiresult.Msg("This device is not registered in the config!", false)
	}
	mac, ok := v.(string)
	if !ok {
		return apiresult.Msg("This device is not registered in the config!", false)
	}

	if err := sendMagicPacket(mac); err != nil {
		return apiresult.Msg("This device is not registered in the config!", false)
	}
	return apiresult.Msg("Sent wake up call.", true)
}

// sendMagicPacket broadcasts a Wake-on-LAN magic packet: six 0xFF bytes
// followed by the target MAC repeated sixteen times.
func sendMagicPacket(mac string) error {
	clean := strings.NewReplacer(":", "", "-", "").Replace(mac)
	macBytes, err := hex.DecodeString(clean)
	if err != nil || len(macBytes) != 6 {
		return fmt.Errorf("builtin: malformed MAC address %q", mac)
	}

	packet := make([]byte, 0, 6+16*6)
	for i := 0; i < 6; i++ {
		packet = append(packet, 0xFF)
	}
	for i := 0; i < 16; i++ {
		packet = append(packet, macBytes...)
	}

	conn, err := net.Dial("udp4", "255.255.255.255:9")
	if err != nil {
		return err
	}
	defer conn.Close()
	_, err = conn.Write(packet)
	return err
}
