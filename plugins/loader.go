package plugins

import (
	"fmt"
	"os"
	"path/filepath"
	"plugin"
	"strings"

	"github.com/joanet/controlplane/logger"
)

// pluginSymbol is the exported symbol every dynamic plugin .so must
// provide: a zero-argument constructor returning the Func it contributes.
const pluginSymbol = "New"

// LoadDir scans dir for compiled .so plugins and registers each one
// under its file's base name (extension stripped), the Go analogue of
// pluginloader.py's load_plugins: a failure to load or register any one
// plugin is logged and skipped rather than aborting the whole scan.
func LoadDir(dir string, log *logger.Logger) error {
	files, err := listPluginFiles(dir)
	if err != nil {
		return fmt.Errorf("plugins: read dir %q: %w", dir, err)
	}

	for _, name := range files {
		path := filepath.Join(dir, name)
		fn, err := loadOne(path)
		if err != nil {
			log.Errorf("plugins: %s did not load successfully: %v", name, err)
			continue
		}
		pluginName := strings.TrimSuffix(name, filepath.Ext(name))
		Register(pluginName, fn)
		log.Debugf("plugins: registered %q from %s", pluginName, name)
	}
	return nil
}

// listPluginFiles returns the ".so" file names in dir that don't start
// with "_", in directory order.
func listPluginFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, "_") {
			continue
		}
		if !strings.HasSuffix(name, ".so") {
			continue
		}
		out = append(out, name)
	}
	return out, nil
}

func loadOne(path string) (Func, error) {
	p, err := plugin.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	sym, err := p.Lookup(pluginSymbol)
	if err != nil {
		return nil, fmt.Errorf("lookup %s: %w", pluginSymbol, err)
	}
	constructor, ok := sym.(func() Func)
	if !ok {
		return nil, fmt.Errorf("symbol %s has wrong type %T, want func() plugins.Func", pluginSymbol, sym)
	}
	return constructor(), nil
}
