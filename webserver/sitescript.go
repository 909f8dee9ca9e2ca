package webserver

import (
	"fmt"
	"plugin"
)

// SiteScript computes "%%NAME%%" substitutions for a static page before
// it's served, given the request's query-string arguments — the same
// role sitescript.py's SiteScript subclasses play.
type SiteScript interface {
	Display(getArgs map[string]any) map[string]string
}

// loadSiteScript loads a compiled SiteScript plugin from path, the Go
// analogue of sitescript.py's load_script_file: instead of importing a
// same-named .py module from disk at request time, it opens a .so built
// against this interface and looks up its exported "New" constructor,
// the same convention plugins.LoadDir uses for backend/frontend
// functions.
func loadSiteScript(path string) (SiteScript, error) {
	p, err := plugin.Open(path)
	if err != nil {
		return nil, fmt.Errorf("webserver: open sitescript %s: %w", path, err)
	}
	sym, err := p.Lookup("New")
	if err != nil {
		return nil, fmt.Errorf("webserver: sitescript %s missing New: %w", path, err)
	}
	ctor, ok := sym.(func() SiteScript)
	if !ok {
		return nil, fmt.Errorf("webserver: sitescript %s: New has the wrong signature", path)
	}
	return ctor(), nil
}
