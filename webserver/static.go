package webserver

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/joanet/controlplane/httpcodec"
)

// lookupPublic resolves an incoming path to a file under the server's
// public directory, case-insensitively matching either the file's bare
// name or its extension-stripped stem, and skipping sitescript plugin
// binaries themselves — matching webrequest.py's has_public.
func (s *Server) lookupPublic(path string) (string, bool) {
	name := strings.ToLower(strings.Trim(path, "/"))
	if name == "" {
		name = "index.html"
	}

	entries, err := os.ReadDir(s.publicDir)
	if err != nil {
		return "", false
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		fname := entry.Name()
		ext := filepath.Ext(fname)
		if strings.EqualFold(ext, ".so") {
			continue
		}
		stem := strings.TrimSuffix(fname, ext)
		if strings.EqualFold(fname, name) || strings.EqualFold(stem, name) {
			return fname, true
		}
	}
	return "", false
}

// servePublic reads fname out of the public directory, running it
// through a sibling ".so" sitescript's substitutions if one is present,
// matching webrequest.py's send_page.
func (s *Server) servePublic(fname string, req *httpcodec.Request) *httpcodec.Response {
	full := filepath.Join(s.publicDir, fname)
	content, err := os.ReadFile(full)
	if err != nil {
		return &httpcodec.Response{
			Code:    404,
			Message: "NOT_FOUND",
			Headers: httpcodec.NewHeader(),
			Body:    []byte(`{"message":"The requested file could not be found!"}`),
			Mime:    "application/json",
		}
	}

	stem := strings.TrimSuffix(fname, filepath.Ext(fname))
	scriptPath := filepath.Join(s.publicDir, stem+".so")
	if _, err := os.Stat(scriptPath); err == nil {
		script, err := loadSiteScript(scriptPath)
		if err != nil {
			s.log.Errorf("webserver: sitescript %s: %v", scriptPath, err)
		} else {
			content = applyPageVars(content, script.Display(req.Query))
		}
	}

	return &httpcodec.Response{
		Code:    200,
		Message: "OK",
		Headers: httpcodec.NewHeader(),
		Body:    content,
		Mime:    mimeByExt(fname),
	}
}

// applyPageVars replaces every "%%NAME%%" token with its resolved
// value, matching sitescript.py's SiteScript.site_read substitution
// loop.
func applyPageVars(content []byte, vars map[string]string) []byte {
	if len(vars) == 0 {
		return content
	}
	oldnew := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		oldnew = append(oldnew, fmt.Sprintf("%%%%%s%%%%", k), v)
	}
	return []byte(strings.NewReplacer(oldnew...).Replace(string(content)))
}

func mimeByExt(fname string) string {
	if t := mime.TypeByExtension(filepath.Ext(fname)); t != "" {
		return t
	}
	return "application/octet-stream"
}
