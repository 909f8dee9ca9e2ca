// Package update implements the self-update archive format: the whole
// install tree packed into a zip a backend serves at /pack.zip, and a
// frontend unpacks back over its own tree after a login response
// reports a newer version available. Grounded on
// original_source/src/main.py's "pack" CLI branch and version-check
// loop (locations.compress_pkg/locations.unpack, re-expressed with
// stdlib archive/zip since neither survived in the retrieved source).
package update

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Pack walks root and returns a zip archive of its contents, with every
// entry name stored relative to root using forward slashes.
func Pack(root string) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		w, err := zw.Create(rel)
		if err != nil {
			return err
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(w, f)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("update: pack %q: %w", root, err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("update: finalize archive: %w", err)
	}
	return buf.Bytes(), nil
}

// Unpack extracts zipBytes over root, creating directories as needed.
// Every entry name is checked against zip-slip path traversal before any
// file is written: the cleaned, joined path must stay within root.
func Unpack(zipBytes []byte, root string) error {
	zr, err := zip.NewReader(bytes.NewReader(zipBytes), int64(len(zipBytes)))
	if err != nil {
		return fmt.Errorf("update: open archive: %w", err)
	}

	for _, f := range zr.File {
		dest, err := safeJoin(root, f.Name)
		if err != nil {
			return err
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(dest, 0o755); err != nil {
				return fmt.Errorf("update: create dir %q: %w", dest, err)
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return fmt.Errorf("update: create dir for %q: %w", dest, err)
		}
		if err := extractFile(f, dest); err != nil {
			return err
		}
	}
	return nil
}

func extractFile(f *zip.File, dest string) error {
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("update: open entry %q: %w", f.Name, err)
	}
	defer rc.Close()

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, f.Mode())
	if err != nil {
		return fmt.Errorf("update: write %q: %w", dest, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, rc); err != nil {
		return fmt.Errorf("update: extract %q: %w", dest, err)
	}
	return nil
}

// safeJoin joins root and name, rejecting any entry whose cleaned path
// would escape root (zip-slip: "../../etc/passwd"-style entry names).
func safeJoin(root, name string) (string, error) {
	clean := filepath.Clean(filepath.Join(root, name))
	rootClean := filepath.Clean(root)
	if clean != rootClean && !strings.HasPrefix(clean, rootClean+string(os.PathSeparator)) {
		return "", fmt.Errorf("update: entry %q escapes install root", name)
	}
	return clean, nil
}
