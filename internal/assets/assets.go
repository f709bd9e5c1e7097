// Package assets serves the stylesheet and other static files embedded via
// go:embed. URLs produced by Path carry a content version, so versioned
// requests get immutable cache headers and everything else is revalidated.
package assets

import (
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"io/fs"
	"mime"
	"net/http"
	"path"
	"strings"
	"sync"
)

//go:embed static
var staticFS embed.FS

func init() {
	// Register MIME types that may not be in the default database.
	// Errors are ignored: these only fail if extension format is invalid.
	_ = mime.AddExtensionType(".woff2", "font/woff2")
	_ = mime.AddExtensionType(".map", "application/json")
}

var (
	versionsMu sync.Mutex
	versions   = make(map[string]string)
)

// Path returns the URL for an embedded file with a version query derived
// from its content. Unknown files get an unversioned URL.
func Path(name string) string {
	versionsMu.Lock()
	defer versionsMu.Unlock()

	v, ok := versions[name]
	if !ok {
		data, err := fs.ReadFile(staticFS, path.Join("static", name))
		if err != nil {
			return "/static/" + name
		}
		sum := sha256.Sum256(data)
		v = hex.EncodeToString(sum[:])[:12]
		versions[name] = v
	}
	return "/static/" + name + "?v=" + v
}

// mimeFromExt returns the MIME type for a file extension.
// Falls back to the standard library's MIME database,
// then to "application/octet-stream" if unknown.
func mimeFromExt(ext string) string {
	switch ext {
	case ".js", ".mjs":
		return "application/javascript"
	case ".css":
		return "text/css; charset=utf-8"
	case ".svg":
		return "image/svg+xml"
	default:
		if ct := mime.TypeByExtension(ext); ct != "" {
			return ct
		}
		return "application/octet-stream"
	}
}

// FileServer returns an http.Handler that serves embedded files from static/.
// The handler expects paths relative to the static root (strip /static/ before calling).
func FileServer() http.Handler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic("assets: failed to create sub filesystem: " + err.Error())
	}
	fileServer := http.FileServer(http.FS(sub))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ext := strings.ToLower(path.Ext(r.URL.Path))
		if ext != "" {
			w.Header().Set("Content-Type", mimeFromExt(ext))
		}

		if r.URL.Query().Get("v") != "" {
			w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		} else {
			w.Header().Set("Cache-Control", "no-cache")
		}

		fileServer.ServeHTTP(w, r)
	})
}
