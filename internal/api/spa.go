package api

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// backendPrefixes are paths always served by the API handler.
var backendPrefixes = []string{"/api/", "/functions/", "/metrics"}

// WithSPA wraps the API handler with static serving of a built front-end.
// Unknown paths fall back to index.html for client-side routing.
func WithSPA(apiHandler http.Handler, webDir string) http.Handler {
	fileServer := http.FileServer(http.Dir(webDir))
	indexPath := filepath.Join(webDir, "index.html")
	nonCacheFileServer := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		setSPACacheControl(w)
		fileServer.ServeHTTP(w, r)
	})

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isBackendPath(r.URL.Path) {
			apiHandler.ServeHTTP(w, r)
			return
		}

		cleanPath := strings.TrimPrefix(path.Clean("/"+r.URL.Path), "/")
		if cleanPath == "." || cleanPath == "" {
			serveIndex(w, r, indexPath)
			return
		}

		if info, err := os.Stat(filepath.Join(webDir, cleanPath)); err == nil && !info.IsDir() {
			nonCacheFileServer.ServeHTTP(w, r)
			return
		}

		serveIndex(w, r, indexPath)
	})
}

func isBackendPath(p string) bool {
	for _, prefix := range backendPrefixes {
		if strings.HasPrefix(p, prefix) {
			return true
		}
	}
	return false
}

func serveIndex(w http.ResponseWriter, r *http.Request, indexPath string) {
	if _, err := os.Stat(indexPath); err == nil {
		setSPACacheControl(w)
		http.ServeFile(w, r, indexPath)
		return
	}
	w.WriteHeader(http.StatusNotFound)
	_, _ = w.Write([]byte("index.html not found"))
}

func setSPACacheControl(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
}
