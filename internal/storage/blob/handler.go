package blob

import (
	"net/http"
	"strconv"
	"strings"
)

// Reader is implemented by backends whose objects this process can serve.
type Reader interface {
	Get(key string) ([]byte, bool)
}

var (
	_ Reader = (*MemoryStore)(nil)
	_ Reader = (*FileStore)(nil)
)

// Handler serves objects from r by key, read-only. Mount it behind
// http.StripPrefix so the remaining path is the object key.
func Handler(r Reader) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet && req.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		key := strings.TrimPrefix(req.URL.Path, "/")
		if key == "" {
			http.NotFound(w, req)
			return
		}

		data, ok := r.Get(key)
		if !ok {
			http.NotFound(w, req)
			return
		}

		w.Header().Set("Content-Type", ContentType)
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		w.WriteHeader(http.StatusOK)
		if req.Method == http.MethodGet {
			_, _ = w.Write(data)
		}
	})
}
