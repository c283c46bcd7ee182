package storage

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// fakeS3 is a path-style S3 endpoint good enough for HEAD bucket and PUT
// object requests from both SDKs.
type fakeS3 struct {
	mu sync.Mutex

	headStatus int
	// putErrors maps an object key to the error code returned for it.
	putErrors map[string]string

	puts         []string
	contentTypes map[string]string
	bodies       map[string]int
}

func newFakeS3(t *testing.T, headStatus int) (*fakeS3, *httptest.Server) {
	t.Helper()
	f := &fakeS3{
		headStatus:   headStatus,
		putErrors:    map[string]string{},
		contentTypes: map[string]string{},
		bodies:       map[string]int{},
	}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return f, srv
}

var errorStatus = map[string]int{
	"NoSuchBucket": http.StatusNotFound,
	"AccessDenied": http.StatusForbidden,
	"BadDigest":    http.StatusBadRequest,
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	parts := strings.SplitN(strings.TrimPrefix(r.URL.Path, "/"), "/", 2)
	key := ""
	if len(parts) == 2 {
		key = parts[1]
	}

	switch {
	case r.Method == http.MethodHead && key == "":
		w.WriteHeader(f.headStatus)

	case r.Method == http.MethodPut && key != "":
		n, _ := io.Copy(io.Discard, r.Body)
		f.puts = append(f.puts, key)
		f.contentTypes[key] = r.Header.Get("Content-Type")
		f.bodies[key] = int(n)

		if code, ok := f.putErrors[key]; ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(errorStatus[code])
			fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>%s</Code><Message>%s</Message><Key>%s</Key><RequestId>1</RequestId></Error>`, code, code, key)
			return
		}
		w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
		w.WriteHeader(http.StatusOK)

	default:
		w.WriteHeader(http.StatusNotImplemented)
	}
}

func (f *fakeS3) putKeys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.puts...)
}
