package provider

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
)

// CachingTransport replays completed upstream responses from disk, so
// rerunning the tool over an unchanged diff costs nothing and produces the
// same message. A request is identified by the SHA-256 of its method, URL
// and body. Only 2xx responses are stored; cache read or write failures
// degrade to a live round trip.
type CachingTransport struct {
	inner http.RoundTripper
	cache diskCache
}

// NewCachingTransport creates a CachingTransport that stores cache files
// under dir. If inner is nil, http.DefaultTransport is used.
func NewCachingTransport(dir string, inner http.RoundTripper) *CachingTransport {
	if inner == nil {
		inner = http.DefaultTransport
	}
	_ = os.MkdirAll(dir, 0o755)
	return &CachingTransport{inner: inner, cache: diskCache{dir: dir}}
}

// RoundTrip implements http.RoundTripper.
func (t *CachingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	var reqBody []byte
	if req.Body != nil {
		var err error
		reqBody, err = io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		req.Body = io.NopCloser(bytes.NewReader(reqBody))
	}

	key := requestKey(req.Method, req.URL.String(), reqBody)
	if entry, ok := t.cache.get(key); ok {
		return entry.response(req), nil
	}

	resp, err := t.inner.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, nil
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	_ = resp.Body.Close()
	resp.Body = io.NopCloser(bytes.NewReader(respBody))

	t.cache.put(key, cacheEntry{
		Status: resp.StatusCode,
		Header: resp.Header,
		Body:   base64.StdEncoding.EncodeToString(respBody),
	})
	return resp, nil
}

func requestKey(method, url string, body []byte) string {
	sum := sha256.Sum256(append([]byte(method+"\n"+url+"\n"), body...))
	return fmt.Sprintf("%x", sum)
}

// cacheEntry is the on-disk form of a completed response. The body is
// base64 so the file stays valid JSON regardless of response content.
type cacheEntry struct {
	Status int                 `json:"status"`
	Header map[string][]string `json:"header"`
	Body   string              `json:"body"`
}

func (e cacheEntry) response(req *http.Request) *http.Response {
	body, err := base64.StdEncoding.DecodeString(e.Body)
	if err != nil {
		body = nil
	}
	return &http.Response{
		StatusCode: e.Status,
		Header:     e.Header,
		Body:       io.NopCloser(bytes.NewReader(body)),
		Request:    req,
	}
}

// diskCache stores one JSON file per request key.
type diskCache struct {
	dir string
}

func (c diskCache) path(key string) string {
	return filepath.Join(c.dir, key+".json")
}

func (c diskCache) get(key string) (cacheEntry, bool) {
	data, err := os.ReadFile(c.path(key))
	if err != nil {
		return cacheEntry{}, false
	}
	var entry cacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return cacheEntry{}, false
	}
	if _, err := base64.StdEncoding.DecodeString(entry.Body); err != nil {
		return cacheEntry{}, false
	}
	return entry, true
}

func (c diskCache) put(key string, entry cacheEntry) {
	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	_ = os.WriteFile(c.path(key), data, 0o644)
}
