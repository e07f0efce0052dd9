package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/desertthunder/hlsx/internal/models"
	"github.com/desertthunder/hlsx/internal/offline"
	"github.com/desertthunder/hlsx/internal/shared"
	tu "github.com/desertthunder/hlsx/internal/testing"
	"github.com/desertthunder/hlsx/internal/tracker"
)

const sintel = models.ResourceID("https://example.com/sintel.m3u8")

type fakeCache struct {
	mu        sync.Mutex
	tracked   map[models.ResourceID]models.CacheEntry
	options   []models.TrackOption
	err       error
	listeners tracker.ListenerSet
}

func newFakeCache() *fakeCache {
	return &fakeCache{
		tracked: make(map[models.ResourceID]models.CacheEntry),
		options: []models.TrackOption{
			{Key: models.TrackKey{Track: 0}, Name: "640x360"},
			{Key: models.TrackKey{Track: 1}, Name: "1280x720"},
		},
	}
}

func (c *fakeCache) Entries() ([]models.CacheEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.CacheEntry, 0, len(c.tracked))
	for _, e := range c.tracked {
		out = append(out, e)
	}
	return out, c.err
}

func (c *fakeCache) Status(id models.ResourceID) (models.CacheEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.tracked[id]; ok {
		return e, nil
	}
	return models.CacheEntry{Resource: id, State: "not cached"}, c.err
}

func (c *fakeCache) Tracks(context.Context, models.ResourceID) ([]models.TrackOption, error) {
	return c.options, c.err
}

func (c *fakeCache) Download(ctx context.Context, id models.ResourceID, chooser offline.Chooser) (bool, error) {
	if c.err != nil {
		return false, c.err
	}
	keys, err := chooser(ctx, id, c.options)
	if err != nil {
		return false, err
	}

	c.mu.Lock()
	if _, ok := c.tracked[id]; ok {
		c.mu.Unlock()
		return false, nil
	}
	tracks := make([]string, len(keys))
	for i, k := range keys {
		tracks[i] = k.String()
	}
	c.tracked[id] = models.CacheEntry{Resource: id, Tracks: tracks, State: "downloading"}
	c.mu.Unlock()

	c.listeners.NotifyAll()
	return true, nil
}

func (c *fakeCache) Remove(id models.ResourceID) bool {
	c.mu.Lock()
	_, ok := c.tracked[id]
	delete(c.tracked, id)
	c.mu.Unlock()
	if ok {
		c.listeners.NotifyAll()
	}
	return ok
}

func (c *fakeCache) AddListener(l tracker.Listener)    { c.listeners.Add(l) }
func (c *fakeCache) RemoveListener(l tracker.Listener) { c.listeners.Remove(l) }

func newTestServer(t *testing.T, cache Cache) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(NewHandler(cache, shared.NewLogger(io.Discard)))
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("POST %s failed: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return v
}

func TestDownloadAndRemove(t *testing.T) {
	cache := newFakeCache()
	srv := newTestServer(t, cache)

	resp := postJSON(t, srv.URL+"/api/download", DownloadRequest{URI: string(sintel), Tracks: []string{"0.0.1"}})
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("download status = %d, want 202", resp.StatusCode)
	}
	if got := decode[map[string]bool](t, resp); !got["started"] {
		t.Errorf("started = false")
	}

	resp = postJSON(t, srv.URL+"/api/download", DownloadRequest{URI: string(sintel)})
	if resp.StatusCode != http.StatusOK {
		t.Errorf("repeat download status = %d, want 200", resp.StatusCode)
	}

	list, err := http.Get(srv.URL + "/api/tracked")
	if err != nil {
		t.Fatal(err)
	}
	defer list.Body.Close()
	entries := decode[[]models.CacheEntry](t, list)
	if len(entries) != 1 || entries[0].Resource != sintel || strings.Join(entries[0].Tracks, ",") != "0.0.1" {
		t.Errorf("entries = %+v", entries)
	}

	resp = postJSON(t, srv.URL+"/api/remove", RemoveRequest{URI: string(sintel)})
	if resp.StatusCode != http.StatusAccepted {
		t.Errorf("remove status = %d, want 202", resp.StatusCode)
	}
	resp = postJSON(t, srv.URL+"/api/remove", RemoveRequest{URI: string(sintel)})
	if got := decode[map[string]bool](t, resp); got["submitted"] {
		t.Error("second remove submitted")
	}
}

func TestErrors(t *testing.T) {
	tests := []struct {
		name   string
		method string
		path   string
		body   string
		err    error
		status int
	}{
		{"missing uri", http.MethodGet, "/api/status", "", nil, http.StatusBadRequest},
		{"bad track key", http.MethodPost, "/api/download", `{"uri":"u","tracks":["x"]}`, nil, http.StatusBadRequest},
		{"unknown track", http.MethodPost, "/api/download", `{"uri":"u","tracks":["0.0.7"]}`, nil, http.StatusBadRequest},
		{"malformed body", http.MethodPost, "/api/remove", `{`, nil, http.StatusBadRequest},
		{"unknown field", http.MethodPost, "/api/remove", `{"url":"u"}`, nil, http.StatusBadRequest},
		{"wrong method", http.MethodPost, "/api/tracked", "", nil, http.StatusMethodNotAllowed},
		{"upstream failure", http.MethodGet, "/api/tracks?uri=u", "", shared.ErrFetchRequest, http.StatusBadGateway},
		{"not found", http.MethodGet, "/api/tracks?uri=u", "", shared.ErrNotFound, http.StatusNotFound},
		{"index failure", http.MethodGet, "/api/tracked", "", io.ErrUnexpectedEOF, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cache := newFakeCache()
			cache.err = tt.err
			srv := newTestServer(t, cache)

			req, err := http.NewRequest(tt.method, srv.URL+tt.path, strings.NewReader(tt.body))
			if err != nil {
				t.Fatal(err)
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatal(err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != tt.status {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.status)
			}
			if got := decode[map[string]string](t, resp); got["error"] == "" {
				t.Error("missing error message")
			}
		})
	}
}

func TestTracks(t *testing.T) {
	srv := newTestServer(t, newFakeCache())

	resp, err := http.Get(srv.URL + "/api/tracks?uri=" + string(sintel))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	got := decode[[]TrackResponse](t, resp)
	want := []TrackResponse{{Key: "0.0.0", Name: "640x360"}, {Key: "0.0.1", Name: "1280x720"}}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("tracks = %+v, want %+v", got, want)
	}
}

func TestEvents(t *testing.T) {
	cache := newFakeCache()
	srv := newTestServer(t, cache)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	tu.WaitFor(t, "listener registered", func() bool { return cache.listeners.Len() == 1 })

	if _, err := cache.Download(context.Background(), sintel, offline.SelectAll); err != nil {
		t.Fatal(err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var ev ChangeEvent
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if ev.Event != "changed" {
		t.Errorf("event = %q, want changed", ev.Event)
	}

	conn.Close()
	tu.WaitFor(t, "listener detached", func() bool { return cache.listeners.Len() == 0 })
}

func TestBasicRouter(t *testing.T) {
	var order []string
	tag := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	ok := func(body string) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { io.WriteString(w, body) })
	}

	r := NewBasicRouter()
	r.Use(tag("outer"), tag("inner"))
	r.Handle(http.MethodGet, "/item", ok("get"))
	r.Handle(http.MethodPut, "/item", ok("put"))

	tests := []struct {
		method string
		status int
		body   string
	}{
		{http.MethodGet, http.StatusOK, "get"},
		{http.MethodPut, http.StatusOK, "put"},
		{http.MethodHead, http.StatusOK, ""},
		{http.MethodDelete, http.StatusMethodNotAllowed, ""},
	}
	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			order = nil
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(tt.method, "/item", nil))

			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d", rec.Code, tt.status)
			}
			if tt.status == http.StatusMethodNotAllowed {
				if got := rec.Header().Get("Allow"); got != "GET, HEAD, PUT" {
					t.Errorf("Allow = %q", got)
				}
				return
			}
			if tt.body != "" && rec.Body.String() != tt.body {
				t.Errorf("body = %q, want %q", rec.Body.String(), tt.body)
			}
			if len(order) != 2 || order[0] != "outer" || order[1] != "inner" {
				t.Errorf("middleware order = %v", order)
			}
		})
	}
}

func TestEventsOrigin(t *testing.T) {
	cache := newFakeCache()
	srv := newTestServer(t, cache)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	t.Run("cross origin rejected", func(t *testing.T) {
		header := http.Header{"Origin": {"http://evil.example"}}
		conn, resp, err := websocket.DefaultDialer.Dial(url, header)
		if err == nil {
			conn.Close()
			t.Fatal("cross-origin dial should fail")
		}
		if resp == nil || resp.StatusCode != http.StatusForbidden {
			t.Errorf("response = %v, want 403", resp)
		}
		if got := cache.listeners.Len(); got != 0 {
			t.Errorf("rejected connection registered %d listeners", got)
		}
	})

	t.Run("same origin accepted", func(t *testing.T) {
		header := http.Header{"Origin": {srv.URL}}
		conn, _, err := websocket.DefaultDialer.Dial(url, header)
		if err != nil {
			t.Fatalf("same-origin dial failed: %v", err)
		}
		conn.Close()
	})
}
