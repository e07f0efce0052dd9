package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/hlsx/internal/models"
	"github.com/desertthunder/hlsx/internal/offline"
	"github.com/desertthunder/hlsx/internal/shared"
)

// DownloadRequest is the body of POST /api/download.
type DownloadRequest struct {
	URI    string   `json:"uri"`
	Tracks []string `json:"tracks,omitempty"`
}

// RemoveRequest is the body of POST /api/remove.
type RemoveRequest struct {
	URI string `json:"uri"`
}

// TrackResponse describes one selectable track.
type TrackResponse struct {
	Key  string `json:"key"`
	Name string `json:"name"`
}

type api struct {
	cache  Cache
	logger *log.Logger
}

// NewHandler mounts the cache API and change notifications on a new [BasicRouter].
func NewHandler(cache Cache, logger *log.Logger) *BasicRouter {
	a := &api{cache: cache, logger: logger}

	r := NewBasicRouter()
	r.Use(Recover(logger), Logging(logger))
	r.Handle(http.MethodGet, "/api/tracked", http.HandlerFunc(a.tracked))
	r.Handle(http.MethodGet, "/api/status", http.HandlerFunc(a.status))
	r.Handle(http.MethodGet, "/api/tracks", http.HandlerFunc(a.tracks))
	r.Handle(http.MethodPost, "/api/download", http.HandlerFunc(a.download))
	r.Handle(http.MethodPost, "/api/remove", http.HandlerFunc(a.remove))
	r.Handler(NewEventsHandler(cache, logger))
	return r
}

func (a *api) tracked(w http.ResponseWriter, r *http.Request) {
	entries, err := a.cache.Entries()
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (a *api) status(w http.ResponseWriter, r *http.Request) {
	id, err := resourceParam(r)
	if err != nil {
		a.fail(w, err)
		return
	}
	entry, err := a.cache.Status(id)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (a *api) tracks(w http.ResponseWriter, r *http.Request) {
	id, err := resourceParam(r)
	if err != nil {
		a.fail(w, err)
		return
	}
	options, err := a.cache.Tracks(r.Context(), id)
	if err != nil {
		a.fail(w, err)
		return
	}

	out := make([]TrackResponse, len(options))
	for i, o := range options {
		out[i] = TrackResponse{Key: o.Key.String(), Name: o.Name}
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *api) download(w http.ResponseWriter, r *http.Request) {
	var req DownloadRequest
	if err := decodeBody(w, r, &req); err != nil {
		a.fail(w, err)
		return
	}
	if strings.TrimSpace(req.URI) == "" {
		a.fail(w, fmt.Errorf("%w: uri", shared.ErrMissingArgument))
		return
	}

	keys := make([]models.TrackKey, 0, len(req.Tracks))
	for _, s := range req.Tracks {
		k, err := models.ParseTrackKey(s)
		if err != nil {
			a.fail(w, err)
			return
		}
		keys = append(keys, k)
	}

	started, err := a.cache.Download(r.Context(), models.ResourceID(req.URI), offline.SelectKeys(keys...))
	if err != nil {
		a.fail(w, err)
		return
	}

	status := http.StatusOK
	if started {
		status = http.StatusAccepted
	}
	writeJSON(w, status, map[string]bool{"started": started})
}

func (a *api) remove(w http.ResponseWriter, r *http.Request) {
	var req RemoveRequest
	if err := decodeBody(w, r, &req); err != nil {
		a.fail(w, err)
		return
	}
	if strings.TrimSpace(req.URI) == "" {
		a.fail(w, fmt.Errorf("%w: uri", shared.ErrMissingArgument))
		return
	}

	submitted := a.cache.Remove(models.ResourceID(req.URI))
	status := http.StatusOK
	if submitted {
		status = http.StatusAccepted
	}
	writeJSON(w, status, map[string]bool{"submitted": submitted})
}

func (a *api) fail(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		a.logger.Error("Request failed", "error", err)
	}
	writeError(w, status, err.Error())
}

func resourceParam(r *http.Request) (models.ResourceID, error) {
	uri := strings.TrimSpace(r.URL.Query().Get("uri"))
	if uri == "" {
		return "", fmt.Errorf("%w: uri", shared.ErrMissingArgument)
	}
	return models.ResourceID(uri), nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}
	return nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, shared.ErrInvalidInput),
		errors.Is(err, shared.ErrInvalidTrackKey),
		errors.Is(err, shared.ErrMissingArgument):
		return http.StatusBadRequest
	case errors.Is(err, shared.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, shared.ErrFetchRequest):
		return http.StatusBadGateway
	case errors.Is(err, shared.ErrServiceUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
