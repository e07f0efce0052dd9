package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/hlsx/internal/models"
	"github.com/desertthunder/hlsx/internal/shared"
	"github.com/desertthunder/hlsx/internal/tasks"
	"github.com/google/uuid"
	"github.com/grafov/m3u8"
)

// HTTPFetcher downloads HLS resources into a local directory tree.
type HTTPFetcher struct {
	client *Client
	index  Index
	root   string
	logger *log.Logger
}

// NewHTTPFetcher stores content under root and records it in index.
func NewHTTPFetcher(client *Client, index Index, root string, logger *log.Logger) *HTTPFetcher {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &HTTPFetcher{client: client, index: index, root: root, logger: logger}
}

// ResourceDir is the directory holding every file of id. The name is a stable UUID derived from id.
func (f *HTTPFetcher) ResourceDir(id models.ResourceID) string {
	return filepath.Join(f.root, uuid.NewSHA1(uuid.NameSpaceURL, []byte(id)).String())
}

// Tracks lists the variants of a master playlist. Media playlists have no selectable tracks.
func (f *HTTPFetcher) Tracks(ctx context.Context, id models.ResourceID) ([]models.TrackOption, error) {
	resp, err := f.client.Get(ctx, string(id))
	if err != nil {
		return nil, err
	}

	pl, kind, err := decodePlaylist(resp.Body)
	if err != nil {
		return nil, err
	}
	if kind != m3u8.MASTER {
		return []models.TrackOption{}, nil
	}

	master := pl.(*m3u8.MasterPlaylist)
	options := make([]models.TrackOption, 0, len(master.Variants))
	for i, v := range master.Variants {
		if v == nil {
			continue
		}
		options = append(options, models.TrackOption{
			Key:  models.TrackKey{Track: i},
			Name: variantName(v),
		})
	}
	return options, nil
}

// Download fetches the playlist at rec.Resource, the selected variants and all of their segments.
// An empty selection fetches every variant.
func (f *HTTPFetcher) Download(ctx context.Context, rec models.ActionRecord, progress tasks.ProgressFunc) error {
	base, err := url.Parse(string(rec.Resource))
	if err != nil || !base.IsAbs() {
		return fmt.Errorf("%w: resource %q is not an absolute URL", shared.ErrInvalidInput, rec.Resource)
	}

	dl := &download{
		fetcher:  f,
		resource: rec.Resource,
		dir:      f.ResourceDir(rec.Resource),
		progress: progress,
		seen:     make(map[string]bool),
		logger:   shared.WithLogger(f.logger, "resource", rec.Resource),
	}

	body, err := dl.playlist(ctx, base, "index.m3u8")
	if err != nil {
		return err
	}

	pl, kind, err := decodePlaylist(body)
	if err != nil {
		return err
	}

	switch kind {
	case m3u8.MEDIA:
		return dl.media(ctx, base, pl.(*m3u8.MediaPlaylist), "")
	case m3u8.MASTER:
		master := pl.(*m3u8.MasterPlaylist)
		variants, err := selectVariants(master, rec.Selection)
		if err != nil {
			return err
		}
		for _, i := range variants {
			if err := dl.variant(ctx, base, master.Variants[i], i); err != nil {
				return err
			}
		}
		dl.logger.Info("Download complete", "variants", len(variants), "files", dl.files, "bytes", shared.FormatBytes(dl.bytes))
		return nil
	default:
		return fmt.Errorf("%w: unsupported playlist type", shared.ErrInvalidInput)
	}
}

// Remove deletes every stored file of rec.Resource and its index rows.
func (f *HTTPFetcher) Remove(ctx context.Context, rec models.ActionRecord) error {
	files, err := f.index.ListByResource(rec.Resource)
	if err != nil {
		return err
	}

	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := os.Remove(file.Path()); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to remove %s: %w", file.Path(), err)
		}
	}

	n, err := f.index.DeleteByResource(rec.Resource)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(f.ResourceDir(rec.Resource)); err != nil {
		return fmt.Errorf("failed to remove resource directory: %w", err)
	}

	f.logger.Info("Removed cached resource", "resource", rec.Resource, "files", n)
	return nil
}

// download holds the state of one Download call.
type download struct {
	fetcher  *HTTPFetcher
	resource models.ResourceID
	dir      string
	progress tasks.ProgressFunc
	seen     map[string]bool
	files    int
	bytes    int64
	logger   *log.Logger
}

func (d *download) variant(ctx context.Context, master *url.URL, v *m3u8.Variant, i int) error {
	ref, err := resolve(master, v.URI)
	if err != nil {
		return err
	}

	sub := fmt.Sprintf("v%d", i)
	body, err := d.playlist(ctx, ref, path.Join(sub, "index.m3u8"))
	if err != nil {
		return err
	}

	pl, kind, err := decodePlaylist(body)
	if err != nil {
		return err
	}
	if kind != m3u8.MEDIA {
		return fmt.Errorf("%w: variant %d is not a media playlist", shared.ErrInvalidInput, i)
	}

	d.logger.Debug("Fetching variant", "variant", i, "name", variantName(v))
	return d.media(ctx, ref, pl.(*m3u8.MediaPlaylist), sub)
}

func (d *download) media(ctx context.Context, base *url.URL, pl *m3u8.MediaPlaylist, sub string) error {
	if pl.Map != nil && pl.Map.URI != "" {
		if err := d.segment(ctx, base, pl.Map.URI, sub, "init"); err != nil {
			return err
		}
	}
	if pl.Key != nil && pl.Key.URI != "" && pl.Key.Method != "NONE" {
		if err := d.segment(ctx, base, pl.Key.URI, sub, "key"); err != nil {
			return err
		}
	}

	for n, seg := range pl.Segments {
		if seg == nil {
			continue
		}

		if seg.Map != nil && seg.Map.URI != "" {
			if err := d.segment(ctx, base, seg.Map.URI, sub, "init"); err != nil {
				return err
			}
		}
		if seg.Key != nil && seg.Key.URI != "" && seg.Key.Method != "NONE" {
			if err := d.segment(ctx, base, seg.Key.URI, sub, "key"); err != nil {
				return err
			}
		}
		if err := d.segment(ctx, base, seg.URI, sub, fmt.Sprintf("%05d", n)); err != nil {
			return err
		}
	}
	return nil
}

// playlist stores the playlist at ref under name and returns its body.
func (d *download) playlist(ctx context.Context, ref *url.URL, name string) ([]byte, error) {
	resp, err := d.fetcher.client.Get(ctx, ref.String())
	if err != nil {
		return nil, err
	}

	target := filepath.Join(d.dir, filepath.FromSlash(name))
	if err := writeFile(target, resp.Body); err != nil {
		return nil, err
	}
	if err := d.record(ref.String(), target, int64(len(resp.Body))); err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// segment stores one media file, skipping files already indexed with a matching size on disk.
func (d *download) segment(ctx context.Context, base *url.URL, uri, sub, prefix string) error {
	ref, err := resolve(base, uri)
	if err != nil {
		return err
	}
	abs := ref.String()
	if d.seen[abs] {
		return nil
	}
	d.seen[abs] = true

	name := prefix + "_" + path.Base(ref.Path)
	target := filepath.Join(d.dir, filepath.FromSlash(sub), name)

	if existing, err := d.fetcher.index.GetByPath(target); err == nil {
		if info, err := os.Stat(target); err == nil && info.Size() == existing.Size() {
			d.advance(existing.Size())
			return nil
		}
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	tmp := target + ".part"
	out, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", tmp, err)
	}

	n, err := d.fetcher.client.Stream(ctx, abs, out)
	if cerr := out.Close(); err == nil && cerr != nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, target); err != nil {
		return fmt.Errorf("failed to store %s: %w", target, err)
	}

	return d.record(abs, target, n)
}

// record replaces the index row for target and reports progress.
func (d *download) record(uri, target string, size int64) error {
	if err := d.fetcher.index.DeleteByPath(target); err != nil {
		return err
	}
	if err := d.fetcher.index.Create(models.NewCachedFile(d.resource, uri, target, size)); err != nil {
		return err
	}
	d.advance(size)
	return nil
}

func (d *download) advance(size int64) {
	d.files++
	d.bytes += size
	if d.progress != nil {
		d.progress(d.bytes, 0)
	}
}

func decodePlaylist(body []byte) (m3u8.Playlist, m3u8.ListType, error) {
	pl, kind, err := m3u8.DecodeFrom(bytes.NewReader(body), false)
	if err != nil {
		return nil, kind, fmt.Errorf("%w: failed to parse playlist: %v", shared.ErrInvalidInput, err)
	}
	return pl, kind, nil
}

// selectVariants maps a selection onto master variant indexes. An empty selection selects every variant.
func selectVariants(master *m3u8.MasterPlaylist, selection []models.TrackKey) ([]int, error) {
	var out []int
	if len(selection) == 0 {
		for i, v := range master.Variants {
			if v != nil {
				out = append(out, i)
			}
		}
		return out, nil
	}

	for _, k := range selection {
		if k.Period != 0 || k.Group != 0 || k.Track >= len(master.Variants) || master.Variants[k.Track] == nil {
			return nil, fmt.Errorf("%w: %s does not name a variant", shared.ErrInvalidTrackKey, k)
		}
		out = append(out, k.Track)
	}
	return out, nil
}

func resolve(base *url.URL, ref string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return nil, fmt.Errorf("%w: bad playlist reference %q: %v", shared.ErrInvalidInput, ref, err)
	}
	return base.ResolveReference(u), nil
}

// variantName describes a variant as e.g. "1280x720 2.50 Mbps".
func variantName(v *m3u8.Variant) string {
	var parts []string
	if v.Name != "" {
		parts = append(parts, v.Name)
	}
	if v.Resolution != "" {
		parts = append(parts, v.Resolution)
	}
	if v.Bandwidth > 0 {
		parts = append(parts, fmt.Sprintf("%.2f Mbps", float64(v.Bandwidth)/1e6))
	}
	if len(parts) == 0 {
		return v.URI
	}
	return strings.Join(parts, " ")
}

func writeFile(target string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	tmp := target + ".part"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}
	return os.Rename(tmp, target)
}
