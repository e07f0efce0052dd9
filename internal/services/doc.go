// Package services implements the fetch backend for HLS resources.
//
// # Client
//
// [Client] performs paced HTTP GET requests. Every request waits on a token bucket so a download
// never exceeds the configured request rate, and status codes are mapped to shared errors:
//   - [shared.ErrNotFound] : 404 and 410, not retried by the executor
//   - [shared.ErrFetchRequest] : transport failures and every other non-2xx status
//
// # HLS Fetcher
//
// [HTTPFetcher] lists selectable tracks from a master playlist and stores playlists, segments, init
// maps and key files under a per-resource directory. Each stored file is recorded in the content index so
// retries skip files already fetched and removals know what to delete.
//
// Track keys address master playlist variants as period 0, group 0 and the variant's index.
package services
