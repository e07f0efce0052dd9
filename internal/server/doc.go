// Package server exposes the offline cache over HTTP.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] internally with method filtering.
//
// # API
//
// [NewHandler] mounts the JSON API on a [BasicRouter]:
//
//	GET  /api/tracked          tracked resources
//	GET  /api/status?uri=...   one resource, tracked or not
//	GET  /api/tracks?uri=...   selectable tracks of a resource
//	POST /api/download         {"uri": "...", "tracks": ["0.0.1"]}
//	POST /api/remove           {"uri": "..."}
//	GET  /ws                   change notifications
//
// Errors are returned as {"error": "..."} with a status derived from the sentinel errors in shared.
//
// # Change Notifications
//
// Each WebSocket connection registers one listener with the cache and receives {"event":"changed"}
// whenever the tracked set changes. Bursts of changes coalesce into a single message. The listener
// is detached when the connection closes.
package server
