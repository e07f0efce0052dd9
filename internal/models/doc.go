// Package models defines the domain types shared by the offline media cache.
//
// The package contains two categories of types:
//
// 1. Tracked state: values that describe what the cache is doing or has done
//   - [ResourceID] : Opaque address of a cacheable stream (a normalized URI)
//   - [TrackKey] : (period, group, track) triple naming one selectable sub-stream
//   - [ActionRecord] : An immutable download or removal request for a resource
//   - [TaskState] : Lifecycle stage of an executing action
//
// 2. Persistent Entities: Database-backed models for the content index
//   - [CachedFile] : One stored playlist or segment file belonging to a resource
//
// Persistent entities implement the [Model] interface providing ID, timestamps and validation.
// The [Repository] interface defines standard CRUD operations for database access.
package models
