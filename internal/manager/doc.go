// Package manager wires the hub client, discovery engine, cache store,
// downloader and backend resolver into the service exposed over HTTP. It is
// structured into small files by concern:
//
//   - manager.go: core Manager type, constructor, cache operations.
//   - resolve.go: Resolve/Pull entry points and preference merging.
//   - status_report.go: Status and Backends reporting for the API.
//
// External packages should treat this package as the orchestration layer and
// use public methods only (New, Resolve, Pull, CachedModels, DeleteModel,
// Backends, Status, Ready).
package manager
