// Package server implements the FleetScan HTTP API surface and its
// SQLite-backed snapshot store.
//
// Owns:
//   - HTTP routing contracts, handlers, and error-to-status mapping
//   - The shared-secret header check (RequireAPIKey)
//   - The relational schema and the Store implementations
//
// Does not own:
//   - Wire payload shapes and their validation (internal/shared)
//   - Agent-side collection logic (internal/agent)
//
// Invariants:
//   - JSON responses go through writeJSON
//   - Record ids are store-assigned; client_ip comes from the connection
//   - CreateSnapshot is one transaction: parent + all children, or nothing
//   - /api routes must sit behind RequireAPIKey
package server
