// Package core validates tabular files against schemas.
//
// It holds the domain logic and is shared by the HTTP server and the
// sheetcheck CLI. Nothing here knows about HTTP or terminals.
//
// # Engine
//
// [Engine.Validate] checks one [Source] against a [schema.Schema] and returns a
// [Result]. A run never stops at the first defect; every problem becomes an
// ordered diagnostic line. Lines starting with [MarkerPrefix] open a worksheet
// section, and [Result.Sections] groups the rest under them.
//
// Only missing inputs are returned as errors ([ErrMissingFile],
// [ErrMissingSchema]). A bad file name, an unsupported extension or an
// unreadable workbook all produce a failed Result instead.
//
// # Service
//
// [Service] wraps the Engine for transports:
//
//   - schemas are loaded from a [store.Store] by id
//   - concurrent runs are bounded by a [ValidationLimiter]
//   - every run is logged with a run id and recorded in Prometheus metrics
//   - [Service.ValidateBatch] validates many files with bounded parallelism
//
// # Error Handling
//
// Errors are mapped to user-facing messages using [MapError]. Each category
// has a code for support reference:
//
//   - SCH001-SCH003: schema errors (invalid document, not found, bad name)
//   - FILE001-FILE003: file errors (too large, missing file, missing schema)
//   - UPL001-UPL002: validation slot and cancellation errors
//   - RATE001: request rate limit
package core
