// Package l5events owns Layer 5 (Events) of the camera data model.
//
// Responsibilities: turning raw signals into recorded events behind a
// per-(kind, target) cooldown, the bounded per-camera event history, and
// fan-out of recorded events to external sinks (archive, broker, object
// store) without ever blocking frame processing.
// Key types: Event, Recorder, Sink, Fanout.
//
// Dependency rule: L5 may depend on L1-L4.
// No SQL/database code is allowed in this package; sinks live in
// internal/db, internal/kafka and internal/s3.
package l5events
