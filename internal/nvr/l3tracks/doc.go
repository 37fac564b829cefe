// Package l3tracks owns Layer 3 (Tracks) of the camera data model.
//
// Responsibilities: frame-to-frame association of detections to tracks
// (greedy nearest neighbour with a deterministic tie-break), track
// lifecycle (creation, confirmation, expiry) and the lifecycle
// transitions the event layer consumes.
// Key types: Track, Tracker, Transition.
//
// Dependency rule: L3 may depend on L1-L2, but never on L4+.
// No SQL/database code is allowed in this package.
package l3tracks
