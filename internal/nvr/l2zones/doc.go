// Package l2zones owns Layer 2 (Zones) of the camera data model.
//
// Responsibilities: zone geometry (rectangles and polygons in frame pixel
// coordinates), point containment, and the per-camera Store that holds
// the configured zones. Zones are immutable once created; the only
// mutations are Add and Remove.
//
// Dependency rule: L2 may depend on L1, never on L3+.
package l2zones
