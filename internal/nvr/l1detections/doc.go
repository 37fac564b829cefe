// Package l1detections owns Layer 1 (Detections) of the camera data model.
//
// Responsibilities: the per-frame detection type produced by the external
// inference engine, its wire format, and the validation filter that runs
// before tracking.
// Key types: Detection, Frame.
//
// Dependency rule: L1 depends on nothing else under internal/nvr.
package l1detections
