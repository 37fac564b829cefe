// Package pipeline wires the camera layers together.
//
// Each camera owns a Camera context holding its zone store, tracker,
// monitor and recorder; no mutable state is shared between cameras.
// ProcessFrame runs L1 filtering, L3 tracking, L4 signal evaluation and
// L5 recording for one frame. The Registry creates cameras lazily and
// answers statistics; the Dispatcher serialises frames per camera so a
// camera's pipeline is never entered concurrently while different
// cameras run in parallel.
package pipeline
