// Package l4signals owns Layer 4 (Signals) of the camera data model.
//
// Responsibilities: zone containment and dwell checks over the current
// track set, and the Signal variant type that carries object-detected,
// zone-violation and loitering observations to the event layer.
// Signals are raw: the monitor reports every frame a condition holds and
// leaves cooldown to L5.
//
// Dependency rule: L4 may depend on L1-L3, but never on L5.
package l4signals
