// Package conv provides checked integer conversions.
//
// Use cases:
//   - Element ids entering 32-bit roaring bitmaps
//   - Validating counts read back from an operation log
//
// For conversions that are provably safe by domain constraints (e.g., loop
// indices, bounded counters), use direct type casts instead.
package conv
