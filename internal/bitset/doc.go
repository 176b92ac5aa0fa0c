// Package bitset provides a lock-free segmented bitset for concurrent access.
//
// Architecture:
//   - Segmented design: 4096-bit segments (64 uint64 words each)
//   - Lock-free: atomic.Pointer for the segment array, atomic.Uint64 for words
//   - Growth never moves existing segments, so bits stay addressable while
//     other goroutines grow the set
//
// Used internally as the mesh vertex lock table: TestAndSet is a try-lock,
// Unset releases.
package bitset
