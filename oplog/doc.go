// Package oplog records committed mesh operations as a binary stream.
//
// A log starts with a five byte header, the magic "MKOL" followed by the
// compression byte. The remainder is a sequence of frames, optionally
// compressed as one zstd or lz4 stream:
//
//	[payload length uvarint][payload][xxhash64 of payload, little endian]
//
// A Writer is an operation.Recorder, so it can be handed to the executor or
// scheduler directly; records then appear in the order edits became visible.
package oplog
