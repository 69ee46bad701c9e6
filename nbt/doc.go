// Package nbt decodes the named binary tag format used for chunk
// payloads in region files.
//
// The format is a self-describing tree: every value carries a one-byte
// kind tag, compounds map names to child values, and lists hold a
// homogeneous sequence of values sharing one declared element kind.
// All multi-byte fields are big-endian.
//
// Decoding produces an immutable, owned [Tag] tree with no references
// back into the input buffer beyond array payload copies. The decoder
// never panics on malformed input; corruption surfaces as one of the
// package sentinel errors.
package nbt
