// Package anvil reads the region container format: a fixed 8 KiB
// header of 1024 location and 1024 timestamp entries followed by
// sector-aligned, independently compressed chunk records arranged in
// a 32x32 grid.
//
// The package is split in two layers:
//   - The container layer ([Open], [Region.Chunk]) parses the header
//     table and extracts raw, still-compressed chunk records from a
//     random-access [ByteSource].
//   - The tag layer ([RawChunk.Decode], package nbt) decompresses a
//     record and decodes its payload into a typed tag tree.
//
// Chunks are extracted lazily on request; the Region holds only the
// header. Extracted chunks and decoded trees are independent values
// with no reference back to the Region, so the Region may be discarded
// or closed after extraction.
//
// # Quick Start
//
// Open a region file and decode one chunk:
//
//	region, err := anvil.OpenFile("r.0.0.mca")
//	if err != nil {
//	    return err
//	}
//	defer region.Close()
//
//	chunk, err := region.Chunk(0, 0)
//	if err != nil {
//	    return err
//	}
//	if chunk == nil {
//	    // Chunk has not been generated.
//	    return nil
//	}
//	tree, err := chunk.Decode()
//	if err != nil {
//	    return err
//	}
//	status, _ := tree.GetString("Status")
//
// Corruption in one chunk never affects another: every error from
// extraction or decoding is a recoverable value scoped to that chunk.
package anvil
