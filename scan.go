package anvil

import (
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/meigma/anvil/nbt"
)

// ChunkResult is the outcome of decoding one generated chunk slot.
// Exactly one of Tag and Err is meaningful.
type ChunkResult struct {
	X, Z int
	Tag  nbt.Tag
	Err  error
}

// DecodeAll extracts and decodes every generated chunk of the region
// across a fixed pool of workers, returning one result per generated
// slot in header order.
//
// Slots are mutually independent: a corrupt chunk contributes an error
// result without aborting the batch or affecting any other slot.
// workers <= 0 uses GOMAXPROCS.
func (r *Region) DecodeAll(workers int) []ChunkResult {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	type coord struct{ x, z int }
	var coords []coord
	for z := range GridSize {
		for x := range GridSize {
			if !r.locations[x+z*GridSize].empty() {
				coords = append(coords, coord{x, z})
			}
		}
	}

	results := make([]ChunkResult, len(coords))
	var eg errgroup.Group
	eg.SetLimit(workers)
	for i, c := range coords {
		eg.Go(func() error {
			results[i] = r.decodeSlot(c.x, c.z)
			return nil
		})
	}
	// Workers never return errors; failures land in their result slot.
	_ = eg.Wait()

	r.log().Debug("region scan complete", "chunks", len(results), "workers", workers)
	return results
}

func (r *Region) decodeSlot(x, z int) ChunkResult {
	res := ChunkResult{X: x, Z: z}
	chunk, err := r.Chunk(x, z)
	if err != nil {
		res.Err = err
		return res
	}
	res.Tag, res.Err = chunk.Decode()
	return res
}

// Validate extracts and decodes every generated chunk sequentially and
// returns the first failure, annotated with its coordinates. A nil
// return means the whole region decoded cleanly.
//
// This reads and decompresses everything; prefer per-chunk handling
// via Chunk and Decode when only some slots matter.
func (r *Region) Validate() error {
	for z := range GridSize {
		for x := range GridSize {
			if r.locations[x+z*GridSize].empty() {
				continue
			}
			if res := r.decodeSlot(x, z); res.Err != nil {
				return fmt.Errorf("chunk (%d, %d): %w", x, z, res.Err)
			}
		}
	}
	return nil
}
