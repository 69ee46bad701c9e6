// Package world locates region files inside a world directory tree and
// maps absolute chunk coordinates onto them.
//
// A world stores one region directory per dimension: "region" for the
// overworld and "DIM<id>/region" for the others. Region files are named
// "r.<x>.<z>.mca" using region coordinates (chunk coordinates divided
// by 32, floored).
package world

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/meigma/anvil"
	"github.com/meigma/anvil/nbt"
)

// ErrNoRegion is returned when a dimension holds no region file for
// the requested coordinates.
var ErrNoRegion = errors.New("world: no region file")

// ID identifies a dimension by its numeric id.
type ID int

const (
	Overworld ID = 0
	Nether    ID = -1
	End       ID = 1
)

// String returns the conventional dimension name.
func (id ID) String() string {
	switch id {
	case Overworld:
		return "overworld"
	case Nether:
		return "nether"
	case End:
		return "end"
	default:
		return fmt.Sprintf("dim%d", int(id))
	}
}

// Position is a region's location in region coordinates.
type Position struct {
	X, Z int
}

// ParseRegionFilename extracts the region position from a filename of
// the form "r.<x>.<z>.mca". ok is false for any other name.
func ParseRegionFilename(name string) (Position, bool) {
	parts := strings.Split(name, ".")
	if len(parts) != 4 || parts[0] != "r" || parts[3] != "mca" {
		return Position{}, false
	}
	x, err := strconv.Atoi(parts[1])
	if err != nil {
		return Position{}, false
	}
	z, err := strconv.Atoi(parts[2])
	if err != nil {
		return Position{}, false
	}
	return Position{X: x, Z: z}, true
}

// RegionFilename returns the canonical filename for a region position.
func RegionFilename(pos Position) string {
	return fmt.Sprintf("r.%d.%d.mca", pos.X, pos.Z)
}

// Dimension is one dimension's set of region files, discovered once at
// open time. Regions themselves are opened lazily per request.
type Dimension struct {
	id      ID
	dir     string
	regions map[Position]string
	opts    []anvil.Option
	logger  *slog.Logger
}

// Option configures dimension and world discovery.
type Option func(*config)

type config struct {
	regionOpts []anvil.Option
	logger     *slog.Logger
}

// WithRegionOptions passes options through to every Region opened by
// the dimension.
func WithRegionOptions(opts ...anvil.Option) Option {
	return func(c *config) {
		c.regionOpts = append(c.regionOpts, opts...)
	}
}

// WithLogger sets the logger for discovery and lookups.
// If not set, logging is disabled.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

func (c *config) log() *slog.Logger {
	if c.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return c.logger
}

// OpenDimension scans dir for region files. The dimension id is taken
// from a trailing "DIM<id>" path component when present, defaulting to
// the overworld.
func OpenDimension(dir string, opts ...Option) (*Dimension, error) {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}

	id := Overworld
	base := filepath.Base(dir)
	if base == "region" {
		base = filepath.Base(filepath.Dir(dir))
	}
	if rest, ok := strings.CutPrefix(base, "DIM"); ok {
		if n, err := strconv.Atoi(rest); err == nil {
			id = ID(n)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("world: %w", err)
	}

	regions := make(map[Position]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		pos, ok := ParseRegionFilename(entry.Name())
		if !ok {
			continue
		}
		regions[pos] = filepath.Join(dir, entry.Name())
	}
	cfg.log().Debug("dimension scanned", "dimension", id, "regions", len(regions))

	return &Dimension{
		id:      id,
		dir:     dir,
		regions: regions,
		opts:    cfg.regionOpts,
		logger:  cfg.logger,
	}, nil
}

// ID returns the dimension id.
func (d *Dimension) ID() ID {
	return d.id
}

// Positions returns the region positions present in the dimension.
func (d *Dimension) Positions() []Position {
	positions := make([]Position, 0, len(d.regions))
	for pos := range d.regions {
		positions = append(positions, pos)
	}
	return positions
}

// HasRegion reports whether a region file exists at the given region
// coordinates.
func (d *Dimension) HasRegion(x, z int) bool {
	_, ok := d.regions[Position{X: x, Z: z}]
	return ok
}

// Region opens the region file at the given region coordinates. The
// caller owns the returned Region and must Close it.
func (d *Dimension) Region(x, z int) (*anvil.Region, error) {
	path, ok := d.regions[Position{X: x, Z: z}]
	if !ok {
		return nil, fmt.Errorf("%w: (%d, %d) in %s", ErrNoRegion, x, z, d.id)
	}
	return anvil.OpenFile(path, d.opts...)
}

// Chunk extracts the raw chunk record for absolute chunk coordinates,
// resolving the owning region and the local slot within it. It returns
// (nil, nil) when the region exists but the chunk is not generated,
// and ErrNoRegion when no region file covers the coordinates.
func (d *Dimension) Chunk(chunkX, chunkZ int) (*anvil.RawChunk, error) {
	region, err := d.Region(floorDiv(chunkX, anvil.GridSize), floorDiv(chunkZ, anvil.GridSize))
	if err != nil {
		return nil, err
	}
	defer region.Close()
	return region.Chunk(positiveMod(chunkX, anvil.GridSize), positiveMod(chunkZ, anvil.GridSize))
}

// World is a world directory with its discovered dimensions.
type World struct {
	root string
	dims map[ID]*Dimension
}

// Open discovers the dimensions of the world rooted at dir: the
// top-level "region" directory and every "DIM<id>/region" directory.
func Open(dir string, opts ...Option) (*World, error) {
	w := &World{root: dir, dims: make(map[ID]*Dimension)}

	if d, err := OpenDimension(filepath.Join(dir, "region"), opts...); err == nil {
		w.dims[Overworld] = d
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("world: %w", err)
	}
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), "DIM") {
			continue
		}
		d, err := OpenDimension(filepath.Join(dir, entry.Name(), "region"), opts...)
		if err != nil {
			continue
		}
		w.dims[d.ID()] = d
	}

	if len(w.dims) == 0 {
		return nil, fmt.Errorf("world: no dimensions under %s", dir)
	}
	return w, nil
}

// Dimension returns the dimension with the given id.
func (w *World) Dimension(id ID) (*Dimension, bool) {
	d, ok := w.dims[id]
	return d, ok
}

// Dimensions returns the ids of the discovered dimensions.
func (w *World) Dimensions() []ID {
	ids := make([]ID, 0, len(w.dims))
	for id := range w.dims {
		ids = append(ids, id)
	}
	return ids
}

// LevelData reads and decodes the world's level.dat, a gzip-wrapped
// root compound holding global metadata (spawn position, seed, name).
func (w *World) LevelData() (nbt.Tag, error) {
	f, err := os.Open(filepath.Join(w.root, "level.dat"))
	if err != nil {
		return nbt.Tag{}, fmt.Errorf("world: %w", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return nbt.Tag{}, fmt.Errorf("world: level.dat: %w", err)
	}
	defer gz.Close()

	data, err := io.ReadAll(gz)
	if err != nil {
		return nbt.Tag{}, fmt.Errorf("world: level.dat: %w", err)
	}
	return nbt.Decode(data)
}

// floorDiv divides rounding toward negative infinity, so chunk -1
// lands in region -1 rather than region 0.
func floorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

// positiveMod maps into 0..b-1, i.e. -1 mod 32 == 31.
func positiveMod(a, b int) int {
	return ((a % b) + b) % b
}
