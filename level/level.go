// Package level projects decoded chunk trees onto game-level concepts:
// chunk status, sections, and block lookups.
//
// The binary tag format underneath is stable; the semantic schema on
// top of it is not. This package therefore selects its projection by
// the tree's DataVersion tag and refuses versions it does not know,
// rather than guessing at moved or renamed fields.
package level

import (
	"errors"
	"fmt"
	"math"
	"math/bits"

	"github.com/meigma/anvil/nbt"
)

// MinDataVersion is the oldest schema this package projects: the
// layout where chunk fields live at the root of the tree (DataVersion
// 2844 and later). Older trees nest everything under a "Level"
// compound and use a different section encoding.
const MinDataVersion = 2844

var (
	// ErrUnsupportedVersion is returned for trees whose DataVersion
	// predates MinDataVersion or is absent.
	ErrUnsupportedVersion = errors.New("level: unsupported data version")

	// ErrOutOfBounds is returned for block coordinates outside the
	// chunk's horizontal extent or below/above its sections.
	ErrOutOfBounds = errors.New("level: block coordinates out of bounds")

	// ErrCorruptSection is returned when a section's packed block-state
	// data does not match its palette.
	ErrCorruptSection = errors.New("level: corrupt section data")
)

// Air is the block state used for sections that store no block data.
const Air = "minecraft:air"

const sectionSize = 16

// Summary is the cheap, scalar-only projection of a chunk tree.
type Summary struct {
	DataVersion   int32
	X, Z          int32
	MinSectionY   int32 // yPos: the lowest section's y index
	Status        string
	LastUpdate    int64
	InhabitedTime int64
}

// Summarize reads the summary fields from a chunk's root compound.
func Summarize(root nbt.Tag) (Summary, error) {
	version, err := dataVersion(root)
	if err != nil {
		return Summary{}, err
	}

	s := Summary{DataVersion: version}
	if s.X, err = root.GetInt("xPos"); err != nil {
		return Summary{}, err
	}
	if s.Z, err = root.GetInt("zPos"); err != nil {
		return Summary{}, err
	}
	if s.MinSectionY, err = root.GetInt("yPos"); err != nil {
		return Summary{}, err
	}
	if s.Status, err = root.GetString("Status"); err != nil {
		return Summary{}, err
	}
	// Bookkeeping fields are optional in partially generated chunks.
	s.LastUpdate, _ = root.GetLong("LastUpdate")
	s.InhabitedTime, _ = root.GetLong("InhabitedTime")
	return s, nil
}

func dataVersion(root nbt.Tag) (int32, error) {
	version, err := root.GetInt("DataVersion")
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnsupportedVersion, err)
	}
	if version < MinDataVersion {
		return 0, fmt.Errorf("%w: %d, need %d or later", ErrUnsupportedVersion, version, MinDataVersion)
	}
	return version, nil
}

// BlockState is one palette entry: a block name plus its property map.
type BlockState struct {
	Name       string
	Properties map[string]string
}

// Section is one 16x16x16 slice of a chunk.
type Section struct {
	Y int8

	// palette and data encode block states as bit-packed palette
	// indices. data is nil for single-state sections.
	palette []BlockState
	data    []int64

	// Biomes is the section's biome palette (names only).
	Biomes []string
}

// Chunk is the block-level projection of one decoded chunk tree.
type Chunk struct {
	Summary  Summary
	sections map[int8]*Section
}

// FromTag builds the projection for a chunk's root compound.
func FromTag(root nbt.Tag) (*Chunk, error) {
	summary, err := Summarize(root)
	if err != nil {
		return nil, err
	}

	c := &Chunk{Summary: summary, sections: make(map[int8]*Section)}

	list, err := root.GetList("sections")
	if err != nil {
		if errors.Is(err, nbt.ErrTagNotFound) {
			// Proto-chunks may not have sections yet.
			return c, nil
		}
		return nil, err
	}

	for tag := range list.Elems() {
		section, err := parseSection(tag)
		if err != nil {
			return nil, err
		}
		c.sections[section.Y] = section
	}
	return c, nil
}

func parseSection(tag nbt.Tag) (*Section, error) {
	y, err := tag.GetByte("Y")
	if err != nil {
		return nil, err
	}
	s := &Section{Y: y}

	// Absent containers are legal (empty sections); present ones with
	// the wrong shape are corruption, not absence.
	states, err := tag.GetCompound("block_states")
	switch {
	case err == nil:
		if err := parseBlockStates(states, s); err != nil {
			return nil, err
		}
	case !errors.Is(err, nbt.ErrTagNotFound):
		return nil, fmt.Errorf("%w: %v", ErrCorruptSection, err)
	}

	biomes, err := tag.GetCompound("biomes")
	switch {
	case err == nil:
		names, err := paletteNames(biomes)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorruptSection, err)
		}
		s.Biomes = names
	case !errors.Is(err, nbt.ErrTagNotFound):
		return nil, fmt.Errorf("%w: %v", ErrCorruptSection, err)
	}
	return s, nil
}

func parseBlockStates(states nbt.Tag, s *Section) error {
	palette, err := states.GetList("palette")
	if err != nil {
		return err
	}
	for entry := range palette.Elems() {
		name, err := entry.GetString("Name")
		if err != nil {
			return err
		}
		state := BlockState{Name: name}
		props, err := entry.GetCompound("Properties")
		switch {
		case err == nil:
			state.Properties = make(map[string]string, props.Len())
			for key, value := range props.All() {
				text, err := value.Text()
				if err != nil {
					return fmt.Errorf("%w: property %q: %v", ErrCorruptSection, key, err)
				}
				state.Properties[key] = text
			}
		case !errors.Is(err, nbt.ErrTagNotFound):
			return fmt.Errorf("%w: %v", ErrCorruptSection, err)
		}
		s.palette = append(s.palette, state)
	}

	// Single-state sections omit the packed data entirely.
	data, err := states.GetLongs("data")
	switch {
	case err == nil:
		s.data = data
	case !errors.Is(err, nbt.ErrTagNotFound):
		return fmt.Errorf("%w: %v", ErrCorruptSection, err)
	}
	return nil
}

func paletteNames(biomes nbt.Tag) ([]string, error) {
	palette, err := biomes.GetList("palette")
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, palette.Len())
	for entry := range palette.Elems() {
		name, err := entry.Text()
		if err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, nil
}

// Section returns the section containing the given absolute block y,
// or nil when the chunk stores none there.
func (c *Chunk) Section(blockY int) *Section {
	idx := floorDiv(blockY, sectionSize)
	if idx < math.MinInt8 || idx > math.MaxInt8 {
		return nil
	}
	return c.sections[int8(idx)]
}

// Sections returns the number of stored sections.
func (c *Chunk) Sections() int {
	return len(c.sections)
}

// BlockAt returns the block state at (x, y, z), where x and z are
// local to the chunk (0..15) and y is absolute. Sections without block
// data report air, matching how absent data is written.
func (c *Chunk) BlockAt(x, y, z int) (BlockState, error) {
	if x < 0 || x >= sectionSize || z < 0 || z >= sectionSize {
		return BlockState{}, fmt.Errorf("%w: (%d, %d)", ErrOutOfBounds, x, z)
	}
	section := c.Section(y)
	if section == nil {
		return BlockState{}, fmt.Errorf("%w: y=%d", ErrOutOfBounds, y)
	}
	return section.blockAt(x, positiveMod(y, sectionSize), z)
}

func (s *Section) blockAt(x, y, z int) (BlockState, error) {
	if len(s.palette) == 0 {
		return BlockState{Name: Air}, nil
	}
	if s.data == nil || len(s.palette) == 1 {
		return s.palette[0], nil
	}

	index, err := s.paletteIndex(y*sectionSize*sectionSize + z*sectionSize + x)
	if err != nil {
		return BlockState{}, err
	}
	return s.palette[index], nil
}

// paletteIndex extracts the palette index for one block position from
// the packed data. Indices use max(4, bits(len(palette)-1)) bits each
// and never span a long boundary; the tail bits of each long are
// padding.
func (s *Section) paletteIndex(pos int) (int, error) {
	width := max(4, bits.Len(uint(len(s.palette)-1)))
	perLong := 64 / width

	slot := pos / perLong
	if slot >= len(s.data) {
		return 0, fmt.Errorf("%w: %d longs for %d-bit indices", ErrCorruptSection, len(s.data), width)
	}
	shift := width * (pos % perLong)
	index := int(uint64(s.data[slot]) >> shift & (1<<width - 1))
	if index >= len(s.palette) {
		return 0, fmt.Errorf("%w: palette index %d of %d", ErrCorruptSection, index, len(s.palette))
	}
	return index, nil
}

func floorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

func positiveMod(a, b int) int {
	return ((a % b) + b) % b
}
