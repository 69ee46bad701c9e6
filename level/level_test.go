package level

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/anvil/nbt"
	"github.com/meigma/anvil/testutil"
)

func decodeRoot(t *testing.T, c testutil.Compound) nbt.Tag {
	t.Helper()
	tag, err := nbt.Decode(testutil.EncodeRoot("", c))
	require.NoError(t, err)
	return tag
}

func baseChunk(fields ...testutil.Field) testutil.Compound {
	c := testutil.Compound{
		{Name: "DataVersion", Value: int32(3465)},
		{Name: "xPos", Value: int32(4)},
		{Name: "zPos", Value: int32(-2)},
		{Name: "yPos", Value: int32(-4)},
		{Name: "Status", Value: "minecraft:full"},
		{Name: "LastUpdate", Value: int64(123456)},
		{Name: "InhabitedTime", Value: int64(789)},
	}
	return append(c, fields...)
}

func paletteEntry(name string, props ...testutil.Field) testutil.Compound {
	c := testutil.Compound{{Name: "Name", Value: name}}
	if len(props) > 0 {
		c = append(c, testutil.Field{Name: "Properties", Value: testutil.Compound(props)})
	}
	return c
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	s, err := Summarize(decodeRoot(t, baseChunk()))
	require.NoError(t, err)
	assert.Equal(t, int32(3465), s.DataVersion)
	assert.Equal(t, int32(4), s.X)
	assert.Equal(t, int32(-2), s.Z)
	assert.Equal(t, int32(-4), s.MinSectionY)
	assert.Equal(t, "minecraft:full", s.Status)
	assert.Equal(t, int64(123456), s.LastUpdate)
	assert.Equal(t, int64(789), s.InhabitedTime)
}

func TestSummarizeVersionGate(t *testing.T) {
	t.Parallel()

	t.Run("missing DataVersion", func(t *testing.T) {
		t.Parallel()
		_, err := Summarize(decodeRoot(t, testutil.Compound{
			{Name: "Status", Value: "full"},
		}))
		assert.ErrorIs(t, err, ErrUnsupportedVersion)
	})

	t.Run("pre-rework version", func(t *testing.T) {
		t.Parallel()
		_, err := Summarize(decodeRoot(t, testutil.Compound{
			{Name: "DataVersion", Value: int32(2230)},
		}))
		assert.ErrorIs(t, err, ErrUnsupportedVersion)
	})

	t.Run("exactly minimum", func(t *testing.T) {
		t.Parallel()
		c := baseChunk()
		c[0].Value = int32(MinDataVersion)
		_, err := Summarize(decodeRoot(t, c))
		assert.NoError(t, err)
	})
}

func TestFromTagNoSections(t *testing.T) {
	t.Parallel()

	c, err := FromTag(decodeRoot(t, baseChunk()))
	require.NoError(t, err)
	assert.Equal(t, 0, c.Sections())

	_, err = c.BlockAt(0, 0, 0)
	assert.ErrorIs(t, err, ErrOutOfBounds)
}

func TestBlockAtSingleState(t *testing.T) {
	t.Parallel()

	sections := testutil.List{Elem: nbt.TagCompound, Items: []any{
		testutil.Compound{
			{Name: "Y", Value: int8(0)},
			{Name: "block_states", Value: testutil.Compound{
				{Name: "palette", Value: testutil.List{Elem: nbt.TagCompound, Items: []any{
					paletteEntry("minecraft:stone"),
				}}},
			}},
		},
	}}

	c, err := FromTag(decodeRoot(t, baseChunk(testutil.Field{Name: "sections", Value: sections})))
	require.NoError(t, err)
	require.Equal(t, 1, c.Sections())

	// Single-entry palettes carry no packed data; every position
	// resolves to the one state.
	for _, pos := range [][3]int{{0, 0, 0}, {15, 15, 15}, {7, 3, 9}} {
		state, err := c.BlockAt(pos[0], pos[1], pos[2])
		require.NoError(t, err)
		assert.Equal(t, "minecraft:stone", state.Name)
	}
}

func TestBlockAtEmptySection(t *testing.T) {
	t.Parallel()

	// A section without block_states reads as all air.
	sections := testutil.List{Elem: nbt.TagCompound, Items: []any{
		testutil.Compound{{Name: "Y", Value: int8(2)}},
	}}

	c, err := FromTag(decodeRoot(t, baseChunk(testutil.Field{Name: "sections", Value: sections})))
	require.NoError(t, err)

	state, err := c.BlockAt(0, 40, 0)
	require.NoError(t, err)
	assert.Equal(t, Air, state.Name)
}

// packedSection builds a two-state section where index data is packed
// 4 bits per entry, 16 entries per long.
func packedSection(y int8, setPos map[int]int) testutil.Compound {
	data := make([]int64, 256)
	for pos, index := range setPos {
		data[pos/16] |= int64(index) << (4 * (pos % 16))
	}
	return testutil.Compound{
		{Name: "Y", Value: y},
		{Name: "block_states", Value: testutil.Compound{
			{Name: "palette", Value: testutil.List{Elem: nbt.TagCompound, Items: []any{
				paletteEntry("minecraft:air"),
				paletteEntry("minecraft:oak_log", testutil.Field{Name: "axis", Value: "y"}),
			}}},
			{Name: "data", Value: data},
		}},
	}
}

func TestBlockAtPacked(t *testing.T) {
	t.Parallel()

	// Block positions within a section: pos = y*256 + z*16 + x.
	sections := testutil.List{Elem: nbt.TagCompound, Items: []any{
		packedSection(0, map[int]int{
			1:         1, // (1, 0, 0)
			5*256 + 3: 1, // (3, 5, 0)
			16:        1, // (0, 0, 1)
		}),
	}}

	c, err := FromTag(decodeRoot(t, baseChunk(testutil.Field{Name: "sections", Value: sections})))
	require.NoError(t, err)

	for _, tt := range []struct {
		x, y, z int
		want    string
	}{
		{x: 1, y: 0, z: 0, want: "minecraft:oak_log"},
		{x: 3, y: 5, z: 0, want: "minecraft:oak_log"},
		{x: 0, y: 0, z: 1, want: "minecraft:oak_log"},
		{x: 0, y: 0, z: 0, want: "minecraft:air"},
		{x: 15, y: 15, z: 15, want: "minecraft:air"},
	} {
		state, err := c.BlockAt(tt.x, tt.y, tt.z)
		require.NoError(t, err)
		assert.Equal(t, tt.want, state.Name, "block (%d, %d, %d)", tt.x, tt.y, tt.z)
	}

	// Properties survive the projection.
	state, err := c.BlockAt(1, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"axis": "y"}, state.Properties)
}

func TestBlockAtNegativeY(t *testing.T) {
	t.Parallel()

	sections := testutil.List{Elem: nbt.TagCompound, Items: []any{
		testutil.Compound{
			{Name: "Y", Value: int8(-4)},
			{Name: "block_states", Value: testutil.Compound{
				{Name: "palette", Value: testutil.List{Elem: nbt.TagCompound, Items: []any{
					paletteEntry("minecraft:bedrock"),
				}}},
			}},
		},
	}}

	c, err := FromTag(decodeRoot(t, baseChunk(testutil.Field{Name: "sections", Value: sections})))
	require.NoError(t, err)

	// y = -64 is section -4, local y 0.
	state, err := c.BlockAt(0, -64, 0)
	require.NoError(t, err)
	assert.Equal(t, "minecraft:bedrock", state.Name)

	// y = -65 falls below every stored section.
	_, err = c.BlockAt(0, -65, 0)
	assert.ErrorIs(t, err, ErrOutOfBounds)
}

func TestBlockAtBounds(t *testing.T) {
	t.Parallel()

	c, err := FromTag(decodeRoot(t, baseChunk()))
	require.NoError(t, err)

	for _, pos := range [][3]int{{-1, 0, 0}, {16, 0, 0}, {0, 0, -1}, {0, 0, 16}} {
		_, err := c.BlockAt(pos[0], pos[1], pos[2])
		assert.ErrorIs(t, err, ErrOutOfBounds, "pos %v", pos)
	}
}

func TestBlockAtCorruptSection(t *testing.T) {
	t.Parallel()

	t.Run("short data", func(t *testing.T) {
		t.Parallel()

		section := testutil.Compound{
			{Name: "Y", Value: int8(0)},
			{Name: "block_states", Value: testutil.Compound{
				{Name: "palette", Value: testutil.List{Elem: nbt.TagCompound, Items: []any{
					paletteEntry("minecraft:air"),
					paletteEntry("minecraft:stone"),
				}}},
				{Name: "data", Value: []int64{0}},
			}},
		}
		sections := testutil.List{Elem: nbt.TagCompound, Items: []any{section}}

		c, err := FromTag(decodeRoot(t, baseChunk(testutil.Field{Name: "sections", Value: sections})))
		require.NoError(t, err)

		// Local y=1 starts at pos 256, long 16, past the single long.
		_, err = c.BlockAt(0, 1, 0)
		assert.ErrorIs(t, err, ErrCorruptSection)
	})

	t.Run("index beyond palette", func(t *testing.T) {
		t.Parallel()

		sections := testutil.List{Elem: nbt.TagCompound, Items: []any{
			packedSection(0, map[int]int{0: 9}),
		}}

		c, err := FromTag(decodeRoot(t, baseChunk(testutil.Field{Name: "sections", Value: sections})))
		require.NoError(t, err)

		_, err = c.BlockAt(0, 0, 0)
		assert.ErrorIs(t, err, ErrCorruptSection)
	})
}

func TestFromTagWrongTypedContainers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		section testutil.Compound
	}{
		{
			name: "block_states not a compound",
			section: testutil.Compound{
				{Name: "Y", Value: int8(0)},
				{Name: "block_states", Value: int32(7)},
			},
		},
		{
			name: "biomes not a compound",
			section: testutil.Compound{
				{Name: "Y", Value: int8(0)},
				{Name: "biomes", Value: "minecraft:plains"},
			},
		},
		{
			name: "biome palette entry not a string",
			section: testutil.Compound{
				{Name: "Y", Value: int8(0)},
				{Name: "biomes", Value: testutil.Compound{
					{Name: "palette", Value: testutil.List{Elem: nbt.TagInt, Items: []any{int32(1)}}},
				}},
			},
		},
		{
			name: "data not a long array",
			section: testutil.Compound{
				{Name: "Y", Value: int8(0)},
				{Name: "block_states", Value: testutil.Compound{
					{Name: "palette", Value: testutil.List{Elem: nbt.TagCompound, Items: []any{
						paletteEntry("minecraft:air"),
						paletteEntry("minecraft:stone"),
					}}},
					{Name: "data", Value: []int32{0}},
				}},
			},
		},
		{
			name: "properties value not a string",
			section: testutil.Compound{
				{Name: "Y", Value: int8(0)},
				{Name: "block_states", Value: testutil.Compound{
					{Name: "palette", Value: testutil.List{Elem: nbt.TagCompound, Items: []any{
						testutil.Compound{
							{Name: "Name", Value: "minecraft:oak_log"},
							{Name: "Properties", Value: testutil.Compound{
								{Name: "axis", Value: int32(1)},
							}},
						},
					}}},
				}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			sections := testutil.List{Elem: nbt.TagCompound, Items: []any{tt.section}}
			_, err := FromTag(decodeRoot(t, baseChunk(testutil.Field{Name: "sections", Value: sections})))
			assert.ErrorIs(t, err, ErrCorruptSection)
		})
	}
}

func TestBlockAtExtremeY(t *testing.T) {
	t.Parallel()

	sections := testutil.List{Elem: nbt.TagCompound, Items: []any{
		testutil.Compound{
			{Name: "Y", Value: int8(0)},
			{Name: "block_states", Value: testutil.Compound{
				{Name: "palette", Value: testutil.List{Elem: nbt.TagCompound, Items: []any{
					paletteEntry("minecraft:stone"),
				}}},
			}},
		},
	}}

	c, err := FromTag(decodeRoot(t, baseChunk(testutil.Field{Name: "sections", Value: sections})))
	require.NoError(t, err)

	// y values whose section index exceeds the stored int8 range must
	// not alias back into section 0.
	for _, y := range []int{4096, -4112, 1 << 20} {
		_, err := c.BlockAt(0, y, 0)
		assert.ErrorIs(t, err, ErrOutOfBounds, "y=%d", y)
	}
}

func TestSectionBiomes(t *testing.T) {
	t.Parallel()

	sections := testutil.List{Elem: nbt.TagCompound, Items: []any{
		testutil.Compound{
			{Name: "Y", Value: int8(0)},
			{Name: "biomes", Value: testutil.Compound{
				{Name: "palette", Value: testutil.List{Elem: nbt.TagString, Items: []any{
					"minecraft:plains", "minecraft:river",
				}}},
			}},
		},
	}}

	c, err := FromTag(decodeRoot(t, baseChunk(testutil.Field{Name: "sections", Value: sections})))
	require.NoError(t, err)

	section := c.Section(0)
	require.NotNil(t, section)
	assert.Equal(t, []string{"minecraft:plains", "minecraft:river"}, section.Biomes)
}
