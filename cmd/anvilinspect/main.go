package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/meigma/anvil"
	"github.com/meigma/anvil/level"
	"github.com/meigma/anvil/nbt"
	"github.com/meigma/anvil/world"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var noProgress bool

func main() {
	rootCmd := &cobra.Command{
		Use:   "anvilinspect",
		Short: "Inspect region files and the chunk data inside them",
	}

	infoCmd := &cobra.Command{
		Use:   "info <REGION_FILE>",
		Short: "Summarize a region file's chunk population",
		Args:  cobra.ExactArgs(1),
		Run:   runInfo,
	}

	dumpCmd := &cobra.Command{
		Use:   "dump <REGION_FILE> <X> <Z>",
		Short: "Print a chunk's tag tree",
		Args:  cobra.ExactArgs(3),
		Run:   runDump,
	}

	validateCmd := &cobra.Command{
		Use:   "validate <REGION_FILE>",
		Short: "Decode every chunk and report the ones that fail",
		Args:  cobra.ExactArgs(1),
		Run:   runValidate,
	}
	validateCmd.Flags().BoolVar(&noProgress, "no-progress", false, "Disable progress bar")

	worldCmd := &cobra.Command{
		Use:   "world <WORLD_DIR>",
		Short: "List a world's dimensions and region files",
		Args:  cobra.ExactArgs(1),
		Run:   runWorld,
	}

	rootCmd.AddCommand(infoCmd, dumpCmd, validateCmd, worldCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func openRegion(path string) *anvil.Region {
	region, err := anvil.OpenFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return region
}

func parseChunkCoord(arg string) int {
	v, err := strconv.Atoi(arg)
	if err != nil || v < 0 || v >= anvil.GridSize {
		fmt.Fprintf(os.Stderr, "Error: chunk coordinate must be 0..%d, got %q\n", anvil.GridSize-1, arg)
		os.Exit(1)
	}
	return v
}

func runInfo(cmd *cobra.Command, args []string) {
	region := openRegion(args[0])
	defer region.Close()

	var generated int
	var newest uint32
	for z := 0; z < anvil.GridSize; z++ {
		for x := 0; x < anvil.GridSize; x++ {
			ok, err := region.Generated(x, z)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			if !ok {
				continue
			}
			generated++
			if ts, _ := region.Timestamp(x, z); ts > newest {
				newest = ts
			}
		}
	}

	fmt.Printf("Region %s:\n", args[0])
	fmt.Printf("  generated chunks: %d/%d\n", generated, anvil.GridSize*anvil.GridSize)
	if newest > 0 {
		fmt.Printf("  newest timestamp: %s\n", time.Unix(int64(newest), 0).UTC().Format(time.RFC3339))
	}
}

func runDump(cmd *cobra.Command, args []string) {
	region := openRegion(args[0])
	defer region.Close()

	x := parseChunkCoord(args[1])
	z := parseChunkCoord(args[2])

	chunk, err := region.Chunk(x, z)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if chunk == nil {
		fmt.Printf("Chunk (%d, %d) is not generated\n", x, z)
		return
	}

	tag, err := chunk.Decode()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if summary, err := level.Summarize(tag); err == nil {
		fmt.Printf("Chunk (%d, %d) status=%s dataVersion=%d\n", summary.X, summary.Z, summary.Status, summary.DataVersion)
	} else {
		fmt.Printf("Chunk (%d, %d)\n", x, z)
	}
	printTag("", tag, 1)
}

// printTag writes one tag and recurses into containers, two spaces of
// indent per level.
func printTag(name string, tag nbt.Tag, indent int) {
	pad := strings.Repeat("  ", indent)
	label := tag.Kind().String()
	if name != "" {
		label += " " + strconv.Quote(name)
	}

	switch tag.Kind() {
	case nbt.TagCompound:
		fmt.Printf("%s%s (%d entries)\n", pad, label, tag.Len())
		for childName, child := range tag.All() {
			printTag(childName, child, indent+1)
		}
	case nbt.TagList:
		elem, _ := tag.ListKind()
		fmt.Printf("%s%s of %s (%d elements)\n", pad, label, elem, tag.Len())
		for child := range tag.Elems() {
			printTag("", child, indent+1)
		}
	case nbt.TagByte:
		v, _ := tag.Byte()
		fmt.Printf("%s%s = %d\n", pad, label, v)
	case nbt.TagShort:
		v, _ := tag.Short()
		fmt.Printf("%s%s = %d\n", pad, label, v)
	case nbt.TagInt:
		v, _ := tag.Int()
		fmt.Printf("%s%s = %d\n", pad, label, v)
	case nbt.TagLong:
		v, _ := tag.Long()
		fmt.Printf("%s%s = %d\n", pad, label, v)
	case nbt.TagFloat:
		v, _ := tag.Float()
		fmt.Printf("%s%s = %g\n", pad, label, v)
	case nbt.TagDouble:
		v, _ := tag.Double()
		fmt.Printf("%s%s = %g\n", pad, label, v)
	case nbt.TagString:
		v, _ := tag.Text()
		fmt.Printf("%s%s = %q\n", pad, label, v)
	case nbt.TagByteArray, nbt.TagIntArray, nbt.TagLongArray:
		fmt.Printf("%s%s (%d elements)\n", pad, label, tag.Len())
	}
}

func runValidate(cmd *cobra.Command, args []string) {
	region := openRegion(args[0])
	defer region.Close()

	var bar *progressbar.ProgressBar
	if !noProgress {
		bar = progressbar.Default(int64(anvil.GridSize*anvil.GridSize), "Validating chunks")
	}

	var generated, failed int
	for z := 0; z < anvil.GridSize; z++ {
		for x := 0; x < anvil.GridSize; x++ {
			if bar != nil {
				bar.Add(1)
			}
			chunk, err := region.Chunk(x, z)
			if err == nil && chunk != nil {
				_, err = chunk.Decode()
			}
			if chunk == nil && err == nil {
				continue
			}
			generated++
			if err != nil {
				failed++
				if bar != nil {
					fmt.Println()
				}
				fmt.Fprintf(os.Stderr, "chunk (%d, %d): %v\n", x, z, err)
			}
		}
	}

	if bar != nil {
		fmt.Println()
	}
	fmt.Printf("Validated %d chunks, %d failed\n", generated, failed)
	if failed > 0 {
		os.Exit(1)
	}
}

func runWorld(cmd *cobra.Command, args []string) {
	w, err := world.Open(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	for _, id := range w.Dimensions() {
		dim, ok := w.Dimension(id)
		if !ok {
			continue
		}
		positions := dim.Positions()
		fmt.Printf("%s: %d region files\n", id, len(positions))
		for _, pos := range positions {
			fmt.Printf("  %s\n", world.RegionFilename(pos))
		}
	}
}
