// Package genmap converts base-pair positions into genetic coordinates using
// a recombination map.
package genmap

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// ChromX is the numeric id used for the X chromosome in map files.
const ChromX = 23

// Interpolator returns the genetic position of (chrom, bp) in Morgans.
type Interpolator interface {
	Interp(chrom int, bp int64) (float64, error)
}

// Point is one row of a genetic map.
type Point struct {
	BP   int64
	Rate float64 // cM/Mb from this point to the next
	CM   float64
}

// Map is a genetic map loaded from a whitespace-separated table with the
// columns chr, position, COMBINED_rate(cM/Mb), Genetic_Map(cM).
type Map struct {
	points map[int][]Point
}

// Load reads a genetic map file, gzip-compressed or plain.
func Load(path string) (*Map, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open genetic map: %w", err)
	}
	defer f.Close()

	br := bufio.NewReader(f)
	magic, _ := br.Peek(2)
	var r io.Reader = br
	if len(magic) == 2 && magic[0] == 0x1f && magic[1] == 0x8b {
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("create gzip reader: %w", err)
		}
		defer gz.Close()
		r = gz
	}

	m, err := Read(r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// Read parses a genetic map table. A first line whose position column is
// not numeric is treated as a header. Rows must be sorted by position within
// each chromosome.
func Read(r io.Reader) (*Map, error) {
	m := &Map{points: make(map[int][]Point)}
	scanner := bufio.NewScanner(r)
	lineNumber := 0
	for scanner.Scan() {
		lineNumber++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}
		if len(fields) < 4 {
			return nil, fmt.Errorf("line %d: expected 4 columns, found %d", lineNumber, len(fields))
		}

		bp, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			if lineNumber == 1 {
				continue
			}
			return nil, fmt.Errorf("line %d: invalid position %q", lineNumber, fields[1])
		}
		chrom, err := ParseChrom(fields[0])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNumber, err)
		}
		rate, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid rate %q", lineNumber, fields[2])
		}
		cM, err := strconv.ParseFloat(fields[3], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid genetic position %q", lineNumber, fields[3])
		}

		pts := m.points[chrom]
		if n := len(pts); n > 0 && bp < pts[n-1].BP {
			return nil, fmt.Errorf("line %d: position %d out of order on chromosome %d", lineNumber, bp, chrom)
		}
		m.points[chrom] = append(pts, Point{BP: bp, Rate: rate, CM: cM})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read genetic map: %w", err)
	}
	if len(m.points) == 0 {
		return nil, fmt.Errorf("genetic map has no entries")
	}
	return m, nil
}

// ParseChrom converts a map or VCF contig name ("1", "chr1", "X") to its
// numeric id.
func ParseChrom(name string) (int, error) {
	name = strings.TrimPrefix(name, "chr")
	if name == "X" || name == "x" {
		return ChromX, nil
	}
	chrom, err := strconv.Atoi(name)
	if err != nil || chrom < 1 {
		return 0, fmt.Errorf("invalid chromosome %q", name)
	}
	return chrom, nil
}

// FromTable builds a map from rows already grouped by chromosome and sorted
// by position.
func FromTable(table map[int][]Point) *Map {
	return &Map{points: table}
}

// Table returns the map rows grouped by chromosome.
func (m *Map) Table() map[int][]Point {
	return m.points
}

// Chromosomes returns the chromosome ids present in the map, ascending.
func (m *Map) Chromosomes() []int {
	chroms := make([]int, 0, len(m.points))
	for c := range m.points {
		chroms = append(chroms, c)
	}
	sort.Ints(chroms)
	return chroms
}

// Interp returns the genetic position of bp on chrom in Morgans. Positions
// between two map points are interpolated linearly; positions past the last
// point are extrapolated at the last point's rate; positions before the first
// point take the first point's coordinate.
func (m *Map) Interp(chrom int, bp int64) (float64, error) {
	pts := m.points[chrom]
	if len(pts) == 0 {
		return 0, fmt.Errorf("chromosome %d not in genetic map", chrom)
	}

	// index of the first point strictly after bp
	i := sort.Search(len(pts), func(i int) bool { return pts[i].BP > bp })
	var cM float64
	switch {
	case i == 0:
		cM = pts[0].CM
	case i == len(pts):
		last := pts[i-1]
		cM = last.CM + last.Rate*float64(bp-last.BP)*1e-6
	default:
		lo, hi := pts[i-1], pts[i]
		cM = lo.CM + (hi.CM-lo.CM)*float64(bp-lo.BP)/float64(hi.BP-lo.BP)
	}
	return cM / 100, nil
}
