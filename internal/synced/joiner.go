// Package synced reads a reference panel and a target cohort side by side,
// keeps the variants they share, and prepares them for phasing.
package synced

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/inodb/vibe-phase/internal/genmap"
	"github.com/inodb/vibe-phase/internal/vcf"
)

// ErrUnsorted is returned when a stream is not sorted by chromosome and
// position.
var ErrUnsorted = errors.New("variants not sorted by position")

// Pair is one step of the joint iteration. Exactly one side is nil for a
// record present in only one stream.
type Pair struct {
	Ref    *vcf.Variant
	Target *vcf.Variant
}

type joinKey struct {
	rank int
	pos  int64
}

func (k joinKey) less(o joinKey) bool {
	if k.rank != o.rank {
		return k.rank < o.rank
	}
	return k.pos < o.pos
}

// unranked sorts a record after every contig with a known rank.
const unranked = math.MaxInt

// stream is a one-record lookahead over a parser.
type stream struct {
	name    string
	parser  vcf.VariantParser
	head    *vcf.Variant
	contig  string // canonical contig of head
	lastPos int64
	visited map[string]bool
	done    bool
}

// Joiner merge-joins two position-sorted variant streams.
//
// Contigs are ordered as the reference lists them: its ##contig header
// lines, then the target's ##contig lines, then order of first appearance in
// the reference. A target contig the reference has not reached yet waits
// until the reference reaches it or ends.
//
// In exact mode two records pair only when REF and ALT are identical. In
// collapse mode records at the same position pair even when their alleles
// differ, preferring identical alleles, then REF/ALT swapped alleles, then
// records of the same kind (SNP or indel) in file order.
type Joiner struct {
	ref      stream
	target   stream
	collapse bool
	ranks    map[string]int
	queue    []Pair
}

// headered is implemented by parsers that expose their header lines.
type headered interface {
	Header() []string
}

// NewJoiner creates a joiner over a reference and a target stream.
func NewJoiner(ref, target vcf.VariantParser, collapse bool) *Joiner {
	j := &Joiner{
		ref:      stream{name: "reference", parser: ref, visited: make(map[string]bool)},
		target:   stream{name: "target", parser: target, visited: make(map[string]bool)},
		collapse: collapse,
		ranks:    make(map[string]int),
	}
	for _, p := range []vcf.VariantParser{ref, target} {
		if h, ok := p.(headered); ok {
			for _, id := range headerContigs(h.Header()) {
				j.addRank(id)
			}
		}
	}
	return j
}

// headerContigs returns the IDs of the ##contig lines in header order.
func headerContigs(header []string) []string {
	var ids []string
	for _, line := range header {
		rest, ok := strings.CutPrefix(line, "##contig=<")
		if !ok {
			continue
		}
		for _, field := range strings.Split(strings.TrimSuffix(rest, ">"), ",") {
			if id, ok := strings.CutPrefix(field, "ID="); ok {
				ids = append(ids, id)
				break
			}
		}
	}
	return ids
}

// canonicalContig makes "chr20" and "20", or "X" and "23", compare equal.
func canonicalContig(chrom string) string {
	if c, err := genmap.ParseChrom(chrom); err == nil {
		return strconv.Itoa(c)
	}
	return vcf.NormalizeChrom(chrom)
}

func (j *Joiner) addRank(chrom string) {
	name := canonicalContig(chrom)
	if _, ok := j.ranks[name]; !ok {
		j.ranks[name] = len(j.ranks)
	}
}

// key returns the merge key of the head of s.
func (j *Joiner) key(s *stream) joinKey {
	r, ok := j.ranks[s.contig]
	if !ok {
		if s == &j.target && !j.ref.done {
			return joinKey{rank: unranked, pos: s.head.Pos}
		}
		r = len(j.ranks)
		j.ranks[s.contig] = r
	}
	return joinKey{rank: r, pos: s.head.Pos}
}

func (j *Joiner) fill(s *stream) error {
	if s.head != nil || s.done {
		return nil
	}
	v, err := s.parser.Next()
	if err != nil {
		return fmt.Errorf("read %s: %w", s.name, err)
	}
	if v == nil {
		s.done = true
		return nil
	}

	contig := canonicalContig(v.Chrom)
	switch {
	case contig != s.contig && s.visited[contig]:
		return fmt.Errorf("%s line %d, %s:%d: contig resumed after another one: %w",
			s.name, s.parser.LineNumber(), v.Chrom, v.Pos, ErrUnsorted)
	case contig == s.contig && v.Pos < s.lastPos:
		return fmt.Errorf("%s line %d, %s:%d follows position %d: %w",
			s.name, s.parser.LineNumber(), v.Chrom, v.Pos, s.lastPos, ErrUnsorted)
	}
	s.visited[contig] = true
	s.head, s.contig, s.lastPos = v, contig, v.Pos

	if s == &j.ref {
		j.addRank(contig)
	}
	return nil
}

// take returns every record of s at key.
func (j *Joiner) take(s *stream, key joinKey) ([]*vcf.Variant, error) {
	var out []*vcf.Variant
	for {
		if err := j.fill(s); err != nil {
			return nil, err
		}
		if s.head == nil || j.key(s) != key {
			return out, nil
		}
		out = append(out, s.head)
		s.head = nil
	}
}

// Next returns the next pair. ok is false once both streams are exhausted.
func (j *Joiner) Next() (p Pair, ok bool, err error) {
	for len(j.queue) == 0 {
		if err := j.fill(&j.ref); err != nil {
			return Pair{}, false, err
		}
		if err := j.fill(&j.target); err != nil {
			return Pair{}, false, err
		}

		var key joinKey
		switch {
		case j.ref.head == nil && j.target.head == nil:
			return Pair{}, false, nil
		case j.ref.head == nil:
			key = j.key(&j.target)
		case j.target.head == nil:
			key = j.key(&j.ref)
		default:
			key = j.key(&j.ref)
			if tk := j.key(&j.target); tk.less(key) {
				key = tk
			}
		}

		refs, err := j.take(&j.ref, key)
		if err != nil {
			return Pair{}, false, err
		}
		targets, err := j.take(&j.target, key)
		if err != nil {
			return Pair{}, false, err
		}
		j.queue = j.match(refs, targets)
	}

	p = j.queue[0]
	j.queue = j.queue[1:]
	return p, true, nil
}

// match pairs the records sharing one position. Pairs follow target file
// order; unmatched reference records come last.
func (j *Joiner) match(refs, targets []*vcf.Variant) []Pair {
	partner := make([]int, len(targets))
	used := make([]bool, len(refs))
	for i := range partner {
		partner[i] = -1
	}

	passes := []func(r, t *vcf.Variant) bool{sameAlleles}
	if j.collapse {
		passes = append(passes, swappedAlleles, sameKind)
	}
	for _, accept := range passes {
		for ti, t := range targets {
			if partner[ti] >= 0 {
				continue
			}
			for ri, r := range refs {
				if !used[ri] && accept(r, t) {
					partner[ti], used[ri] = ri, true
					break
				}
			}
		}
	}

	pairs := make([]Pair, 0, len(refs)+len(targets))
	for ti, t := range targets {
		p := Pair{Target: t}
		if partner[ti] >= 0 {
			p.Ref = refs[partner[ti]]
		}
		pairs = append(pairs, p)
	}
	for ri, r := range refs {
		if !used[ri] {
			pairs = append(pairs, Pair{Ref: r})
		}
	}
	return pairs
}

func sameAlleles(r, t *vcf.Variant) bool {
	return r.Ref == t.Ref && r.Alt == t.Alt
}

func swappedAlleles(r, t *vcf.Variant) bool {
	return r.Ref == t.Alt && r.Alt == t.Ref
}

// sameKind reports whether both records are SNPs or both are not.
func sameKind(r, t *vcf.Variant) bool {
	return r.IsSNP() == t.IsSNP()
}
