package vcf

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// Region restricts a parser to one contig and an inclusive base-pair range.
// A zero Start or End leaves that side open.
type Region struct {
	Chrom string
	Start int64
	End   int64
}

// Contains reports whether the variant lies inside the region.
func (r *Region) Contains(v *Variant) bool {
	switch {
	case !SameChrom(v.Chrom, r.Chrom):
		return false
	case r.Start > 0 && v.Pos < r.Start:
		return false
	case r.End > 0 && v.Pos > r.End:
		return false
	}
	return true
}

// Parser streams records from a VCF file, optionally restricted to a region.
type Parser struct {
	r       *bufio.Reader
	closers []io.Closer

	line    int
	header  []string
	samples []string
	region  *Region
}

// NewParser opens a VCF file. Plain text and gzip or BGZF compressed input
// are told apart by the gzip magic bytes. Path "-" reads stdin.
func NewParser(path string) (*Parser, error) {
	if path == "-" {
		return NewParserFromReader(os.Stdin)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open vcf file: %w", err)
	}
	p := &Parser{closers: []io.Closer{f}}

	br := bufio.NewReaderSize(f, 1<<16)
	if magic, _ := br.Peek(2); len(magic) == 2 && magic[0] == 0x1f && magic[1] == 0x8b {
		// BGZF is a series of gzip members; the reader is multistream.
		gz, err := gzip.NewReader(br)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("create gzip reader: %w", err)
		}
		p.closers = append([]io.Closer{gz}, p.closers...)
		br = bufio.NewReaderSize(gz, 1<<16)
	}
	p.r = br

	if err := p.readHeader(); err != nil {
		p.Close()
		return nil, err
	}
	return p, nil
}

// NewParserFromReader reads uncompressed VCF text from r.
func NewParserFromReader(r io.Reader) (*Parser, error) {
	p := &Parser{r: bufio.NewReaderSize(r, 1<<16)}
	if err := p.readHeader(); err != nil {
		return nil, err
	}
	return p, nil
}

// readLine returns the next line without its terminator. ok is false at EOF.
func (p *Parser) readLine() (line string, ok bool, err error) {
	line, err = p.r.ReadString('\n')
	if errors.Is(err, io.EOF) {
		if line == "" {
			return "", false, nil
		}
		err = nil
	}
	if err != nil {
		return "", false, err
	}
	p.line++
	return strings.TrimRight(line, "\r\n"), true, nil
}

// readHeader consumes the meta lines and the #CHROM line.
func (p *Parser) readHeader() error {
	for {
		line, ok, err := p.readLine()
		if err != nil {
			return fmt.Errorf("read header: %w", err)
		}
		if !ok {
			return &ParseError{Line: p.line, Message: "no #CHROM header line found"}
		}

		switch {
		case strings.HasPrefix(line, "##"):
			p.header = append(p.header, line)
		case strings.HasPrefix(line, "#CHROM"):
			p.header = append(p.header, line)
			if cols := strings.Split(line, "\t"); len(cols) > 9 {
				p.samples = cols[9:]
			}
			return nil
		default:
			return &ParseError{Line: p.line, Message: "expected #CHROM header line"}
		}
	}
}

// SetRegion restricts Next to records inside r. A nil region lifts the
// restriction.
func (p *Parser) SetRegion(r *Region) {
	p.region = r
}

// Next returns the next record inside the region, or nil, nil at EOF.
func (p *Parser) Next() (*Variant, error) {
	for {
		line, ok, err := p.readLine()
		if err != nil {
			return nil, fmt.Errorf("read variant line: %w", err)
		}
		if !ok {
			return nil, nil
		}
		if line == "" {
			continue
		}

		v, err := p.parseRecord(line)
		if err != nil {
			return nil, err
		}
		if p.region == nil || p.region.Contains(v) {
			return v, nil
		}
	}
}

// parseRecord splits the eight fixed columns off a data line. FORMAT and the
// sample columns stay joined until Genotypes needs them.
func (p *Parser) parseRecord(line string) (*Variant, error) {
	cols := strings.SplitN(line, "\t", 9)
	if len(cols) < 8 {
		return nil, &ParseError{
			Line:    p.line,
			Message: fmt.Sprintf("expected at least 8 columns, found %d", len(cols)),
		}
	}

	pos, err := strconv.ParseInt(cols[1], 10, 64)
	if err != nil || pos < 1 {
		return nil, &ParseError{Line: p.line, Message: fmt.Sprintf("invalid position: %s", cols[1])}
	}

	v := &Variant{
		Chrom:  cols[0],
		Pos:    pos,
		ID:     cols[2],
		Ref:    cols[3],
		Alt:    cols[4],
		Qual:   cols[5],
		Filter: cols[6],
		Info:   cols[7],
		Line:   line,
	}
	if len(cols) == 9 {
		v.SampleColumns = cols[8]
	}
	return v, nil
}

// Header returns the header lines, #CHROM line included.
func (p *Parser) Header() []string { return p.header }

// SampleNames returns the sample columns of the #CHROM line, or nil.
func (p *Parser) SampleNames() []string { return p.samples }

// LineNumber returns the number of lines read so far.
func (p *Parser) LineNumber() int { return p.line }

// Close releases the decompressor and the file.
func (p *Parser) Close() error {
	var err error
	for _, c := range p.closers {
		if cerr := c.Close(); err == nil {
			err = cerr
		}
	}
	p.closers = nil
	return err
}

// ParseError reports a malformed line.
type ParseError struct {
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("vcf parse error at line %d: %s", e.Line, e.Message)
}
