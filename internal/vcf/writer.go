package vcf

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Write modes accepted by NewWriter, named after the htslib mode strings.
const (
	ModeVCF           = "w"   // uncompressed VCF
	ModeVCFCompressed = "wz"  // BGZF-compressed VCF
	ModeBCF           = "wb"  // compressed BCF
	ModeBCFRaw        = "wbu" // uncompressed BCF
)

// ErrUnsupportedMode is returned for write modes this package cannot produce.
var ErrUnsupportedMode = errors.New("unsupported vcf write mode")

// Writer appends VCF records to a file in one of the text modes.
type Writer struct {
	w     *bufio.Writer
	bgzf  *bgzfWriter
	file  *os.File
	count int
}

// NewWriter creates path (or uses stdout for "-") and returns a Writer
// for the given mode.
func NewWriter(path, mode string) (*Writer, error) {
	switch mode {
	case ModeVCF, ModeVCFCompressed:
	case ModeBCF, ModeBCFRaw:
		return nil, fmt.Errorf("%w: %q (binary BCF output)", ErrUnsupportedMode, mode)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedMode, mode)
	}

	var out io.Writer
	var file *os.File
	if path == "-" {
		out = os.Stdout
	} else {
		f, err := os.Create(path)
		if err != nil {
			return nil, fmt.Errorf("create vcf output: %w", err)
		}
		file = f
		out = f
	}

	return newWriter(out, file, mode), nil
}

// NewStreamWriter wraps an existing io.Writer. The caller keeps ownership
// of w; Close flushes but does not close it.
func NewStreamWriter(w io.Writer, mode string) (*Writer, error) {
	if mode != ModeVCF && mode != ModeVCFCompressed {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedMode, mode)
	}
	return newWriter(w, nil, mode), nil
}

func newWriter(out io.Writer, file *os.File, mode string) *Writer {
	vw := &Writer{file: file}
	if mode == ModeVCFCompressed {
		vw.bgzf = newBGZFWriter(out)
		out = vw.bgzf
	}
	vw.w = bufio.NewWriter(out)
	return vw
}

// WriteHeader writes header lines unchanged.
func (vw *Writer) WriteHeader(lines []string) error {
	for _, line := range lines {
		if _, err := vw.w.WriteString(line); err != nil {
			return err
		}
		if err := vw.w.WriteByte('\n'); err != nil {
			return err
		}
	}
	return nil
}

// Write appends a record. Parsed records are written verbatim; records
// built in code are formatted from their fields.
func (vw *Writer) Write(v *Variant) error {
	line := v.Line
	if line == "" {
		line = formatLine(v)
	}
	if _, err := vw.w.WriteString(line); err != nil {
		return err
	}
	vw.count++
	return vw.w.WriteByte('\n')
}

// Count returns the number of records written.
func (vw *Writer) Count() int {
	return vw.count
}

// Close flushes buffered output, terminates BGZF output and closes the file.
func (vw *Writer) Close() error {
	err := vw.w.Flush()
	if vw.bgzf != nil {
		if cerr := vw.bgzf.Close(); err == nil {
			err = cerr
		}
	}
	if vw.file != nil {
		if cerr := vw.file.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// formatLine reconstructs a VCF data line from the variant fields.
func formatLine(v *Variant) string {
	var lb strings.Builder
	lb.Grow(128 + len(v.SampleColumns))

	lb.WriteString(v.Chrom)
	lb.WriteByte('\t')
	lb.WriteString(strconv.FormatInt(v.Pos, 10))
	lb.WriteByte('\t')
	lb.WriteString(orDot(v.ID))
	lb.WriteByte('\t')
	lb.WriteString(v.Ref)
	lb.WriteByte('\t')
	lb.WriteString(orDot(v.Alt))
	lb.WriteByte('\t')
	lb.WriteString(orDot(v.Qual))
	lb.WriteByte('\t')
	lb.WriteString(orDot(v.Filter))
	lb.WriteByte('\t')
	lb.WriteString(orDot(v.Info))

	if v.SampleColumns != "" {
		lb.WriteByte('\t')
		lb.WriteString(v.SampleColumns)
	}
	return lb.String()
}

func orDot(s string) string {
	if s == "" {
		return "."
	}
	return s
}
