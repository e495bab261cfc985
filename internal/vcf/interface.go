package vcf

// VariantParser is the interface for parsers that read variants.
type VariantParser interface {
	// Next reads the next variant.
	// Returns nil, nil when there are no more variants.
	Next() (*Variant, error)

	// Close closes the parser and releases resources.
	Close() error

	// LineNumber returns the current line number being processed.
	LineNumber() int
}

// Source is a VariantParser that also exposes its header, which the
// synchronizer needs for sample counts and for copying records out.
type Source interface {
	VariantParser

	// Header returns the header lines, #CHROM line included.
	Header() []string

	// SampleNames returns the sample columns of the #CHROM line.
	SampleNames() []string
}

// Sink accepts a header and a stream of records to append verbatim.
type Sink interface {
	WriteHeader(lines []string) error
	Write(v *Variant) error
	Close() error
}
