package genmap

import (
	"fmt"

	"go.uber.org/zap"
)

// Position is a (chromosome, base-pair) pair.
type Position struct {
	Chrom int
	BP    int64
}

// Mapper converts variant positions into centiMorgan coordinates.
type Mapper struct {
	interp Interpolator
	source string
	logger *zap.Logger
}

// NewMapper creates a mapper over interp. source names the map resource
// for log output.
func NewMapper(interp Interpolator, source string) *Mapper {
	return &Mapper{
		interp: interp,
		source: source,
		logger: zap.NewNop(),
	}
}

// SetLogger sets the logger for info messages.
func (m *Mapper) SetLogger(l *zap.Logger) {
	m.logger = l
}

// CentiMorgans returns one centiMorgan value per position.
func (m *Mapper) CentiMorgans(positions []Position) ([]float64, error) {
	m.logger.Info("filling in genetic map coordinates", zap.String("map", m.source))

	cMs := make([]float64, len(positions))
	for i, p := range positions {
		morgans, err := m.interp.Interp(p.Chrom, p.BP)
		if err != nil {
			return nil, fmt.Errorf("interpolate %d:%d: %w", p.Chrom, p.BP, err)
		}
		cMs[i] = 100 * morgans
	}
	return cMs, nil
}
