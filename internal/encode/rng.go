package encode

// PhaseSeed is the initial state of a PhaseRNG.
const PhaseSeed uint32 = 521288629

// PhaseRNG is a multiply-with-carry generator used to pick a phase for
// unphased heterozygous reference calls. Its output depends only on the
// number of draws made since seeding, so runs are reproducible.
type PhaseRNG struct {
	w uint32
}

// NewPhaseRNG returns a generator seeded with PhaseSeed.
func NewPhaseRNG() *PhaseRNG {
	return &PhaseRNG{w: PhaseSeed}
}

// Next advances the state and reports whether the new state is odd.
func (r *PhaseRNG) Next() bool {
	r.w = 18000*(r.w&0xFFFF) + (r.w >> 16)
	return r.w&1 == 1
}

// State returns the current generator state.
func (r *PhaseRNG) State() uint32 {
	return r.w
}
