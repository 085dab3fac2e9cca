package manager

// budget tracks VRAM accounting for admission control. Methods assume the
// caller holds the manager lock; only the load/unload paths mutate it.
//
// usedMB covers online models, pendingMB covers in-flight loads. Counting
// pending reservations in admission keeps the hard ceiling intact when two
// loads overlap, while usedMB stays equal to the sum over online models.
type budget struct {
	totalMB   int
	fraction  float64
	minFreeMB int

	usedMB    int
	pendingMB int
}

// limitMB is the admission ceiling: capacity * fraction, minus the reserved
// floor. Zero or negative capacity means unlimited.
func (b *budget) limitMB() int {
	if b.totalMB <= 0 {
		return 0
	}
	lim := int(float64(b.totalMB) * b.fraction)
	return lim - b.minFreeMB
}

func (b *budget) canAccommodate(requiredMB int) bool {
	lim := b.limitMB()
	if lim <= 0 && b.totalMB <= 0 {
		return true // unlimited
	}
	return lim-b.usedMB-b.pendingMB >= requiredMB
}

func (b *budget) freeMB() int {
	lim := b.limitMB()
	if lim <= 0 && b.totalMB <= 0 {
		return -1 // unlimited
	}
	free := lim - b.usedMB - b.pendingMB
	if free < 0 {
		free = 0
	}
	return free
}

func (b *budget) hold(mb int)    { b.pendingMB += mb }
func (b *budget) unhold(mb int)  { b.pendingMB -= mb; b.clampPending() }
func (b *budget) reserve(mb int) { b.usedMB += mb }

// release returns the amount the caller tried to release beyond what was
// reserved. Nonzero means an accounting invariant was violated upstream; the
// counter is clamped rather than left negative.
func (b *budget) release(mb int) int {
	b.usedMB -= mb
	if b.usedMB < 0 {
		leak := -b.usedMB
		b.usedMB = 0
		return leak
	}
	return 0
}

func (b *budget) clampPending() {
	if b.pendingMB < 0 {
		b.pendingMB = 0
	}
}
