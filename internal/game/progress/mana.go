package progress

// ManaPool is the account's shared casting resource. Max is derived from the
// held classes' contributions plus a permanent bonus that survives profession
// changes. The invariant 0 <= current <= max holds after every operation.
type ManaPool struct {
	current float64
	max     float64
	bonus   float64
}

// NewManaPool creates an empty pool. Recompute sets its capacity.
func NewManaPool() *ManaPool {
	return &ManaPool{}
}

// Current returns the mana available right now.
func (p *ManaPool) Current() float64 { return p.current }

// Max returns the pool capacity.
func (p *ManaPool) Max() float64 { return p.max }

// Bonus returns the permanent additive capacity offset.
func (p *ManaPool) Bonus() float64 { return p.bonus }

// Full reports whether the pool is at capacity.
func (p *ManaPool) Full() bool { return p.current >= p.max }

// Add raises current by amount, clamped to max, and returns the mana
// actually gained.
//
// Precondition: amount must be >= 0; use Use to spend.
func (p *ManaPool) Add(amount float64) float64 {
	if amount < 0 {
		panic("progress: ManaPool.Add with negative amount")
	}
	added := amount
	if p.current+added > p.max {
		added = p.max - p.current
	}
	p.current += added
	return added
}

// Use lowers current by amount, clamped to 0, and returns the mana actually
// spent.
//
// Precondition: amount must be >= 0; use Add to gain.
func (p *ManaPool) Use(amount float64) float64 {
	if amount < 0 {
		panic("progress: ManaPool.Use with negative amount")
	}
	spent := amount
	if spent > p.current {
		spent = p.current
	}
	p.current -= spent
	return spent
}

// AddBonus shifts the permanent capacity offset by delta, which may be
// negative, and re-clamps current to the adjusted max.
func (p *ManaPool) AddBonus(delta float64) {
	p.bonus += delta
	p.max += delta
	if p.max < 0 {
		p.max = 0
	}
	p.clamp()
}

// Recompute sets max to the bonus plus the sum of the given per-class
// contributions and re-clamps current.
//
// Postcondition: 0 <= Current() <= Max().
func (p *ManaPool) Recompute(contributions ...float64) {
	sum := p.bonus
	for _, c := range contributions {
		sum += c
	}
	if sum < 0 {
		sum = 0
	}
	p.max = sum
	p.clamp()
}

// SetCurrent forces current to v clamped into [0, max]. Hydration uses this
// to restore the persisted value after Recompute has set the capacity.
func (p *ManaPool) SetCurrent(v float64) {
	p.current = v
	p.clamp()
}

func (p *ManaPool) clamp() {
	if p.current > p.max {
		p.current = p.max
	}
	if p.current < 0 {
		p.current = 0
	}
}
