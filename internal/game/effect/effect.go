// Package effect defines the boundary contracts between the progression core
// and externally supplied skill behavior. A skill may provide any subset of
// the three capabilities; the cast pipeline and the passive bookkeeping
// branch on which capabilities resolve, never on concrete types.
package effect

// Actor identifies a world presence a skill effect acts on. The progression
// core never reaches past this interface into the world runtime.
type Actor interface {
	// UID is the stable identifier shared with the account's player id.
	UID() string
	// DisplayName is the name used in feedback messages.
	DisplayName() string
}

// Immediate is a self-cast capability: the effect runs on the caster alone.
type Immediate interface {
	// Cast runs the effect for a caster at the given skill rank. A false
	// return without error is a clean fizzle; an error is an effect fault.
	Cast(actor Actor, level int) (bool, error)
}

// Targeted is a single-target capability.
type Targeted interface {
	// Cast runs the effect against a resolved living target. ally reports
	// whether caster and target share a team.
	Cast(actor, target Actor, level int, ally bool) (bool, error)
}

// Passive is a continuously running capability, driven by rank transitions
// rather than explicit invocation.
type Passive interface {
	// Initialize starts the passive when the skill reaches rank 1 or when
	// the owning account comes online.
	Initialize(actor Actor, level int)
	// Update transitions the passive between ranks.
	Update(actor Actor, oldLevel, newLevel int)
	// Stop halts the passive on downgrade to rank 0 or logout.
	Stop(actor Actor, level int)
}

// Resolver looks up the capability implementations for a skill. A missing
// capability returns ok == false; the callers treat that as "skill does not
// do this", never as an error.
type Resolver interface {
	Immediate(skillID string) (Immediate, bool)
	Targeted(skillID string) (Targeted, bool)
	Passive(skillID string) (Passive, bool)
}

// ImmediateFunc adapts a function to the Immediate capability.
type ImmediateFunc func(actor Actor, level int) (bool, error)

// Cast implements Immediate.
func (f ImmediateFunc) Cast(actor Actor, level int) (bool, error) { return f(actor, level) }

// TargetedFunc adapts a function to the Targeted capability.
type TargetedFunc func(actor, target Actor, level int, ally bool) (bool, error)

// Cast implements Targeted.
func (f TargetedFunc) Cast(actor, target Actor, level int, ally bool) (bool, error) {
	return f(actor, target, level, ally)
}

// PassiveHooks adapts three optional functions to the Passive capability.
// Nil hooks are no-ops.
type PassiveHooks struct {
	OnInitialize func(actor Actor, level int)
	OnUpdate     func(actor Actor, oldLevel, newLevel int)
	OnStop       func(actor Actor, level int)
}

// Initialize implements Passive.
func (p PassiveHooks) Initialize(actor Actor, level int) {
	if p.OnInitialize != nil {
		p.OnInitialize(actor, level)
	}
}

// Update implements Passive.
func (p PassiveHooks) Update(actor Actor, oldLevel, newLevel int) {
	if p.OnUpdate != nil {
		p.OnUpdate(actor, oldLevel, newLevel)
	}
}

// Stop implements Passive.
func (p PassiveHooks) Stop(actor Actor, level int) {
	if p.OnStop != nil {
		p.OnStop(actor, level)
	}
}

// Funcs is a static Resolver built from per-skill capability maps. It backs
// tests and programmatic content; the Lua engine provides the production
// Resolver.
type Funcs struct {
	Immediates map[string]Immediate
	Targeteds  map[string]Targeted
	Passives   map[string]Passive
}

// Immediate implements Resolver.
func (f Funcs) Immediate(skillID string) (Immediate, bool) {
	impl, ok := f.Immediates[skillID]
	return impl, ok
}

// Targeted implements Resolver.
func (f Funcs) Targeted(skillID string) (Targeted, bool) {
	impl, ok := f.Targeteds[skillID]
	return impl, ok
}

// Passive implements Resolver.
func (f Funcs) Passive(skillID string) (Passive, bool) {
	impl, ok := f.Passives[skillID]
	return impl, ok
}

// None is a Resolver that resolves nothing; accounts manipulated offline use
// it so rank transitions never invoke effects.
var None Resolver = Funcs{}
