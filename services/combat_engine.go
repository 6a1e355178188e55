// services/combat_engine.go
package services

import (
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"training-arena-system/config"
	"training-arena-system/models"
)

// Rng is the seedable random source the engine rolls against.
// *rand.Rand satisfies it; tests inject fixed sequences so every
// hit/crit/heal draw is reproducible.
type Rng interface {
	Float64() float64
}

// Ability describes one special ability in the catalog.
type Ability struct {
	ID               string  `json:"id"`
	Name             string  `json:"name"`
	Effect           string  `json:"effect"`
	DamageMultiplier float64 `json:"damage_multiplier"`
	Cooldown         int     `json:"cooldown"` // rounds
	BurnDamage       int     `json:"burn_damage,omitempty"`
	BurnRounds       int     `json:"burn_rounds,omitempty"`
}

// AbilityCatalog is the fixed set of special abilities. Every
// combatant currently knows all of them; the stat provider may narrow
// the list later.
var AbilityCatalog = map[string]Ability{
	"power_strike": {
		ID: "power_strike", Name: "Power Strike",
		Effect: "amplified_damage", DamageMultiplier: 1.75, Cooldown: 3,
	},
	"flame_burst": {
		ID: "flame_burst", Name: "Flame Burst",
		Effect: "burn", DamageMultiplier: 1.4, Cooldown: 4,
		BurnDamage: 2, BurnRounds: 2,
	},
	"guard_break": {
		ID: "guard_break", Name: "Guard Break",
		Effect: "guard_break", DamageMultiplier: 1.2, Cooldown: 3,
	},
}

// DefaultAbilityIDs returns the ability ids a fresh combatant knows.
func DefaultAbilityIDs() []string {
	return []string{"power_strike", "flame_burst", "guard_break"}
}

const defenseBuffKey = "defense"
const burnBuffKey = "burn"

// CombatEngine resolves one action inside one session. It is pure
// apart from its random draws: given the same combatant state and the
// same draw sequence it always produces the same result. The mutex
// only guards the shared rand source — combatant state is already
// serialized by the per-session lock.
type CombatEngine struct {
	cfg config.CombatConfig

	mu  sync.Mutex
	rng Rng
}

func NewCombatEngine(cfg config.CombatConfig, rng Rng) *CombatEngine {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &CombatEngine{cfg: cfg, rng: rng}
}

func (e *CombatEngine) roll() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rng.Float64()
}

// ResolveAction applies one action from actor against target and
// returns what happened. Validation happens before any mutation: an
// error result means neither combatant changed.
func (e *CombatEngine) ResolveAction(actor, target *models.Combatant, action *models.CombatAction, round int, at time.Time) (*models.ActionResult, error) {
	var ability Ability
	switch action.Type {
	case models.ActionAttack, models.ActionDefend, models.ActionHeal:
		// no extra validation
	case models.ActionSpecial:
		var err error
		ability, err = e.validateAbility(actor, action.AbilityID)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: %q", models.ErrInvalidAction, action.Type)
	}

	result := &models.ActionResult{
		Round:    round,
		ActorID:  actor.ParticipantID,
		TargetID: target.ParticipantID,
		Type:     action.Type,
		At:       at,
	}

	// A new round starts for the actor: cooldowns tick down, buffs age
	// out, and any burn stacked on the actor deals its damage.
	result.BurnDamage = e.tickRound(actor)

	switch action.Type {
	case models.ActionAttack:
		e.resolveAttack(actor, target, action, Ability{DamageMultiplier: 1.0}, result)
	case models.ActionDefend:
		e.resolveDefend(actor, result)
		result.TargetID = actor.ParticipantID
	case models.ActionHeal:
		e.resolveHeal(actor, result)
		result.TargetID = actor.ParticipantID
	case models.ActionSpecial:
		e.resolveAttack(actor, target, action, ability, result)
		result.Effect = ability.Effect
		actor.Cooldowns[ability.ID] = ability.Cooldown
	}

	result.ActorHealth = actor.CurrentHealth
	if result.TargetID == actor.ParticipantID {
		result.TargetHealth = actor.CurrentHealth
	} else {
		result.TargetHealth = target.CurrentHealth
	}
	return result, nil
}

func (e *CombatEngine) validateAbility(actor *models.Combatant, abilityID string) (Ability, error) {
	if abilityID == "" {
		return Ability{}, fmt.Errorf("%w: missing ability id", models.ErrInvalidAction)
	}
	ability, ok := AbilityCatalog[abilityID]
	if !ok {
		return Ability{}, fmt.Errorf("%w: unknown ability %q", models.ErrInvalidAction, abilityID)
	}
	known := false
	for _, id := range actor.KnownAbilities {
		if id == abilityID {
			known = true
			break
		}
	}
	if !known {
		return Ability{}, fmt.Errorf("%w: %q not known", models.ErrInvalidAction, abilityID)
	}
	if actor.Cooldowns[abilityID] > 0 {
		return Ability{}, fmt.Errorf("%w: %q has %d rounds left", models.ErrAbilityOnCooldown, abilityID, actor.Cooldowns[abilityID])
	}
	return ability, nil
}

// resolveAttack covers plain attacks and the damage part of specials.
func (e *CombatEngine) resolveAttack(actor, target *models.Combatant, action *models.CombatAction, ability Ability, result *models.ActionResult) {
	accuracy := 0.9 + float64(actor.Accuracy)/100 - float64(target.Evasion)/200
	if action.PowerAttack {
		accuracy -= e.cfg.PowerAccuracyPenalty
	}
	if action.QuickAttack {
		accuracy += e.cfg.QuickAccuracyBonus
	}
	accuracy = clampFloat(accuracy, 0.1, 0.95)

	if e.roll() >= accuracy {
		result.Hit = false
		return
	}
	result.Hit = true

	multiplier := ability.DamageMultiplier
	if e.roll() < e.cfg.CritChance {
		result.Critical = true
		multiplier *= e.cfg.CritMultiplier
	}
	if action.PowerAttack {
		multiplier *= e.cfg.PowerMultiplier
	}
	if action.QuickAttack {
		multiplier *= e.cfg.QuickMultiplier
	}

	if buff, ok := target.ActiveBuffs[defenseBuffKey]; ok && buff.Magnitude > 0 {
		absorb := buff.Magnitude
		if absorb > e.cfg.DefenseBuffCap {
			absorb = e.cfg.DefenseBuffCap
		}
		multiplier *= 1 - absorb
		// The buff wears down each time it soaks a hit.
		buff.Magnitude -= e.cfg.DefenseBuffDecay
		if buff.Magnitude <= 0 {
			delete(target.ActiveBuffs, defenseBuffKey)
		}
	}

	damage := int(math.Round(float64(actor.Attack) * e.cfg.DamageScale * multiplier))
	target.CurrentHealth -= damage
	target.ClampHealth()
	result.Damage = damage

	xp := int(math.Round(float64(damage) * e.cfg.ExperienceScale))
	actor.ExperienceGained += xp
	result.Experience = xp

	if ability.Effect == "burn" && ability.BurnRounds > 0 {
		target.ActiveBuffs[burnBuffKey] = &models.Buff{
			Magnitude:       float64(ability.BurnDamage),
			RemainingRounds: ability.BurnRounds,
		}
	}
	if ability.Effect == "guard_break" {
		delete(target.ActiveBuffs, defenseBuffKey)
	}
}

// resolveDefend grants a stacking defense buff: +magnitude per use,
// duration reset each time.
func (e *CombatEngine) resolveDefend(actor *models.Combatant, result *models.ActionResult) {
	buff, ok := actor.ActiveBuffs[defenseBuffKey]
	if !ok {
		buff = &models.Buff{}
		actor.ActiveBuffs[defenseBuffKey] = buff
	}
	buff.Magnitude += e.cfg.DefendBuffMagnitude
	buff.RemainingRounds = e.cfg.DefendBuffRounds
	result.Hit = true
	result.Effect = "defense_up"
}

// resolveHeal restores a random 15–20% slice of max health, capped.
func (e *CombatEngine) resolveHeal(actor *models.Combatant, result *models.ActionResult) {
	fraction := e.cfg.HealMinFraction + e.roll()*(e.cfg.HealMaxFraction-e.cfg.HealMinFraction)
	amount := int(math.Round(float64(actor.MaxHealth) * fraction))
	before := actor.CurrentHealth
	actor.CurrentHealth += amount
	actor.ClampHealth()
	result.Hit = true
	result.Healing = actor.CurrentHealth - before
}

// tickRound ages the actor's cooldowns and buffs by one round and
// applies any burn stacked on them. Returns the burn damage taken.
func (e *CombatEngine) tickRound(actor *models.Combatant) int {
	for id, remaining := range actor.Cooldowns {
		if remaining <= 1 {
			delete(actor.Cooldowns, id)
		} else {
			actor.Cooldowns[id] = remaining - 1
		}
	}

	burn := 0
	if buff, ok := actor.ActiveBuffs[burnBuffKey]; ok {
		burn = int(buff.Magnitude)
		actor.CurrentHealth -= burn
		actor.ClampHealth()
	}

	for kind, buff := range actor.ActiveBuffs {
		buff.RemainingRounds--
		if buff.RemainingRounds <= 0 {
			delete(actor.ActiveBuffs, kind)
		}
	}
	return burn
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
