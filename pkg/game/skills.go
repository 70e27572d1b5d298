package game

// Declaration is one seat's declared night action.
type Declaration struct {
	Actor  string
	Target string
	Save   bool
}

// validateSkill checks a declaration against the actor's role rules without
// mutating state. Resolver selection is a switch over the closed role set.
func (e *Engine) validateSkill(actor *Seat, d Declaration) error {
	switch actor.Role {
	case RoleWerewolf:
		return e.validateAttack(actor, d)
	case RoleGuard:
		return e.validateProtect(actor, d)
	case RoleWitch:
		return e.validateWitch(actor, d)
	case RoleSeer:
		return e.validateInspect(actor, d)
	}
	return invalid(KindWrongRole, actor.ID, "role %s has no night skill", actor.Role)
}

// applySkill writes a validated declaration into the round context and
// consumes any one-shot resource.
func (e *Engine) applySkill(actor *Seat, d Declaration) {
	switch actor.Role {
	case RoleWerewolf:
		e.round.Night.WolfVotes[actor.ID] = d.Target
	case RoleGuard:
		e.round.Night.GuardTarget = d.Target
		actor.LastGuardTarget = d.Target
	case RoleWitch:
		if d.Save {
			e.round.Night.WitchSave = true
			actor.AntidoteUsed = true
		}
		if d.Target != "" {
			e.round.Night.WitchPoison = d.Target
			actor.PoisonUsed = true
		}
	case RoleSeer:
		e.round.Night.SeerTarget = d.Target
		actor.LastInspectTarget = d.Target
		target := e.index[d.Target]
		actor.Inspections = append(actor.Inspections, Inspection{
			Round:  e.round.Round,
			Target: d.Target,
			IsWolf: target.Role == RoleWerewolf,
		})
	}
}

func (e *Engine) validateAttack(actor *Seat, d Declaration) error {
	return e.requireLivingTarget(actor, d.Target)
}

func (e *Engine) validateProtect(actor *Seat, d Declaration) error {
	if err := e.requireLivingTarget(actor, d.Target); err != nil {
		return err
	}
	if e.setup.Rules.GuardNoConsecutive && actor.LastGuardTarget != "" && actor.LastGuardTarget == d.Target {
		if e.hasLivingOtherThan(d.Target) {
			return invalid(KindRepeatGuard, actor.ID, "cannot protect %q two nights running", d.Target)
		}
	}
	return nil
}

func (e *Engine) validateWitch(actor *Seat, d Declaration) error {
	if d.Save {
		if err := saveRefusal(e.setup.Rules, e.round, *actor); err != nil {
			return err
		}
	}
	if d.Target != "" {
		if actor.PoisonUsed {
			return invalid(KindPoisonUsed, actor.ID, "poison already used")
		}
		if err := e.requireLivingTarget(actor, d.Target); err != nil {
			return err
		}
	}
	return nil
}

// saveRefusal returns the rule that keeps witch from using the antidote on
// the round's attack target, or nil when the save is allowed.
func saveRefusal(rules RuleFlags, rc RoundContext, witch Seat) *ValidationError {
	if witch.AntidoteUsed {
		return invalid(KindAntidoteUsed, witch.ID, "antidote already used")
	}
	attacked := rc.WolfTarget
	if attacked == "" {
		return invalid(KindNoAttackTarget, witch.ID, "no attack target to save")
	}
	if rules.WitchSelfSaveFirstNightOnly && rc.Round > 1 && attacked == witch.ID {
		return invalid(KindSelfSaveForbidden, witch.ID, "self-save is only allowed on the first night")
	}
	if rules.WitchAntidoteOnlyUnprotected && rc.Protected[attacked] {
		return invalid(KindAlreadyProtected, witch.ID, "attack target is already protected")
	}
	return nil
}

// CanSave reports whether the witch seat may use the antidote on this
// night's attack target.
func (s Snapshot) CanSave(witchID string) bool {
	witch, ok := s.Seat(witchID)
	return ok && witch.Role == RoleWitch && saveRefusal(s.Rules, s.Round, witch) == nil
}

func (e *Engine) validateInspect(actor *Seat, d Declaration) error {
	if err := e.requireLivingTarget(actor, d.Target); err != nil {
		return err
	}
	if actor.LastInspectTarget != "" && actor.LastInspectTarget == d.Target {
		for _, s := range e.seats {
			if s.Alive && s.ID != actor.ID && s.ID != d.Target {
				return invalid(KindRepeatInspect, actor.ID, "cannot inspect %q two nights running", d.Target)
			}
		}
	}
	return nil
}

func (e *Engine) requireLivingTarget(actor *Seat, target string) error {
	if target == "" {
		return invalid(KindMissingTarget, actor.ID, "target is required")
	}
	seat, ok := e.index[target]
	if !ok {
		return invalid(KindUnknownSeat, actor.ID, "unknown target %q", target)
	}
	if !seat.Alive {
		return invalid(KindDeadTarget, actor.ID, "target %q is not alive", target)
	}
	return nil
}

func (e *Engine) hasLivingOtherThan(id string) bool {
	for _, s := range e.seats {
		if s.Alive && s.ID != id {
			return true
		}
	}
	return false
}

// ResolveAttackTarget aggregates attacker declarations. Votes for targets
// outside legal are ignored. With no valid vote a legal target is picked
// uniformly at random; otherwise a random leader among the tied maximum.
func ResolveAttackTarget(rng interface{ IntN(int) int }, votes map[string]string, legal []string) string {
	if len(legal) == 0 {
		return ""
	}
	allowed := make(map[string]bool, len(legal))
	for _, id := range legal {
		allowed[id] = true
	}

	count := map[string]int{}
	best := 0
	for _, target := range votes {
		if !allowed[target] {
			continue
		}
		count[target]++
		if count[target] > best {
			best = count[target]
		}
	}
	if best == 0 {
		return legal[rng.IntN(len(legal))]
	}

	// Iterate legal for a stable candidate order.
	var leaders []string
	for _, id := range legal {
		if count[id] == best {
			leaders = append(leaders, id)
		}
	}
	return leaders[rng.IntN(len(leaders))]
}
