package game

// TimeoutAutorun fills every missing mandatory declaration of the current
// phase with a uniformly random legal choice and then advances. It is the
// engine's own fallback when no orchestrator drives the seats.
func (e *Engine) TimeoutAutorun() error {
	if !e.started {
		return invalid(KindNotStarted, "", "game not started")
	}
	switch e.phase {
	case PhaseNightWolf:
		e.autorunWolves()
	case PhaseNightGuard:
		e.autorunGuard()
	case PhaseNightWitch:
		if witch := e.livingWithRole(RoleWitch); witch != nil {
			e.log(EventAutoAction, witch.ID, "", VisibilityPrivate, "skip", map[string]string{"phase": string(PhaseNightWitch)})
		}
	case PhaseNightSeer:
		e.autorunSeer()
	case PhaseDayVote:
		e.autorunDayVote()
	}
	return e.AdvancePhase()
}

func (e *Engine) autorunWolves() {
	targets := e.livingIDs(func(s *Seat) bool { return s.Role != RoleWerewolf })
	if len(targets) == 0 {
		return
	}
	for _, wolf := range e.seats {
		if !wolf.Alive || wolf.Role != RoleWerewolf {
			continue
		}
		if _, voted := e.round.Night.WolfVotes[wolf.ID]; voted {
			continue
		}
		target := Pick(e.rng, targets)
		e.applySkill(wolf, Declaration{Actor: wolf.ID, Target: target})
		e.log(EventAutoAction, wolf.ID, target, VisibilityTeam, "", map[string]string{"phase": string(PhaseNightWolf)})
	}
}

func (e *Engine) autorunGuard() {
	guard := e.livingWithRole(RoleGuard)
	if guard == nil || e.round.Night.GuardTarget != "" {
		return
	}
	candidates := e.livingIDs(func(s *Seat) bool {
		return !e.setup.Rules.GuardNoConsecutive || s.ID != guard.LastGuardTarget
	})
	if len(candidates) == 0 {
		candidates = e.livingIDs(nil)
	}
	target := Pick(e.rng, candidates)
	e.applySkill(guard, Declaration{Actor: guard.ID, Target: target})
	e.log(EventAutoAction, guard.ID, target, VisibilityPrivate, "", map[string]string{"phase": string(PhaseNightGuard)})
}

func (e *Engine) autorunSeer() {
	seer := e.livingWithRole(RoleSeer)
	if seer == nil || e.round.Night.SeerTarget != "" {
		return
	}
	candidates := e.livingIDs(func(s *Seat) bool {
		return s.ID != seer.ID && s.ID != seer.LastInspectTarget
	})
	if len(candidates) == 0 {
		candidates = e.livingIDs(func(s *Seat) bool { return s.ID != seer.ID })
	}
	if len(candidates) == 0 {
		return
	}
	target := Pick(e.rng, candidates)
	e.applySkill(seer, Declaration{Actor: seer.ID, Target: target})
	e.log(EventAutoAction, seer.ID, target, VisibilityPrivate, "", map[string]string{"phase": string(PhaseNightSeer)})
}

func (e *Engine) autorunDayVote() {
	living := e.livingIDs(nil)
	for _, voter := range e.seats {
		if !voter.Alive || !voter.CanVote {
			continue
		}
		if _, voted := e.round.DayVotes[voter.ID]; voted {
			continue
		}
		var candidates []string
		for _, id := range living {
			if id != voter.ID {
				candidates = append(candidates, id)
			}
		}
		target := Pick(e.rng, candidates)
		e.round.DayVotes[voter.ID] = target
		e.voteLog = append(e.voteLog, VoteRecord{
			Round: e.round.Round, Kind: EventVote, Actor: voter.ID, Target: target, Time: e.now().UTC(),
		})
		e.log(EventAutoAction, voter.ID, target, VisibilityPublic, "random_vote", map[string]string{"phase": string(PhaseDayVote)})
	}
}

func (e *Engine) livingWithRole(role Role) *Seat {
	for _, s := range e.seats {
		if s.Alive && s.Role == role {
			return s
		}
	}
	return nil
}
