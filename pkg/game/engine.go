package game

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"
	"strconv"
	"time"
)

// Engine owns the authoritative state of one game and drives its phase
// machine.
//
// # Thread Safety
//
// Engine is not safe for concurrent mutation. Exactly one orchestrator loop
// may call its mutating methods. The audit log it exposes accepts
// concurrent appends.
type Engine struct {
	roomID string
	owner  string

	setup    Setup
	warnings []string

	seats []*Seat
	index map[string]*Seat

	started bool
	over    bool
	winner  Team

	phase       Phase
	nightPhases []Phase
	round       RoundContext

	audit   *AuditLog
	voteLog []VoteRecord

	rng    *rand.Rand
	now    func() time.Time
	logger *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithRand injects the random source used for role assignment, target
// aggregation and autorun choices.
func WithRand(rng *rand.Rand) Option {
	return func(e *Engine) { e.rng = rng }
}

// WithClock overrides the clock used for audit timestamps and deadlines.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// NewEngine creates an engine for a validated setup. Without WithRand the
// random source is seeded from the room id.
func NewEngine(roomID, owner string, setup Setup, opts ...Option) (*Engine, error) {
	warnings, err := setup.Validate()
	if err != nil {
		return nil, err
	}
	if setup.NightActionTimeout <= 0 {
		setup.NightActionTimeout = DefaultNightActionTimeout
	}
	if setup.DayVoteTimeout <= 0 {
		setup.DayVoteTimeout = DefaultDayVoteTimeout
	}

	e := &Engine{
		roomID:      roomID,
		owner:       owner,
		setup:       setup,
		warnings:    warnings,
		index:       make(map[string]*Seat),
		phase:       PhasePrepare,
		nightPhases: setup.NightPhases(),
		round:       newRoundContext(1),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.rng == nil {
		e.rng = NewRand(roomID, 0, "engine")
	}
	if e.logger == nil {
		e.logger = slog.Default().With("component", "game.engine", "room", roomID)
	}
	e.audit = NewAuditLog(func() time.Time { return e.now() })
	return e, nil
}

// RoomID returns the room identity.
func (e *Engine) RoomID() string { return e.roomID }

// Owner returns the seat allowed to start the game.
func (e *Engine) Owner() string { return e.owner }

// Phase returns the current phase.
func (e *Engine) Phase() Phase { return e.phase }

// Round returns the current round number.
func (e *Engine) Round() int { return e.round.Round }

// Started reports whether Start succeeded.
func (e *Engine) Started() bool { return e.started }

// Over reports whether a team has won.
func (e *Engine) Over() bool { return e.over }

// Winner returns the winning team, or TeamNone.
func (e *Engine) Winner() Team { return e.winner }

// Warnings returns setup warnings produced by validation.
func (e *Engine) Warnings() []string { return slices.Clone(e.warnings) }

// NightPhases returns the ordered night sub-phases for this game.
func (e *Engine) NightPhases() []Phase { return slices.Clone(e.nightPhases) }

// Rules returns the active rule flags.
func (e *Engine) Rules() RuleFlags { return e.setup.Rules }

// Setup returns the table configuration.
func (e *Engine) Setup() Setup { return e.setup }

// Audit returns the append-only audit log.
func (e *Engine) Audit() *AuditLog { return e.audit }

// Deadline returns the deadline of the current timed phase, or zero.
func (e *Engine) Deadline() time.Time { return e.round.DeadlineAt }

// AddSeat adds a participant before the game starts.
func (e *Engine) AddSeat(id, name string) error {
	if e.started {
		return invalid(KindAlreadyStarted, id, "game already started")
	}
	if _, exists := e.index[id]; exists {
		return invalid(KindDuplicateSeat, id, "seat already in room")
	}
	if len(e.seats) >= e.setup.PlayerCount {
		return invalid(KindRoomFull, id, "room is full (%d seats)", e.setup.PlayerCount)
	}
	seat := &Seat{ID: id, Name: name, Alive: true, Online: true, CanVote: true}
	e.seats = append(e.seats, seat)
	e.index[id] = seat
	return nil
}

// MarkOnline records backend availability for a seat. Going offline also
// marks the seat as entrusted to fallback control.
func (e *Engine) MarkOnline(id string, online bool) error {
	seat, ok := e.index[id]
	if !ok {
		return invalid(KindUnknownSeat, id, "unknown seat")
	}
	seat.Online = online
	if !online {
		seat.Entrusted = true
	}
	return nil
}

// SetEntrusted sets whether a seat is driven by fallback.
func (e *Engine) SetEntrusted(id string, entrusted bool) error {
	seat, ok := e.index[id]
	if !ok {
		return invalid(KindUnknownSeat, id, "unknown seat")
	}
	seat.Entrusted = entrusted
	return nil
}

// Start assigns roles and enters the first phase.
func (e *Engine) Start(requester string) error {
	if requester != e.owner {
		return invalid(KindNotOwner, requester, "only the owner can start the game")
	}
	if e.started {
		return invalid(KindAlreadyStarted, requester, "game already started")
	}
	if len(e.seats) != e.setup.PlayerCount {
		return invalid(KindSeatCount, requester, "exactly %d seats required, have %d", e.setup.PlayerCount, len(e.seats))
	}

	pool := e.setup.RolePool()
	e.rng.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	for i, seat := range e.seats {
		seat.Role = pool[i]
	}

	e.started = true
	e.logger.Info("game started",
		"seats", len(e.seats),
		"night_phases", e.nightPhases,
		"warnings", e.warnings,
	)
	e.gotoPhase(e.firstPhase())
	return nil
}

func (e *Engine) firstPhase() Phase {
	if len(e.nightPhases) > 0 {
		return e.nightPhases[0]
	}
	return PhaseDayAnnounce
}

// SubmitNightAction records one seat's night declaration. For the witch,
// save requests the antidote on the attack target and target names the
// poison victim (empty for none).
func (e *Engine) SubmitNightAction(actorID, target string, save bool) error {
	actor, err := e.activeActor(actorID)
	if err != nil {
		return err
	}
	phase, ok := actor.Role.NightPhase()
	if !ok {
		return invalid(KindWrongRole, actorID, "role %s has no night action", actor.Role)
	}
	if phase != e.phase {
		return invalid(KindWrongPhase, actorID, "%s acts in %s, current phase is %s", actor.Role, phase, e.phase)
	}

	d := Declaration{Actor: actorID, Target: target, Save: save}
	if err := e.validateSkill(actor, d); err != nil {
		return err
	}
	e.applySkill(actor, d)

	vis := VisibilityPrivate
	if actor.Role == RoleWerewolf {
		vis = VisibilityTeam
	}
	fields := map[string]string{"role": string(actor.Role)}
	if actor.Role == RoleWitch {
		fields["save"] = strconv.FormatBool(save)
	}
	e.log(EventNightAction, actorID, target, vis, "", fields)
	return nil
}

// SubmitVote records a day vote. An empty target is an abstention.
func (e *Engine) SubmitVote(voterID, target string) error {
	if e.phase != PhaseDayVote {
		return invalid(KindWrongPhase, voterID, "votes are only accepted in %s", PhaseDayVote)
	}
	voter, err := e.activeActor(voterID)
	if err != nil {
		return err
	}
	if !voter.CanVote {
		return invalid(KindCannotVote, voterID, "seat has no voting rights")
	}
	if target != "" {
		if err := e.requireLivingTarget(voter, target); err != nil {
			return err
		}
	}

	e.round.DayVotes[voterID] = target
	e.voteLog = append(e.voteLog, VoteRecord{
		Round: e.round.Round, Kind: EventVote, Actor: voterID, Target: target, Time: e.now().UTC(),
	})
	e.log(EventVote, voterID, target, VisibilityPublic, "", nil)
	return nil
}

// SubmitRetaliationShot lets a dead hunter with retaliation enabled take
// another seat down immediately.
func (e *Engine) SubmitRetaliationShot(actorID, target string) error {
	if !e.started {
		return invalid(KindNotStarted, actorID, "game not started")
	}
	if e.over {
		return invalid(KindGameOver, actorID, "game is over")
	}
	actor, ok := e.index[actorID]
	if !ok {
		return invalid(KindUnknownSeat, actorID, "unknown seat")
	}
	if actor.Role != RoleHunter {
		return invalid(KindWrongRole, actorID, "only the hunter can retaliate")
	}
	if !actor.RetaliationEnabled {
		return invalid(KindNoRetaliation, actorID, "retaliation is not available")
	}
	if err := e.requireLivingTarget(actor, target); err != nil {
		return err
	}

	actor.RetaliationEnabled = false
	e.log(EventRetaliation, actorID, target, VisibilityPublic, "", nil)
	e.kill(target, CauseHunter)
	e.checkWinner()
	return nil
}

// DeclineRetaliation drops a pending retaliation without a shot.
func (e *Engine) DeclineRetaliation(actorID string) {
	if actor, ok := e.index[actorID]; ok && actor.RetaliationEnabled {
		actor.RetaliationEnabled = false
		e.log(EventRetaliation, actorID, "", VisibilityPublic, "declined", nil)
	}
}

// PendingRetaliation returns the dead hunter whose shot is outstanding.
func (e *Engine) PendingRetaliation() (string, bool) {
	if e.over {
		return "", false
	}
	for _, s := range e.seats {
		if s.Role == RoleHunter && !s.Alive && s.RetaliationEnabled {
			return s.ID, true
		}
	}
	return "", false
}

// AdvancePhase runs the resolution attached to the current phase and moves
// to the next one.
func (e *Engine) AdvancePhase() error {
	if !e.started {
		return invalid(KindNotStarted, "", "game not started")
	}
	if e.over {
		e.phase = PhaseGameOver
		return nil
	}

	switch e.phase {
	case PhaseNightWolf, PhaseNightGuard, PhaseNightWitch, PhaseNightSeer:
		e.resolveNightSubphase(e.phase)
	case PhaseDayAnnounce:
		e.gotoPhase(PhaseDayDiscuss)
	case PhaseDayDiscuss:
		e.gotoPhase(PhaseDayVote)
	case PhaseDayVote:
		e.resolveDayVote()
		if e.checkWinner() {
			return nil
		}
		e.nextRound()
		e.gotoPhase(e.firstPhase())
	default:
		return invalid(KindWrongPhase, "", "cannot advance from %s", e.phase)
	}
	return nil
}

func (e *Engine) resolveNightSubphase(phase Phase) {
	switch phase {
	case PhaseNightWolf:
		e.round.WolfTarget = ResolveAttackTarget(e.rng, e.round.Night.WolfVotes, e.livingIDs(func(s *Seat) bool {
			return s.Role != RoleWerewolf
		}))
		if e.round.WolfTarget != "" {
			e.log(EventNightAction, "system", e.round.WolfTarget, VisibilityTeam, "attack target resolved", nil)
		}
	case PhaseNightGuard:
		clear(e.round.Protected)
		if t := e.round.Night.GuardTarget; t != "" {
			e.round.Protected[t] = true
		} else {
			// A night without protection frees last night's seat.
			for _, s := range e.seats {
				if s.Role == RoleGuard && s.Alive {
					s.LastGuardTarget = ""
				}
			}
		}
	}

	idx := slices.Index(e.nightPhases, phase)
	if idx >= 0 && idx+1 < len(e.nightPhases) {
		e.gotoPhase(e.nightPhases[idx+1])
		return
	}

	e.resolveNightDeaths()
	e.gotoPhase(PhaseDayAnnounce)
	e.checkWinner()
}

func (e *Engine) resolveNightDeaths() {
	type death struct {
		id    string
		cause DeathCause
	}
	var deaths []death
	if t := e.round.WolfTarget; t != "" && !e.round.Protected[t] && !e.round.Night.WitchSave {
		deaths = append(deaths, death{t, CauseWolf})
	}
	if t := e.round.Night.WitchPoison; t != "" {
		// Poison overrides an attack on the same seat.
		if len(deaths) == 1 && deaths[0].id == t {
			deaths[0].cause = CausePoison
		} else {
			deaths = append(deaths, death{t, CausePoison})
		}
	}

	for _, d := range deaths {
		if e.kill(d.id, d.cause) {
			e.armRetaliation(d.id, d.cause)
		}
	}
}

func (e *Engine) resolveDayVote() {
	counts := map[string]int{}
	best := 0
	for _, s := range e.seats {
		if !s.Alive || !s.CanVote {
			continue
		}
		target, ok := e.round.DayVotes[s.ID]
		if !ok || target == "" {
			continue
		}
		if t, ok := e.index[target]; !ok || !t.Alive {
			continue
		}
		counts[target]++
		if counts[target] > best {
			best = counts[target]
		}
	}

	if best == 0 {
		e.logVoteResult("no_votes", "")
		return
	}

	var tied []string
	for _, s := range e.seats {
		if counts[s.ID] == best {
			tied = append(tied, s.ID)
		}
	}
	if len(tied) > 1 && e.setup.Rules.VoteTieNoExile {
		e.logVoteResult("tie_no_exile", "")
		return
	}

	exiled := e.index[Pick(e.rng, tied)]
	if exiled.Role == RoleFool && !exiled.RevealUsed && e.setup.Rules.FoolRevealImmuneOnce {
		exiled.RevealUsed = true
		exiled.CanVote = false
		e.log(EventFoolReveal, exiled.ID, "", VisibilityPublic, "revealed as fool, survives and loses voting rights", nil)
		e.logVoteResult("fool_revealed", exiled.ID)
		return
	}

	e.logVoteResult("exile", exiled.ID)
	if e.kill(exiled.ID, CauseVote) {
		e.armRetaliation(exiled.ID, CauseVote)
	}
}

func (e *Engine) logVoteResult(result, target string) {
	e.voteLog = append(e.voteLog, VoteRecord{
		Round: e.round.Round, Kind: EventVoteResult, Actor: "system", Target: target, Time: e.now().UTC(),
	})
	e.log(EventVoteResult, "system", target, VisibilityPublic, result, map[string]string{"result": result})
}

func (e *Engine) armRetaliation(id string, cause DeathCause) {
	seat := e.index[id]
	if seat.Role != RoleHunter {
		return
	}
	switch cause {
	case CausePoison:
		if e.setup.Rules.HunterNoShotWhenPoisoned {
			seat.RetaliationEnabled = false
		} else {
			seat.RetaliationEnabled = true
		}
	case CauseWolf, CauseVote:
		seat.RetaliationEnabled = true
	}
}

// kill marks a seat dead. It reports false when the seat was already dead.
func (e *Engine) kill(id string, cause DeathCause) bool {
	seat, ok := e.index[id]
	if !ok || !seat.Alive {
		return false
	}
	seat.Alive = false
	seat.DeathCause = cause
	e.round.Deaths[id] = cause
	e.log(EventDeath, "system", id, VisibilityPublic, fmt.Sprintf("%s died (%s)", seat.DisplayName(), cause),
		map[string]string{"cause": string(cause)})
	e.logger.Info("seat died", "seat", id, "cause", cause, "round", e.round.Round)
	return true
}

// checkWinner evaluates the win condition and finalizes the game when a
// team has won.
func (e *Engine) checkWinner() bool {
	if e.over {
		return true
	}
	winner := evaluateWinner(e.seats)
	if winner == TeamNone {
		return false
	}
	e.over = true
	e.winner = winner
	e.phase = PhaseGameOver
	e.round.Phase = PhaseGameOver
	e.round.DeadlineAt = time.Time{}
	e.log(EventGameOver, "system", "", VisibilityPublic, fmt.Sprintf("%s team wins", winner), map[string]string{"winner": string(winner)})
	e.logger.Info("game over", "winner", winner, "round", e.round.Round)
	return true
}

func evaluateWinner(seats []*Seat) Team {
	wolves, others := 0, 0
	for _, s := range seats {
		if !s.Alive {
			continue
		}
		if s.Role.Team() == TeamWolf {
			wolves++
		} else {
			others++
		}
	}
	switch {
	case wolves == 0:
		return TeamGood
	case wolves >= others:
		return TeamWolf
	}
	return TeamNone
}

func (e *Engine) nextRound() {
	e.round = newRoundContext(e.round.Round + 1)
}

func (e *Engine) gotoPhase(phase Phase) {
	e.phase = phase
	e.round.Phase = phase

	switch {
	case phase == PhaseDayVote:
		e.round.DeadlineAt = e.now().Add(e.setup.DayVoteTimeout)
	case phase.IsNight():
		e.round.DeadlineAt = e.now().Add(e.setup.NightActionTimeout)
	default:
		e.round.DeadlineAt = time.Time{}
	}

	switch phase {
	case PhaseNightWolf:
		clear(e.round.Night.WolfVotes)
	case PhaseDayVote:
		clear(e.round.DayVotes)
	}

	e.log(EventPhaseChange, "system", "", VisibilityPublic, string(phase), nil)
	e.logger.Debug("phase change", "phase", phase, "round", e.round.Round)
}

func (e *Engine) activeActor(id string) (*Seat, error) {
	if !e.started {
		return nil, invalid(KindNotStarted, id, "game not started")
	}
	if e.over {
		return nil, invalid(KindGameOver, id, "game is over")
	}
	actor, ok := e.index[id]
	if !ok {
		return nil, invalid(KindUnknownSeat, id, "unknown seat")
	}
	if !actor.Alive {
		return nil, invalid(KindDeadActor, id, "dead seats cannot act")
	}
	return actor, nil
}

func (e *Engine) livingIDs(keep func(*Seat) bool) []string {
	var ids []string
	for _, s := range e.seats {
		if s.Alive && (keep == nil || keep(s)) {
			ids = append(ids, s.ID)
		}
	}
	return ids
}

func (e *Engine) log(kind EventKind, actor, target string, vis Visibility, text string, fields map[string]string) {
	e.audit.Append(AuditEntry{
		Round:      e.round.Round,
		Phase:      e.phase,
		Kind:       kind,
		Actor:      actor,
		Target:     target,
		Text:       text,
		Visibility: vis,
		Fields:     fields,
	})
}

// Record appends an externally produced entry (narration, speech) to the
// audit log. It only touches the log, so it may be called from concurrent
// dispatch goroutines.
func (e *Engine) Record(entry AuditEntry) AuditEntry {
	return e.audit.Append(entry)
}

// Snapshot returns a deep copy of the current state.
func (e *Engine) Snapshot() Snapshot {
	seats := make([]Seat, len(e.seats))
	for i, s := range e.seats {
		seats[i] = *s
		seats[i].Inspections = slices.Clone(s.Inspections)
	}
	return Snapshot{
		RoomID:      e.roomID,
		Owner:       e.owner,
		Started:     e.started,
		Over:        e.over,
		Winner:      e.winner,
		Seats:       seats,
		Phase:       e.phase,
		NightPhases: slices.Clone(e.nightPhases),
		Round:       e.round.clone(),
		Rules:       e.setup.Rules,
		Audit:       e.audit.Entries(),
		VoteLog:     slices.Clone(e.voteLog),
	}
}
