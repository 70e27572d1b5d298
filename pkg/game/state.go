package game

// RecentEventsWindow bounds the number of public events in PublicState.
const RecentEventsWindow = 50

// PublicSeat is the spectator-safe projection of a seat.
type PublicSeat struct {
	ID         string `json:"player_id"`
	Name       string `json:"nickname"`
	Alive      bool   `json:"alive"`
	Online     bool   `json:"online"`
	CanVote    bool   `json:"can_vote"`
	RevealUsed bool   `json:"reveal_used"`
	Role       Role   `json:"role,omitempty"`
}

// PublicEvent is one public audit entry, stripped of private fields.
type PublicEvent struct {
	Seq    int       `json:"seq"`
	Round  int       `json:"round"`
	Phase  Phase     `json:"phase"`
	Kind   EventKind `json:"event_type"`
	Actor  string    `json:"actor_id"`
	Target string    `json:"target_id,omitempty"`
	Text   string    `json:"content,omitempty"`
}

// PublicState is the export suitable for spectators. It never contains
// seat-private information; roles appear only after the game is over.
type PublicState struct {
	RoomID       string                `json:"room_id"`
	Owner        string                `json:"owner_id"`
	Started      bool                  `json:"started"`
	Over         bool                  `json:"game_over"`
	Phase        Phase                 `json:"phase"`
	Round        int                   `json:"round_no"`
	Winner       Team                  `json:"winner,omitempty"`
	NightPhases  []Phase               `json:"night_phases"`
	Seats        []PublicSeat          `json:"players"`
	Deaths       map[string]DeathCause `json:"deaths_this_round"`
	PeaceNight   bool                  `json:"is_peace_night"`
	RecentEvents []PublicEvent         `json:"recent_events"`
	Warnings     []string              `json:"warnings,omitempty"`
}

// PublicState exports the spectator view of the game.
func (e *Engine) PublicState() PublicState {
	snap := e.Snapshot()

	seats := make([]PublicSeat, len(snap.Seats))
	for i, s := range snap.Seats {
		seats[i] = PublicSeat{
			ID: s.ID, Name: s.Name, Alive: s.Alive, Online: s.Online,
			CanVote: s.CanVote, RevealUsed: s.RevealUsed,
		}
		if snap.Over {
			seats[i].Role = s.Role
		}
	}

	var events []PublicEvent
	for _, entry := range snap.Audit {
		if entry.Visibility != VisibilityPublic || (entry.Kind == EventNarration && entry.Phase.IsNight()) {
			continue
		}
		events = append(events, PublicEvent{
			Seq: entry.Seq, Round: entry.Round, Phase: entry.Phase, Kind: entry.Kind,
			Actor: entry.Actor, Target: entry.Target, Text: entry.Text,
		})
	}
	if len(events) > RecentEventsWindow {
		events = events[len(events)-RecentEventsWindow:]
	}

	return PublicState{
		RoomID:       snap.RoomID,
		Owner:        snap.Owner,
		Started:      snap.Started,
		Over:         snap.Over,
		Phase:        snap.Phase,
		Round:        snap.Round.Round,
		Winner:       snap.Winner,
		NightPhases:  snap.NightPhases,
		Seats:        seats,
		Deaths:       snap.Round.Deaths,
		PeaceNight:   snap.Phase.IsDay() && len(snap.Round.Deaths) == 0,
		RecentEvents: events,
		Warnings:     e.Warnings(),
	}
}
