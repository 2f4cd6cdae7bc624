// Package room implements the per-match state machine: seating,
// readiness, the playing/finished/rematch lifecycle, and the analysis
// branch mode. A Room is the single authoritative owner of one match's
// board, hands, history, and clock; every mutating method takes the
// Room's own mutex as its single-writer-per-room serializer, a plain
// mutex-guarded struct rather than a channel actor.
package room

import (
	"math/rand"
	"sync"
	"time"

	"shogi-server/internal/clock"
	"shogi-server/internal/shogi"
	"shogi-server/internal/terminal"
)

// Status is one of the four Room lifecycle states.
type Status string

const (
	StatusWaiting  Status = "waiting"
	StatusPlaying  Status = "playing"
	StatusFinished Status = "finished"
	StatusAnalysis Status = "analysis"
)

// Settings are the per-room configurable game parameters.
type Settings struct {
	InitialSeconds int  `json:"initialSeconds"`
	ByoyomiSeconds int  `json:"byoyomiSeconds"`
	RandomTurn     bool `json:"randomTurn"`
	FixTurn        bool `json:"fixTurn"`
}

// Event is one authoritative outbound message a Room mutation produces.
// Callers (the Session Router, through Manager) fan these out in order;
// the order returned here must be preserved exactly.
type Event struct {
	Name    string
	Payload any
}

// numSeats lets Players/UserIDs/PlayerNames/Ready/etc. be
// indexed directly by shogi.Side, since Shogi has exactly the two seats,
// sente and gote.
const numSeats = 2

// Room is the authoritative state for one match. The exported mutating
// methods lock mu. Fields are exported so the Room round-trips through
// encoding/json; the Persistence Adapter reads them from inside
// Manager.dispatch, with the lock held.
type Room struct {
	mu sync.Mutex

	ID     string `json:"id"`
	Status Status `json:"status"`

	Board        *shogi.Board         `json:"board"`
	Hands        *shogi.Hands         `json:"hands"`
	History      []shogi.HistoryEntry `json:"history"`
	Fingerprints []string             `json:"fingerprints"`
	SfenHistory  map[string]int       `json:"sfenHistory"`

	Players     [numSeats]string `json:"players"` // seat -> session id, transport-assigned
	UserIDs     [numSeats]string `json:"userIds"` // seat -> opaque user id, sticky across reconnects
	PlayerNames [numSeats]string `json:"playerNames"`

	Ready           [numSeats]bool `json:"ready"`
	RematchRequests [numSeats]bool `json:"rematchRequests"`

	Settings Settings `json:"settings"`

	Times              [numSeats]int   `json:"times"`
	CurrentByoyomi     [numSeats]int   `json:"currentByoyomi"`
	TotalConsumedTimes [numSeats]int64 `json:"totalConsumedTimes"`

	LastMoveTimestamp time.Time   `json:"lastMoveTimestamp"`
	GameStartTime     time.Time   `json:"gameStartTime"`
	GameCount         int         `json:"gameCount"`
	Winner            *shogi.Side `json:"winner"`

	// UpdatedAt is the wall-clock time of this Room's last persisted
	// snapshot, stamped by Manager.dispatch just before every Save. GC
	// ages rooms out by this field rather than by in-memory activity, so
	// a room's idle clock survives a restart exactly as the snapshot
	// recorded it.
	UpdatedAt time.Time `json:"updatedAt"`

	// analysisBase is the history length the current analysis branch was
	// forked from; zero value is meaningless outside StatusAnalysis.
	analysisBase int

	// onlineSeats tracks, per seat, whether a live session currently
	// occupies it, maintained by Join and SetSeatOnline and consulted for the
	// disconnect-pause / reconnect-resume clock rule. Spectators are not
	// tracked here.
	onlineSeats [numSeats]bool

	clock *clock.Clock // runtime-only; rebuilt by AttachClock after load
}

// New constructs a fresh Room in status=waiting with the given settings
// and identifier. The clock is not attached; until AttachClock is called,
// a game can start and be played but no time is kept.
func New(id string, settings Settings) *Room {
	r := &Room{
		ID:       id,
		Status:   StatusWaiting,
		Board:    shogi.NewInitialBoard(),
		Hands:    shogi.NewHands(),
		Settings: settings,
	}
	r.resetFingerprints()
	r.Times = [numSeats]int{settings.InitialSeconds, settings.InitialSeconds}
	r.CurrentByoyomi = [numSeats]int{settings.ByoyomiSeconds, settings.ByoyomiSeconds}
	return r
}

func (r *Room) resetFingerprints() {
	fp := shogi.Fingerprint(r.Board, shogi.Sente, r.Hands)
	r.Fingerprints = []string{fp}
	r.SfenHistory = map[string]int{fp: 1}
}

// AttachClock wires a Clock to this Room after construction or reload.
// The Clock's sink is the owning Manager's adapter, which runs the
// Room's onTickLocked/onTimeoutLocked under the Room's lock and then
// adds persistence and broadcast around the callback.
func (r *Room) AttachClock(c *clock.Clock) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clock = c
}

// Lock/Unlock expose the Room's mutex to Manager so that persistence and
// broadcast for a mutation can happen inside the same serialized section
// as the mutation itself: the broadcast fan-out and the persistence write
// both happen before the room's lock is released.
func (r *Room) Lock()   { r.mu.Lock() }
func (r *Room) Unlock() { r.mu.Unlock() }

// seatFor applies the seating rule: sticky by userId, else first empty
// seat preferring Sente, else spectator (ok=false).
func (r *Room) seatFor(userID string) (shogi.Side, bool) {
	if r.UserIDs[shogi.Sente] == userID {
		return shogi.Sente, true
	}
	if r.UserIDs[shogi.Gote] == userID {
		return shogi.Gote, true
	}
	if r.UserIDs[shogi.Sente] == "" {
		return shogi.Sente, true
	}
	if r.UserIDs[shogi.Gote] == "" {
		return shogi.Gote, true
	}
	return 0, false
}

// Join seats or spectates userID under sessionID. seated is false for a
// spectator. events is the broadcast fan-out (presence, name update);
// the personalized full sync the joiner itself receives is built by the
// caller via Sync, since it is a unicast, not part of this mutation's
// broadcast set.
func (r *Room) Join(sessionID, userID, userName string) (seat shogi.Side, seated bool, events []Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.joinLocked(sessionID, userID, userName)
}

func (r *Room) joinLocked(sessionID, userID, userName string) (seat shogi.Side, seated bool, events []Event) {
	seat, seated = r.seatFor(userID)
	if seated {
		r.UserIDs[seat] = userID
		r.Players[seat] = sessionID
		r.PlayerNames[seat] = userName
		r.onlineSeats[seat] = true
		// A seated player rejoining mid-game resumes a paused clock once
		// both seats are online again.
		if r.Status == StatusPlaying && r.clock != nil && r.onlineSeats[shogi.Sente] && r.onlineSeats[shogi.Gote] {
			if _, running := r.clock.Running(); !running {
				r.clock.Start(r.sideToMoveLocked())
			}
		}
		events = append(events, Event{Name: "player_names_updated", Payload: r.PlayerNames})
		events = append(events, Event{Name: "connection_status_update", Payload: r.connectionStatusLocked()})
	}
	return seat, seated, events
}

func (r *Room) connectionStatusLocked() map[string]bool {
	return map[string]bool{
		"sente": r.onlineSeats[shogi.Sente],
		"gote":  r.onlineSeats[shogi.Gote],
	}
}

// UpdateSettings applies new settings, only while waiting.
func (r *Room) UpdateSettings(settings Settings) (events []Event, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.updateSettingsLocked(settings)
}

func (r *Room) updateSettingsLocked(settings Settings) (events []Event, ok bool) {
	if r.Status != StatusWaiting {
		return nil, false
	}
	r.Settings = settings
	return []Event{{Name: "settings_updated", Payload: r.Settings}}, true
}

// ToggleReady flips seat's ready flag; if both seats are now ready, the
// game starts (waiting -> playing).
func (r *Room) ToggleReady(seat shogi.Side) (events []Event, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.toggleReadyLocked(seat)
}

func (r *Room) toggleReadyLocked(seat shogi.Side) (events []Event, ok bool) {
	if r.Status != StatusWaiting {
		return nil, false
	}
	r.Ready[seat] = !r.Ready[seat]
	events = append(events, Event{Name: "ready_status", Payload: r.Ready})

	if r.Ready[shogi.Sente] && r.Ready[shogi.Gote] {
		events = append(events, r.startGameLocked()...)
	}
	return events, true
}

// startGameLocked performs the waiting -> playing transition: optional
// seat swap, board/hands/history/fingerprint reset, clock initialization,
// and Clock.start. Must be called with mu held.
func (r *Room) startGameLocked() []Event {
	if r.Settings.RandomTurn && !(r.GameCount > 0 && r.Settings.FixTurn) {
		if rand.Intn(2) == 0 {
			r.swapSeatsLocked()
		}
	}

	r.Board = shogi.NewInitialBoard()
	r.Hands = shogi.NewHands()
	r.History = nil
	r.resetFingerprints()
	r.Times = [numSeats]int{r.Settings.InitialSeconds, r.Settings.InitialSeconds}
	r.CurrentByoyomi = [numSeats]int{r.Settings.ByoyomiSeconds, r.Settings.ByoyomiSeconds}
	r.TotalConsumedTimes = [numSeats]int64{}
	r.GameCount++
	r.GameStartTime = time.Now()
	r.LastMoveTimestamp = r.GameStartTime
	r.Winner = nil
	r.Ready = [numSeats]bool{}
	r.RematchRequests = [numSeats]bool{}
	r.Status = StatusPlaying

	if r.clock != nil {
		r.clock.Reset(r.Settings.InitialSeconds, r.Settings.ByoyomiSeconds)
		r.clock.Start(shogi.Sente)
	}

	events := []Event{
		{Name: "player_names_updated", Payload: r.PlayerNames},
		{Name: "game_started", Payload: map[string]any{"gameCount": r.GameCount}},
	}
	return events
}

func (r *Room) swapSeatsLocked() {
	r.Players[shogi.Sente], r.Players[shogi.Gote] = r.Players[shogi.Gote], r.Players[shogi.Sente]
	r.UserIDs[shogi.Sente], r.UserIDs[shogi.Gote] = r.UserIDs[shogi.Gote], r.UserIDs[shogi.Sente]
	r.PlayerNames[shogi.Sente], r.PlayerNames[shogi.Gote] = r.PlayerNames[shogi.Gote], r.PlayerNames[shogi.Sente]
	r.onlineSeats[shogi.Sente], r.onlineSeats[shogi.Gote] = r.onlineSeats[shogi.Gote], r.onlineSeats[shogi.Sente]
}

// sideToMoveLocked is whoever's turn it is, derived from history length:
// Sente moves on even ply counts, Gote on odd. Must be called with mu
// held.
func (r *Room) sideToMoveLocked() shogi.Side {
	return shogi.SideToMove(len(r.History))
}

// Move validates and applies move as played by the side to move, only
// while playing (or while in analysis, with an optional branchIndex).
// On success while playing it returns the "move" event, any terminal
// "game_finished" event, and true; in analysis it returns a "sync"
// event. An illegal or out-of-state move is silently ignored: ok is false
// and the Room is unchanged.
func (r *Room) Move(sessionID string, move shogi.Move, branchIndex *int) (events []Event, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.moveLocked(sessionID, move, branchIndex)
}

func (r *Room) moveLocked(sessionID string, move shogi.Move, branchIndex *int) (events []Event, ok bool) {
	switch r.Status {
	case StatusPlaying:
		return r.movePlayingLocked(sessionID, move)
	case StatusAnalysis:
		return r.moveAnalysisLocked(move, branchIndex)
	default:
		return nil, false
	}
}

func (r *Room) movePlayingLocked(sessionID string, move shogi.Move) ([]Event, bool) {
	side := r.sideToMoveLocked()
	if r.Players[side] != sessionID {
		return nil, false
	}
	if !shogi.IsLegal(r.Board, r.Hands, side, move, true) {
		return nil, false
	}

	if r.clock != nil {
		r.clock.Stop(true)
		times, byoyomi, consumed := r.clock.Snapshot()
		r.Times, r.CurrentByoyomi, r.TotalConsumedTimes = times, byoyomi, consumed
	}

	elapsedNow := int(time.Since(r.LastMoveTimestamp) / time.Second)

	newBoard, newHands, err := shogi.Apply(r.Board, r.Hands, side, move)
	if err != nil {
		return nil, false
	}
	r.Board, r.Hands = newBoard, newHands

	isCheck := shogi.IsKingInCheck(r.Board, side.Opponent())
	entry := shogi.HistoryEntry{
		Move:    move,
		IsCheck: isCheck,
		Time:    shogi.TimeAnnotation{Now: elapsedNow, Total: int(r.TotalConsumedTimes[side] / 1000)},
	}
	r.History = append(r.History, entry)

	r.CurrentByoyomi[side] = r.Settings.ByoyomiSeconds
	if r.clock != nil {
		r.clock.RefreshByoyomi(side)
	}

	fp := shogi.Fingerprint(r.Board, side.Opponent(), r.Hands)
	r.Fingerprints = append(r.Fingerprints, fp)
	r.SfenHistory[fp]++

	r.LastMoveTimestamp = time.Now()

	events := []Event{{Name: "move", Payload: moveEventPayload(move, entry)}}

	outcome := terminal.AfterMove(r.Board, r.Hands, side, r.Fingerprints, r.History)
	if outcome.Terminal {
		events = append(events, r.finishLocked(outcome.Reason, outcome.Winner)...)
		return events, true
	}

	if r.clock != nil {
		r.clock.Start(side.Opponent())
	}
	return events, true
}

// moveAnalysisLocked is the free-move branch mode: an optional
// branchIndex truncates history to that prefix before replay,
// then the new move is appended. Analysis moves are not validated
// against isLegal's self-check/uchi-fu-zume rules beyond basic shape,
// since analysis is explicitly non-authoritative.
func (r *Room) moveAnalysisLocked(move shogi.Move, branchIndex *int) ([]Event, bool) {
	if branchIndex != nil {
		if *branchIndex < 0 || *branchIndex > len(r.History) {
			return nil, false
		}
		r.History = r.History[:*branchIndex]
	}

	board, hands, err := shogi.Replay(historyMoves(r.History))
	if err != nil {
		return nil, false
	}
	side := shogi.SideToMove(len(r.History))
	newBoard, newHands, err := shogi.Apply(board, hands, side, move)
	if err != nil {
		return nil, false
	}

	entry := shogi.HistoryEntry{Move: move, IsCheck: shogi.IsKingInCheck(newBoard, side.Opponent())}
	r.History = append(r.History, entry)
	r.Board, r.Hands = newBoard, newHands

	return []Event{{Name: "sync", Payload: r.syncLocked("")}}, true
}

func historyMoves(history []shogi.HistoryEntry) []shogi.Move {
	moves := make([]shogi.Move, len(history))
	for i, h := range history {
		moves[i] = h.Move
	}
	return moves
}

func moveEventPayload(move shogi.Move, entry shogi.HistoryEntry) map[string]any {
	return map[string]any{
		"move":    shogi.EncodeMove(move),
		"isCheck": entry.IsCheck,
		"time":    entry.Time,
	}
}

// finishLocked transitions to finished with the given reason/winner and
// stops the clock. Must be called with mu held.
func (r *Room) finishLocked(reason terminal.Reason, winner *shogi.Side) []Event {
	if r.clock != nil {
		r.clock.Stop(false)
	}
	r.Status = StatusFinished
	r.Winner = winner
	return []Event{{Name: "game_finished", Payload: map[string]any{"winner": winnerPayload(winner), "reason": reason}}}
}

func winnerPayload(winner *shogi.Side) string {
	if winner == nil {
		return "none"
	}
	return winner.String()
}

// Resign transitions to finished in favor of the seat opposite loser.
func (r *Room) Resign(loser shogi.Side) (events []Event, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resignLocked(loser)
}

func (r *Room) resignLocked(loser shogi.Side) (events []Event, ok bool) {
	if r.Status != StatusPlaying {
		return nil, false
	}
	winner := loser.Opponent()
	return r.finishLocked(terminal.ReasonResign, &winner), true
}

// OnTick handles one live-countdown tick (the Manager's clock sink calls
// its locked core); it simply rebuilds the broadcast time_update
// payload; committed state is not touched (the Clock only commits on
// Stop).
func (r *Room) OnTick(side shogi.Side, remainingMain, remainingByoyomi int) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.onTickLocked(side, remainingMain, remainingByoyomi)
}

func (r *Room) onTickLocked(side shogi.Side, remainingMain, remainingByoyomi int) []Event {
	times := r.Times
	byoyomi := r.CurrentByoyomi
	times[side] = remainingMain
	byoyomi[side] = remainingByoyomi
	return []Event{{Name: "time_update", Payload: map[string]any{"times": times, "currentByoyomi": byoyomi}}}
}

// OnTimeout handles the losing side running out of byoyomi (the
// Manager's clock sink calls its locked core); it finishes the game with
// reason=timeout.
func (r *Room) OnTimeout(side shogi.Side) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.onTimeoutLocked(side)
}

func (r *Room) onTimeoutLocked(side shogi.Side) []Event {
	if r.Status != StatusPlaying {
		return nil
	}
	// A tick can decide side has timed out, then lose the race for r.mu to
	// a move that side just played in time; sideToMoveLocked will already
	// have advanced to the opponent by the time this callback runs, so the
	// timeout is stale and must not finish the game it no longer applies to.
	if r.sideToMoveLocked() != side {
		return nil
	}
	winner := side.Opponent()
	return r.finishLocked(terminal.ReasonTimeout, &winner)
}

// Undo pops one move, only while not playing.
func (r *Room) Undo() (events []Event, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.undoLocked()
}

func (r *Room) undoLocked() (events []Event, ok bool) {
	if r.Status == StatusPlaying || len(r.History) == 0 {
		return nil, false
	}

	r.History = r.History[:len(r.History)-1]
	board, hands, err := shogi.Replay(historyMoves(r.History))
	if err != nil {
		return nil, false
	}
	r.Board, r.Hands = board, hands
	r.rebuildFingerprintsLocked()

	return []Event{{Name: "sync", Payload: r.syncLocked("")}}, true
}

// rebuildFingerprintsLocked replays History from the initial position and
// recomputes Fingerprints/SfenHistory from scratch. Used by Undo and Reset
// to keep repetition counting exact after a history truncation.
func (r *Room) rebuildFingerprintsLocked() {
	board := shogi.NewInitialBoard()
	hands := shogi.NewHands()
	fp := shogi.Fingerprint(board, shogi.Sente, hands)
	fingerprints := []string{fp}
	counts := map[string]int{fp: 1}

	side := shogi.Sente
	for _, entry := range r.History {
		nb, nh, err := shogi.Apply(board, hands, side, entry.Move)
		if err != nil {
			break
		}
		board, hands = nb, nh
		side = side.Opponent()
		fp = shogi.Fingerprint(board, side, hands)
		fingerprints = append(fingerprints, fp)
		counts[fp]++
	}
	r.Fingerprints = fingerprints
	r.SfenHistory = counts
}

// Reset clears history and returns to the starting state, only while not
// playing; the same gating as Undo.
func (r *Room) Reset() (events []Event, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resetLocked()
}

func (r *Room) resetLocked() (events []Event, ok bool) {
	if r.Status == StatusPlaying {
		return nil, false
	}
	r.History = nil
	r.Board = shogi.NewInitialBoard()
	r.Hands = shogi.NewHands()
	r.resetFingerprints()
	r.Status = StatusWaiting
	r.Ready = [numSeats]bool{}
	r.Winner = nil
	return []Event{{Name: "sync", Payload: r.syncLocked("")}}, true
}

// Rematch records seat's rematch request; when both seats have
// requested, the room resets and returns to waiting.
func (r *Room) Rematch(seat shogi.Side) (events []Event, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rematchLocked(seat)
}

func (r *Room) rematchLocked(seat shogi.Side) (events []Event, ok bool) {
	if r.Status != StatusFinished {
		return nil, false
	}
	r.RematchRequests[seat] = true
	events = append(events, Event{Name: "rematch_status", Payload: r.RematchRequests})

	if r.RematchRequests[shogi.Sente] && r.RematchRequests[shogi.Gote] {
		r.History = nil
		r.Board = shogi.NewInitialBoard()
		r.Hands = shogi.NewHands()
		r.resetFingerprints()
		r.Status = StatusWaiting
		r.Ready = [numSeats]bool{}
		r.RematchRequests = [numSeats]bool{}
		r.Winner = nil
		events = append(events, Event{Name: "sync", Payload: r.syncLocked("")})
	}
	return events, true
}

// SetSeatOnline records presence for whichever seat sessionID occupies,
// and, while playing, pauses or resumes the Clock: both seats must be
// online for the clock to run.
func (r *Room) SetSeatOnline(sessionID string, online bool) (events []Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.setSeatOnlineLocked(sessionID, online)
}

func (r *Room) setSeatOnlineLocked(sessionID string, online bool) (events []Event) {
	var seat shogi.Side
	found := false
	for _, s := range []shogi.Side{shogi.Sente, shogi.Gote} {
		if r.Players[s] == sessionID {
			seat, found = s, true
			break
		}
	}
	if !found {
		return nil
	}
	r.onlineSeats[seat] = online

	if r.Status == StatusPlaying && r.clock != nil {
		bothOnline := r.onlineSeats[shogi.Sente] && r.onlineSeats[shogi.Gote]
		_, running := r.clock.Running()
		if !online && running {
			r.clock.Stop(true)
			times, byoyomi, consumed := r.clock.Snapshot()
			r.Times, r.CurrentByoyomi, r.TotalConsumedTimes = times, byoyomi, consumed
		} else if bothOnline && !running {
			r.clock.Start(r.sideToMoveLocked())
		}
	}

	return []Event{{Name: "connection_status_update", Payload: r.connectionStatusLocked()}}
}

// StartAnalysis switches the room into the non-authoritative analysis
// branch mode.
func (r *Room) StartAnalysis() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.analysisBase = len(r.History)
	r.Status = StatusAnalysis
}

// HasLiveSession reports whether either seat currently has a live
// session.
func (r *Room) HasLiveSession() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hasLiveSessionLocked()
}

func (r *Room) hasLiveSessionLocked() bool {
	return r.onlineSeats[shogi.Sente] || r.onlineSeats[shogi.Gote]
}

// SyncFor builds the personalized full-state payload for sessionID,
// including that session's seat (spectator if unseated).
func (r *Room) SyncFor(sessionID string) any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.syncLocked(sessionID)
}

func (r *Room) syncLocked(sessionID string) map[string]any {
	role := "spectator"
	switch {
	case sessionID != "" && sessionID == r.Players[shogi.Sente]:
		role = "sente"
	case sessionID != "" && sessionID == r.Players[shogi.Gote]:
		role = "gote"
	}
	return map[string]any{
		"history":         r.History,
		"status":          r.Status,
		"winner":          winnerPayload(r.Winner),
		"yourRole":        role,
		"ready":           r.Ready,
		"settings":        r.Settings,
		"times":           r.Times,
		"rematchRequests": r.RematchRequests,
		"playerNames":     r.PlayerNames,
	}
}
