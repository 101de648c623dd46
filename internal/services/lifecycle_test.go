package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/rgadsdon/mapveto/internal/models"
	"github.com/rgadsdon/mapveto/internal/repository"
	"github.com/rgadsdon/mapveto/internal/services"
)

// TestFinalize_IssuesTokens verifies the DRAFT to WAITING transition
// hands every slot an access token with an expiry.
func TestFinalize_IssuesTokens(t *testing.T) {
	f := newFixture(t)
	detail := f.createDraft(t, models.FormatABBA, 2, 4)
	id := detail.Session.ID

	if err := f.lifecycle.Finalize(context.Background(), id); err != nil {
		t.Fatalf("failed to finalize: %v", err)
	}

	sess := f.session(t, id)
	if sess.Status != models.StatusWaiting {
		t.Errorf("expected status WAITING, got %s", sess.Status)
	}

	seen := make(map[string]bool)
	for _, p := range f.players(t, id) {
		if p.Token == "" {
			t.Errorf("expected token for slot %s", p.Slot)
		}
		if seen[p.Token] {
			t.Error("expected unique tokens per slot")
		}
		seen[p.Token] = true
		if p.TokenExpiresAt == nil || !p.TokenExpiresAt.After(time.Now()) {
			t.Errorf("expected future token expiry for slot %s", p.Slot)
		}
	}

	if !containsAction(f.auditActions(t, id), "FINALIZE") {
		t.Error("expected a FINALIZE audit entry")
	}
}

// TestFinalize_RequiresMapPool verifies that a session without at
// least two pooled maps cannot leave DRAFT.
func TestFinalize_RequiresMapPool(t *testing.T) {
	f := newFixture(t)
	detail := f.createDraft(t, models.FormatABBA, 2, 0)

	err := f.lifecycle.Finalize(context.Background(), detail.Session.ID)
	if err != services.ErrPreconditionFailed {
		t.Errorf("expected ErrPreconditionFailed without a pool, got %v", err)
	}
	if f.session(t, detail.Session.ID).Status != models.StatusDraft {
		t.Error("expected session to stay in DRAFT")
	}
}

// TestFinalize_RequiresTeamNames verifies that every slot must be
// assigned before finalizing.
func TestFinalize_RequiresTeamNames(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	detail, err := f.sessions.Create(ctx, "Unnamed", models.FormatABBA, 30, 2)
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	id := detail.Session.ID

	var mapIDs []int64
	for _, name := range []string{"Alpha", "Bravo"} {
		mid, err := f.maps.CreateMap(ctx, name, "")
		if err != nil {
			t.Fatalf("failed to create map: %v", err)
		}
		mapIDs = append(mapIDs, mid)
	}
	if err := f.sessions.SetMapPool(ctx, id, mapIDs); err != nil {
		t.Fatalf("failed to set pool: %v", err)
	}

	err = f.lifecycle.Finalize(ctx, id)
	if err != services.ErrPreconditionFailed {
		t.Errorf("expected ErrPreconditionFailed with unnamed slots, got %v", err)
	}
}

// TestFinalize_WrongStatus verifies that finalizing twice fails.
func TestFinalize_WrongStatus(t *testing.T) {
	f := newFixture(t)
	detail := f.createDraft(t, models.FormatABBA, 2, 4)
	ctx := context.Background()

	if err := f.lifecycle.Finalize(ctx, detail.Session.ID); err != nil {
		t.Fatalf("first finalize failed: %v", err)
	}
	err := f.lifecycle.Finalize(ctx, detail.Session.ID)
	if err != services.ErrInvalidTransition {
		t.Errorf("expected ErrInvalidTransition, got %v", err)
	}
}

// TestStart_RequiresConnectedPlayers verifies that a session cannot
// start while any player has never checked in.
func TestStart_RequiresConnectedPlayers(t *testing.T) {
	f := newFixture(t)
	detail := f.createDraft(t, models.FormatABBA, 2, 4)
	id := detail.Session.ID
	ctx := context.Background()

	if err := f.lifecycle.Finalize(ctx, id); err != nil {
		t.Fatalf("failed to finalize: %v", err)
	}

	err := f.lifecycle.Start(ctx, id)
	if err != services.ErrPreconditionFailed {
		t.Errorf("expected ErrPreconditionFailed with disconnected players, got %v", err)
	}

	// Only one player connects.
	token := f.tokenForSlot(t, id, models.SlotPlayerA)
	if err := f.supervisor.Heartbeat(ctx, token, ""); err != nil {
		t.Fatalf("failed to heartbeat: %v", err)
	}
	err = f.lifecycle.Start(ctx, id)
	if err != services.ErrPreconditionFailed {
		t.Errorf("expected ErrPreconditionFailed with one player missing, got %v", err)
	}
}

// TestStart_BeginsFirstTurn verifies the WAITING to IN_PROGRESS
// transition starts the turn timer.
func TestStart_BeginsFirstTurn(t *testing.T) {
	f := newFixture(t)
	detail := f.activeSession(t, models.FormatABBA, 2, 4)

	sess := f.session(t, detail.Session.ID)
	if sess.Status != models.StatusInProgress {
		t.Errorf("expected status IN_PROGRESS, got %s", sess.Status)
	}
	if sess.TimerStartedAt == nil {
		t.Error("expected turn timer running")
	}
	if sess.CurrentTurn != 0 {
		t.Errorf("expected turn 0, got %d", sess.CurrentTurn)
	}
}

// TestStart_WrongStatus verifies that starting from DRAFT fails.
func TestStart_WrongStatus(t *testing.T) {
	f := newFixture(t)
	detail := f.createDraft(t, models.FormatABBA, 2, 4)

	err := f.lifecycle.Start(context.Background(), detail.Session.ID)
	if err != services.ErrInvalidTransition {
		t.Errorf("expected ErrInvalidTransition, got %v", err)
	}
}

// TestPauseResume_PreservesRemainingTime verifies that an admin pause
// freezes the timer and a resume restarts it with the same remaining
// seconds.
func TestPauseResume_PreservesRemainingTime(t *testing.T) {
	f := newFixture(t)
	detail := f.activeSession(t, models.FormatABBA, 2, 4)
	id := detail.Session.ID
	ctx := context.Background()

	// 10 of the 30 seconds have elapsed.
	f.rewindTimer(t, id, 10*time.Second)

	if err := f.lifecycle.Pause(ctx, id); err != nil {
		t.Fatalf("failed to pause: %v", err)
	}
	sess := f.session(t, id)
	if sess.Status != models.StatusPaused {
		t.Errorf("expected status PAUSED, got %s", sess.Status)
	}
	if sess.PauseReason != models.PauseAdmin {
		t.Errorf("expected pause reason ADMIN, got %q", sess.PauseReason)
	}
	if sess.TimerPausedAt == nil {
		t.Fatal("expected pause timestamp set")
	}

	state, err := f.supervisor.Countdown(ctx, id)
	if err != nil {
		t.Fatalf("failed to load countdown: %v", err)
	}
	if state.RemainingSeconds < 18 || state.RemainingSeconds > 21 {
		t.Errorf("expected roughly 20 seconds frozen, got %d", state.RemainingSeconds)
	}

	if err := f.lifecycle.Resume(ctx, id); err != nil {
		t.Fatalf("failed to resume: %v", err)
	}
	sess = f.session(t, id)
	if sess.Status != models.StatusInProgress {
		t.Errorf("expected status IN_PROGRESS, got %s", sess.Status)
	}
	if sess.PauseReason != models.PauseNone {
		t.Errorf("expected pause reason cleared, got %q", sess.PauseReason)
	}
	if sess.TimerPausedAt != nil {
		t.Error("expected pause timestamp cleared")
	}

	state, err = f.supervisor.Countdown(ctx, id)
	if err != nil {
		t.Fatalf("failed to load countdown: %v", err)
	}
	if state.RemainingSeconds < 18 || state.RemainingSeconds > 21 {
		t.Errorf("expected roughly 20 seconds after resume, got %d", state.RemainingSeconds)
	}
}

// TestPause_WrongStatus verifies that only IN_PROGRESS sessions pause.
func TestPause_WrongStatus(t *testing.T) {
	f := newFixture(t)
	detail := f.createDraft(t, models.FormatABBA, 2, 4)

	err := f.lifecycle.Pause(context.Background(), detail.Session.ID)
	if err != services.ErrInvalidTransition {
		t.Errorf("expected ErrInvalidTransition, got %v", err)
	}
}

// TestResume_WrongStatus verifies that resuming a running session fails.
func TestResume_WrongStatus(t *testing.T) {
	f := newFixture(t)
	detail := f.activeSession(t, models.FormatABBA, 2, 4)

	err := f.lifecycle.Resume(context.Background(), detail.Session.ID)
	if err != services.ErrInvalidTransition {
		t.Errorf("expected ErrInvalidTransition, got %v", err)
	}
}

// TestEnd_AdminChoosesWinner verifies the admin force-complete path.
func TestEnd_AdminChoosesWinner(t *testing.T) {
	f := newFixture(t)
	detail := f.activeSession(t, models.FormatABBA, 2, 4)
	id := detail.Session.ID
	winner := detail.Maps[2]

	if err := f.lifecycle.End(context.Background(), id, winner.ID); err != nil {
		t.Fatalf("failed to end session: %v", err)
	}

	sess := f.session(t, id)
	if sess.Status != models.StatusComplete {
		t.Errorf("expected status COMPLETE, got %s", sess.Status)
	}
	if sess.WinnerMapID == nil || *sess.WinnerMapID != winner.ID {
		t.Error("expected the chosen map recorded as winner")
	}
	if !containsAction(f.auditActions(t, id), "FORCE_COMPLETE") {
		t.Error("expected a FORCE_COMPLETE audit entry")
	}
}

// TestEnd_BannedMapRejected verifies that a banned map cannot be
// declared winner.
func TestEnd_BannedMapRejected(t *testing.T) {
	f := newFixture(t)
	detail := f.activeSession(t, models.FormatABBA, 2, 4)
	id := detail.Session.ID
	ctx := context.Background()

	target := detail.Maps[0]
	token := f.tokenForSlot(t, id, models.SlotPlayerA)
	if _, err := f.resolver.SubmitBan(ctx, token, "", target.ID); err != nil {
		t.Fatalf("failed to ban map: %v", err)
	}

	err := f.lifecycle.End(ctx, id, target.ID)
	if err != services.ErrMapUnavailable {
		t.Errorf("expected ErrMapUnavailable, got %v", err)
	}
}

// TestForceRandom_PicksFromAvailable verifies the random completion
// path draws only from still-available maps.
func TestForceRandom_PicksFromAvailable(t *testing.T) {
	f := newFixture(t)
	detail := f.activeSession(t, models.FormatABBA, 2, 4)
	id := detail.Session.ID
	ctx := context.Background()

	banned := detail.Maps[0]
	token := f.tokenForSlot(t, id, models.SlotPlayerA)
	if _, err := f.resolver.SubmitBan(ctx, token, "", banned.ID); err != nil {
		t.Fatalf("failed to ban map: %v", err)
	}

	if err := f.lifecycle.ForceRandom(ctx, id); err != nil {
		t.Fatalf("failed to force random winner: %v", err)
	}

	sess := f.session(t, id)
	if sess.Status != models.StatusComplete {
		t.Errorf("expected status COMPLETE, got %s", sess.Status)
	}
	if sess.WinnerMapID == nil {
		t.Fatal("expected a winner recorded")
	}
	if *sess.WinnerMapID == banned.ID {
		t.Error("random winner must not be a banned map")
	}
	if !containsAction(f.auditActions(t, id), "RANDOM_SELECTION") {
		t.Error("expected a RANDOM_SELECTION audit entry")
	}
}

// TestReset_PreparesReplay verifies the COMPLETE to WAITING reset:
// pool restored, counters zeroed, players keep slots and tokens.
func TestReset_PreparesReplay(t *testing.T) {
	f := newFixture(t)
	detail := f.activeSession(t, models.FormatMultiplayer, 2, 3)
	id := detail.Session.ID
	maps := detail.Maps
	ctx := context.Background()

	f.voteAs(t, id, models.SlotPlayer1, maps[0].ID)
	f.voteAs(t, id, models.SlotPlayer2, maps[1].ID)
	if f.session(t, id).Status != models.StatusComplete {
		t.Fatal("expected a completed session to reset")
	}

	tokenBefore := f.tokenForSlot(t, id, models.SlotPlayer1)
	if err := f.lifecycle.Reset(ctx, id); err != nil {
		t.Fatalf("failed to reset: %v", err)
	}

	sess := f.session(t, id)
	if sess.Status != models.StatusWaiting {
		t.Errorf("expected status WAITING, got %s", sess.Status)
	}
	if sess.CurrentRound != 1 || sess.CurrentTurn != 0 || sess.RevoteCount != 0 {
		t.Error("expected round, turn and revote counters reset")
	}
	if sess.WinnerMapID != nil {
		t.Error("expected winner cleared")
	}

	byState := f.mapsByState(t, id)
	if len(byState[models.MapAvailable]) != 3 {
		t.Errorf("expected the whole pool restored, got %d available", len(byState[models.MapAvailable]))
	}
	if f.tokenForSlot(t, id, models.SlotPlayer1) != tokenBefore {
		t.Error("expected players to keep their tokens across a reset")
	}
	for _, p := range f.players(t, id) {
		if p.HasVoted {
			t.Errorf("expected voted flag cleared for %s", p.Slot)
		}
	}
}

// TestReset_WrongStatus verifies that only COMPLETE sessions reset.
func TestReset_WrongStatus(t *testing.T) {
	f := newFixture(t)
	detail := f.createDraft(t, models.FormatABBA, 2, 4)

	err := f.lifecycle.Reset(context.Background(), detail.Session.ID)
	if err != services.ErrInvalidTransition {
		t.Errorf("expected ErrInvalidTransition, got %v", err)
	}
}

// TestExpireStale_MarksOverdueSessions verifies the expiry sweep only
// touches DRAFT and WAITING sessions past their horizon, and is
// idempotent.
func TestExpireStale_MarksOverdueSessions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	stale := f.createDraft(t, models.FormatABBA, 2, 4)
	fresh := f.createDraft(t, models.FormatABBA, 2, 4)

	err := f.repo.InSession(ctx, stale.Session.ID, func(tx *repository.SessionTx) error {
		sess, err := tx.Session()
		if err != nil {
			return err
		}
		sess.ExpiresAt = time.Now().Add(-time.Minute)
		return tx.SaveSession(sess)
	})
	if err != nil {
		t.Fatalf("failed to backdate expiry: %v", err)
	}

	count, err := f.lifecycle.ExpireStale(ctx)
	if err != nil {
		t.Fatalf("expiry sweep failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 expired session, got %d", count)
	}

	if got := f.session(t, stale.Session.ID).Status; got != models.StatusExpired {
		t.Errorf("expected stale session EXPIRED, got %s", got)
	}
	if got := f.session(t, fresh.Session.ID).Status; got != models.StatusDraft {
		t.Errorf("expected fresh session untouched, got %s", got)
	}
	if !containsAction(f.auditActions(t, stale.Session.ID), "EXPIRE") {
		t.Error("expected an EXPIRE audit entry")
	}

	count, err = f.lifecycle.ExpireStale(ctx)
	if err != nil {
		t.Fatalf("second sweep failed: %v", err)
	}
	if count != 0 {
		t.Errorf("expected idempotent sweep, got %d", count)
	}
}
