package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/rgadsdon/mapveto/internal/models"
	"github.com/rgadsdon/mapveto/internal/repository"
	"github.com/rgadsdon/mapveto/internal/services"
)

// stalePlayerHeartbeat backdates a connected player's last heartbeat.
func (f *fixture) stalePlayerHeartbeat(t *testing.T, sessionID, slot string, age time.Duration) {
	t.Helper()
	err := f.repo.InSession(context.Background(), sessionID, func(tx *repository.SessionTx) error {
		players, err := tx.Players()
		if err != nil {
			return err
		}
		for i := range players {
			if players[i].Slot != slot {
				continue
			}
			stale := time.Now().Add(-age)
			players[i].LastHeartbeat = &stale
			return tx.SavePlayer(&players[i])
		}
		return repository.ErrNotFound
	})
	if err != nil {
		t.Fatalf("failed to backdate heartbeat: %v", err)
	}
}

// TestHeartbeat_ConnectsPlayer verifies that the first heartbeat marks
// the player connected and records it in the audit trail.
func TestHeartbeat_ConnectsPlayer(t *testing.T) {
	f := newFixture(t)
	detail := f.createDraft(t, models.FormatABBA, 2, 4)
	id := detail.Session.ID
	ctx := context.Background()

	if err := f.lifecycle.Finalize(ctx, id); err != nil {
		t.Fatalf("failed to finalize: %v", err)
	}

	token := f.tokenForSlot(t, id, models.SlotPlayerA)
	if err := f.supervisor.Heartbeat(ctx, token, "10.1.1.1"); err != nil {
		t.Fatalf("failed to heartbeat: %v", err)
	}

	for _, p := range f.players(t, id) {
		if p.Slot != models.SlotPlayerA {
			continue
		}
		if !p.Connected {
			t.Error("expected player connected")
		}
		if p.LastHeartbeat == nil {
			t.Error("expected last heartbeat recorded")
		}
	}
	if !containsAction(f.auditActions(t, id), "CONNECT") {
		t.Error("expected a CONNECT audit entry")
	}
}

// TestHeartbeat_LocksAddress verifies the first address wins and later
// heartbeats from elsewhere are rejected.
func TestHeartbeat_LocksAddress(t *testing.T) {
	f := newFixture(t)
	detail := f.createDraft(t, models.FormatABBA, 2, 4)
	id := detail.Session.ID
	ctx := context.Background()

	if err := f.lifecycle.Finalize(ctx, id); err != nil {
		t.Fatalf("failed to finalize: %v", err)
	}

	token := f.tokenForSlot(t, id, models.SlotPlayerA)
	if err := f.supervisor.Heartbeat(ctx, token, "10.1.1.1"); err != nil {
		t.Fatalf("first heartbeat failed: %v", err)
	}
	if err := f.supervisor.Heartbeat(ctx, token, "10.1.1.1"); err != nil {
		t.Errorf("heartbeat from locked address failed: %v", err)
	}

	err := f.supervisor.Heartbeat(ctx, token, "10.9.9.9")
	if err != services.ErrAddressMismatch {
		t.Errorf("expected ErrAddressMismatch, got %v", err)
	}
}

// TestHeartbeat_TerminalSession verifies heartbeats against an expired
// session are rejected.
func TestHeartbeat_TerminalSession(t *testing.T) {
	f := newFixture(t)
	detail := f.createDraft(t, models.FormatABBA, 2, 4)
	id := detail.Session.ID
	ctx := context.Background()

	if err := f.lifecycle.Finalize(ctx, id); err != nil {
		t.Fatalf("failed to finalize: %v", err)
	}
	token := f.tokenForSlot(t, id, models.SlotPlayerA)

	err := f.repo.InSession(ctx, id, func(tx *repository.SessionTx) error {
		sess, err := tx.Session()
		if err != nil {
			return err
		}
		sess.Status = models.StatusExpired
		return tx.SaveSession(sess)
	})
	if err != nil {
		t.Fatalf("failed to expire session: %v", err)
	}

	if err := f.supervisor.Heartbeat(ctx, token, ""); err != services.ErrInvalidState {
		t.Errorf("expected ErrInvalidState, got %v", err)
	}
}

// TestSweepHeartbeats_PausesOnDisconnect verifies that a stale player
// is marked disconnected and an in-progress session auto-pauses.
func TestSweepHeartbeats_PausesOnDisconnect(t *testing.T) {
	f := newFixture(t)
	detail := f.activeSession(t, models.FormatABBA, 2, 4)
	id := detail.Session.ID
	ctx := context.Background()

	f.stalePlayerHeartbeat(t, id, models.SlotPlayerA, time.Minute)

	acted, err := f.supervisor.SweepHeartbeats(ctx)
	if err != nil {
		t.Fatalf("heartbeat sweep failed: %v", err)
	}
	if acted != 1 {
		t.Errorf("expected 1 session acted on, got %d", acted)
	}

	sess := f.session(t, id)
	if sess.Status != models.StatusPaused {
		t.Errorf("expected status PAUSED, got %s", sess.Status)
	}
	if sess.PauseReason != models.PauseDisconnect {
		t.Errorf("expected pause reason DISCONNECT, got %q", sess.PauseReason)
	}
	if sess.TimerPausedAt == nil {
		t.Error("expected timer frozen at the pause point")
	}

	for _, p := range f.players(t, id) {
		switch p.Slot {
		case models.SlotPlayerA:
			if p.Connected {
				t.Error("expected stale player disconnected")
			}
			if p.DisconnectedAt == nil {
				t.Error("expected disconnect timestamp recorded")
			}
		case models.SlotPlayerB:
			if !p.Connected {
				t.Error("expected fresh player still connected")
			}
		}
	}

	actions := f.auditActions(t, id)
	if !containsAction(actions, "DISCONNECT") {
		t.Error("expected a DISCONNECT audit entry")
	}
	if !containsAction(actions, "PAUSE") {
		t.Error("expected a PAUSE audit entry")
	}
}

// TestSweepHeartbeats_WaitingSessionStaysWaiting verifies that a
// disconnect before the session starts never pauses it.
func TestSweepHeartbeats_WaitingSessionStaysWaiting(t *testing.T) {
	f := newFixture(t)
	detail := f.createDraft(t, models.FormatABBA, 2, 4)
	id := detail.Session.ID
	ctx := context.Background()

	if err := f.lifecycle.Finalize(ctx, id); err != nil {
		t.Fatalf("failed to finalize: %v", err)
	}
	for _, p := range f.players(t, id) {
		if err := f.supervisor.Heartbeat(ctx, p.Token, ""); err != nil {
			t.Fatalf("failed to heartbeat: %v", err)
		}
	}

	f.stalePlayerHeartbeat(t, id, models.SlotPlayerB, time.Minute)
	if _, err := f.supervisor.SweepHeartbeats(ctx); err != nil {
		t.Fatalf("heartbeat sweep failed: %v", err)
	}

	sess := f.session(t, id)
	if sess.Status != models.StatusWaiting {
		t.Errorf("expected status still WAITING, got %s", sess.Status)
	}
	for _, p := range f.players(t, id) {
		if p.Slot == models.SlotPlayerB && p.Connected {
			t.Error("expected stale player disconnected")
		}
	}
}

// TestHeartbeat_ResumesDisconnectPause verifies that a disconnect pause
// heals itself once every player is back.
func TestHeartbeat_ResumesDisconnectPause(t *testing.T) {
	f := newFixture(t)
	detail := f.activeSession(t, models.FormatABBA, 2, 4)
	id := detail.Session.ID
	ctx := context.Background()

	f.stalePlayerHeartbeat(t, id, models.SlotPlayerA, time.Minute)
	if _, err := f.supervisor.SweepHeartbeats(ctx); err != nil {
		t.Fatalf("heartbeat sweep failed: %v", err)
	}
	if f.session(t, id).Status != models.StatusPaused {
		t.Fatal("expected a disconnect pause before reconnecting")
	}

	token := f.tokenForSlot(t, id, models.SlotPlayerA)
	if err := f.supervisor.Heartbeat(ctx, token, ""); err != nil {
		t.Fatalf("reconnect heartbeat failed: %v", err)
	}

	sess := f.session(t, id)
	if sess.Status != models.StatusInProgress {
		t.Errorf("expected session resumed, got %s", sess.Status)
	}
	if sess.PauseReason != models.PauseNone {
		t.Errorf("expected pause reason cleared, got %q", sess.PauseReason)
	}
	if !containsAction(f.auditActions(t, id), "RESUME") {
		t.Error("expected a RESUME audit entry")
	}
}

// TestHeartbeat_DoesNotResumeAdminPause verifies that a reconnect never
// overrides an explicit admin pause.
func TestHeartbeat_DoesNotResumeAdminPause(t *testing.T) {
	f := newFixture(t)
	detail := f.activeSession(t, models.FormatABBA, 2, 4)
	id := detail.Session.ID
	ctx := context.Background()

	if err := f.lifecycle.Pause(ctx, id); err != nil {
		t.Fatalf("failed to pause: %v", err)
	}

	token := f.tokenForSlot(t, id, models.SlotPlayerA)
	if err := f.supervisor.Heartbeat(ctx, token, ""); err != nil {
		t.Fatalf("heartbeat failed: %v", err)
	}

	sess := f.session(t, id)
	if sess.Status != models.StatusPaused {
		t.Errorf("expected session still PAUSED, got %s", sess.Status)
	}
	if sess.PauseReason != models.PauseAdmin {
		t.Errorf("expected pause reason ADMIN, got %q", sess.PauseReason)
	}
}

// TestSweepTimeouts_AbbaBansRandomMap verifies that an expired ABBA
// turn is resolved with a random ban on the idle player's behalf.
func TestSweepTimeouts_AbbaBansRandomMap(t *testing.T) {
	f := newFixture(t)
	detail := f.activeSession(t, models.FormatABBA, 2, 4)
	id := detail.Session.ID
	ctx := context.Background()

	f.rewindTimer(t, id, time.Minute)

	acted, err := f.supervisor.SweepTimeouts(ctx)
	if err != nil {
		t.Fatalf("timeout sweep failed: %v", err)
	}
	if acted != 1 {
		t.Errorf("expected 1 session acted on, got %d", acted)
	}

	sess := f.session(t, id)
	if sess.CurrentTurn != 1 {
		t.Errorf("expected turn advanced to 1, got %d", sess.CurrentTurn)
	}
	if len(f.mapsByState(t, id)[models.MapBanned]) != 1 {
		t.Error("expected exactly one map banned by the timeout")
	}
	if !containsAction(f.auditActions(t, id), "TIMEOUT") {
		t.Error("expected a TIMEOUT audit entry")
	}

	// The ban restarted the timer, so an immediate second sweep is a no-op.
	acted, err = f.supervisor.SweepTimeouts(ctx)
	if err != nil {
		t.Fatalf("second sweep failed: %v", err)
	}
	if acted != 0 {
		t.Errorf("expected no-op second sweep, got %d", acted)
	}
}

// TestSweepTimeouts_AbbaCompletesOnFinalBan verifies that a timeout
// with two maps left finishes the veto.
func TestSweepTimeouts_AbbaCompletesOnFinalBan(t *testing.T) {
	f := newFixture(t)
	detail := f.activeSession(t, models.FormatABBA, 2, 2)
	id := detail.Session.ID
	ctx := context.Background()

	f.rewindTimer(t, id, time.Minute)
	if _, err := f.supervisor.SweepTimeouts(ctx); err != nil {
		t.Fatalf("timeout sweep failed: %v", err)
	}

	sess := f.session(t, id)
	if sess.Status != models.StatusComplete {
		t.Errorf("expected status COMPLETE, got %s", sess.Status)
	}
	if sess.WinnerMapID == nil {
		t.Error("expected a winner recorded")
	}
}

// TestSweepTimeouts_MultiplayerFlagsOnly verifies that a multiplayer
// timeout raises the expiry flag and nothing else.
func TestSweepTimeouts_MultiplayerFlagsOnly(t *testing.T) {
	f := newFixture(t)
	detail := f.activeSession(t, models.FormatMultiplayer, 2, 4)
	id := detail.Session.ID
	ctx := context.Background()

	f.rewindTimer(t, id, time.Minute)

	acted, err := f.supervisor.SweepTimeouts(ctx)
	if err != nil {
		t.Fatalf("timeout sweep failed: %v", err)
	}
	if acted != 1 {
		t.Errorf("expected 1 session acted on, got %d", acted)
	}

	sess := f.session(t, id)
	if !sess.TimerExpired {
		t.Error("expected timer expiry flag raised")
	}
	if sess.Status != models.StatusInProgress {
		t.Errorf("expected session still IN_PROGRESS, got %s", sess.Status)
	}
	if len(f.mapsByState(t, id)[models.MapBanned]) != 0 {
		t.Error("expected no maps banned on multiplayer timeout")
	}

	// The flag is already raised, so the next sweep does nothing.
	acted, err = f.supervisor.SweepTimeouts(ctx)
	if err != nil {
		t.Fatalf("second sweep failed: %v", err)
	}
	if acted != 0 {
		t.Errorf("expected no-op second sweep, got %d", acted)
	}
}

// TestSweepTimeouts_SkipsRunningTimers verifies that a fresh timer is
// left alone.
func TestSweepTimeouts_SkipsRunningTimers(t *testing.T) {
	f := newFixture(t)
	f.activeSession(t, models.FormatABBA, 2, 4)

	acted, err := f.supervisor.SweepTimeouts(context.Background())
	if err != nil {
		t.Fatalf("timeout sweep failed: %v", err)
	}
	if acted != 0 {
		t.Errorf("expected no sessions acted on, got %d", acted)
	}
}

// TestCountdown_ReportsRemainingSeconds verifies the countdown derives
// from the persisted timer start.
func TestCountdown_ReportsRemainingSeconds(t *testing.T) {
	f := newFixture(t)
	detail := f.activeSession(t, models.FormatABBA, 2, 4)
	id := detail.Session.ID

	f.rewindTimer(t, id, 10*time.Second)

	state, err := f.supervisor.Countdown(context.Background(), id)
	if err != nil {
		t.Fatalf("failed to load countdown: %v", err)
	}
	if state.SessionID != id {
		t.Errorf("expected session %s, got %s", id, state.SessionID)
	}
	if state.Status != models.StatusInProgress {
		t.Errorf("expected status IN_PROGRESS, got %s", state.Status)
	}
	if state.RemainingSeconds < 18 || state.RemainingSeconds > 20 {
		t.Errorf("expected roughly 20 seconds remaining, got %d", state.RemainingSeconds)
	}
	if state.GraceSeconds != nil {
		t.Error("expected no grace window on a running session")
	}
}

// TestCountdown_ReportsGraceWindow verifies that a disconnect pause
// surfaces the remaining grace seconds without acting on them.
func TestCountdown_ReportsGraceWindow(t *testing.T) {
	f := newFixture(t)
	detail := f.activeSession(t, models.FormatABBA, 2, 4)
	id := detail.Session.ID
	ctx := context.Background()

	f.stalePlayerHeartbeat(t, id, models.SlotPlayerA, time.Minute)
	if _, err := f.supervisor.SweepHeartbeats(ctx); err != nil {
		t.Fatalf("heartbeat sweep failed: %v", err)
	}

	state, err := f.supervisor.Countdown(ctx, id)
	if err != nil {
		t.Fatalf("failed to load countdown: %v", err)
	}
	if state.Status != models.StatusPaused {
		t.Errorf("expected status PAUSED, got %s", state.Status)
	}
	if state.GraceSeconds == nil {
		t.Fatal("expected a grace window on a disconnect pause")
	}
	// The grace period is 5 minutes and the disconnect just happened.
	if *state.GraceSeconds < 295 || *state.GraceSeconds > 300 {
		t.Errorf("expected roughly 300 grace seconds, got %d", *state.GraceSeconds)
	}

	// The session stays paused no matter how long the sweep keeps
	// running; only a reconnect or an admin resumes it.
	if _, err := f.supervisor.SweepHeartbeats(ctx); err != nil {
		t.Fatalf("second sweep failed: %v", err)
	}
	if f.session(t, id).Status != models.StatusPaused {
		t.Error("expected session still PAUSED")
	}
}
