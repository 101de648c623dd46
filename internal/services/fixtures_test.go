package services_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rgadsdon/mapveto/internal/logger"
	"github.com/rgadsdon/mapveto/internal/models"
	"github.com/rgadsdon/mapveto/internal/repository"
	"github.com/rgadsdon/mapveto/internal/services"
	"github.com/rgadsdon/mapveto/internal/testutil"
)

// fixture bundles every service over one in-memory repository so tests
// can drive full session flows end to end.
type fixture struct {
	repo       *repository.Repository
	maps       *services.MapService
	sessions   *services.SessionService
	lifecycle  *services.LifecycleService
	resolver   *services.ResolverService
	supervisor *services.SupervisorService
	links      *services.LinkService
	settings   *services.SettingsService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	repo := testutil.NewTestRepository(t)
	log := logger.New()
	return &fixture{
		repo:       repo,
		maps:       services.NewMapService(log, repo),
		sessions:   services.NewSessionService(log, repo, time.Hour),
		lifecycle:  services.NewLifecycleService(log, repo, time.Hour),
		resolver:   services.NewResolverService(log, repo),
		supervisor: services.NewSupervisorService(log, repo, 15*time.Second, 5*time.Minute),
		links:      services.NewLinkService(log, repo),
		settings:   services.NewSettingsService(log, repo),
	}
}

// createDraft creates a DRAFT session with a named team in every slot
// and a pool of mapCount maps. mapCount 0 leaves the pool empty.
func (f *fixture) createDraft(t *testing.T, format models.Format, playerCount, mapCount int) *models.SessionDetail {
	t.Helper()
	ctx := context.Background()

	detail, err := f.sessions.Create(ctx, "Test Session", format, 30, playerCount)
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}

	if mapCount > 0 {
		var mapIDs []int64
		for i := 0; i < mapCount; i++ {
			id, err := f.maps.CreateMap(ctx, fmt.Sprintf("Map %d", i+1), "")
			if err != nil {
				t.Fatalf("failed to create map: %v", err)
			}
			mapIDs = append(mapIDs, id)
		}
		if err := f.sessions.SetMapPool(ctx, detail.Session.ID, mapIDs); err != nil {
			t.Fatalf("failed to set map pool: %v", err)
		}
	}

	for _, p := range detail.Players {
		if err := f.sessions.AssignPlayer(ctx, detail.Session.ID, p.Slot, "Team "+p.Slot); err != nil {
			t.Fatalf("failed to assign player %s: %v", p.Slot, err)
		}
	}

	return f.detail(t, detail.Session.ID)
}

// startSession finalizes, connects every player and starts the session.
func (f *fixture) startSession(t *testing.T, sessionID string) *models.SessionDetail {
	t.Helper()
	ctx := context.Background()

	if err := f.lifecycle.Finalize(ctx, sessionID); err != nil {
		t.Fatalf("failed to finalize session: %v", err)
	}
	for _, p := range f.players(t, sessionID) {
		if err := f.supervisor.Heartbeat(ctx, p.Token, ""); err != nil {
			t.Fatalf("failed to heartbeat player %s: %v", p.Slot, err)
		}
	}
	if err := f.lifecycle.Start(ctx, sessionID); err != nil {
		t.Fatalf("failed to start session: %v", err)
	}

	return f.detail(t, sessionID)
}

// activeSession builds an IN_PROGRESS session in one call.
func (f *fixture) activeSession(t *testing.T, format models.Format, playerCount, mapCount int) *models.SessionDetail {
	t.Helper()
	detail := f.createDraft(t, format, playerCount, mapCount)
	return f.startSession(t, detail.Session.ID)
}

func (f *fixture) detail(t *testing.T, sessionID string) *models.SessionDetail {
	t.Helper()
	detail, err := f.sessions.Get(context.Background(), sessionID)
	if err != nil {
		t.Fatalf("failed to load session detail: %v", err)
	}
	return detail
}

func (f *fixture) session(t *testing.T, sessionID string) *models.Session {
	t.Helper()
	return &f.detail(t, sessionID).Session
}

func (f *fixture) players(t *testing.T, sessionID string) []models.SessionPlayer {
	t.Helper()
	players, err := f.repo.ListSessionPlayers(context.Background(), sessionID)
	if err != nil {
		t.Fatalf("failed to list players: %v", err)
	}
	return players
}

// tokenForSlot returns the access token issued to a slot.
func (f *fixture) tokenForSlot(t *testing.T, sessionID, slot string) string {
	t.Helper()
	for _, p := range f.players(t, sessionID) {
		if p.Slot == slot {
			if p.Token == "" {
				t.Fatalf("player %s has no token", slot)
			}
			return p.Token
		}
	}
	t.Fatalf("no player in slot %s", slot)
	return ""
}

// mapsByState groups the session's maps by their current state.
func (f *fixture) mapsByState(t *testing.T, sessionID string) map[models.MapState][]models.SessionMap {
	t.Helper()
	byState := make(map[models.MapState][]models.SessionMap)
	for _, m := range f.detail(t, sessionID).Maps {
		byState[m.State] = append(byState[m.State], m)
	}
	return byState
}

// rewindTimer moves the running turn timer's start into the past, as if
// the given duration had already elapsed.
func (f *fixture) rewindTimer(t *testing.T, sessionID string, elapsed time.Duration) {
	t.Helper()
	err := f.repo.InSession(context.Background(), sessionID, func(tx *repository.SessionTx) error {
		sess, err := tx.Session()
		if err != nil {
			return err
		}
		started := time.Now().Add(-elapsed)
		sess.TimerStartedAt = &started
		return tx.SaveSession(sess)
	})
	if err != nil {
		t.Fatalf("failed to rewind timer: %v", err)
	}
}

// auditActions returns the session's audit actions in order.
func (f *fixture) auditActions(t *testing.T, sessionID string) []string {
	t.Helper()
	entries, err := f.sessions.Audit(context.Background(), sessionID)
	if err != nil {
		t.Fatalf("failed to list audit: %v", err)
	}
	actions := make([]string, len(entries))
	for i, e := range entries {
		actions[i] = e.Action
	}
	return actions
}

func containsAction(actions []string, action string) bool {
	for _, a := range actions {
		if a == action {
			return true
		}
	}
	return false
}
