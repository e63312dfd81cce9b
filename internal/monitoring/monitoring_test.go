package monitoring

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/isdelr/recipe-api-be/internal/database"
	"github.com/isdelr/recipe-api-be/internal/metrics"
	"github.com/isdelr/recipe-api-be/internal/services"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.New(filepath.Join(t.TempDir(), "monitoring.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(db))
	return db
}

func seedUser(t *testing.T, db *sql.DB) string {
	t.Helper()
	users := services.NewUserService(db)
	user, err := users.CreateUser(context.Background(), "monitor@example.com", "testpass123", "")
	require.NoError(t, err)
	return user.ID
}

func TestNewScheduler_InvalidSchedule(t *testing.T) {
	_, err := NewScheduler(services.NewEventService(openDB(t), nil), "not a cron", time.Hour)
	assert.Error(t, err)
}

func TestScheduler_PruneEvents(t *testing.T) {
	db := openDB(t)
	userID := seedUser(t, db)
	events := services.NewEventService(db, nil)
	ctx := context.Background()
	require.NoError(t, events.CreateEvent(ctx, userID, "recipe.create", "fresh"))

	s, err := NewScheduler(events, "0 4 * * *", 24*time.Hour)
	require.NoError(t, err)

	before := testutil.ToFloat64(metrics.EventsPruned)
	assert.EqualValues(t, 0, s.PruneEvents(ctx))

	// Two days later the event is past retention.
	s.now = func() time.Time { return time.Now().Add(48 * time.Hour) }
	assert.EqualValues(t, 1, s.PruneEvents(ctx))
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.EventsPruned))

	remaining, err := events.GetRecentEvents(ctx, userID, 10)
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

func TestScheduler_RunStop(t *testing.T) {
	s, err := NewScheduler(services.NewEventService(openDB(t), nil), "@every 1h", time.Hour)
	require.NoError(t, err)

	s.Run()
	s.Stop()
}

func TestStatUpdater_Sample(t *testing.T) {
	db := openDB(t)
	seedUser(t, db)

	su := NewStatUpdater(db, time.Minute)
	su.Sample(context.Background())

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.StoredRows.WithLabelValues("users")))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.StoredRows.WithLabelValues("recipes")))
}

func TestStatUpdater_RunStop(t *testing.T) {
	su := NewStatUpdater(openDB(t), time.Hour)
	done := make(chan struct{})
	go func() {
		su.Run()
		close(done)
	}()

	su.Stop()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Stop")
	}
}
