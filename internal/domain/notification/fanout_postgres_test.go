package notification

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"commonwealth/internal/database"
	"commonwealth/internal/domain"
)

// setupPostgresDB connects to TEST_DATABASE_URL and empties the engine's tables.
func setupPostgresDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	require.True(t, database.IsPostgresDSN(dsn), "TEST_DATABASE_URL must be a postgres:// DSN")
	db, err := database.Connect(dsn)
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	truncate := func() {
		require.NoError(t, db.Exec(`TRUNCATE notifications_read, notifications, subscriptions, addresses, profiles, webhooks, communities, users RESTART IDENTITY CASCADE`).Error)
	}
	truncate()
	t.Cleanup(truncate)
	return db
}

func TestEmit_PostgresAdvisoryLockKeepsOffsetsContiguous(t *testing.T) {
	db := setupPostgresDB(t)
	engine := newTestEngine(t, db, Dispatchers{}, nil)
	require.True(t, engine.advisory)

	u := createUser(t, db, "u@example.com", 0)
	other := createUser(t, db, "o@example.com", 50)
	const targets = 24
	for i := 0; i < targets; i++ {
		subscribe(t, db, u.ID, domain.CategoryNewComment, fmt.Sprintf("thread-%d", i), true, false)
		subscribe(t, db, other.ID, domain.CategoryNewComment, fmt.Sprintf("thread-%d", i), true, false)
	}

	var wg sync.WaitGroup
	errs := make(chan error, targets)
	for i := 0; i < targets; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := engine.Emit(context.Background(), EmitRequest{
				Category: domain.CategoryNewComment,
				ObjectID: fmt.Sprintf("thread-%d", i),
				Data:     commentPayload(fmt.Sprintf("Postgres thread %d", i)),
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	for _, tc := range []struct {
		user  *domain.User
		start int64
	}{{u, 1}, {other, 51}} {
		rows := readRows(t, db, tc.user.ID)
		require.Len(t, rows, targets)
		offsets := make([]int64, 0, len(rows))
		for _, r := range rows {
			offsets = append(offsets, r.ID)
		}
		sort.Slice(offsets, func(i, j int) bool { return offsets[i] < offsets[j] })
		for i, off := range offsets {
			assert.Equal(t, tc.start+int64(i), off)
		}

		var fresh domain.User
		require.NoError(t, db.First(&fresh, tc.user.ID).Error)
		assert.Equal(t, tc.start+targets-1, fresh.MaxNotifOffset)
	}
}
