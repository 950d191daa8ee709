package preferences

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/personacraft-backend/internal/users"
	"github.com/angelmondragon/personacraft-backend/pkg/db/dbtest"
	"github.com/angelmondragon/personacraft-backend/pkg/db/models"
	"github.com/angelmondragon/personacraft-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/personacraft-backend/pkg/errors"
)

type ensureFunc func(ctx context.Context, identity users.Identity) (*models.User, error)

func (f ensureFunc) Ensure(ctx context.Context, identity users.Identity) (*models.User, error) {
	return f(ctx, identity)
}

func okEnsurer() ensureFunc {
	return func(_ context.Context, identity users.Identity) (*models.User, error) {
		return &models.User{ID: identity.ID}, nil
	}
}

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func newPrefsService(t *testing.T, ensurer userEnsurer) (Service, *gorm.DB, *clock) {
	t.Helper()
	conn := dbtest.Open(t)
	clk := &clock{now: time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC)}
	svc, err := NewService(ServiceParams{Repo: NewRepository(conn), Users: ensurer, Now: clk.Now})
	require.NoError(t, err)
	return svc, conn, clk
}

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool { return &b }

func TestGetReturnsDefaultsWithoutRow(t *testing.T) {
	svc, conn, _ := newPrefsService(t, okEnsurer())

	prefs, err := svc.Get(context.Background(), "user_1")
	require.NoError(t, err)
	assert.Equal(t, enums.ThemeSystem, prefs.Theme)
	assert.Equal(t, "en", prefs.Language)
	assert.True(t, prefs.Autosave)
	assert.Nil(t, prefs.UpdatedAt)

	var count int64
	require.NoError(t, conn.Model(&models.UserPreferences{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestUpdateUpsertsOnlyProvidedFields(t *testing.T) {
	svc, _, _ := newPrefsService(t, okEnsurer())
	ctx := context.Background()
	identity := users.Identity{ID: "user_1"}

	prefs, err := svc.Update(ctx, identity, UpdateInput{Theme: strPtr("DARK")})
	require.NoError(t, err)
	assert.Equal(t, enums.ThemeDark, prefs.Theme)
	assert.True(t, prefs.Autosave)

	prefs, err = svc.Update(ctx, identity, UpdateInput{Autosave: boolPtr(false), Language: strPtr("fr")})
	require.NoError(t, err)
	assert.Equal(t, enums.ThemeDark, prefs.Theme)
	assert.False(t, prefs.Autosave)
	assert.Equal(t, "fr", prefs.Language)
	assert.NotNil(t, prefs.UpdatedAt)
}

func TestUpdateValidatesInput(t *testing.T) {
	svc, _, _ := newPrefsService(t, okEnsurer())
	ctx := context.Background()

	_, err := svc.Update(ctx, users.Identity{ID: "user_1"}, UpdateInput{Theme: strPtr("sepia")})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = svc.Update(ctx, users.Identity{ID: "user_1"}, UpdateInput{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestUpdateRequiresProvisionedUser(t *testing.T) {
	failing := ensureFunc(func(context.Context, users.Identity) (*models.User, error) {
		return nil, pkgerrors.New(pkgerrors.CodeReconnect, "not provisioned")
	})
	svc, _, _ := newPrefsService(t, failing)

	_, err := svc.Update(context.Background(), users.Identity{ID: "user_1"}, UpdateInput{Autosave: boolPtr(true)})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeReconnect))
}

func reserve(t *testing.T, svc Service, limit int) bool {
	t.Helper()
	ok, err := svc.ReserveGeneration(context.Background(), "user_1", limit)
	require.NoError(t, err)
	return ok
}

func TestGenerationCountResetsEachMonth(t *testing.T) {
	svc, _, clk := newPrefsService(t, okEnsurer())
	ctx := context.Background()

	require.True(t, reserve(t, svc, 0))
	require.True(t, reserve(t, svc, 0))
	count, err := svc.GenerationCount(ctx, "user_1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	clk.now = clk.now.AddDate(0, 1, 0)
	count, err = svc.GenerationCount(ctx, "user_1")
	require.NoError(t, err)
	assert.Zero(t, count)

	require.True(t, reserve(t, svc, 0))
	count, err = svc.GenerationCount(ctx, "user_1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestReserveGenerationStopsAtLimit(t *testing.T) {
	svc, _, clk := newPrefsService(t, okEnsurer())
	ctx := context.Background()

	assert.True(t, reserve(t, svc, 2))
	assert.True(t, reserve(t, svc, 2))
	assert.False(t, reserve(t, svc, 2))
	count, err := svc.GenerationCount(ctx, "user_1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	require.NoError(t, svc.ReleaseGeneration(ctx, "user_1"))
	assert.True(t, reserve(t, svc, 2))
	assert.False(t, reserve(t, svc, 2))

	// a new month starts over even though the stored count is at the limit
	clk.now = clk.now.AddDate(0, 1, 0)
	assert.True(t, reserve(t, svc, 2))
	count, err = svc.GenerationCount(ctx, "user_1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestReserveGenerationConcurrentCallersRespectLimit(t *testing.T) {
	svc, _, _ := newPrefsService(t, okEnsurer())
	require.True(t, reserve(t, svc, 3))

	var granted int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := svc.ReserveGeneration(context.Background(), "user_1", 3)
			if err == nil && ok {
				atomic.AddInt32(&granted, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(2), atomic.LoadInt32(&granted))
	count, err := svc.GenerationCount(context.Background(), "user_1")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}
