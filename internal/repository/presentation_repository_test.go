package repository

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"gopherai-slides/internal/model"
)

func newTestRepo(t *testing.T) *PresentationRepository {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, AutoMigrate(db))
	return NewPresentationRepository(db)
}

func TestPresentationLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	require.NoError(t, repo.Create(ctx, &model.Presentation{ID: "p1", Status: model.StatusPending, Prompt: "solar"}))

	got, err := repo.GetByID(ctx, "p1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, model.StatusPending, got.Status)
	assert.Empty(t, got.Title)

	require.NoError(t, repo.AddImage(ctx, &model.PresentationImage{PresentationID: "p1", Position: 1, URL: "/assets/b.png"}))
	require.NoError(t, repo.AddImage(ctx, &model.PresentationImage{PresentationID: "p1", Position: 0, URL: "/assets/a.png"}))
	require.NoError(t, repo.MarkCompleted(ctx, "p1", "Solar", "# Solar"))

	got, err = repo.GetByID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, got.Status)
	assert.Equal(t, "Solar", got.Title)
	require.Len(t, got.Images, 2)
	assert.Equal(t, "/assets/a.png", got.Images[0].URL)
	assert.Equal(t, "/assets/b.png", got.Images[1].URL)

	removed, err := repo.Delete(ctx, "p1")
	require.NoError(t, err)
	assert.Len(t, removed, 2)

	got, err = repo.GetByID(ctx, "p1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMarkFailedKeepsContent(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	require.NoError(t, repo.Create(ctx, &model.Presentation{ID: "p1", Status: model.StatusPending, Content: "draft"}))

	require.NoError(t, repo.MarkFailed(ctx, "p1", "generation backend unavailable"))

	got, err := repo.GetByID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, got.Status)
	assert.Equal(t, "generation backend unavailable", got.Error)
	assert.Equal(t, "draft", got.Content)
}

func TestLongFieldsAreTruncated(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	require.NoError(t, repo.Create(ctx, &model.Presentation{ID: "p1", Status: model.StatusPending}))
	require.NoError(t, repo.Create(ctx, &model.Presentation{ID: "p2", Status: model.StatusPending}))

	require.NoError(t, repo.MarkCompleted(ctx, "p1", strings.Repeat("ü", 300), "# Deck"))
	require.NoError(t, repo.MarkFailed(ctx, "p2", strings.Repeat("語", 600)))

	got, err := repo.GetByID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("ü", model.MaxTitleLength), got.Title)

	got, err = repo.GetByID(ctx, "p2")
	require.NoError(t, err)
	assert.True(t, utf8.ValidString(got.Error))
	assert.Equal(t, model.MaxErrorLength, utf8.RuneCountInString(got.Error))
}

func TestClaimPendingOnlyOnce(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	require.NoError(t, repo.Create(ctx, &model.Presentation{ID: "p1", Status: model.StatusPending}))
	require.NoError(t, repo.Create(ctx, &model.Presentation{ID: "p2", Status: model.StatusCompleted}))

	ok, err := repo.ClaimPending(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.ClaimPending(ctx, "p1")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.ClaimPending(ctx, "p2")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.ClaimPending(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestListNewestFirst(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, repo.Create(ctx, &model.Presentation{ID: id, Status: model.StatusPending}))
	}

	list, err := repo.List(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}
