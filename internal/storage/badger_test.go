package storage

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linkmind/internal/domain"
)

// setupTestDB creates a temporary BadgerDB instance for testing.
// It returns the repository instance and a cleanup function.
func setupTestDB(t *testing.T) (*BadgerRepository, func()) {
	t.Helper()

	tempDir := t.TempDir()

	testLogger := logrus.New()
	testLogger.SetOutput(os.Stderr)
	testLogger.SetLevel(logrus.ErrorLevel)

	repo, err := NewBadgerRepository(tempDir, testLogger)
	require.NoError(t, err, "Failed to create test BadgerDB repository")

	cleanup := func() {
		err := repo.Close()
		assert.NoError(t, err, "Failed to close test BadgerDB repository")
	}

	return repo, cleanup
}

func TestBadgerRepository_SaveAndGetLinks(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	userID1 := int64(123)
	userID2 := int64(456)

	link1 := domain.Link{
		ID:        "l1",
		UserID:    userID1,
		URL:       "https://example.com/page1",
		Title:     "Example Page 1",
		Status:    domain.StatusPending,
		CreatedAt: time.Now().Add(-time.Hour),
	}
	link2 := domain.Link{
		ID:        "l2",
		UserID:    userID1,
		URL:       "https://example.com/page2",
		Title:     "Example Page 2",
		Status:    domain.StatusCompleted,
		TagIDs:    []string{"t1", "t2"},
		CreatedAt: time.Now(),
	}
	link3 := domain.Link{
		ID:        "l3",
		UserID:    userID2,
		URL:       "https://anothersite.net",
		Title:     "Another Site",
		Status:    domain.StatusPending,
		CreatedAt: time.Now(),
	}

	require.NoError(t, repo.SaveLink(ctx, link1))
	require.NoError(t, repo.SaveLink(ctx, link2))
	require.NoError(t, repo.SaveLink(ctx, link3))

	// Newest first for user 1.
	linksUser1, err := repo.GetLinksByUser(ctx, userID1)
	require.NoError(t, err)
	require.Len(t, linksUser1, 2)
	assert.Equal(t, "l2", linksUser1[0].ID)
	assert.Equal(t, []string{"t1", "t2"}, linksUser1[0].TagIDs)
	assert.Equal(t, "l1", linksUser1[1].ID)

	linksUser2, err := repo.GetLinksByUser(ctx, userID2)
	require.NoError(t, err)
	require.Len(t, linksUser2, 1)
	assert.Equal(t, "l3", linksUser2[0].ID)

	// Non-existent user has no links and no error.
	linksUser3, err := repo.GetLinksByUser(ctx, int64(999))
	require.NoError(t, err)
	assert.Empty(t, linksUser3)

	// Point read.
	got, err := repo.GetLink(ctx, userID1, "l2")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, got.Status)

	_, err = repo.GetLink(ctx, userID1, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	// A link id is scoped to its owner.
	_, err = repo.GetLink(ctx, userID2, "l1")
	assert.ErrorIs(t, err, ErrNotFound)

	// Saving again with the same id updates in place.
	link1.Status = domain.StatusCompleted
	link1.Title = "Updated Title 1"
	require.NoError(t, repo.SaveLink(ctx, link1))

	updated, err := repo.GetLink(ctx, userID1, "l1")
	require.NoError(t, err)
	assert.Equal(t, "Updated Title 1", updated.Title)
	assert.Equal(t, domain.StatusCompleted, updated.Status)

	count, err := repo.CountLinksByUser(ctx, userID1)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestBadgerRepository_DeleteLink(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	userID := int64(789)

	linkToDelete := domain.Link{ID: "del", UserID: userID, URL: "https://example.com/to_delete", Title: "Delete Me"}
	linkToKeep := domain.Link{ID: "keep", UserID: userID, URL: "https://example.com/to_keep", Title: "Keep Me"}

	require.NoError(t, repo.SaveLink(ctx, linkToDelete))
	require.NoError(t, repo.SaveLink(ctx, linkToKeep))

	require.NoError(t, repo.DeleteLink(ctx, userID, "del"))

	linksAfterDelete, err := repo.GetLinksByUser(ctx, userID)
	require.NoError(t, err)
	require.Len(t, linksAfterDelete, 1)
	assert.Equal(t, "keep", linksAfterDelete[0].ID)

	// Deletes are idempotent.
	assert.NoError(t, repo.DeleteLink(ctx, userID, "does_not_exist"))
	assert.NoError(t, repo.DeleteLink(ctx, userID, "del"))
}

func TestBadgerRepository_CountLinksSince(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	userID := int64(42)
	now := time.Now()

	old := domain.Link{ID: "old", UserID: userID, URL: "https://a.com", CreatedAt: now.Add(-48 * time.Hour)}
	fresh1 := domain.Link{ID: "f1", UserID: userID, URL: "https://b.com", CreatedAt: now.Add(-time.Hour)}
	fresh2 := domain.Link{ID: "f2", UserID: userID, URL: "https://c.com", CreatedAt: now}

	require.NoError(t, repo.SaveLink(ctx, old))
	require.NoError(t, repo.SaveLink(ctx, fresh1))
	require.NoError(t, repo.SaveLink(ctx, fresh2))

	count, err := repo.CountLinksSince(ctx, userID, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	count, err = repo.CountLinksSince(ctx, userID, now.Add(time.Hour))
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestBadgerRepository_Tags(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	userID := int64(123)

	tag1 := domain.Tag{ID: "t1", UserID: userID, Name: "news", Provenance: domain.ProvenanceManual, CreatedAt: time.Now().Add(-time.Hour)}
	tag2 := domain.Tag{ID: "t2", UserID: userID, Name: "AI", Provenance: domain.ProvenanceAI, CreatedAt: time.Now()}

	require.NoError(t, repo.SaveTag(ctx, tag1))
	require.NoError(t, repo.SaveTag(ctx, tag2))

	// Oldest first, stable across reads.
	tagList, err := repo.GetTagsByUser(ctx, userID)
	require.NoError(t, err)
	require.Len(t, tagList, 2)
	assert.Equal(t, "t1", tagList[0].ID)
	assert.Equal(t, "t2", tagList[1].ID)
	assert.Equal(t, domain.ProvenanceAI, tagList[1].Provenance)

	got, err := repo.GetTag(ctx, userID, "t2")
	require.NoError(t, err)
	assert.Equal(t, "AI", got.Name)

	_, err = repo.GetTag(ctx, userID, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	count, err := repo.CountTagsByUser(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	// Tags are per user.
	otherCount, err := repo.CountTagsByUser(ctx, int64(999))
	require.NoError(t, err)
	assert.Zero(t, otherCount)

	require.NoError(t, repo.DeleteTag(ctx, userID, "t1"))
	tagList, err = repo.GetTagsByUser(ctx, userID)
	require.NoError(t, err)
	require.Len(t, tagList, 1)
	assert.Equal(t, "t2", tagList[0].ID)
}

func TestBadgerRepository_TagDeletionLeavesDanglingLinkRefs(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	userID := int64(123)

	tag := domain.Tag{ID: "t1", UserID: userID, Name: "news"}
	link := domain.Link{ID: "l1", UserID: userID, URL: "https://example.com", TagIDs: []string{"t1"}}

	require.NoError(t, repo.SaveTag(ctx, tag))
	require.NoError(t, repo.SaveLink(ctx, link))

	require.NoError(t, repo.DeleteTag(ctx, userID, "t1"))

	// The link keeps the dangling id; rendering it as unknown is the
	// display layer's job.
	got, err := repo.GetLink(ctx, userID, "l1")
	require.NoError(t, err)
	assert.Equal(t, []string{"t1"}, got.TagIDs)

	_, err = repo.GetTag(ctx, userID, "t1")
	assert.ErrorIs(t, err, ErrNotFound)
}
