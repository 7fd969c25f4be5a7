package services

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"uitforum/internal/docstore"
	"uitforum/internal/models"
)

func TestProfilePropagation(t *testing.T) {
	ctx := context.Background()
	s := docstore.NewMemoryStore()
	logger, _ := test.NewNullLogger()
	svc := NewProfileService(s, logger)

	before := models.User{Name: "Old", Avatar: "🐼", Department: "SE"}
	after := models.User{Name: "New", Avatar: "🦊", Department: "SE", Email: "new@uit.edu.vn"}
	old := before.Snapshot()

	put(t, s, models.PostPath("c1", "p1"), models.Post{AuthorID: "u1", Author: old, Title: "mine"})
	put(t, s, models.PostPath("c2", "p2"), models.Post{AuthorID: "u1", Author: old, Title: "mine too"})
	put(t, s, models.PostPath("c1", "p3"), models.Post{AuthorID: "u2", Author: models.AuthorSnapshot{Name: "Other"}})
	put(t, s, models.CommentPath("c1", "p3", "k1"), models.Comment{AuthorID: "u1", Author: old})
	put(t, s, docstore.Join(models.MemberApprovalCollection("c1"), "r1"), models.MemberApproval{UserID: "u1", User: old, Status: models.ApprovalPending})
	put(t, s, docstore.Join(models.MemberApprovalCollection("c2"), "r2"), models.MemberApproval{UserID: "u1", User: old, Status: models.ApprovalApproved})

	require.NoError(t, svc.UpdatePostsAndComments(ctx, "u1", &before, &after))
	require.NoError(t, svc.UpdateMemberApprovals(ctx, "u1", &before, &after))

	want := after.Snapshot()
	for _, path := range []string{models.PostPath("c1", "p1"), models.PostPath("c2", "p2")} {
		var p models.Post
		get(t, s, path, &p)
		assert.Equal(t, want, p.Author, path)
	}
	var c models.Comment
	get(t, s, models.CommentPath("c1", "p3", "k1"), &c)
	assert.Equal(t, want, c.Author)

	var other models.Post
	get(t, s, models.PostPath("c1", "p3"), &other)
	assert.Equal(t, "Other", other.Author.Name)

	var pending, approved models.MemberApproval
	get(t, s, docstore.Join(models.MemberApprovalCollection("c1"), "r1"), &pending)
	get(t, s, docstore.Join(models.MemberApprovalCollection("c2"), "r2"), &approved)
	assert.Equal(t, want, pending.User)
	assert.Equal(t, old, approved.User)
}

func TestProfileUnchangedIsNoop(t *testing.T) {
	ctx := context.Background()
	s := docstore.NewMemoryStore()
	logger, _ := test.NewNullLogger()
	svc := NewProfileService(s, logger)

	before := models.User{Name: "Same", Email: "a@uit.edu.vn"}
	after := models.User{Name: "Same", Email: "b@uit.edu.vn"}
	assert.False(t, ProfileChanged(&before, &after))

	put(t, s, models.PostPath("c1", "p1"), models.Post{AuthorID: "u1", Author: models.AuthorSnapshot{Name: "Stale"}})
	require.NoError(t, svc.UpdatePostsAndComments(ctx, "u1", &before, &after))

	var p models.Post
	get(t, s, models.PostPath("c1", "p1"), &p)
	assert.Equal(t, "Stale", p.Author.Name)
}
