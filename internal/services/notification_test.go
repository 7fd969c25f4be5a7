package services

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"uitforum/internal/docstore"
	"uitforum/internal/models"
)

func notificationsOf(t *testing.T, s docstore.Store, userID string) []models.Notification {
	t.Helper()
	docs, err := s.List(context.Background(), models.NotificationCollection(userID))
	require.NoError(t, err)
	out := make([]models.Notification, 0, len(docs))
	for _, doc := range docs {
		var n models.Notification
		require.NoError(t, models.Decode(doc, &n))
		out = append(out, n)
	}
	return out
}

func newNotificationFixture(t *testing.T) (*docstore.MemoryStore, *NotificationService) {
	t.Helper()
	s := docstore.NewMemoryStore()
	logger, _ := test.NewNullLogger()
	svc, err := NewNotificationService(s, logger)
	require.NoError(t, err)
	svc.now = func() time.Time { return fixedNow }

	seedCommunity(t, s, "c1", "UIT")
	author := seedUser(t, s, "a", "An")
	put(t, s, models.PostPath("c1", "p1"), models.Post{
		CommunityID: "c1", AuthorID: "a", Author: author.Snapshot(), Title: "Hello", Type: models.PostTypeNormal,
	})
	for _, id := range []string{"a", "c", "f"} {
		put(t, s, docstore.Join(models.FollowerCollection("c1", "p1"), id), models.Follower{UserID: id})
	}
	return s, svc
}

func TestCommentNotifications(t *testing.T) {
	ctx := context.Background()
	s, svc := newNotificationFixture(t)

	put(t, s, models.CommentPath("c1", "p1", "k1"), models.Comment{
		AuthorID: "c", Author: models.AuthorSnapshot{Name: "Chi", Avatar: "🦊"}, Content: "nice",
	})
	require.NoError(t, svc.CommentCreated(ctx, "c1", "p1", "k1"))

	toAuthor := notificationsOf(t, s, "a")
	require.Len(t, toAuthor, 1)
	n := toAuthor[0]
	assert.Equal(t, models.NotificationTypeCommentPost, n.Type)
	assert.Equal(t, models.NotificationCommunity{CommunityID: "c1", Name: "UIT"}, n.Community)
	assert.Equal(t, models.NotificationPost{PostID: "p1", Title: "Hello"}, n.Post)
	assert.Equal(t, models.NotificationActor{UserID: "c", Name: "Chi", Avatar: "🦊"}, n.TriggeredBy)
	assert.False(t, n.IsRead)
	assert.True(t, fixedNow.Equal(n.CreatedAt))

	toFollower := notificationsOf(t, s, "f")
	require.Len(t, toFollower, 1)
	assert.Equal(t, models.NotificationTypeCommentFollowedPost, toFollower[0].Type)

	// 评论者自己不收到通知
	assert.Empty(t, notificationsOf(t, s, "c"))
}

func TestReplyNotifications(t *testing.T) {
	ctx := context.Background()
	s, svc := newNotificationFixture(t)

	put(t, s, models.CommentPath("c1", "p1", "k1"), models.Comment{AuthorID: "c", Content: "first"})
	put(t, s, models.CommentPath("c1", "p1", "k2"), models.Comment{
		AuthorID: "f", Author: models.AuthorSnapshot{Name: "Phuc"}, Content: "reply", ParentCommentID: "k1",
	})
	require.NoError(t, svc.CommentCreated(ctx, "c1", "p1", "k2"))

	toParent := notificationsOf(t, s, "c")
	require.Len(t, toParent, 1)
	assert.Equal(t, models.NotificationTypeReplyComment, toParent[0].Type)
	assert.Equal(t, "Phuc", toParent[0].TriggeredBy.Name)

	// 帖子作者作为关注者收到类型 5，而不是类型 1
	toAuthor := notificationsOf(t, s, "a")
	require.Len(t, toAuthor, 1)
	assert.Equal(t, models.NotificationTypeCommentFollowedPost, toAuthor[0].Type)

	assert.Empty(t, notificationsOf(t, s, "f"))
}

func TestCommentNotificationFallsBackToUserProfile(t *testing.T) {
	ctx := context.Background()
	s, svc := newNotificationFixture(t)
	seedUser(t, s, "x", "Xuan")

	put(t, s, models.CommentPath("c1", "p1", "k1"), models.Comment{AuthorID: "x", Content: "no snapshot"})
	require.NoError(t, svc.CommentCreated(ctx, "c1", "p1", "k1"))

	toAuthor := notificationsOf(t, s, "a")
	require.Len(t, toAuthor, 1)
	assert.Equal(t, "Xuan", toAuthor[0].TriggeredBy.Name)
}

func TestCommentNotificationMissingInput(t *testing.T) {
	ctx := context.Background()
	s, svc := newNotificationFixture(t)

	require.NoError(t, svc.CommentCreated(ctx, "c1", "p1", "missing"))
	put(t, s, models.CommentPath("c1", "p404", "k1"), models.Comment{AuthorID: "c"})
	require.NoError(t, svc.CommentCreated(ctx, "c1", "p404", "k1"))
	assert.Empty(t, notificationsOf(t, s, "a"))
}

func TestPostNotifications(t *testing.T) {
	ctx := context.Background()
	s, svc := newNotificationFixture(t)

	for _, id := range []string{"a", "s1", "s2"} {
		put(t, s, models.SubscriptionPath("c1", id), models.Subscription{UserID: id})
	}
	put(t, s, models.MemberPath("c1", "a"), models.Member{UserID: "a", Role: models.RoleAdmin})
	put(t, s, models.MemberPath("c1", "m1"), models.Member{UserID: "m1", Role: models.RoleMember})
	put(t, s, models.MemberPath("c1", "adm"), models.Member{UserID: "adm", Role: models.RoleAdmin})

	t.Run("regular post goes to subscribers", func(t *testing.T) {
		require.NoError(t, svc.PostCreated(ctx, "c1", "p1"))
		for _, id := range []string{"s1", "s2"} {
			got := notificationsOf(t, s, id)
			require.Len(t, got, 1, id)
			assert.Equal(t, models.NotificationTypeNewPost, got[0].Type)
			assert.Equal(t, "An", got[0].TriggeredBy.Name)
		}
		assert.Empty(t, notificationsOf(t, s, "a"))
		assert.Empty(t, notificationsOf(t, s, "m1"))
	})

	t.Run("announcement goes to members", func(t *testing.T) {
		put(t, s, models.PostPath("c1", "p2"), models.Post{AuthorID: "a", Title: "Notice", IsAnnouncement: true})
		require.NoError(t, svc.PostCreated(ctx, "c1", "p2"))
		for _, id := range []string{"m1", "adm"} {
			got := notificationsOf(t, s, id)
			require.Len(t, got, 1, id)
			assert.Equal(t, models.NotificationTypeAnnouncement, got[0].Type)
			assert.Equal(t, "Notice", got[0].Post.Title)
		}
		assert.Empty(t, notificationsOf(t, s, "a"))
	})

	t.Run("join request goes to admins", func(t *testing.T) {
		put(t, s, models.PostPath("c1", "p3"), models.Post{AuthorID: "m2", Title: "join", Type: models.PostTypeMemberApproval})
		require.NoError(t, svc.PostCreated(ctx, "c1", "p3"))
		assert.Len(t, notificationsOf(t, s, "a"), 1)
		assert.Len(t, notificationsOf(t, s, "adm"), 2)
		assert.Len(t, notificationsOf(t, s, "m1"), 1)
	})
}

func TestCommunityNameIsCached(t *testing.T) {
	ctx := context.Background()
	s, svc := newNotificationFixture(t)
	put(t, s, models.SubscriptionPath("c1", "s1"), models.Subscription{UserID: "s1"})

	require.NoError(t, svc.PostCreated(ctx, "c1", "p1"))
	require.NoError(t, s.Update(ctx, models.CommunityPath("c1"), map[string]interface{}{"name": "UIT 2"}))

	require.NoError(t, svc.PostCreated(ctx, "c1", "p1"))
	svc.ForgetCommunity("c1")
	require.NoError(t, svc.PostCreated(ctx, "c1", "p1"))

	got := notificationsOf(t, s, "s1")
	require.Len(t, got, 3)
	names := map[string]int{}
	for _, n := range got {
		names[n.Community.Name]++
	}
	assert.Equal(t, map[string]int{"UIT": 2, "UIT 2": 1}, names)
}

func TestNewNotificationServiceReturnsCacheError(t *testing.T) {
	defer func(size int) { communityNameCacheSize = size }(communityNameCacheSize)
	communityNameCacheSize = 0

	logger, _ := test.NewNullLogger()
	svc, err := NewNotificationService(docstore.NewMemoryStore(), logger)
	assert.ErrorContains(t, err, "community name cache")
	assert.Nil(t, svc)
}
