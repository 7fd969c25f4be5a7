package services

import (
	"context"
	"sync"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"uitforum/internal/docstore"
	"uitforum/internal/models"
)

func TestPostCounters(t *testing.T) {
	ctx := context.Background()
	s := docstore.NewMemoryStore()
	logger, _ := test.NewNullLogger()
	svc := NewCounterService(s, logger)
	seedCommunity(t, s, "c1", "UIT")
	path := models.CommunityPath("c1")

	require.NoError(t, svc.PostCreated(ctx, "c1"))
	assert.Equal(t, float64(1), counter(t, s, path, FieldTotalPost))
	assert.Equal(t, float64(1), counter(t, s, path, FieldTotalNewPost))

	require.NoError(t, svc.PostDeleted(ctx, "c1"))
	assert.Equal(t, float64(0), counter(t, s, path, FieldTotalPost))
	assert.Equal(t, float64(1), counter(t, s, path, FieldTotalNewPost))
}

func TestConcurrentPostCreateAndDeleteNetZero(t *testing.T) {
	ctx := context.Background()
	s := docstore.NewMemoryStore()
	logger, _ := test.NewNullLogger()
	svc := NewCounterService(s, logger)
	seedCommunity(t, s, "c1", "UIT")

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			assert.NoError(t, svc.PostCreated(ctx, "c1"))
		}()
		go func() {
			defer wg.Done()
			assert.NoError(t, svc.PostDeleted(ctx, "c1"))
		}()
	}
	wg.Wait()
	assert.Equal(t, float64(0), counter(t, s, models.CommunityPath("c1"), FieldTotalPost))
}

func TestCommentCounters(t *testing.T) {
	ctx := context.Background()
	s := docstore.NewMemoryStore()
	logger, _ := test.NewNullLogger()
	svc := NewCounterService(s, logger)

	postPath := models.PostPath("c1", "p1")
	parentPath := models.CommentPath("c1", "p1", "parent")
	put(t, s, postPath, models.Post{Title: "t"})
	put(t, s, parentPath, models.Comment{Content: "parent"})

	top := &models.Comment{Content: "top"}
	reply := &models.Comment{Content: "reply", ParentCommentID: "parent"}

	require.NoError(t, svc.CommentCreated(ctx, "c1", "p1", top))
	require.NoError(t, svc.CommentCreated(ctx, "c1", "p1", reply))
	assert.Equal(t, float64(2), counter(t, s, postPath, FieldTotalComments))
	assert.Equal(t, float64(1), counter(t, s, parentPath, FieldTotalReplies))

	require.NoError(t, svc.CommentDeleted(ctx, "c1", "p1", reply))
	assert.Equal(t, float64(1), counter(t, s, postPath, FieldTotalComments))
	assert.Equal(t, float64(0), counter(t, s, parentPath, FieldTotalReplies))
}

func TestCounterTargetGoneIsSkipped(t *testing.T) {
	ctx := context.Background()
	s := docstore.NewMemoryStore()
	logger, hook := test.NewNullLogger()
	svc := NewCounterService(s, logger)

	// 帖子已被删除：评论的级联删除触发计数更新时直接跳过
	reply := &models.Comment{ParentCommentID: "gone"}
	assert.NoError(t, svc.CommentDeleted(ctx, "c1", "missing", reply))
	assert.NoError(t, svc.PostDeleted(ctx, "missing"))
	assert.Equal(t, 0, s.Len())
	require.NotEmpty(t, hook.AllEntries())
	assert.Equal(t, "counter target is gone, skipping", hook.LastEntry().Message)
}

func TestMemberAdded(t *testing.T) {
	ctx := context.Background()
	s := docstore.NewMemoryStore()
	logger, _ := test.NewNullLogger()
	svc := NewCounterService(s, logger)
	seedCommunity(t, s, "c1", "UIT")

	require.NoError(t, svc.MemberAdded(ctx, "c1"))
	require.NoError(t, svc.MemberAdded(ctx, "c1"))
	assert.Equal(t, float64(2), counter(t, s, models.CommunityPath("c1"), FieldTotalMembers))
}
