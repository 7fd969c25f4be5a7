package docstore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newGormStore 启动一个临时 PostgreSQL 容器；没有 Docker 时跳过
func newGormStore(t *testing.T) *GormStore {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("forum"),
		tcpostgres.WithUsername("forum"),
		tcpostgres.WithPassword("forum"),
		tcpostgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err)

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	conn, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&Document{}))
	return NewGormStore(conn)
}

func TestGormStore(t *testing.T) {
	s := newGormStore(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	require.NoError(t, s.Ping(ctx))

	post := "Community/c1/Post/p1"
	require.NoError(t, s.Create(ctx, "Community/c1", map[string]interface{}{"name": "UIT", "department": "SE"}))
	assert.ErrorIs(t, s.Create(ctx, "Community/c1", nil), ErrAlreadyExists)
	require.NoError(t, s.Create(ctx, post, map[string]interface{}{"authorID": "u1", "title": "hello"}))
	require.NoError(t, s.Create(ctx, post+"/Comment/a", map[string]interface{}{"authorID": "u1"}))
	require.NoError(t, s.Create(ctx, post+"/Comment/b", map[string]interface{}{"authorID": "u2", "parentCommentID": "a"}))
	require.NoError(t, s.Set(ctx, post+"/Vote/u2", map[string]interface{}{"value": 1}))

	t.Run("get and update", func(t *testing.T) {
		require.NoError(t, s.Update(ctx, post, map[string]interface{}{"title": "edited", "isAnnouncement": true}))
		doc, err := s.Get(ctx, "/"+post)
		require.NoError(t, err)
		assert.Equal(t, "edited", doc.Data["title"])
		assert.Equal(t, "u1", doc.Data["authorID"])
		assert.Equal(t, true, doc.Data["isAnnouncement"])

		assert.ErrorIs(t, s.Update(ctx, "Community/c1/Post/missing", map[string]interface{}{"a": 1}), ErrNotFound)
		_, err = s.Get(ctx, "Community/c1/Post/missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("set overwrites", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, post+"/Vote/u2", map[string]interface{}{"value": -1}))
		doc, err := s.Get(ctx, post+"/Vote/u2")
		require.NoError(t, err)
		assert.Equal(t, map[string]interface{}{"value": float64(-1)}, doc.Data)
	})

	t.Run("concurrent increments", func(t *testing.T) {
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				assert.NoError(t, s.Increment(ctx, "Community/c1", "totalPost", 1))
			}()
		}
		wg.Wait()
		require.NoError(t, s.Increment(ctx, "Community/c1", "totalPost", -5))

		doc, err := s.Get(ctx, "Community/c1")
		require.NoError(t, err)
		assert.Equal(t, float64(15), doc.Data["totalPost"])
		assert.ErrorIs(t, s.Increment(ctx, "Community/missing", "totalPost", 1), ErrNotFound)
	})

	t.Run("list query collections", func(t *testing.T) {
		comments, err := s.List(ctx, post+"/Comment")
		require.NoError(t, err)
		require.Len(t, comments, 2)
		assert.Equal(t, "a", comments[0].ID())

		replies, err := s.Query(ctx, "Comment", "parentCommentID", "a")
		require.NoError(t, err)
		require.Len(t, replies, 1)
		assert.Equal(t, post+"/Comment/b", replies[0].Path)

		communities, err := s.Query(ctx, "Community", "department", "SE")
		require.NoError(t, err)
		require.Len(t, communities, 1)

		collections, err := s.Collections(ctx, post)
		require.NoError(t, err)
		assert.Equal(t, []string{"Comment", "Vote"}, collections)
	})

	t.Run("descendants of missing documents", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, post+"/Comment/gone/Vote/u1", map[string]interface{}{"value": 1}))
		require.NoError(t, s.Set(ctx, post+"/Comment/gone/Comment/r", map[string]interface{}{"content": "x"}))

		ids, err := s.DocumentIDs(ctx, post+"/Comment")
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b", "gone"}, ids)

		collections, err := s.Collections(ctx, post+"/Comment/gone")
		require.NoError(t, err)
		assert.Equal(t, []string{"Comment", "Vote"}, collections)

		require.NoError(t, s.Delete(ctx, post+"/Comment/gone/Vote/u1"))
		require.NoError(t, s.Delete(ctx, post+"/Comment/gone/Comment/r"))
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, s.Delete(ctx, post+"/Comment/b"))
		require.NoError(t, s.Delete(ctx, post+"/Comment/b"))
		_, err := s.Get(ctx, post+"/Comment/b")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}
