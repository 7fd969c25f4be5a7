package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"uitforum/internal/docstore"
	"uitforum/internal/models"
)

var fixedNow = time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

func put(t *testing.T, s docstore.Store, path string, v interface{}) {
	t.Helper()
	data, err := models.Encode(v)
	require.NoError(t, err)
	require.NoError(t, s.Set(context.Background(), path, data))
}

func get(t *testing.T, s docstore.Store, path string, v interface{}) {
	t.Helper()
	doc, err := s.Get(context.Background(), path)
	require.NoError(t, err)
	require.NoError(t, models.Decode(doc, v))
}

func counter(t *testing.T, s docstore.Store, path, field string) float64 {
	t.Helper()
	doc, err := s.Get(context.Background(), path)
	require.NoError(t, err)
	v, _ := doc.Data[field].(float64)
	return v
}

func seedCommunity(t *testing.T, s docstore.Store, communityID, name string) {
	t.Helper()
	put(t, s, models.CommunityPath(communityID), models.Community{Name: name, CreatedAt: fixedNow})
}

func seedUser(t *testing.T, s docstore.Store, userID, name string) models.User {
	t.Helper()
	u := models.User{Name: name, Avatar: "🐼", Department: "SE", CreatedAt: fixedNow}
	put(t, s, models.UserPath(userID), u)
	return u
}
