package docstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPathHelpers(t *testing.T) {
	assert.Equal(t, "Community/a", Clean("/Community/a/"))
	assert.Equal(t, "Community/a/Post/p", Join("/Community/a", "Post/", "", "p"))

	assert.True(t, IsDocumentPath("/Community/a"))
	assert.True(t, IsDocumentPath("Community/a/Post/p"))
	assert.False(t, IsDocumentPath("Community"))
	assert.False(t, IsDocumentPath("Community/a/Post"))
	assert.False(t, IsDocumentPath(""))

	collection, id := Split("Community/a/Post/p")
	assert.Equal(t, "Community/a/Post", collection)
	assert.Equal(t, "p", id)

	collection, id = Split("Community")
	assert.Equal(t, "", collection)
	assert.Equal(t, "Community", id)

	assert.Equal(t, "Post", CollectionID("Community/a/Post"))
}
