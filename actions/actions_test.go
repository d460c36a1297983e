package actions

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCategory_JSON(t *testing.T) {
	out := Outcome{Category: StoryInteraction, Target: "alice", Success: true}
	data, err := json.Marshal(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"category":"story_interaction"`)

	var back Outcome
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, StoryInteraction, back.Category)
}

func TestParseCategory(t *testing.T) {
	for _, c := range Categories {
		got, ok := ParseCategory(c.String())
		require.True(t, ok)
		assert.Equal(t, c, got)
	}
	_, ok := ParseCategory("follow")
	assert.False(t, ok)
}

func TestStoryResult_Success(t *testing.T) {
	assert.False(t, StoryResult{}.Success())
	assert.False(t, StoryResult{Found: true}.Success())
	assert.True(t, StoryResult{Found: true, Liked: true}.Success())
	assert.True(t, StoryResult{Found: true, Replied: true}.Success())
}

func TestFlags_StoryEnabled(t *testing.T) {
	assert.False(t, Flags{LikePosts: true}.StoryEnabled())
	assert.True(t, Flags{ReplyStories: true}.StoryEnabled())
	assert.True(t, Flags{LikeStories: true}.StoryEnabled())
}
