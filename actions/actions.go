// Package actions defines the per-target action categories and the Executor
// capability that performs them against the social site.
//
// Implementations own their own per-call timeouts; callers only interpret the
// returned values and errors.
package actions

import (
	"context"
	"time"
)

// Category is one stage of the fixed per-target sequence.
type Category int

const (
	// LikePosts likes a target's recent posts.
	LikePosts Category = iota
	// StoryInteraction likes and/or replies to a target's story.
	StoryInteraction
	// DirectMessage sends a direct message to a target.
	DirectMessage
)

// Categories lists every category in stage order.
var Categories = []Category{LikePosts, StoryInteraction, DirectMessage}

// String returns the string representation of the category.
func (c Category) String() string {
	switch c {
	case LikePosts:
		return "like_posts"
	case StoryInteraction:
		return "story_interaction"
	case DirectMessage:
		return "direct_message"
	default:
		return "unknown"
	}
}

// MarshalJSON implements json.Marshaler.
func (c Category) MarshalJSON() ([]byte, error) {
	return []byte(`"` + c.String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *Category) UnmarshalJSON(data []byte) error {
	parsed, ok := ParseCategory(string(trimQuotes(data)))
	if !ok {
		*c = Category(-1)
		return nil
	}
	*c = parsed
	return nil
}

// ParseCategory converts the string form back to a Category.
func ParseCategory(s string) (Category, bool) {
	for _, c := range Categories {
		if c.String() == s {
			return c, true
		}
	}
	return 0, false
}

func trimQuotes(b []byte) []byte {
	if len(b) >= 2 && b[0] == '"' && b[len(b)-1] == '"' {
		return b[1 : len(b)-1]
	}
	return b
}

// Outcome is the recorded result of one stage for one target. Outcomes are
// never modified once recorded.
type Outcome struct {
	Category Category  `json:"category"`
	Target   string    `json:"target"`
	Success  bool      `json:"success"`
	Detail   string    `json:"detail,omitempty"`
	At       time.Time `json:"at"`
}

// Flags selects which stages run for each target.
type Flags struct {
	LikePosts         bool `yaml:"like_posts" json:"like_posts"`
	LikeStories       bool `yaml:"like_stories" json:"like_stories"`
	ReplyStories      bool `yaml:"reply_stories" json:"reply_stories"`
	SendDirectMessage bool `yaml:"send_direct_message" json:"send_direct_message"`
	// PostsCount is how many recent posts LikePosts tries to like.
	PostsCount int `yaml:"posts_count" json:"posts_count"`
}

// StoryEnabled reports whether the story stage runs.
func (f Flags) StoryEnabled() bool {
	return f.LikeStories || f.ReplyStories
}

// StoryRequest describes what to do with a target's story.
type StoryRequest struct {
	Like bool
	// Reply is sent as a story reply when non-empty.
	Reply string
}

// StoryResult reports what happened on a target's story.
type StoryResult struct {
	// Found is false when the target had no active story.
	Found   bool
	Liked   bool
	Replied bool
}

// Success reports whether either sub-action succeeded.
func (r StoryResult) Success() bool {
	return r.Found && (r.Liked || r.Replied)
}

// Executor performs site actions on behalf of one logged in account.
type Executor interface {
	// Login establishes the account's session.
	Login(ctx context.Context) error
	// LikePosts tries to like up to count recent posts of target and returns how many were liked.
	LikePosts(ctx context.Context, target string, count int) (int, error)
	// InteractWithStory opens target's story and performs the requested sub-actions.
	// A missing story is reported through StoryResult.Found, not as an error.
	InteractWithStory(ctx context.Context, target string, req StoryRequest) (StoryResult, error)
	// SendDirectMessage sends message to target.
	SendDirectMessage(ctx context.Context, target, message string) (bool, error)
	// Close releases the session. It must be safe to call more than once.
	Close() error
}
