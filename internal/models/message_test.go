package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReactionTallyToggle(t *testing.T) {
	t.Run("add then remove is a round trip", func(t *testing.T) {
		tally := ReactionTally{}

		assert.True(t, tally.Toggle("👍", "user-1", true))
		assert.Equal(t, []string{"user-1"}, tally["👍"])

		assert.True(t, tally.Toggle("👍", "user-1", false))
		_, ok := tally["👍"]
		assert.False(t, ok, "empty entries must be dropped")
	})

	t.Run("duplicate add is a no-op", func(t *testing.T) {
		tally := ReactionTally{}
		assert.True(t, tally.Toggle("👍", "user-1", true))
		assert.False(t, tally.Toggle("👍", "user-1", true))
		assert.Len(t, tally["👍"], 1)
	})

	t.Run("remove of absent user is a no-op", func(t *testing.T) {
		tally := ReactionTally{"👍": {"user-1"}}
		assert.False(t, tally.Toggle("👍", "user-2", false))
		assert.False(t, tally.Toggle("😆", "user-1", false))
		assert.Equal(t, []string{"user-1"}, tally["👍"])
	})

	t.Run("removing one user keeps the rest", func(t *testing.T) {
		tally := ReactionTally{"👍": {"user-1", "user-2", "user-3"}}
		assert.True(t, tally.Toggle("👍", "user-2", false))
		assert.ElementsMatch(t, []string{"user-1", "user-3"}, tally["👍"])
	})

	t.Run("emojis are tracked independently", func(t *testing.T) {
		tally := ReactionTally{}
		tally.Toggle("👍", "user-1", true)
		tally.Toggle("😆", "user-1", true)
		assert.Len(t, tally, 2)
		tally.Toggle("👍", "user-1", false)
		assert.Len(t, tally, 1)
		assert.Equal(t, []string{"user-1"}, tally["😆"])
	})
}
