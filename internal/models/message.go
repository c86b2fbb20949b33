package models

import "time"

// ReactionTally maps a reaction symbol to the set of user ids that added it.
// The value slice is treated as a set; membership is toggled, not counted.
type ReactionTally map[string][]string

// Toggle adds or removes a user from an emoji's set and reports whether the
// tally changed.
func (t ReactionTally) Toggle(emoji, userID string, add bool) bool {
	users := t[emoji]
	idx := -1
	for i, u := range users {
		if u == userID {
			idx = i
			break
		}
	}
	if add {
		if idx >= 0 {
			return false
		}
		t[emoji] = append(users, userID)
		return true
	}
	if idx < 0 {
		return false
	}
	users = append(users[:idx], users[idx+1:]...)
	if len(users) == 0 {
		delete(t, emoji)
	} else {
		t[emoji] = users
	}
	return true
}

// OriginalMessage is the canonical record of one inbound message; every
// relayed copy in the hub derives from it.
type OriginalMessage struct {
	ID        string        `db:"id"`
	AuthorID  string        `db:"author_id"`
	AuthorTag string        `db:"author_tag"`
	AvatarURL string        `db:"author_avatar"`
	HubID     string        `db:"hub_id"`
	ChannelID string        `db:"channel_id"`
	ServerID  string        `db:"server_id"`
	Content   string        `db:"content"`
	Timestamp time.Time     `db:"timestamp"`
	Reactions ReactionTally `db:"reactions"`
}

// Broadcast is one delivered copy of an OriginalMessage in one target
// channel. At most one exists per (original, channel) pair.
type Broadcast struct {
	OriginalID string  `db:"original_id"`
	ChannelID  string  `db:"channel_id"`
	MessageID  string  `db:"message_id"`
	ThreadID   *string `db:"thread_id"`
}

// InboundMessage is the gateway-side view of a message event before the
// relay has resolved its connection and hub.
type InboundMessage struct {
	MessageID   string
	ChannelID   string
	ServerID    string
	AuthorID    string
	AuthorTag   string
	AuthorNick  string
	AvatarURL   string
	Content     string
	Attachments []string
	RepliedToID string
	Timestamp   time.Time
}
