package service

import (
	"testing"

	"hubrelay/internal/constants"
	"hubrelay/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatterCompact(t *testing.T) {
	f := NewFormatter()
	msg := testMessage("hello there")
	conn := testConnection("chan-b", "hub-1")
	conn.Compact = true

	t.Run("renders author and content inline", func(t *testing.T) {
		p := f.Format(msg, conn, FormatContext{DisplayName: "Alice"})
		assert.Nil(t, p.Embed)
		assert.Equal(t, "**Alice:** hello there", p.Content)
		assert.Equal(t, "Alice", p.Username)
	})

	t.Run("appends the attachment url", func(t *testing.T) {
		p := f.Format(msg, conn, FormatContext{
			DisplayName:   "Alice",
			AttachmentURL: "https://cdn.example/pic.png",
		})
		assert.Contains(t, p.Content, "https://cdn.example/pic.png")
	})

	t.Run("falls back to the author tag", func(t *testing.T) {
		p := f.Format(msg, conn, FormatContext{})
		assert.Equal(t, "**author#1:** hello there", p.Content)
	})
}

func TestFormatterEmbed(t *testing.T) {
	f := NewFormatter()
	hub := testHub(0)
	hub.IconURL = "https://cdn.example/hub.png"
	conn := testConnection("chan-b", "hub-1")

	t.Run("carries hub identity and author header", func(t *testing.T) {
		msg := testMessage("hello there")
		p := f.Format(msg, conn, FormatContext{Hub: hub, DisplayName: "Alice"})

		require.NotNil(t, p.Embed)
		assert.Equal(t, "Alice", p.Embed.AuthorName)
		assert.Equal(t, "hello there", p.Embed.Description)
		assert.Equal(t, hub.Name, p.Embed.FooterText)
		assert.Equal(t, hub.Name, p.Username)
		assert.Equal(t, hub.IconURL, p.AvatarURL)
	})

	t.Run("missing avatar falls back to the default", func(t *testing.T) {
		msg := testMessage("hi")
		p := f.Format(msg, conn, FormatContext{})
		require.NotNil(t, p.Embed)
		assert.Equal(t, constants.DefaultAvatarURL, p.Embed.AuthorIconURL)
	})

	t.Run("attachment becomes the embed image", func(t *testing.T) {
		msg := testMessage("look")
		p := f.Format(msg, conn, FormatContext{Hub: hub, AttachmentURL: "https://cdn.example/pic.png"})
		assert.Equal(t, "https://cdn.example/pic.png", p.Embed.ImageURL)
	})

	t.Run("reply reference renders with jump link", func(t *testing.T) {
		msg := testMessage("agreed")
		p := f.Format(msg, conn, FormatContext{
			Hub: hub,
			ReplyFor: func(c *models.Connection) *ReplyRef {
				return &ReplyRef{AuthorTag: "bob#2", Excerpt: "original text", JumpLink: "https://discord.com/channels/1/2/3"}
			},
		})
		require.Len(t, p.Embed.Fields, 1)
		assert.Equal(t, "Replying to bob#2", p.Embed.Fields[0].Name)
		assert.Contains(t, p.Embed.Fields[0].Value, "https://discord.com/channels/1/2/3")
	})

	t.Run("reaction summary renders as a field", func(t *testing.T) {
		msg := testMessage("popular")
		p := f.Format(msg, conn, FormatContext{Hub: hub, ReactionSummary: "👍 2"})
		require.Len(t, p.Embed.Fields, 1)
		assert.Equal(t, "Reactions", p.Embed.Fields[0].Name)
		assert.Equal(t, "👍 2", p.Embed.Fields[0].Value)
	})
}

func TestFormatterProfanityChoice(t *testing.T) {
	f := NewFormatter()
	msg := testMessage("some damn text")
	fc := FormatContext{Censored: "some **** text"}

	filtered := testConnection("chan-b", "hub-1")
	filtered.ProfanityFilter = true
	p := f.Format(msg, filtered, fc)
	assert.Equal(t, "some **** text", p.Embed.Description)

	unfiltered := testConnection("chan-c", "hub-1")
	p = f.Format(msg, unfiltered, fc)
	assert.Equal(t, "some damn text", p.Embed.Description)
}

func TestRedactLinks(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "single link",
			in:   "see https://example.com/page for more",
			want: "see `[link hidden]` for more",
		},
		{
			name: "multiple links",
			in:   "http://a.example and https://b.example",
			want: "`[link hidden]` and `[link hidden]`",
		},
		{
			name: "no links untouched",
			in:   "nothing to redact",
			want: "nothing to redact",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RedactLinks(tt.in))
		})
	}
}

func TestRenderReactionSummary(t *testing.T) {
	t.Run("empty tally renders nothing", func(t *testing.T) {
		assert.Equal(t, "", RenderReactionSummary(models.ReactionTally{}))
		assert.Equal(t, "", RenderReactionSummary(nil))
	})

	t.Run("stable order with counts", func(t *testing.T) {
		tally := models.ReactionTally{
			"b": {"u1"},
			"a": {"u1", "u2"},
		}
		assert.Equal(t, "a 2 · b 1", RenderReactionSummary(tally))
	})
}

func TestExcerpt(t *testing.T) {
	t.Run("short content unchanged", func(t *testing.T) {
		assert.Equal(t, "short", Excerpt("short", 10))
	})

	t.Run("long content truncated with ellipsis", func(t *testing.T) {
		got := Excerpt("abcdefghij", 5)
		assert.Equal(t, "abcde…", got)
	})

	t.Run("newlines flattened", func(t *testing.T) {
		assert.Equal(t, "one two", Excerpt("one\ntwo", 10))
	})
}
