package models

import "time"

// HubSettings is a plain bit vector of per-hub behavior toggles.
type HubSettings uint16

const (
	SettingReactions HubSettings = 1 << iota
	SettingHideLinks
	SettingSpamFilter
	SettingBlockInvites
	SettingUseNicknames
	SettingBlockNSFW
)

func (s HubSettings) Has(flag HubSettings) bool { return s&flag != 0 }

func (s HubSettings) Add(flag HubSettings) HubSettings { return s | flag }

func (s HubSettings) Remove(flag HubSettings) HubSettings { return s &^ flag }

func (s HubSettings) Toggle(flag HubSettings) HubSettings { return s ^ flag }

// ModeratorRole distinguishes hub staff permission levels.
type ModeratorRole string

const (
	RoleModerator ModeratorRole = "moderator"
	RoleManager   ModeratorRole = "manager"
)

type HubModerator struct {
	UserID string        `db:"user_id"`
	HubID  string        `db:"hub_id"`
	Role   ModeratorRole `db:"role"`
}

// BlockRuleActions is the action set applied when a block-word rule matches.
type BlockRuleActions struct {
	BlockMessage bool `json:"blockMessage"`
	SendAlert    bool `json:"sendAlert"`
	Blacklist    bool `json:"blacklist"`
}

// BlockRule is a hub-scoped word list with an action set. The id is stable
// so alerts can reference the rule that fired.
type BlockRule struct {
	ID        string           `db:"id"`
	HubID     string           `db:"hub_id"`
	Name      string           `db:"name"`
	Words     []string         `db:"words"`
	Actions   BlockRuleActions `db:"actions"`
	CreatedAt time.Time        `db:"created_at"`
}

// Hub is a named relay group of connections.
type Hub struct {
	ID           string         `db:"id"`
	Name         string         `db:"name"`
	OwnerID      string         `db:"owner_id"`
	IconURL      string         `db:"icon_url"`
	Settings     HubSettings    `db:"settings"`
	LogChannelID *string        `db:"log_channel_id"`
	Moderators   []HubModerator `db:"-"`
	BlockRules   []BlockRule    `db:"-"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
}
