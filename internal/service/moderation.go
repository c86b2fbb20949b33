package service

import (
	"context"
	"regexp"
	"strings"
	"sync"
	"time"

	"hubrelay/internal/constants"
	"hubrelay/internal/errors"
	"hubrelay/internal/filter"
	"hubrelay/internal/models"
	"hubrelay/internal/retry"
	"hubrelay/pkg/classifier"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ModerationStore is the durable side of blacklist evaluation.
type ModerationStore interface {
	GetActiveInfraction(ctx context.Context, hubID, targetID string, targetType models.InfractionTarget) (*models.Infraction, error)
	ExpireInfraction(ctx context.Context, infractionID string) error
	AddInfraction(ctx context.Context, inf *models.Infraction) error
}

// Classifier is the external NSFW image classification collaborator.
type Classifier interface {
	Classify(ctx context.Context, imageURL string) ([]classifier.Prediction, error)
}

// Alerter posts moderation alerts to a hub's log channel, best-effort.
type Alerter interface {
	RuleAlert(ctx context.Context, hub *models.Hub, rule *models.BlockRule, msg *models.OriginalMessage, excerpt string)
	NSFWAlert(ctx context.Context, hub *models.Hub, msg *models.OriginalMessage, imageURL string, score float64)
}

// Verdict is the outcome of gate evaluation for one message.
type Verdict struct {
	Allowed     bool
	Reason      string
	MatchedRule *models.BlockRule
}

var invitePattern = regexp.MustCompile(`(?i)\b(?:discord\.(?:gg|com/invite)|discordapp\.com/invite)/[A-Za-z0-9-]+`)

// Gate applies blacklist, block-word and NSFW policy before broadcast.
// Checks run in order and short-circuit on the first block.
type Gate struct {
	store         ModerationStore
	classifier    Classifier
	alerts        Alerter
	nsfwThreshold float64
	logger        *logrus.Logger

	// compiled block-word expressions, keyed by rule id
	ruleCache sync.Map
}

func NewGate(store ModerationStore, cls Classifier, alerts Alerter, nsfwThreshold float64, logger *logrus.Logger) *Gate {
	if nsfwThreshold <= 0 || nsfwThreshold > 1 {
		nsfwThreshold = constants.DefaultNSFWThreshold
	}
	return &Gate{
		store:         store,
		classifier:    cls,
		alerts:        alerts,
		nsfwThreshold: nsfwThreshold,
		logger:        logger,
	}
}

// Evaluate runs the full check chain for an inbound message. attachmentURL
// is the first image attachment, or "" when there is none.
func (g *Gate) Evaluate(ctx context.Context, msg *models.OriginalMessage, hub *models.Hub, attachmentURL string) (*Verdict, error) {
	verdict, err := g.EvaluateContent(ctx, msg, hub)
	if err != nil || !verdict.Allowed {
		return verdict, err
	}

	if hub.Settings.Has(models.SettingBlockNSFW) && attachmentURL != "" {
		if blocked, score := g.checkNSFW(ctx, attachmentURL); blocked {
			g.alerts.NSFWAlert(ctx, hub, msg, attachmentURL, score)
			return &Verdict{Reason: "attachment flagged as NSFW"}, nil
		}
	}

	return &Verdict{Allowed: true}, nil
}

// EvaluateContent runs the blacklist and content checks only. The edit
// propagator uses this so an edit cannot bypass moderation that would have
// vetoed the original.
func (g *Gate) EvaluateContent(ctx context.Context, msg *models.OriginalMessage, hub *models.Hub) (*Verdict, error) {
	blocked, err := g.isBlacklisted(ctx, hub.ID, msg.AuthorID, models.TargetUser)
	if err != nil {
		return nil, err
	}
	if !blocked && msg.ServerID != "" {
		blocked, err = g.isBlacklisted(ctx, hub.ID, msg.ServerID, models.TargetServer)
		if err != nil {
			return nil, err
		}
	}
	if blocked {
		return &Verdict{Reason: "you are blacklisted from this hub"}, nil
	}

	if hub.Settings.Has(models.SettingBlockInvites) && invitePattern.MatchString(msg.Content) {
		return &Verdict{Reason: "server invites are not allowed in this hub"}, nil
	}

	return g.applyBlockRules(ctx, msg, hub)
}

// isBlacklisted reports whether an active, non-expired infraction exists.
// An infraction whose expiry has passed is flipped to expired on the spot
// and does not block.
func (g *Gate) isBlacklisted(ctx context.Context, hubID, targetID string, targetType models.InfractionTarget) (bool, error) {
	inf, err := g.store.GetActiveInfraction(ctx, hubID, targetID, targetType)
	if err != nil {
		return false, errors.NewStoreError("get infraction", err)
	}
	if inf == nil {
		return false, nil
	}
	if inf.ExpiredAt(time.Now()) {
		if err := g.store.ExpireInfraction(ctx, inf.ID); err != nil {
			g.logger.WithError(err).WithField("infractionId", inf.ID).Warn("Failed to expire infraction")
		}
		return false, nil
	}
	return true, nil
}

// applyBlockRules evaluates every block-word rule and applies the matched
// rule's full action set. The message is vetoed only if a matched rule
// carries the block action.
func (g *Gate) applyBlockRules(ctx context.Context, msg *models.OriginalMessage, hub *models.Hub) (*Verdict, error) {
	for i := range hub.BlockRules {
		rule := &hub.BlockRules[i]
		re, err := g.compiledRule(rule)
		if err != nil {
			g.logger.WithError(err).WithField("ruleId", rule.ID).Warn("Skipping uncompilable block rule")
			continue
		}
		if re == nil {
			continue
		}
		match := re.FindString(msg.Content)
		if match == "" {
			continue
		}

		excerpt := matchExcerpt(msg.Content, match)

		if rule.Actions.SendAlert {
			g.alerts.RuleAlert(ctx, hub, rule, msg, excerpt)
		}
		if rule.Actions.Blacklist {
			inf := &models.Infraction{
				ID:         uuid.NewString(),
				HubID:      hub.ID,
				TargetID:   msg.AuthorID,
				TargetType: models.TargetUser,
				Reason:     "block-word rule: " + rule.Name,
				Status:     models.InfractionActive,
			}
			if err := g.store.AddInfraction(ctx, inf); err != nil {
				g.logger.WithError(err).WithField("ruleId", rule.ID).Error("Failed to add rule blacklist entry")
			}
		}
		if rule.Actions.BlockMessage {
			return &Verdict{
				Reason:      "blocked by rule " + rule.Name,
				MatchedRule: rule,
			}, nil
		}
	}

	return &Verdict{Allowed: true}, nil
}

func (g *Gate) compiledRule(rule *models.BlockRule) (*regexp.Regexp, error) {
	if cached, ok := g.ruleCache.Load(rule.ID); ok {
		return cached.(*regexp.Regexp), nil
	}
	re, err := filter.CompileWords(rule.Words)
	if err != nil {
		return nil, err
	}
	g.ruleCache.Store(rule.ID, re)
	return re, nil
}

// InvalidateRule drops a rule's compiled expression after the rule changes.
func (g *Gate) InvalidateRule(ruleID string) {
	g.ruleCache.Delete(ruleID)
}

// checkNSFW consults the external classifier. Classifier unavailability
// degrades to allow: refusing all traffic on a sidecar outage is worse
// than missing one image.
func (g *Gate) checkNSFW(ctx context.Context, imageURL string) (bool, float64) {
	backoff := retry.NewBackoff(retry.BackoffConfig{
		InitialDelay: constants.DefaultClassifierBackoffMs * time.Millisecond,
		MaxDelay:     time.Duration(constants.DefaultMaxBackoffMs) * time.Millisecond,
		Multiplier:   2.0,
		MaxAttempts:  constants.DefaultClassifierRetryAttempts,
	})

	var predictions []classifier.Prediction
	err := backoff.Retry(ctx, func() error {
		var classifyErr error
		predictions, classifyErr = g.classifier.Classify(ctx, imageURL)
		return classifyErr
	})
	if err != nil {
		g.logger.WithError(err).Warn("NSFW classifier unavailable, allowing attachment")
		return false, 0
	}
	score := classifier.MaxUnsafeScore(predictions)
	return score >= g.nsfwThreshold, score
}

// matchExcerpt returns the matched token with enough surrounding context
// for a moderation alert, capped at a fixed length. Windowing is done on
// runes so multi-byte content is never split mid-character.
func matchExcerpt(content, match string) string {
	runes := []rune(content)
	lowered := []rune(strings.ToLower(content))
	target := []rune(strings.ToLower(match))
	if len(target) == 0 || len(lowered) != len(runes) {
		// lowering shifted rune offsets; give up on windowing
		return Excerpt(content, constants.MaxExcerptLength)
	}

	idx := -1
	for i := 0; i+len(target) <= len(lowered); i++ {
		if string(lowered[i:i+len(target)]) == string(target) {
			idx = i
			break
		}
	}
	if idx < 0 {
		return Excerpt(match, constants.MaxExcerptLength)
	}

	start := idx - 20
	if start < 0 {
		start = 0
	}
	end := idx + len(target) + 20
	if end > len(runes) {
		end = len(runes)
	}
	return Excerpt(string(runes[start:end]), constants.MaxExcerptLength)
}
