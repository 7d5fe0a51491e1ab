package model

import "time"

// Identity is the stable key of a caller: an anonymous cookie id, an account
// id, or the literal OwnerIdentity.
type Identity string

// OwnerIdentity is the identity used by tokens carrying the owner role.
const OwnerIdentity Identity = "owner"

// Unbounded marks a plan limit that never blocks.
const Unbounded = -1

// Plan names.
const (
	PlanFree      = "free"
	PlanTier2     = "tier2"
	PlanTier3     = "tier3"
	PlanUnlimited = "unlimited"
)

// Plan bundles the daily limits and the artificial response delay of a tier.
type Plan struct {
	Name           string        `json:"name" yaml:"name"`
	MessagesPerDay int           `json:"messagesPerDay" yaml:"messagesPerDay"`
	MediaPerDay    int           `json:"mediaPerDay" yaml:"mediaPerDay"`
	DelayMin       time.Duration `json:"delayMin" yaml:"delayMin"`
	DelayMax       time.Duration `json:"delayMax" yaml:"delayMax"`
}

// IsUnlimited reports whether the plan is the unlimited tier.
func (p Plan) IsUnlimited() bool { return p.Name == PlanUnlimited }

// Limit returns the daily limit for kind.
func (p Plan) Limit(kind UsageKind) int {
	if kind == KindMedia {
		return p.MediaPerDay
	}
	return p.MessagesPerDay
}

// UsageKind selects which daily counter a request consumes.
type UsageKind string

const (
	KindMessage UsageKind = "message"
	KindMedia   UsageKind = "media"
)

// DayLayout formats UsageCounter.Day.
const DayLayout = "2006-01-02"

// UsageCounter holds today's consumption for one identity.
type UsageCounter struct {
	Day          string `json:"day"`
	MessageCount int    `json:"messageCount"`
	MediaCount   int    `json:"mediaCount"`
}

// Count returns the counter value for kind.
func (c *UsageCounter) Count(kind UsageKind) int {
	if kind == KindMedia {
		return c.MediaCount
	}
	return c.MessageCount
}

// Increment bumps the counter for kind by one.
func (c *UsageCounter) Increment(kind UsageKind) {
	if kind == KindMedia {
		c.MediaCount++
		return
	}
	c.MessageCount++
}

// RollOver resets both counts when the counter belongs to a day other than today.
// It returns true when a reset happened.
func (c *UsageCounter) RollOver(today string) bool {
	if c.Day == today {
		return false
	}
	c.Day = today
	c.MessageCount = 0
	c.MediaCount = 0
	return true
}

// MemoryRecord is the ordered list of facts remembered for an identity.
// Facts are never deduplicated or pruned.
type MemoryRecord struct {
	Identity Identity `json:"identity"`
	Facts    []string `json:"facts"`
}

// Account binds an identity to its subscription plan.
type Account struct {
	Identity   Identity  `json:"identity"`
	Plan       string    `json:"plan"`
	UpdateTime time.Time `json:"updateTime"`
}

// CompletionRequest is assembled fresh for every provider call.
type CompletionRequest struct {
	Identity      Identity
	Text          string
	SystemContext string
}

// MediaKind selects the media generator.
type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaVideo MediaKind = "video"
)
