package services

import (
	"context"

	"github.com/harshite737-crypto/haste/internal/model"
	"github.com/harshite737-crypto/haste/internal/quota"
	"github.com/harshite737-crypto/haste/internal/session"
)

// UsageView is today's consumption of one identity against its plan.
type UsageView struct {
	Identity          model.Identity `json:"identity"`
	Plan              string         `json:"plan"`
	Owner             bool           `json:"owner"`
	Day               string         `json:"day"`
	Messages          int            `json:"messages"`
	Media             int            `json:"media"`
	MessagesLimit     int            `json:"messagesLimit"`
	MediaLimit        int            `json:"mediaLimit"`
	MessagesRemaining int            `json:"messagesRemaining"`
	MediaRemaining    int            `json:"mediaRemaining"`
}

// UsageService reports counters without consuming quota.
type UsageService struct {
	accounts *AccountService
	quota    *quota.Manager
	grants   *session.Grants
}

func NewUsageService(accounts *AccountService, q *quota.Manager, grants *session.Grants) *UsageService {
	return &UsageService{accounts: accounts, quota: q, grants: grants}
}

// Usage returns the view for id. Limits and remainders are model.Unbounded
// for the unlimited plan and for owner grants.
func (s *UsageService) Usage(ctx context.Context, id model.Identity) (*UsageView, error) {
	plan, err := s.accounts.PlanFor(ctx, id)
	if err != nil {
		return nil, err
	}
	c, err := s.quota.Usage(ctx, id)
	if err != nil {
		return nil, err
	}
	v := &UsageView{
		Identity: id,
		Plan:     plan.Name,
		Owner:    s.grants.Active(id),
		Day:      c.Day,
		Messages: c.MessageCount,
		Media:    c.MediaCount,
	}
	v.MessagesLimit, v.MessagesRemaining = limits(plan.MessagesPerDay, c.MessageCount, v.Owner)
	v.MediaLimit, v.MediaRemaining = limits(plan.MediaPerDay, c.MediaCount, v.Owner)
	return v, nil
}

func limits(limit, used int, owner bool) (int, int) {
	if owner || limit == model.Unbounded {
		return model.Unbounded, model.Unbounded
	}
	return limit, max(limit-used, 0)
}
