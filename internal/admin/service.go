// Package admin serves the application review workflow.
package admin

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/elskow/tourfurr/internal/account"
	"github.com/elskow/tourfurr/internal/storage"
)

var (
	ErrInvalidStatus   = errors.New("invalid status filter")
	ErrInvalidDecision = errors.New("decision must be approved or rejected")
	ErrNotVerified     = errors.New("applicant has not verified their email")
)

// DecisionMailer tells applicants about the outcome. *mail.Mailer satisfies
// it.
type DecisionMailer interface {
	SendDecision(ctx context.Context, to, nickname string, approved bool) error
}

type Service struct {
	accounts account.Repository
	cache    *account.Cache
	mailer   DecisionMailer
	avatars  *storage.Avatars
	log      *zap.Logger
}

func NewService(
	accounts account.Repository,
	cache *account.Cache,
	mailer DecisionMailer,
	avatars *storage.Avatars,
	log *zap.Logger,
) *Service {
	return &Service{
		accounts: accounts,
		cache:    cache,
		mailer:   mailer,
		avatars:  avatars,
		log:      log.Named("admin"),
	}
}

// ListApplications returns verified applications, oldest first. An empty
// status lists all of them.
func (s *Service) ListApplications(ctx context.Context, status account.Status) ([]account.Profile, error) {
	if status != "" && !status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	accounts, err := s.accounts.ListByStatus(ctx, status)
	if err != nil {
		return nil, err
	}

	profiles := make([]account.Profile, 0, len(accounts))
	for i := range accounts {
		profiles = append(profiles, account.ToProfile(&accounts[i], s.avatars.URL))
	}
	return profiles, nil
}

type DecisionResult struct {
	Profile  account.Profile `json:"profile"`
	MailSent bool            `json:"mail_sent"`
}

// Decide moves a pending application to approved or rejected and notifies
// the applicant. Mail failures do not undo the decision.
func (s *Service) Decide(ctx context.Context, accountID string, decision account.Status) (*DecisionResult, error) {
	if decision != account.StatusApproved && decision != account.StatusRejected {
		return nil, ErrInvalidDecision
	}

	acc, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if !acc.EmailVerified {
		return nil, ErrNotVerified
	}

	if err := s.accounts.TransitionStatus(ctx, acc.ID, acc.Status, decision); err != nil {
		return nil, err
	}
	acc.Status = decision
	s.cache.Evict(acc.ID)

	s.log.Info("application decided",
		zap.String("account_id", acc.ID),
		zap.String("status", string(decision)))

	result := &DecisionResult{Profile: account.ToProfile(acc, s.avatars.URL)}
	if err := s.mailer.SendDecision(ctx, acc.Email, acc.Nickname, decision == account.StatusApproved); err != nil {
		s.log.Warn("failed to send decision email", zap.String("account_id", acc.ID), zap.Error(err))
		return result, nil
	}
	result.MailSent = true
	return result, nil
}
