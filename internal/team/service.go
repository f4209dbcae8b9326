package team

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/elskow/tourfurr/internal/account"
	"github.com/elskow/tourfurr/internal/storage"
)

var ErrNotEligible = errors.New("only approved participants can choose a team")

type Service struct {
	teams    Repository
	accounts account.Repository
	cache    *account.Cache
	avatars  *storage.Avatars
	log      *zap.Logger
}

func NewService(
	teams Repository,
	accounts account.Repository,
	cache *account.Cache,
	avatars *storage.Avatars,
	log *zap.Logger,
) *Service {
	return &Service{
		teams:    teams,
		accounts: accounts,
		cache:    cache,
		avatars:  avatars,
		log:      log.Named("team"),
	}
}

// Seed loads the embedded roster into an empty table. A populated table is
// left untouched.
func (s *Service) Seed(ctx context.Context) error {
	count, err := s.teams.Count(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	teams, err := Roster()
	if err != nil {
		return err
	}
	if err := s.teams.CreateAll(ctx, teams); err != nil {
		return err
	}
	s.log.Info("seeded teams", zap.Int("count", len(teams)))
	return nil
}

func (s *Service) List(ctx context.Context) ([]Team, error) {
	return s.teams.List(ctx)
}

func (s *Service) Members(ctx context.Context, teamID string) ([]Member, error) {
	if _, err := s.teams.FindByID(ctx, teamID); err != nil {
		return nil, err
	}

	accounts, err := s.accounts.ListByTeam(ctx, teamID)
	if err != nil {
		return nil, err
	}

	members := make([]Member, 0, len(accounts))
	for _, a := range accounts {
		m := Member{ID: a.ID, Nickname: a.Nickname, Telegram: a.Telegram}
		if a.AvatarKey != "" {
			m.AvatarURL = s.avatars.URL(a.AvatarKey)
		}
		members = append(members, m)
	}
	return members, nil
}

// Select puts an approved or paid participant on teamID.
func (s *Service) Select(ctx context.Context, accountID, teamID string) (*Team, error) {
	team, err := s.teams.FindByID(ctx, teamID)
	if err != nil {
		return nil, err
	}

	acc, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if acc.Status != account.StatusApproved && acc.Status != account.StatusPaid {
		return nil, ErrNotEligible
	}

	if err := s.accounts.SetTeam(ctx, acc.ID, &team.ID); err != nil {
		return nil, err
	}
	s.cache.Evict(acc.ID)

	s.log.Info("team selected", zap.String("account_id", acc.ID), zap.String("team_id", team.ID))
	return team, nil
}
