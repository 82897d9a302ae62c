package kpi

import (
	"context"
	"time"

	"hrkpi/internal/domain/apperr"
)

type Service struct {
	store StoreAPI
	now   func() time.Time
}

func NewService(store StoreAPI) *Service {
	return &Service{store: store, now: time.Now}
}

// requireTeamAccess loads the team and checks that the actor is an admin or
// the team's manager.
func (s *Service) requireTeamAccess(ctx context.Context, actor Actor, teamID string) (TeamRef, error) {
	team, err := s.store.TeamInOrganization(ctx, actor.OrganizationID, teamID)
	if err != nil {
		return TeamRef{}, err
	}
	if !actor.Admin && team.ManagerID != actor.UserID {
		return TeamRef{}, ErrNotTeamManager
	}
	return team, nil
}

// requireUserAccess allows the user themself, admins and any manager of a
// team the user belongs to.
func (s *Service) requireUserAccess(ctx context.Context, actor Actor, userID string) error {
	if actor.Admin || actor.UserID == userID {
		return nil
	}
	ok, err := s.store.ManagesUser(ctx, actor.OrganizationID, actor.UserID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.Forbidden("not allowed to view this user's assessments")
	}
	return nil
}
