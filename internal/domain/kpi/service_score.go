package kpi

import (
	"context"
	"math"
	"strconv"
	"strings"
)

func validateScore(score float64) error {
	if !inCents(score, MinScore, MaxScore) {
		return ErrScoreOutOfRange
	}
	return nil
}

// inCents reports whether v lies in [lo, hi] and has at most two decimals, so
// the stored NUMERIC value equals what was accepted.
func inCents(v, lo, hi float64) bool {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < lo || v > hi {
		return false
	}
	_, frac, _ := strings.Cut(strconv.FormatFloat(v, 'f', -1, 64), ".")
	return len(frac) <= 2
}

func (s *Service) recordContext(ctx context.Context, actor Actor, recordID string) (RecordContext, error) {
	rc, err := s.store.GetRecordContext(ctx, strings.TrimSpace(recordID))
	if err != nil {
		return RecordContext{}, err
	}
	if rc.OrganizationID != actor.OrganizationID {
		return RecordContext{}, ErrRecordNotFound
	}
	return rc, nil
}

// SubmitManagerScore scores a manager-assessed record. Only the manager of the
// rubric's team may score it; repeated scoring overwrites the previous value.
func (s *Service) SubmitManagerScore(ctx context.Context, actor Actor, recordID string, score float64, justification, managerComment string) (Record, error) {
	rc, err := s.recordContext(ctx, actor, recordID)
	if err != nil {
		return Record{}, err
	}
	if rc.ManagerID != actor.UserID {
		return Record{}, ErrNotTeamManager
	}
	if rc.ScoringMethod != ScoringManager {
		return Record{}, ErrScoringSelfOnly
	}
	if err := validateScore(score); err != nil {
		return Record{}, err
	}
	justification = strings.TrimSpace(justification)
	update := ScoreUpdate{
		Score:         score,
		Justification: &justification,
		ScoredBy:      actor.UserID,
		ScoredAt:      s.now().UTC(),
	}
	if comment := strings.TrimSpace(managerComment); comment != "" {
		update.ManagerComment = &comment
	}
	return s.store.UpdateScore(ctx, rc.RecordID, update)
}

// SubmitSelfAssessmentScore scores a self-assessed record owned by the actor.
func (s *Service) SubmitSelfAssessmentScore(ctx context.Context, actor Actor, recordID string, score float64, detail string) (Record, error) {
	rc, err := s.recordContext(ctx, actor, recordID)
	if err != nil {
		return Record{}, err
	}
	if rc.UserID != actor.UserID {
		return Record{}, ErrNotRecordOwner
	}
	if rc.ScoringMethod != ScoringSelf {
		return Record{}, ErrScoringManagerOnly
	}
	if err := validateScore(score); err != nil {
		return Record{}, err
	}
	detail = strings.TrimSpace(detail)
	return s.store.UpdateScore(ctx, rc.RecordID, ScoreUpdate{
		Score:         score,
		Justification: &detail,
		ScoredBy:      actor.UserID,
		ScoredAt:      s.now().UTC(),
	})
}

// ChangeScore is the administrative override; it replaces the score only.
func (s *Service) ChangeScore(ctx context.Context, actor Actor, recordID string, score float64) (Record, error) {
	if !actor.Admin {
		return Record{}, ErrAdminOnly
	}
	rc, err := s.recordContext(ctx, actor, recordID)
	if err != nil {
		return Record{}, err
	}
	if err := validateScore(score); err != nil {
		return Record{}, err
	}
	return s.store.UpdateScore(ctx, rc.RecordID, ScoreUpdate{
		Score:    score,
		ScoredBy: actor.UserID,
		ScoredAt: s.now().UTC(),
	})
}

func (s *Service) CommentAssessment(ctx context.Context, actor Actor, recordID, comment string) (Record, error) {
	rc, err := s.recordContext(ctx, actor, recordID)
	if err != nil {
		return Record{}, err
	}
	if rc.ManagerID != actor.UserID {
		return Record{}, ErrNotTeamManager
	}
	return s.store.UpdateManagerComment(ctx, rc.RecordID, strings.TrimSpace(comment))
}
