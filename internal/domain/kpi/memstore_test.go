package kpi

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
)

type memMember struct {
	teamID string
	userID string
	status string
}

type memState struct {
	seq     int
	users   map[string]string
	teams   map[string]TeamRef
	members []memMember
	rubrics map[string]Rubric
	periods map[string]Period
	records map[string]Record
}

func (s *memState) clone() *memState {
	out := &memState{
		seq:     s.seq,
		users:   map[string]string{},
		teams:   map[string]TeamRef{},
		members: append([]memMember(nil), s.members...),
		rubrics: map[string]Rubric{},
		periods: map[string]Period{},
		records: map[string]Record{},
	}
	for k, v := range s.users {
		out.users[k] = v
	}
	for k, v := range s.teams {
		out.teams[k] = v
	}
	for k, v := range s.rubrics {
		out.rubrics[k] = v
	}
	for k, v := range s.periods {
		out.periods[k] = v
	}
	for k, v := range s.records {
		out.records[k] = v
	}
	return out
}

// memStore is an in-memory StoreAPI. WithTx works on a copy of the state and
// publishes it only when the callback succeeds.
type memStore struct {
	state             *memState
	failInsertRecords error
	failSnapshot      error
	txCount           int
}

func newMemStore() *memStore {
	return &memStore{state: &memState{
		users:   map[string]string{},
		teams:   map[string]TeamRef{},
		rubrics: map[string]Rubric{},
		periods: map[string]Period{},
		records: map[string]Record{},
	}}
}

func (m *memStore) nextID(prefix string) string {
	m.state.seq++
	return fmt.Sprintf("%s-%d", prefix, m.state.seq)
}

func (m *memStore) addUser(id, name string) {
	m.state.users[id] = name
}

func (m *memStore) addTeam(orgID, id, name, managerID string) {
	m.state.teams[id] = TeamRef{ID: id, OrganizationID: orgID, Name: name, ManagerID: managerID, ManagerName: m.state.users[managerID]}
}

func (m *memStore) addMember(teamID, userID, status string) {
	m.state.members = append(m.state.members, memMember{teamID: teamID, userID: userID, status: status})
}

func (m *memStore) addRubric(teamID, category, metric string, weight float64, method string, status ApprovalStatus) Rubric {
	team := m.state.teams[teamID]
	r := Rubric{
		ID:             m.nextID("rubric"),
		TeamID:         teamID,
		TeamName:       team.Name,
		ManagerID:      team.ManagerID,
		ManagerName:    team.ManagerName,
		Category:       category,
		Metric:         metric,
		Weight:         weight,
		ScoringMethod:  method,
		StatusApproval: status,
	}
	m.state.rubrics[r.ID] = r
	return r
}

func (m *memStore) recordsForPeriod(periodID string) []Record {
	var out []Record
	for _, r := range m.state.records {
		if r.PeriodID == periodID {
			out = append(out, r)
		}
	}
	return out
}

func (m *memStore) activeCount(teamID string) int {
	n := 0
	for _, mem := range m.state.members {
		if mem.teamID == teamID && mem.status == MemberStatusActive {
			n++
		}
	}
	return n
}

func (m *memStore) WithTx(ctx context.Context, fn func(StoreAPI) error) error {
	m.txCount++
	tx := &memStore{state: m.state.clone(), failInsertRecords: m.failInsertRecords, failSnapshot: m.failSnapshot}
	if err := fn(tx); err != nil {
		return err
	}
	m.state = tx.state
	return nil
}

func (m *memStore) TeamInOrganization(ctx context.Context, orgID, teamID string) (TeamRef, error) {
	team, ok := m.state.teams[teamID]
	if !ok || team.OrganizationID != orgID {
		return TeamRef{}, ErrTeamNotFound
	}
	team.ActiveMembers = m.activeCount(teamID)
	return team, nil
}

func (m *memStore) CreateRubric(ctx context.Context, createdBy string, in RubricInput) (Rubric, error) {
	r := m.addRubric(in.TeamID, in.Category, in.Metric, in.Weight, in.ScoringMethod, StatusUnreviewed)
	r.Description, r.Criteria, r.DataSource, r.CreatedBy = in.Description, in.Criteria, in.DataSource, createdBy
	m.state.rubrics[r.ID] = r
	return r, nil
}

func (m *memStore) GetRubric(ctx context.Context, orgID, rubricID string) (Rubric, error) {
	r, ok := m.state.rubrics[rubricID]
	if !ok || m.state.teams[r.TeamID].OrganizationID != orgID {
		return Rubric{}, ErrRubricNotFound
	}
	return r, nil
}

func (m *memStore) UpdateRubric(ctx context.Context, orgID, rubricID string, in RubricInput, status ApprovalStatus) (Rubric, error) {
	r, err := m.GetRubric(ctx, orgID, rubricID)
	if err != nil {
		return Rubric{}, err
	}
	r.Category, r.Metric, r.Description, r.Criteria = in.Category, in.Metric, in.Description, in.Criteria
	r.Weight, r.ScoringMethod, r.DataSource, r.StatusApproval = in.Weight, in.ScoringMethod, in.DataSource, status
	m.state.rubrics[rubricID] = r
	return r, nil
}

func (m *memStore) SetRubricReview(ctx context.Context, orgID, rubricID string, status ApprovalStatus, feedback string) (Rubric, error) {
	r, err := m.GetRubric(ctx, orgID, rubricID)
	if err != nil {
		return Rubric{}, err
	}
	r.StatusApproval, r.Feedback = status, feedback
	m.state.rubrics[rubricID] = r
	return r, nil
}

func (m *memStore) DeleteRubric(ctx context.Context, orgID, rubricID string) error {
	if _, err := m.GetRubric(ctx, orgID, rubricID); err != nil {
		return err
	}
	delete(m.state.rubrics, rubricID)
	return nil
}

func (m *memStore) CountRubricRecords(ctx context.Context, rubricID string) (int, error) {
	n := 0
	for _, r := range m.state.records {
		if r.RubricID == rubricID {
			n++
		}
	}
	return n, nil
}

func (m *memStore) ListRubrics(ctx context.Context, filter RubricFilter) ([]Rubric, error) {
	var out []Rubric
	for _, r := range m.state.rubrics {
		if m.state.teams[r.TeamID].OrganizationID != filter.OrganizationID {
			continue
		}
		if filter.TeamID != "" && r.TeamID != filter.TeamID {
			continue
		}
		if filter.PendingOnly && r.StatusApproval != StatusUnreviewed && r.StatusApproval != StatusPending {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) PeriodLabelExists(ctx context.Context, orgID, label string) (bool, error) {
	for _, p := range m.state.periods {
		if p.OrganizationID == orgID && strings.EqualFold(p.Label, label) {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) InsertPeriod(ctx context.Context, period Period) (Period, error) {
	period.ID = m.nextID("period")
	period.CreatedAt = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m.state.periods[period.ID] = period
	return period, nil
}

func (m *memStore) GetPeriod(ctx context.Context, orgID, periodID string) (Period, error) {
	p, ok := m.state.periods[periodID]
	if !ok || p.OrganizationID != orgID {
		return Period{}, ErrPeriodNotFound
	}
	return p, nil
}

func (m *memStore) ListPeriods(ctx context.Context, orgID string) ([]Period, error) {
	var out []Period
	for _, p := range m.state.periods {
		if p.OrganizationID == orgID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DueDate.After(out[j].DueDate) })
	return out, nil
}

func (m *memStore) ListSnapshotPairs(ctx context.Context, orgID string) ([]SnapshotPair, error) {
	if m.failSnapshot != nil {
		return nil, m.failSnapshot
	}
	var out []SnapshotPair
	for _, mem := range m.state.members {
		if mem.status != MemberStatusActive || m.state.teams[mem.teamID].OrganizationID != orgID {
			continue
		}
		for _, r := range m.state.rubrics {
			if r.TeamID == mem.teamID && r.StatusApproval == StatusApproved {
				out = append(out, SnapshotPair{UserID: mem.userID, RubricID: r.ID})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UserID == out[j].UserID {
			return out[i].RubricID < out[j].RubricID
		}
		return out[i].UserID < out[j].UserID
	})
	return out, nil
}

func (m *memStore) InsertRecords(ctx context.Context, periodID string, pairs []SnapshotPair) ([]Record, error) {
	out := make([]Record, 0, len(pairs))
	for i, pair := range pairs {
		if m.failInsertRecords != nil && i == len(pairs)-1 {
			return nil, m.failInsertRecords
		}
		r := Record{ID: m.nextID("record"), PeriodID: periodID, RubricID: pair.RubricID, UserID: pair.UserID}
		m.state.records[r.ID] = r
		out = append(out, r)
	}
	if m.failInsertRecords != nil && len(pairs) == 0 {
		return nil, m.failInsertRecords
	}
	return out, nil
}

func (m *memStore) GetRecordContext(ctx context.Context, recordID string) (RecordContext, error) {
	r, ok := m.state.records[recordID]
	if !ok {
		return RecordContext{}, ErrRecordNotFound
	}
	rubric := m.state.rubrics[r.RubricID]
	team := m.state.teams[rubric.TeamID]
	return RecordContext{
		RecordID:       r.ID,
		OrganizationID: team.OrganizationID,
		PeriodID:       r.PeriodID,
		UserID:         r.UserID,
		RubricID:       r.RubricID,
		TeamID:         team.ID,
		ManagerID:      team.ManagerID,
		ScoringMethod:  rubric.ScoringMethod,
		Score:          r.Score,
	}, nil
}

func (m *memStore) UpdateScore(ctx context.Context, recordID string, update ScoreUpdate) (Record, error) {
	r, ok := m.state.records[recordID]
	if !ok {
		return Record{}, ErrRecordNotFound
	}
	score := update.Score
	r.Score = &score
	if update.Justification != nil {
		r.Justification = *update.Justification
	}
	if update.ManagerComment != nil {
		r.ManagerComment = *update.ManagerComment
	}
	at := update.ScoredAt
	r.ScoredBy, r.ScoredAt = update.ScoredBy, &at
	m.state.records[recordID] = r
	return r, nil
}

func (m *memStore) UpdateManagerComment(ctx context.Context, recordID, comment string) (Record, error) {
	r, ok := m.state.records[recordID]
	if !ok {
		return Record{}, ErrRecordNotFound
	}
	r.ManagerComment = comment
	m.state.records[recordID] = r
	return r, nil
}

func (m *memStore) ListAssessments(ctx context.Context, filter AssessmentFilter) ([]AssessmentRow, error) {
	var out []AssessmentRow
	for _, r := range m.state.records {
		period := m.state.periods[r.PeriodID]
		rubric := m.state.rubrics[r.RubricID]
		team := m.state.teams[rubric.TeamID]
		if period.OrganizationID != filter.OrganizationID {
			continue
		}
		if filter.ManagerID != "" && team.ManagerID != filter.ManagerID {
			continue
		}
		if filter.TeamID != "" && team.ID != filter.TeamID {
			continue
		}
		if filter.UserID != "" && r.UserID != filter.UserID {
			continue
		}
		if filter.PeriodID != "" && period.ID != filter.PeriodID {
			continue
		}
		if filter.DueAfter != nil && !period.DueDate.After(*filter.DueAfter) {
			continue
		}
		out = append(out, AssessmentRow{
			RecordID:       r.ID,
			PeriodID:       period.ID,
			PeriodLabel:    period.Label,
			StartDate:      period.StartDate,
			DueDate:        period.DueDate,
			TeamID:         team.ID,
			TeamName:       team.Name,
			UserID:         r.UserID,
			UserName:       m.state.users[r.UserID],
			RubricID:       rubric.ID,
			Category:       rubric.Category,
			Metric:         rubric.Metric,
			Description:    rubric.Description,
			Criteria:       rubric.Criteria,
			DataSource:     rubric.DataSource,
			Weight:         rubric.Weight,
			ScoringMethod:  rubric.ScoringMethod,
			Score:          r.Score,
			Justification:  r.Justification,
			ManagerComment: r.ManagerComment,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RecordID < out[j].RecordID })
	return out, nil
}

func (m *memStore) ListTeams(ctx context.Context, filter TeamFilter) ([]TeamRef, error) {
	var out []TeamRef
	for _, team := range m.state.teams {
		if team.OrganizationID != filter.OrganizationID {
			continue
		}
		if filter.ManagerID != "" && team.ManagerID != filter.ManagerID {
			continue
		}
		team.ActiveMembers = m.activeCount(team.ID)
		out = append(out, team)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memStore) ListActiveMembers(ctx context.Context, teamID string) ([]MemberRef, error) {
	var out []MemberRef
	for _, mem := range m.state.members {
		if mem.teamID == teamID && mem.status == MemberStatusActive {
			out = append(out, MemberRef{UserID: mem.userID, Name: m.state.users[mem.userID]})
		}
	}
	return out, nil
}

func (m *memStore) ManagesUser(ctx context.Context, orgID, managerID, userID string) (bool, error) {
	for _, mem := range m.state.members {
		team := m.state.teams[mem.teamID]
		if mem.userID == userID && team.OrganizationID == orgID && team.ManagerID == managerID {
			return true, nil
		}
	}
	return false, nil
}
