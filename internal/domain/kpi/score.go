package kpi

import (
	"math"
	"sort"
	"strings"
	"time"
)

// weightedScore returns round(sum(score*weight)/sum(weight), 2) over the
// assessed rows. ok is false when nothing is assessed or the weights sum to
// zero.
func weightedScore(rows []AssessmentRow) (float64, bool) {
	var acc accumulator
	for _, row := range rows {
		acc.add(row.Score, row.Weight)
	}
	return acc.result()
}

func Round2(value float64) float64 {
	return math.Round(value*100) / 100
}

func isScored(score *float64) bool {
	return score != nil && *score > 0
}

type accumulator struct {
	numerator   float64
	denominator float64
	total       int
	scored      int
}

func (a *accumulator) add(score *float64, weight float64) {
	a.total++
	if !isScored(score) {
		return
	}
	a.scored++
	a.numerator += *score * weight
	a.denominator += weight
}

func (a accumulator) result() (float64, bool) {
	if a.scored == 0 || a.denominator == 0 {
		return 0, false
	}
	return Round2(a.numerator / a.denominator), true
}

func (a accumulator) final() *float64 {
	value, ok := a.result()
	if !ok {
		return nil
	}
	return &value
}

type periodKey struct {
	id    string
	label string
	start time.Time
	due   time.Time
}

// latestPeriod picks the period with the latest due date among rows, breaking
// ties on the label so the choice is stable.
func latestPeriod(rows []AssessmentRow) (periodKey, bool) {
	var best periodKey
	found := false
	for _, row := range rows {
		if !found || row.DueDate.After(best.due) || (row.DueDate.Equal(best.due) && row.PeriodLabel > best.label) {
			best = periodKey{id: row.PeriodID, label: row.PeriodLabel, start: row.StartDate, due: row.DueDate}
			found = true
		}
	}
	return best, found
}

func rowsForPeriod(rows []AssessmentRow, periodID string) []AssessmentRow {
	out := make([]AssessmentRow, 0, len(rows))
	for _, row := range rows {
		if row.PeriodID == periodID {
			out = append(out, row)
		}
	}
	return out
}

func groupByTeam(rows []AssessmentRow) map[string][]AssessmentRow {
	out := map[string][]AssessmentRow{}
	for _, row := range rows {
		out[row.TeamID] = append(out[row.TeamID], row)
	}
	return out
}

func assessedMembers(rows []AssessmentRow) int {
	seen := map[string]struct{}{}
	for _, row := range rows {
		if isScored(row.Score) {
			seen[row.UserID] = struct{}{}
		}
	}
	return len(seen)
}

func buildTeamScores(teams []TeamRef, rows []AssessmentRow) []TeamScore {
	byTeam := groupByTeam(rows)
	out := make([]TeamScore, 0, len(teams))
	for _, team := range teams {
		score := TeamScore{
			TeamID:      team.ID,
			TeamName:    team.Name,
			ManagerName: team.ManagerName,
			MemberCount: team.ActiveMembers,
		}
		teamRows := byTeam[team.ID]
		if period, ok := latestPeriod(teamRows); ok {
			due := period.due
			score.PeriodID = period.id
			score.PeriodLabel = period.label
			score.DueDate = &due

			periodRows := rowsForPeriod(teamRows, period.id)
			score.MembersAssessed = assessedMembers(periodRows)
			if final, ok := weightedScore(periodRows); ok {
				score.FinalScore = &final
			}
		}
		out = append(out, score)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return strings.ToLower(out[i].TeamName) < strings.ToLower(out[j].TeamName)
	})
	return out
}

func buildTeamHistory(rows []AssessmentRow) []TeamPeriodScore {
	type bucket struct {
		key  periodKey
		acc  accumulator
		rows []AssessmentRow
	}
	buckets := map[string]*bucket{}
	for _, row := range rows {
		b, ok := buckets[row.PeriodID]
		if !ok {
			b = &bucket{key: periodKey{id: row.PeriodID, label: row.PeriodLabel, start: row.StartDate, due: row.DueDate}}
			buckets[row.PeriodID] = b
		}
		b.acc.add(row.Score, row.Weight)
		b.rows = append(b.rows, row)
	}
	out := make([]TeamPeriodScore, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, TeamPeriodScore{
			PeriodID:        b.key.id,
			PeriodLabel:     b.key.label,
			StartDate:       b.key.start,
			DueDate:         b.key.due,
			MembersAssessed: assessedMembers(b.rows),
			RecordsTotal:    b.acc.total,
			RecordsScored:   b.acc.scored,
			FinalScore:      b.acc.final(),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].DueDate.Equal(out[j].DueDate) {
			return out[i].PeriodLabel > out[j].PeriodLabel
		}
		return out[i].DueDate.After(out[j].DueDate)
	})
	return out
}

func buildTeamProgress(rows []AssessmentRow) []TeamProgress {
	type key struct{ team, period string }
	index := map[key]int{}
	var out []TeamProgress
	for _, row := range rows {
		k := key{team: row.TeamID, period: row.PeriodID}
		i, ok := index[k]
		if !ok {
			out = append(out, TeamProgress{
				TeamID:      row.TeamID,
				TeamName:    row.TeamName,
				PeriodID:    row.PeriodID,
				PeriodLabel: row.PeriodLabel,
				DueDate:     row.DueDate,
			})
			i = len(out) - 1
			index[k] = i
		}
		out[i].RecordsTotal++
		if isScored(row.Score) {
			out[i].RecordsScored++
		}
	}
	for i := range out {
		if out[i].RecordsTotal > 0 {
			out[i].CompletionRate = Round2(float64(out[i].RecordsScored) / float64(out[i].RecordsTotal))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].DueDate.Equal(out[j].DueDate) {
			return out[i].DueDate.Before(out[j].DueDate)
		}
		return strings.ToLower(out[i].TeamName) < strings.ToLower(out[j].TeamName)
	})
	return out
}

func buildMemberBreakdown(members []MemberRef, rubricsDefined int, rows []AssessmentRow) []MemberBreakdown {
	accs := map[string]*accumulator{}
	for _, row := range rows {
		acc, ok := accs[row.UserID]
		if !ok {
			acc = &accumulator{}
			accs[row.UserID] = acc
		}
		acc.add(row.Score, row.Weight)
	}
	out := make([]MemberBreakdown, 0, len(members))
	for _, member := range members {
		entry := MemberBreakdown{
			UserID:         member.UserID,
			Name:           member.Name,
			RubricsDefined: rubricsDefined,
		}
		if acc, ok := accs[member.UserID]; ok {
			entry.AssessmentsTotal = acc.total
			entry.AssessmentsScored = acc.scored
			entry.FinalScore = acc.final()
		}
		out = append(out, entry)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out
}

func buildEmployeePerformance(rows []AssessmentRow) []EmployeePeriodScore {
	type bucket struct {
		key        periodKey
		acc        accumulator
		categories map[string]*accumulator
	}
	buckets := map[string]*bucket{}
	for _, row := range rows {
		b, ok := buckets[row.PeriodID]
		if !ok {
			b = &bucket{
				key:        periodKey{id: row.PeriodID, label: row.PeriodLabel, start: row.StartDate, due: row.DueDate},
				categories: map[string]*accumulator{},
			}
			buckets[row.PeriodID] = b
		}
		b.acc.add(row.Score, row.Weight)
		cat, ok := b.categories[row.Category]
		if !ok {
			cat = &accumulator{}
			b.categories[row.Category] = cat
		}
		cat.add(row.Score, row.Weight)
	}

	out := make([]EmployeePeriodScore, 0, len(buckets))
	for _, b := range buckets {
		entry := EmployeePeriodScore{
			PeriodID:    b.key.id,
			PeriodLabel: b.key.label,
			StartDate:   b.key.start,
			DueDate:     b.key.due,
			Scored:      b.acc.scored,
			Total:       b.acc.total,
			FinalScore:  b.acc.final(),
			Categories:  make([]CategoryScore, 0, len(b.categories)),
		}
		for name, acc := range b.categories {
			entry.Categories = append(entry.Categories, CategoryScore{
				Category:   name,
				Scored:     acc.scored,
				Total:      acc.total,
				FinalScore: acc.final(),
			})
		}
		sort.Slice(entry.Categories, func(i, j int) bool {
			return entry.Categories[i].Category < entry.Categories[j].Category
		})
		out = append(out, entry)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].DueDate.Equal(out[j].DueDate) {
			return out[i].PeriodLabel > out[j].PeriodLabel
		}
		return out[i].DueDate.After(out[j].DueDate)
	})
	return out
}

func buildOpenSummaries(rows []AssessmentRow) []OpenSummary {
	type key struct{ user, team, period string }
	index := map[key]int{}
	rubrics := map[key]map[string]struct{}{}
	var out []OpenSummary
	for _, row := range rows {
		k := key{user: row.UserID, team: row.TeamID, period: row.PeriodID}
		i, ok := index[k]
		if !ok {
			out = append(out, OpenSummary{
				UserID:      row.UserID,
				UserName:    row.UserName,
				TeamID:      row.TeamID,
				TeamName:    row.TeamName,
				PeriodID:    row.PeriodID,
				PeriodLabel: row.PeriodLabel,
				DueDate:     row.DueDate,
			})
			i = len(out) - 1
			index[k] = i
			rubrics[k] = map[string]struct{}{}
		}
		rubrics[k][row.RubricID] = struct{}{}
		if isScored(row.Score) {
			out[i].Scored++
		} else {
			out[i].Pending++
		}
	}

	open := out[:0]
	for _, summary := range out {
		k := key{user: summary.UserID, team: summary.TeamID, period: summary.PeriodID}
		summary.Rubrics = len(rubrics[k])
		if summary.Pending > 0 {
			open = append(open, summary)
		}
	}
	sort.SliceStable(open, func(i, j int) bool {
		if !open[i].DueDate.Equal(open[j].DueDate) {
			return open[i].DueDate.Before(open[j].DueDate)
		}
		return strings.ToLower(open[i].UserName) < strings.ToLower(open[j].UserName)
	})
	return open
}

func buildOpenCategories(rows []AssessmentRow, category string) []OpenCategory {
	category = strings.TrimSpace(category)
	groups := map[string][]AssessmentForm{}
	for _, row := range rows {
		if isScored(row.Score) {
			continue
		}
		if category != "" && !strings.EqualFold(row.Category, category) {
			continue
		}
		groups[row.Category] = append(groups[row.Category], AssessmentForm{
			RecordID:      row.RecordID,
			RubricID:      row.RubricID,
			Metric:        row.Metric,
			Description:   row.Description,
			Criteria:      row.Criteria,
			DataSource:    row.DataSource,
			Weight:        row.Weight,
			ScoringMethod: row.ScoringMethod,
			Score:         row.Score,
			Justification: row.Justification,
		})
	}
	out := make([]OpenCategory, 0, len(groups))
	for name, items := range groups {
		sort.SliceStable(items, func(i, j int) bool { return items[i].Metric < items[j].Metric })
		out = append(out, OpenCategory{Category: name, Items: items})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out
}

func buildRubricStatus(teams []TeamRef, rubrics []Rubric) []RubricStatusSummary {
	byTeam := map[string][]Rubric{}
	for _, rubric := range rubrics {
		byTeam[rubric.TeamID] = append(byTeam[rubric.TeamID], rubric)
	}
	out := make([]RubricStatusSummary, 0, len(teams))
	for _, team := range teams {
		summary := RubricStatusSummary{TeamID: team.ID, TeamName: team.Name, ManagerName: team.ManagerName}
		for _, rubric := range byTeam[team.ID] {
			summary.Total++
			switch rubric.StatusApproval {
			case StatusApproved:
				summary.Approved++
			case StatusRejected:
				summary.Rejected++
			default:
				summary.Pending++
			}
		}
		switch {
		case summary.Total == 0:
			summary.Status = RubricSummaryNoData
		case summary.Approved == summary.Total:
			summary.Status = RubricSummaryApproved
		default:
			summary.Status = RubricSummaryOngoing
		}
		out = append(out, summary)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return strings.ToLower(out[i].TeamName) < strings.ToLower(out[j].TeamName)
	})
	return out
}
