package services

import (
	"context"
	"math"
	"sort"
	"strconv"

	"github.com/gmoorevt/socialstyles/internal/models"
)

// QuestionStats is the answer histogram for one question; Histogram[i]
// counts answers equal to i+1.
type QuestionStats struct {
	ID        int             `json:"id"`
	Category  models.Category `json:"category"`
	Histogram []int           `json:"histogram"`
	Answered  int             `json:"answered"`
}

type DailyCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// AssessmentAnalytics summarises every stored submission of one assessment.
type AssessmentAnalytics struct {
	AssessmentID        string                     `json:"assessment_id"`
	ScaleMax            int                        `json:"scale_max"`
	Respondents         int                        `json:"respondents"`
	Styles              map[models.SocialStyle]int `json:"styles"`
	Questions           []QuestionStats            `json:"questions"`
	Timeseries          []DailyCount               `json:"timeseries"`
	AssertivenessAlpha  float64                    `json:"assertiveness_alpha"`
	ResponsivenessAlpha float64                    `json:"responsiveness_alpha"`
}

// CronbachAlpha computes alpha for rows of item answers, one row per
// respondent. Population variance is used throughout, so perfectly
// correlated items give 1. Degenerate input yields 0 and the result is
// clamped to [0, 1].
func CronbachAlpha(rows [][]float64) float64 {
	n := len(rows)
	if n < 2 {
		return 0
	}
	k := len(rows[0])
	if k < 2 {
		return 0
	}
	totals := make([]float64, n)
	var sumItemVar float64
	for j := 0; j < k; j++ {
		col := make([]float64, n)
		for i, row := range rows {
			if len(row) != k {
				return 0
			}
			col[i] = row[j]
			totals[i] += row[j]
		}
		sumItemVar += variance(col)
	}
	totalVar := variance(totals)
	if totalVar == 0 {
		return 0
	}
	kf := float64(k)
	alpha := kf / (kf - 1) * (1 - sumItemVar/totalVar)
	return math.Min(math.Max(alpha, 0), 1)
}

func variance(xs []float64) float64 {
	var mean float64
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))
	var ss float64
	for _, x := range xs {
		d := x - mean
		ss += d * d
	}
	return ss / float64(len(xs))
}

// answerMatrix lays out each result's answers to ids, scoring invalid
// answers as 0 the same way CalculateScores does.
func answerMatrix(results []models.Result, ids []string, maxAnswer int) [][]float64 {
	rows := make([][]float64, 0, len(results))
	for _, r := range results {
		row := make([]float64, len(ids))
		for j, id := range ids {
			if v := r.Responses[id]; v >= 1 && v <= maxAnswer {
				row[j] = float64(v)
			}
		}
		rows = append(rows, row)
	}
	return rows
}

func questionStats(a *models.Assessment, results []models.Result, maxAnswer int) []QuestionStats {
	out := make([]QuestionStats, 0, len(a.Questions))
	for _, q := range a.Questions {
		qs := QuestionStats{ID: q.ID, Category: q.Category, Histogram: make([]int, maxAnswer)}
		key := strconv.Itoa(q.ID)
		for _, r := range results {
			if v, ok := r.Responses[key]; ok && v >= 1 && v <= maxAnswer {
				qs.Histogram[v-1]++
				qs.Answered++
			}
		}
		out = append(out, qs)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func dailyCounts(results []models.Result) []DailyCount {
	counts := map[string]int{}
	for _, r := range results {
		counts[r.CreatedAt.UTC().Format("2006-01-02")]++
	}
	days := make([]string, 0, len(counts))
	for d := range counts {
		days = append(days, d)
	}
	sort.Strings(days)
	out := make([]DailyCount, 0, len(days))
	for _, d := range days {
		out = append(out, DailyCount{Date: d, Count: counts[d]})
	}
	return out
}

// Analytics summarises an assessment's submissions; admins only.
func (s *AssessmentService) Analytics(ctx context.Context, actorID, assessmentID string) (*AssessmentAnalytics, error) {
	if err := requireAdmin(ctx, s.store, actorID); err != nil {
		return nil, err
	}
	a, err := s.assessment(ctx, assessmentID)
	if err != nil {
		return nil, err
	}
	ids, err := QuestionIDsByCategory(a)
	if err != nil {
		return nil, NewInvalidError(err.Error())
	}
	all, err := s.store.ListAllResults(ctx)
	if err != nil {
		return nil, err
	}
	var results []models.Result
	styles := map[models.SocialStyle]int{
		models.StyleDriver: 0, models.StyleExpressive: 0, models.StyleAmiable: 0, models.StyleAnalytical: 0,
	}
	for _, r := range all {
		if r.AssessmentID != a.ID {
			continue
		}
		results = append(results, r)
		styles[r.SocialStyle]++
	}
	maxAnswer := ids.MaxAnswer
	if maxAnswer <= 0 {
		maxAnswer = DefaultMaxAnswer
	}
	return &AssessmentAnalytics{
		AssessmentID:        a.ID,
		ScaleMax:            maxAnswer,
		Respondents:         len(results),
		Styles:              styles,
		Questions:           questionStats(a, results, maxAnswer),
		Timeseries:          dailyCounts(results),
		AssertivenessAlpha:  RoundScore(CronbachAlpha(answerMatrix(results, ids.Assertiveness, maxAnswer))),
		ResponsivenessAlpha: RoundScore(CronbachAlpha(answerMatrix(results, ids.Responsiveness, maxAnswer))),
	}, nil
}
