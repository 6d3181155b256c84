package services

import (
	"math"
	"strconv"

	"github.com/gmoorevt/socialstyles/internal/models"
)

const (
	// StyleThreshold splits both axes; a score equal to it counts as high.
	StyleThreshold = 2.5
	// QuestionsPerCategory is the fixed divisor for each axis average.
	QuestionsPerCategory = 15

	// DefaultMaxAnswer is the top of the 1..4 Likert scale.
	DefaultMaxAnswer = 4

	scaleMin = 1.0
	scaleMax = 4.0
)

// CategoryQuestionIDs lists the question ids scored on each axis, in order.
// MaxAnswer is the top of the answer scale; zero means DefaultMaxAnswer.
type CategoryQuestionIDs struct {
	Assertiveness  []string
	Responsiveness []string
	MaxAnswer      int
}

// Score is the scoring outcome for one response set.
type Score struct {
	Assertiveness  float64
	Responsiveness float64
	Style          models.SocialStyle
}

// CalculateScores averages each axis over QuestionsPerCategory questions.
// Missing and out-of-range answers count as 0 and are not rejected, so an
// incomplete set lowers the average rather than failing.
func CalculateScores(responses models.ResponseSet, ids CategoryQuestionIDs) (assertiveness, responsiveness float64) {
	maxAnswer := ids.MaxAnswer
	if maxAnswer <= 0 {
		maxAnswer = DefaultMaxAnswer
	}
	return categoryAverage(responses, ids.Assertiveness, maxAnswer),
		categoryAverage(responses, ids.Responsiveness, maxAnswer)
}

func categoryAverage(responses models.ResponseSet, ids []string, maxAnswer int) float64 {
	total := 0
	for _, id := range ids {
		v := responses[id]
		if v < 1 || v > maxAnswer {
			continue
		}
		total += v
	}
	return float64(total) / QuestionsPerCategory
}

// Classify maps two axis scores onto a quadrant. Defined for every pair.
func Classify(assertiveness, responsiveness float64) models.SocialStyle {
	highA := assertiveness >= StyleThreshold
	highR := responsiveness >= StyleThreshold
	switch {
	case highA && highR:
		return models.StyleExpressive
	case highA:
		return models.StyleDriver
	case highR:
		return models.StyleAmiable
	default:
		return models.StyleAnalytical
	}
}

// ScoreResponses runs CalculateScores then Classify.
func ScoreResponses(responses models.ResponseSet, ids CategoryQuestionIDs) Score {
	a, r := CalculateScores(responses, ids)
	return Score{Assertiveness: a, Responsiveness: r, Style: Classify(a, r)}
}

// QuestionIDsByCategory extracts the per-axis id lists from an assessment
// in question order.
func QuestionIDsByCategory(a *models.Assessment) (CategoryQuestionIDs, error) {
	var ids CategoryQuestionIDs
	if a == nil {
		return ids, ErrAssessmentNotFound
	}
	ids.MaxAnswer = a.ScaleMax
	for _, q := range a.Questions {
		key := strconv.Itoa(q.ID)
		switch q.Category {
		case models.CategoryAssertiveness:
			ids.Assertiveness = append(ids.Assertiveness, key)
		case models.CategoryResponsiveness:
			ids.Responsiveness = append(ids.Responsiveness, key)
		}
	}
	if len(ids.Assertiveness) == 0 || len(ids.Responsiveness) == 0 {
		return ids, NewNotFoundError("assessment " + a.ID + " has no question set for both categories")
	}
	return ids, nil
}

// GridPosition rescales both scores from [1,4] onto a 0..100 display grid.
// x follows responsiveness and y follows assertiveness.
func GridPosition(assertiveness, responsiveness float64) (x, y float64) {
	x = (responsiveness - scaleMin) / (scaleMax - scaleMin) * 100
	y = (assertiveness - scaleMin) / (scaleMax - scaleMin) * 100
	return x, y
}

// RoundScore rounds to two decimals for display.
func RoundScore(v float64) float64 {
	return math.Round(v*100) / 100
}
