package services

import (
	"bytes"
	"encoding/csv"
	"sort"
	"strconv"
	"time"

	"github.com/gmoorevt/socialstyles/internal/models"
)

// ResultRow is one result joined with its owner for export.
type ResultRow struct {
	Result    models.Result
	UserEmail string
	UserName  string
}

// ExportResultsCSV renders one line per result with both scores and the style.
func ExportResultsCSV(rows []ResultRow) ([]byte, error) {
	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)
	_ = w.Write([]string{"result_id", "user_id", "user_email", "user_name", "assessment_id",
		"assertiveness_score", "responsiveness_score", "social_style", "created_at"})
	for _, r := range rows {
		rec := []string{
			r.Result.ID,
			r.Result.UserID,
			r.UserEmail,
			r.UserName,
			r.Result.AssessmentID,
			formatScore(r.Result.AssertivenessScore),
			formatScore(r.Result.ResponsivenessScore),
			string(r.Result.SocialStyle),
			r.Result.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := w.Write(rec); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

// ExportResponsesWideCSV renders one line per result with a column per
// question id. Missing answers are left blank.
func ExportResponsesWideCSV(results []models.Result) ([]byte, error) {
	qset := map[string]struct{}{}
	for _, r := range results {
		for id := range r.Responses {
			qset[id] = struct{}{}
		}
	}
	qids := make([]string, 0, len(qset))
	for id := range qset {
		qids = append(qids, id)
	}
	sort.Slice(qids, func(i, j int) bool { return questionKeyLess(qids[i], qids[j]) })

	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)
	header := append([]string{"result_id"}, qids...)
	_ = w.Write(header)
	for _, r := range results {
		row := make([]string, 0, 1+len(qids))
		row = append(row, r.ID)
		for _, id := range qids {
			v, ok := r.Responses[id]
			if !ok {
				row = append(row, "")
				continue
			}
			row = append(row, strconv.Itoa(v))
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

// questionKeyLess orders numeric ids numerically, others after them.
func questionKeyLess(a, b string) bool {
	ai, aerr := strconv.Atoi(a)
	bi, berr := strconv.Atoi(b)
	switch {
	case aerr == nil && berr == nil:
		return ai < bi
	case aerr == nil:
		return true
	case berr == nil:
		return false
	default:
		return a < b
	}
}

func formatScore(v float64) string {
	return strconv.FormatFloat(RoundScore(v), 'f', 2, 64)
}
