package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/gmoorevt/socialstyles/internal/models"
)

func TestProfileForEveryStyle(t *testing.T) {
	for _, style := range []models.SocialStyle{models.StyleDriver, models.StyleExpressive, models.StyleAmiable, models.StyleAnalytical} {
		p := ProfileFor(style)
		assert.NotEmpty(t, p.Description, style)
		assert.Len(t, p.Strengths, 5, style)
		assert.Len(t, p.Challenges, 5, style)
		assert.Len(t, p.Tips, 5, style)
	}
	unknown := ProfileFor("UNKNOWN")
	assert.Equal(t, "No description available.", unknown.Description)
	assert.Empty(t, unknown.Strengths)
}

func TestRenderReportText(t *testing.T) {
	r := models.Result{
		ID:                  "r1",
		AssertivenessScore:  38.0 / 15,
		ResponsivenessScore: 34.0 / 15,
		SocialStyle:         models.StyleDriver,
		CreatedAt:           time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	rep := NewReport(r, &models.User{Name: "Ada"})
	text := RenderReportText(rep)

	assert.Contains(t, text, "Name: Ada")
	assert.Contains(t, text, "Date: March 1, 2025")
	assert.Contains(t, text, "Your social style: DRIVER")
	assert.Contains(t, text, "Assertiveness:  2.53")
	assert.Contains(t, text, "Responsiveness: 2.27")
	assert.Contains(t, text, "Strong decision-making skills")
	assert.Contains(t, text, "Tips for Success")
}

func TestNewReportWithoutUser(t *testing.T) {
	rep := NewReport(models.Result{SocialStyle: models.StyleAmiable, AssertivenessScore: 1, ResponsivenessScore: 4}, nil)
	assert.Equal(t, "", rep.UserName)
	assert.Equal(t, 100.0, rep.X)
	assert.NotContains(t, RenderReportText(rep), "Name:")
}
