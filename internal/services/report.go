package services

import (
	"fmt"
	"strings"

	"github.com/gmoorevt/socialstyles/internal/models"
)

// StyleProfile is the narrative shown alongside a result.
type StyleProfile struct {
	Description string   `json:"description"`
	Strengths   []string `json:"strengths"`
	Challenges  []string `json:"challenges"`
	Tips        []string `json:"tips"`
}

var styleProfiles = map[models.SocialStyle]StyleProfile{
	models.StyleDriver: {
		Description: "Drivers are characterized by high assertiveness and low responsiveness. They are direct, decisive, and results-oriented.",
		Strengths: []string{
			"Strong decision-making skills",
			"Task-oriented and efficient",
			"Direct and straightforward communication",
			"Goal-focused and determined",
			"Takes initiative and leads by example",
		},
		Challenges: []string{
			"May appear impatient or controlling",
			"Can be perceived as insensitive to others' feelings",
			"May struggle with building personal relationships",
			"Can overlook important details in pursuit of results",
			"May not listen well to others' input",
		},
		Tips: []string{
			"Practice active listening skills",
			"Take time to build relationships with colleagues",
			"Be mindful of how your directness affects others",
			"Acknowledge and appreciate others' contributions",
			"Consider the human element in decision-making",
		},
	},
	models.StyleExpressive: {
		Description: "Expressives are characterized by high assertiveness and high responsiveness. They are enthusiastic, creative, and people-oriented.",
		Strengths: []string{
			"Naturally charismatic and engaging",
			"Creative and innovative thinking",
			"Builds relationships easily",
			"Persuasive and inspiring communicator",
			"Energetic and enthusiastic approach",
		},
		Challenges: []string{
			"May struggle with follow-through on tasks",
			"Can be perceived as disorganized",
			"May dominate conversations",
			"Can make decisions based on emotions rather than facts",
			"May lose interest in projects over time",
		},
		Tips: []string{
			"Develop systems to track details and follow through",
			"Practice listening without interrupting",
			"Balance enthusiasm with practical considerations",
			"Set clear priorities and stick to them",
			"Be mindful of others who need time to process information",
		},
	},
	models.StyleAmiable: {
		Description: "Amiables are characterized by low assertiveness and high responsiveness. They are supportive, patient, and relationship-oriented.",
		Strengths: []string{
			"Strong team player and collaborator",
			"Excellent listening skills",
			"Patient and supportive of others",
			"Creates harmony in groups",
			"Builds deep, trusting relationships",
		},
		Challenges: []string{
			"May avoid necessary conflict",
			"Can struggle with making quick decisions",
			`May have difficulty saying "no"`,
			"Can be overly concerned with others' opinions",
			"May not assert their own needs effectively",
		},
		Tips: []string{
			"Practice asserting your opinions and needs",
			"Develop comfort with healthy conflict",
			"Set boundaries to avoid overcommitment",
			"Trust your own judgment more often",
			"Balance relationship concerns with task completion",
		},
	},
	models.StyleAnalytical: {
		Description: "Analyticals are characterized by low assertiveness and low responsiveness. They are logical, thorough, and detail-oriented.",
		Strengths: []string{
			"Thorough and detail-oriented approach",
			"Strong critical thinking skills",
			"Logical and methodical problem-solving",
			"High-quality work with few errors",
			"Thoughtful and careful decision-making",
		},
		Challenges: []string{
			"May be perceived as overly critical or perfectionistic",
			"Can struggle with making quick decisions",
			"May have difficulty expressing emotions",
			`Can get caught in "analysis paralysis"`,
			"May not connect easily with others",
		},
		Tips: []string{
			"Practice making decisions with limited information",
			"Share your thought process with others",
			"Make an effort to connect personally with colleagues",
			"Be mindful of perfectionist tendencies",
			"Consider the big picture alongside the details",
		},
	},
}

// ProfileFor returns the narrative for a style, or an empty profile with a
// placeholder description for unknown styles.
func ProfileFor(style models.SocialStyle) StyleProfile {
	if p, ok := styleProfiles[style]; ok {
		return p
	}
	return StyleProfile{Description: "No description available.", Strengths: []string{}, Challenges: []string{}, Tips: []string{}}
}

// Report is the presentation record for one result.
type Report struct {
	Result   models.Result `json:"result"`
	UserName string        `json:"user_name"`
	Profile  StyleProfile  `json:"profile"`
	X        float64       `json:"x"`
	Y        float64       `json:"y"`
}

func NewReport(r models.Result, user *models.User) Report {
	x, y := GridPosition(r.AssertivenessScore, r.ResponsivenessScore)
	return Report{Result: r, UserName: user.DisplayName(), Profile: ProfileFor(r.SocialStyle), X: x, Y: y}
}

// RenderReportText renders a report as plain text for download.
func RenderReportText(rep Report) string {
	var b strings.Builder
	b.WriteString("Social Styles Assessment Report\n")
	b.WriteString("===============================\n\n")
	if rep.UserName != "" {
		fmt.Fprintf(&b, "Name: %s\n", rep.UserName)
	}
	fmt.Fprintf(&b, "Date: %s\n\n", rep.Result.CreatedAt.UTC().Format("January 2, 2006"))
	fmt.Fprintf(&b, "Your social style: %s\n\n", rep.Result.SocialStyle)
	fmt.Fprintf(&b, "Assertiveness:  %.2f\n", rep.Result.AssertivenessScore)
	fmt.Fprintf(&b, "Responsiveness: %.2f\n", rep.Result.ResponsivenessScore)
	fmt.Fprintf(&b, "Grid position:  (%.0f, %.0f)\n\n", rep.X, rep.Y)
	b.WriteString(rep.Profile.Description + "\n")
	writeSection(&b, "Strengths", rep.Profile.Strengths)
	writeSection(&b, "Challenges", rep.Profile.Challenges)
	writeSection(&b, "Tips for Success", rep.Profile.Tips)
	return b.String()
}

func writeSection(b *strings.Builder, title string, lines []string) {
	if len(lines) == 0 {
		return
	}
	fmt.Fprintf(b, "\n%s\n", title)
	for _, l := range lines {
		fmt.Fprintf(b, "  - %s\n", l)
	}
}
