// Package assessment loads question sets from YAML files.
package assessment

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/gmoorevt/socialstyles/internal/models"
	"github.com/gmoorevt/socialstyles/internal/services"
)

//go:embed default.yaml
var defaultYAML []byte

// Definition is a question set as written on disk.
type Definition struct {
	Name        string            `yaml:"name"`
	Description string            `yaml:"description"`
	ScaleMax    int               `yaml:"scale_max"`
	Questions   []models.Question `yaml:"questions"`
}

// Default returns the built-in 30 question Likert set.
func Default() (*Definition, error) {
	return Load(bytes.NewReader(defaultYAML))
}

// LoadFile reads a definition from path.
func LoadFile(path string) (*Definition, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open question set: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Load decodes and validates a definition. Unknown keys are rejected.
func Load(r io.Reader) (*Definition, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var d Definition
	if err := dec.Decode(&d); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("question set is empty")
		}
		return nil, fmt.Errorf("decode question set: %w", err)
	}
	if d.ScaleMax == 0 {
		d.ScaleMax = services.DefaultMaxAnswer
	}
	for i := range d.Questions {
		if d.Questions[i].Format == "" {
			d.Questions[i].Format = models.FormatLikert
		}
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return &d, nil
}

// Validate requires exactly QuestionsPerCategory questions on each axis,
// unique positive ids and labels on paired questions.
func (d *Definition) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return errors.New("question set name is required")
	}
	if d.ScaleMax < 2 {
		return fmt.Errorf("scale_max must be at least 2, got %d", d.ScaleMax)
	}
	seen := map[int]bool{}
	counts := map[models.Category]int{}
	for _, q := range d.Questions {
		if q.ID <= 0 {
			return fmt.Errorf("question id must be positive, got %d", q.ID)
		}
		if seen[q.ID] {
			return fmt.Errorf("duplicate question id %d", q.ID)
		}
		seen[q.ID] = true
		if strings.TrimSpace(q.Text) == "" {
			return fmt.Errorf("question %d has no text", q.ID)
		}
		switch q.Category {
		case models.CategoryAssertiveness, models.CategoryResponsiveness:
			counts[q.Category]++
		default:
			return fmt.Errorf("question %d has unknown category %q", q.ID, q.Category)
		}
		switch q.Format {
		case models.FormatLikert:
		case models.FormatPaired:
			if q.LeftLabel == "" || q.RightLabel == "" {
				return fmt.Errorf("paired question %d needs left_label and right_label", q.ID)
			}
		default:
			return fmt.Errorf("question %d has unknown format %q", q.ID, q.Format)
		}
	}
	for _, c := range []models.Category{models.CategoryAssertiveness, models.CategoryResponsiveness} {
		if counts[c] != services.QuestionsPerCategory {
			return fmt.Errorf("%s needs %d questions, got %d", c, services.QuestionsPerCategory, counts[c])
		}
	}
	return nil
}

// Assessment converts the definition into an inactive record with no id;
// the service assigns both.
func (d *Definition) Assessment() *models.Assessment {
	qs := make([]models.Question, len(d.Questions))
	copy(qs, d.Questions)
	return &models.Assessment{
		Name:        d.Name,
		Description: d.Description,
		ScaleMax:    d.ScaleMax,
		Questions:   qs,
	}
}
