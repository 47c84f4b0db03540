package main

import (
	_ "embed"
	"fmt"
	"math/rand"

	"gopkg.in/yaml.v3"

	"github.com/ilramdhan/calc-suite/internal/modules/calculator"
	"github.com/ilramdhan/calc-suite/pkg/formula"
)

//go:embed templates.yaml
var templatesYAML []byte

// template is a seeded calculator definition
type template struct {
	Name        string                `yaml:"name"`
	Description string                `yaml:"description"`
	AngleMode   *formula.AngleMode    `yaml:"angle_mode"`
	Ranges      map[string][2]float64 `yaml:"ranges"`
	Tokens      []formula.Token       `yaml:"tokens"`
}

func loadTemplates() ([]template, error) {
	var templates []template
	if err := yaml.Unmarshal(templatesYAML, &templates); err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	if len(templates) == 0 {
		return nil, fmt.Errorf("no calculator templates")
	}
	return templates, nil
}

// input returns the n-th copy of the template
func (t template) input(n int) calculator.Input {
	return calculator.Input{
		Name:        fmt.Sprintf("%s #%d", t.Name, n),
		Description: t.Description,
		Tokens:      t.Tokens,
		AngleMode:   t.AngleMode,
	}
}

// bindings draws a random value for every variable
func (t template) bindings(vars []string, rng *rand.Rand) formula.Bindings {
	b := make(formula.Bindings, len(vars))
	for _, name := range vars {
		lo, hi := 1.0, 100.0
		if r, ok := t.Ranges[name]; ok {
			lo, hi = r[0], r[1]
		}
		b[name] = lo + rng.Float64()*(hi-lo)
	}
	return b
}
