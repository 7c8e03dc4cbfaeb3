package planner

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Config holds the planning heuristic thresholds
type Config struct {
	Enabled bool
	// MinPromptChars is the prompt length that warrants a plan on its own.
	MinPromptChars int
	// MinEnumeratedSteps is the number of list items that warrants a plan.
	MinEnumeratedSteps int
	// MaxSystemPromptChars disables planning when the system prompt is larger.
	MaxSystemPromptChars int
}

// DefaultConfig returns the default heuristic thresholds
func DefaultConfig() Config {
	return Config{
		Enabled:              true,
		MinPromptChars:       280,
		MinEnumeratedSteps:   2,
		MaxSystemPromptChars: 12000,
	}
}

// Planner decides whether a prompt warrants step tracking and builds plans
type Planner struct {
	config Config
}

// NewPlanner creates a new planner instance
func NewPlanner(config Config) *Planner {
	return &Planner{config: config}
}

var enumeratedLine = regexp.MustCompile(`^\s*(?:\d+[.)]|[-*•])\s+(\S.*)$`)

// enumeratedSteps returns the text of every list item in prompt
func enumeratedSteps(prompt string) []string {
	var steps []string
	for _, line := range strings.Split(prompt, "\n") {
		if m := enumeratedLine.FindStringSubmatch(line); m != nil {
			steps = append(steps, strings.TrimSpace(m[1]))
		}
	}
	return steps
}

// ShouldPlan evaluates the planning heuristic
func (p *Planner) ShouldPlan(prompt, systemPrompt string) bool {
	if !p.config.Enabled {
		return false
	}
	if p.config.MaxSystemPromptChars > 0 && utf8.RuneCountInString(systemPrompt) > p.config.MaxSystemPromptChars {
		return false
	}
	if p.config.MinPromptChars > 0 && utf8.RuneCountInString(prompt) >= p.config.MinPromptChars {
		return true
	}
	return p.config.MinEnumeratedSteps > 0 && len(enumeratedSteps(prompt)) >= p.config.MinEnumeratedSteps
}

// CreatePlan builds a sequential plan from the prompt's list items, or a
// single step covering the whole prompt when it has none
func (p *Planner) CreatePlan(prompt string) (*Plan, error) {
	items := enumeratedSteps(prompt)
	if len(items) == 0 {
		items = []string{firstLine(prompt)}
	}

	steps := make([]Step, len(items))
	for i, item := range items {
		steps[i] = Step{
			ID:          fmt.Sprintf("step-%d", i+1),
			Description: item,
		}
		if i > 0 {
			steps[i].Dependencies = []string{steps[i-1].ID}
		}
	}

	plan, err := p.GeneratePlan(firstLine(prompt), steps)
	if err != nil {
		return nil, err
	}
	plan.Steps[0].Status = StepStatusRunning
	return plan, nil
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = strings.TrimSpace(s[:i])
	}
	const limit = 120
	if utf8.RuneCountInString(s) > limit {
		s = string([]rune(s)[:limit]) + "..."
	}
	return s
}

// GeneratePlan creates a plan with the given description and steps
func (p *Planner) GeneratePlan(description string, steps []Step) (*Plan, error) {
	if description == "" {
		return nil, fmt.Errorf("plan description cannot be empty")
	}
	if len(steps) == 0 {
		return nil, fmt.Errorf("plan must have at least one step")
	}

	if err := validateSteps(steps); err != nil {
		return nil, fmt.Errorf("invalid steps: %w", err)
	}

	for i := range steps {
		if steps[i].ID == "" {
			steps[i].ID = fmt.Sprintf("step-%d", i+1)
		}
		if steps[i].Status == "" {
			steps[i].Status = StepStatusPending
		}
	}

	return &Plan{
		ID:          uuid.New().String(),
		Description: description,
		Steps:       steps,
		CreatedAt:   time.Now(),
	}, nil
}

// validateSteps checks for duplicate ids and dangling or circular dependencies
func validateSteps(steps []Step) error {
	stepIDs := make(map[string]bool)
	for _, step := range steps {
		if step.ID != "" {
			if stepIDs[step.ID] {
				return fmt.Errorf("duplicate step ID: %s", step.ID)
			}
			stepIDs[step.ID] = true
		}
	}

	for _, step := range steps {
		for _, depID := range step.Dependencies {
			if !stepIDs[depID] && depID != "" {
				return fmt.Errorf("step %s depends on non-existent step: %s", step.ID, depID)
			}
		}
	}

	graph := make(map[string][]string)
	for _, step := range steps {
		graph[step.ID] = step.Dependencies
	}

	visited := make(map[string]bool)
	recStack := make(map[string]bool)

	var hasCycle func(string) bool
	hasCycle = func(stepID string) bool {
		visited[stepID] = true
		recStack[stepID] = true

		for _, dep := range graph[stepID] {
			if !visited[dep] {
				if hasCycle(dep) {
					return true
				}
			} else if recStack[dep] {
				return true
			}
		}

		recStack[stepID] = false
		return false
	}

	for _, step := range steps {
		if !visited[step.ID] && hasCycle(step.ID) {
			return fmt.Errorf("circular dependency detected involving step: %s", step.ID)
		}
	}

	return nil
}
