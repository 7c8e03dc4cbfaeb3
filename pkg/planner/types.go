package planner

import "time"

// Plan is a lightweight multi-step tracker attached to one run
type Plan struct {
	ID          string    `json:"id"`
	Description string    `json:"description"`
	Steps       []Step    `json:"steps"`
	CurrentStep int       `json:"current_step"`
	CreatedAt   time.Time `json:"created_at"`
}

// Step represents a single step in a plan
type Step struct {
	ID           string      `json:"id"`
	Description  string      `json:"description"`
	Dependencies []string    `json:"dependencies"` // IDs of steps that must complete first
	Status       StepStatus  `json:"status"`
	Result       *StepResult `json:"result,omitempty"`
}

// StepStatus represents the execution status of a step
type StepStatus string

const (
	StepStatusPending   StepStatus = "pending"
	StepStatusRunning   StepStatus = "running"
	StepStatusCompleted StepStatus = "completed"
	StepStatusFailed    StepStatus = "failed"
	StepStatusSkipped   StepStatus = "skipped"
)

// StepResult records how a step ended
type StepResult struct {
	Success   bool      `json:"success"`
	Output    string    `json:"output"`
	Timestamp time.Time `json:"timestamp"`
}

// Current returns the step in progress, or nil once every step is done.
func (p *Plan) Current() *Step {
	if p == nil || p.CurrentStep < 0 || p.CurrentStep >= len(p.Steps) {
		return nil
	}
	return &p.Steps[p.CurrentStep]
}

// Done reports whether every step has been advanced past.
func (p *Plan) Done() bool {
	return p == nil || p.CurrentStep >= len(p.Steps)
}

// Advance completes the current step with output and moves to the next one.
// It returns false when the plan was already done.
func (p *Plan) Advance(output string) bool {
	step := p.Current()
	if step == nil {
		return false
	}
	step.Status = StepStatusCompleted
	step.Result = &StepResult{
		Success:   true,
		Output:    output,
		Timestamp: time.Now(),
	}
	p.CurrentStep++
	if next := p.Current(); next != nil {
		next.Status = StepStatusRunning
	}
	return true
}

// Clone returns a deep copy safe to hand to event subscribers.
func (p *Plan) Clone() *Plan {
	if p == nil {
		return nil
	}
	out := *p
	out.Steps = make([]Step, len(p.Steps))
	for i, s := range p.Steps {
		s.Dependencies = append([]string(nil), s.Dependencies...)
		if s.Result != nil {
			r := *s.Result
			s.Result = &r
		}
		out.Steps[i] = s
	}
	return &out
}
