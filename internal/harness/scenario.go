package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/scormseq/internal/model"
)

// Scenario defines a conformance test scenario. Scenarios drive a real
// session through a series of navigation requests and progress reports, then
// assert on the final state.
type Scenario struct {
	// Name uniquely identifies this scenario. Doubles as the golden file name.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Config is the path to the sequencing configuration YAML, relative to
	// the scenario file location.
	Config string `yaml:"config"`

	// SessionID is an optional fixed session identifier for deterministic
	// traces. Defaults to "test-session-default".
	SessionID string `yaml:"session_id,omitempty"`

	// Seed keys the selection source. Scenarios without randomization can
	// leave it zero.
	Seed int64 `yaml:"seed,omitempty"`

	// Steps is the main flow: navigation requests and progress reports.
	Steps []Step `yaml:"steps"`

	// Final asserts on the session state after all steps ran.
	Final *FinalState `yaml:"final,omitempty"`
}

// Step is one scenario step. Exactly one of Request or Update must be set.
type Step struct {
	// Request is a navigation request to process.
	Request model.NavigationRequest `yaml:"request,omitempty"`

	// Target is the choice target, for request: choice.
	Target string `yaml:"target,omitempty"`

	// Expect validates the navigation result. If nil, the request is assumed
	// to succeed.
	Expect *ExpectClause `yaml:"expect,omitempty"`

	// Update reports content progress for an activity.
	Update *UpdateStep `yaml:"update,omitempty"`
}

// UpdateStep reports tracking values for a leaf activity, as a content
// player would. Nil fields are not reported.
type UpdateStep struct {
	Activity  string   `yaml:"activity"`
	Completed *bool    `yaml:"completed,omitempty"`
	Satisfied *bool    `yaml:"satisfied,omitempty"`
	Measure   *float64 `yaml:"measure,omitempty"`
}

// ExpectClause specifies the expected navigation result. Subset match: only
// set fields are validated.
type ExpectClause struct {
	Success    *bool  `yaml:"success,omitempty"`
	Delivered  string `yaml:"delivered,omitempty"`
	Reason     string `yaml:"reason,omitempty"`
	Redirected string `yaml:"redirected,omitempty"`
	Phase      string `yaml:"phase,omitempty"`
}

// FinalState asserts on the session after the last step.
type FinalState struct {
	Phase      string                    `yaml:"phase,omitempty"`
	Current    string                    `yaml:"current,omitempty"`
	Suspended  string                    `yaml:"suspended,omitempty"`
	Activities map[string]ActivityExpect `yaml:"activities,omitempty"`
	Globals    map[string]GlobalExpect   `yaml:"globals,omitempty"`
}

// ActivityExpect is a subset match on one activity's tracking state.
type ActivityExpect struct {
	Completion string   `yaml:"completion,omitempty"`
	Satisfied  string   `yaml:"satisfied,omitempty"`
	Measure    *float64 `yaml:"measure,omitempty"`
	Attempts   *int     `yaml:"attempts,omitempty"`
	Suspended  *bool    `yaml:"suspended,omitempty"`
}

// GlobalExpect is a subset match on one global objective.
type GlobalExpect struct {
	Satisfied string   `yaml:"satisfied,omitempty"`
	Measure   *float64 `yaml:"measure,omitempty"`
}

// LoadScenario reads and parses a scenario YAML file. The config path is
// resolved relative to the scenario file. Unknown fields are rejected so
// typos fail loudly.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}

	if scenario.Config != "" && !filepath.IsAbs(scenario.Config) {
		scenario.Config = filepath.Join(filepath.Dir(path), scenario.Config)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Config == "" {
		return fmt.Errorf("config is required")
	}
	if _, err := os.Stat(s.Config); os.IsNotExist(err) {
		return fmt.Errorf("config file not found: %s", s.Config)
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		hasRequest := step.Request != ""
		hasUpdate := step.Update != nil
		if hasRequest == hasUpdate {
			return fmt.Errorf("steps[%d]: exactly one of request or update is required", i)
		}
		if hasRequest && !model.ValidRequests[step.Request] {
			return fmt.Errorf("steps[%d]: unknown request %q", i, step.Request)
		}
		if hasRequest && step.Request == model.RequestChoice && step.Target == "" {
			return fmt.Errorf("steps[%d]: choice requires a target", i)
		}
		if hasUpdate {
			if step.Update.Activity == "" {
				return fmt.Errorf("steps[%d]: update requires an activity", i)
			}
			if step.Expect != nil {
				return fmt.Errorf("steps[%d]: expect is only valid on requests", i)
			}
		}
	}

	return nil
}
