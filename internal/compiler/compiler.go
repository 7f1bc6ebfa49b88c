// Package compiler loads sequencing configuration from YAML, validates it
// against the embedded CUE schema, and produces the resolved model
// configuration consumed by the tree builder.
//
// Validation happens in two layers: the CUE schema rejects structural and
// vocabulary violations with positional messages, and tree.Build re-validates
// the semantic constraints (unique identifiers, resolvable objective
// references) that a schema cannot express.
package compiler

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"

	"github.com/roach88/scormseq/internal/model"
)

//go:embed schema.cue
var schemaCUE string

// LoadFile reads, validates, and resolves a sequencing configuration file.
func LoadFile(path string) (*model.ActivityConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse validates raw YAML against the schema and resolves it, applying the
// standard defaults for omitted blocks.
func Parse(data []byte) (*model.ActivityConfig, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}

	if err := validateSchema(raw); err != nil {
		return nil, err
	}

	var wire wireActivity
	if err := yaml.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return wire.resolve()
}

// validateSchema unifies the decoded document with the #Activity definition.
func validateSchema(raw any) error {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE)
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Activity"))
	if err := def.Err(); err != nil {
		return fmt.Errorf("lookup schema definition: %w", err)
	}

	doc := ctx.Encode(raw)
	if err := doc.Err(); err != nil {
		return fmt.Errorf("encode config for validation: %w", err)
	}

	unified := def.Unify(doc)
	if err := unified.Validate(cue.Concrete(false)); err != nil {
		return newSchemaError(err)
	}
	return nil
}

// Wire types mirror the YAML shape with pointers where omission and the zero
// value must be distinguished, so defaults can be applied during resolution.

type wireActivity struct {
	ID               string                      `yaml:"id"`
	Title            string                      `yaml:"title"`
	ControlModes     *wireControlModes           `yaml:"control_modes"`
	PreRules         []model.SequencingRule      `yaml:"pre_rules"`
	PostRules        []model.SequencingRule      `yaml:"post_rules"`
	ExitRules        []model.SequencingRule      `yaml:"exit_rules"`
	Limits           *wireLimits                 `yaml:"limits"`
	RollupRules      []model.RollupRule          `yaml:"rollup_rules"`
	RollupControls   *wireRollupControls         `yaml:"rollup_controls"`
	Considerations   model.RollupConsiderations  `yaml:"considerations"`
	PrimaryObjective *model.Objective            `yaml:"primary_objective"`
	Objectives       []model.Objective           `yaml:"objectives"`
	Randomization    model.RandomizationControls `yaml:"randomization"`
	Delivery         *wireDelivery               `yaml:"delivery"`
	Children         []wireActivity              `yaml:"children"`
}

type wireControlModes struct {
	Choice          *bool `yaml:"choice"`
	ChoiceExit      *bool `yaml:"choice_exit"`
	Flow            *bool `yaml:"flow"`
	FlowExit        *bool `yaml:"flow_exit"`
	ForwardOnly     *bool `yaml:"forward_only"`
	ConstrainChoice *bool `yaml:"constrain_choice"`
}

type wireLimits struct {
	AttemptLimit             int    `yaml:"attempt_limit"`
	AbsoluteDurationLimit    string `yaml:"absolute_duration_limit"`
	ExperiencedDurationLimit string `yaml:"experienced_duration_limit"`
}

type wireRollupControls struct {
	RollupObjectiveSatisfied *bool    `yaml:"rollup_objective_satisfied"`
	RollupProgressCompletion *bool    `yaml:"rollup_progress_completion"`
	ObjectiveMeasureWeight   *float64 `yaml:"objective_measure_weight"`
}

type wireDelivery struct {
	Tracked                *bool `yaml:"tracked"`
	CompletionSetByContent bool  `yaml:"completion_set_by_content"`
	ObjectiveSetByContent  bool  `yaml:"objective_set_by_content"`
}

func (w *wireActivity) resolve() (*model.ActivityConfig, error) {
	cfg := &model.ActivityConfig{
		ID:               w.ID,
		Title:            w.Title,
		ControlModes:     resolveControlModes(w.ControlModes),
		PreRules:         w.PreRules,
		PostRules:        w.PostRules,
		ExitRules:        w.ExitRules,
		RollupRules:      w.RollupRules,
		RollupControls:   resolveRollupControls(w.RollupControls),
		Considerations:   w.Considerations,
		PrimaryObjective: w.PrimaryObjective,
		Objectives:       w.Objectives,
		Randomization:    w.Randomization,
		Delivery:         resolveDelivery(w.Delivery),
	}

	if w.Limits != nil {
		limits, err := resolveLimits(w.ID, w.Limits)
		if err != nil {
			return nil, err
		}
		cfg.Limits = limits
	}

	for i := range w.Children {
		child, err := w.Children[i].resolve()
		if err != nil {
			return nil, err
		}
		cfg.Children = append(cfg.Children, *child)
	}
	return cfg, nil
}

func resolveControlModes(w *wireControlModes) model.ControlModes {
	cm := model.DefaultControlModes()
	if w == nil {
		return cm
	}
	setBool(&cm.Choice, w.Choice)
	setBool(&cm.ChoiceExit, w.ChoiceExit)
	setBool(&cm.Flow, w.Flow)
	setBool(&cm.FlowExit, w.FlowExit)
	setBool(&cm.ForwardOnly, w.ForwardOnly)
	setBool(&cm.ConstrainChoice, w.ConstrainChoice)
	return cm
}

func resolveRollupControls(w *wireRollupControls) model.RollupControls {
	rc := model.DefaultRollupControls()
	if w == nil {
		return rc
	}
	setBool(&rc.RollupObjectiveSatisfied, w.RollupObjectiveSatisfied)
	setBool(&rc.RollupProgressCompletion, w.RollupProgressCompletion)
	if w.ObjectiveMeasureWeight != nil {
		rc.ObjectiveMeasureWeight = *w.ObjectiveMeasureWeight
	}
	return rc
}

func resolveDelivery(w *wireDelivery) model.DeliveryControls {
	d := model.DefaultDeliveryControls()
	if w == nil {
		return d
	}
	setBool(&d.Tracked, w.Tracked)
	d.CompletionSetByContent = w.CompletionSetByContent
	d.ObjectiveSetByContent = w.ObjectiveSetByContent
	return d
}

func resolveLimits(activityID string, w *wireLimits) (model.LimitConditions, error) {
	limits := model.LimitConditions{AttemptLimit: w.AttemptLimit}
	var err error
	if limits.AbsoluteDurationLimit, err = parseDuration(w.AbsoluteDurationLimit); err != nil {
		return limits, fmt.Errorf("activity %q: absolute_duration_limit: %w", activityID, err)
	}
	if limits.ExperiencedDurationLimit, err = parseDuration(w.ExperiencedDurationLimit); err != nil {
		return limits, fmt.Errorf("activity %q: experienced_duration_limit: %w", activityID, err)
	}
	return limits, nil
}

func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	return time.ParseDuration(s)
}

func setBool(dst *bool, src *bool) {
	if src != nil {
		*dst = *src
	}
}
