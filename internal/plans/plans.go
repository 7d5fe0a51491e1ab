// Package plans holds the static plan catalogue. Built-in tiers can be
// overridden from a YAML file; the catalogue is read-only after load.
package plans

import (
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/harshite737-crypto/haste/internal/model"
)

// Defaults are the built-in tiers used when no plans file is configured.
var Defaults = []model.Plan{
	{Name: model.PlanFree, MessagesPerDay: 50, MediaPerDay: 2, DelayMin: 2 * time.Second, DelayMax: 4 * time.Second},
	{Name: model.PlanTier2, MessagesPerDay: 200, MediaPerDay: 10, DelayMin: 1 * time.Second, DelayMax: 2 * time.Second},
	{Name: model.PlanTier3, MessagesPerDay: 1000, MediaPerDay: 50, DelayMin: 0, DelayMax: 500 * time.Millisecond},
	{Name: model.PlanUnlimited, MessagesPerDay: model.Unbounded, MediaPerDay: model.Unbounded},
}

// Catalog resolves plan names to plans.
type Catalog struct {
	plans       map[string]model.Plan
	defaultPlan string
}

type fileFormat struct {
	Plans []model.Plan `yaml:"plans"`
}

// New builds a catalogue from plans. defaultPlan must name one of them.
func New(defaultPlan string, ps ...model.Plan) (*Catalog, error) {
	c := &Catalog{plans: make(map[string]model.Plan, len(ps)), defaultPlan: defaultPlan}
	for _, p := range ps {
		if err := validate(p); err != nil {
			return nil, err
		}
		c.plans[p.Name] = p
	}
	if _, ok := c.plans[model.PlanUnlimited]; !ok {
		return nil, fmt.Errorf("plan %q must be defined", model.PlanUnlimited)
	}
	if _, ok := c.plans[defaultPlan]; !ok {
		return nil, fmt.Errorf("default plan %q is not defined", defaultPlan)
	}
	return c, nil
}

// Load returns the built-in catalogue with any plans in path layered on top.
// An empty path yields the defaults.
func Load(path, defaultPlan string) (*Catalog, error) {
	merged := make(map[string]model.Plan, len(Defaults))
	for _, p := range Defaults {
		merged[p.Name] = p
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read plans file: %w", err)
		}
		var ff fileFormat
		if err := yaml.Unmarshal(raw, &ff); err != nil {
			return nil, fmt.Errorf("parse plans file: %w", err)
		}
		for _, p := range ff.Plans {
			merged[p.Name] = p
		}
	}
	list := make([]model.Plan, 0, len(merged))
	for _, p := range merged {
		list = append(list, p)
	}
	return New(defaultPlan, list...)
}

func validate(p model.Plan) error {
	if p.Name == "" {
		return model.NewValidationError("name", "plan name is required")
	}
	if p.MessagesPerDay < model.Unbounded || p.MediaPerDay < model.Unbounded {
		return model.NewValidationError(p.Name, "limits must be >= -1")
	}
	if p.DelayMin < 0 || p.DelayMax < p.DelayMin {
		return model.NewValidationError(p.Name, "delay range must satisfy 0 <= min <= max")
	}
	if p.Name == model.PlanUnlimited && (p.DelayMin != 0 || p.DelayMax != 0) {
		return model.NewValidationError(p.Name, "unlimited plan must not be delayed")
	}
	return nil
}

// Get returns the plan with the given name.
func (c *Catalog) Get(name string) (model.Plan, bool) {
	p, ok := c.plans[name]
	return p, ok
}

// Default returns the plan assigned to identities without an account.
func (c *Catalog) Default() model.Plan { return c.plans[c.defaultPlan] }

// Unlimited returns the unlimited tier.
func (c *Catalog) Unlimited() model.Plan { return c.plans[model.PlanUnlimited] }

// Resolve returns the named plan, or the default plan when the name is unknown.
func (c *Catalog) Resolve(name string) model.Plan {
	if p, ok := c.plans[name]; ok {
		return p
	}
	return c.Default()
}

// List returns all plans ordered by daily message allowance, unbounded last.
func (c *Catalog) List() []model.Plan {
	out := make([]model.Plan, 0, len(c.plans))
	for _, p := range c.plans {
		out = append(out, p)
	}
	rank := func(p model.Plan) int {
		if p.MessagesPerDay == model.Unbounded {
			return int(^uint(0) >> 1)
		}
		return p.MessagesPerDay
	}
	sort.Slice(out, func(i, j int) bool {
		if rank(out[i]) == rank(out[j]) {
			return out[i].Name < out[j].Name
		}
		return rank(out[i]) < rank(out[j])
	})
	return out
}
