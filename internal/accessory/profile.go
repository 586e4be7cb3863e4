package accessory

import (
	"sort"

	"github.com/nerrad567/solar-bridge/internal/format"
)

// DefaultModel is the model assumed when none is configured.
const DefaultModel = "PIP-2424LV-MSD"

// Profile bundles the product-specific derivation rules.
type Profile struct {
	Model string

	// LowBatteryThreshold is the capacity percentage below which the battery
	// is reported low.
	LowBatteryThreshold int

	// OutletRule decides which reading marks the AC output as in use.
	OutletRule format.OutletRule
}

var profiles = map[string]Profile{
	"PIP-2424LV-MSD": {
		Model:               "PIP-2424LV-MSD",
		LowBatteryThreshold: 10,
		OutletRule:          format.OutletRuleLoadPercent,
	},
	"PIP-5048MG": {
		Model:               "PIP-5048MG",
		LowBatteryThreshold: 25,
		OutletRule:          format.OutletRuleActivePower,
	},
}

// LookupProfile returns the built-in profile for model. Unknown models get
// the default model's rules under their own name, and ok is false.
func LookupProfile(model string) (p Profile, ok bool) {
	p, ok = profiles[model]
	if ok {
		return p, true
	}
	p = profiles[DefaultModel]
	if model != "" {
		p.Model = model
	}
	return p, false
}

// Models returns the models with a built-in profile, sorted.
func Models() []string {
	out := make([]string, 0, len(profiles))
	for m := range profiles {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// WithOverrides returns p with any non-zero override applied.
func (p Profile) WithOverrides(lowBatteryThreshold int, outletRule string) Profile {
	if lowBatteryThreshold > 0 {
		p.LowBatteryThreshold = lowBatteryThreshold
	}
	if outletRule != "" {
		p.OutletRule = format.OutletRule(outletRule)
	}
	return p
}
