package tenderapi

import (
	"encoding/json"

	"github.com/cloudx-io/opentender/core"
)

// ParsePreferences decodes a stored preference document.
// Empty or malformed input yields core.DefaultPreferences; fields missing from
// the document keep their default value, exactly as when a vector arrives inside a request.
func ParsePreferences(raw []byte) (core.PreferenceVector, error) {
	if len(raw) == 0 {
		return core.DefaultPreferences(), nil
	}
	var prefs core.PreferenceVector
	if err := json.Unmarshal(raw, &prefs); err != nil {
		return core.DefaultPreferences(), err
	}
	return prefs, nil
}

// ResolvePreferences returns p, or the defaults when p is nil.
func ResolvePreferences(p *core.PreferenceVector) core.PreferenceVector {
	if p == nil {
		return core.DefaultPreferences()
	}
	return *p
}
