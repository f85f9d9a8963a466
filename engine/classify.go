package engine

import "strings"

// MatchRule maps a lowercase name substring to a device type. Rules are
// ordered; the first match wins.
type MatchRule struct {
	Pattern string
	Type    DeviceType
}

// defaultRules covers the hardware this project has actually been pointed
// at. Hexaphonic patterns come first so "Fishman TriplePlay Guitar" never
// falls into the generic bucket via a later keyword.
var defaultRules = []MatchRule{
	{"tripleplay", TypeHexaphonic},
	{"fishman", TypeHexaphonic},
	{"gi20", TypeHexaphonic},
	{"gr-55", TypeHexaphonic},
	{"hex", TypeHexaphonic},
	{"fcb1010", TypeFootController},
	{"softstep", TypeFootController},
	{"foot", TypeFootController},
	{"pedal", TypeFootController},
	{"spd", TypePercussionPad},
	{"drum", TypePercussionPad},
	{"pad", TypePercussionPad},
	{"launchkey", TypeKeyboard},
	{"keystation", TypeKeyboard},
	{"mpk", TypeKeyboard},
	{"keyboard", TypeKeyboard},
	{"piano", TypeKeyboard},
	{"key", TypeKeyboard},
}

// defaultExcludes are virtual/system ports that are never registered.
var defaultExcludes = []string{
	"midi through",
	"through port",
	"rtmidi",
	"announce",
	"timer",
	"dummy",
}

// Classifier turns endpoint names into device types using an ordered rule
// list plus an exclude list. Extra rules from config are consulted before
// the built-ins.
type Classifier struct {
	rules    []MatchRule
	excludes []string
}

// NewClassifier builds a classifier with the given extra rules and excludes
// prepended to the defaults.
func NewClassifier(extra []MatchRule, excludes []string) *Classifier {
	return &Classifier{
		rules:    append(append([]MatchRule{}, extra...), defaultRules...),
		excludes: append(append([]string{}, excludes...), defaultExcludes...),
	}
}

// Excluded reports whether the endpoint is a system-internal port that must
// be ignored entirely.
func (c *Classifier) Excluded(name string) bool {
	lower := strings.ToLower(name)
	for _, pat := range c.excludes {
		if strings.Contains(lower, strings.ToLower(pat)) {
			return true
		}
	}
	return false
}

// Classify returns the device type for an endpoint name. Endpoints matching
// no rule come back as TypeUnknown; they are still registered and served by
// the generic adapter.
func (c *Classifier) Classify(name string) DeviceType {
	lower := strings.ToLower(name)
	for _, r := range c.rules {
		if strings.Contains(lower, strings.ToLower(r.Pattern)) {
			return r.Type
		}
	}
	return TypeUnknown
}
