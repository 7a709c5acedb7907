package constants

import (
	_ "embed"
	"errors"
	"sync"

	json "github.com/bytedance/sonic"
)

//go:embed capture_rules.json
var captureRulesJSON []byte

type RuleSet struct {
	Title string   `json:"title"`
	Rules []string `json:"rules"`
}

var (
	ruleSets map[string]RuleSet
	errLoad  error
	once     = new(sync.Once)
)

// LoadCaptureRules loads the rule sets from the embedded JSON, keyed by language.
func LoadCaptureRules() (map[string]RuleSet, error) {
	once.Do(func() {
		ruleSets = make(map[string]RuleSet)
		if err := json.Unmarshal(captureRulesJSON, &ruleSets); err != nil {
			errLoad = errors.Join(err, errors.New("failed to unmarshal embedded capture_rules.json"))
		}
	})
	return ruleSets, errLoad
}

// CaptureRules returns the rules for lang, falling back to English.
func CaptureRules(lang string) (RuleSet, bool) {
	sets, err := LoadCaptureRules()
	if err != nil {
		return RuleSet{}, false
	}
	if set, ok := sets[lang]; ok {
		return set, true
	}
	set, ok := sets["en"]
	return set, ok
}
