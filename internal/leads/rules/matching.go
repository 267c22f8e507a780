package rules

import "leadconsole_backend/internal/leads/repository"

// Matches reports whether rule fires for a lead with category and status.
// A nil trigger is a wildcard; a NULL lead category only matches a rule
// without a category trigger.
func Matches(rule repository.Rule, category *string, status string) bool {
	return matchesOptional(rule.TriggerCategory, category) && matchesOptional(rule.TriggerStatus, &status)
}

func matchesOptional(trigger *string, value *string) bool {
	if trigger == nil {
		return true
	}
	if value == nil {
		return false
	}
	return *trigger == *value
}

// FirstMatch scans rules in order and returns the first that fires.
func FirstMatch(ordered []repository.Rule, category *string, status string) (repository.Rule, bool) {
	for _, rule := range ordered {
		if Matches(rule, category, status) {
			return rule, true
		}
	}
	return repository.Rule{}, false
}
