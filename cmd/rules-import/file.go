package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"leadconsole_backend/internal/leads/rules"

	"gopkg.in/yaml.v3"
)

type ruleFile struct {
	Rules []rules.RuleSpec `yaml:"rules"`
}

func readRuleFile(path string) ([]rules.RuleSpec, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open rule file: %w", err)
	}
	defer func() { _ = f.Close() }()
	return decodeRules(f)
}

// decodeRules rejects unknown keys so a typo never silently drops a trigger.
func decodeRules(r io.Reader) ([]rules.RuleSpec, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var file ruleFile
	if err := dec.Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("rule file is empty")
		}
		return nil, fmt.Errorf("parse rule file: %w", err)
	}
	if len(file.Rules) == 0 {
		return nil, fmt.Errorf("rule file has no rules")
	}
	return file.Rules, nil
}
