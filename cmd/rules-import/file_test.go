package main

import (
	"strings"
	"testing"
)

func TestDecodeRules(t *testing.T) {
	specs, err := decodeRules(strings.NewReader(`
rules:
  - name: Bachelors to Asha
    priority: 1
    category: bch
    counselor: asha@example.com
    start_date: "2026-01-01"
  - name: Fallback
    priority: 99
    counselor: ops@example.com
    allow_catch_all: true
    inactive: true
`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(specs) != 2 {
		t.Fatalf("expected 2 rules, got %d", len(specs))
	}
	if specs[0].Category != "bch" || specs[0].CounselorEmail != "asha@example.com" || specs[0].StartDate != "2026-01-01" {
		t.Fatalf("unexpected first rule: %+v", specs[0])
	}
	if !specs[1].AllowCatchAll || !specs[1].Inactive || specs[1].Priority != 99 {
		t.Fatalf("unexpected second rule: %+v", specs[1])
	}
}

func TestDecodeRulesRejectsUnknownKeys(t *testing.T) {
	_, err := decodeRules(strings.NewReader(`
rules:
  - name: Typo
    categroy: bch
    counselor: asha@example.com
`))
	if err == nil {
		t.Fatal("expected unknown key to be rejected")
	}
}

func TestDecodeRulesRejectsEmptyFile(t *testing.T) {
	if _, err := decodeRules(strings.NewReader("")); err == nil {
		t.Fatal("expected empty file error")
	}
	if _, err := decodeRules(strings.NewReader("rules: []\n")); err == nil {
		t.Fatal("expected error for a file without rules")
	}
}
