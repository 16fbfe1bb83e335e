// Package rules evaluates an entry against its community's configured
// constraints. Evaluation is a pure function over the entry's facts and the
// community profile; it never touches the archive, so the same check serves
// both the symbolization gate and pre-submission dry runs.
package rules

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"

	"mila/internal/archive"
)

// EntryFacts is the slice of an entry the rule engine inspects.
type EntryFacts struct {
	Title      string
	Language   string
	Transcript string
}

// Result reports a full evaluation. Violations collects every failed check
// rather than stopping at the first, so moderators see the complete picture
// in one pass.
type Result struct {
	Pass       bool
	Violations []string
}

// FactsFor extracts the rule-relevant facts from an entry.
func FactsFor(entry *archive.Entry) EntryFacts {
	if entry == nil {
		return EntryFacts{}
	}
	return EntryFacts{
		Title:      entry.Title,
		Language:   entry.Language,
		Transcript: entry.Transcript,
	}
}

// Evaluate checks the entry facts against the community's rules. A nil
// community means no constraints are configured and everything passes.
func Evaluate(facts EntryFacts, community *archive.Community) Result {
	if community == nil {
		return Result{Pass: true}
	}
	var violations []string
	if v := checkLanguage(facts.Language, community.AllowedLanguages); v != "" {
		violations = append(violations, v)
	}
	violations = append(violations, checkSensitiveTerms(facts, community.SensitiveTerms)...)
	if v := checkValidatorCount(community); v != "" {
		violations = append(violations, v)
	}
	return Result{Pass: len(violations) == 0, Violations: violations}
}

// checkLanguage matches on BCP-47 base tags so "sw" admits "sw-KE" and
// "sw-TZ". An empty allow list admits every language. Tags that fail to
// parse fall back to exact string comparison.
func checkLanguage(lang string, allowed []string) string {
	if len(allowed) == 0 {
		return ""
	}
	entryBase := baseTag(lang)
	for _, candidate := range allowed {
		if strings.EqualFold(strings.TrimSpace(candidate), strings.TrimSpace(lang)) {
			return ""
		}
		if entryBase != "" && baseTag(candidate) == entryBase {
			return ""
		}
	}
	return fmt.Sprintf("language %q is not in the community's allowed languages (%s)",
		lang, strings.Join(allowed, ", "))
}

func baseTag(lang string) string {
	tag, err := language.Parse(strings.TrimSpace(lang))
	if err != nil {
		return ""
	}
	base, _ := tag.Base()
	return base.String()
}

// checkSensitiveTerms scans title and transcript for each configured term,
// case-insensitively. Every matched term is its own violation.
func checkSensitiveTerms(facts EntryFacts, terms []string) []string {
	if len(terms) == 0 {
		return nil
	}
	haystack := strings.ToLower(facts.Title + "\n" + facts.Transcript)
	var violations []string
	for _, term := range terms {
		needle := strings.ToLower(strings.TrimSpace(term))
		if needle == "" {
			continue
		}
		if strings.Contains(haystack, needle) {
			violations = append(violations, fmt.Sprintf("content contains the sensitive term %q", term))
		}
	}
	return violations
}

func checkValidatorCount(community *archive.Community) string {
	if community.MinValidators <= 0 {
		return ""
	}
	if len(community.Validators) >= community.MinValidators {
		return ""
	}
	return fmt.Sprintf("community has %d validators but requires at least %d",
		len(community.Validators), community.MinValidators)
}
