// Package profile holds the standardized resume schema produced by the LLM
// and the text that candidate embeddings are computed from.
package profile

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// UnknownName is used when the standardized profile carries no name.
const UnknownName = "Unknown Candidate"

type Profile struct {
	PersonalInfo    PersonalInfo        `json:"personal_info"`
	Summary         string              `json:"summary"`
	TechnicalSkills map[string][]string `json:"technical_skills,omitempty"`
	Skills          []string            `json:"skills,omitempty"` // flat variant of older prompts
	WorkExperience  []WorkExperience    `json:"work_experience,omitempty"`
	Education       []Education         `json:"education,omitempty"`
	Certifications  []string            `json:"certifications,omitempty"`
}

type PersonalInfo struct {
	Name  string `json:"name"`
	Title string `json:"title"`
}

type WorkExperience struct {
	Title    string    `json:"title"`
	Company  string    `json:"company"`
	Duration string    `json:"duration"`
	Projects []Project `json:"projects,omitempty"`
}

type Project struct {
	Name             string   `json:"name"`
	Description      string   `json:"description"`
	Responsibilities []string `json:"responsibilities,omitempty"`
}

type Education struct {
	Degree      string `json:"degree"`
	Institution string `json:"institution"`
}

// ParseError reports LLM output that could not be turned into a Profile.
// The resume it belongs to is skipped, the batch continues.
type ParseError struct {
	Reason string
	Cause  error
}

func (e *ParseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("failed to parse resume profile: %s: %v", e.Reason, e.Cause)
	}
	return fmt.Sprintf("failed to parse resume profile: %s", e.Reason)
}

func (e *ParseError) Unwrap() error { return e.Cause }

// Parse decodes a standardizer response. Invalid JSON, an {"error": ...}
// marker or a schema violation all yield *ParseError.
func Parse(raw []byte) (*Profile, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil {
		return nil, &ParseError{Reason: "response is not a JSON object", Cause: err}
	}

	if msg, ok := top["error"]; ok {
		var reason string
		if err := json.Unmarshal(msg, &reason); err != nil || reason == "" {
			reason = strings.TrimSpace(string(msg))
		}
		return nil, &ParseError{Reason: reason}
	}

	if err := validateSchema(raw); err != nil {
		return nil, &ParseError{Reason: "response does not match profile schema", Cause: err}
	}

	var p Profile
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, &ParseError{Reason: "response does not match profile schema", Cause: err}
	}
	return &p, nil
}

// DisplayName returns the candidate name or UnknownName.
func (p *Profile) DisplayName() string {
	if p == nil {
		return UnknownName
	}
	if name := strings.TrimSpace(p.PersonalInfo.Name); name != "" {
		return name
	}
	return UnknownName
}

// AllSkills flattens the flat skill list and the categorized skills into one
// de-duplicated list. Categories are visited in sorted order so the result
// does not depend on map iteration.
func (p *Profile) AllSkills() []string {
	if p == nil {
		return nil
	}
	seen := make(map[string]bool)
	var out []string
	add := func(s string) {
		s = strings.TrimSpace(s)
		key := strings.ToLower(s)
		if s == "" || seen[key] {
			return
		}
		seen[key] = true
		out = append(out, s)
	}

	for _, s := range p.Skills {
		add(s)
	}

	categories := make([]string, 0, len(p.TechnicalSkills))
	for c := range p.TechnicalSkills {
		categories = append(categories, c)
	}
	sort.Strings(categories)
	for _, c := range categories {
		for _, s := range p.TechnicalSkills[c] {
			add(s)
		}
	}
	return out
}

// EmbeddingSummary is the text a candidate is embedded from: the professional
// summary plus the skill list. Contact details and formatting never reach it.
func (p *Profile) EmbeddingSummary() string {
	var summary string
	if p != nil {
		summary = strings.TrimSpace(p.Summary)
	}
	return fmt.Sprintf("Professional Summary: %s\nKey Skills: %s", summary, strings.Join(p.AllSkills(), ", "))
}
