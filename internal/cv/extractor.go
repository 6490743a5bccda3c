package cv

import (
	"context"
	"strings"

	"cv-match/internal/profile"

	"go.uber.org/zap"
)

// skillKeywords drives the keyword extractor used when no LLM is configured.
var skillKeywords = []string{
	"Go", "Golang", "Python", "Java", "JavaScript", "TypeScript",
	"React", "Vue", "Angular", "Node.js", "Docker", "Kubernetes",
	"PostgreSQL", "MySQL", "MongoDB", "Redis", "AWS", "Azure", "GCP",
	"GraphQL", "REST", "Microservices", "Git", "CI/CD",
	"Machine Learning", "Data Science", "DevOps",
}

// KeywordExtractor builds a minimal profile without an LLM: the first
// paragraph becomes the summary and skills come from keyword matching.
type KeywordExtractor struct {
	log *zap.Logger
}

func NewKeywordExtractor(log *zap.Logger) *KeywordExtractor {
	return &KeywordExtractor{log: log}
}

// Standardize satisfies the standardizer contract used by the orchestrator.
func (e *KeywordExtractor) Standardize(ctx context.Context, text string) (*profile.Profile, error) {
	if strings.TrimSpace(text) == "" {
		return nil, &profile.ParseError{Reason: "resume text is empty"}
	}

	p := &profile.Profile{
		Summary: firstParagraph(text),
		Skills:  ExtractSkills(text),
	}
	e.log.Debug("[KeywordExtractor] extracted profile", zap.Int("skills", len(p.Skills)))
	return p, nil
}

// ExtractSkills performs keyword skill matching on word boundaries.
func ExtractSkills(text string) []string {
	words := make(map[string]bool)
	lower := strings.ToLower(text)
	for _, w := range strings.FieldsFunc(lower, isSeparator) {
		words[strings.TrimRight(w, ".!?")] = true
	}

	var skills []string
	for _, skill := range skillKeywords {
		k := strings.ToLower(skill)
		if strings.ContainsAny(k, " ") {
			if strings.Contains(lower, k) {
				skills = append(skills, skill)
			}
			continue
		}
		if words[k] {
			skills = append(skills, skill)
		}
	}
	return skills
}

func isSeparator(r rune) bool {
	switch r {
	case ' ', '\n', '\t', ',', ';', ':', '(', ')', '[', ']', '|', '"', '\'':
		return true
	}
	return false
}

func firstParagraph(text string) string {
	text = strings.TrimSpace(NormalizeText(text))
	if i := strings.Index(text, "\n\n"); i >= 0 {
		text = text[:i]
	}
	return strings.Join(strings.Fields(text), " ")
}
