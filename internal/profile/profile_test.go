package profile

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleProfile = `{
  "personal_info": {"name": "Ada Lovelace", "title": "Backend Engineer"},
  "summary": "Eight years building distributed systems in Go.",
  "technical_skills": {
    "Languages": ["Go", "Python"],
    "Cloud": ["AWS", "Kubernetes"]
  },
  "work_experience": [
    {
      "title": "Senior Engineer",
      "company": "Analytical Engines",
      "duration": "Nov 2018 - Jul 2021",
      "projects": [
        {"name": "Ledger", "description": "Payment ledger.", "responsibilities": ["Designed the schema"]}
      ]
    }
  ],
  "education": [{"degree": "BSc Mathematics", "institution": "University of London"}],
  "certifications": ["CKA"]
}`

func TestParse(t *testing.T) {
	p, err := Parse([]byte(sampleProfile))
	require.NoError(t, err)

	assert.Equal(t, "Ada Lovelace", p.DisplayName())
	assert.Equal(t, "Backend Engineer", p.PersonalInfo.Title)
	require.Len(t, p.WorkExperience, 1)
	assert.Equal(t, "Analytical Engines", p.WorkExperience[0].Company)
	require.Len(t, p.WorkExperience[0].Projects, 1)
	assert.Equal(t, []string{"Designed the schema"}, p.WorkExperience[0].Projects[0].Responsibilities)
	assert.Equal(t, []string{"CKA"}, p.Certifications)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		reason string
	}{
		{"error marker", `{"error": "Failed to parse resume content from LLM response"}`, "Failed to parse resume content from LLM response"},
		{"invalid json", `not json`, "response is not a JSON object"},
		{"json array", `[1,2]`, "response is not a JSON object"},
		{"skills not a list", `{"summary": "x", "skills": "Go, Python"}`, "response does not match profile schema"},
		{"bad work experience", `{"work_experience": [{"title": 3}]}`, "response does not match profile schema"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Parse([]byte(tt.raw))
			assert.Nil(t, p)

			var pe *ParseError
			require.True(t, errors.As(err, &pe), "expected *ParseError, got %T", err)
			assert.Equal(t, tt.reason, pe.Reason)
		})
	}
}

func TestParseSchemaErrorListsFields(t *testing.T) {
	_, err := Parse([]byte(`{"certifications": "CKA"}`))
	var se *SchemaError
	require.True(t, errors.As(err, &se))
	require.NotEmpty(t, se.Fields)
	assert.Contains(t, se.Fields[0], "certifications")
}

func TestParseAcceptsNullsAndMissingSections(t *testing.T) {
	p, err := Parse([]byte(`{"personal_info": null, "summary": null, "skills": ["Go"]}`))
	require.NoError(t, err)
	assert.Equal(t, UnknownName, p.DisplayName())
	assert.Equal(t, []string{"Go"}, p.AllSkills())
}

func TestAllSkillsDeterministic(t *testing.T) {
	p := &Profile{
		Skills: []string{"Go", "SQL"},
		TechnicalSkills: map[string][]string{
			"Zeta":  {"Terraform"},
			"Alpha": {"go", "Docker"},
			"Mid":   {"Kafka", " "},
		},
	}
	assert.Equal(t, []string{"Go", "SQL", "Docker", "Kafka", "Terraform"}, p.AllSkills())
}

func TestEmbeddingSummary(t *testing.T) {
	p, err := Parse([]byte(sampleProfile))
	require.NoError(t, err)

	want := "Professional Summary: Eight years building distributed systems in Go.\nKey Skills: AWS, Kubernetes, Go, Python"
	assert.Equal(t, want, p.EmbeddingSummary())
}

func TestEmbeddingSummaryIdempotent(t *testing.T) {
	p, err := Parse([]byte(sampleProfile))
	require.NoError(t, err)

	first := p.EmbeddingSummary()
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, p.EmbeddingSummary())
	}
}

func TestEmbeddingSummaryNilProfile(t *testing.T) {
	var p *Profile
	assert.Equal(t, "Professional Summary: \nKey Skills: ", p.EmbeddingSummary())
	assert.Equal(t, UnknownName, p.DisplayName())
}
