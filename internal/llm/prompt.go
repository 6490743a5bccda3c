package llm

import "fmt"

const standardizeSystemPrompt = `You are an expert HR data analyst who parses resumes.
Extract the information from the resume text into ONE valid JSON object with exactly these keys:
"personal_info", "summary", "technical_skills", "work_experience", "education", "certifications".

- "personal_info": object with "name" and "title" (e.g. "AWS DevOps Engineer").
- "summary": the professional summary: core expertise and years of experience.
- "technical_skills": object; each key is a skill category as listed in the resume
  (e.g. "Operating Systems", "Cloud"), each value is a list of skill strings.
- "work_experience": list of jobs. Each job has "title", "company", "duration"
  (e.g. "Nov 2018 - Jul 2021") and "projects": a list of objects with "name",
  "description" (1-2 sentences) and "responsibilities" (list of strings).
- "education": list of objects with "degree" and "institution".
- "certifications": list of certificate names.

Never include contact information (email, phone, address).
Return only the JSON object, no markdown and no explanation.
If the text is not a resume, return {"error": "<short reason>"}.`

func standardizeUserPrompt(text string) string {
	return fmt.Sprintf("Here is the resume text:\n\n%s", text)
}
