// Package analysis builds the instruction sent to the AI provider for a
// resume-vs-job-description comparison.
package analysis

import (
	_ "embed"
	"strings"
	"text/template"
)

//go:embed prompts/resume_match.tmpl
var resumeMatchPromptRaw string

// resumeMatchTemplate is parsed once at package init. text/template does no
// escaping, so both inputs reach the model byte for byte.
var resumeMatchTemplate = template.Must(template.New("resume_match").Parse(resumeMatchPromptRaw))

type promptData struct {
	Resume         string
	JobDescription string
}

// BuildPrompt embeds the resume and job description verbatim into the fixed
// analysis template. It is pure and deterministic.
func BuildPrompt(resumeText, jobDescriptionText string) string {
	var sb strings.Builder
	// Executing a parsed template over plain string fields into a Builder cannot fail.
	_ = resumeMatchTemplate.Execute(&sb, promptData{
		Resume:         resumeText,
		JobDescription: jobDescriptionText,
	})
	return sb.String()
}
