package analyzer

import (
	"bytes"
	"text/template"
)

// SystemPrompt frames the model for providers that take a separate system message
const SystemPrompt = "You are an expert Senior Site Reliability Engineer and Full Stack Developer. " +
	"You reply with a single JSON object and nothing else."

var promptTemplate = template.Must(template.New("prompt").Parse(`You are an expert Senior Site Reliability Engineer and Full Stack Developer.
You are analyzing an input which could be a production error, a code snippet, a data file, or a URL to analyze.

Input Context:
Title/Message: {{.Message}}
Source Identifier: {{.SourceLabel}}

Content/Stack Trace/Data:
{{.Detail}}

Task:
1. Identify the root cause (or analyze the intent of the input data).
2. Assess severity as one of LOW, MEDIUM, HIGH, CRITICAL (if it is just a task, default to LOW or MEDIUM).
3. Generate an output.
   - If it is a bug: provide the code patch.
   - If it is a data file (CSV/JSON): provide a script to parse or clean it, or a summary of the data.
   - If it is a URL: summarize the likely content or issue based on the URL structure.
4. Explain your reasoning.

Output MUST be strictly valid JSON with exactly these keys:
  "root_cause" (string), "severity" (string), "files_to_modify" (array of strings),
  "patch" (string), "explanation" (string), "next_steps" (array of strings).
`))

// Prompt builds the analysis request for one incident
func Prompt(message, detail, sourceLabel string) string {
	if sourceLabel == "" {
		sourceLabel = "unknown"
	}
	var buf bytes.Buffer
	// the template only reads string fields, so Execute cannot fail
	_ = promptTemplate.Execute(&buf, struct {
		Message, Detail, SourceLabel string
	}{message, detail, sourceLabel})
	return buf.String()
}

// Field descriptions shared by the provider schemas
var fieldDescriptions = map[string]string{
	"root_cause":      "The underlying technical reason for the error, or the summary of the input task.",
	"severity":        "Severity level: LOW, MEDIUM, HIGH, CRITICAL",
	"files_to_modify": "List of filenames that need changes or created.",
	"patch":           "The actual code fix, diff, data cleaning script, or detailed summary.",
	"explanation":     "A concise explanation of the solution or analysis.",
	"next_steps":      "Recommended follow-up actions.",
}

// requiredFields lists the keys every reply must carry, in schema order
var requiredFields = []string{"root_cause", "severity", "files_to_modify", "patch", "explanation", "next_steps"}
