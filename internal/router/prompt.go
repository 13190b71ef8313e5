package router

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"spendrag/internal/core"
)

//go:embed prompts/*.tmpl
var promptFS embed.FS

var prompts = template.Must(template.ParseFS(promptFS, "prompts/*.tmpl"))

// reportTopItems is how many top-items rows go into a report prompt.
const reportTopItems = 10

const noEvidence = "YOK"

type answerPromptData struct {
	Question string
	Results  string
	Evidence string
}

type reportPromptData struct {
	Question string
	Month    string
	Report   string
}

// BuildAnswerPrompt renders the itemized answer prompt from a summary and its
// evidence lines.
func BuildAnswerPrompt(question string, summary core.ResultSummary, evidence string) (string, error) {
	results, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode summary: %w", err)
	}
	evidence = strings.TrimSpace(evidence)
	if evidence == "" {
		evidence = noEvidence
	}
	return render("answer.tmpl", answerPromptData{
		Question: strings.TrimSpace(question),
		Results:  string(results),
		Evidence: evidence,
	})
}

// BuildReportPrompt renders the report prompt with the month's totals, the
// category split and the first top items.
func BuildReportPrompt(question string, report core.MonthlyReport) (string, error) {
	if len(report.TopItems) > reportTopItems {
		report.TopItems = report.TopItems[:reportTopItems]
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode report: %w", err)
	}
	return render("report.tmpl", reportPromptData{
		Question: strings.TrimSpace(question),
		Month:    report.Month,
		Report:   string(data),
	})
}

func render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := prompts.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}
