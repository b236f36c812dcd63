package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/debugops/debugops/internal/incidents"
	"github.com/debugops/debugops/internal/utils"
)

// reportFrontMatter is the YAML header of an incident report
type reportFrontMatter struct {
	ID        string `yaml:"id"`
	Status    string `yaml:"status"`
	Severity  string `yaml:"severity,omitempty"`
	Source    string `yaml:"source"`
	CreatedAt string `yaml:"created_at"`
	CreatedBy string `yaml:"created_by,omitempty"`
	Engine    string `yaml:"engine,omitempty"`
}

// ReportService renders an incident, its patch and its timeline as markdown
type ReportService struct {
	store incidents.Store
}

// NewReportService creates a new ReportService
func NewReportService(store incidents.Store) *ReportService {
	return &ReportService{store: store}
}

// Render returns the markdown report of an incident
func (s *ReportService) Render(ctx context.Context, id string) (string, error) {
	inc, err := s.store.GetIncident(ctx, id)
	if err != nil {
		return "", err
	}
	events, err := s.store.ListEvents(ctx, id)
	if err != nil {
		return "", err
	}
	patch, err := s.store.GetPatch(ctx, id)
	if err != nil && !errors.Is(err, incidents.ErrNotFound) {
		return "", err
	}

	fm := reportFrontMatter{
		ID:        inc.ID,
		Status:    string(inc.Status),
		Source:    inc.SourceLabel,
		CreatedAt: inc.CreatedAt.UTC().Format(time.RFC3339),
		CreatedBy: inc.CreatedBy,
	}
	if patch != nil {
		fm.Severity = string(patch.Severity)
		fm.Engine = patch.Engine
	}
	header, err := yaml.Marshal(fm)
	if err != nil {
		return "", fmt.Errorf("failed to encode report header: %w", err)
	}

	var b strings.Builder
	b.WriteString("---\n")
	b.Write(header)
	b.WriteString("---\n\n")

	fmt.Fprintf(&b, "# %s\n\n", utils.TruncateText(inc.Message, 120))
	b.WriteString("## Report\n\n")
	writeFenced(&b, inc.Detail)

	if patch != nil {
		b.WriteString("## Root Cause\n\n")
		b.WriteString(patch.RootCause + "\n\n")
		if patch.Explanation != "" {
			b.WriteString("## Explanation\n\n")
			b.WriteString(patch.Explanation + "\n\n")
		}
		if len(patch.FilesToModify) > 0 {
			b.WriteString("## Files to Modify\n\n")
			for _, f := range patch.FilesToModify {
				fmt.Fprintf(&b, "- `%s`\n", f)
			}
			b.WriteString("\n")
		}
		b.WriteString("## Patch\n\n")
		writeFenced(&b, patch.PatchText)
		if len(patch.NextSteps) > 0 {
			b.WriteString("## Next Steps\n\n")
			for i, step := range patch.NextSteps {
				fmt.Fprintf(&b, "%d. %s\n", i+1, step)
			}
			b.WriteString("\n")
		}
	}

	b.WriteString("## Timeline\n\n")
	if len(events) == 0 {
		b.WriteString("_No events recorded._\n")
	}
	for _, ev := range events {
		fmt.Fprintf(&b, "- %s **%s** (%s) %s\n",
			ev.Timestamp.UTC().Format("2006-01-02 15:04:05"),
			ev.Step,
			ev.Outcome,
			ev.Description,
		)
	}
	return b.String(), nil
}

// writeFenced writes text as a code block, widening the fence if text contains one
func writeFenced(b *strings.Builder, text string) {
	fence := "```"
	for strings.Contains(text, fence) {
		fence += "`"
	}
	b.WriteString(fence + "\n")
	b.WriteString(strings.TrimRight(text, "\n"))
	b.WriteString("\n" + fence + "\n\n")
}
