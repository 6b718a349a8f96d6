package publisher

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	publishedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	rateLimitedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	failedStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	headerStyle      = lipgloss.NewStyle().Bold(true)
)

// Report partitions batch outcomes by terminal state.
type Report struct {
	Published   []Outcome
	RateLimited []Outcome
	Failed      []Outcome
}

func NewReport(outcomes []Outcome) *Report {
	report := &Report{}
	for _, o := range outcomes {
		switch o.State {
		case Published:
			report.Published = append(report.Published, o)
		case RateLimited:
			report.RateLimited = append(report.RateLimited, o)
		default:
			report.Failed = append(report.Failed, o)
		}
	}
	return report
}

func (r *Report) Total() int {
	return len(r.Published) + len(r.RateLimited) + len(r.Failed)
}

// AllPublished reports whether every video in the batch reached a terminal
// published status.
func (r *Report) AllPublished() bool {
	return len(r.RateLimited) == 0 && len(r.Failed) == 0
}

// Render produces the human-readable batch summary.
func (r *Report) Render() string {
	var b strings.Builder

	b.WriteString(headerStyle.Render(fmt.Sprintf("Published %d/%d videos", len(r.Published), r.Total())))
	b.WriteString("\n")

	for _, o := range r.Published {
		b.WriteString(publishedStyle.Render(fmt.Sprintf("  ✓ %s (publish_id: %s, status: %s)", o.VideoPath, o.PublishID, o.FinalStatus)))
		b.WriteString("\n")
	}
	for _, o := range r.RateLimited {
		b.WriteString(rateLimitedStyle.Render(fmt.Sprintf("  ~ %s skipped: rate limit reached", o.VideoPath)))
		b.WriteString("\n")
	}
	for _, o := range r.Failed {
		b.WriteString(failedStyle.Render(fmt.Sprintf("  ✗ %s failed: %s", o.VideoPath, o.Reason)))
		b.WriteString("\n")
	}

	if len(r.RateLimited) > 0 {
		b.WriteString(rateLimitedStyle.Render(fmt.Sprintf("%d videos hit the pending-share limit; retry them later.", len(r.RateLimited))))
		b.WriteString("\n")
	}

	return b.String()
}
