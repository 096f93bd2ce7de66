package api

import (
	"fmt"
	"strings"

	"github.com/iliamunaev/Valinor-Secure/internal/radar"
)

// renderBrief lays the assessment out as a Markdown trust brief. The PDF
// exporter consumes this; it is also handy for debugging.
func renderBrief(a *radar.Assessment) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Trust Brief: %s\n", a.ProductName)
	fmt.Fprintf(&sb, "%s\n\n", a.GeneratedAt.Format("2006-01-02"))

	fmt.Fprintf(&sb, "## Summary\n")
	fmt.Fprintf(&sb, "Trust score: %d/100 (confidence: %s)\n\n", a.TrustScore.Score, a.TrustScore.Confidence)
	if a.TrustScore.Rationale != "" {
		fmt.Fprintf(&sb, "%s\n\n", a.TrustScore.Rationale)
	}

	fmt.Fprintf(&sb, "## Vendor\n")
	fmt.Fprintf(&sb, "- Name: %s\n", a.Vendor.Name)
	if a.Vendor.Website != "" {
		fmt.Fprintf(&sb, "- Website: %s\n", a.Vendor.Website)
	}
	if a.Vendor.Country != "" {
		fmt.Fprintf(&sb, "- Country: %s\n", a.Vendor.Country)
	}
	fmt.Fprintf(&sb, "- Reputation: %s\n\n", a.Vendor.ReputationSummary)

	fmt.Fprintf(&sb, "## Classification\n")
	fmt.Fprintf(&sb, "- Category: %s\n", a.Category)
	if a.DeploymentModel != "" {
		fmt.Fprintf(&sb, "- Deployment: %s\n", a.DeploymentModel)
	}
	if a.Description != "" {
		fmt.Fprintf(&sb, "\n%s\n", a.Description)
	}
	sb.WriteString("\n")

	fmt.Fprintf(&sb, "## Vulnerability history\n")
	fmt.Fprintf(&sb, "- Total CVEs: %d (critical %d, high %d, medium %d, low %d)\n",
		a.CVETrends.TotalCVEs, a.CVETrends.CriticalCount, a.CVETrends.HighCount,
		a.CVETrends.MediumCount, a.CVETrends.LowCount)
	fmt.Fprintf(&sb, "- Trend: %s\n\n", a.CVETrends.TrendSummary)

	if len(a.Incidents) > 0 {
		fmt.Fprintf(&sb, "## Incidents\n")
		for _, inc := range a.Incidents {
			fmt.Fprintf(&sb, "- [%s] %s\n", inc.Severity, inc.Description)
		}
		sb.WriteString("\n")
	}

	fmt.Fprintf(&sb, "## Compliance\n%s\n\n", a.Compliance.Notes)

	if len(a.TrustScore.RiskFactors) > 0 {
		fmt.Fprintf(&sb, "## Risk factors\n")
		for _, r := range a.TrustScore.RiskFactors {
			fmt.Fprintf(&sb, "- %s\n", r)
		}
		sb.WriteString("\n")
	}
	if len(a.TrustScore.PositiveFactors) > 0 {
		fmt.Fprintf(&sb, "## Positive factors\n")
		for _, p := range a.TrustScore.PositiveFactors {
			fmt.Fprintf(&sb, "- %s\n", p)
		}
		sb.WriteString("\n")
	}

	if len(a.Alternatives) > 0 {
		fmt.Fprintf(&sb, "## Safer alternatives\n")
		for _, alt := range a.Alternatives {
			fmt.Fprintf(&sb, "- %s (%s): %s\n", alt.ProductName, alt.Vendor, alt.Rationale)
		}
		sb.WriteString("\n")
	}

	if len(a.Citations) > 0 {
		fmt.Fprintf(&sb, "## References\n")
		for i, cit := range a.Citations {
			if cit.URL != "" {
				fmt.Fprintf(&sb, "%d. [%s](%s)\n", i+1, cit.Title, cit.URL)
			} else {
				fmt.Fprintf(&sb, "%d. %s\n", i+1, cit.Title)
			}
		}
	}

	return sb.String()
}

func briefFilename(productName string) string {
	slug := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '-'
		}
	}, strings.TrimSpace(productName))
	slug = strings.Trim(slug, "-")
	if slug == "" {
		slug = "assessment"
	}
	return slug + "-trust-brief.pdf"
}
