package radar

import (
	"fmt"
	"sort"
	"strings"
)

func buildSystemMessage() string {
	return "You are a security analyst preparing CISO-ready trust briefs for software products. " +
		"Use ONLY publicly verifiable information. When evidence is missing, state \"" + InsufficientEvidence + "\" rather than guessing. " +
		"Respond with strict JSON only, no prose outside the JSON document."
}

func buildUserMessage(req Request) string {
	var sb strings.Builder
	sb.WriteString("Assess the security posture of the following software product and respond with a single JSON object with these fields:")
	sb.WriteString("\n- product_name: string")
	sb.WriteString("\n- vendor: {name, website, country, founded, reputation_summary}")
	sb.WriteString("\n- category: one of ")
	cats := make([]string, 0, len(knownCategories))
	for c := range knownCategories {
		cats = append(cats, string(c))
	}
	// Stable prompt text regardless of map order.
	sort.Strings(cats)
	sb.WriteString(strings.Join(cats, " | "))
	sb.WriteString("\n- description: one-sentence product description")
	sb.WriteString("\n- usage_description: how the product is typically used")
	sb.WriteString("\n- cve_trends: {total_cves, critical_count, high_count, medium_count, low_count, recent_cves: [{id, severity, description}], trend_summary}")
	sb.WriteString("\n- incidents: [{date, description, severity, source: {url, source_type, title, date, description}}]")
	sb.WriteString("\n- compliance: {soc2_compliant, iso_certified, gdpr_compliant, data_processing_location, encryption_at_rest, encryption_in_transit, data_retention_policy, notes}")
	sb.WriteString("\n- deployment_model: Cloud | On-premise | Hybrid | Unknown")
	sb.WriteString("\n- admin_controls: summary of available admin controls")
	sb.WriteString("\n- trust_score: {score: 0-100, confidence: High|Medium|Low, rationale, risk_factors: [], positive_factors: []}")
	sb.WriteString("\n- alternatives: [{product_name, vendor, rationale, trust_score}]")
	sb.WriteString("\n- citations: [{url, source_type, title, date, description}]")

	sb.WriteString("\n\nProduct: ")
	sb.WriteString(req.ProductName)
	if strings.TrimSpace(req.CompanyName) != "" {
		sb.WriteString("\nVendor: ")
		sb.WriteString(req.CompanyName)
	}
	if strings.TrimSpace(req.URL) != "" {
		sb.WriteString("\nURL: ")
		sb.WriteString(req.URL)
	}
	if strings.TrimSpace(req.SHA1) != "" {
		sb.WriteString(fmt.Sprintf("\nBinary SHA-1: %s", req.SHA1))
	}
	sb.WriteString("\n\nOutput only the JSON object.")
	return sb.String()
}
