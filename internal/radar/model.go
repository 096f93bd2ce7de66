package radar

import (
	"errors"
	"strings"
	"time"

	"github.com/iliamunaev/Valinor-Secure/internal/cache"
)

// InsufficientEvidence is the canonical filler for fields the assessment
// could not substantiate from public sources.
const InsufficientEvidence = "Insufficient public evidence"

// Category is the software taxonomy bucket assigned to a product.
type Category string

const (
	CategoryFileSharing        Category = "File Sharing"
	CategoryGenAITool          Category = "GenAI Tool"
	CategorySaaSCRM            Category = "SaaS CRM"
	CategoryEndpointAgent      Category = "Endpoint Agent"
	CategoryPasswordManager    Category = "Password Manager"
	CategoryCompressionUtility Category = "Compression Utility"
	CategoryRemoteAccess       Category = "Remote Access"
	CategoryDevelopmentTool    Category = "Development Tool"
	CategoryCommunication      Category = "Communication"
	CategorySecurityTool       Category = "Security Tool"
	CategoryMediaPlayer        Category = "Media Player"
	CategoryVirtualization     Category = "Virtualization"
	CategoryOfficeSuite        Category = "Office Suite"
	CategoryGaming             Category = "Gaming"
	CategoryBackupStorage      Category = "Backup/Storage"
	CategoryBrowser            Category = "Browser"
	CategoryOther              Category = "Other"
)

// SourceType tags where a citation came from.
type SourceType string

const (
	SourceVendorStated     SourceType = "Vendor Stated"
	SourceIndependent      SourceType = "Independent"
	SourceCERT             SourceType = "CERT"
	SourceCVEDatabase      SourceType = "CVE Database"
	SourceCISAKEV          SourceType = "CISA KEV"
	SourceSOC2             SourceType = "SOC2"
	SourceISO              SourceType = "ISO"
	SourceBugBounty        SourceType = "Bug Bounty"
	SourcePublicDisclosure SourceType = "Public Disclosure"
)

// Citation backs a claim in the assessment.
type Citation struct {
	URL         string     `json:"url,omitempty"`
	SourceType  SourceType `json:"source_type"`
	Title       string     `json:"title"`
	Date        string     `json:"date,omitempty"`
	Description string     `json:"description,omitempty"`
}

// Vendor is the resolved vendor identity.
type Vendor struct {
	Name              string `json:"name"`
	Website           string `json:"website,omitempty"`
	Country           string `json:"country,omitempty"`
	Founded           string `json:"founded,omitempty"`
	ReputationSummary string `json:"reputation_summary"`
}

// RecentCVE is one notable vulnerability in the trend summary.
type RecentCVE struct {
	ID          string `json:"id"`
	Severity    string `json:"severity,omitempty"`
	Description string `json:"description,omitempty"`
}

// CVETrend summarizes public vulnerability history.
type CVETrend struct {
	TotalCVEs     int         `json:"total_cves"`
	CriticalCount int         `json:"critical_count"`
	HighCount     int         `json:"high_count"`
	MediumCount   int         `json:"medium_count"`
	LowCount      int         `json:"low_count"`
	RecentCVEs    []RecentCVE `json:"recent_cves,omitempty"`
	TrendSummary  string      `json:"trend_summary"`
}

// Incident records a public security incident or abuse signal.
type Incident struct {
	Date        string   `json:"date,omitempty"`
	Description string   `json:"description"`
	Severity    string   `json:"severity"`
	Source      Citation `json:"source"`
}

// Compliance captures certification and data-handling posture. Tri-state
// facts use *bool so "unknown" stays distinct from "no".
type Compliance struct {
	SOC2Compliant          *bool  `json:"soc2_compliant,omitempty"`
	ISOCertified           *bool  `json:"iso_certified,omitempty"`
	GDPRCompliant          *bool  `json:"gdpr_compliant,omitempty"`
	DataProcessingLocation string `json:"data_processing_location,omitempty"`
	EncryptionAtRest       *bool  `json:"encryption_at_rest,omitempty"`
	EncryptionInTransit    *bool  `json:"encryption_in_transit,omitempty"`
	DataRetentionPolicy    string `json:"data_retention_policy,omitempty"`
	Notes                  string `json:"notes"`
}

// TrustScore is the 0-100 trust verdict with its rationale.
type TrustScore struct {
	Score           int      `json:"score"`
	Confidence      string   `json:"confidence"`
	Rationale       string   `json:"rationale"`
	RiskFactors     []string `json:"risk_factors,omitempty"`
	PositiveFactors []string `json:"positive_factors,omitempty"`
}

// Alternative suggests a safer substitute product.
type Alternative struct {
	ProductName string `json:"product_name"`
	Vendor      string `json:"vendor"`
	Rationale   string `json:"rationale"`
	TrustScore  *int   `json:"trust_score,omitempty"`
}

// Assessment is the full structured trust report for one product. It is
// the payload persisted by the cache store and returned by the API.
type Assessment struct {
	ProductName      string        `json:"product_name"`
	Vendor           Vendor        `json:"vendor"`
	Category         Category      `json:"category"`
	Description      string        `json:"description"`
	UsageDescription string        `json:"usage_description"`
	CVETrends        CVETrend      `json:"cve_trends"`
	Incidents        []Incident    `json:"incidents,omitempty"`
	Compliance       Compliance    `json:"compliance"`
	DeploymentModel  string        `json:"deployment_model,omitempty"`
	AdminControls    string        `json:"admin_controls,omitempty"`
	TrustScore       TrustScore    `json:"trust_score"`
	Alternatives     []Alternative `json:"alternatives,omitempty"`
	Citations        []Citation    `json:"citations,omitempty"`
	GeneratedAt      time.Time     `json:"assessment_timestamp"`
	CacheKey         string        `json:"cache_key,omitempty"`
}

// Request identifies the product to assess. Only the product name is
// required; the optional fields sharpen both the assessment and the
// derived cache key.
type Request struct {
	ProductName  string `json:"product_name"`
	CompanyName  string `json:"company_name,omitempty"`
	URL          string `json:"url,omitempty"`
	SHA1         string `json:"sha1,omitempty"`
	ForceRefresh bool   `json:"force_refresh,omitempty"`
}

// ErrEmptyProduct rejects requests without a product name.
var ErrEmptyProduct = errors.New("product_name is required")

// Validate checks the request for the minimum identifying input.
func (r Request) Validate() error {
	if strings.TrimSpace(r.ProductName) == "" {
		return ErrEmptyProduct
	}
	return nil
}

// Identity maps the request onto the cache key fields.
func (r Request) Identity() cache.Identity {
	return cache.Identity{
		ProductName: r.ProductName,
		CompanyName: r.CompanyName,
		SHA1:        r.SHA1,
		URL:         r.URL,
	}
}

// CacheInfo annotates a result that was served from the store.
type CacheInfo struct {
	Hit          bool      `json:"hit"`
	CachedAt     time.Time `json:"cached_at"`
	AccessCount  int64     `json:"access_count"`
	LastAccessed time.Time `json:"last_accessed"`
}

// Result is an assessment plus the cache metadata describing how it was
// produced. Cache is nil for freshly generated results.
type Result struct {
	Assessment
	Cache *CacheInfo `json:"cache,omitempty"`
}
