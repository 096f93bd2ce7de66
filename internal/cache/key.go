package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"golang.org/x/text/cases"
)

// keySeparator joins the identity fields before hashing. Absent fields keep
// their slot as an empty string so that presence of a field always changes
// the digest.
const keySeparator = "|"

// Identity carries the request fields that identify a unique assessment.
// Every field except ProductName is optional.
type Identity struct {
	ProductName string
	CompanyName string
	SHA1        string
	URL         string
}

// DeriveKey builds the deterministic cache key for an assessment identity.
// Each field is trimmed and case-folded, the four fields are joined in a
// fixed order, and the SHA-256 digest of the result is hex encoded. Two
// requests that differ only in casing or surrounding whitespace map to the
// same key; swapping values between fields does not.
func DeriveKey(id Identity) string {
	fold := cases.Fold()
	parts := []string{
		fold.String(strings.TrimSpace(id.ProductName)),
		fold.String(strings.TrimSpace(id.CompanyName)),
		fold.String(strings.TrimSpace(id.SHA1)),
		fold.String(strings.TrimSpace(id.URL)),
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, keySeparator)))
	return hex.EncodeToString(sum[:])
}
