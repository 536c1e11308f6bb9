package models

import "fmt"

// APISetup is the immutable per-tenant bundle of credentials and options
// that parameterizes a sync session. Rows in the local store carry the
// setup ID so that pulls, deletes and lookups never cross tenants.
type APISetup struct {
	ID  int64
	Org string
	// APIKey is sent as the basic-auth username with an empty password.
	APIKey          string
	DefaultLanguage string
	// EncodeNumbersInHeadings prefixes category names with their number
	// on upload and strips the prefix again on download.
	EncodeNumbersInHeadings bool
	// TenantRef links the setup to the owning tenant in the admin layer.
	TenantRef string
}

// BaseURL returns the API root for this setup's organization.
func (s *APISetup) BaseURL() string {
	return fmt.Sprintf("https://%s.cashctrl.com/api/v1/", s.Org)
}

// Language returns the configured default language, falling back to "de".
func (s *APISetup) Language() string {
	if s.DefaultLanguage == "" {
		return "de"
	}
	return s.DefaultLanguage
}
