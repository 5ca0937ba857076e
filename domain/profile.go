package domain

// DefaultThemeColor is applied to tenants that never customized branding.
const DefaultThemeColor = "#4f46e5"

// TenantProfile holds the white-label branding of one client organization.
type TenantProfile struct {
	Tenant      string `json:"tenant"`
	DisplayName string `json:"displayName,omitempty"`
	ThemeColor  string `json:"themeColor,omitempty"`
	LogoURL     string `json:"logoUrl,omitempty"`
}

// ProfilePatch carries a partial branding update; nil fields preserve the
// current values.
type ProfilePatch struct {
	DisplayName *string `json:"displayName,omitempty"`
	ThemeColor  *string `json:"themeColor,omitempty"`
	LogoURL     *string `json:"logoUrl,omitempty"`
}

// Empty reports whether the patch carries no fields.
func (p ProfilePatch) Empty() bool {
	return p.DisplayName == nil && p.ThemeColor == nil && p.LogoURL == nil
}
