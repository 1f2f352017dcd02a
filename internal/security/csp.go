package security

import "strings"

// The API only serves JSON, so everything is denied. The swagger UI needs
// its own scripts, styles and inline images.
const (
	apiPolicy  = "default-src 'none'; frame-ancestors 'none'; base-uri 'none'; form-action 'none'"
	docsPolicy = "default-src 'self'; " +
		"script-src 'self' 'unsafe-inline'; " +
		"style-src 'self' 'unsafe-inline'; " +
		"img-src 'self' data:; " +
		"connect-src 'self'; " +
		"frame-ancestors 'none'; " +
		"base-uri 'self'; " +
		"form-action 'self'"
)

func contentSecurityPolicy(path string) string {
	if strings.HasPrefix(path, "/swagger/") {
		return docsPolicy
	}
	return apiPolicy
}
