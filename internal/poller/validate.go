package poller

import "regexp"

// urlPattern accepts http, https and ftp URLs whose remainder uses the usual
// URL characters and does not end in punctuation such as '?', '!', ':' or ','.
var urlPattern = regexp.MustCompile(`^(https?|ftp)://[-a-zA-Z0-9+&@#/%?=~_|!:,.;]*[-a-zA-Z0-9+&@#/%=~_|]$`)

// IsValidURL reports whether s looks like a probeable URL.
//
// This is a sanity check on scheme and characters, not an RFC 3986 parser.
func IsValidURL(s string) bool {
	return urlPattern.MatchString(s)
}
