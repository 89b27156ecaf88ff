package mapper

import (
	"net/url"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

// SourceHost extracts the host of link. ok is false when link does not parse
// or its authority is not a DNS name or IP literal.
func SourceHost(link string) (host string, ok bool) {
	u, err := url.Parse(link)
	if err != nil {
		return "", false
	}
	host = u.Hostname()
	if host == "" {
		return "", false
	}
	if err := validation.Validate(host, is.Host); err != nil {
		return "", false
	}
	return host, true
}
