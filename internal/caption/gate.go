package caption

import (
	"net/url"
	"strings"

	"github.com/lehigh-university-libraries/describer/internal/materialize"
)

const minRemoteDataLength = 50

// remoteEligible reports whether a materialized image may be sent to a
// remote provider
func remoteEligible(data string) bool {
	if len(data) <= minRemoteDataLength || materialize.IsPlaceholder(data) {
		return false
	}

	lower := strings.ToLower(data)
	if strings.HasPrefix(lower, "data:image/svg") {
		return false
	}

	if strings.HasPrefix(lower, "data:") {
		return strings.Contains(data, ",")
	}

	u, err := url.Parse(data)
	if err != nil || u.Host == "" {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return !strings.HasSuffix(strings.ToLower(u.Path), ".svg")
}
