package naming

import (
	"fmt"
	"strings"
)

const prefix = "mssql"

// maxLabel is the DNS-1123 label limit minus room for the longest kind suffix.
const maxLabel = 63 - len("-internal")

// Normalize turns a server id into a lowercase DNS-1123 label fragment.
func Normalize(serverID string) string {
	var b strings.Builder
	lastDash := false
	for _, r := range strings.ToLower(serverID) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash && b.Len() > 0 {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}

func base(serverID string) string {
	name := fmt.Sprintf("%s-%s", prefix, Normalize(serverID))
	if len(name) > maxLabel {
		name = strings.TrimRight(name[:maxLabel], "-")
	}
	return name
}

func Deployment(serverID string) string {
	return base(serverID)
}

func InternalService(serverID string) string {
	return fmt.Sprintf("%s-internal", base(serverID))
}

func Ingress(serverID string) string {
	return fmt.Sprintf("%s-ingress", base(serverID))
}

func AdminSecret(serverID string) string {
	return fmt.Sprintf("%s-admin", base(serverID))
}

// PublicHost is the externally routable host name of a server.
func PublicHost(serverID, domain string) string {
	return fmt.Sprintf("%s.%s", base(serverID), strings.TrimPrefix(domain, "."))
}
