// Package device derives a human-readable device label from a User-Agent
// header. The label is stored on the session so users can tell their logins
// apart when listing or revoking sessions.
package device

import (
	"fmt"
	"strings"

	"github.com/mssola/useragent"
)

// Label summarizes a User-Agent string as "browser on os". Unknown or empty
// input yields "unknown device"; the raw header is never stored.
func Label(userAgentString string) string {
	if strings.TrimSpace(userAgentString) == "" {
		return "unknown device"
	}

	ua := useragent.New(userAgentString)
	browser, _ := ua.Browser()
	os := ua.OS()

	browser = strings.ToLower(strings.TrimSpace(browser))
	if browser == "" {
		browser = "unknown"
	}
	os = strings.ToLower(strings.TrimSpace(os))
	if os == "" {
		os = "unknown"
	}
	if browser == "unknown" && os == "unknown" {
		return "unknown device"
	}

	label := fmt.Sprintf("%s on %s", browser, os)
	if ua.Mobile() {
		label += " (mobile)"
	}
	return label
}
