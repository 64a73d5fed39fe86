package utils

import (
	"strings"

	ua "github.com/mssola/user_agent"
)

// DeviceInfo holds parsed information from a User-Agent string
type DeviceInfo struct {
	DeviceType string `json:"device_type"` // mobile, tablet, desktop
	OS         string `json:"os"`
	Browser    string `json:"browser"`
	BrowserVer string `json:"browser_ver"`
	IsBot      bool   `json:"is_bot"`
	Raw        string `json:"raw"`
}

// ParseUserAgent parses a User-Agent string and extracts device information
func ParseUserAgent(userAgent string) DeviceInfo {
	if userAgent == "" || userAgent == "Unknown" {
		return DeviceInfo{
			DeviceType: "unknown",
			OS:         "Unknown",
			Browser:    "Unknown",
			Raw:        userAgent,
		}
	}

	parser := ua.New(userAgent)

	info := DeviceInfo{
		Raw:   userAgent,
		IsBot: parser.Bot(),
	}

	osInfo := parser.OSInfo()
	if osInfo.Name == "" {
		info.OS = "Unknown"
	} else if osInfo.Version != "" {
		info.OS = osInfo.Name + " " + osInfo.Version
	} else {
		info.OS = osInfo.Name
	}

	name, version := parser.Browser()
	if name == "" {
		name = "Unknown"
	}
	info.Browser = name
	info.BrowserVer = version

	info.DeviceType = deviceType(parser)

	return info
}

func deviceType(parser *ua.UserAgent) string {
	if parser.Mobile() {
		if isTablet(parser.UA()) {
			return "tablet"
		}
		return "mobile"
	}
	return "desktop"
}

func isTablet(userAgent string) bool {
	lower := strings.ToLower(userAgent)
	for _, indicator := range []string{"ipad", "tablet", "kindle", "sm-t", "nexus 7", "nexus 9", "nexus 10"} {
		if strings.Contains(lower, indicator) {
			return true
		}
	}
	return false
}

// IsBot reports whether the user agent looks like a crawler
func IsBot(userAgent string) bool {
	return ua.New(userAgent).Bot()
}
