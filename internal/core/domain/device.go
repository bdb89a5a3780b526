package domain

import "strings"

// DeviceType enumerates the coarse device categories stored on a session.
type DeviceType string

const (
	DeviceTypeWeb    DeviceType = "web"
	DeviceTypeMobile DeviceType = "mobile"
	DeviceTypeTablet DeviceType = "tablet"
)

// UnknownAgentValue is stored when the OS or browser cannot be inferred.
const UnknownAgentValue = "Unknown"

// DeviceInfo is the classification derived from a raw user agent.
type DeviceInfo struct {
	DeviceType DeviceType
	OS         string
	Browser    string
}

var (
	// ipad appears in both lists; mobile is checked first so iPads classify as mobile.
	mobileAgentMarkers = []string{"mobile", "android", "iphone", "ipad", "ipod", "blackberry", "iemobile", "opera mini"}
	tabletAgentMarkers = []string{"tablet", "ipad"}
)

type osRule struct {
	name    string
	markers []string
}

var osRules = []osRule{
	{name: "Windows", markers: []string{"windows"}},
	{name: "macOS", markers: []string{"macintosh", "mac os x"}},
	{name: "Linux", markers: []string{"linux"}},
	{name: "Android", markers: []string{"android"}},
	{name: "iOS", markers: []string{"iphone", "ipad", "ipod"}},
}

// ClassifyUserAgent infers device type, OS and browser from a user agent string.
func ClassifyUserAgent(userAgent string) DeviceInfo {
	ua := strings.ToLower(userAgent)
	return DeviceInfo{
		DeviceType: classifyDevice(ua),
		OS:         classifyOS(ua),
		Browser:    classifyBrowser(ua),
	}
}

func classifyDevice(ua string) DeviceType {
	switch {
	case containsAny(ua, mobileAgentMarkers):
		return DeviceTypeMobile
	case containsAny(ua, tabletAgentMarkers):
		return DeviceTypeTablet
	default:
		return DeviceTypeWeb
	}
}

func classifyOS(ua string) string {
	for _, rule := range osRules {
		if containsAny(ua, rule.markers) {
			return rule.name
		}
	}
	return UnknownAgentValue
}

func classifyBrowser(ua string) string {
	switch {
	case strings.Contains(ua, "chrome") && !strings.Contains(ua, "edg"):
		return "Chrome"
	case strings.Contains(ua, "firefox"):
		return "Firefox"
	case strings.Contains(ua, "safari") && !strings.Contains(ua, "chrome"):
		return "Safari"
	case strings.Contains(ua, "edg"):
		return "Edge"
	case strings.Contains(ua, "opera") || strings.Contains(ua, "opr"):
		return "Opera"
	default:
		return UnknownAgentValue
	}
}

func containsAny(haystack string, needles []string) bool {
	for _, needle := range needles {
		if strings.Contains(haystack, needle) {
			return true
		}
	}
	return false
}
