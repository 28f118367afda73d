package fingerprint

import (
	"strings"

	"github.com/mssola/useragent"

	"github.com/badalhalder99/vital/internal/domain"
)

// Describe parses the environment's user agent into the device info sent to
// the collector.
func Describe(env Environment) domain.DeviceInfo {
	ua := useragent.New(env.UserAgent)
	name, version := ua.Browser()
	osInfo := ua.OSInfo()

	info := domain.DeviceInfo{
		Browser:        name,
		BrowserVersion: version,
		OS:             osInfo.Name,
		OSVersion:      osInfo.Version,
		DeviceType:     deviceType(ua, env.UserAgent),
		Platform:       env.Platform,
		ScreenWidth:    env.ScreenWidth,
		ScreenHeight:   env.ScreenHeight,
		ViewportWidth:  env.ViewportWidth,
		ViewportHeight: env.ViewportHeight,
		UserAgent:      env.UserAgent,
	}
	if info.Browser == "" {
		info.Browser = "Unknown"
	}
	if info.OS == "" {
		info.OS = "Unknown"
	}
	if info.Platform == "" {
		info.Platform = ua.Platform()
	}
	return info
}

func deviceType(ua *useragent.UserAgent, raw string) string {
	switch {
	case ua.Bot():
		return "bot"
	case strings.Contains(raw, "iPad") || strings.Contains(raw, "Tablet"):
		return "tablet"
	case ua.Mobile():
		return "mobile"
	default:
		return "desktop"
	}
}
