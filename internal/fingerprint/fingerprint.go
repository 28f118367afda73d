// Package fingerprint derives a stable device fingerprint and its short hash
// from the attributes a browser exposes.
package fingerprint

import (
	"bytes"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf16"

	"github.com/goccy/go-json"

	"github.com/badalhalder99/vital/internal/domain"
)

// Environment is the raw device state visible to the tracker
type Environment struct {
	ScreenWidth    int    `json:"screenWidth" mapstructure:"screen_width"`
	ScreenHeight   int    `json:"screenHeight" mapstructure:"screen_height"`
	ColorDepth     int    `json:"colorDepth" mapstructure:"color_depth"`
	ViewportWidth  int    `json:"viewportWidth" mapstructure:"viewport_width"`
	ViewportHeight int    `json:"viewportHeight" mapstructure:"viewport_height"`
	Timezone       string `json:"timezone" mapstructure:"timezone"`
	Language       string `json:"language" mapstructure:"language"`
	Platform       string `json:"platform" mapstructure:"platform"`
	UserAgent      string `json:"userAgent" mapstructure:"user_agent"`
}

// Inspector supplies the current device environment
type Inspector interface {
	Inspect() Environment
}

// StaticInspector always reports the same environment
type StaticInspector struct {
	Env Environment
}

// Inspect returns the fixed environment
func (s StaticInspector) Inspect() Environment { return s.Env }

var (
	versionPattern    = regexp.MustCompile(`\b\d+(?:[._]\d+)*\b`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// NormalizeUserAgent strips version numbers so minor browser updates do not
// move the fingerprint
func NormalizeUserAgent(ua string) string {
	ua = versionPattern.ReplaceAllString(ua, "")
	return strings.TrimSpace(whitespacePattern.ReplaceAllString(ua, " "))
}

// PrimaryLanguage reduces a locale tag to its language code ("en-US" -> "en")
func PrimaryLanguage(lang string) string {
	lang = strings.TrimSpace(lang)
	if i := strings.IndexAny(lang, "-_"); i >= 0 {
		lang = lang[:i]
	}
	return strings.ToLower(lang)
}

// Compute builds the fingerprint for an environment. Viewport size is
// deliberately left out.
func Compute(env Environment) domain.DeviceFingerprint {
	return domain.DeviceFingerprint{
		ScreenWidth:  env.ScreenWidth,
		ScreenHeight: env.ScreenHeight,
		ColorDepth:   env.ColorDepth,
		Timezone:     env.Timezone,
		Language:     PrimaryLanguage(env.Language),
		Platform:     env.Platform,
		UserAgent:    NormalizeUserAgent(env.UserAgent),
	}
}

// Hash returns the base36 digest of the fingerprint's sorted-key JSON
func Hash(fp domain.DeviceFingerprint) string {
	return hashString(canonicalJSON(fp))
}

// Of is Compute followed by Hash
func Of(env Environment) (domain.DeviceFingerprint, string) {
	fp := Compute(env)
	return fp, Hash(fp)
}

func canonicalJSON(fp domain.DeviceFingerprint) string {
	fields := map[string]interface{}{
		"screenWidth":  fp.ScreenWidth,
		"screenHeight": fp.ScreenHeight,
		"colorDepth":   fp.ColorDepth,
		"timezone":     fp.Timezone,
		"language":     fp.Language,
		"platform":     fp.Platform,
		"userAgent":    fp.UserAgent,
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	// map keys are emitted in sorted order
	if err := enc.Encode(fields); err != nil {
		return ""
	}
	return strings.TrimSuffix(buf.String(), "\n")
}

// hashString is the 32-bit shift-and-add string hash computed over UTF-16
// code units, rendered as the absolute value in base36.
func hashString(s string) string {
	var h int32
	for _, c := range utf16.Encode([]rune(s)) {
		h = (h << 5) - h + int32(c)
	}
	n := int64(h)
	if n < 0 {
		n = -n
	}
	return strconv.FormatInt(n, 36)
}
