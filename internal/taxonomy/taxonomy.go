// Package taxonomy classifies broadcast actions into display categories,
// priorities, and a log/skip decision. All rule tables are fixed at init
// and never mutated, so every function here is safe for concurrent use.
package taxonomy

import (
	"sort"
	"strings"
)

// Category labels. These strings travel over the relay and are shown as-is.
const (
	CategorySecurity      = "Security Related"
	CategoryMedia         = "Media Related"
	CategorySystem        = "System General"
	CategoryBluetooth     = "Bluetooth Related"
	CategoryWiFi          = "WiFi Related"
	CategoryPackage       = "Package Management"
	CategoryUser          = "User Related"
	CategoryBattery       = "Battery Related"
	CategoryScreen        = "Screen Related"
	CategorySystemService = "System Service"
	CategoryOther         = "Other Broadcast"
)

// Priorities, 1 is highest.
const (
	PrioritySecurity = 1
	PriorityPackage  = 2
	PriorityMedia    = 3
	PrioritySystem   = 4
	PriorityDefault  = 5
)

// PrefixRule maps an action prefix to a category.
type PrefixRule struct {
	Prefix   string
	Category string
}

var securityActions = map[string]struct{}{
	"android.intent.action.NEW_OUTGOING_CALL": {},
	"android.provider.Telephony.SMS_RECEIVED": {},
	"android.intent.action.PHONE_STATE":       {},
	"android.location.PROVIDERS_CHANGED":      {},
	"android.intent.action.LOCALE_CHANGED":    {},
}

var mediaActions = map[string]struct{}{
	"android.intent.action.MEDIA_MOUNTED":          {},
	"android.intent.action.MEDIA_UNMOUNTED":        {},
	"android.intent.action.MEDIA_EJECT":            {},
	"android.intent.action.MEDIA_SCANNER_STARTED":  {},
	"android.intent.action.MEDIA_SCANNER_FINISHED": {},
}

var systemActions = map[string]struct{}{
	"android.intent.action.BATTERY_CHANGED":                  {},
	"android.intent.action.TIME_TICK":                        {},
	"android.intent.action.SCREEN_ON":                        {},
	"android.intent.action.SCREEN_OFF":                       {},
	"android.net.conn.CONNECTIVITY_CHANGE":                   {},
	"android.intent.action.USER_PRESENT":                     {},
	"android.intent.action.BOOT_COMPLETED":                   {},
	"android.intent.action.PACKAGE_ADDED":                    {},
	"android.intent.action.PACKAGE_REMOVED":                  {},
	"android.intent.action.PACKAGE_REPLACED":                 {},
	"android.intent.action.PACKAGE_CHANGED":                  {},
	"android.intent.action.APPLICATION_RESTRICTIONS_CHANGED": {},
}

// Order is significant: the first matching prefix wins.
var prefixRules = []PrefixRule{
	{Prefix: "android.bluetooth", Category: CategoryBluetooth},
	{Prefix: "android.net.wifi", Category: CategoryWiFi},
	{Prefix: "android.intent.action.PACKAGE", Category: CategoryPackage},
	{Prefix: "android.intent.action.USER", Category: CategoryUser},
	{Prefix: "android.intent.action.BATTERY", Category: CategoryBattery},
	{Prefix: "android.intent.action.SCREEN", Category: CategoryScreen},
	{Prefix: "com.android.server", Category: CategorySystemService},
}

// Fired often enough to drown out everything else.
var highFrequencyActions = map[string]struct{}{
	"android.intent.action.TIME_TICK":       {},
	"android.intent.action.BATTERY_CHANGED": {},
}

const (
	packagePrefix = "android.intent.action.PACKAGE"
	userPrefix    = "android.intent.action.USER"
)

// Categorize returns the category for action. Exact matches are checked
// first (security, media, system), then prefix rules in order.
func Categorize(action string) string {
	switch {
	case contains(securityActions, action):
		return CategorySecurity
	case contains(mediaActions, action):
		return CategoryMedia
	case contains(systemActions, action):
		return CategorySystem
	}
	for _, r := range prefixRules {
		if strings.HasPrefix(action, r.Prefix) {
			return r.Category
		}
	}
	return CategoryOther
}

// ShouldLog reports whether a broadcast is worth recording. Blank and
// high-frequency actions are skipped. packageName is accepted for
// per-package filtering but does not affect the decision yet.
func ShouldLog(action, packageName string) bool {
	_ = packageName
	if strings.TrimSpace(action) == "" {
		return false
	}
	return !contains(highFrequencyActions, action)
}

// Priority returns 1 (highest) through 5 (default) for action.
func Priority(action string) int {
	switch {
	case contains(securityActions, action):
		return PrioritySecurity
	case strings.HasPrefix(action, packagePrefix), strings.HasPrefix(action, userPrefix):
		return PriorityPackage
	case contains(mediaActions, action):
		return PriorityMedia
	case contains(systemActions, action):
		return PrioritySystem
	default:
		return PriorityDefault
	}
}

// SecurityActions returns the security exact-match set, sorted.
func SecurityActions() []string { return sortedKeys(securityActions) }

// MediaActions returns the media exact-match set, sorted.
func MediaActions() []string { return sortedKeys(mediaActions) }

// SystemActions returns the general-system exact-match set, sorted.
func SystemActions() []string { return sortedKeys(systemActions) }

// HighFrequencyActions returns the actions ShouldLog always rejects, sorted.
func HighFrequencyActions() []string { return sortedKeys(highFrequencyActions) }

// PrefixRules returns a copy of the prefix rules in evaluation order.
func PrefixRules() []PrefixRule {
	out := make([]PrefixRule, len(prefixRules))
	copy(out, prefixRules)
	return out
}

// Categories returns every category label Categorize can produce.
func Categories() []string {
	out := []string{CategorySecurity, CategoryMedia, CategorySystem}
	for _, r := range prefixRules {
		out = append(out, r.Category)
	}
	return append(out, CategoryOther)
}

func contains(set map[string]struct{}, action string) bool {
	_, ok := set[action]
	return ok
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
