package taxonomy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSecurityActionsAlwaysWin(t *testing.T) {
	for _, action := range SecurityActions() {
		assert.Equal(t, CategorySecurity, Categorize(action), action)
		assert.Equal(t, PrioritySecurity, Priority(action), action)
	}
}

func TestCategorize_ExactSetsBeforePrefixes(t *testing.T) {
	tests := []struct {
		action   string
		expected string
	}{
		// Exact system match shadows the PACKAGE/SCREEN/BATTERY/USER prefixes.
		{"android.intent.action.PACKAGE_ADDED", CategorySystem},
		{"android.intent.action.SCREEN_ON", CategorySystem},
		{"android.intent.action.BATTERY_CHANGED", CategorySystem},
		{"android.intent.action.USER_PRESENT", CategorySystem},
		{"android.intent.action.MEDIA_MOUNTED", CategoryMedia},
		{"android.intent.action.BOOT_COMPLETED", CategorySystem},
	}
	for _, tc := range tests {
		t.Run(tc.action, func(t *testing.T) {
			assert.Equal(t, tc.expected, Categorize(tc.action))
		})
	}
}

func TestCategorize_PrefixRules(t *testing.T) {
	tests := []struct {
		action   string
		expected string
	}{
		{"android.bluetooth.adapter.action.STATE_CHANGED", CategoryBluetooth},
		{"android.net.wifi.STATE_CHANGE", CategoryWiFi},
		{"android.intent.action.PACKAGE_FULLY_REMOVED", CategoryPackage},
		{"android.intent.action.USER_UNLOCKED", CategoryUser},
		{"android.intent.action.BATTERY_LOW", CategoryBattery},
		{"android.intent.action.SCREEN_CAPTURE", CategoryScreen},
		{"com.android.server.action.NETWORK_STATS_UPDATED", CategorySystemService},
		{"com.example.CUSTOM", CategoryOther},
		{"", CategoryOther},
	}
	for _, tc := range tests {
		t.Run(tc.action, func(t *testing.T) {
			assert.Equal(t, tc.expected, Categorize(tc.action))
		})
	}
}

func TestShouldLog(t *testing.T) {
	assert.False(t, ShouldLog("", "com.example"))
	assert.False(t, ShouldLog("   ", "com.example"))
	assert.False(t, ShouldLog("android.intent.action.TIME_TICK", "com.example"))
	assert.False(t, ShouldLog("android.intent.action.BATTERY_CHANGED", ""))
	assert.True(t, ShouldLog("android.intent.action.BOOT_COMPLETED", "com.example"))
	assert.True(t, ShouldLog("com.example.CUSTOM", "No Package"))
}

func TestShouldLog_IgnoresPackageName(t *testing.T) {
	for _, pkg := range []string{"", "android", "com.xmbest.broadcastmonitor"} {
		assert.True(t, ShouldLog("android.intent.action.SCREEN_OFF", pkg))
	}
}

func TestPriority(t *testing.T) {
	tests := []struct {
		action   string
		expected int
	}{
		{"android.intent.action.PHONE_STATE", 1},
		// Package prefix is checked before the system exact set.
		{"android.intent.action.PACKAGE_ADDED", 2},
		{"android.intent.action.USER_PRESENT", 2},
		{"android.intent.action.USER_SWITCHED", 2},
		{"android.intent.action.MEDIA_EJECT", 3},
		{"android.intent.action.BOOT_COMPLETED", 4},
		{"android.net.conn.CONNECTIVITY_CHANGE", 4},
		{"android.bluetooth.device.action.FOUND", 5},
		{"com.example.CUSTOM", 5},
	}
	for _, tc := range tests {
		t.Run(tc.action, func(t *testing.T) {
			assert.Equal(t, tc.expected, Priority(tc.action))
		})
	}
}

func TestRuleTablesAreCopies(t *testing.T) {
	rules := PrefixRules()
	rules[0].Category = "mutated"
	assert.Equal(t, CategoryBluetooth, PrefixRules()[0].Category)

	sec := SecurityActions()
	sec[0] = "mutated"
	assert.NotContains(t, SecurityActions(), "mutated")
}

func TestRuleTableSizes(t *testing.T) {
	assert.Len(t, SecurityActions(), 5)
	assert.Len(t, MediaActions(), 5)
	assert.Len(t, SystemActions(), 12)
	assert.Len(t, PrefixRules(), 7)
	assert.Equal(t, []string{
		"android.intent.action.BATTERY_CHANGED",
		"android.intent.action.TIME_TICK",
	}, HighFrequencyActions())
	assert.Len(t, Categories(), 11)
}
