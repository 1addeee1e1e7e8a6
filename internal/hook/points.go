// Package hook declares where broadcasts are intercepted and what happens
// to an intercepted call. Installing the hooks is delegated to an
// Installer; this package only decides which methods to hook and routes
// their arguments through normalization, classification and the relay.
package hook

import (
	"fmt"
	"strings"
)

// Role is the kind of process the hooks are installed into.
type Role int

const (
	// RoleSystem is the system server process.
	RoleSystem Role = iota
	// RoleApp is any application process selected for monitoring.
	RoleApp
)

func (r Role) String() string {
	switch r {
	case RoleSystem:
		return "system"
	case RoleApp:
		return "app"
	default:
		return fmt.Sprintf("Role(%d)", int(r))
	}
}

// ParseRole accepts "system" or "app", case-insensitively.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "system":
		return RoleSystem, nil
	case "app":
		return RoleApp, nil
	}
	return 0, fmt.Errorf("unknown role %q (want system or app)", s)
}

// AnyArity matches every overload of a method.
const AnyArity = -1

// Point is one hooked method. Source is the label attached to every event
// the point produces.
type Point struct {
	Class   string
	Method  string
	Arity   int
	Source  string
	Enabled bool
}

func (p Point) String() string {
	arity := "*"
	if p.Arity != AnyArity {
		arity = fmt.Sprint(p.Arity)
	}
	return fmt.Sprintf("%s.%s/%s", p.Class, p.Method, arity)
}

const (
	classAMS          = "com.android.server.am.ActivityManagerService"
	classContextImpl  = "android.app.ContextImpl"
	classWrapper      = "android.content.ContextWrapper"
	classManagerProxy = "android.app.ActivityManagerProxy"
)

var systemPoints = []Point{
	{classAMS, "broadcastIntentLocked", AnyArity, "System-AMS", true},
}

var appPoints = []Point{
	{classContextImpl, "sendBroadcast", 1, "ContextImpl-sendBroadcast", true},
	{classContextImpl, "sendStickyBroadcast", 1, "ContextImpl-sendStickyBroadcast", true},
	{classContextImpl, "sendOrderedBroadcast", 2, "ContextImpl-sendOrderedBroadcast-2", true},
	{classContextImpl, "sendOrderedBroadcast", 7, "ContextImpl-sendOrderedBroadcast-7", true},
	// ContextWrapper delegates to ContextImpl, so hooking both would
	// record every app broadcast twice.
	{classWrapper, "sendBroadcast", 1, "ContextWrapper-sendBroadcast", false},
	{classManagerProxy, "broadcastIntent", AnyArity, "ActivityManagerProxy-broadcastIntent", true},
}

// Points returns the enabled points for role, in installation order.
func Points(role Role) []Point {
	var out []Point
	for _, p := range AllPoints(role) {
		if p.Enabled {
			out = append(out, p)
		}
	}
	return out
}

// AllPoints returns every point declared for role, disabled ones included.
func AllPoints(role Role) []Point {
	var src []Point
	switch role {
	case RoleSystem:
		src = systemPoints
	case RoleApp:
		src = appPoints
	}
	out := make([]Point, len(src))
	copy(out, src)
	return out
}

// FindPoint returns the point of role whose source label is source.
func FindPoint(role Role, source string) (Point, bool) {
	for _, p := range AllPoints(role) {
		if p.Source == source {
			return p, true
		}
	}
	return Point{}, false
}
