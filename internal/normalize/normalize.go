// Package normalize turns the argument list of an intercepted broadcast call
// into a flat record with labeled placeholders for every missing field.
package normalize

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/runnerr0/broadcastmonitor/internal/broadcast"
	"github.com/runnerr0/broadcastmonitor/internal/intent"
)

// Placeholders for fields the intercepted intent did not carry. Display code
// compares against these exact strings.
const (
	NoAction     = "No Action"
	NoPackage    = "No Package"
	NoExtras     = broadcast.NoExtras
	NoCategory   = "No Category"
	NoData       = "No Data"
	NoType       = "No Type"
	NoComponent  = "No Component"
	UnknownValue = "null"
)

// Record is the intermediate, string-only view of an intercepted intent.
type Record struct {
	Action      string
	PackageName string
	Extras      string
	Categories  string
	Data        string
	Type        string
	Component   string
	Flags       string
}

// Extract locates the first intent-like argument and flattens it. ok is
// false when no argument is an intent.
func Extract(args []any) (rec Record, ok bool) {
	in := findIntent(args)
	if in == nil {
		return Record{}, false
	}
	return FromIntent(in), true
}

// FromIntent flattens in into a Record.
func FromIntent(in *intent.Intent) Record {
	rec := Record{
		Action:      orDefault(validUTF8(in.Action), NoAction),
		PackageName: orDefault(validUTF8(in.Package), NoPackage),
		Extras:      FlattenExtras(bundleOrNil(in.Extras)),
		Categories:  NoCategory,
		Data:        orDefault(validUTF8(in.Data), NoData),
		Type:        orDefault(validUTF8(in.Type), NoType),
		Component:   NoComponent,
		Flags:       strconv.Itoa(in.Flags),
	}
	if len(in.Categories) > 0 {
		rec.Categories = validUTF8(strings.Join(in.Categories, ", "))
	}
	if in.Component != nil {
		rec.Component = validUTF8(in.Component.FlattenToString())
	}
	return rec
}

// FlattenExtras renders one "key: value" line per key in the bag's own
// order. A key whose value cannot be read yields "key: [read failed: …]"
// and the remaining keys are still rendered. Invalid UTF-8 in keys or
// values is replaced with U+FFFD.
func FlattenExtras(extras intent.Extras) string {
	if extras == nil {
		return NoExtras
	}
	keys := extras.Keys()
	if len(keys) == 0 {
		return NoExtras
	}

	var b strings.Builder
	for _, key := range keys {
		line, err := readExtra(extras, key)
		if err != nil {
			fmt.Fprintf(&b, "%s: [read failed: %v]\n", validUTF8(key), validUTF8(err.Error()))
			continue
		}
		b.WriteString(validUTF8(line))
		b.WriteByte('\n')
	}
	return strings.TrimSpace(b.String())
}

// readExtra isolates a single key so a panicking reader only costs that key.
func readExtra(extras intent.Extras, key string) (line string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()
	v, err := extras.Get(key)
	if err != nil {
		return "", err
	}
	if v == nil {
		return key + ": " + UnknownValue, nil
	}
	return fmt.Sprintf("%s: %v", key, v), nil
}

func findIntent(args []any) *intent.Intent {
	for _, arg := range args {
		switch v := arg.(type) {
		case *intent.Intent:
			if v != nil {
				return v
			}
		case intent.Intent:
			return &v
		}
	}
	return nil
}

// bundleOrNil avoids handing FlattenExtras a non-nil interface that wraps a
// nil *Bundle.
func bundleOrNil(b *intent.Bundle) intent.Extras {
	if b == nil {
		return nil
	}
	return b
}

// validUTF8 keeps every record field encodable on every transport.
func validUTF8(s string) string {
	return strings.ToValidUTF8(s, "\uFFFD")
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
