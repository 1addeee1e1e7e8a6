package normalize

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runnerr0/broadcastmonitor/internal/intent"
)

func TestExtract_FindsFirstIntent(t *testing.T) {
	first := intent.New("com.example.FIRST")
	second := intent.New("com.example.SECOND")

	rec, ok := Extract([]any{nil, "permission", 42, first, second})
	require.True(t, ok)
	assert.Equal(t, "com.example.FIRST", rec.Action)
}

func TestExtract_AcceptsIntentValue(t *testing.T) {
	rec, ok := Extract([]any{intent.Intent{Action: "com.example.VALUE"}})
	require.True(t, ok)
	assert.Equal(t, "com.example.VALUE", rec.Action)
}

func TestExtract_NoIntent(t *testing.T) {
	_, ok := Extract([]any{"a", 1, nil, (*intent.Intent)(nil)})
	assert.False(t, ok)

	_, ok = Extract(nil)
	assert.False(t, ok)
}

func TestExtract_SentinelsForMissingFields(t *testing.T) {
	rec, ok := Extract([]any{&intent.Intent{}})
	require.True(t, ok)

	assert.Equal(t, Record{
		Action:      NoAction,
		PackageName: NoPackage,
		Extras:      NoExtras,
		Categories:  NoCategory,
		Data:        NoData,
		Type:        NoType,
		Component:   NoComponent,
		Flags:       "0",
	}, rec)
}

func TestExtract_AllFields(t *testing.T) {
	in := &intent.Intent{
		Action:     "com.example.ACTION",
		Package:    "com.example",
		Component:  &intent.ComponentName{Package: "com.example", Class: "com.example.Receiver"},
		Type:       "text/plain",
		Data:       "content://example/1",
		Flags:      0x10,
		Categories: []string{"android.intent.category.DEFAULT", "android.intent.category.HOME"},
	}
	in.PutExtra("a", 1)

	rec, ok := Extract([]any{in})
	require.True(t, ok)
	assert.Equal(t, "com.example.ACTION", rec.Action)
	assert.Equal(t, "com.example", rec.PackageName)
	assert.Equal(t, "a: 1", rec.Extras)
	assert.Equal(t, "android.intent.category.DEFAULT, android.intent.category.HOME", rec.Categories)
	assert.Equal(t, "content://example/1", rec.Data)
	assert.Equal(t, "text/plain", rec.Type)
	assert.Equal(t, "com.example/com.example.Receiver", rec.Component)
	assert.Equal(t, "16", rec.Flags)
}

// mapExtras enumerates keys in map order, which is randomized.
type mapExtras map[string]any

func (m mapExtras) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}

func (m mapExtras) Get(key string) (any, error) { return m[key], nil }

func TestFlattenExtras_OrderIndependent(t *testing.T) {
	out := FlattenExtras(mapExtras{"a": 1, "b": "x"})
	lines := strings.Split(out, "\n")
	assert.Len(t, lines, 2)
	assert.ElementsMatch(t, []string{"a: 1", "b: x"}, lines)
}

func TestFlattenExtras_Empty(t *testing.T) {
	assert.Equal(t, NoExtras, FlattenExtras(nil))
	assert.Equal(t, NoExtras, FlattenExtras(intent.NewBundle()))
	assert.Equal(t, NoExtras, FlattenExtras(mapExtras{}))
}

func TestFlattenExtras_PartialFailure(t *testing.T) {
	b := intent.NewBundle()
	b.Put("before", "ok")
	b.Put("broken", intent.Lazy(func() (any, error) { return nil, errors.New("BadParcelableException") }))
	b.Put("nil", nil)
	b.Put("after", true)

	out := FlattenExtras(b)
	assert.Equal(t, "before: ok\nbroken: [read failed: BadParcelableException]\nnil: null\nafter: true", out)
}

func TestFromIntent_ReplacesInvalidUTF8(t *testing.T) {
	in := intent.New("com.example.\xffACTION").SetPackage("com.\xfe.pkg")
	in.Data = "content://\xff"
	in.Type = "text/\xfe"
	in.Categories = []string{"android.intent.category.\xffX"}
	in.PutExtra("blob", "\xff\xfe")
	in.PutExtra("k\xff", "ok")
	in.PutExtra("after", 7)

	rec := FromIntent(in)
	for _, field := range []string{rec.Action, rec.PackageName, rec.Extras, rec.Categories, rec.Data, rec.Type} {
		assert.True(t, utf8.ValidString(field), "field %q", field)
	}
	assert.Equal(t, "com.example.\uFFFDACTION", rec.Action)
	assert.Equal(t, "com.\uFFFD.pkg", rec.PackageName)
	assert.Equal(t, "blob: \uFFFD\nk\uFFFD: ok\nafter: 7", rec.Extras)
}

type panickyExtras struct{}

func (panickyExtras) Keys() []string { return []string{"boom", "fine"} }

func (panickyExtras) Get(key string) (any, error) {
	if key == "boom" {
		panic("unmarshal")
	}
	return "ok", nil
}

func TestFlattenExtras_PanickingReader(t *testing.T) {
	out := FlattenExtras(panickyExtras{})
	assert.Equal(t, "boom: [read failed: unmarshal]\nfine: ok", out)
}

func TestTagRoundTrip(t *testing.T) {
	rec, ok := Extract([]any{intent.New("android.intent.action.FOO")})
	require.True(t, ok)

	source, action := SplitTag(Tag("ContextImpl-sendBroadcast", rec.Action))
	assert.Equal(t, "ContextImpl-sendBroadcast", source)
	assert.Equal(t, "android.intent.action.FOO", action)
}

func TestSplitTag(t *testing.T) {
	tests := []struct {
		in     string
		source string
		action string
	}{
		{"[System-AMS] android.intent.action.BOOT_COMPLETED", "System-AMS", "android.intent.action.BOOT_COMPLETED"},
		{"android.intent.action.BOOT_COMPLETED", "Unknown", "android.intent.action.BOOT_COMPLETED"},
		{"[unterminated android.intent.action.X", "Unknown", "[unterminated android.intent.action.X"},
		{"[NoSpace]android.intent.action.X", "NoSpace", "[NoSpace]android.intent.action.X"},
		{"[a] [b] c", "a", "[b] c"},
		{"[] x", "", "x"},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			source, action := SplitTag(tc.in)
			assert.Equal(t, tc.source, source)
			assert.Equal(t, tc.action, action)
		})
	}
}
