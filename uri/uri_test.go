package uri

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	sep := DefaultSeparators()
	tests := []struct {
		in   string
		want URI
	}{
		{"test", URI{Path: "test"}},
		{"test.txt", URI{Path: "test", Ext: "txt"}},
		{"en-us@test", URI{Namespace: "en-us", Path: "test"}},
		{"i18n://sv-se@home/intro.md#5", URI{Scheme: "i18n", Namespace: "sv-se", Path: "home/intro", Ext: "md", Version: "5"}},
		{"l10n://page/title#draft", URI{Scheme: "l10n", Path: "page/title", Version: "draft"}},
		{"a.b.c", URI{Path: "a.b", Ext: "c"}},
		{"", URI{}},
	}

	for _, tt := range tests {
		got := Parse(tt.in, sep)
		if got != tt.want {
			t.Errorf("Parse(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}

func TestStringifyOmitsEmptyComponents(t *testing.T) {
	sep := DefaultSeparators()
	assert.Equal(t, "test", Stringify(URI{Path: "test"}, sep))
	assert.Equal(t, "i18n://test#2", Stringify(URI{Scheme: "i18n", Path: "test", Version: "2"}, sep))
	assert.Equal(t, "i18n://en-us@home/intro.md#5",
		Stringify(URI{Scheme: "i18n", Namespace: "en-us", Path: "home/intro", Ext: "md", Version: "5"}, sep))
}

func TestNormalize(t *testing.T) {
	opts := DefaultOptions()
	tests := []struct {
		in, want string
	}{
		{"test", "i18n://en-us@test.txt"},
		{"test.txt", "i18n://en-us@test.txt"},
		{"en-us@test", "i18n://en-us@test.txt"},
		{"i18n://test.txt", "i18n://en-us@test.txt"},
		{"test#1", "i18n://en-us@test.txt#1"},
		{"l10n://footer", "l10n://local@footer.txt"},
		{"g11n://footer.md", "g11n://global@footer.md"},
		{"other://footer", "other://footer.txt"},
		{"sv-se@home/intro.md", "i18n://sv-se@home/intro.md"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, opts.Normalize(tt.in), "Normalize(%q)", tt.in)
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	opts := DefaultOptions()
	opts.NamespaceByScheme["l10n"] = "{country}"
	opts.Placeholders["country"] = "se"

	inputs := []string{
		"test", "a.txt", "en-us@a", "i18n://sv-se@home/intro.md#5",
		"l10n://x", "x#y", "page/section/title.html", "weird@name@with.dots.md",
	}
	for _, in := range inputs {
		once := opts.Normalize(in)
		assert.Equal(t, once, opts.Normalize(once), "input %q", in)
	}
}

func TestApplyDefaultsPlaceholders(t *testing.T) {
	byScheme := map[string]string{
		"i18n": "{language}",
		"l10n": "site-{site}",
	}
	defaults := URI{Scheme: "i18n", Ext: "txt"}

	got := ApplyDefaults(URI{Path: "x"}, defaults, byScheme, map[string]string{"language": "sv-se"})
	assert.Equal(t, "sv-se", got.Namespace)

	got = ApplyDefaults(URI{Scheme: "l10n", Path: "x"}, defaults, byScheme, map[string]string{"site": "7"})
	assert.Equal(t, "site-7", got.Namespace)

	// Unknown placeholders stay literal.
	got = ApplyDefaults(URI{Path: "x"}, defaults, byScheme, nil)
	assert.Equal(t, "{language}", got.Namespace)

	// An explicit namespace is never replaced.
	got = ApplyDefaults(URI{Namespace: "de-de", Path: "x"}, defaults, byScheme, map[string]string{"language": "sv-se"})
	assert.Equal(t, "de-de", got.Namespace)
}

func TestCustomSeparators(t *testing.T) {
	opts := Options{
		Defaults: URI{Scheme: "scheme", Namespace: "namespace", Ext: "ext", Version: "version"},
		NamespaceByScheme: map[string]string{
			"scheme2": "namespace2",
		},
		Separators: Separators{
			Scheme:    "<SCHEME>",
			Namespace: "<NAMESPACE>",
			Path:      "<PATH>",
			Ext:       "<EXT>",
			Version:   "<VERSION>",
		},
	}
	require.NoError(t, opts.Separators.Validate())

	assert.Equal(t, "scheme<SCHEME>namespace<NAMESPACE>test<EXT>ext<VERSION>version", opts.Normalize("test"))
	assert.Equal(t, "scheme2<SCHEME>namespace2<NAMESPACE>test<EXT>ext<VERSION>version", opts.Normalize("scheme2<SCHEME>test"))
	assert.Equal(t,
		"scheme2<SCHEME>namespace3<NAMESPACE>home<PATH>test<EXT>html<VERSION>5",
		opts.Normalize("scheme2<SCHEME>namespace3<NAMESPACE>home<PATH>test<EXT>html<VERSION>5"))
}

func TestVersionless(t *testing.T) {
	opts := DefaultOptions()
	assert.Equal(t, "i18n://en-us@test.txt", opts.Versionless("test#3"))
	assert.Equal(t, "i18n://en-us@test.txt", opts.Versionless("i18n://en-us@test.txt"))
}

func TestSeparatorsValidate(t *testing.T) {
	require.NoError(t, DefaultSeparators().Validate())

	bad := []Separators{
		{Scheme: "", Namespace: "@", Path: "/", Ext: ".", Version: "#"},
		{Scheme: "://", Namespace: "@", Path: "/", Ext: ".", Version: "."},
		{Scheme: "::", Namespace: ":", Path: "/", Ext: ".", Version: "#"},
	}
	for _, s := range bad {
		err := s.Validate()
		if !errors.Is(err, ErrInvalidSeparators) {
			t.Errorf("Validate(%+v) = %v, want ErrInvalidSeparators", s, err)
		}
	}
}

func TestCloneDoesNotShareMaps(t *testing.T) {
	a := DefaultOptions()
	b := a.Clone()
	b.NamespaceByScheme["i18n"] = "sv-se"
	b.Placeholders["x"] = "y"
	assert.Equal(t, "en-us", a.NamespaceByScheme["i18n"])
	assert.Empty(t, a.Placeholders)
}
