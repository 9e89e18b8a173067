// Package uri parses, stringifies and normalizes node URIs of the form
//
//	scheme://namespace@path/to/node.ext#version
//
// Every separator is configurable. The canonical (normalized) form of a URI is
// Stringify(ApplyDefaults(Parse(s))) and is the key used for caching and lookups.
package uri

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrInvalidSeparators is returned when a separator configuration would make
// parsing ambiguous.
var ErrInvalidSeparators = errors.New("uri: invalid separators")

// URI holds the five components of a node address. Empty means "not set".
type URI struct {
	Scheme    string `yaml:"scheme" json:"scheme"`
	Namespace string `yaml:"namespace" json:"namespace"`
	Path      string `yaml:"path" json:"path"`
	Ext       string `yaml:"ext" json:"ext"`
	Version   string `yaml:"version" json:"version"`
}

// Separators are the strings placed between URI components.
type Separators struct {
	Scheme    string `yaml:"scheme"`
	Namespace string `yaml:"namespace"`
	Path      string `yaml:"path"`
	Ext       string `yaml:"ext"`
	Version   string `yaml:"version"`
}

// Options bundle everything needed to normalize a URI.
type Options struct {
	Defaults          URI               `yaml:"defaults"`
	NamespaceByScheme map[string]string `yaml:"namespaceByScheme"`
	Separators        Separators        `yaml:"separators"`
	Placeholders      map[string]string `yaml:"placeholders"`
}

// DefaultSeparators returns the separators used by the content service.
func DefaultSeparators() Separators {
	return Separators{
		Scheme:    "://",
		Namespace: "@",
		Path:      "/",
		Ext:       ".",
		Version:   "#",
	}
}

// DefaultOptions returns a fresh copy of the default URI options.
func DefaultOptions() Options {
	return Options{
		Defaults: URI{
			Scheme: "i18n",
			Ext:    "txt",
		},
		NamespaceByScheme: map[string]string{
			"i18n": "en-us",
			"l10n": "local",
			"g11n": "global",
		},
		Separators:   DefaultSeparators(),
		Placeholders: map[string]string{},
	}
}

// Validate reports whether the separators can be parsed unambiguously.
func (s Separators) Validate() error {
	named := []struct {
		name, value string
	}{
		{"scheme", s.Scheme},
		{"namespace", s.Namespace},
		{"path", s.Path},
		{"ext", s.Ext},
		{"version", s.Version},
	}

	for _, n := range named {
		if n.value == "" && n.name != "path" {
			return fmt.Errorf("%w: %s separator is empty", ErrInvalidSeparators, n.name)
		}
	}

	for i, a := range named {
		if a.value == "" {
			continue
		}
		for j, b := range named {
			if i == j || b.value == "" {
				continue
			}
			if strings.HasPrefix(a.value, b.value) {
				return fmt.Errorf("%w: %s separator %q collides with %s separator %q",
					ErrInvalidSeparators, b.name, b.value, a.name, a.value)
			}
		}
	}
	return nil
}

// Parse splits s into its components. Scheme and namespace are taken from the
// left, version and ext from the right; whatever remains is the path.
func Parse(s string, sep Separators) URI {
	scheme, rest := takeLeft(s, sep.Scheme)
	namespace, rest := takeLeft(rest, sep.Namespace)
	rest, version := takeRight(rest, sep.Version)
	path, ext := takeRight(rest, sep.Ext)
	return URI{
		Scheme:    scheme,
		Namespace: namespace,
		Path:      path,
		Ext:       ext,
		Version:   version,
	}
}

// Stringify joins the non-empty components of u in the order
// scheme, namespace, path, ext, version.
func Stringify(u URI, sep Separators) string {
	var b strings.Builder
	if u.Scheme != "" {
		b.WriteString(u.Scheme)
		b.WriteString(sep.Scheme)
	}
	if u.Namespace != "" {
		b.WriteString(u.Namespace)
		b.WriteString(sep.Namespace)
	}
	b.WriteString(u.Path)
	if u.Ext != "" {
		b.WriteString(sep.Ext)
		b.WriteString(u.Ext)
	}
	if u.Version != "" {
		b.WriteString(sep.Version)
		b.WriteString(u.Version)
	}
	return b.String()
}

var placeholderPattern = regexp.MustCompile(`\{(\w+)\}`)

// ApplyDefaults fills empty components from defaults. When the namespace was
// not given, a namespace registered for the scheme wins over the generic
// default, with {name} tokens replaced from placeholders. Tokens without a
// matching placeholder are left as is.
func ApplyDefaults(u URI, defaults URI, namespaceByScheme map[string]string, placeholders map[string]string) URI {
	out := URI{
		Scheme:    firstNonEmpty(u.Scheme, defaults.Scheme),
		Namespace: firstNonEmpty(u.Namespace, defaults.Namespace),
		Path:      firstNonEmpty(u.Path, defaults.Path),
		Ext:       firstNonEmpty(u.Ext, defaults.Ext),
		Version:   firstNonEmpty(u.Version, defaults.Version),
	}

	if u.Namespace == "" {
		if ns, ok := namespaceByScheme[out.Scheme]; ok {
			out.Namespace = placeholderPattern.ReplaceAllStringFunc(ns, func(token string) string {
				name := token[1 : len(token)-1]
				if v := placeholders[name]; v != "" {
					return v
				}
				return token
			})
		}
	}
	return out
}

// Parse parses s and applies the option defaults.
func (o Options) Parse(s string) URI {
	return ApplyDefaults(Parse(s, o.Separators), o.Defaults, o.NamespaceByScheme, o.Placeholders)
}

// Stringify stringifies u with the option separators.
func (o Options) Stringify(u URI) string {
	return Stringify(u, o.Separators)
}

// Normalize returns the canonical form of s.
func (o Options) Normalize(s string) string {
	return o.Stringify(o.Parse(s))
}

// Versionless returns the canonical form of s with the version stripped.
func (o Options) Versionless(s string) string {
	u := o.Parse(s)
	u.Version = ""
	return o.Stringify(u)
}

// Clone returns a deep copy of o so callers can mutate maps safely.
func (o Options) Clone() Options {
	out := o
	out.NamespaceByScheme = make(map[string]string, len(o.NamespaceByScheme))
	for k, v := range o.NamespaceByScheme {
		out.NamespaceByScheme[k] = v
	}
	out.Placeholders = make(map[string]string, len(o.Placeholders))
	for k, v := range o.Placeholders {
		out.Placeholders[k] = v
	}
	return out
}

func takeLeft(s, sep string) (string, string) {
	idx := strings.Index(s, sep)
	if idx == -1 {
		return "", s
	}
	return s[:idx], s[idx+len(sep):]
}

func takeRight(s, sep string) (string, string) {
	idx := strings.LastIndex(s, sep)
	if idx == -1 {
		return s, ""
	}
	return s[:idx], s[idx+len(sep):]
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
