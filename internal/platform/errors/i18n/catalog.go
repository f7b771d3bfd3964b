// Package i18n provides internationalization support for error messages.
package i18n

import (
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"sync"
	"text/template"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
	"gopkg.in/yaml.v3"
)

// Code is a machine-readable error code (duplicated from errors package to avoid cycle).
type Code = string

// BaseLocale is the locale every other catalog falls back to.
const BaseLocale = "en-US"

//go:embed locales/*.yaml
var embeddedLocales embed.FS

type localeFile struct {
	Locale   string            `yaml:"locale"`
	Messages map[string]string `yaml:"messages"`
}

// Catalog maps error codes to message templates for a specific locale.
type Catalog struct {
	locale   string
	messages map[Code]string
	printer  *message.Printer
}

var (
	catalogsMu sync.RWMutex
	// catalogs holds override and runtime-built catalogs by locale.
	catalogs = map[string]*Catalog{}

	loadOnce sync.Once
	matcher  language.Matcher
	tags     []language.Tag
)

// GetCatalog returns the catalog for the given locale.
// Falls back to en-US if the locale is not found.
func GetCatalog(locale string) *Catalog {
	loadOnce.Do(loadEmbedded)

	requested := strings.TrimSpace(locale)
	if requested == "" {
		requested = BaseLocale
	}
	if c, ok := lookupCatalog(requested); ok {
		return c
	}

	resolved := BaseLocale
	if tag, err := language.Parse(requested); err == nil && matcher != nil {
		_, index, confidence := matcher.Match(tag)
		if confidence != language.No {
			resolved = tags[index].String()
		}
	}
	if c, ok := lookupCatalog(resolved); ok {
		return c
	}
	c, _ := lookupCatalog(BaseLocale)
	return c
}

// Localize formats the message for code in the best matching locale.
func Localize(locale string, code Code, metadata map[string]string) string {
	c := GetCatalog(locale)
	if c == nil {
		return code
	}
	return c.Format(code, metadata)
}

// Locale returns the locale of this catalog.
func (c *Catalog) Locale() string {
	return c.locale
}

// Format renders the message template with the given metadata.
// Falls back to the error code itself if no template is found.
// Templates are always executed even with nil/empty metadata to ensure
// consistent output (template variables without metadata render as empty).
func (c *Catalog) Format(code Code, metadata map[string]string) string {
	tmpl, ok := c.messages[code]
	if !ok {
		return code
	}
	if c.printer != nil {
		tmpl = c.printer.Sprintf(code)
	}

	if metadata == nil {
		metadata = map[string]string{}
	}

	t, err := template.New("msg").Parse(tmpl)
	if err != nil {
		return tmpl
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, metadata); err != nil {
		return tmpl
	}
	return buf.String()
}

// RegisterCatalog registers a new catalog for the given locale.
// This is primarily for testing purposes.
func RegisterCatalog(locale string, cat *Catalog) {
	catalogsMu.Lock()
	defer catalogsMu.Unlock()
	catalogs[locale] = cat
}

// NewCatalog creates a new catalog with the given locale and messages.
func NewCatalog(locale string, messages map[Code]string) *Catalog {
	cloned := make(map[Code]string, len(messages))
	for key, value := range messages {
		cloned[key] = value
	}
	return &Catalog{
		locale:   locale,
		messages: cloned,
	}
}

// LoadFromFS parses every locales/*.yaml file in fsys into catalogs that
// share one x/text message catalog. Missing codes in a locale fall back to
// BaseLocale messages.
func LoadFromFS(fsys fs.FS) (map[string]*Catalog, error) {
	paths, err := fs.Glob(fsys, "locales/*.yaml")
	if err != nil {
		return nil, fmt.Errorf("glob locale catalogs: %w", err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no locale catalogs found")
	}
	sort.Strings(paths)

	files := make(map[string]localeFile, len(paths))
	for _, path := range paths {
		data, err := fs.ReadFile(fsys, path)
		if err != nil {
			return nil, fmt.Errorf("read catalog %s: %w", path, err)
		}
		var parsed localeFile
		if err := yaml.Unmarshal(data, &parsed); err != nil {
			return nil, fmt.Errorf("parse catalog %s: %w", path, err)
		}
		if strings.TrimSpace(parsed.Locale) == "" {
			return nil, fmt.Errorf("catalog %s: locale is required", path)
		}
		files[parsed.Locale] = parsed
	}
	base, ok := files[BaseLocale]
	if !ok {
		return nil, fmt.Errorf("base locale %s catalog is required", BaseLocale)
	}

	builder := catalog.NewBuilder(catalog.Fallback(language.MustParse(BaseLocale)))
	out := make(map[string]*Catalog, len(files))
	for locale, file := range files {
		tag, err := language.Parse(locale)
		if err != nil {
			return nil, fmt.Errorf("catalog locale %q: %w", locale, err)
		}
		merged := make(map[Code]string, len(base.Messages))
		for code, msg := range base.Messages {
			merged[code] = msg
		}
		for code, msg := range file.Messages {
			merged[code] = msg
		}
		for code, msg := range merged {
			if err := builder.SetString(tag, code, msg); err != nil {
				return nil, fmt.Errorf("catalog %s code %s: %w", locale, code, err)
			}
		}
		cat := NewCatalog(locale, merged)
		cat.printer = message.NewPrinter(tag, message.Catalog(builder))
		out[locale] = cat
	}
	return out, nil
}

func loadEmbedded() {
	loaded, err := LoadFromFS(embeddedLocales)
	if err != nil {
		panic(fmt.Sprintf("load embedded error catalogs: %v", err))
	}

	locales := make([]string, 0, len(loaded))
	for locale := range loaded {
		locales = append(locales, locale)
	}
	sort.Strings(locales)
	// The base locale must be first so the matcher falls back to it.
	sort.SliceStable(locales, func(i, j int) bool { return locales[i] == BaseLocale })

	tags = make([]language.Tag, 0, len(locales))
	for _, locale := range locales {
		tags = append(tags, language.MustParse(locale))
		storeCatalogIfAbsent(locale, loaded[locale])
	}
	matcher = language.NewMatcher(tags)
}

func lookupCatalog(locale string) (*Catalog, bool) {
	catalogsMu.RLock()
	defer catalogsMu.RUnlock()
	cat, ok := catalogs[locale]
	return cat, ok
}

func storeCatalogIfAbsent(locale string, candidate *Catalog) *Catalog {
	catalogsMu.Lock()
	defer catalogsMu.Unlock()
	if existing, ok := catalogs[locale]; ok {
		return existing
	}
	catalogs[locale] = candidate
	return candidate
}
