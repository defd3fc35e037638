// Package translation resolves user facing messages by key.
//
// Catalogs are embedded YAML files named after their language. Keys missing in a
// catalog fall back to the English catalog and finally to the key itself.
package translation

import (
	"embed"
	"fmt"
	"path"
	"strings"

	"gopkg.in/yaml.v3"
)

const DefaultLanguage = "en"

//go:embed messages/*.yaml
var catalogs embed.FS

type Translator interface {
	Translate(key string, args ...any) string
}

type Catalog struct {
	language string
	messages map[string]string
	fallback *Catalog
}

var _ Translator = &Catalog{}

// New loads the catalog of the given language with English as fallback.
func New(language string) (*Catalog, error) {
	language = strings.ToLower(strings.TrimSpace(language))
	if language == "" {
		language = DefaultLanguage
	}
	base, err := load(DefaultLanguage)
	if err != nil {
		return nil, err
	}
	if language == DefaultLanguage {
		return base, nil
	}
	c, err := load(language)
	if err != nil {
		return nil, err
	}
	c.fallback = base
	return c, nil
}

// Default returns the English catalog, it panics when the embedded catalog is broken.
func Default() *Catalog {
	c, err := New(DefaultLanguage)
	if err != nil {
		panic(fmt.Sprintf("[invariant check] embedded translation catalog is broken: %s", err))
	}
	return c
}

func load(language string) (*Catalog, error) {
	data, err := catalogs.ReadFile(path.Join("messages", language+".yaml"))
	if err != nil {
		return nil, fmt.Errorf("no messages for language %q: %w", language, err)
	}
	messages := map[string]string{}
	if err := yaml.Unmarshal(data, &messages); err != nil {
		return nil, fmt.Errorf("failed to parse messages for language %q: %w", language, err)
	}
	return &Catalog{language: language, messages: messages}, nil
}

func (c *Catalog) Language() string {
	return c.language
}

func (c *Catalog) Translate(key string, args ...any) string {
	for cat := c; cat != nil; cat = cat.fallback {
		if msg, ok := cat.messages[key]; ok {
			if len(args) == 0 {
				return msg
			}
			return fmt.Sprintf(msg, args...)
		}
	}
	if len(args) == 0 {
		return key
	}
	return fmt.Sprintf("%s %v", key, args)
}
