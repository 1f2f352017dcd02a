// Package survey holds the static survey configuration: the questions, the
// dimension weight table and the country coefficient table.
package survey

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var builtinCatalog []byte

// Catalog is a validated, read-only survey configuration.
type Catalog struct {
	Version             int                     `yaml:"version" json:"version"`
	DimensionWeights    map[Dimension]float64   `yaml:"dimension_weights" json:"dimension_weights"`
	CountryCoefficients map[CountryCode]float64 `yaml:"country_coefficients" json:"country_coefficients"`
	Questions           []Question              `yaml:"questions" json:"questions"`

	indexOnce sync.Once
	index     map[string]int
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
)

// Default returns the built-in catalog. It panics if the embedded
// configuration does not validate.
func Default() *Catalog {
	defaultOnce.Do(func() {
		c, err := Parse(builtinCatalog)
		if err != nil {
			panic(fmt.Sprintf("survey: built-in catalog is invalid: %v", err))
		}
		defaultCatalog = c
	})
	return defaultCatalog
}

// Load reads and validates a catalog file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data)
}

// Parse decodes a single YAML document, rejecting unknown fields, and validates it.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&c); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parse catalog: empty document")
		}
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	var extra yaml.Node
	if err := decoder.Decode(&extra); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse catalog: multiple documents are not supported")
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	c.indexOnce.Do(c.buildIndex)
	return &c, nil
}

func (c *Catalog) buildIndex() {
	c.index = make(map[string]int, len(c.Questions))
	for i, q := range c.Questions {
		c.index[q.ID] = i
	}
}

// Len is the number of questions in the catalog.
func (c *Catalog) Len() int {
	return len(c.Questions)
}

// Question returns the question with the given id. It is safe for concurrent
// use, including on a catalog built as a literal.
func (c *Catalog) Question(id string) (Question, bool) {
	c.indexOnce.Do(c.buildIndex)
	i, ok := c.index[id]
	if !ok {
		return Question{}, false
	}
	return c.Questions[i], true
}

// Coefficient returns the purchasing-power multiplier for code, or
// DefaultCoefficient when the country is not in the table.
func (c *Catalog) Coefficient(code CountryCode) float64 {
	if v, ok := c.CountryCoefficients[code]; ok {
		return v
	}
	return DefaultCoefficient
}

// HasCountry reports whether code has an explicit coefficient.
func (c *Catalog) HasCountry(code CountryCode) bool {
	_, ok := c.CountryCoefficients[code]
	return ok
}

// Countries lists the configured countries sorted by code.
func (c *Catalog) Countries() []Country {
	out := make([]Country, 0, len(c.CountryCoefficients))
	for code, coef := range c.CountryCoefficients {
		out = append(out, Country{Code: code, Coefficient: coef})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}
