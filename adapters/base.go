package adapters

import (
	"fmt"
	"net/url"
	"strings"

	"lubimyczytac-exporter/internal/types"
	"lubimyczytac-exporter/utils"
)

// BaseAdapter provides common element-reading helpers for site adapters.
// Every helper reports a missing or blank value as an error wrapping
// types.ErrNotFound so callers can move on to their next strategy.
type BaseAdapter struct {
	config  *types.Config
	logger  types.Logger
	driver  types.Driver
	metrics *utils.Metrics
}

// NewBaseAdapter creates a base adapter around an open driver session
func NewBaseAdapter(driver types.Driver, config *types.Config, logger types.Logger, metrics *utils.Metrics) *BaseAdapter {
	return &BaseAdapter{
		config:  config,
		logger:  logger,
		driver:  driver,
		metrics: metrics,
	}
}

// ExtractText returns the trimmed text of the first element matching selector
// under scope.
func (b *BaseAdapter) ExtractText(scope types.Element, selector string) (string, error) {
	el, err := b.driver.FindOne(scope, selector)
	if err != nil {
		return "", err
	}
	text, err := b.driver.ReadText(el)
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("empty text for %s: %w", selector, types.ErrNotFound)
	}
	return text, nil
}

// ExtractAttribute returns an attribute of the first element matching
// selector under scope. An empty selector reads the attribute of scope itself.
func (b *BaseAdapter) ExtractAttribute(scope types.Element, selector, attribute string) (string, error) {
	el := scope
	if selector != "" {
		found, err := b.driver.FindOne(scope, selector)
		if err != nil {
			return "", err
		}
		el = found
	}
	value, err := b.driver.ReadAttribute(el, attribute)
	if err != nil {
		return "", err
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return "", fmt.Errorf("empty attribute %s on %s: %w", attribute, selector, types.ErrNotFound)
	}
	return value, nil
}

// ExtractAllText returns the trimmed, non-empty texts of every match
func (b *BaseAdapter) ExtractAllText(scope types.Element, selector string) ([]string, error) {
	elements, err := b.driver.FindAll(scope, selector)
	if err != nil {
		return nil, err
	}
	var texts []string
	for _, el := range elements {
		text, err := b.driver.ReadText(el)
		if err != nil {
			b.logger.Debugf("Skipping unreadable %s element: %v", selector, err)
			continue
		}
		if text = strings.TrimSpace(text); text != "" {
			texts = append(texts, text)
		}
	}
	return texts, nil
}

// ResolveURL converts a possibly relative href into an absolute URL using the
// configured base URL.
func (b *BaseAdapter) ResolveURL(href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	base, err := url.Parse(b.config.BaseURL)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

// RemoveDuplicates removes duplicate values keeping first occurrences in order
func (b *BaseAdapter) RemoveDuplicates(values []string) []string {
	seen := make(map[string]bool)
	var unique []string

	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			unique = append(unique, v)
		}
	}

	return unique
}

// Config returns the config field of the BaseAdapter
func (b *BaseAdapter) Config() *types.Config {
	return b.config
}

// Driver returns the driver session the adapter reads from
func (b *BaseAdapter) Driver() types.Driver {
	return b.driver
}

// IsAbsoluteURL reports whether link is an absolute http(s) URL
func IsAbsoluteURL(link string) bool {
	u, err := url.Parse(strings.TrimSpace(link))
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
