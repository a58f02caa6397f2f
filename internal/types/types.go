package types

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// Config holds the configuration for the exporter
type Config struct {
	BaseURL            string
	RequestDelay       time.Duration
	Timeout            time.Duration
	WaitTimeout        time.Duration
	CookieTimeout      time.Duration
	DetailTimeout      time.Duration
	PageSettle         time.Duration
	MinDelay           time.Duration
	MaxDelay           time.Duration
	ProgressEvery      int
	MaxPages           int
	UseHeadlessBrowser bool
	ShowBrowser        bool
	UserAgent          string
	PrimaryShelves     []string
	ShelfNoise         []string
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		BaseURL:            "https://lubimyczytac.pl",
		RequestDelay:       500 * time.Millisecond,
		Timeout:            30 * time.Second,
		WaitTimeout:        5 * time.Second,
		CookieTimeout:      10 * time.Second,
		DetailTimeout:      5 * time.Second,
		PageSettle:         1 * time.Second,
		MinDelay:           1 * time.Second,
		MaxDelay:           3 * time.Second,
		ProgressEvery:      10,
		MaxPages:           0,
		UseHeadlessBrowser: true,
		ShowBrowser:        false,
		UserAgent:          "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		PrimaryShelves:     []string{"Przeczytane", "Teraz czytam", "Chcę przeczytać", "Chce przeczytać"},
		ShelfNoise: []string{
			"Następna", "Poprzednia", "Pokaż więcej", "Zobacz więcej",
			"Dodaj do koszyka", "Koszyk", "Kup", "Porównaj ceny",
			"Zmień półkę", "Na półkach", "Dodaj na półkę", "Usuń z półki",
		},
	}
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	parsed, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	if parsed.Host == "" {
		return fmt.Errorf("base URL must include a host")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.WaitTimeout <= 0 || c.DetailTimeout <= 0 {
		return fmt.Errorf("wait timeouts must be positive")
	}
	if c.RequestDelay < 0 || c.PageSettle < 0 {
		return fmt.Errorf("delays cannot be negative")
	}
	if c.ProgressEvery <= 0 {
		return fmt.Errorf("progress interval must be positive")
	}
	if c.MaxPages < 0 {
		return fmt.Errorf("max pages cannot be negative")
	}
	if len(c.PrimaryShelves) == 0 {
		return fmt.Errorf("primary shelf vocabulary cannot be empty")
	}
	return nil
}

// DelayBounds returns the enrichment pacing bounds with min clamped to >= 0
// and max clamped to >= min.
func (c *Config) DelayBounds() (time.Duration, time.Duration) {
	lo, hi := c.MinDelay, c.MaxDelay
	if lo < 0 {
		lo = 0
	}
	if hi < lo {
		hi = lo
	}
	return lo, hi
}

// IsPrimaryShelf reports whether name belongs to the primary shelf vocabulary
func (c *Config) IsPrimaryShelf(name string) bool {
	for _, s := range c.PrimaryShelves {
		if s == name {
			return true
		}
	}
	return false
}

var (
	// ErrNotFound is returned by a Driver when an element or attribute is absent.
	ErrNotFound = errors.New("element not found")
	// ErrTimeout is returned by a Driver when a bounded wait expires.
	ErrTimeout = errors.New("wait timed out")
)

// NavigationError indicates the driver could not load a URL at all.
type NavigationError struct {
	URL string
	Err error
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("navigate to %s: %v", e.URL, e.Err)
}

func (e *NavigationError) Unwrap() error {
	return e.Err
}

// Element is an opaque handle to a node owned by the Driver that returned it.
// A nil Element passed as scope means the whole document.
type Element interface{}

// Driver is the page automation capability consumed by the extractors.
// One Driver is one browser session; it is not safe for concurrent use.
type Driver interface {
	// Navigate loads url in the session, replacing the current page.
	Navigate(url string) error

	// WaitUntilPresent blocks until selector matches or timeout expires (ErrTimeout).
	WaitUntilPresent(selector string, timeout time.Duration) (Element, error)

	// FindOne returns the first match under scope or ErrNotFound.
	FindOne(scope Element, selector string) (Element, error)

	// FindAll returns all matches under scope in document order.
	FindAll(scope Element, selector string) ([]Element, error)

	ReadText(el Element) (string, error)
	ReadAttribute(el Element, name string) (string, error)
	ReadRawMarkup(el Element) (string, error)
	Click(el Element) error

	// Close releases the session.
	Close() error
}

// Logger defines the logging interface
type Logger interface {
	Debug(args ...interface{})
	Info(args ...interface{})
	Warn(args ...interface{})
	Error(args ...interface{})
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}
