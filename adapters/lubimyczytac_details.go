package adapters

import (
	"regexp"
	"strings"
	"time"

	"lubimyczytac-exporter/utils"
)

// Detail page selectors
const (
	isbnMetaSelector       = `meta[property="books:isbn"]`
	detailsSectionSelector = "#book-details"
	originalTitleLabel     = "Tytuł oryginału:"
)

// originalTitlePatterns match the label followed by the next <dd> value: the
// UTF-8 label first, then the same label mis-decoded as windows-1250.
var originalTitlePatterns = []*regexp.Regexp{
	originalTitlePattern(originalTitleLabel),
	originalTitlePattern(utils.MisDecoded(originalTitleLabel)),
}

func originalTitlePattern(label string) *regexp.Regexp {
	return regexp.MustCompile(`(?s)` + regexp.QuoteMeta(label) + `.*?<dd[^>]*>(.*?)</dd>`)
}

// Details holds the fields read from a book's own page. Found reports whether
// the original title was located; an empty OriginalTitle with Found set means
// the page lists it as blank.
type Details struct {
	ISBN          string
	OriginalTitle string
	Found         bool
}

// ExtractDetails loads the book page at link and reads its ISBN and original
// title. Every failure degrades to empty values; nothing is returned as error.
func (a *LubimyczytacAdapter) ExtractDetails(link string) Details {
	var details Details

	if !IsAbsoluteURL(link) {
		a.logger.Warnf("Invalid book URL: %q", link)
		a.metrics.IncRecovery("invalid_link")
		return details
	}

	start := time.Now()
	defer func() { a.metrics.ObserveDetailFetch(time.Since(start)) }()

	if err := a.driver.Navigate(link); err != nil {
		a.logger.Warnf("Failed to load %s: %v", link, err)
		a.metrics.IncRecovery(utils.ErrorKind(err))
		return details
	}

	if _, err := a.driver.WaitUntilPresent("head", a.config.DetailTimeout); err != nil {
		a.logger.Debugf("Page %s did not report ready: %v", link, err)
		a.metrics.IncRecovery(utils.ErrorKind(err))
	}

	if isbn, err := a.ExtractAttribute(nil, isbnMetaSelector, "content"); err == nil {
		details.ISBN = isbn
	} else {
		a.logger.Debugf("No ISBN on %s: %v", link, err)
	}

	section, err := a.driver.WaitUntilPresent(detailsSectionSelector, a.config.DetailTimeout)
	if err != nil {
		a.logger.Infof("Book details section not found on %s", link)
		a.metrics.IncRecovery(utils.ErrorKind(err))
		return details
	}
	markup, err := a.driver.ReadRawMarkup(section)
	if err != nil {
		a.logger.Debugf("Book details unreadable on %s: %v", link, err)
		a.metrics.IncRecovery(utils.ErrorKind(err))
		return details
	}

	if title, ok := MatchOriginalTitle(markup); ok {
		details.OriginalTitle = title
		details.Found = true
	} else {
		a.logger.Debugf("Original title not listed on %s", link)
	}
	return details
}

// MatchOriginalTitle searches details-section markup for the original title
func MatchOriginalTitle(markup string) (string, bool) {
	for _, pattern := range originalTitlePatterns {
		m := pattern.FindStringSubmatch(markup)
		if m == nil {
			continue
		}
		value := m[1]
		if text, err := utils.MarkupText(value); err == nil {
			value = strings.Join(utils.SplitLines(text), " ")
		}
		return strings.TrimSpace(value), true
	}
	return "", false
}
