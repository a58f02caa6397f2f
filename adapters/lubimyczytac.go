package adapters

import (
	"fmt"
	"strings"
	"unicode"

	"lubimyczytac-exporter/internal/types"
	"lubimyczytac-exporter/utils"
)

// Listing page selectors
const (
	CardSelector     = ".authorAllBooks__single"
	NextPageSelector = ".next-page"
	cardIDPrefix     = "listBookElement"
)

var (
	shelfContainerSelectors = []string{".authorAllBooks__singleTextShelfRight", "[class*='ShelfRight']"}
	cookieButtonSelectors   = []string{"#onetrust-accept-btn-handler", "button"}
	cookieButtonText        = "Akcept"
	ratingNodeSelectors     = []string{".listLibrary__rating", "[class*='ratingStarsNumber']"}
)

// strategy is one way of reading a field from a card
type strategy struct {
	name    string
	extract func(c *card) (string, error)
}

// fieldRule lists the strategies for one Book field in priority order
type fieldRule struct {
	field      string
	set        func(b *types.Book, v string)
	strategies []strategy
}

// LubimyczytacAdapter extracts library cards and detail pages of lubimyczytac.pl
type LubimyczytacAdapter struct {
	*BaseAdapter
	rules []fieldRule
}

// NewLubimyczytacAdapter creates a new lubimyczytac.pl adapter
func NewLubimyczytacAdapter(driver types.Driver, config *types.Config, logger types.Logger, metrics *utils.Metrics) *LubimyczytacAdapter {
	a := &LubimyczytacAdapter{
		BaseAdapter: NewBaseAdapter(driver, config, logger, metrics),
	}
	a.rules = cardRules()
	return a
}

// GetSiteName returns the site name
func (a *LubimyczytacAdapter) GetSiteName() string {
	return "lubimyczytac.pl"
}

// cardRules is the extraction table. Order matters: link is resolved first
// because id and the last title fallback derive from it.
func cardRules() []fieldRule {
	return []fieldRule{
		{"link", func(b *types.Book, v string) { b.Link = v }, []strategy{
			attrAt("selector", "a[href*='/ksiazka/']", "href"),
			attrAt("alternate", ".authorAllBooks__singleTextTitle", "href"),
			attrAt("alternate", "[class*='singleTextTitle'] a", "href"),
			attrAt("alternate", "a[href]", "href"),
		}},
		{"id", func(b *types.Book, v string) { b.ID = v }, []strategy{
			{"selector", func(c *card) (string, error) {
				id, err := c.a.ExtractAttribute(c.el, "", "id")
				if err != nil {
					return "", err
				}
				return strings.TrimPrefix(id, cardIDPrefix), nil
			}},
			{"alternate", func(c *card) (string, error) { return c.a.ExtractAttribute(c.el, "", "data-id") }},
			{"link", func(c *card) (string, error) { return notEmpty(BookIDFromLink(c.book.Link)) }},
		}},
		{"title", func(b *types.Book, v string) { b.PolishTitle = v }, []strategy{
			textAt("selector", ".authorAllBooks__singleTextTitle", nil),
			textAt("alternate", "[class*='singleTextTitle']", nil),
			textAt("alternate", "[class*='Title'] a", nil),
			contentLine(0),
			{"link", func(c *card) (string, error) { return notEmpty(TitleFromLink(c.book.Link)) }},
		}},
		{"author", func(b *types.Book, v string) { b.Author = v }, []strategy{
			textAt("selector", ".authorAllBooks__singleTextAuthor", nil),
			textAt("alternate", "[class*='singleTextAuthor']", nil),
			textAt("alternate", "[class*='Author'] a", nil),
			contentLine(1),
		}},
		{"cycle", func(b *types.Book, v string) { b.Cycle = v }, []strategy{
			textAt("selector", ".listLibrary__info--cycles", func(s string) string { return trimPrefixFold(s, cyclePrefix) }),
			textAt("alternate", "[class*='info--cycles']", func(s string) string { return trimPrefixFold(s, cyclePrefix) }),
			metadataLine(lineCycle),
		}},
		{"avg_rating", func(b *types.Book, v string) { b.AvgRating = v }, []strategy{
			ratingAt("selector", 0),
			nthText("alternate", "[class*='ratingStarsNumber']", 0),
			nextRatingLine(),
		}},
		{"user_rating", func(b *types.Book, v string) { b.UserRating = v }, []strategy{
			ratingAt("selector", 1),
			nthText("alternate", "[class*='ratingStarsNumber']", 1),
			nextRatingLine(),
		}},
		{"rating_count", func(b *types.Book, v string) { b.RatingCount = v }, []strategy{
			textAt("selector", ".listLibrary__ratingAll", stripRatingUnit),
			textAt("alternate", "[class*='ratingAll']", stripRatingUnit),
			metadataLine(lineRatingCount),
		}},
		{"readers", func(b *types.Book, v string) { b.Readers = v }, []strategy{
			labelledText("selector", ".small.grey", readersPrefix),
			labelledText("alternate", "[class*='grey']", readersPrefix),
			metadataLine(lineReaders),
		}},
		{"opinions", func(b *types.Book, v string) { b.Opinions = v }, []strategy{
			labelledText("selector", ".small.grey", opinionsPrefix),
			labelledText("alternate", "[class*='grey']", opinionsPrefix),
			metadataLine(lineOpinions),
		}},
		{"read_date", func(b *types.Book, v string) { b.ReadDate = v }, []strategy{
			textAt("selector", ".authorAllBooks__read-dates", afterColon),
			textAt("alternate", "[class*='read-dates']", afterColon),
			metadataLine(lineReadDate),
		}},
	}
}

// ExtractCard builds a Book from one library card. Detail fields (ISBN and
// original title) are left empty. A failing field never affects another one.
func (a *LubimyczytacAdapter) ExtractCard(el types.Element) *types.Book {
	c := &card{a: a, el: el, book: &types.Book{}}

	for _, rule := range a.rules {
		value, used := c.apply(rule)
		if value == "" {
			a.logger.Debugf("Card field %s left empty", rule.field)
			a.metrics.IncRecovery("empty_field")
			continue
		}
		rule.set(c.book, value)
		if used > 0 {
			a.metrics.IncFallback(rule.field, rule.strategies[used].name)
		}
	}

	main, other := c.shelves()
	c.book.MainShelves = types.JoinShelves(main)
	c.book.OtherShelves = types.JoinShelves(other)

	return c.book
}

// card holds per-card extraction state
type card struct {
	a    *LubimyczytacAdapter
	el   types.Element
	book *types.Book

	lines       []string
	linesLoaded bool
	ratingIndex int

	ratingNodes        bool
	ratingNodesChecked bool
}

// apply runs the strategies of rule in order and returns the first non-empty
// value with the index of the strategy that produced it.
func (c *card) apply(rule fieldRule) (string, int) {
	for i, s := range rule.strategies {
		value, err := c.run(rule.field, s)
		if err != nil {
			c.a.logger.Debugf("Field %s strategy %s failed: %v", rule.field, s.name, err)
			continue
		}
		if value = strings.TrimSpace(value); value != "" {
			return value, i
		}
	}
	return "", -1
}

// run isolates one strategy so that a panic inside the driver is contained
func (c *card) run(field string, s strategy) (value string, err error) {
	defer func() {
		if r := recover(); r != nil {
			c.a.metrics.IncRecovery("panic")
			err = fmt.Errorf("%s/%s panicked: %v", field, s.name, r)
		}
	}()
	return s.extract(c)
}

// textLines returns the card's flattened visible text lines. When the
// rendered text is empty the raw markup is flattened instead.
func (c *card) textLines() []string {
	if c.linesLoaded {
		return c.lines
	}
	c.linesLoaded = true

	text, err := c.a.driver.ReadText(c.el)
	if err != nil {
		c.a.logger.Debugf("Card text unreadable: %v", err)
	}
	if strings.TrimSpace(text) == "" {
		markup, err := c.a.driver.ReadRawMarkup(c.el)
		if err != nil {
			c.a.logger.Debugf("Card markup unreadable: %v", err)
			return nil
		}
		if text, err = utils.MarkupText(markup); err != nil {
			c.a.logger.Debugf("Card markup unparsable: %v", err)
			return nil
		}
	}

	c.lines = utils.SplitLines(text)
	return c.lines
}

// shelves partitions the shelf container links into primary and secondary
// shelves. Without a container only exact primary labels are taken from the
// card text; secondary shelves are never guessed from raw text.
func (c *card) shelves() (main, other []string) {
	defer func() {
		if r := recover(); r != nil {
			c.a.metrics.IncRecovery("panic")
			c.a.logger.Warnf("Shelf extraction panicked: %v", r)
			main, other = nil, nil
		}
	}()

	var names []string
	found := false
	for _, selector := range shelfContainerSelectors {
		container, err := c.a.driver.FindOne(c.el, selector)
		if err != nil {
			continue
		}
		if names, err = c.a.ExtractAllText(container, "a"); err != nil {
			c.a.logger.Debugf("Shelf links unreadable in %s: %v", selector, err)
			continue
		}
		found = true
		break
	}

	if !found {
		for _, line := range c.textLines() {
			if c.a.config.IsPrimaryShelf(line) {
				main = append(main, line)
			}
		}
		if len(main) > 0 {
			c.a.metrics.IncFallback("shelves", "text")
		}
		return c.a.RemoveDuplicates(main), nil
	}

	for _, name := range names {
		if c.a.config.IsPrimaryShelf(name) {
			main = append(main, name)
		} else if !c.a.isShelfNoise(name) {
			other = append(other, name)
		}
	}
	return c.a.RemoveDuplicates(main), c.a.RemoveDuplicates(other)
}

// isShelfNoise reports whether a shelf link is a UI control. A noise entry
// matches the whole link text, or its start when followed by a non-letter,
// so "Kup" catches "Kup teraz" but not "Kupione" or "Zakupione".
func (a *LubimyczytacAdapter) isShelfNoise(name string) bool {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, noise := range a.config.ShelfNoise {
		noise = strings.ToLower(strings.TrimSpace(noise))
		if noise == "" || !strings.HasPrefix(name, noise) {
			continue
		}
		rest := []rune(name[len(noise):])
		if len(rest) == 0 || !unicode.IsLetter(rest[0]) {
			return true
		}
	}
	return false
}

func textAt(name, selector string, transform func(string) string) strategy {
	return strategy{name, func(c *card) (string, error) {
		text, err := c.a.ExtractText(c.el, selector)
		if err != nil {
			return "", err
		}
		if transform != nil {
			text = transform(text)
		}
		return text, nil
	}}
}

func attrAt(name, selector, attribute string) strategy {
	return strategy{name, func(c *card) (string, error) {
		value, err := c.a.ExtractAttribute(c.el, selector, attribute)
		if err != nil {
			return "", err
		}
		return c.a.ResolveURL(value), nil
	}}
}

func nthText(name, selector string, n int) strategy {
	return strategy{name, func(c *card) (string, error) {
		texts, err := c.a.ExtractAllText(c.el, selector)
		if err != nil {
			return "", err
		}
		if n >= len(texts) {
			return "", fmt.Errorf("%s[%d]: %w", selector, n, types.ErrNotFound)
		}
		return texts[n], nil
	}}
}

// ratingAt reads the star number inside the n-th rating block; the first
// block is the average rating and the second the reader's own rating.
func ratingAt(name string, n int) strategy {
	return strategy{name, func(c *card) (string, error) {
		blocks, err := c.a.driver.FindAll(c.el, ".listLibrary__rating")
		if err != nil {
			return "", err
		}
		if n >= len(blocks) {
			return "", fmt.Errorf("rating block %d: %w", n, types.ErrNotFound)
		}
		return c.a.ExtractText(blocks[n], ".listLibrary__ratingStarsNumber")
	}}
}

// labelledText finds the first selector match whose text contains label and
// returns the text after it.
func labelledText(name, selector, label string) strategy {
	return strategy{name, func(c *card) (string, error) {
		texts, err := c.a.ExtractAllText(c.el, selector)
		if err != nil {
			return "", err
		}
		for _, text := range texts {
			lower := strings.ToLower(text)
			if i := strings.Index(lower, label); i >= 0 {
				return strings.TrimSpace(text[i+len(label):]), nil
			}
		}
		return "", fmt.Errorf("%s with %q: %w", selector, label, types.ErrNotFound)
	}}
}

func contentLine(n int) strategy {
	return strategy{"text", func(c *card) (string, error) {
		seen := 0
		for _, line := range c.textLines() {
			if c.a.classifyLine(line) != lineContent {
				continue
			}
			if seen == n {
				return line, nil
			}
			seen++
		}
		return "", fmt.Errorf("content line %d: %w", n, types.ErrNotFound)
	}}
}

func metadataLine(kind lineKind) strategy {
	return strategy{"text", func(c *card) (string, error) {
		for _, line := range c.textLines() {
			if c.a.classifyLine(line) == kind {
				return notEmpty(lineValue(kind, line))
			}
		}
		return "", fmt.Errorf("metadata line %d: %w", kind, types.ErrNotFound)
	}}
}

// nextRatingLine hands out rating-pattern lines in encounter order, so the
// average rating takes the first one and the user rating the next unused one.
// Cards with star-number nodes never fall back to text: a missing user rating
// there means the book is unrated.
func nextRatingLine() strategy {
	return strategy{"text", func(c *card) (string, error) {
		structured, err := c.hasRatingNodes()
		if err != nil {
			return "", err
		}
		if structured {
			return "", fmt.Errorf("card has rating nodes: %w", types.ErrNotFound)
		}
		seen := 0
		for _, line := range c.textLines() {
			if c.a.classifyLine(line) != lineRating {
				continue
			}
			if seen == c.ratingIndex {
				c.ratingIndex++
				return line, nil
			}
			seen++
		}
		return "", fmt.Errorf("rating line %d: %w", c.ratingIndex, types.ErrNotFound)
	}}
}

// hasRatingNodes reports whether the card renders any rating block
func (c *card) hasRatingNodes() (bool, error) {
	if c.ratingNodesChecked {
		return c.ratingNodes, nil
	}
	for _, selector := range ratingNodeSelectors {
		nodes, err := c.a.driver.FindAll(c.el, selector)
		if err != nil {
			return false, err
		}
		if len(nodes) > 0 {
			c.ratingNodes = true
			break
		}
	}
	c.ratingNodesChecked = true
	return c.ratingNodes, nil
}

func notEmpty(v string) (string, error) {
	if strings.TrimSpace(v) == "" {
		return "", types.ErrNotFound
	}
	return v, nil
}
