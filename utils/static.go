package utils

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"lubimyczytac-exporter/internal/types"
)

// StaticClient implements types.Driver over plain HTTP and goquery. Pages are
// not rendered, so waits succeed or time out immediately and clicks follow the
// element's href.
type StaticClient struct {
	ctx        context.Context
	httpClient *HTTPClient
	logger     types.Logger
	doc        *goquery.Document
	pageURL    *url.URL
}

// NewStaticClient creates a static driver bound to ctx
func NewStaticClient(ctx context.Context, config *types.Config, logger types.Logger) *StaticClient {
	return &StaticClient{
		ctx:        ctx,
		httpClient: NewHTTPClient(config, logger),
		logger:     logger,
	}
}

// Navigate fetches the page and makes it current
func (s *StaticClient) Navigate(rawURL string) error {
	body, err := s.httpClient.Get(s.ctx, rawURL)
	if err != nil {
		return &types.NavigationError{URL: rawURL, Err: err}
	}
	if err := s.SetContent(rawURL, string(body)); err != nil {
		return &types.NavigationError{URL: rawURL, Err: err}
	}
	return nil
}

// SetContent replaces the current page with markup as if it had been loaded
// from pageURL.
func (s *StaticClient) SetContent(pageURL, markup string) error {
	parsed, err := url.Parse(pageURL)
	if err != nil {
		return fmt.Errorf("invalid page URL: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return fmt.Errorf("failed to parse HTML: %w", err)
	}
	s.doc = doc
	s.pageURL = parsed
	return nil
}

// WaitUntilPresent checks the loaded document once; a static page never changes.
func (s *StaticClient) WaitUntilPresent(selector string, timeout time.Duration) (types.Element, error) {
	el, err := s.FindOne(nil, selector)
	if err != nil {
		return nil, fmt.Errorf("wait for %s: %w", selector, types.ErrTimeout)
	}
	return el, nil
}

func (s *StaticClient) FindOne(scope types.Element, selector string) (types.Element, error) {
	root, err := s.scope(scope)
	if err != nil {
		return nil, err
	}
	found := root.Find(selector).First()
	if found.Length() == 0 {
		return nil, fmt.Errorf("%s: %w", selector, types.ErrNotFound)
	}
	return found, nil
}

func (s *StaticClient) FindAll(scope types.Element, selector string) ([]types.Element, error) {
	root, err := s.scope(scope)
	if err != nil {
		return nil, err
	}
	var elements []types.Element
	root.Find(selector).Each(func(i int, sel *goquery.Selection) {
		elements = append(elements, sel)
	})
	return elements, nil
}

func (s *StaticClient) ReadText(el types.Element) (string, error) {
	sel, err := selection(el)
	if err != nil {
		return "", err
	}
	return NodeText(sel), nil
}

func (s *StaticClient) ReadAttribute(el types.Element, name string) (string, error) {
	sel, err := selection(el)
	if err != nil {
		return "", err
	}
	value, exists := sel.Attr(name)
	if !exists {
		return "", fmt.Errorf("attribute %s: %w", name, types.ErrNotFound)
	}
	return value, nil
}

func (s *StaticClient) ReadRawMarkup(el types.Element) (string, error) {
	sel, err := selection(el)
	if err != nil {
		return "", err
	}
	return sel.Html()
}

// Click follows the element's href, or the href of its first descendant link
func (s *StaticClient) Click(el types.Element) error {
	sel, err := selection(el)
	if err != nil {
		return err
	}
	href, exists := sel.Attr("href")
	if !exists {
		href, exists = sel.Find("a[href]").First().Attr("href")
	}
	if !exists || strings.TrimSpace(href) == "" {
		return fmt.Errorf("click: element has no link: %w", types.ErrNotFound)
	}

	target, err := s.pageURL.Parse(strings.TrimSpace(href))
	if err != nil {
		return fmt.Errorf("click: invalid href %q: %w", href, err)
	}
	return s.Navigate(target.String())
}

// Close cleans up resources
func (s *StaticClient) Close() error {
	s.httpClient.Close()
	s.doc = nil
	return nil
}

func (s *StaticClient) scope(el types.Element) (*goquery.Selection, error) {
	if el == nil {
		if s.doc == nil {
			return nil, fmt.Errorf("no page loaded")
		}
		return s.doc.Selection, nil
	}
	return selection(el)
}

func selection(el types.Element) (*goquery.Selection, error) {
	sel, ok := el.(*goquery.Selection)
	if !ok || sel == nil {
		return nil, fmt.Errorf("unexpected element type %T", el)
	}
	return sel, nil
}
