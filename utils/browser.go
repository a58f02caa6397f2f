package utils

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
	"lubimyczytac-exporter/internal/types"
)

// BrowserClient implements types.Driver on top of a single chromedp session.
// Elements it returns are *cdp.Node values and are valid until the next
// navigation or page update.
type BrowserClient struct {
	config *types.Config
	logger types.Logger

	ctx           context.Context
	cancelBrowser context.CancelFunc
	cancelAlloc   context.CancelFunc
}

// NewBrowserClient launches Chrome and opens one tab for the session
func NewBrowserClient(ctx context.Context, config *types.Config, logger types.Logger) (*BrowserClient, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", !config.ShowBrowser),
		chromedp.UserAgent(config.UserAgent),
		chromedp.WindowSize(1366, 900),
	)

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(logger.Debugf),
		chromedp.WithErrorf(logger.Debugf),
	)

	// An empty Run starts the browser so launch failures surface here.
	if err := chromedp.Run(browserCtx); err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	logger.Debugf("Browser session started (headless=%v)", !config.ShowBrowser)
	return &BrowserClient{
		config:        config,
		logger:        logger,
		ctx:           browserCtx,
		cancelBrowser: cancelBrowser,
		cancelAlloc:   cancelAlloc,
	}, nil
}

// Navigate loads url in the session tab
func (b *BrowserClient) Navigate(url string) error {
	ctx, cancel := context.WithTimeout(b.ctx, b.config.Timeout)
	defer cancel()

	if err := chromedp.Run(ctx, chromedp.Navigate(url)); err != nil {
		return &types.NavigationError{URL: url, Err: err}
	}
	b.logger.Debugf("Navigated to %s", url)
	return nil
}

// WaitUntilPresent polls for selector until it matches or timeout expires
func (b *BrowserClient) WaitUntilPresent(selector string, timeout time.Duration) (types.Element, error) {
	ctx, cancel := context.WithTimeout(b.ctx, timeout)
	defer cancel()

	var nodes []*cdp.Node
	err := chromedp.Run(ctx, chromedp.Nodes(selector, &nodes, chromedp.ByQuery))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("wait for %s: %w", selector, types.ErrTimeout)
		}
		return nil, fmt.Errorf("wait for %s: %w", selector, err)
	}
	if len(nodes) == 0 {
		return nil, fmt.Errorf("wait for %s: %w", selector, types.ErrTimeout)
	}
	return nodes[0], nil
}

func (b *BrowserClient) FindOne(scope types.Element, selector string) (types.Element, error) {
	nodes, err := b.query(scope, selector)
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, fmt.Errorf("%s: %w", selector, types.ErrNotFound)
	}
	return nodes[0], nil
}

func (b *BrowserClient) FindAll(scope types.Element, selector string) ([]types.Element, error) {
	nodes, err := b.query(scope, selector)
	if err != nil {
		return nil, err
	}
	elements := make([]types.Element, 0, len(nodes))
	for _, n := range nodes {
		elements = append(elements, n)
	}
	return elements, nil
}

// ReadText returns the rendered innerText of the element
func (b *BrowserClient) ReadText(el types.Element) (string, error) {
	return b.jsProperty(el, "innerText")
}

// ReadAttribute returns the live attribute value, ErrNotFound when absent
func (b *BrowserClient) ReadAttribute(el types.Element, name string) (string, error) {
	node, err := cdpNode(el)
	if err != nil {
		return "", err
	}
	ctx, cancel := context.WithTimeout(b.ctx, b.config.WaitTimeout)
	defer cancel()

	var value string
	var ok bool
	if err := chromedp.Run(ctx, chromedp.AttributeValue([]cdp.NodeID{node.NodeID}, name, &value, &ok, chromedp.ByNodeID)); err != nil {
		return "", fmt.Errorf("read attribute %s: %w", name, err)
	}
	if !ok {
		return "", fmt.Errorf("attribute %s: %w", name, types.ErrNotFound)
	}
	return value, nil
}

// ReadRawMarkup returns the element's innerHTML
func (b *BrowserClient) ReadRawMarkup(el types.Element) (string, error) {
	return b.jsProperty(el, "innerHTML")
}

func (b *BrowserClient) Click(el types.Element) error {
	node, err := cdpNode(el)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(b.ctx, b.config.WaitTimeout)
	defer cancel()

	if err := chromedp.Run(ctx, chromedp.Click([]cdp.NodeID{node.NodeID}, chromedp.ByNodeID)); err != nil {
		return fmt.Errorf("click: %w", err)
	}
	return nil
}

// Close shuts the browser down; it is safe to call more than once
func (b *BrowserClient) Close() error {
	if b.cancelBrowser != nil {
		b.cancelBrowser()
		b.cancelBrowser = nil
	}
	if b.cancelAlloc != nil {
		b.cancelAlloc()
		b.cancelAlloc = nil
	}
	b.logger.Debug("Browser session closed")
	return nil
}

func (b *BrowserClient) query(scope types.Element, selector string) ([]*cdp.Node, error) {
	opts := []chromedp.QueryOption{chromedp.ByQueryAll, chromedp.AtLeast(0)}
	if scope != nil {
		node, err := cdpNode(scope)
		if err != nil {
			return nil, err
		}
		opts = append(opts, chromedp.FromNode(node))
	}

	ctx, cancel := context.WithTimeout(b.ctx, b.config.WaitTimeout)
	defer cancel()

	var nodes []*cdp.Node
	if err := chromedp.Run(ctx, chromedp.Nodes(selector, &nodes, opts...)); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("query %s: %w", selector, types.ErrTimeout)
		}
		return nil, fmt.Errorf("query %s: %w", selector, err)
	}
	return nodes, nil
}

func (b *BrowserClient) jsProperty(el types.Element, property string) (string, error) {
	node, err := cdpNode(el)
	if err != nil {
		return "", err
	}
	ctx, cancel := context.WithTimeout(b.ctx, b.config.WaitTimeout)
	defer cancel()

	var value string
	if err := chromedp.Run(ctx, chromedp.JavascriptAttribute([]cdp.NodeID{node.NodeID}, property, &value, chromedp.ByNodeID)); err != nil {
		return "", fmt.Errorf("read %s: %w", property, err)
	}
	return value, nil
}

func cdpNode(el types.Element) (*cdp.Node, error) {
	node, ok := el.(*cdp.Node)
	if !ok || node == nil {
		return nil, fmt.Errorf("unexpected element type %T", el)
	}
	return node, nil
}
