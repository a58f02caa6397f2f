package extractor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lubimyczytac-exporter/adapters"
	"lubimyczytac-exporter/internal/types"
	"lubimyczytac-exporter/utils"
)

// LibraryExtractor walks the paginated library list of one profile and turns
// every card into a Book.
type LibraryExtractor struct {
	adapter *adapters.LubimyczytacAdapter
	config  *types.Config
	logger  types.Logger
	metrics *utils.Metrics
	sleep   func(time.Duration)
}

// NewLibraryExtractor creates a new library extractor on an open driver
func NewLibraryExtractor(driver types.Driver, config *types.Config, logger types.Logger, metrics *utils.Metrics) *LibraryExtractor {
	return &LibraryExtractor{
		adapter: adapters.NewLubimyczytacAdapter(driver, config, logger, metrics),
		config:  config,
		logger:  logger,
		metrics: metrics,
		sleep:   time.Sleep,
	}
}

// ExtractAll scrapes every page of the library starting at libraryURL.
// Only a failed initial navigation aborts with no records; a failure while
// moving between pages returns the records collected so far with the error.
func (l *LibraryExtractor) ExtractAll(ctx context.Context, libraryURL string) ([]*types.Book, error) {
	startTime := time.Now()
	l.logger.Infof("Starting %s library extraction at %v", l.adapter.GetSiteName(), startTime.Format("15:04:05.000"))

	// Step 1: Open the library and get rid of the consent overlay
	l.logger.Infof("Step 1: Opening %s", libraryURL)
	if err := l.adapter.Driver().Navigate(libraryURL); err != nil {
		return nil, fmt.Errorf("failed to load library page: %w", err)
	}
	l.adapter.DismissCookies(l.config.PageSettle, l.sleep)

	// Step 2: Walk the pages
	l.logger.Info("Step 2: Extracting books...")
	var books []*types.Book
	progress := NewProgress(l.logger, "Scraped books", l.config.ProgressEvery, 0)

	for page := 1; ; page++ {
		if err := ctx.Err(); err != nil {
			return books, err
		}

		if err := l.adapter.WaitForCards(); err != nil {
			if errors.Is(err, types.ErrTimeout) {
				l.logger.Infof("No books found on page %d, finishing", page)
				break
			}
			return books, fmt.Errorf("failed waiting for books on page %d: %w", page, err)
		}

		cards, err := l.adapter.Cards()
		if err != nil {
			return books, fmt.Errorf("failed to list books on page %d: %w", page, err)
		}
		l.metrics.IncPage()

		for _, card := range cards {
			books = append(books, l.adapter.ExtractCard(card))
			l.metrics.IncCard()
			progress.Tick(len(books))
		}
		l.logger.Debugf("Page %d: %d books (%d total)", page, len(cards), len(books))

		if l.config.MaxPages > 0 && page >= l.config.MaxPages {
			l.logger.Infof("Reached page limit of %d", l.config.MaxPages)
			break
		}

		next, err := l.adapter.NextPage()
		if errors.Is(err, adapters.ErrLastPage) {
			l.logger.Infof("Last page reached (%d)", page)
			break
		}
		if err != nil {
			return books, err
		}
		if err := l.adapter.Driver().Click(next); err != nil {
			return books, fmt.Errorf("failed to open page %d: %w", page+1, err)
		}
		l.sleep(l.config.PageSettle)
	}

	progress.Finish(len(books))
	l.logger.Infof("Library extraction completed: %d books in %v", len(books), time.Since(startTime).Round(time.Millisecond))
	return books, nil
}
