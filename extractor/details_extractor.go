package extractor

import (
	"context"
	"math/rand"
	"time"

	"lubimyczytac-exporter/adapters"
	"lubimyczytac-exporter/internal/types"
	"lubimyczytac-exporter/utils"
)

// DetailsExtractor visits each book's own page to add its ISBN and original
// title, pausing a random interval between visits.
type DetailsExtractor struct {
	adapter *adapters.LubimyczytacAdapter
	config  *types.Config
	logger  types.Logger
	metrics *utils.Metrics
	sleep   func(time.Duration)
	rng     *rand.Rand
}

// NewDetailsExtractor creates a new details extractor on an open driver
func NewDetailsExtractor(driver types.Driver, config *types.Config, logger types.Logger, metrics *utils.Metrics) *DetailsExtractor {
	return &DetailsExtractor{
		adapter: adapters.NewLubimyczytacAdapter(driver, config, logger, metrics),
		config:  config,
		logger:  logger,
		metrics: metrics,
		sleep:   time.Sleep,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// EnrichAll fills ISBN and Title on every book in place and returns the same
// slice. Per-book failures never abort the run; only ctx cancellation does,
// in which case the books processed so far are already updated. Nil entries
// are left in place without a page visit or a pause.
func (d *DetailsExtractor) EnrichAll(ctx context.Context, books []*types.Book) ([]*types.Book, error) {
	startTime := time.Now()
	d.logger.Infof("Enriching %d books", len(books))

	minDelay, maxDelay := d.config.DelayBounds()
	progress := NewProgress(d.logger, "Enriched books", d.config.ProgressEvery, len(books))

	for i, book := range books {
		if err := ctx.Err(); err != nil {
			return books, err
		}
		if book == nil {
			d.logger.Warnf("Skipping empty entry %d/%d", i+1, len(books))
			continue
		}

		d.logger.Debugf("Processing book %d/%d: %s", i+1, len(books), book.Link)
		ApplyDetails(book, d.adapter.ExtractDetails(book.Link))
		d.metrics.IncEnriched()
		progress.Tick(i + 1)

		if i < len(books)-1 {
			d.sleep(d.randomDelay(minDelay, maxDelay))
		}
	}

	progress.Finish(len(books))
	d.logger.Infof("Enrichment completed in %v", time.Since(startTime).Round(time.Millisecond))
	return books, nil
}

// ApplyDetails copies the ISBN verbatim and sets Title to the original title,
// falling back to the Polish title when the page did not list one.
func ApplyDetails(book *types.Book, details adapters.Details) {
	book.ISBN = details.ISBN
	if details.Found {
		book.Title = details.OriginalTitle
		return
	}
	book.Title = book.PolishTitle
}

func (d *DetailsExtractor) randomDelay(minDelay, maxDelay time.Duration) time.Duration {
	if maxDelay <= minDelay {
		return minDelay
	}
	return minDelay + time.Duration(d.rng.Int63n(int64(maxDelay-minDelay)+1))
}
