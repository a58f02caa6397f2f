package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"lubimyczytac-exporter/adapters"
	"lubimyczytac-exporter/extractor"
	"lubimyczytac-exporter/internal/types"
	"lubimyczytac-exporter/table"
	"lubimyczytac-exporter/utils"
)

var errNoProfile = errors.New("profile URL is required (argument or LC_PROFILE_URL)")

// profileArg takes the profile URL from the arguments or LC_PROFILE_URL
func profileArg(args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	if value, ok := types.EnvString("LC_PROFILE_URL"); ok {
		return value, nil
	}
	return "", errNoProfile
}

func newScrapeCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "scrape [profile-url]",
		Short: "Scrape the library list into a CSV file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			profile, err := profileArg(args)
			if err != nil {
				return err
			}
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			ctx, stop := signalContext()
			defer stop()

			return a.scrapePhase(ctx, profile, output)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", defaultBooksPath, "Output CSV path")
	return cmd
}

func newEnrichCmd() *cobra.Command {
	var input, output string
	cmd := &cobra.Command{
		Use:   "enrich",
		Short: "Add ISBN and original title to a scraped CSV file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			ctx, stop := signalContext()
			defer stop()

			return a.enrichPhase(ctx, input, output)
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", defaultBooksPath, "Scraped CSV path")
	cmd.Flags().StringVarP(&output, "output", "o", defaultEnrichedPath, "Enriched CSV path")
	return cmd
}

func newConvertCmd() *cobra.Command {
	var input, output string
	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Convert an enriched CSV file to the Goodreads import format",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			if err := table.ConvertToGoodreads(input, output); err != nil {
				return err
			}
			logger.Infof("Goodreads file written to: %s", output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", defaultEnrichedPath, "Enriched CSV path")
	cmd.Flags().StringVarP(&output, "output", "o", defaultGoodreadsPath, "Goodreads CSV path")
	return cmd
}

func newRunCmd() *cobra.Command {
	var booksPath, enrichedPath, goodreadsPath string
	cmd := &cobra.Command{
		Use:   "run [profile-url]",
		Short: "Scrape, enrich and convert in one go",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			profile, err := profileArg(args)
			if err != nil {
				return err
			}
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			ctx, stop := signalContext()
			defer stop()

			return a.runAll(ctx, profile, booksPath, enrichedPath, goodreadsPath)
		},
	}
	cmd.Flags().StringVar(&booksPath, "books", defaultBooksPath, "Scraped CSV path")
	cmd.Flags().StringVar(&enrichedPath, "enriched", defaultEnrichedPath, "Enriched CSV path")
	cmd.Flags().StringVar(&goodreadsPath, "goodreads", defaultGoodreadsPath, "Goodreads CSV path")
	return cmd
}

// runAll chains the three phases through the files they persist. Each
// browsing phase opens and closes its own driver session.
func (a *app) runAll(ctx context.Context, profile, booksPath, enrichedPath, goodreadsPath string) error {
	startTime := time.Now()

	// Step 1: Scrape the library list
	if err := a.scrapePhase(ctx, profile, booksPath); err != nil {
		return err
	}

	// Step 2: Visit every book page
	if err := a.enrichPhase(ctx, booksPath, enrichedPath); err != nil {
		return err
	}

	// Step 3: Goodreads export
	if err := table.ConvertToGoodreads(enrichedPath, goodreadsPath); err != nil {
		return err
	}
	a.logger.Infof("Goodreads file written to: %s", goodreadsPath)
	a.logger.Infof("All phases completed in %v", time.Since(startTime).Round(time.Second))
	return nil
}

// scrapePhase scrapes the library of profile into output
func (a *app) scrapePhase(ctx context.Context, profile, output string) error {
	driver, err := a.openDriver(ctx)
	if err != nil {
		return err
	}
	defer driver.Close()

	_, err = scrapeLibrary(ctx, driver, a.config, a.logger, a.metrics, profile, output)
	return err
}

// enrichPhase loads the scraped table at input and writes the enriched one
func (a *app) enrichPhase(ctx context.Context, input, output string) error {
	books, err := table.Load(input)
	if err != nil {
		return err
	}
	a.logger.Infof("Loaded %d books from %s", len(books), input)

	driver, err := a.openDriver(ctx)
	if err != nil {
		return err
	}
	defer driver.Close()

	return enrichBooks(ctx, driver, a.config, a.logger, a.metrics, books, output)
}

// scrapeLibrary runs the list scraper and saves what it collected, including
// a partial result when pagination failed midway.
func scrapeLibrary(ctx context.Context, driver types.Driver, config *types.Config, logger types.Logger, metrics *utils.Metrics, profile, output string) ([]*types.Book, error) {
	libraryURL := adapters.LibraryURL(profile)

	books, scrapeErr := extractor.NewLibraryExtractor(driver, config, logger, metrics).ExtractAll(ctx, libraryURL)
	if scrapeErr != nil && len(books) == 0 {
		return nil, scrapeErr
	}
	if scrapeErr != nil {
		logger.Warnf("Scraping stopped early, saving %d books: %v", len(books), scrapeErr)
	}

	if err := table.Save(books, output); err != nil {
		return books, err
	}
	logger.Infof("Saved %d books to: %s", len(books), output)
	return books, scrapeErr
}

// enrichBooks runs the detail enricher and saves the result. An interrupted
// run still saves every book, enriched or not.
func enrichBooks(ctx context.Context, driver types.Driver, config *types.Config, logger types.Logger, metrics *utils.Metrics, books []*types.Book, output string) error {
	books, enrichErr := extractor.NewDetailsExtractor(driver, config, logger, metrics).EnrichAll(ctx, books)
	if enrichErr != nil {
		logger.Warnf("Enrichment interrupted: %v", enrichErr)
	}

	if err := table.Save(books, output); err != nil {
		return fmt.Errorf("failed to save enriched books: %w", err)
	}
	logger.Infof("Saved %d enriched books to: %s", len(books), output)
	return enrichErr
}
