package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"lubimyczytac-exporter/internal/types"
	"lubimyczytac-exporter/table"
	"lubimyczytac-exporter/utils"
)

func siteServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/profil/1/jan/biblioteczka/lista", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body>
<div class="authorAllBooks__single" id="listBookElement10">
  <a class="authorAllBooks__singleTextTitle" href="/ksiazka/10/solaris">Solaris</a>
  <div class="authorAllBooks__singleTextAuthor"><a>Stanisław Lem</a></div>
  <div class="authorAllBooks__singleTextShelfRight"><a>Przeczytane</a><a>Klasyka</a></div>
</div>
</body></html>`)
	})
	mux.HandleFunc("/ksiazka/10/solaris", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><head><meta property="books:isbn" content="978-83-08"></head><body>
<section id="book-details"><dt>Tytuł oryginału:</dt><dd>Solaris</dd></section></body></html>`)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func testConfig(server *httptest.Server) *types.Config {
	config := types.DefaultConfig()
	config.BaseURL = server.URL
	config.RequestDelay = time.Millisecond
	config.UseHeadlessBrowser = false
	config.MinDelay = 0
	config.MaxDelay = 0
	config.PageSettle = 0
	config.CookieTimeout = 0
	return config
}

func TestScrapeEnrichConvert(t *testing.T) {
	server := siteServer(t)
	config := testConfig(server)
	logger, _ := test.NewNullLogger()
	metrics := utils.NewMetrics()
	dir := t.TempDir()

	driver := utils.NewStaticClient(context.Background(), config, logger)
	defer driver.Close()

	booksPath := filepath.Join(dir, "books.csv")
	books, err := scrapeLibrary(context.Background(), driver, config, logger, metrics, server.URL+"/profil/1/jan", booksPath)
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.Equal(t, "Solaris", books[0].PolishTitle)
	assert.Equal(t, "Klasyka", books[0].OtherShelves)

	enrichedPath := filepath.Join(dir, "enriched.csv")
	require.NoError(t, enrichBooks(context.Background(), driver, config, logger, metrics, books, enrichedPath))

	loaded, err := table.Load(enrichedPath)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "978-83-08", loaded[0].ISBN)
	assert.Equal(t, "Solaris", loaded[0].Title)

	goodreadsPath := filepath.Join(dir, "goodreads.csv")
	require.NoError(t, table.ConvertToGoodreads(enrichedPath, goodreadsPath))
}

func TestScrapeLibrary_NavigationFailure(t *testing.T) {
	server := siteServer(t)
	config := testConfig(server)
	logger, _ := test.NewNullLogger()
	driver := utils.NewStaticClient(context.Background(), config, logger)
	defer driver.Close()

	output := filepath.Join(t.TempDir(), "books.csv")
	_, err := scrapeLibrary(context.Background(), driver, config, logger, nil, server.URL+"/profil/2/nikt", output)
	require.Error(t, err)
	assert.NoFileExists(t, output)
}

func TestInspectPage(t *testing.T) {
	server := siteServer(t)
	config := testConfig(server)
	logger, _ := test.NewNullLogger()
	driver := utils.NewStaticClient(context.Background(), config, logger)
	defer driver.Close()

	var out bytes.Buffer
	require.NoError(t, inspectPage(&out, driver, config, logger, server.URL+"/profil/1/jan/biblioteczka/lista", 0))

	assert.Contains(t, out.String(), "Cards found: 1")
	assert.Contains(t, out.String(), `id="listBookElement10"`)
	assert.Contains(t, out.String(), "Autor = Stanisław Lem")
	assert.Contains(t, out.String(), "Next page: none")
}

func TestProfileArg(t *testing.T) {
	t.Setenv("LC_PROFILE_URL", "")
	_, err := profileArg(nil)
	assert.ErrorIs(t, err, errNoProfile)

	t.Setenv("LC_PROFILE_URL", "https://lubimyczytac.pl/profil/1/env")
	got, err := profileArg(nil)
	require.NoError(t, err)
	assert.Equal(t, "https://lubimyczytac.pl/profil/1/env", got)

	got, err = profileArg([]string{"https://lubimyczytac.pl/profil/2/arg"})
	require.NoError(t, err)
	assert.Equal(t, "https://lubimyczytac.pl/profil/2/arg", got)
}

func TestBuildConfig_FlagsOverrideEnv(t *testing.T) {
	t.Setenv("LC_HEADLESS", "false")

	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().BoolVar(&httpOnly, "http-only", false, "")
	cmd.Flags().BoolVar(&showBrowser, "show-browser", false, "")
	cmd.Flags().IntVar(&maxPages, "max-pages", 0, "")
	require.NoError(t, cmd.Flags().Parse([]string{"--http-only", "--max-pages=3"}))

	config, err := buildConfig(cmd)
	require.NoError(t, err)
	assert.False(t, config.UseHeadlessBrowser)
	assert.True(t, config.ShowBrowser, "unset flag keeps the environment value")
	assert.Equal(t, 3, config.MaxPages)
}

func TestShortLine(t *testing.T) {
	assert.Equal(t, "abc", shortLine("  abc ", 5))
	assert.Equal(t, "ąbc…", shortLine("ąbcdef", 3))
}

// sessionCounter records how many driver sessions were opened and closed
type sessionCounter struct {
	opened, closed int
}

type countedDriver struct {
	types.Driver
	counter *sessionCounter
}

func (d countedDriver) Close() error {
	d.counter.closed++
	return d.Driver.Close()
}

func testApp(t *testing.T, config *types.Config, counter *sessionCounter) *app {
	t.Helper()
	logger, _ := test.NewNullLogger()
	return &app{
		config:  config,
		logger:  logger,
		metrics: utils.NewMetrics(),
		newDriver: func(ctx context.Context, config *types.Config, logger types.Logger) (types.Driver, error) {
			counter.opened++
			return countedDriver{utils.NewStaticClient(ctx, config, logger), counter}, nil
		},
	}
}

func TestRunAll_PhasesUseOwnSessions(t *testing.T) {
	server := siteServer(t)
	counter := &sessionCounter{}
	a := testApp(t, testConfig(server), counter)
	dir := t.TempDir()
	booksPath := filepath.Join(dir, "books.csv")
	enrichedPath := filepath.Join(dir, "enriched.csv")
	goodreadsPath := filepath.Join(dir, "goodreads.csv")

	require.NoError(t, a.runAll(context.Background(), server.URL+"/profil/1/jan", booksPath, enrichedPath, goodreadsPath))

	assert.Equal(t, 2, counter.opened, "scrape and enrich each open a session")
	assert.Equal(t, 2, counter.closed)

	scraped, err := table.Load(booksPath)
	require.NoError(t, err)
	require.Len(t, scraped, 1)
	assert.Equal(t, "", scraped[0].ISBN)

	enriched, err := table.Load(enrichedPath)
	require.NoError(t, err)
	require.Len(t, enriched, 1)
	assert.Equal(t, "978-83-08", enriched[0].ISBN)
	assert.FileExists(t, goodreadsPath)
}

func TestEnrichPhase_ReadsPersistedTable(t *testing.T) {
	server := siteServer(t)
	counter := &sessionCounter{}
	a := testApp(t, testConfig(server), counter)
	dir := t.TempDir()
	input := filepath.Join(dir, "books.csv")
	output := filepath.Join(dir, "enriched.csv")

	require.NoError(t, table.Save([]*types.Book{
		{ID: "10", PolishTitle: "Solaris (wyd. II)", Link: server.URL + "/ksiazka/10/solaris"},
		{ID: "11", PolishTitle: "Bez strony"},
	}, input))

	require.NoError(t, a.enrichPhase(context.Background(), input, output))

	enriched, err := table.Load(output)
	require.NoError(t, err)
	require.Len(t, enriched, 2)
	assert.Equal(t, "Solaris (wyd. II)", enriched[0].PolishTitle)
	assert.Equal(t, "978-83-08", enriched[0].ISBN)
	assert.Equal(t, "Solaris", enriched[0].Title)
	assert.Equal(t, "Bez strony", enriched[1].Title)
	assert.Equal(t, 1, counter.opened)
	assert.Equal(t, 1, counter.closed)
}

func TestEnrichPhase_MissingInputOpensNoSession(t *testing.T) {
	server := siteServer(t)
	counter := &sessionCounter{}
	a := testApp(t, testConfig(server), counter)

	err := a.enrichPhase(context.Background(), filepath.Join(t.TempDir(), "nope.csv"), filepath.Join(t.TempDir(), "out.csv"))
	assert.Error(t, err)
	assert.Equal(t, 0, counter.opened)
}
