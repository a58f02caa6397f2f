package adapters

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"lubimyczytac-exporter/internal/types"
	"lubimyczytac-exporter/utils"
)

const fullCard = `<div class="authorAllBooks__single" id="listBookElement123">
  <div class="authorAllBooks__singleText">
    <a class="authorAllBooks__singleTextTitle" href="/ksiazka/123/wiedzmin">Wiedźmin</a>
    <div class="authorAllBooks__singleTextAuthor"><a href="/autor/1/andrzej-sapkowski">Andrzej Sapkowski</a></div>
    <span class="listLibrary__info--cycles">Cykl: Saga o wiedźminie (tom 1)</span>
    <div class="listLibrary__rating">
      <span class="listLibrary__ratingStarsNumber">7,9</span>
      <span class="listLibrary__ratingAll">12 345 ocen</span>
    </div>
    <div class="listLibrary__rating"><span class="listLibrary__ratingStarsNumber">9</span></div>
    <span class="small grey">Czytelnicy: 500</span>
    <span class="small grey">Opinie: 42</span>
    <div class="authorAllBooks__read-dates">Przeczytał: 2023-01-01</div>
    <div class="authorAllBooks__singleTextShelfRight">
      <a>Przeczytane</a><a>Fantasy</a><a>Zmień półkę</a><a>Fantasy</a><a>Sci-Fi</a><a>Przeczytane</a>
    </div>
  </div>
</div>`

func newTestAdapter(t *testing.T, driver types.Driver) *LubimyczytacAdapter {
	t.Helper()
	config := types.DefaultConfig()
	config.RequestDelay = time.Millisecond
	return NewLubimyczytacAdapter(driver, config, logrus.New(), utils.NewMetrics())
}

func loadCard(t *testing.T, markup string) (*utils.StaticClient, types.Element) {
	t.Helper()
	client := utils.NewStaticClient(context.Background(), types.DefaultConfig(), logrus.New())
	t.Cleanup(func() { client.Close() })

	require.NoError(t, client.SetContent("https://lubimyczytac.pl/profil/1/biblioteczka", "<html><body>"+markup+"</body></html>"))
	card, err := client.FindOne(nil, CardSelector)
	require.NoError(t, err)
	return client, card
}

func TestExtractCard_Structured(t *testing.T) {
	client, card := loadCard(t, fullCard)
	adapter := newTestAdapter(t, client)

	book := adapter.ExtractCard(card)

	assert.Equal(t, &types.Book{
		ID:           "123",
		PolishTitle:  "Wiedźmin",
		Author:       "Andrzej Sapkowski",
		Cycle:        "Saga o wiedźminie (tom 1)",
		AvgRating:    "7,9",
		RatingCount:  "12 345",
		Readers:      "500",
		Opinions:     "42",
		UserRating:   "9",
		Link:         "https://lubimyczytac.pl/ksiazka/123/wiedzmin",
		ReadDate:     "2023-01-01",
		MainShelves:  "Przeczytane",
		OtherShelves: "Fantasy, Sci-Fi",
	}, book)
}

func TestExtractCard_TextFallback(t *testing.T) {
	client, card := loadCard(t, `<div class="authorAllBooks__single" id="listBookElement7">
		<p>Cykl: Foo</p><p>4,5</p><p>Czytelnicy: 10</p><p>Opinie: 2</p><p>Tytuł</p><p>Autor</p>
	</div>`)
	adapter := newTestAdapter(t, client)

	book := adapter.ExtractCard(card)

	assert.Equal(t, "7", book.ID)
	assert.Equal(t, "Foo", book.Cycle)
	assert.Equal(t, "4,5", book.AvgRating)
	assert.Equal(t, "", book.UserRating)
	assert.Equal(t, "10", book.Readers)
	assert.Equal(t, "2", book.Opinions)
	assert.Equal(t, "Tytuł", book.PolishTitle)
	assert.Equal(t, "Autor", book.Author)
	assert.Equal(t, "", book.ISBN)
	assert.Equal(t, "", book.Title)
}

func TestExtractCard_MoreTextFallbacks(t *testing.T) {
	client, card := loadCard(t, `<div class="authorAllBooks__single">
		<p>Teraz czytam</p><p>Fantasy</p><p>Tytuł</p><p>4,5</p><p>8,0</p><p>1 234 ocen</p><p>Przeczytała: 2024-05-06</p>
	</div>`)
	adapter := newTestAdapter(t, client)

	book := adapter.ExtractCard(card)

	assert.Equal(t, "4,5", book.AvgRating)
	assert.Equal(t, "8,0", book.UserRating)
	assert.Equal(t, "1 234", book.RatingCount)
	assert.Equal(t, "2024-05-06", book.ReadDate)
	assert.Equal(t, "Fantasy", book.PolishTitle)
	assert.Equal(t, "Tytuł", book.Author)
	assert.Equal(t, "Teraz czytam", book.MainShelves)
	assert.Equal(t, "", book.OtherShelves, "secondary shelves are never taken from raw text")
}

func TestExtractCard_UnratedBookKeepsUserRatingEmpty(t *testing.T) {
	client, card := loadCard(t, `<div class="authorAllBooks__single">
		<a class="authorAllBooks__singleTextTitle" href="/ksiazka/5/x">Lalka</a>
		<div class="listLibrary__rating">
			<span class="listLibrary__ratingStarsNumber">7,9</span>
			<span class="listLibrary__ratingAll">120 ocen</span>
		</div>
		<p>6,5</p>
	</div>`)
	adapter := newTestAdapter(t, client)

	book := adapter.ExtractCard(card)

	assert.Equal(t, "7,9", book.AvgRating)
	assert.Equal(t, "", book.UserRating, "rating lines are not reused when the card has rating blocks")
}

func TestExtractCard_UserRatingFromSecondBlock(t *testing.T) {
	client, card := loadCard(t, `<div class="authorAllBooks__single">
		<div class="listLibrary__rating"><span class="listLibrary__ratingStarsNumber">7,9</span></div>
		<div class="listLibrary__rating"><span class="listLibrary__ratingStarsNumber">6</span></div>
	</div>`)
	adapter := newTestAdapter(t, client)

	book := adapter.ExtractCard(card)

	assert.Equal(t, "7,9", book.AvgRating)
	assert.Equal(t, "6", book.UserRating)
}

func TestExtractCard_TitleFromLink(t *testing.T) {
	client, card := loadCard(t, `<div class="authorAllBooks__single"><a class="cover" href="/ksiazka/55/foo-bar-baz"></a></div>`)
	adapter := newTestAdapter(t, client)

	book := adapter.ExtractCard(card)

	assert.Equal(t, "foo bar baz", book.PolishTitle)
	assert.Equal(t, "55", book.ID)
	assert.Equal(t, "https://lubimyczytac.pl/ksiazka/55/foo-bar-baz", book.Link)
	assert.Equal(t, "", book.Author)
}

// blankTextDriver renders no visible text, as happens for lazily shown cards
type blankTextDriver struct {
	*utils.StaticClient
}

func (blankTextDriver) ReadText(types.Element) (string, error) { return "", nil }

func TestExtractCard_RawMarkupReread(t *testing.T) {
	client, card := loadCard(t, `<div class="authorAllBooks__single"><span>Lalka</span><span>Bolesław Prus</span><span>Cykl: Brak</span></div>`)
	adapter := newTestAdapter(t, blankTextDriver{client})

	book := adapter.ExtractCard(card)

	assert.Equal(t, "Lalka", book.PolishTitle)
	assert.Equal(t, "Bolesław Prus", book.Author)
	assert.Equal(t, "Brak", book.Cycle)
}

// panickyDriver fails every attribute read
type panickyDriver struct {
	*utils.StaticClient
}

func (panickyDriver) ReadAttribute(types.Element, string) (string, error) { panic("driver crashed") }

func TestExtractCard_FieldFailuresAreIsolated(t *testing.T) {
	client, card := loadCard(t, fullCard)
	adapter := newTestAdapter(t, panickyDriver{client})

	var book *types.Book
	require.NotPanics(t, func() { book = adapter.ExtractCard(card) })

	assert.Equal(t, "", book.Link)
	assert.Equal(t, "", book.ID)
	assert.Equal(t, "Wiedźmin", book.PolishTitle)
	assert.Equal(t, "Andrzej Sapkowski", book.Author)
	assert.Equal(t, "500", book.Readers)
	assert.Equal(t, "Przeczytane", book.MainShelves)
}

func TestExtractCard_ShelfNoiseIsConfigurable(t *testing.T) {
	client, card := loadCard(t, fullCard)
	adapter := newTestAdapter(t, client)
	adapter.Config().ShelfNoise = []string{"fantasy"}

	book := adapter.ExtractCard(card)

	assert.Equal(t, "Zmień półkę, Sci-Fi", book.OtherShelves)
}

func TestExtractCard_UserTagsResemblingNoiseAreKept(t *testing.T) {
	client, card := loadCard(t, `<div class="authorAllBooks__single">
		<div class="authorAllBooks__singleTextShelfRight">
			<a>Przeczytane</a><a>Zakupione</a><a>Skupienie</a><a>Kupione 2023</a>
			<a>Kup</a><a>Kup teraz</a><a>Na półkach: 3</a><a>Zmień półkę</a>
		</div>
	</div>`)
	adapter := newTestAdapter(t, client)

	book := adapter.ExtractCard(card)

	assert.Equal(t, "Przeczytane", book.MainShelves)
	assert.Equal(t, "Zakupione, Skupienie, Kupione 2023", book.OtherShelves)
}

func TestIsShelfNoise(t *testing.T) {
	adapter := newTestAdapter(t, nil)

	tests := []struct {
		name  string
		noise bool
	}{
		{"Kup", true},
		{" kup ", true},
		{"Kup teraz", true},
		{"Zmień półkę", true},
		{"Na półkach: 2", true},
		{"Kupione", false},
		{"Zakupione", false},
		{"Fantastyka", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.noise, adapter.isShelfNoise(tt.name), tt.name)
	}
}

// slowPagerDriver times out looking up the pagination control
type slowPagerDriver struct {
	*utils.StaticClient
}

func (d slowPagerDriver) FindOne(scope types.Element, selector string) (types.Element, error) {
	if selector == NextPageSelector {
		return nil, fmt.Errorf("query %s: %w", selector, types.ErrTimeout)
	}
	return d.StaticClient.FindOne(scope, selector)
}

// brokenPagerDriver fails the pagination lookup for a reason other than absence
type brokenPagerDriver struct {
	*utils.StaticClient
}

func (brokenPagerDriver) FindOne(types.Element, string) (types.Element, error) {
	return nil, errors.New("target closed")
}

func TestNextPage_LookupErrors(t *testing.T) {
	client := utils.NewStaticClient(context.Background(), types.DefaultConfig(), logrus.New())
	defer client.Close()
	require.NoError(t, client.SetContent("https://lubimyczytac.pl/", `<ul><li class="next-page"><a href="?page=2">»</a></li></ul>`))

	next, err := newTestAdapter(t, slowPagerDriver{client}).NextPage()
	assert.ErrorIs(t, err, ErrLastPage)
	assert.Nil(t, next)

	_, err = newTestAdapter(t, brokenPagerDriver{client}).NextPage()
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrLastPage)
}

func TestNextPage(t *testing.T) {
	tests := []struct {
		name   string
		markup string
		last   bool
	}{
		{"enabled", `<li class="page-item next-page"><a href="?page=2">»</a></li>`, false},
		{"disabled class", `<li class="page-item next-page disabled"><a href="#">»</a></li>`, true},
		{"aria disabled", `<li class="next-page" aria-disabled="true"><a href="#">»</a></li>`, true},
		{"absent", `<li class="page-item">1</li>`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := utils.NewStaticClient(context.Background(), types.DefaultConfig(), logrus.New())
			defer client.Close()
			require.NoError(t, client.SetContent("https://lubimyczytac.pl/", "<ul>"+tt.markup+"</ul>"))

			next, err := newTestAdapter(t, client).NextPage()
			if tt.last {
				assert.ErrorIs(t, err, ErrLastPage)
				assert.Nil(t, next)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, next)
			}
		})
	}
}

func TestMatchOriginalTitle(t *testing.T) {
	title, ok := MatchOriginalTitle(`<dl><dt>Data wydania:</dt><dd>2014</dd>
		<dt>Tytuł oryginału:</dt>
		<dd> The Last <em>Wish</em> </dd></dl>`)
	assert.True(t, ok)
	assert.Equal(t, "The Last Wish", title)

	assert.Equal(t, "TytuĹ‚ oryginaĹ‚u:", utils.MisDecoded(originalTitleLabel))
	title, ok = MatchOriginalTitle(`<dt>TytuĹ‚ oryginaĹ‚u:</dt><dd>Ostatnie życzenie</dd>`)
	assert.True(t, ok)
	assert.Equal(t, "Ostatnie życzenie", title)

	_, ok = MatchOriginalTitle(`<dt>Data wydania:</dt><dd>2014</dd>`)
	assert.False(t, ok)
}

func TestExtractDetails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ksiazka/1/full":
			w.Write([]byte(`<html><head><meta property="books:isbn" content=" 9788375780635 "></head>
				<body><section id="book-details"><dt>Tytuł oryginału:</dt><dd>Ostatnie życzenie</dd></section></body></html>`))
		case "/ksiazka/2/bare":
			w.Write([]byte(`<html><head></head><body><p>nothing here</p></body></html>`))
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer server.Close()

	config := types.DefaultConfig()
	config.RequestDelay = time.Millisecond
	client := utils.NewStaticClient(context.Background(), config, logrus.New())
	defer client.Close()
	adapter := NewLubimyczytacAdapter(client, config, logrus.New(), nil)

	assert.Equal(t, Details{ISBN: "9788375780635", OriginalTitle: "Ostatnie życzenie", Found: true},
		adapter.ExtractDetails(server.URL+"/ksiazka/1/full"))
	assert.Equal(t, Details{}, adapter.ExtractDetails(server.URL+"/ksiazka/2/bare"))
	assert.Equal(t, Details{}, adapter.ExtractDetails(server.URL+"/broken"))
	assert.Equal(t, Details{}, adapter.ExtractDetails(""))
	assert.Equal(t, Details{}, adapter.ExtractDetails("/ksiazka/3/relative"))
}

func TestTitleFromLink(t *testing.T) {
	assert.Equal(t, "foo bar baz", TitleFromLink("https://example.com/x/foo-bar-baz"))
	assert.Equal(t, "foo bar baz", TitleFromLink("https://example.com/x/foo-bar-baz/?ref=1"))
	assert.Equal(t, "ostatnie zyczenie", TitleFromLink("/ksiazka/1/ostatnie-zyczenie"))
	assert.Equal(t, "", TitleFromLink(""))
}

func TestBookIDFromLink(t *testing.T) {
	assert.Equal(t, "4867744", BookIDFromLink("https://lubimyczytac.pl/ksiazka/4867744/wiedzmin"))
	assert.Equal(t, "", BookIDFromLink("https://lubimyczytac.pl/autor/1/x"))
}

func TestIsAbsoluteURL(t *testing.T) {
	assert.True(t, IsAbsoluteURL("https://lubimyczytac.pl/ksiazka/1/x"))
	assert.True(t, IsAbsoluteURL("http://example.com"))
	assert.False(t, IsAbsoluteURL("/ksiazka/1/x"))
	assert.False(t, IsAbsoluteURL("ftp://example.com/file"))
	assert.False(t, IsAbsoluteURL(""))
}

func TestLibraryURL(t *testing.T) {
	assert.Equal(t,
		"https://lubimyczytac.pl/profil/605200/jan/biblioteczka/lista?"+libraryListQuery+"&objectId=605200",
		LibraryURL("https://lubimyczytac.pl/profil/605200/jan/"))

	list := "https://lubimyczytac.pl/profil/1/x/biblioteczka/lista?page=3"
	assert.Equal(t, list, LibraryURL(list))
	assert.Equal(t, "", LibraryURL("  "))
}
