package adapters

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"lubimyczytac-exporter/internal/types"
)

// ErrLastPage is returned by NextPage when pagination has ended
var ErrLastPage = errors.New("no further pages")

// DismissCookies clicks the cookie consent button when one shows up. It is
// best effort: every failure is logged and ignored.
func (a *LubimyczytacAdapter) DismissCookies(settle time.Duration, sleep func(time.Duration)) {
	if _, err := a.driver.WaitUntilPresent("button", a.config.CookieTimeout); err != nil {
		a.logger.Info("Cookie consent button not found")
		return
	}

	for _, selector := range cookieButtonSelectors {
		buttons, err := a.driver.FindAll(nil, selector)
		if err != nil {
			continue
		}
		for _, button := range buttons {
			if selector == "button" {
				text, err := a.driver.ReadText(button)
				if err != nil || !strings.Contains(text, cookieButtonText) {
					continue
				}
			}
			sleep(settle)
			if err := a.driver.Click(button); err != nil {
				a.logger.Warnf("Failed to accept cookies: %v", err)
				return
			}
			a.logger.Info("Cookie consent accepted")
			return
		}
	}
	a.logger.Info("Cookie consent button not found")
}

// WaitForCards waits for at least one library card on the current page
func (a *LubimyczytacAdapter) WaitForCards() error {
	_, err := a.driver.WaitUntilPresent(CardSelector, a.config.WaitTimeout)
	return err
}

// Cards returns the library cards of the current page in DOM order
func (a *LubimyczytacAdapter) Cards() ([]types.Element, error) {
	return a.driver.FindAll(nil, CardSelector)
}

// NextPage returns the pagination control when another page exists, or
// ErrLastPage when the control is absent or disabled.
func (a *LubimyczytacAdapter) NextPage() (types.Element, error) {
	next, err := a.driver.FindOne(nil, NextPageSelector)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return nil, ErrLastPage
		}
		if errors.Is(err, types.ErrTimeout) {
			a.logger.Warnf("Next page control lookup timed out, treating as last page: %v", err)
			a.metrics.IncRecovery("timeout")
			return nil, ErrLastPage
		}
		return nil, fmt.Errorf("find next page control: %w", err)
	}

	class, _ := a.driver.ReadAttribute(next, "class")
	if strings.Contains(class, "disabled") {
		return nil, ErrLastPage
	}
	if disabled, _ := a.driver.ReadAttribute(next, "aria-disabled"); disabled == "true" {
		return nil, ErrLastPage
	}
	return next, nil
}

const libraryListQuery = "page=1&listId=booksFilteredList&findString=&kolejnosc=data-dodania&listType=list&own=0&paginatorType=Standard"

var profileIDPattern = regexp.MustCompile(`/profil/(\d+)`)

// LibraryURL turns a profile URL into the URL of its paginated library list.
// URLs already pointing at a library list are returned unchanged.
func LibraryURL(profileURL string) string {
	profileURL = strings.TrimSpace(profileURL)
	if profileURL == "" || strings.Contains(profileURL, "/biblioteczka") {
		return profileURL
	}
	listURL := strings.TrimRight(profileURL, "/") + "/biblioteczka/lista?" + libraryListQuery
	if m := profileIDPattern.FindStringSubmatch(profileURL); m != nil {
		listURL += "&objectId=" + m[1]
	}
	return listURL
}
