package adapters

import (
	"net/url"
	"regexp"
	"strings"
)

type lineKind int

const (
	lineContent lineKind = iota
	lineCycle
	lineRatingCount
	lineReaders
	lineOpinions
	lineReadDate
	lineRating
	lineShelf
)

const (
	cyclePrefix    = "cykl:"
	readersPrefix  = "czytelnicy:"
	opinionsPrefix = "opinie:"
	readDatePrefix = "przeczyta"
)

var (
	ratingPattern      = regexp.MustCompile(`^\d+[,.]\d+$`)
	ratingCountPattern = regexp.MustCompile(`\d\s*ocen`)
	ratingUnitPattern  = regexp.MustCompile(`(?i)\s*ocen\p{L}*`)
	bookIDPattern      = regexp.MustCompile(`/ksiazka/(\d+)`)
)

// classifyLine sorts one flattened card line into a metadata kind or content
func (a *LubimyczytacAdapter) classifyLine(line string) lineKind {
	lower := strings.ToLower(line)
	switch {
	case strings.HasPrefix(lower, cyclePrefix):
		return lineCycle
	case strings.HasPrefix(lower, readersPrefix):
		return lineReaders
	case strings.HasPrefix(lower, opinionsPrefix):
		return lineOpinions
	case strings.HasPrefix(lower, readDatePrefix) && strings.Contains(line, ":"):
		return lineReadDate
	case ratingPattern.MatchString(line):
		return lineRating
	case ratingCountPattern.MatchString(lower):
		return lineRatingCount
	case a.config.IsPrimaryShelf(line):
		return lineShelf
	}
	return lineContent
}

// lineValue strips the label of a classified metadata line
func lineValue(kind lineKind, line string) string {
	switch kind {
	case lineCycle:
		return trimPrefixFold(line, cyclePrefix)
	case lineReaders:
		return trimPrefixFold(line, readersPrefix)
	case lineOpinions:
		return trimPrefixFold(line, opinionsPrefix)
	case lineReadDate:
		return afterColon(line)
	case lineRatingCount:
		return stripRatingUnit(line)
	}
	return strings.TrimSpace(line)
}

func trimPrefixFold(s, prefix string) string {
	s = strings.TrimSpace(s)
	if len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix) {
		s = s[len(prefix):]
	}
	return strings.TrimSpace(s)
}

func afterColon(s string) string {
	if i := strings.Index(s, ":"); i >= 0 {
		return strings.TrimSpace(s[i+1:])
	}
	return strings.TrimSpace(s)
}

func stripRatingUnit(s string) string {
	return strings.TrimSpace(ratingUnitPattern.ReplaceAllString(s, ""))
}

// TitleFromLink guesses a readable title from the last path segment of a
// book link, turning hyphens into spaces.
func TitleFromLink(link string) string {
	path := strings.TrimSpace(link)
	if u, err := url.Parse(path); err == nil {
		path = u.Path
	}
	path = strings.TrimRight(path, "/")
	segment := path[strings.LastIndex(path, "/")+1:]
	if unescaped, err := url.PathUnescape(segment); err == nil {
		segment = unescaped
	}
	return strings.Join(strings.Fields(strings.ReplaceAll(segment, "-", " ")), " ")
}

// BookIDFromLink returns the numeric id in a /ksiazka/<id>/ link
func BookIDFromLink(link string) string {
	if m := bookIDPattern.FindStringSubmatch(link); m != nil {
		return m[1]
	}
	return ""
}
