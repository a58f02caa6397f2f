package types

import "strings"

// CSVHeaders is the header row of the persisted library table. Column order
// is the file format and must not change.
var CSVHeaders = []string{
	"ID",
	"Polski Tytuł",
	"Autor",
	"ISBN",
	"Cykl",
	"Średnia ocena",
	"Liczba ocen",
	"Czytelnicy",
	"Opinie",
	"Ocena użytkownika",
	"Link",
	"Data przeczytania",
	"Na półkach Główne",
	"Na półkach Pozostałe",
	"Tytuł",
}

// ShelfSeparator joins shelf names inside a single cell
const ShelfSeparator = ", "

// Book is one entry of a reader's library. Every field is a plain string and
// an unparsable value is stored as "".
type Book struct {
	ID           string `json:"id"`
	PolishTitle  string `json:"polish_title"`
	Author       string `json:"author"`
	ISBN         string `json:"isbn"`
	Cycle        string `json:"cycle"`
	AvgRating    string `json:"avg_rating"`
	RatingCount  string `json:"rating_count"`
	Readers      string `json:"readers"`
	Opinions     string `json:"opinions"`
	UserRating   string `json:"user_rating"`
	Link         string `json:"link"`
	ReadDate     string `json:"read_date"`
	MainShelves  string `json:"main_shelves"`
	OtherShelves string `json:"other_shelves"`
	Title        string `json:"title"`
}

// ToRow returns the book as a row in CSVHeaders order
func (b *Book) ToRow() []string {
	return []string{
		b.ID,
		b.PolishTitle,
		b.Author,
		b.ISBN,
		b.Cycle,
		b.AvgRating,
		b.RatingCount,
		b.Readers,
		b.Opinions,
		b.UserRating,
		b.Link,
		b.ReadDate,
		b.MainShelves,
		b.OtherShelves,
		b.Title,
	}
}

// FromRow builds a book from a row of any length. Short rows are padded with
// empty strings and long rows are truncated; contents are not validated.
func FromRow(row []string) *Book {
	padded := make([]string, len(CSVHeaders))
	copy(padded, row)

	return &Book{
		ID:           padded[0],
		PolishTitle:  padded[1],
		Author:       padded[2],
		ISBN:         padded[3],
		Cycle:        padded[4],
		AvgRating:    padded[5],
		RatingCount:  padded[6],
		Readers:      padded[7],
		Opinions:     padded[8],
		UserRating:   padded[9],
		Link:         padded[10],
		ReadDate:     padded[11],
		MainShelves:  padded[12],
		OtherShelves: padded[13],
		Title:        padded[14],
	}
}

// JoinShelves joins shelf names into a single cell value
func JoinShelves(shelves []string) string {
	return strings.Join(shelves, ShelfSeparator)
}

// SplitShelves splits a cell value produced by JoinShelves. Semicolons are
// accepted as separators as well.
func SplitShelves(cell string) []string {
	var shelves []string
	for _, part := range strings.FieldsFunc(cell, func(r rune) bool { return r == ',' || r == ';' }) {
		if part = strings.TrimSpace(part); part != "" {
			shelves = append(shelves, part)
		}
	}
	return shelves
}
