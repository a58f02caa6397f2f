package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"lubimyczytac-exporter/adapters"
	"lubimyczytac-exporter/internal/types"
	"lubimyczytac-exporter/utils"
)

func newInspectCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "inspect [library-or-profile-url]",
		Short: "Print the cards of one library page and what is extracted from them",
		Long: `inspect opens a single library page and dumps every card: its raw text
lines and the fields extracted from it. Use it to check the selectors after
the site layout changes.`,
		Args: cobra.MaximumNArgs(1),
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

			driver, err := a.openDriver(ctx)
			if err != nil {
				return err
			}
			defer driver.Close()

			return inspectPage(cmd.OutOrStdout(), driver, a.config, a.logger, adapters.LibraryURL(profile), limit)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 5, "Max cards to print (0 for all)")
	return cmd
}

func inspectPage(w io.Writer, driver types.Driver, config *types.Config, logger types.Logger, pageURL string, limit int) error {
	adapter := adapters.NewLubimyczytacAdapter(driver, config, logger, nil)

	if err := driver.Navigate(pageURL); err != nil {
		return fmt.Errorf("failed to load %s: %w", pageURL, err)
	}
	if err := adapter.WaitForCards(); err != nil {
		fmt.Fprintf(w, "No cards matching %q: %v\n", adapters.CardSelector, err)
		return nil
	}

	cards, err := adapter.Cards()
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Cards found: %d\n", len(cards))

	for i, card := range cards {
		if limit > 0 && i >= limit {
			break
		}
		id, _ := driver.ReadAttribute(card, "id")
		fmt.Fprintf(w, "\n=== Card %d (id=%q) ===\n", i+1, id)

		text, err := driver.ReadText(card)
		if err != nil {
			fmt.Fprintf(w, "  text unreadable: %v\n", err)
		}
		for j, line := range utils.SplitLines(text) {
			fmt.Fprintf(w, "  line %2d: %s\n", j+1, shortLine(line, 120))
		}

		book := adapter.ExtractCard(card)
		row := book.ToRow()
		fmt.Fprintln(w, "  extracted:")
		for j, header := range types.CSVHeaders {
			if row[j] != "" {
				fmt.Fprintf(w, "    %s = %s\n", header, row[j])
			}
		}
	}

	if _, err := adapter.NextPage(); err != nil {
		fmt.Fprintf(w, "\nNext page: none (%v)\n", err)
	} else {
		fmt.Fprintln(w, "\nNext page: available")
	}
	return nil
}

// shortLine trims long lines for terminal output
func shortLine(s string, max int) string {
	s = strings.TrimSpace(s)
	if len([]rune(s)) <= max {
		return s
	}
	return string([]rune(s)[:max]) + "…"
}
