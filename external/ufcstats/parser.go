package ufcstats

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/dagwatch/dagwatch/internal/usecase"
)

var methodRegex = regexp.MustCompile(`(?i)^(KO|TKO|SUB|DEC|UD|SD|MD|NC|DQ)`)

// parseEventList extracts the event rows from the completed-events table.
// The first table row is the header and rows are already newest first.
func parseEventList(doc *goquery.Document, limit, offset int) []usecase.ArchiveEvent {
	events := make([]usecase.ArchiveEvent, 0, limit)

	doc.Find("tr.b-statistics__table-row").EachWithBreak(func(i int, row *goquery.Selection) bool {
		if i == 0 {
			return true
		}
		rowIndex := i - 1
		if rowIndex < offset {
			return true
		}
		if rowIndex >= offset+limit {
			return false
		}

		link := row.Find("a.b-link").First()
		pageURL, _ := link.Attr("href")
		name := strings.TrimSpace(link.Text())
		date := strings.TrimSpace(row.Find("span.b-statistics__date").Text())
		if pageURL == "" || name == "" || date == "" {
			return true
		}

		events = append(events, usecase.ArchiveEvent{
			ID:   eventIDFromURL(pageURL),
			Name: name,
			Date: date,
			URL:  pageURL,
		})
		return true
	})

	return events
}

// parseFightRows extracts fight outcomes from an event page. Each result row
// carries three links: the win flag, then the two fighters in winner-first
// order when the flag reads "win".
func parseFightRows(doc *goquery.Document, event usecase.ArchiveEvent) []usecase.ArchiveFight {
	fights := make([]usecase.ArchiveFight, 0, 13)

	doc.Find("tbody tr.b-fight-details__table-row").Each(func(_ int, row *goquery.Selection) {
		links := row.Find("a")
		if links.Length() < 3 {
			return
		}

		winFlag := strings.ToLower(strings.TrimSpace(links.Eq(0).Text()))
		fighterA := strings.TrimSpace(links.Eq(1).Text())
		fighterB := strings.TrimSpace(links.Eq(2).Text())
		if fighterA == "" || fighterB == "" {
			return
		}

		winner := fighterB
		if winFlag == "win" {
			winner = fighterA
		}

		method := "Unknown"
		row.Find("p.b-fight-details__table-text").Each(func(_ int, cell *goquery.Selection) {
			text := strings.TrimSpace(cell.Text())
			if methodRegex.MatchString(text) {
				method = text
			}
		})

		fights = append(fights, usecase.ArchiveFight{
			EventID:   event.ID,
			EventName: event.Name,
			EventDate: event.Date,
			FighterA:  fighterA,
			FighterB:  fighterB,
			Winner:    winner,
			Method:    method,
		})
	})

	return fights
}

func eventIDFromURL(pageURL string) string {
	trimmed := strings.TrimRight(strings.TrimSpace(pageURL), "/")
	if idx := strings.LastIndex(trimmed, "/"); idx >= 0 {
		return trimmed[idx+1:]
	}
	return trimmed
}
