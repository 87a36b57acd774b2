package ufcstats

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dagwatch/dagwatch/internal/usecase"
)

const eventListHTML = `
<table class="b-statistics__table-events">
  <tr class="b-statistics__table-row">
    <th>Name/date</th><th>Location</th>
  </tr>
  <tr class="b-statistics__table-row">
    <td>
      <a class="b-link" href="http://ufcstats.com/event-details/aaa111">UFC 311: Makhachev vs. Moicano</a>
      <span class="b-statistics__date">January 18, 2025</span>
    </td>
  </tr>
  <tr class="b-statistics__table-row">
    <td>
      <a class="b-link" href="http://ufcstats.com/event-details/bbb222">UFC 310: Pantoja vs. Asakura</a>
      <span class="b-statistics__date">December 07, 2024</span>
    </td>
  </tr>
  <tr class="b-statistics__table-row">
    <td>
      <a class="b-link" href="http://ufcstats.com/event-details/ccc333">UFC 309: Jones vs. Miocic</a>
      <span class="b-statistics__date">November 16, 2024</span>
    </td>
  </tr>
</table>`

const eventPageHTML = `
<table class="b-fight-details__table">
  <tbody>
    <tr class="b-fight-details__table-row">
      <td><a href="#">win</a></td>
      <td>
        <a href="/fighter-details/1">Islam Makhachev</a>
        <a href="/fighter-details/2">Renato Moicano</a>
      </td>
      <td><p class="b-fight-details__table-text">SUB</p><p class="b-fight-details__table-text">D'Arce Choke</p></td>
    </tr>
    <tr class="b-fight-details__table-row">
      <td><a href="#">nc</a></td>
      <td>
        <a href="/fighter-details/3">Jiri Prochazka</a>
        <a href="/fighter-details/4">Jamahal Hill</a>
      </td>
      <td><p class="b-fight-details__table-text">KO/TKO</p></td>
    </tr>
    <tr class="b-fight-details__table-row">
      <td><a href="#">lone link row</a></td>
    </tr>
  </tbody>
</table>`

func loadDoc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

func TestParseEventList(t *testing.T) {
	doc := loadDoc(t, eventListHTML)

	events := parseEventList(doc, 10, 0)
	require.Len(t, events, 3)
	assert.Equal(t, "aaa111", events[0].ID)
	assert.Equal(t, "UFC 311: Makhachev vs. Moicano", events[0].Name)
	assert.Equal(t, "January 18, 2025", events[0].Date)
	assert.Equal(t, "http://ufcstats.com/event-details/aaa111", events[0].URL)
}

func TestParseEventListOffsetAndLimit(t *testing.T) {
	doc := loadDoc(t, eventListHTML)

	events := parseEventList(doc, 1, 1)
	require.Len(t, events, 1)
	assert.Equal(t, "bbb222", events[0].ID)

	assert.Empty(t, parseEventList(doc, 5, 10))
}

func TestParseFightRows(t *testing.T) {
	doc := loadDoc(t, eventPageHTML)
	event := usecase.ArchiveEvent{ID: "aaa111", Name: "UFC 311", Date: "January 18, 2025"}

	fights := parseFightRows(doc, event)
	require.Len(t, fights, 2)

	first := fights[0]
	assert.Equal(t, "aaa111", first.EventID)
	assert.Equal(t, "Islam Makhachev", first.FighterA)
	assert.Equal(t, "Renato Moicano", first.FighterB)
	assert.Equal(t, "Islam Makhachev", first.Winner, "win flag marks the first fighter as winner")
	assert.Equal(t, "SUB", first.Method)

	second := fights[1]
	assert.Equal(t, "Jamahal Hill", second.Winner, "without a win flag the second fighter is the winner")
	assert.Equal(t, "KO/TKO", second.Method)
}

func TestEventIDFromURL(t *testing.T) {
	assert.Equal(t, "abc", eventIDFromURL("http://ufcstats.com/event-details/abc"))
	assert.Equal(t, "abc", eventIDFromURL("http://ufcstats.com/event-details/abc/"))
	assert.Equal(t, "plain", eventIDFromURL("plain"))
}
