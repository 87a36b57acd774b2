package fight

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsCompletedStatus(t *testing.T) {
	completed := []string{
		"STATUS_FINAL",
		"post",
		"Completed",
		"Final - Round 3",
	}
	for _, status := range completed {
		assert.True(t, IsCompletedStatus(status), status)
	}

	pending := []string{
		"STATUS_SCHEDULED",
		"pre",
		"in",
		"",
	}
	for _, status := range pending {
		assert.False(t, IsCompletedStatus(status), status)
	}
}

func TestCategorize(t *testing.T) {
	events := []RawEvent{
		{ID: "1", Name: "UFC 311", Status: "STATUS_SCHEDULED"},
		{ID: "2", Name: "UFC 310", Status: "STATUS_FINAL"},
		{ID: "3", Name: "Fight Night", Status: "pre"},
	}

	upcoming, completed := Categorize(events)

	assert.Len(t, upcoming, 2)
	assert.Len(t, completed, 1)
	assert.Equal(t, "2", completed[0].ID)
}

func TestKeyIsOrderIndependent(t *testing.T) {
	a := Key("600050000", "Islam Makhachev", "Arman Tsarukyan")
	b := Key("600050000", "Arman Tsarukyan", "Islam Makhachev")
	assert.Equal(t, a, b)

	other := Key("600050001", "Islam Makhachev", "Arman Tsarukyan")
	assert.NotEqual(t, a, other)
}

func TestKeySet(t *testing.T) {
	keys := KeySet([]HistoricalMatch{
		{EventID: "e1", FighterA: "Khabib Nurmagomedov", FighterB: "Conor McGregor"},
	})

	_, ok := keys[Key("e1", "Conor McGregor", "Khabib Nurmagomedov")]
	assert.True(t, ok)
	_, ok = keys[Key("e2", "Conor McGregor", "Khabib Nurmagomedov")]
	assert.False(t, ok)
}

func TestSortByDate(t *testing.T) {
	upcoming := []UpcomingMatch{
		{EventID: "b", EventDate: "2025-03-08T23:00Z"},
		{EventID: "a", EventDate: "2025-01-18T23:00Z"},
	}
	SortUpcomingByDate(upcoming)
	assert.Equal(t, "a", upcoming[0].EventID)

	historical := []HistoricalMatch{
		{EventID: "new", EventDate: "2024-10-26"},
		{EventID: "old", EventDate: "2018-10-06"},
	}
	SortHistoricalByDate(historical)
	assert.Equal(t, "old", historical[0].EventID)
}
