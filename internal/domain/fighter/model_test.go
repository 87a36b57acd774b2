package fighter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCacheKey(t *testing.T) {
	assert.Equal(t, "islam makhachev", CacheKey("Islam Makhachev"))
	assert.Equal(t, "islam makhachev", CacheKey("  ISLAM MAKHACHEV  "))
	assert.Equal(t, "", CacheKey("   "))
}

func TestUnknownOrigin(t *testing.T) {
	origin := UnknownOrigin("Unrecognized Name")

	assert.Equal(t, "Unrecognized Name", origin.Name)
	assert.Equal(t, CountryUnknown, origin.Country)
	assert.Nil(t, origin.State)
	assert.False(t, origin.IsDagestani)
}
