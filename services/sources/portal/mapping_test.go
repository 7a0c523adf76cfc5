package portal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLayoutFor(t *testing.T) {
	_, err := layoutFor("v1")
	assert.NoError(t, err)

	_, err = layoutFor("v2")
	assert.NoError(t, err)

	_, err = layoutFor("v7")
	assert.Error(t, err)
}

func TestRowLayout_Validate(t *testing.T) {
	layout := layoutByVersion["v2"]

	err := layout.validate([]interface{}{"1.2.3.4", "botnet", 80, "2026-01-01", nil, "KR"})
	assert.NoError(t, err)

	err = layout.validate([]interface{}{"1.2.3.4", "botnet"})
	assert.Error(t, err)
}

func TestStringAt(t *testing.T) {
	row := []interface{}{"  1.2.3.4 ", float64(80), nil}

	assert.Equal(t, "1.2.3.4", stringAt(row, 0))
	assert.Equal(t, "80", stringAt(row, 1))
	assert.Equal(t, "", stringAt(row, 2))
	assert.Equal(t, "", stringAt(row, absent))
	assert.Equal(t, "", stringAt(row, 99))
}

func TestIntAt(t *testing.T) {
	row := []interface{}{float64(80), " 45 ", "not-a-number", nil}

	assert.Equal(t, 80, intAt(row, 0, 50))
	assert.Equal(t, 45, intAt(row, 1, 50))
	assert.Equal(t, 50, intAt(row, 2, 50))
	assert.Equal(t, 50, intAt(row, 3, 50))
	assert.Equal(t, 50, intAt(row, absent, 50))
}

func TestTimeAt(t *testing.T) {
	row := []interface{}{"2026-03-15", "2026-03-15 10:30:00", "2026-03-15T10:30:00Z", "yesterday", ""}

	parsed := timeAt(row, 0)
	require.NotNil(t, parsed)
	assert.Equal(t, time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC), *parsed)

	assert.NotNil(t, timeAt(row, 1))
	assert.NotNil(t, timeAt(row, 2))
	assert.Nil(t, timeAt(row, 3))
	assert.Nil(t, timeAt(row, 4))
	assert.Nil(t, timeAt(row, absent))
}
