package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDateJSON(t *testing.T) {
	var b Book
	require.NoError(t, json.Unmarshal([]byte(`{"title":"Dune","published_date":"1965-08-01"}`), &b))
	assert.Equal(t, "1965-08-01", b.PublishedDate.String())

	out, err := json.Marshal(b.PublishedDate)
	require.NoError(t, err)
	assert.JSONEq(t, `"1965-08-01"`, string(out))

	out, err = json.Marshal(Date{})
	require.NoError(t, err)
	assert.Equal(t, "null", string(out))

	assert.Error(t, json.Unmarshal([]byte(`{"published_date":"01/08/1965"}`), &b))
}

func TestDateScan(t *testing.T) {
	tests := []struct {
		name string
		src  any
		want string
	}{
		{name: "string", src: "2001-02-03", want: "2001-02-03"},
		{name: "timestamp string", src: "2001-02-03 00:00:00+00:00", want: "2001-02-03"},
		{name: "bytes", src: []byte("2001-02-03"), want: "2001-02-03"},
		{name: "time", src: time.Date(2001, 2, 3, 22, 0, 0, 0, time.UTC), want: "2001-02-03"},
		{name: "null", src: nil, want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d Date
			require.NoError(t, d.Scan(tt.src))
			assert.Equal(t, tt.want, d.String())
		})
	}
}

func TestDateAfterComparesCalendarDays(t *testing.T) {
	now := time.Date(2024, 6, 1, 23, 59, 0, 0, time.UTC)
	assert.False(t, NewDate(now).After(now))
	assert.True(t, NewDate(now.Add(24*time.Hour)).After(now))
	assert.False(t, NewDate(now.Add(-24*time.Hour)).After(now))
}

func TestStatus(t *testing.T) {
	assert.Equal(t, "Collected", StatusCollected.String())
	assert.True(t, StatusApproved.Active())
	assert.False(t, StatusDeclined.Active())
	assert.True(t, StatusComplete.Terminal())
	assert.Equal(t, "Unknown", Status(9).String())
}
