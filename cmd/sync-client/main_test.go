package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const feed = `{"type":"welcome","transport":"tcp","clients":1}
{"type":"borrow.borrow","request_id":1,"book_id":2,"borrower_id":"u","status":"Pending","book_available":false,"at":"2026-01-02T03:04:05Z"}
{"type":"borrow.approve","request_id":1,"book_id":2,"borrower_id":"u","status":"Approved","book_available":false,"at":"2026-01-02T03:05:05Z"}
`

func TestPrintEventsFilter(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, printEvents(strings.NewReader(feed), &out, false, parseTypes("borrow.approve")))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"welcome"`)
	assert.Contains(t, lines[1], `"borrow.approve"`)
}

func TestPrintEventsPretty(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, printEvents(strings.NewReader(feed), &out, true, nil))
	assert.Contains(t, out.String(), "\n  \"type\": \"borrow.borrow\",\n")
	assert.Equal(t, 3, strings.Count(out.String(), `"type"`))
}

func TestParseTypes(t *testing.T) {
	assert.Nil(t, parseTypes(" "))
	assert.Equal(t, map[string]bool{"a": true, "b": true}, parseTypes("a, b,"))
}
