package sync

import (
	"bufio"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubBroadcastToTCPSubscriber(t *testing.T) {
	hub := NewHub()
	server, client := net.Pipe()
	defer client.Close()

	hub.Add(server)
	assert.Equal(t, 1, hub.Stats().TCPClients)

	ev := BorrowEvent{
		Type:       "borrow.approve",
		RequestID:  3,
		BookID:     9,
		BorrowerID: "u1",
		Status:     "Approved",
		At:         time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	go hub.BroadcastJSON(ev)

	_ = client.SetReadDeadline(time.Now().Add(2 * time.Second))
	line, err := bufio.NewReader(client).ReadBytes('\n')
	require.NoError(t, err)

	var got BorrowEvent
	require.NoError(t, json.Unmarshal(line, &got))
	assert.Equal(t, ev, got)
}

func TestHubDropsDeadSubscriber(t *testing.T) {
	hub := NewHub()
	server, client := net.Pipe()
	hub.Add(server)
	require.NoError(t, client.Close())

	hub.BroadcastJSON(BorrowEvent{Type: "borrow.decline"})

	st := hub.Stats()
	assert.Zero(t, st.TCPClients)
	assert.Equal(t, uint64(1), st.Sent)
}

func TestServerCloseStopsServe(t *testing.T) {
	hub := NewHub()
	srv := NewServer("127.0.0.1:0", hub)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- srv.Serve(ln) }()

	conn, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	welcome, err := bufio.NewReader(conn).ReadString('\n')
	require.NoError(t, err)
	assert.Contains(t, welcome, `"type":"welcome"`)

	require.NoError(t, srv.Close())
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after Close")
	}
}

func TestServerClosedBeforeServe(t *testing.T) {
	srv := NewServer("127.0.0.1:0", NewHub())
	require.NoError(t, srv.Close())

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()

	done := make(chan error, 1)
	go func() { done <- srv.Serve(ln) }()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve kept accepting after Close")
	}

	// The listener was released.
	_, err = net.DialTimeout("tcp", addr, time.Second)
	assert.Error(t, err)

	assert.NoError(t, srv.Run())
}
