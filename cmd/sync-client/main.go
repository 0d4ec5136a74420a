package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"strings"
	"time"

	"bookhub/internal/sync"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:7070", "TCP event feed address")
	pretty := flag.Bool("pretty", true, "pretty print JSON events")
	types := flag.String("type", "", "comma separated event types to show, e.g. borrow.approve,borrow.overdue")
	flag.Parse()

	filter := parseTypes(*types)
	for {
		if err := run(*addr, *pretty, filter); err != nil {
			log.Printf("[sync-client] disconnected: %v", err)
		}
		time.Sleep(1 * time.Second) // reconnect
	}
}

func parseTypes(raw string) map[string]bool {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	out := map[string]bool{}
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out[t] = true
		}
	}
	return out
}

func run(addr string, pretty bool, filter map[string]bool) error {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()

	log.Printf("[sync-client] connected to %s", addr)
	if err := printEvents(conn, os.Stdout, pretty, filter); err != nil {
		return err
	}
	return os.ErrClosed
}

// printEvents copies newline-delimited events from r to w. Lines that are not
// borrow events, such as the welcome banner, are always shown as received.
func printEvents(r io.Reader, w io.Writer, pretty bool, filter map[string]bool) error {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := sc.Bytes()

		var ev sync.BorrowEvent
		if err := json.Unmarshal(line, &ev); err != nil || !strings.HasPrefix(ev.Type, "borrow.") {
			fmt.Fprintln(w, string(line))
			continue
		}
		if filter != nil && !filter[ev.Type] {
			continue
		}
		if !pretty {
			fmt.Fprintln(w, string(line))
			continue
		}

		b, _ := json.MarshalIndent(ev, "", "  ")
		fmt.Fprintln(w, string(b))
	}
	return sc.Err()
}
