package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"time"

	"github.com/gorilla/websocket"

	"bookhub/internal/notify"
)

// handleWatch follows the public event feed over websocket or TCP.
func handleWatch(baseURL, sub string, args []string) {
	switch sub {
	case "ws":
		fs := flag.NewFlagSet("watch ws", flag.ExitOnError)
		wsURL := fs.String("ws", "", "WebSocket URL (defaults to /ws on API host)")
		_ = fs.Parse(args)

		endpoint := *wsURL
		if endpoint == "" {
			var err error
			if endpoint, err = websocketURL(baseURL, "/ws"); err != nil {
				log.Fatalf("ws url: %v", err)
			}
		}
		if err := runWebSocket(endpoint, os.Stdout); err != nil {
			log.Fatalf("watch failed: %v", err)
		}
	case "tcp":
		fs := flag.NewFlagSet("watch tcp", flag.ExitOnError)
		addr := fs.String("addr", "127.0.0.1:7070", "TCP event feed address")
		_ = fs.Parse(args)
		for {
			if err := runTCP(*addr, os.Stdout); err != nil {
				log.Printf("[watch] disconnected: %v", err)
			}
			time.Sleep(1 * time.Second)
		}
	default:
		log.Fatal("usage: bookhub watch <ws|tcp>")
	}
}

// handleNotify registers for the caller's own borrow updates over UDP.
func handleNotify(c *apiClient, sub string, args []string) {
	if sub != "subscribe" {
		log.Fatal("usage: bookhub notify subscribe")
	}
	fs := flag.NewFlagSet("notify subscribe", flag.ExitOnError)
	addr := fs.String("addr", "127.0.0.1:7071", "UDP notify server address")
	_ = fs.Parse(args)

	token, err := readToken(c.tokenPath)
	if err != nil {
		log.Fatalf("token not found, please login: %v", err)
	}
	if err := runNotifyUDP(context.Background(), *addr, token, os.Stdout); err != nil {
		log.Fatalf("subscribe failed: %v", err)
	}
}

func runWebSocket(wsURL string, out io.Writer) error {
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	log.Printf("[watch] connected to %s", wsURL)
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(msg))
	}
}

func runTCP(addr string, out io.Writer) error {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()

	log.Printf("[watch] connected to %s", addr)
	sc := bufio.NewScanner(conn)
	for sc.Scan() {
		fmt.Fprintln(out, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return err
	}
	return os.ErrClosed
}

// runNotifyUDP registers token with the notify server and prints every update
// it receives until ctx is done.
func runNotifyUDP(ctx context.Context, addr, token string, out io.Writer) error {
	raddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return err
	}
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return err
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	b, err := json.Marshal(notify.RegisterMessage{Type: notify.RegisterMessageType, Token: token})
	if err != nil {
		return err
	}
	if _, err := conn.Write(b); err != nil {
		return err
	}

	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		var reply notify.ReplyMessage
		if err := json.Unmarshal(buf[:n], &reply); err == nil {
			switch reply.Type {
			case notify.ErrorMessageType:
				return fmt.Errorf("register: %s", reply.Detail)
			case notify.RegisteredMessageType:
				log.Printf("[notify] subscribed as %s", reply.UserID)
				continue
			}
		}
		fmt.Fprintln(out, string(buf[:n]))
	}
}
