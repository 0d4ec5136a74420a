package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
)

const defaultBaseURL = "http://localhost:8080"

func main() {
	global := flag.NewFlagSet("bookhub", flag.ExitOnError)
	baseURL := global.String("api", defaultBaseURL, "API base URL")
	tokenPath := global.String("token", defaultTokenPath(), "token file path")
	if err := global.Parse(os.Args[1:]); err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	args := global.Args()
	if len(args) < 2 {
		printUsage()
		os.Exit(1)
	}

	client := newAPIClient(*baseURL, *tokenPath)
	group, sub, rest := args[0], args[1], args[2:]

	switch group {
	case "watch":
		handleWatch(*baseURL, sub, rest)
		return
	case "notify":
		handleNotify(client, sub, rest)
		return
	}

	cmd, ok := commands[group][sub]
	if !ok {
		printUsage()
		os.Exit(1)
	}
	if err := cmd(context.Background(), client, rest, os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		log.Fatalf("%s %s failed: %v", group, sub, err)
	}
}

func printUsage() {
	fmt.Println("bookhub [-api URL] [-token PATH] <command> <subcommand> [flags]")
	fmt.Println("commands:")
	groups := make([]string, 0, len(commands))
	for g := range commands {
		groups = append(groups, g)
	}
	sort.Strings(groups)
	for _, g := range groups {
		subs := make([]string, 0, len(commands[g]))
		for s := range commands[g] {
			subs = append(subs, s)
		}
		sort.Strings(subs)
		fmt.Printf("  %s %v\n", g, subs)
	}
	fmt.Println("  watch [ws tcp]")
	fmt.Println("  notify [subscribe]")
}
