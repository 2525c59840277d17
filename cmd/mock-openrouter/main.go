package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/workshop-tools/boardscan/internal/mockrouter"
)

func main() {
	addr := defaultString("MOCK_OPENROUTER_ADDR", ":8080")
	token := defaultString("MOCK_OPENROUTER_TOKEN", "")
	text := defaultString("MOCK_OPENROUTER_TEXT", "OK")

	fs := flag.NewFlagSet("mock-openrouter", flag.ExitOnError)
	fs.StringVar(&addr, "addr", addr, "Listen address")
	fs.StringVar(&token, "token", token, "Required bearer token; empty disables the auth check")
	fs.StringVar(&text, "text", text, "Completion text returned for every request")
	_ = fs.Parse(os.Args[1:])

	srv := mockrouter.New()
	srv.RequireBearerToken(token)
	srv.SetDefaultText(text)

	_, _ = fmt.Fprintf(os.Stdout, "mock-openrouter listening on %s\n", addr)
	if err := http.ListenAndServe(addr, srv.Handler()); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func defaultString(envVar string, fallback string) string {
	v := strings.TrimSpace(os.Getenv(envVar))
	if v == "" {
		return fallback
	}
	return v
}
