package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/glamour"
	"github.com/vadiminshakov/papertrade/internal/client"
)

func newClient() (*client.Client, error) {
	cfg, err := flags.Load()
	if err != nil {
		return nil, err
	}
	return client.New(cfg.HTTP.ServerURL, nil)
}

func printMarkdown(md string) {
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(120))
	if err != nil {
		fmt.Print(md)
		return
	}
	out, err := r.Render(md)
	if err != nil {
		fmt.Print(md)
		return
	}
	fmt.Print(out)
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
}
