package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/matdoesdev/site"
	"github.com/matdoesdev/site/markdown"
)

// version is set at build time via ldflags.
var version = "dev"

func main() {
	cmd, args := "serve", os.Args[1:]
	if len(args) > 0 {
		cmd, args = args[0], args[1:]
	}

	var err error
	switch cmd {
	case "serve":
		err = runServe()
	case "render":
		err = runConvert(args, markdown.HTML, os.Stdout)
	case "strip":
		err = runConvert(args, markdown.PlainText, os.Stdout)
	case "new":
		if len(args) < 1 {
			fmt.Fprintln(os.Stderr, "Usage: site new <dir>")
			os.Exit(1)
		}
		err = runNew(args[0])
	case "version":
		fmt.Printf("site %s\n", version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe() error {
	cfg, err := site.LoadConfig()
	if err != nil {
		return err
	}
	app := site.New(cfg)
	if err := app.Setup(); err != nil {
		app.Close()
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() { errc <- app.Start() }()

	select {
	case err := <-errc:
		app.Close()
		return err
	case <-ctx.Done():
	}
	app.Echo.Logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return app.Shutdown(shutdownCtx)
}

// runConvert converts a file, or stdin when no file or "-" is given.
func runConvert(args []string, mode markdown.Mode, out io.Writer) error {
	var (
		data []byte
		err  error
	)
	if len(args) == 0 || args[0] == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(args[0])
	}
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return errors.New("no input")
	}
	_, err = io.WriteString(out, markdown.Convert(string(data), mode))
	return err
}

func printUsage() {
	fmt.Println(`site - personal website and blog

Usage:
  site [command] [arguments]

Commands:
  serve           Run the web server (default)
  render [file]   Convert post markup to HTML (stdin when no file)
  strip [file]    Convert post markup to plain text
  new <dir>       Write starter templates and config into dir
  version         Print the version
  help            Show this help message

Configuration is read from the environment and an optional .env file.`)
}
