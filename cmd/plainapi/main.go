package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/pkg/errors"

	"plainapi/internal/app"
	"plainapi/internal/code"
	"plainapi/internal/config"
	"plainapi/internal/schemasrc"
	"plainapi/internal/server"
	"plainapi/internal/sql"
)

const usage = `usage: plainapi [-config file] <command> [args]

commands:
  tokens <sql>       print the tokens of a SQL statement
  schema [file]      parse DDL from file, or from the configured source
  shape <sql>        print the inputs and outputs of a statement
  block <file|->     parse an indented pseudo-code block
  endpoint <file|->  parse blank-line separated endpoint descriptions
  serve              run the parse service
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "ERROR:", err)
		if line := code.LineOf(err); line > 0 {
			fmt.Fprintln(os.Stderr, "at line", line)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) error {
	fs := flag.NewFlagSet("plainapi", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	configPath := fs.String("config", "", "config file (.yaml, .toml or .ini)")
	if err := fs.Parse(args); err != nil {
		return errors.Wrap(err, usage)
	}
	if fs.NArg() == 0 {
		return errors.New(usage)
	}
	cmd, rest := fs.Arg(0), fs.Args()[1:]

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	// Commands that need neither the oracle nor a schema.
	switch cmd {
	case "tokens":
		if len(rest) != 1 {
			return errors.New("tokens takes one SQL argument")
		}
		tokens, err := sql.TokenizeAll(rest[0])
		if err != nil {
			return err
		}
		return printJSON(stdout, tokens)
	case "schema":
		if len(rest) == 1 {
			cfg.Schema = config.SchemaConfig{Path: rest[0], IncludeIfNotExists: cfg.Schema.IncludeIfNotExists}
		}
		ddl, err := schemasrc.Load(ctx, cfg.Schema.Source())
		if err != nil {
			return err
		}
		s, err := sql.ParseSchemaWithOptions(ddl, sql.SchemaOptions{IncludeIfNotExists: cfg.Schema.IncludeIfNotExists})
		if err != nil {
			return err
		}
		return printJSON(stdout, map[string]any{"tables": s.Tables(), "skipped": s.Skipped()})
	}

	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	switch cmd {
	case "shape":
		if len(rest) != 1 {
			return errors.New("shape takes one SQL argument")
		}
		shape, err := sql.ParseStatement(rest[0], a.Schema)
		if err != nil {
			return err
		}
		return printJSON(stdout, shape)

	case "block":
		text, err := readInput(rest, stdin)
		if err != nil {
			return err
		}
		block, scope, err := a.Parser().ParseBlock(ctx, strings.Split(text, "\n"), code.Context{})
		if err != nil {
			return err
		}
		return printJSON(stdout, map[string]any{"block": block, "scope": scope})

	case "endpoint":
		text, err := readInput(rest, stdin)
		if err != nil {
			return err
		}
		eps, err := a.Parser().ParseEndpoints(ctx, text)
		if err != nil {
			return err
		}
		return printJSON(stdout, eps)

	case "serve":
		return serve(ctx, a)
	}
	return errors.Errorf("unknown command %q\n%s", cmd, usage)
}

func serve(ctx context.Context, a *app.App) error {
	srv := server.NewServer(a)
	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info("parse service listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return errors.Wrap(err, "http server")
	case <-ctx.Done():
	}

	a.Logger.Info("shutting down parse service")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return errors.Wrap(srv.Shutdown(shutdownCtx), "shutdown")
}

func readInput(args []string, stdin io.Reader) (string, error) {
	if len(args) != 1 {
		return "", errors.New("expected one file argument (use - for stdin)")
	}
	if args[0] == "-" {
		b, err := io.ReadAll(stdin)
		return string(b), errors.Wrap(err, "read stdin")
	}
	return schemasrc.ReadFile(args[0])
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
