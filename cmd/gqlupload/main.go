// Package main is a small command line client that posts a GraphQL query,
// optionally uploading files through the multipart request format.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	graphql "github.com/EVANA-AG/gqlupload/v2"
	"github.com/EVANA-AG/gqlupload/v2/config"
	"github.com/EVANA-AG/gqlupload/v2/transport"
)

type fileFlags []string

func (f *fileFlags) String() string { return strings.Join(*f, ",") }

func (f *fileFlags) Set(v string) error {
	name, path, ok := strings.Cut(v, "=")
	if !ok || name == "" || path == "" {
		return fmt.Errorf("expected name=path, got %q", v)
	}
	for _, key := range strings.Split(name, ".") {
		if key == "" {
			return fmt.Errorf("empty segment in variable name %q", name)
		}
	}
	*f = append(*f, v)
	return nil
}

func main() {
	var (
		configPath = flag.String("config", "", "path to a YAML config file")
		queryPath  = flag.String("query", "-", "file holding the GraphQL document, - for stdin")
		varsPath   = flag.String("vars", "", "file holding the variables as JSON")
		verbose    = flag.Bool("v", false, "log requests")
		files      fileFlags
	)
	flag.Var(&files, "file", "upload a file as variable name=path, dotted names nest (repeatable)")
	flag.Parse()

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if err := run(logger, *configPath, *queryPath, *varsPath, files); err != nil {
		if gqlErr := graphql.FromError(err); gqlErr != nil {
			fmt.Fprintf(os.Stderr, "%s (codes %v)\n", gqlErr.Error(), gqlErr.Codes)
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func run(logger *slog.Logger, configPath, queryPath, varsPath string, files fileFlags) error {
	cfg, err := loadConfig(logger, configPath)
	if err != nil {
		return err
	}

	query, err := readQuery(queryPath)
	if err != nil {
		return err
	}

	variables, err := readVariables(varsPath)
	if err != nil {
		return err
	}

	closers, err := attachFiles(variables, files)
	defer func() {
		for _, c := range closers {
			_ = c.Close()
		}
	}()
	if err != nil {
		return err
	}
	if len(variables) == 0 {
		variables = nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	factory := transport.NewFactory(*cfg, transport.WithLogger(logger))
	client := graphql.MakeClient[json.RawMessage](factory, graphql.WithLogger(logger))

	data, err := client(ctx, graphql.NewQuery(query), variables)
	if err != nil {
		return err
	}

	var out any
	if err = json.Unmarshal(data, &out); err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func loadConfig(logger *slog.Logger, path string) (*config.Config, error) {
	if err := config.LoadDotEnv(".env"); err != nil {
		return nil, err
	}

	cfg := config.DefaultConfig()
	if path != "" {
		loaded, err := config.LoadConfig(path)
		if err != nil {
			return nil, err
		}
		logger.Debug("loaded config", slog.String("path", path))
		cfg = loaded
	}
	if err := config.ApplyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

func readQuery(path string) (string, error) {
	var (
		b   []byte
		err error
	)
	if path == "-" {
		b, err = io.ReadAll(os.Stdin)
	} else {
		b, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("read query: %w", err)
	}
	return string(b), nil
}

func readVariables(path string) (graphql.QueryVariables, error) {
	if path == "" {
		return graphql.QueryVariables{}, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read variables: %w", err)
	}
	if len(bytes.TrimSpace(b)) == 0 {
		return graphql.QueryVariables{}, nil
	}

	var decoded any
	if err = json.Unmarshal(b, &decoded); err != nil {
		return nil, fmt.Errorf("decode variables: %w", err)
	}
	switch v := decoded.(type) {
	case nil:
		return graphql.QueryVariables{}, nil
	case map[string]any:
		return graphql.QueryVariables(v), nil
	default:
		return nil, fmt.Errorf("decode variables: expected a JSON object, got %T", decoded)
	}
}

// attachFiles opens each name=path pair and stores the file at the dotted
// name, creating intermediate objects as needed.
func attachFiles(variables graphql.QueryVariables, files fileFlags) ([]io.Closer, error) {
	var closers []io.Closer
	if variables == nil && len(files) > 0 {
		return nil, fmt.Errorf("attach uploads: variables map is nil")
	}
	for _, spec := range files {
		name, path, _ := strings.Cut(spec, "=")
		f, err := os.Open(path)
		if err != nil {
			return closers, fmt.Errorf("open upload: %w", err)
		}
		closers = append(closers, f)

		keys := strings.Split(name, ".")
		node := map[string]any(variables)
		for _, k := range keys[:len(keys)-1] {
			child, ok := node[k].(map[string]any)
			if !ok {
				child = map[string]any{}
				node[k] = child
			}
			node = child
		}
		node[keys[len(keys)-1]] = graphql.NewFile(filepath.Base(path), f)
	}
	return closers, nil
}
