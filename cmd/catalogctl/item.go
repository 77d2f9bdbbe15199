package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/mohammed-shakir/wms-catalog/internal/catalog"
	"github.com/mohammed-shakir/wms-catalog/internal/core/fetcher"
	"github.com/mohammed-shakir/wms-catalog/internal/core/httpclient"
	"github.com/mohammed-shakir/wms-catalog/internal/corsproxy"
	"github.com/mohammed-shakir/wms-catalog/internal/logger"
)

// itemFlags are shared by every subcommand that builds an item.
type itemFlags struct {
	url         string
	layers      string
	version     string
	timeout     time.Duration
	file        string
	proxy       string
	noTime      bool
	logLevel    string
	metadataURL string
}

func (f *itemFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.url, "url", "u", "", "WMS service URL")
	cmd.Flags().StringVarP(&f.layers, "layers", "l", "", "comma-separated layer names or titles")
	cmd.Flags().StringVar(&f.version, "wms-version", "1.3.0", "WMS version to request (1.1.1 or 1.3.0)")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 30*time.Second, "capabilities fetch timeout")
	cmd.Flags().StringVarP(&f.file, "file", "f", "", "read the capabilities document from a file instead of fetching it")
	cmd.Flags().StringVar(&f.proxy, "proxy", "", "CORS proxy prefix for upstream requests")
	cmd.Flags().StringVar(&f.metadataURL, "metadata-url", "", "explicit capabilities URL")
	cmd.Flags().BoolVar(&f.noTime, "no-intervals", false, "do not read intervals from the time dimension")
	cmd.Flags().StringVar(&f.logLevel, "log-level", "warn", "log level written to stderr")
	_ = cmd.MarkFlagRequired("url")
	_ = cmd.MarkFlagRequired("layers")
}

func (f *itemFlags) build(stderr io.Writer) *catalog.Item {
	zl := logger.Build(logger.Config{Level: f.logLevel, Console: true, Component: "catalogctl"}, stderr)
	log := logger.NewSlog(&zl)

	it := catalog.New(f.url, f.layers,
		catalog.WithFetcher(f.fetcher(log)),
		catalog.WithProxy(corsproxy.New(f.proxy, nil)),
		catalog.WithProfile(catalog.WMS(f.version)),
		catalog.WithLogger(log),
		catalog.WithFetchTimeout(f.timeout),
	)
	it.SetPopulateIntervalsFromTimeDimension(!f.noTime)
	if f.metadataURL != "" {
		it.SetMetadataURL(f.metadataURL)
	}
	return it
}

func (f *itemFlags) fetcher(log *slog.Logger) fetcher.Fetcher {
	if f.file == "" {
		return fetcher.NewHTTP(log, httpclient.NewOutbound(f.timeout), 0)
	}
	path := f.file
	return fetcher.FetcherFunc(func(context.Context, string) ([]byte, error) {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read capabilities file: %w", err)
		}
		return b, nil
	})
}

// load runs one load cycle to completion.
func load(ctx context.Context, it *catalog.Item) (*catalog.Metadata, error) {
	m := it.Metadata()
	if err := m.Wait(ctx); err != nil {
		return nil, err
	}
	return m, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
