package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	srmcp "github.com/deixis/suiterun/internal/mcp"
	"github.com/deixis/suiterun/internal/report"
)

func newMCPCommand(g *globalOptions) *cobra.Command {
	var (
		httpAddr     string
		instructions bool
	)
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start the MCP server",
		Long: `Serve the suite tools over the Model Context Protocol, on stdio by default
or over streamable HTTP with --http.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if instructions {
				fmt.Fprint(cmd.OutOrStdout(), srmcp.Instructions)
				return nil
			}
			return serve(cmd.Context(), g, g.logger(cmd), httpAddr)
		},
	}
	cmd.Flags().StringVar(&httpAddr, "http", "", "start HTTP server on address (e.g. :9090)")
	cmd.Flags().BoolVar(&instructions, "instructions", false, "print model instructions and exit")
	return cmd
}

func serve(ctx context.Context, g *globalOptions, log *zerolog.Logger, httpAddr string) error {
	loaded, err := g.load()
	if err != nil {
		return err
	}

	var backing report.Store
	if path := loaded.Config.HistoryPath(); path != "" {
		db, err := report.OpenSQLiteStore(path)
		if err != nil {
			return err
		}
		defer db.Close()
		backing = db
	} else {
		backing = report.NewDiskStore("")
	}
	store := report.NewLRUStore(5, backing)

	server := srmcp.NewServer(loaded, os.Environ(), store,
		srmcp.WithLogger(log),
		srmcp.WithRoots(),
	)

	if httpAddr != "" {
		return serveHTTP(ctx, log, server, httpAddr)
	}
	return server.Run(ctx, &mcpsdk.StdioTransport{})
}

func serveHTTP(ctx context.Context, log *zerolog.Logger, server *mcpsdk.Server, addr string) error {
	handler := mcpsdk.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcpsdk.Server { return server },
		nil,
	)

	httpServer := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	go func() {
		<-ctx.Done()
		_ = httpServer.Close()
	}()

	log.Info().Str("addr", addr).Msg("listening")
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}
