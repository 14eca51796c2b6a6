// Package main wires together the fetchkit MCP server binary.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/fetchkit/fetchkit/internal/acquire"
	"github.com/fetchkit/fetchkit/internal/api"
	"github.com/fetchkit/fetchkit/internal/capability"
	"github.com/fetchkit/fetchkit/internal/config"
	"github.com/fetchkit/fetchkit/internal/detect"
	"github.com/fetchkit/fetchkit/internal/extract"
	"github.com/fetchkit/fetchkit/internal/fetch"
	"github.com/fetchkit/fetchkit/internal/history"
	"github.com/fetchkit/fetchkit/internal/logging"
	"github.com/fetchkit/fetchkit/internal/mcp"
	"github.com/fetchkit/fetchkit/internal/metrics"
	"github.com/fetchkit/fetchkit/internal/render"
	"github.com/fetchkit/fetchkit/internal/search"
	"github.com/fetchkit/fetchkit/internal/transport"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync() //nolint:errcheck // best-effort flush
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.Init()

	detector := capability.NewDetector(cfg, logger.Named("capability"))
	caps := detector.Detect(ctx)
	logger.Info("startup capability report",
		zap.String("http2", caps.HTTP2.State()),
		zap.String("js_rendering", caps.JSRendering.State()),
	)

	orchestrator, cleanup, err := buildOrchestrator(cfg, caps, logger)
	if err != nil {
		logger.Error("orchestrator init failed", zap.Error(err))
		os.Exit(1)
	}
	defer cleanup()

	recorder := buildRecorder(ctx, cfg, logger)
	defer recorder.Close()

	if cfg.Server.Enabled {
		startStatusServer(ctx, cfg, detector, logger)
	}

	server := mcp.NewServer(orchestrator, buildSearcher(cfg, logger), recorder, mcp.Config{
		MaxURLsPerCall:    cfg.MCP.MaxURLsPerCall,
		DefaultTimeout:    cfg.RequestTimeout(),
		DefaultNumResults: cfg.Search.NumResults,
	}, logger.Named("mcp"))

	logger.Info("mcp server ready on stdio")
	serveStdio(ctx, server, logger)
	logger.Info("shutdown complete")
}

func buildOrchestrator(
	cfg config.Config,
	caps capability.Set,
	logger *zap.Logger,
) (*acquire.Orchestrator, func(), error) {
	transportCfg := transport.Config{
		UserAgent:    cfg.HTTP.UserAgent,
		Timeout:      cfg.RequestTimeout(),
		MaxRedirects: cfg.HTTP.MaxRedirects,
		MaxBodyBytes: cfg.HTTP.MaxBodyBytes,
	}

	var http2Fetcher fetch.Fetcher
	if caps.HTTP2.Available {
		h2, err := transport.NewHTTP2(transportCfg)
		if err != nil {
			return nil, nil, fmt.Errorf("init http2 fetcher: %w", err)
		}
		http2Fetcher = h2
	}
	http1Fetcher := transport.NewHTTP1(transportCfg)

	cleanup := func() {}
	var jsFetcher fetch.Fetcher = render.NewNoop()
	if caps.JSRendering.Available {
		chromedpFetcher, err := render.NewChromedp(render.Config{
			ExecPath:          cfg.Headless.ExecPath,
			MaxParallel:       cfg.Headless.MaxParallel,
			UserAgent:         cfg.HTTP.UserAgent,
			NavigationTimeout: cfg.NavTimeout(),
			SettleWait:        cfg.SettleWait(),
			AllowHTTP2:        caps.HTTP2.Available,
		})
		if err != nil {
			// Renderer init failing after a successful probe downgrades the
			// tier the same way a failed probe would have.
			logger.Warn("js renderer init failed, degrading to static only", zap.Error(err))
			caps.JSRendering = capability.Capability{Reason: fmt.Sprintf("renderer init failed: %v", err)}
		} else {
			jsFetcher = chromedpFetcher
			cleanup = chromedpFetcher.Close
		}
	}

	pipeline := extract.New(extract.Options{
		MaxTextChars: cfg.Fetch.MaxTextChars,
		MaxLinks:     cfg.Fetch.MaxLinks,
	})

	orchestrator := acquire.New(
		caps,
		http2Fetcher,
		http1Fetcher,
		jsFetcher,
		pipeline,
		detect.NewHeuristic(),
		acquire.Options{AutoPromote: cfg.Fetch.AutoPromote},
		logger.Named("acquire"),
	)
	return orchestrator, cleanup, nil
}

func buildSearcher(cfg config.Config, logger *zap.Logger) mcp.Searcher {
	if cfg.Search.APIKey == "" || cfg.Search.EngineID == "" {
		logger.Info("web search not configured, tool will report it as unavailable")
		return nil
	}
	return search.NewGoogle(search.Config{
		APIKey:   cfg.Search.APIKey,
		EngineID: cfg.Search.EngineID,
	}, logger.Named("search"))
}

func buildRecorder(ctx context.Context, cfg config.Config, logger *zap.Logger) history.Recorder {
	if cfg.History.Provider != "postgres" {
		return history.Noop{}
	}
	recorder, err := history.NewPostgres(ctx, cfg.History.DSN)
	if err != nil {
		logger.Warn("history store unavailable, auditing disabled", zap.Error(err))
		return history.Noop{}
	}
	logger.Info("history store connected")
	return recorder
}

func startStatusServer(ctx context.Context, cfg config.Config, detector *capability.Detector, logger *zap.Logger) {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           api.NewServer(detector, logger.Named("api")).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("status server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("status server error", zap.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("status server shutdown error", zap.Error(err))
		}
	}()
}

// serveStdio runs the JSON-RPC loop. Only protocol JSON goes to stdout;
// everything else is zap on stderr.
func serveStdio(ctx context.Context, server *mcp.Server, logger *zap.Logger) {
	decoder := json.NewDecoder(bufio.NewReader(os.Stdin))
	encoder := json.NewEncoder(os.Stdout)

	for {
		if ctx.Err() != nil {
			return
		}
		var request mcp.Request
		if err := decoder.Decode(&request); err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			logger.Warn("request parse failed", zap.Error(err))
			response := &mcp.Response{
				JSONRPC: "2.0",
				Error:   &mcp.ErrorObject{Code: mcp.ParseError, Message: "Failed to parse request"},
			}
			if encodeErr := encoder.Encode(response); encodeErr != nil {
				logger.Error("response encode failed", zap.Error(encodeErr))
			}
			continue
		}

		response := server.HandleRequest(ctx, &request)
		if response == nil || request.ID == nil {
			// Notifications get no response.
			continue
		}
		if response.ID == nil {
			response.ID = request.ID
		}
		if err := encoder.Encode(response); err != nil {
			logger.Error("response encode failed", zap.Error(err))
		}
	}
}
