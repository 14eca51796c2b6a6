package capability

import (
	"context"
	"fmt"
	"net/http"
	"os/exec"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/http2"

	"github.com/fetchkit/fetchkit/internal/config"
)

// Probe attempts to initialize one optional subsystem. Probes must never
// panic or block unbounded; any failure is converted to an unavailable
// capability, not an error.
type Probe func(ctx context.Context) Capability

const versionProbeTimeout = 3 * time.Second

// browserCandidates are the executable names tried when no explicit path is
// configured. Mirrors the lookup order of common chromedp deployments.
var browserCandidates = []string{
	"headless-shell",
	"headless_shell",
	"google-chrome",
	"google-chrome-stable",
	"chromium",
	"chromium-browser",
	"chrome",
}

// Detector runs capability probes once and caches the result for the
// process lifetime.
type Detector struct {
	once   sync.Once
	set    Set
	http2  Probe
	js     Probe
	logger *zap.Logger
}

// NewDetector builds a Detector with the default probes derived from
// configuration.
func NewDetector(cfg config.Config, logger *zap.Logger) *Detector {
	return NewDetectorWithProbes(
		probeHTTP2(cfg.HTTP.EnableHTTP2),
		probeBrowser(cfg.Headless.Enabled, cfg.Headless.ExecPath),
		logger,
	)
}

// NewDetectorWithProbes builds a Detector with caller-supplied probes.
// Tests use this to construct arbitrary capability sets without touching
// real environment detection.
func NewDetectorWithProbes(http2Probe, jsProbe Probe, logger *zap.Logger) *Detector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Detector{
		http2:  http2Probe,
		js:     jsProbe,
		logger: logger,
	}
}

// Detect runs the probes on first call and returns the cached set on every
// call after that. Probe failures downgrade the capability and are logged
// at warning level; they never abort startup.
func (d *Detector) Detect(ctx context.Context) Set {
	d.once.Do(func() {
		d.set = Set{
			HTTP2:       d.runProbe(ctx, "http2", d.http2),
			JSRendering: d.runProbe(ctx, "js_rendering", d.js),
		}
		d.logger.Info("capability detection complete",
			zap.String("http2", d.set.HTTP2.State()),
			zap.String("js_rendering", d.set.JSRendering.State()),
		)
	})
	return d.set
}

// Status returns the cached capability set without issuing any probe I/O
// beyond the one-time detection.
func (d *Detector) Status() Set {
	return d.Detect(context.Background())
}

func (d *Detector) runProbe(ctx context.Context, name string, probe Probe) Capability {
	if probe == nil {
		return Capability{Reason: "no probe configured"}
	}
	cap := probe(ctx)
	if !cap.Available {
		d.logger.Warn("optional capability unavailable",
			zap.String("capability", name),
			zap.String("reason", cap.Reason),
		)
	}
	return cap
}

func probeHTTP2(enabled bool) Probe {
	return func(_ context.Context) Capability {
		if !enabled {
			return Capability{Reason: "disabled by configuration"}
		}
		// Configuring an h2 transport over a fresh stdlib transport proves
		// the HTTP/2 stack initializes in this environment.
		tr := &http.Transport{}
		if _, err := http2.ConfigureTransports(tr); err != nil {
			return Capability{Reason: fmt.Sprintf("configure http2 transport: %v", err)}
		}
		return Capability{Available: true, Version: "h2"}
	}
}

func probeBrowser(enabled bool, execPath string) Probe {
	return func(ctx context.Context) Capability {
		if !enabled {
			return Capability{Reason: "disabled by configuration"}
		}
		path := execPath
		if path == "" {
			path = findBrowser()
		}
		if path == "" {
			return Capability{Reason: "no headless browser binary found on PATH"}
		}
		version, err := browserVersion(ctx, path)
		if err != nil {
			return Capability{Reason: fmt.Sprintf("browser at %s unusable: %v", path, err)}
		}
		return Capability{Available: true, Version: version}
	}
}

func findBrowser() string {
	for _, name := range browserCandidates {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}
	return ""
}

func browserVersion(ctx context.Context, path string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, versionProbeTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, path, "--version").Output()
	if err != nil {
		return "", fmt.Errorf("run --version: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}
