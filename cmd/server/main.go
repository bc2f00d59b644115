package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"

	"github.com/dpup/prefab"
	"github.com/dpup/prefab/logging"

	"github.com/dpup/wolfcreekpass/server/internal/app"
	"github.com/dpup/wolfcreekpass/server/internal/config"
	"github.com/dpup/wolfcreekpass/server/internal/services"
)

func main() {
	// Settings come from the wolfcreek section of prefab.yaml plus WOLFCREEK__ env vars
	cfg, err := config.Load(prefab.Config)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Startup, the scheduler and request handlers share one logger
	ctx, cancel := context.WithCancel(logging.EnsureLogger(context.Background()))
	defer cancel()

	monitor, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to start monitor: %v", err)
	}
	defer func() {
		if err := monitor.Close(); err != nil {
			log.Printf("Failed to close monitor: %v", err)
		}
	}()

	log.Printf("Wolf Creek Pass monitor starting")
	log.Printf("Routes monitored: %d, cameras configured: %d", len(cfg.Routes), len(cfg.CameraIDs()))

	if err := monitor.Scheduler.Start(ctx); err != nil {
		log.Fatalf("Failed to start capture scheduler: %v", err)
	}
	defer monitor.Scheduler.Stop()

	server := prefab.New(
		prefab.WithContext(ctx),
		prefab.WithGRPCReflection(),
		prefab.WithHTTPHandlerFunc("/", homepageHandler),
		prefab.WithHTTPHandlerFunc("/api/v1/", monitor.Query.ServeHTTP),
		prefab.WithHTTPHandlerFunc("/metrics", monitor.Metrics.Handler().ServeHTTP),
	)

	server.ServiceRegistrar().RegisterService(&services.QueryServiceDesc, monitor.Query)

	// Start the server (blocks until shutdown)
	if err := server.Start(); err != nil {
		log.Printf("Server failed: %v", err)
	}
}

// homepageHandler serves a plain index of the query endpoints
func homepageHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	html := `<!DOCTYPE html>
<html>
<head>
    <meta charset="utf-8">
    <title>Wolf Creek Pass monitor</title>
    <style>
        body { font-family: 'Courier New', Consolas, monospace; background: #000; color: #0f0; padding: 20px; line-height: 1.4; }
        a { color: #0ff; text-decoration: none; }
        a:hover { text-decoration: underline; }
        pre { margin: 0; }
        .header { color: #ff0; }
    </style>
</head>
<body>
<pre>
<span class="header">Wolf Creek Pass monitor</span>

Hourly road camera captures, conditions and travel times for the
Riverton to Hanna commute over Wolf Creek Pass (SR-35).

<span class="header">API Endpoints:</span>
  <a href="/api/v1/cycles">GET /api/v1/cycles</a>                - Recent capture cycles
  GET /api/v1/cycles/{cycle_id}     - Full dashboard for one cycle
  <a href="/api/v1/captures/recent">GET /api/v1/captures/recent</a>       - Newest camera captures
  <a href="/api/v1/routes">GET /api/v1/routes</a>                - Routes with closure flags
  <a href="/api/v1/cameras">GET /api/v1/cameras</a>               - Known cameras
  <a href="/metrics">GET /metrics</a>                      - Prometheus metrics

<span class="header">gRPC:</span>
  wolfcreek.v1.QueryService (ListCycles, GetCycle, RecentCaptures, ListRoutes)

<span class="header">Data Sources:</span>
  • UDOT Traffic API     - Cameras, conditions, events, weather, passes, plows
  • Google Routes API    - Travel times and route geometry
  • OpenAI vision        - Snow, vehicle and animal detection
</pre>
</body>
</html>`

	if _, err := fmt.Fprint(w, html); err != nil {
		slog.Error("Failed to write homepage HTML", "error", err)
	}
}
