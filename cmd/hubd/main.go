package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"hubd/internal/backend"
	"hubd/internal/cache"
	"hubd/internal/config"
	"hubd/internal/discovery"
	"hubd/internal/download"
	"hubd/internal/httpapi"
	"hubd/internal/hub"
	"hubd/internal/manager"
	"hubd/pkg/types"
)

func main() {
	// Flags with environment variable defaults. Empty means unset so that a
	// config file value survives; flag/env beats file, file beats default.
	addr := flag.String("addr", os.Getenv("HUBD_ADDR"), "HTTP listen address (default :8080)")
	configPath := flag.String("config", os.Getenv("HUBD_CONFIG"), "Optional config file (.yaml/.yml/.json/.toml)")
	cacheRoot := flag.String("cache-root", "", "Cache root directory (default: shared hub cache layout)")
	device := flag.String("device", "", "Device preference: auto|cpu|cuda|dml|coreml")
	enableVulkan := flag.Bool("enable-vulkan", false, "Allow the vulkan backend on non-NVIDIA GPUs")
	flag.Parse()

	logger := zerolog.New(os.Stderr).With().Timestamp().Str("svc", "hubd").Logger()

	var cfg config.Config
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			logger.Fatal().Err(err).Str("path", *configPath).Msg("load config")
		}
	}
	cfg = applyOverrides(cfg, *addr, *cacheRoot, *device, *enableVulkan)

	root := cfg.CacheRoot
	if root == "" {
		var err error
		root, err = cache.ResolveCacheRoot()
		if err != nil {
			logger.Fatal().Err(err).Msg("resolve cache root")
		}
	}
	store, err := cache.NewStore(root, logger)
	if err != nil {
		logger.Fatal().Err(err).Str("root", root).Msg("open cache store")
	}

	ttl := hub.DefaultListingTTL
	if cfg.ListingTTLHours > 0 {
		ttl = time.Duration(cfg.ListingTTLHours) * time.Hour
	}
	listings := hub.NewListingCache(store.DiscoveryCacheDir(), ttl)
	var hubOpts []hub.Option
	if cfg.HubEndpoint != "" {
		hubOpts = append(hubOpts, hub.WithEndpoint(cfg.HubEndpoint))
	}
	if cfg.Token != "" {
		hubOpts = append(hubOpts, hub.WithToken(cfg.Token))
	}
	client := hub.NewClient(listings, logger, hubOpts...)

	dl := download.New(client.Token(), logger)
	puller := download.NewPuller(client, store, dl, logger)

	host := backend.ProbeHost(backend.NewGPUProber(), logger)
	pref := types.DeviceAuto
	if cfg.Device != "" {
		pref = types.DevicePreference(cfg.Device)
	}
	chain := backend.BuildFallbackChain(host, pref, backend.ChainOptions{EnableVulkan: cfg.EnableVulkan})
	acquirer := backend.NewAcquirer(store.Root(), cfg.RuntimeBaseURL, dl, logger)
	resolver := backend.NewResolver(backend.NewStubEngine(), acquirer, host, chain, logger)

	mgr := manager.NewWithConfig(manager.ManagerConfig{
		Hub:      client,
		Engine:   discovery.NewEngine(client, logger),
		Store:    store,
		Puller:   puller,
		Backends: resolver,
		Logger:   logger,
	})

	httpapi.SetLogger(logger)
	if origins := splitCSV(os.Getenv("HUBD_CORS_ORIGINS")); len(origins) > 0 {
		httpapi.SetCORSOptions(true, origins,
			splitCSV(os.Getenv("HUBD_CORS_METHODS")),
			splitCSV(os.Getenv("HUBD_CORS_HEADERS")))
	}
	baseCtx, cancelBase := context.WithCancel(context.Background())
	httpapi.SetBaseContext(baseCtx)

	srv := &http.Server{Addr: cfg.Addr, Handler: httpapi.NewMux(mgr)}
	go func() {
		logger.Info().Str("addr", cfg.Addr).Str("cache_root", store.Root()).Msg("hubd listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	// Graceful shutdown (Ctrl+C / SIGTERM)
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	cancelBase()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn().Err(err).Msg("graceful shutdown error")
	}
}

// applyOverrides layers command-line values over the file config. An empty
// value means the flag was not set and the file value stands; defaults fill
// only what remains unset after both layers.
func applyOverrides(cfg config.Config, addr, cacheRoot, device string, enableVulkan bool) config.Config {
	if addr != "" {
		cfg.Addr = addr
	}
	if cacheRoot != "" {
		cfg.CacheRoot = cacheRoot
	}
	if device != "" {
		cfg.Device = device
	}
	if enableVulkan {
		cfg.EnableVulkan = true
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	return cfg
}

// splitCSV splits a comma-separated list, trimming blanks.
func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
