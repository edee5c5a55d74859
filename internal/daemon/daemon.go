// Package daemon is Aegis's composition root: it wires the CA, Site
// Registry, Payload Extractor, Classifier, Rule Engine, Profile
// Manager, State Store, MITM Proxy, and Decision API together and
// runs them until the given context is cancelled. Grounded on the
// teacher's cmd/parenta/main.go wiring order (config -> storage ->
// services -> router -> signal-driven shutdown), generalized from its
// flat main() into a reusable entry point both aegisd and aegisctl's
// "run" subcommand call.
package daemon

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/aegis-gateway/aegis/internal/api"
	"github.com/aegis-gateway/aegis/internal/api/handlers"
	"github.com/aegis-gateway/aegis/internal/ca"
	"github.com/aegis-gateway/aegis/internal/classifier"
	"github.com/aegis-gateway/aegis/internal/config"
	"github.com/aegis-gateway/aegis/internal/extractor"
	"github.com/aegis-gateway/aegis/internal/logging"
	"github.com/aegis-gateway/aegis/internal/models"
	"github.com/aegis-gateway/aegis/internal/profilemgr"
	"github.com/aegis-gateway/aegis/internal/proxy"
	"github.com/aegis-gateway/aegis/internal/registry"
	"github.com/aegis-gateway/aegis/internal/rules"
	"github.com/aegis-gateway/aegis/internal/store"
)

// ShutdownGrace bounds how long the Decision API's graceful shutdown
// waits for in-flight requests before the process exits anyway.
const ShutdownGrace = 5 * time.Second

// Run builds every component from cfg and serves until ctx is
// cancelled (typically by a signal.NotifyContext in the caller).
func Run(ctx context.Context, cfg *config.Config, log logging.Logger) error {
	if err := os.MkdirAll(cfg.Storage.DataDir, 0o700); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	st, err := store.Open(ctx, filepath.Join(cfg.Storage.DataDir, "aegis.db"), log)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	authority, err := ca.LoadOrGenerate(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("load or generate CA: %w", err)
	}
	log.Info(ctx, "certificate authority ready", "install_hint", InstallHint())

	reg := registry.New()
	if err := reloadRegistry(ctx, reg, st, cfg); err != nil {
		return fmt.Errorf("initial registry load: %w", err)
	}

	extractors := extractor.NewRegistry()

	classifierPipeline := classifier.New(nil, log)
	if cfg.Classifier.MLModelPath != "" {
		log.Warn(ctx, "classifier.ml_model_path is set but no ML head implementation ships with this build; falling back to Tier-1/Tier-3 only", "path", cfg.Classifier.MLModelPath)
	}
	for _, path := range cfg.Classifier.RulePackPaths {
		n, err := classifierPipeline.KeywordManager().LoadRulePackFile(path, classifier.RuleSource{Name: path, Version: "configured"}, models.CategoryProfanity)
		if err != nil {
			log.Warn(ctx, "failed to load configured rule pack, continuing with bundled rules only", "path", path, "error", err)
			continue
		}
		log.Info(ctx, "loaded community rule pack", "path", path, "rule_count", n)
	}

	engine := rules.New()

	profiles := profilemgr.New(st, cfg.Profiles.ForbidUnrestricted, log)
	if err := profiles.Refresh(ctx); err != nil {
		return fmt.Errorf("initial profile resolution: %w", err)
	}
	go profiles.Watch(ctx)
	go profiles.PollSessionChanges(ctx, profilemgr.PollInterval)

	stateCache := proxy.NewStateCache(st)
	if err := stateCache.Refresh(ctx); err != nil {
		return fmt.Errorf("initial state cache refresh: %w", err)
	}
	go stateCache.Run(ctx, log)

	sweeper := store.NewSessionSweeper(st)
	go sweeper.Start(ctx)

	go runRegistryPoller(ctx, reg, st, cfg, log)

	proxySrv := proxy.New()
	proxySrv.Addr = fmt.Sprintf("%s:%d", cfg.Proxy.Host, cfg.Proxy.Port)
	proxySrv.CA = authority
	proxySrv.Registry = reg
	proxySrv.Extractor = extractors
	proxySrv.Classifier = classifierPipeline
	proxySrv.Engine = engine
	proxySrv.Profiles = profiles
	proxySrv.State = stateCache
	proxySrv.Events = st
	proxySrv.Log = log
	proxySrv.WarnMode = proxyWarnMode(cfg.Rules.ProxyWarnMode)

	go func() {
		if err := proxySrv.ListenAndServe(ctx); err != nil {
			log.Error(ctx, "mitm proxy stopped", "error", err)
		}
	}()

	deps := &handlers.Deps{
		Store:      st,
		Profiles:   profiles,
		Classifier: classifierPipeline,
		Engine:     engine,
		Registry:   reg,
		Cfg:        cfg,
		Log:        log,
	}
	apiAddr := fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port)
	apiSrv := &http.Server{
		Addr:    apiAddr,
		Handler: api.NewRouter(deps),
	}
	go func() {
		log.Info(ctx, "decision api listening", "addr", apiAddr)
		if err := apiSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error(ctx, "decision api stopped", "error", err)
		}
	}()

	<-ctx.Done()
	log.Info(ctx, "shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), ShutdownGrace)
	defer shutdownCancel()
	_ = apiSrv.Shutdown(shutdownCtx)
	_ = proxySrv.Close()
	sweeper.Stop()

	log.Info(ctx, "aegisd stopped")
	return nil
}

// reloadRegistry merges the bundled, custom, and (if enabled) remote
// site lists into reg, per spec.md §4.2's three-source merge.
func reloadRegistry(ctx context.Context, reg *registry.Registry, st *store.Store, cfg *config.Config) error {
	bundled, err := registry.LoadBundled()
	if err != nil {
		return fmt.Errorf("load bundled sites: %w", err)
	}
	custom, err := st.ListCustomSites(ctx)
	if err != nil {
		return fmt.Errorf("list custom sites: %w", err)
	}
	remote, err := registry.LoadRemote(cfg.Registry.RemoteEnabled, cfg.Registry.RemoteFeedURL)
	if err != nil {
		return fmt.Errorf("load remote sites: %w", err)
	}
	reg.Reload(bundled, custom, remote)
	return nil
}

// runRegistryPoller re-merges the registry on a fixed interval so
// dashboard edits to custom sites (and, if enabled, the remote feed)
// are picked up without a restart, mirroring StateCache's own
// polling-cache idiom.
func runRegistryPoller(ctx context.Context, reg *registry.Registry, st *store.Store, cfg *config.Config, log logging.Logger) {
	interval := time.Duration(cfg.Registry.PollSeconds) * time.Second
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := reloadRegistry(ctx, reg, st, cfg); err != nil {
				log.Error(ctx, "registry reload failed", "error", err)
			}
		}
	}
}

func proxyWarnMode(mode string) rules.ProxyWarnMode {
	if mode == string(rules.WarnAsBlock) {
		return rules.WarnAsBlock
	}
	return rules.WarnAsAllow
}

// InstallHint returns the OS-specific note for trusting Aegis's root
// CA, per spec.md §4.1.
func InstallHint() string {
	switch runtime.GOOS {
	case "windows":
		return "certmgr.msc -> Trusted Root Certification Authorities -> Import root.crt"
	case "darwin":
		return "open root.crt in Keychain Access and trust it for SSL"
	default:
		return "trust root.crt via your distro's ca-certificates update tool"
	}
}
