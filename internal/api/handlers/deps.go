// Package handlers implements the Decision API's endpoint logic (C9),
// each handler constructed against the narrow store/classifier/rules
// dependencies it needs, mirroring the teacher's per-handler
// constructor-injection shape (handlers.NewAuthHandler, etc.).
package handlers

import (
	"github.com/aegis-gateway/aegis/internal/browser"
	"github.com/aegis-gateway/aegis/internal/classifier"
	"github.com/aegis-gateway/aegis/internal/config"
	"github.com/aegis-gateway/aegis/internal/logging"
	"github.com/aegis-gateway/aegis/internal/profilemgr"
	"github.com/aegis-gateway/aegis/internal/registry"
	"github.com/aegis-gateway/aegis/internal/rules"
	"github.com/aegis-gateway/aegis/internal/store"
)

// Deps bundles everything the Decision API's handlers read from or
// write to.
type Deps struct {
	Store      *store.Store
	Profiles   *profilemgr.Manager
	Classifier *classifier.Pipeline
	Engine     *rules.Engine
	Registry   *registry.Registry
	Cfg        *config.Config
	Log        logging.Logger
}

// ManifestBuilder builds a browser.Manifest from deps' registry and
// config, or nil if deps.Registry hasn't been wired (e.g. in handler
// tests that don't exercise /ext/manifest.json).
func (d *Deps) ManifestBuilder() *browser.Builder {
	if d.Registry == nil {
		return nil
	}
	failMode := browser.FailClosed
	if d.Cfg.Browser.FailMode == "open" {
		failMode = browser.FailOpen
	}
	return browser.NewBuilder(d.Registry, d.Store, failMode, d.Cfg.Browser.ResponseTimeout)
}
