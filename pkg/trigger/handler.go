package trigger

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"mercator-hq/custodian/pkg/config"
	"mercator-hq/custodian/pkg/lock"
	"mercator-hq/custodian/pkg/retention"
	"mercator-hq/custodian/pkg/storefactory"
)

// Route labels used for metrics.
const (
	RouteFleet = "fleet"
	RouteOrg   = "org"
)

// Recorder receives engine and trigger metrics.
type Recorder interface {
	retention.Recorder
	RecordTrigger(route string, code int)
}

// FleetResponse is the body of the fleet route.
type FleetResponse struct {
	OK      bool              `json:"ok"`
	DryRun  bool              `json:"dryRun"`
	Results retention.Results `json:"results"`
	Error   string            `json:"error,omitempty"`
}

// OrgResponse is the body of the per-tenant route.
type OrgResponse struct {
	OK      bool               `json:"ok"`
	DryRun  bool               `json:"dryRun"`
	Summary *retention.Summary `json:"summary,omitempty"`
	Error   string             `json:"error,omitempty"`
}

type errorResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

// Handler serves the retention trigger routes.
//
// Every request reads the current configuration from the holder, so the
// secret, dry-run flag and batch sizes follow config reloads. The locker is
// fixed at construction.
type Handler struct {
	holder   *config.Holder
	store    storefactory.Store
	locker   lock.Locker
	recorder Recorder
	logger   *slog.Logger
}

// NewHandler creates a trigger handler. A nil locker disables the lease.
func NewHandler(holder *config.Holder, store storefactory.Store, locker lock.Locker) *Handler {
	if locker == nil {
		locker = lock.Noop{}
	}
	return &Handler{
		holder: holder,
		store:  store,
		locker: locker,
		logger: slog.Default().With("component", "trigger"),
	}
}

// SetRecorder installs a metrics recorder.
func (h *Handler) SetRecorder(r Recorder) {
	h.recorder = r
}

// Register adds the fleet route at path and the per-tenant route at
// path + "/orgs/{orgID}". Both accept POST only.
func (h *Handler) Register(mux *http.ServeMux, path string) {
	mux.HandleFunc("POST "+path, h.ServeFleet)
	mux.HandleFunc("POST "+path+"/orgs/{orgID}", h.ServeOrg)
}

// ServeFleet runs the retention policy over every tenant.
func (h *Handler) ServeFleet(w http.ResponseWriter, r *http.Request) {
	cfg := h.holder.Load()
	if !h.authorize(w, r, cfg, RouteFleet) {
		return
	}

	ctx, cancel := runContext(r.Context(), cfg)
	defer cancel()

	lease, err := h.locker.Acquire(ctx, cfg.Lock.Key, cfg.Lock.TTL)
	if errors.Is(err, lock.ErrHeld) {
		h.logger.InfoContext(ctx, "fleet run skipped, lease held elsewhere", "key", cfg.Lock.Key)
		h.respond(w, RouteFleet, http.StatusConflict, errorResponse{Error: "retention run already in progress"})
		return
	}
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to acquire fleet lease", "error", err)
		h.respond(w, RouteFleet, http.StatusServiceUnavailable, errorResponse{Error: "lease unavailable"})
		return
	}
	defer func() {
		if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
			h.logger.WarnContext(ctx, "failed to release fleet lease", "error", err)
		}
	}()

	dryRun := cfg.Retention.DryRun
	engine := storefactory.NewEngine(cfg, h.store, h.recorder)

	start := time.Now()
	results, err := engine.Fleet.Run(ctx, retention.Options{DryRun: dryRun})
	if err != nil {
		h.logger.ErrorContext(ctx, "fleet run aborted",
			"error", err,
			"tenants_done", len(results),
			"duration", time.Since(start),
		)
		h.respond(w, RouteFleet, http.StatusInternalServerError, FleetResponse{
			DryRun:  dryRun,
			Results: results,
			Error:   err.Error(),
		})
		return
	}

	if results == nil {
		results = retention.Results{}
	}
	h.logger.InfoContext(ctx, "fleet run finished",
		"tenants", len(results),
		"failed", results.Failed(),
		"dry_run", dryRun,
		"duration", time.Since(start),
	)
	h.respond(w, RouteFleet, http.StatusOK, FleetResponse{OK: true, DryRun: dryRun, Results: results})
}

// ServeOrg runs the retention policy for the tenant named in the path,
// attributing the run to the actor header when present.
func (h *Handler) ServeOrg(w http.ResponseWriter, r *http.Request) {
	cfg := h.holder.Load()
	if !h.authorize(w, r, cfg, RouteOrg) {
		return
	}

	orgID := r.PathValue("orgID")
	var actorID *string
	if actor := r.Header.Get(cfg.Trigger.ActorHeader); actor != "" {
		actorID = &actor
	}

	ctx, cancel := runContext(r.Context(), cfg)
	defer cancel()

	exists, err := h.store.OrgExists(ctx, orgID)
	if err != nil {
		h.logger.ErrorContext(ctx, "tenant lookup failed", "org_id", orgID, "error", err)
		h.respond(w, RouteOrg, http.StatusInternalServerError, OrgResponse{Error: err.Error()})
		return
	}
	if !exists {
		h.respond(w, RouteOrg, http.StatusNotFound, OrgResponse{Error: "unknown org " + orgID})
		return
	}

	dryRun := cfg.Retention.DryRun
	engine := storefactory.NewEngine(cfg, h.store, h.recorder)

	summary, err := engine.Purger.PurgeOrgOnce(ctx, orgID, actorID, retention.Options{DryRun: dryRun})
	if err != nil {
		h.logger.ErrorContext(ctx, "tenant run failed", "org_id", orgID, "error", err)
		h.respond(w, RouteOrg, http.StatusInternalServerError, OrgResponse{DryRun: dryRun, Error: err.Error()})
		return
	}
	h.respond(w, RouteOrg, http.StatusOK, OrgResponse{OK: true, DryRun: dryRun, Summary: summary})
}

// authorize rejects the request unless a server secret is configured and the
// request carries it. Nothing else runs for a rejected request.
func (h *Handler) authorize(w http.ResponseWriter, r *http.Request, cfg *config.Config, route string) bool {
	if cfg.Trigger.Secret == "" {
		h.logger.ErrorContext(r.Context(), "trigger secret not configured")
		h.respond(w, route, http.StatusInternalServerError, errorResponse{Error: "trigger secret not configured"})
		return false
	}
	if !secretMatches(r.Header.Get(cfg.Trigger.SecretHeader), cfg.Trigger.Secret) {
		h.logger.WarnContext(r.Context(), "trigger rejected", "route", route, "remote_addr", r.RemoteAddr)
		h.respond(w, route, http.StatusForbidden, errorResponse{Error: "forbidden"})
		return false
	}
	return true
}

func (h *Handler) respond(w http.ResponseWriter, route string, code int, body any) {
	if h.recorder != nil {
		h.recorder.RecordTrigger(route, code)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Warn("failed to write response", "error", err)
	}
}

func runContext(parent context.Context, cfg *config.Config) (context.Context, context.CancelFunc) {
	if cfg.Retention.RunTimeout > 0 {
		return context.WithTimeout(parent, cfg.Retention.RunTimeout)
	}
	return context.WithCancel(parent)
}
