// Package httptransport is the reference wiring for the guard engine: a thin
// chi surface that shows how a request handler is expected to consult each
// guard. Business endpoints of the real platform live outside this module.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"

	"bulwark/internal/audit"
	"bulwark/internal/guard/credit"
	"bulwark/internal/guard/injection"
	"bulwark/internal/guard/inputcheck"
	"bulwark/internal/guard/purchase"
	"bulwark/internal/guard/ratelimit"
	"bulwark/internal/guard/session"
	"bulwark/internal/identity"
	"bulwark/internal/integrity"
	"bulwark/internal/sweep"
	"bulwark/pkg/platform/httputil"
	"bulwark/pkg/requestcontext"
)

type identityKey struct{}

func withIdentity(ctx context.Context, caller identity.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, caller)
}

func callerFrom(ctx context.Context) (identity.Identity, bool) {
	caller, ok := ctx.Value(identityKey{}).(identity.Identity)
	return caller, ok && caller.UserID != ""
}

// Handler delegates every request to the guard services.
type Handler struct {
	scanner   *injection.Scanner
	limiter   *ratelimit.Limiter
	credits   *credit.Guard
	purchases *purchase.Tracker
	sessions  *session.Validator
	checker   *inputcheck.Checker
	signer    *integrity.Signer
	sweeper   *sweep.Sweeper
	events    audit.EventRecorder
	logger    *slog.Logger
}

func NewHandler(
	scanner *injection.Scanner,
	limiter *ratelimit.Limiter,
	credits *credit.Guard,
	purchases *purchase.Tracker,
	sessions *session.Validator,
	checker *inputcheck.Checker,
	signer *integrity.Signer,
	sweeper *sweep.Sweeper,
	events audit.EventRecorder,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		scanner:   scanner,
		limiter:   limiter,
		credits:   credits,
		purchases: purchases,
		sessions:  sessions,
		checker:   checker,
		signer:    signer,
		sweeper:   sweeper,
		events:    events,
		logger:    logger,
	}
}

// guardCommon runs the checks shared by every authenticated endpoint: the
// per-action rate limit and the session fingerprint observation. It writes
// the response itself when the request must stop.
func (h *Handler) guardCommon(w http.ResponseWriter, r *http.Request, action string) (identity.Identity, string, bool) {
	ctx := r.Context()
	caller, ok := callerFrom(ctx)
	if !ok {
		httputil.WriteError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return identity.Identity{}, "", false
	}

	decision := h.limiter.CheckLimit(ctx, action, caller)
	if !decision.Allowed {
		w.Header().Set("Retry-After", decision.RetryAfter.String())
		httputil.WriteError(w, http.StatusTooManyRequests, "rate_limited", ratelimit.DeniedReason)
		return identity.Identity{}, "", false
	}

	obs := h.sessions.Validate(ctx, caller, requestcontext.UserAgent(ctx), requestcontext.ClientIP(ctx))
	return caller, obs.Warning, true
}

type chatRequest struct {
	Message string `json:"message"`
}

type chatResponse struct {
	Message        string `json:"message"`
	SessionWarning string `json:"session_warning,omitempty"`
}

// handleChat guards a chat-send action: rate limit, injection scan, then
// unconditional sanitization of whatever survives.
func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, warning, ok := h.guardCommon(w, r, "chat_message")
	if !ok {
		return
	}
	req, ok := httputil.Decode[chatRequest](w, r)
	if !ok {
		return
	}

	if det := h.scanner.Scan(ctx, req.Message, caller); det != nil && det.Blocked {
		httputil.WriteError(w, http.StatusUnprocessableEntity, "message_blocked",
			"Your message was blocked by content security filters.")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, chatResponse{
		Message:        injection.Sanitize(req.Message, caller),
		SessionWarning: warning,
	})
}

type purchaseRequest struct {
	ListingID string `json:"listing_id"`
	Amount    int64  `json:"amount"`
}

type purchaseResponse struct {
	PurchaseID     string `json:"purchase_id"`
	DownloadToken  string `json:"download_token"`
	SessionWarning string `json:"session_warning,omitempty"`
}

// handlePurchase guards a purchase action: rate limit, credit operation
// shape, purchase velocity, then a signed download token for the buyer.
func (h *Handler) handlePurchase(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, warning, ok := h.guardCommon(w, r, "purchase")
	if !ok {
		return
	}
	req, ok := httputil.Decode[purchaseRequest](w, r)
	if !ok {
		return
	}
	if req.ListingID == "" {
		httputil.WriteError(w, http.StatusBadRequest, "bad_request", "listing_id is required")
		return
	}

	if result := h.credits.ValidateOperation(ctx, credit.OpConsume, req.Amount, caller); !result.Valid {
		httputil.WriteError(w, http.StatusUnprocessableEntity, "invalid_credit_operation", result.Reason)
		return
	}
	if result := h.purchases.TrackPurchase(ctx, req.Amount, caller); !result.Allowed {
		httputil.WriteError(w, http.StatusTooManyRequests, "purchase_velocity", result.Reason)
		return
	}

	// The actual ledger write belongs to the billing collaborator; this
	// reference wiring only demonstrates the token hand-off.
	purchaseID := requestcontext.RequestID(ctx)
	token, err := h.signer.IssueDownloadToken(ctx, caller.UserID, req.ListingID, purchaseID)
	if err != nil {
		h.logger.ErrorContext(ctx, "download token issuance failed", "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "internal_error", "")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, purchaseResponse{
		PurchaseID:     purchaseID,
		DownloadToken:  token,
		SessionWarning: warning,
	})
}

type downloadResponse struct {
	ListingID  string `json:"listing_id"`
	PurchaseID string `json:"purchase_id"`
}

// handleDownload validates a download token for the requesting user.
func (h *Handler) handleDownload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, _, ok := h.guardCommon(w, r, "module_download")
	if !ok {
		return
	}

	token := r.URL.Query().Get("token")
	validation := h.signer.ValidateDownloadToken(ctx, token, caller.UserID)
	if !validation.Valid {
		if h.events != nil {
			h.events.Record(ctx, audit.SecurityEvent{
				UserID:   caller.UserID,
				Type:     audit.EventTokenRejected,
				Severity: audit.SeverityHigh,
				Details:  map[string]any{"reason": validation.Error},
			})
		}
		httputil.WriteError(w, http.StatusForbidden, "invalid_token", validation.Error)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, downloadResponse{
		ListingID:  validation.ListingID,
		PurchaseID: validation.PurchaseID,
	})
}

type urlCheckRequest struct {
	URL string `json:"url"`
}

type pathCheckRequest struct {
	Path string `json:"path"`
}

func (h *Handler) handleURLCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, _, ok := h.guardCommon(w, r, "api_call")
	if !ok {
		return
	}
	req, ok := httputil.Decode[urlCheckRequest](w, r)
	if !ok {
		return
	}
	result := h.checker.ValidateExternalURL(ctx, req.URL, caller)
	if !result.Valid {
		httputil.WriteError(w, http.StatusUnprocessableEntity, "url_rejected", result.Reason)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"valid": true})
}

func (h *Handler) handlePathCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, _, ok := h.guardCommon(w, r, "api_call")
	if !ok {
		return
	}
	req, ok := httputil.Decode[pathCheckRequest](w, r)
	if !ok {
		return
	}
	result := h.checker.ValidateFilePath(ctx, req.Path, caller)
	if !result.Valid {
		httputil.WriteError(w, http.StatusUnprocessableEntity, "path_rejected", result.Reason)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"valid": true})
}

// handleSweep triggers a maintenance sweep out of schedule. Service-key
// protected.
func (h *Handler) handleSweep(w http.ResponseWriter, r *http.Request) {
	report := h.sweeper.RunSweep(r.Context())
	httputil.WriteJSON(w, http.StatusOK, map[string]int{
		"credit_audits":              report.CreditAudits,
		"anomalies_detected":         report.AnomaliesDetected,
		"rate_limit_windows_cleaned": report.RateLimitWindowsCleaned,
		"events_flushed":             report.EventsFlushed,
	})
}

func (h *Handler) handleHealthz(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
