package server

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/inkhouse/scribe/internal/auth"
	"github.com/inkhouse/scribe/internal/pipeline"
	"github.com/inkhouse/scribe/internal/quota"
	"github.com/inkhouse/scribe/internal/telemetry"
)

// Verifier validates bearer credentials.
type Verifier interface {
	Verify(ctx context.Context, raw string) (auth.Identity, error)
}

// Admitter decides whether a caller may proceed past the quota.
type Admitter interface {
	Admit(ctx context.Context, key string, admin bool) (quota.Decision, error)
}

// Pipeline runs the research/writer generation sequence.
type Pipeline interface {
	Run(ctx context.Context, req pipeline.ConversationRequest) (pipeline.PipelineResult, error)
}

// GenerateHandler is the single inbound boundary: parse, authenticate,
// admit, orchestrate, respond.
type GenerateHandler struct {
	Auth        Verifier
	AuthEnabled bool
	Ledger      Admitter
	Pipeline    Pipeline
	Telemetry   *telemetry.Telemetry
	Logger      *log.Logger
}

func (h *GenerateHandler) Register(g *echo.Group) {
	g.POST("/generate", h.generate)
}

func (h *GenerateHandler) generate(c echo.Context) error {
	var req pipeline.ConversationRequest
	if err := c.Bind(&req); err != nil {
		h.Telemetry.RecordRequest("validation")
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	// shape check happens before any credential or network work
	if err := req.Validate(); err != nil {
		h.Telemetry.RecordRequest("validation")
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()

	key, admin, err := h.admitKey(ctx, c)
	if err != nil {
		return err
	}

	dec, err := h.Ledger.Admit(ctx, key, admin)
	if err != nil {
		h.Logger.Printf("quota store error for %s: %v", key, err)
		h.Telemetry.RecordRequest("internal")
		return echo.NewHTTPError(http.StatusInternalServerError, "admission check failed")
	}
	if !dec.Allowed {
		h.Telemetry.RecordQuotaRejection()
		h.Telemetry.RecordRequest("quota")
		retry := int64(dec.RetryAfter.Round(time.Second) / time.Second)
		if retry < 1 {
			retry = 1
		}
		c.Response().Header().Set("Retry-After", strconv.FormatInt(retry, 10))
		return c.JSON(http.StatusTooManyRequests, QuotaExceededResponse{
			Error:             "quota exceeded",
			RetryAfterSeconds: retry,
		})
	}

	res, err := h.Pipeline.Run(ctx, req)
	if err != nil {
		h.Logger.Printf("pipeline failed for %s: %v", key, err)
		h.Telemetry.RecordRequest("upstream")
		var ue *pipeline.UpstreamError
		if errors.As(err, &ue) {
			return echo.NewHTTPError(http.StatusInternalServerError, ue.Stage+" stage failed")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "generation failed")
	}

	h.Telemetry.RecordRequest("ok")
	return c.JSON(http.StatusOK, GenerateResponse{
		Text:      res.Text,
		Rounds:    res.Rounds,
		Remaining: dec.Remaining,
	})
}

// admitKey resolves the caller's quota key. With auth enabled the key is the
// verified subject and admin status comes from the credential alone; with
// auth disabled callers are anonymous and keyed by network address, never
// admin.
func (h *GenerateHandler) admitKey(ctx context.Context, c echo.Context) (string, bool, error) {
	if !h.AuthEnabled {
		return quota.AddressKey(c.RealIP()), false, nil
	}

	raw := auth.BearerFromHeader(c.Request().Header.Get(echo.HeaderAuthorization))
	id, err := h.Auth.Verify(ctx, raw)
	if err != nil {
		switch {
		// an unreachable key set is an infrastructure fault on our side,
		// not a bad credential, so it maps to 500 rather than 401
		case errors.Is(err, auth.ErrKeySetUnavailable):
			h.Logger.Printf("key set fetch failed: %v", err)
			h.Telemetry.RecordRequest("internal")
			return "", false, echo.NewHTTPError(http.StatusInternalServerError, "authentication unavailable")
		case errors.Is(err, auth.ErrTokenExpired):
			h.Telemetry.RecordRequest("auth")
			return "", false, echo.NewHTTPError(http.StatusUnauthorized, "token expired, please re-authenticate")
		case errors.Is(err, auth.ErrMissingToken):
			h.Telemetry.RecordRequest("auth")
			return "", false, echo.NewHTTPError(http.StatusUnauthorized, "missing bearer token")
		default:
			h.Telemetry.RecordRequest("auth")
			return "", false, echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
		}
	}
	return quota.IdentityKey(id.Subject), id.Admin, nil
}
