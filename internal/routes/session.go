package routes

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	. "stream-access-guard/internal/config"
	"stream-access-guard/internal/engine"
	"stream-access-guard/internal/schedule"
	"stream-access-guard/internal/storage"
	"stream-access-guard/internal/utils"
)

type admissionRequest struct {
	UserID   string `json:"user_id" binding:"required"`
	DeviceID string `json:"device_id" binding:"required"`
	// Source address of the playback session. Defaults to the caller's
	// address when the media server does not forward one.
	SourceIP string `json:"source_ip"`
	// Optional RFC3339 evaluation instant, defaults to now. The engine is a
	// pure function of this value.
	RequestTime string `json:"request_time"`
}

type admissionResponse struct {
	Allowed  bool   `json:"allowed"`
	Reason   string `json:"reason"`
	DeviceID string `json:"device_id"`
}

// SessionRoutes registers the admission endpoint the media-server hook calls
// for every playback session.
func SessionRoutes(r *gin.RouterGroup) {
	r.POST("/check", func(c *gin.Context) {
		var req admissionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, ErrInvalidRequest)
			return
		}

		sourceIP := req.SourceIP
		if sourceIP == "" {
			sourceIP = c.ClientIP()
		}

		now := time.Now()
		if req.RequestTime != "" {
			parsed, err := time.Parse(time.RFC3339, req.RequestTime)
			if err != nil {
				AbortWithError(c, ErrInvalidParameter)
				return
			}
			now = parsed
		}

		err, provider := GetStorageProvider(c)
		if err != nil {
			AbortWithError(c, ErrStoreUnavailable)
			return
		}
		ctx := c.Request.Context()

		device, err := provider.GetDevice(ctx, req.UserID, req.DeviceID)
		switch {
		case errors.Is(err, storage.ErrNotFound):
			// First observed session for this device: park it pending and
			// surface it for approval. The notification is a route-layer
			// side effect, the engine only classifies.
			slog.Info("New device detected, adding to pending pool",
				"device_id", req.DeviceID, "user_id", req.UserID)

			newDevice := storage.Device{
				DeviceID: req.DeviceID,
				UserID:   req.UserID,
				ClientIP: sourceIP,
				Status:   storage.DeviceStatusPending,
			}
			if err := provider.CreateDevice(ctx, newDevice); err != nil {
				// A concurrent first admission for the same device may have
				// won the insert. Re-read and continue with the stored
				// record; only a store that still cannot answer is fatal.
				device, err = provider.GetDevice(ctx, req.UserID, req.DeviceID)
				if err != nil {
					slog.Error("Failed to create pending device", "device_id", req.DeviceID, "error", err)
					AbortWithError(c, ErrStoreUnavailable)
					return
				}
			} else {
				if notifier := GetNotifier(c); notifier != nil {
					approveURL := utils.JoinURL(Cfg.BaseURL, "/api/admin/devices")
					notifier.DevicePending(req.UserID, req.DeviceID, sourceIP, approveURL)
				}
				device = &newDevice
			}

		case err != nil:
			// The store could not answer: cannot evaluate, fail closed.
			AbortWithError(c, ErrStoreUnavailable)
			return
		}

		pref, err := provider.GetUserPreference(ctx, req.UserID)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			AbortWithError(c, ErrStoreUnavailable)
			return
		}

		allRules, err := provider.GetTimeRules(ctx, req.UserID)
		if err != nil {
			AbortWithError(c, ErrStoreUnavailable)
			return
		}

		globalBlock, err := provider.GetGlobalDefaultBlock(ctx)
		if err != nil {
			AbortWithError(c, ErrStoreUnavailable)
			return
		}

		verdict := engine.Evaluate(engine.Input{
			Device:             device,
			Preference:         pref,
			Rules:              schedule.ResolveRules(allRules, req.DeviceID),
			SourceIP:           sourceIP,
			Now:                now,
			GlobalDefaultBlock: globalBlock,
		})

		// Policy outcomes are verdicts, not errors; log for audit.
		slog.Info("Session admission evaluated",
			"user_id", req.UserID,
			"device_id", req.DeviceID,
			"source_ip", sourceIP,
			"allowed", verdict.Allowed,
			"reason", verdict.Reason,
		)

		c.JSON(http.StatusOK, admissionResponse{
			Allowed:  verdict.Allowed,
			Reason:   string(verdict.Reason),
			DeviceID: req.DeviceID,
		})
	})
}
