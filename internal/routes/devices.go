package routes

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	qrcode "github.com/skip2/go-qrcode"

	. "stream-access-guard/internal/config"
	"stream-access-guard/internal/storage"
	"stream-access-guard/internal/tempaccess"
	"stream-access-guard/internal/utils"
)

const qrImageSize = 512

type grantRequest struct {
	DurationMinutes int `json:"duration_minutes" binding:"required"`
}

type renameRequest struct {
	Name string `json:"name" binding:"required"`
}

// DeviceRoutes registers the admin device management API.
func DeviceRoutes(r *gin.RouterGroup) {

	// List devices, optionally filtered by status (default: pending).
	r.GET("/", func(c *gin.Context) {
		err, provider := GetStorageProvider(c)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		status := storage.DeviceStatus(c.DefaultQuery("status", string(storage.DeviceStatusPending)))
		switch status {
		case storage.DeviceStatusPending, storage.DeviceStatusApproved, storage.DeviceStatusRejected:
		default:
			AbortWithError(c, ErrInvalidParameter)
			return
		}

		devices, err := provider.ListDevices(c.Request.Context(), status)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"devices": devices})
	})

	r.GET("/user/:user_id", func(c *gin.Context) {
		err, provider := GetStorageProvider(c)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		devices, err := provider.ListUserDevices(c.Request.Context(), c.Param("user_id"))
		if err != nil {
			AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"devices": devices})
	})

	r.POST("/:user_id/:device_id/approve", setStatusHandler(storage.DeviceStatusApproved))
	r.POST("/:user_id/:device_id/reject", setStatusHandler(storage.DeviceStatusRejected))

	r.POST("/:user_id/:device_id/rename", func(c *gin.Context) {
		var req renameRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, ErrInvalidRequest)
			return
		}
		err, provider := GetStorageProvider(c)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		if err := provider.RenameDevice(c.Request.Context(), c.Param("user_id"), c.Param("device_id"), req.Name); err != nil {
			AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "renamed"})
	})

	r.DELETE("/:user_id/:device_id", func(c *gin.Context) {
		err, provider := GetStorageProvider(c)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		if err := provider.DeleteDevice(c.Request.Context(), c.Param("user_id"), c.Param("device_id")); err != nil {
			AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "deleted"})
	})

	// Grant temporary access. The override lets an operator unblock a device
	// immediately without touching any of its other policies.
	r.POST("/:user_id/:device_id/grant", func(c *gin.Context) {
		var req grantRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, ErrInvalidRequest)
			return
		}

		err, provider := GetStorageProvider(c)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		ctx := c.Request.Context()
		userID, deviceID := c.Param("user_id"), c.Param("device_id")

		device, err := provider.GetDevice(ctx, userID, deviceID)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		if err := tempaccess.Grant(device, req.DurationMinutes, time.Now()); err != nil {
			AbortWithError(c, err)
			return
		}
		if err := provider.SetTemporaryAccess(ctx, userID, deviceID,
			device.TempAccessGrantedAt, device.TempAccessUntil, device.TempAccessMinutes); err != nil {
			AbortWithError(c, err)
			return
		}

		slog.Info("Temporary access granted",
			"user_id", userID, "device_id", deviceID,
			"minutes", req.DurationMinutes, "until", device.TempAccessUntil)
		c.JSON(http.StatusOK, gin.H{
			"status": "granted",
			"until":  device.TempAccessUntil.Format(time.RFC3339),
		})
	})

	r.POST("/:user_id/:device_id/revoke", func(c *gin.Context) {
		err, provider := GetStorageProvider(c)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		ctx := c.Request.Context()
		userID, deviceID := c.Param("user_id"), c.Param("device_id")

		device, err := provider.GetDevice(ctx, userID, deviceID)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		tempaccess.Revoke(device)
		if err := provider.SetTemporaryAccess(ctx, userID, deviceID,
			device.TempAccessGrantedAt, nil, device.TempAccessMinutes); err != nil {
			AbortWithError(c, err)
			return
		}

		slog.Info("Temporary access revoked", "user_id", userID, "device_id", deviceID)
		c.JSON(http.StatusOK, gin.H{"status": "revoked"})
	})

	// QR image of the approval deep-link, so an operator can approve from a
	// phone straight out of the notification mail.
	r.GET("/:user_id/:device_id/qr", func(c *gin.Context) {
		approveURL := utils.JoinURL(Cfg.BaseURL,
			fmt.Sprintf("/api/admin/devices/%s/%s/approve", c.Param("user_id"), c.Param("device_id")))

		qr, err := qrcode.Encode(approveURL, qrcode.Medium, qrImageSize)
		if err != nil {
			slog.Warn("Failed to generate QR code", "error", err)
			AbortWithError(c, ErrInternalServer)
			return
		}
		c.Data(http.StatusOK, "image/png", qr)
	})

	// "Scheduled" badge aggregate, served from the invalidated cache. Not
	// used for admission decisions.
	r.GET("/user/:user_id/has-schedule", func(c *gin.Context) {
		err, provider := GetStorageProvider(c)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		has, err := provider.HasSchedule(c.Request.Context(), c.Param("user_id"))
		if err != nil {
			AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"has_schedule": has})
	})
}

func setStatusHandler(status storage.DeviceStatus) gin.HandlerFunc {
	return func(c *gin.Context) {
		err, provider := GetStorageProvider(c)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		approvedBy := "admin"
		if role := c.GetString("adminRole"); role != "" {
			approvedBy = role
		}

		userID, deviceID := c.Param("user_id"), c.Param("device_id")
		if err := provider.UpdateDeviceStatus(c.Request.Context(), userID, deviceID, status, &approvedBy); err != nil {
			AbortWithError(c, err)
			return
		}

		slog.Info("Device status updated", "user_id", userID, "device_id", deviceID, "status", status)
		c.JSON(http.StatusOK, gin.H{"status": string(status)})
	}
}
