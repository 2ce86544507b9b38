package routes

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"stream-access-guard/internal/netaccess"
	"stream-access-guard/internal/storage"
)

type preferenceRequest struct {
	// Tri-state: absent/null inherits the global default.
	DefaultBlock   *bool    `json:"default_block"`
	NetworkPolicy  string   `json:"network_policy" binding:"required,oneof=both lan wan"`
	IPAccessPolicy string   `json:"ip_access_policy" binding:"required,oneof=all restricted"`
	AllowedIPs     []string `json:"allowed_ips"`
}

type globalDefaultRequest struct {
	DefaultBlock *bool `json:"default_block" binding:"required"`
}

// PreferenceRoutes registers the per-user policy API.
func PreferenceRoutes(r *gin.RouterGroup) {

	r.GET("/:user_id", func(c *gin.Context) {
		err, provider := GetStorageProvider(c)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		pref, err := provider.GetUserPreference(c.Request.Context(), c.Param("user_id"))
		if errors.Is(err, storage.ErrNotFound) {
			// No stored record: report the conservative defaults the engine
			// would apply.
			defaults := storage.DefaultUserPreference(c.Param("user_id"))
			c.JSON(http.StatusOK, gin.H{"preference": defaults, "stored": false})
			return
		}
		if err != nil {
			AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"preference": pref, "stored": true})
	})

	r.PUT("/:user_id", func(c *gin.Context) {
		var req preferenceRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, ErrInvalidRequest)
			return
		}

		// Reject-before-write: every allow-list entry must parse, and a
		// restricted policy with an empty list is refused so "restricted"
		// can never silently mean "unrestricted".
		if err := netaccess.ValidateAllowList(req.AllowedIPs); err != nil {
			AbortWithHTTPError(c, http.StatusBadRequest, err, "INVALID_ALLOW_LIST")
			return
		}
		if req.IPAccessPolicy == string(storage.IPAccessPolicyRestricted) && len(req.AllowedIPs) == 0 {
			AbortWithError(c, ErrEmptyRestrictedList)
			return
		}

		pref := storage.UserPreference{
			UserID:         c.Param("user_id"),
			DefaultBlock:   req.DefaultBlock,
			NetworkPolicy:  storage.NetworkPolicy(req.NetworkPolicy),
			IPAccessPolicy: storage.IPAccessPolicy(req.IPAccessPolicy),
			AllowedIPs:     storage.IPList(req.AllowedIPs),
		}

		err, provider := GetStorageProvider(c)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		if err := provider.UpsertUserPreference(c.Request.Context(), pref); err != nil {
			AbortWithError(c, err)
			return
		}

		slog.Info("User preference updated", "user_id", pref.UserID,
			"network_policy", pref.NetworkPolicy, "ip_access_policy", pref.IPAccessPolicy)
		c.JSON(http.StatusOK, gin.H{"preference": pref})
	})

	r.GET("/settings/default-block", func(c *gin.Context) {
		err, provider := GetStorageProvider(c)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		block, err := provider.GetGlobalDefaultBlock(c.Request.Context())
		if err != nil {
			AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"default_block": block})
	})

	r.PUT("/settings/default-block", func(c *gin.Context) {
		var req globalDefaultRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, ErrInvalidRequest)
			return
		}
		err, provider := GetStorageProvider(c)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		if err := provider.SetGlobalDefaultBlock(c.Request.Context(), *req.DefaultBlock); err != nil {
			AbortWithError(c, err)
			return
		}
		slog.Info("Global default block updated", "default_block", *req.DefaultBlock)
		c.JSON(http.StatusOK, gin.H{"default_block": *req.DefaultBlock})
	})
}
