package routes

import (
	"log/slog"
	"net/http"
	"regexp"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"stream-access-guard/internal/schedule"
	"stream-access-guard/internal/storage"
)

var reTimeOfDay = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterValidation("timeofday", func(fl validator.FieldLevel) bool {
			return reTimeOfDay.MatchString(fl.Field().String())
		})
	}
}

type ruleRequest struct {
	UserID    string  `json:"user_id" binding:"required"`
	DeviceID  *string `json:"device_id"`
	DayOfWeek *int    `json:"day_of_week" binding:"required,gte=0,lte=6"`
	StartTime string  `json:"start_time" binding:"required,timeofday"`
	EndTime   string  `json:"end_time" binding:"required,timeofday"`
	Enabled   *bool   `json:"enabled"`
}

type presetRequest struct {
	UserID   string  `json:"user_id" binding:"required"`
	DeviceID *string `json:"device_id"`
	Preset   string  `json:"preset" binding:"required"`
}

func (req *ruleRequest) toRule(id string) storage.TimeRule {
	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}
	return storage.TimeRule{
		ID:        id,
		UserID:    req.UserID,
		DeviceID:  req.DeviceID,
		DayOfWeek: *req.DayOfWeek,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		Enabled:   enabled,
	}
}

// RuleRoutes registers the admin time-rule API. Every write is validated
// against the stored rule set before it touches the database, so a rejected
// rule can never corrupt an existing schedule.
func RuleRoutes(r *gin.RouterGroup) {

	r.GET("/user/:user_id", func(c *gin.Context) {
		err, provider := GetStorageProvider(c)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		rules, err := provider.GetTimeRules(c.Request.Context(), c.Param("user_id"))
		if err != nil {
			AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"rules": rules})
	})

	r.POST("/", func(c *gin.Context) {
		var req ruleRequest
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

		rule := req.toRule(uuid.NewString())

		existing, err := provider.GetTimeRules(ctx, rule.UserID)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		if err := schedule.ValidateAgainstExisting(rule, existing); err != nil {
			AbortWithError(c, err)
			return
		}

		if err := provider.CreateTimeRule(ctx, rule); err != nil {
			AbortWithError(c, err)
			return
		}
		slog.Info("Time rule created", "rule_id", rule.ID, "user_id", rule.UserID, "day", rule.DayOfWeek)
		c.JSON(http.StatusCreated, gin.H{"rule": rule})
	})

	r.PUT("/:rule_id", func(c *gin.Context) {
		var req ruleRequest
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

		stored, err := provider.GetTimeRule(ctx, c.Param("rule_id"))
		if err != nil {
			AbortWithError(c, err)
			return
		}
		// A rule never moves between users, and overlap validation must run
		// against the stored owner's rule set, not whatever the body claims.
		if req.UserID != stored.UserID {
			AbortWithError(c, ErrInvalidParameter)
			return
		}

		rule := req.toRule(stored.ID)

		existing, err := provider.GetTimeRules(ctx, stored.UserID)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		if err := schedule.ValidateAgainstExisting(rule, existing); err != nil {
			AbortWithError(c, err)
			return
		}

		if err := provider.UpdateTimeRule(ctx, rule); err != nil {
			AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"rule": rule})
	})

	r.DELETE("/:rule_id", func(c *gin.Context) {
		err, provider := GetStorageProvider(c)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		if err := provider.DeleteTimeRule(c.Request.Context(), c.Param("rule_id")); err != nil {
			AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "deleted"})
	})

	r.POST("/:rule_id/toggle", func(c *gin.Context) {
		err, provider := GetStorageProvider(c)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		ctx := c.Request.Context()
		ruleID := c.Param("rule_id")

		rule, err := provider.GetTimeRule(ctx, ruleID)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		// Re-enabling must not introduce an overlap that was created while
		// the rule was disabled.
		if !rule.Enabled {
			existing, err := provider.GetTimeRules(ctx, rule.UserID)
			if err != nil {
				AbortWithError(c, err)
				return
			}
			candidate := *rule
			candidate.Enabled = true
			if err := schedule.ValidateAgainstExisting(candidate, existing); err != nil {
				AbortWithError(c, err)
				return
			}
		}

		if err := provider.SetTimeRuleEnabled(ctx, ruleID, !rule.Enabled); err != nil {
			AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"enabled": !rule.Enabled})
	})

	// Apply a named preset, replacing the scope's whole rule set atomically.
	r.POST("/preset", func(c *gin.Context) {
		var req presetRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, ErrInvalidRequest)
			return
		}

		rules, err := schedule.PresetRules(req.Preset, req.UserID, req.DeviceID)
		if err != nil {
			AbortWithError(c, ErrInvalidParameter)
			return
		}

		err, provider := GetStorageProvider(c)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		if err := provider.ReplaceTimeRules(c.Request.Context(), req.UserID, req.DeviceID, rules); err != nil {
			AbortWithError(c, err)
			return
		}

		slog.Info("Schedule preset applied", "preset", req.Preset, "user_id", req.UserID, "rules", len(rules))
		c.JSON(http.StatusOK, gin.H{"rules": rules})
	})

	r.GET("/presets", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"presets": schedule.PresetNames()})
	})
}
