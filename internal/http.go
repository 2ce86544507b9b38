package app

import (
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"

	. "stream-access-guard/internal/config"
	"stream-access-guard/internal/notify"
	"stream-access-guard/internal/routes"
	"stream-access-guard/internal/schedule"
	"stream-access-guard/internal/storage"
	"stream-access-guard/internal/utils"
)

func securityHeaders(c *gin.Context) {
	c.Header("X-Content-Type-Options", "nosniff")
	c.Header("X-Frame-Options", "DENY")

	// Disable caching, verdicts and device state must always be fresh
	c.Header("Cache-Control", "no-store, no-cache, must-revalidate, proxy-revalidate")
	c.Header("Pragma", "no-cache")
	c.Header("Expires", "0")
	c.Next()
}

// Middleware to check if the IP is allowed.
func IPAccessControl(allowedCIDRs []string) gin.HandlerFunc {
	// Parse allowed CIDRs
	var parsedCIDRs []*net.IPNet

	// Allow local networks in debug mode
	if os.Getenv("GIN_MODE") != "release" {
		localhostCIDRs := []string{"127.0.0.1/8", "::1/128"}
		allowedCIDRs = append(allowedCIDRs, localhostCIDRs...)
	}

	for _, cidr := range allowedCIDRs {
		_, net, err := net.ParseCIDR(cidr)
		if err != nil {
			slog.Warn("Invalid CIDR", "cidr", cidr)
			continue
		}
		slog.Debug("Allowed CIDR", "cidr", cidr)
		parsedCIDRs = append(parsedCIDRs, net)
	}

	return func(c *gin.Context) {
		clientIP := net.ParseIP(c.ClientIP())
		if clientIP == nil {
			// Should not happen
			slog.Warn("Invalid client IP", "ip", c.ClientIP())
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
			return
		}

		for _, cidr := range parsedCIDRs {
			if cidr.Contains(clientIP) {
				c.Next()
				return
			}
		}
		slog.Warn("IP not allowed", "ip", clientIP)
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
	}
}

func HTTPServer() *gin.Engine {
	r := gin.Default()

	if Cfg.AllowedNetworks != "" {
		slog.Debug("Enabling IP access control", "allowed_networks", Cfg.AllowedNetworks)
		var allowedCIDRs []string

		for cidr := range strings.SplitSeq(Cfg.AllowedNetworks, ",") {
			// Remove spaces and ignore empty sets
			if cidr := strings.TrimSpace(cidr); cidr != "" {
				allowedCIDRs = append(allowedCIDRs, cidr)
			}
		}

		r.Use(IPAccessControl(allowedCIDRs))
	}
	r.Use(securityHeaders)

	r.GET("/config.json", func(c *gin.Context) {
		// Provide a initial config
		var clientCfg = gin.H{
			"BaseURL":    Cfg.BaseURL,
			"AppVersion": utils.GetVersion(),
		}

		c.JSON(http.StatusOK, clientCfg)
	})

	return r
}

// ServerMain wires storage and notifications into the HTTP server and runs
// it. The storage provider arrives already initialized from the CLI layer.
func ServerMain(storageProvider storage.Provider) {

	if Cfg == nil {
		panic("Config not initialized.")
	}

	if storageProvider == nil {
		slog.Error("Storage provider is nil")
		os.Exit(1)
	}

	if Cfg.PresetFile != "" {
		if err := schedule.LoadPresetFile(Cfg.PresetFile); err != nil {
			slog.Error("Failed to load schedule presets", "error", err, "file", Cfg.PresetFile)
			os.Exit(1)
		}
	}

	notifier := notify.New(Cfg.Notify)

	server := HTTPServer()

	// Middleware to inject collaborators into context
	server.Use(func(c *gin.Context) {
		c.Set("Storage", storageProvider)
		c.Next()
	}, func(c *gin.Context) {
		c.Set("Notifier", notifier)
		c.Next()
	})

	routes.Register(server)

	server.Run()
}
