package routes

import "github.com/gin-gonic/gin"

// Register wires every route group onto the engine. The admin groups sit
// behind bearer-token auth; the admission endpoint is called by the media
// server itself and is gated by the network allow-list middleware instead.
func Register(r *gin.Engine) {
	r.Use(ErrorHandler())

	Health(&r.RouterGroup)

	AuthRoutes(r.Group("/auth"))

	SessionRoutes(r.Group("/api/session"))

	admin := r.Group("/api/admin")
	admin.Use(AuthRequired())
	DeviceRoutes(admin.Group("/devices"))
	RuleRoutes(admin.Group("/rules"))
	PreferenceRoutes(admin.Group("/preferences"))
}
