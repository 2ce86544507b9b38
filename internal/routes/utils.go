package routes

import (
	"github.com/gin-gonic/gin"

	"stream-access-guard/internal/notify"
	"stream-access-guard/internal/storage"
	"stream-access-guard/internal/utils"
)

// GetStorageProvider pulls the storage provider injected by the server
// middleware out of the request context.
func GetStorageProvider(c *gin.Context) (error, storage.Provider) {
	providerIface, exists := c.Get("Storage")
	if !exists {
		return utils.ErrStorageProviderNotFound, nil
	}
	provider, ok := providerIface.(storage.Provider)
	if !ok {
		return utils.ErrInvalidStorageProvider, nil
	}
	return nil, provider
}

// GetNotifier returns the injected notifier, or nil when notifications are
// not configured.
func GetNotifier(c *gin.Context) *notify.Notifier {
	notifierIface, exists := c.Get("Notifier")
	if !exists {
		return nil
	}
	notifier, _ := notifierIface.(*notify.Notifier)
	return notifier
}
