package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	cfgpkg "github.com/fatflowers/affiliate/pkg/config"
)

// Corrections lookup. The path token is the credential; anything but an
// exact match is indistinguishable from a missing resource.
func RegisterCorrectionsRoutes(r gin.IRouter, cfg *cfgpkg.Config) {
	r.GET("/corrections/:token", func(c *gin.Context) {
		secret := cfg.Corrections.Authentication
		if secret == "" || c.Param("token") != secret {
			c.Status(http.StatusNotFound)
			return
		}
		c.Status(http.StatusOK)
	})
}
