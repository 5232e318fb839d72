package http

import (
	"net/http"

	"github.com/dkeye/Relay/internal/app/orch"
	"github.com/dkeye/Relay/internal/certs"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type StatusSource interface {
	Status() orch.StatusDTO
}

type CertificateSource interface {
	Regenerate() (string, error)
	Current() certs.Material
}

type RegenerateResponse struct {
	Status string `json:"status"`
	IP     string `json:"ip"`
}

func StatusHandler(src StatusSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, src.Status())
	}
}

// RegenerateHandler issues a new certificate and installs it into the
// running TLS listener. A failure fails the request only.
func RegenerateHandler(src CertificateSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip, err := src.Regenerate()
		if err != nil {
			log.Error().Err(err).Str("module", "transport.http").Msg("regenerate certificate")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "certificate generation failed"})
			return
		}
		c.JSON(http.StatusOK, RegenerateResponse{Status: "regenerated", IP: ip})
	}
}

// DownloadHandler streams the live certificate and key as a zip archive.
func DownloadHandler(src CertificateSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		data, err := certs.Archive(src.Current())
		if err != nil {
			log.Error().Err(err).Str("module", "transport.http").Msg("package certificate")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "certificate unavailable"})
			return
		}
		c.Header("Content-Disposition", `attachment; filename="`+certs.ArchiveName+`"`)
		c.Data(http.StatusOK, "application/zip", data)
	}
}
