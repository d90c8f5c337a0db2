package api

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
)

// BlobStore persists uploaded ticket images and returns their public URL.
type BlobStore interface {
	Save(ticketID, fileName string, data []byte) (string, error)
}

// DirStore is a BlobStore backed by a local directory served under a public
// base URL. It stands in for the object-store bucket of the hosted setup.
type DirStore struct {
	Dir           string
	PublicBaseURL string
}

// Save writes the image under `tickets/{ticketId}/{fileName}` and returns the
// URL it will be served from.
func (s *DirStore) Save(ticketID, fileName string, data []byte) (string, error) {
	dir := filepath.Join(s.Dir, "tickets", ticketID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(dir, fileName), data, 0o644); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/tickets/%s/%s", s.PublicBaseURL, ticketID, fileName), nil
}

// uploadImageRequest is the body of an image upload call.
type uploadImageRequest struct {
	ImageData string `json:"imageData"`
	FileName  string `json:"fileName"`
}

// uploadImage stores a base64 image payload for a ticket. The caller has to
// present the configured service token; an unconfigured token disables the
// endpoint.
func (a *API) uploadImage(c *gin.Context) {
	if a.serviceToken == "" || c.GetHeader("Authorization") != "Bearer "+a.serviceToken {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}

	var request uploadImageRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	ticketID := c.Param("ticket")
	// Strip any path components a hostile client may have embedded.
	fileName := filepath.Base(strings.TrimSpace(request.FileName))
	if request.ImageData == "" || fileName == "" || fileName == "." || fileName == string(filepath.Separator) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "imageData and fileName are required"})
		return
	}

	data, err := base64.StdEncoding.DecodeString(request.ImageData)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "imageData is not valid base64"})
		return
	}

	url, err := a.blobs.Save(ticketID, fileName, data)
	if err != nil {
		a.serverError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": url})
}
