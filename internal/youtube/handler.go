package youtube

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// SearchCache is the optional Redis-backed result cache.
type SearchCache interface {
	GetSearchCache(ctx context.Context, query string, out any) (bool, error)
	SetSearchCache(ctx context.Context, query string, results any) error
}

type Handler struct {
	client *Client
	cache  SearchCache
	log    *logrus.Entry
}

func NewHandler(client *Client, cache SearchCache) *Handler {
	return &Handler{
		client: client,
		cache:  cache,
		log:    logrus.WithField("component", "youtube"),
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/youtube/search", h.search)
}

func (h *Handler) search(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))
	if len(query) < 2 || len(query) > 100 {
		c.JSON(http.StatusBadRequest, gin.H{"code": "VALIDATION_ERROR", "message": "q must be 2-100 characters"})
		return
	}

	ctx := c.Request.Context()
	if h.cache != nil {
		var cached []SearchItem
		hit, err := h.cache.GetSearchCache(ctx, query, &cached)
		if err != nil {
			h.log.WithError(err).Warn("search cache read failed")
		} else if hit {
			c.JSON(http.StatusOK, gin.H{"items": cached})
			return
		}
	}

	results, err := h.client.SearchKaraoke(ctx, query)
	if err != nil {
		h.log.WithError(err).Error("youtube search failed")
		c.JSON(http.StatusBadGateway, gin.H{"code": "UPSTREAM_ERROR", "message": "YouTube search failed"})
		return
	}

	if h.cache != nil {
		if err := h.cache.SetSearchCache(ctx, query, results); err != nil {
			h.log.WithError(err).Warn("search cache write failed")
		}
	}
	c.JSON(http.StatusOK, gin.H{"items": results})
}
