package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/songzhibin97/xrplfeed/internal/data"
)

func (s *Server) getTokens(c *gin.Context) {
	c.JSON(http.StatusOK, s.deps.Feed.State())
}

// getTopTokens reads one page directly from the metadata API, bypassing the
// controller's collection. Query: limit, offset, search.
func (s *Server) getTopTokens(c *gin.Context) {
	params := data.PageParams{Search: c.Query("search")}
	for key, dst := range map[string]*int{"limit": &params.Limit, "offset": &params.Offset} {
		raw := c.Query(key)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + key})
			return
		}
		*dst = n
	}

	tokens, err := s.deps.Pages.FetchTokenPage(c.Request.Context(), params)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"tokens": tokens, "count": len(tokens)})
}

type searchRequest struct {
	Term string `json:"term"`
}

func (s *Server) postSearch(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.deps.Feed.SetSearchTerm(req.Term)
	c.JSON(http.StatusAccepted, gin.H{"searchTerm": req.Term})
}

func (s *Server) postRefresh(c *gin.Context) {
	if err := s.deps.Feed.Refresh(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, s.deps.Feed.State())
}

func (s *Server) getFavorites(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ids": s.deps.Favorites.IDs()})
}

func (s *Server) toggleFavorite(c *gin.Context) {
	id := c.Param("id")
	favorite, err := s.deps.Feed.ToggleFavorite(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "favorite": favorite})
}

func (s *Server) getTickers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"showTickers": s.deps.Tickers.Enabled()})
}

func (s *Server) toggleTickers(c *gin.Context) {
	enabled, err := s.deps.Tickers.Toggle(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"showTickers": enabled})
}

func (s *Server) getRate(c *gin.Context) {
	snap, err := s.deps.Oracle.RateSnapshot(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (s *Server) getNetwork(c *gin.Context) {
	c.JSON(http.StatusOK, s.deps.Feed.Network())
}

func (s *Server) getServerStatus(c *gin.Context) {
	status, err := s.deps.Status.FetchServerStatus(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, status)
}

func (s *Server) getHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"clients": s.hub.ClientCount(),
	})
}
