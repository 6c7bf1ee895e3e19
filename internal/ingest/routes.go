package ingest

import (
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/danmuck/sxmlstream/internal/auth"
	"github.com/danmuck/sxmlstream/internal/observability"
	"github.com/danmuck/sxmlstream/internal/xmltext"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

const maxRequestBody = 1 << 20

// Router returns the admin API. It is built once.
func (s *Service) Router() *gin.Engine {
	s.routerOnce.Do(func() {
		s.router = s.newRouter()
	})
	return s.router
}

func (s *Service) newRouter() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(log.Logger, "/health", "/metrics"))
	r.Use(observability.RequestMetricsMiddleware(s.cfg.Name))
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(s.cfg.CorsOrigins),
		AllowMethods: []string{"GET", "POST", "DELETE"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":         "ok",
			"service":        s.cfg.Name,
			"uptime":         time.Since(s.started).String(),
			"start_tag":      s.cfg.Assembler.StartTag,
			"mode":           s.cfg.Assembler.Mode.String(),
			"pending":        s.Pending(),
			"active_clients": s.ActiveClients(),
		})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	var validator auth.Validator
	if token := strings.TrimSpace(s.cfg.AdminToken); token != "" {
		validator = auth.StaticToken{Token: token}
	}
	api := r.Group("/", auth.Require(validator))

	api.GET("/messages", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"messages": s.PendingEnvelopes()})
	})

	api.DELETE("/messages", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"cleared": s.ClearInbox()})
	})

	api.GET("/messages/pending", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"pending": s.Pending()})
	})

	api.GET("/messages/next", func(c *gin.Context) {
		env, ok := s.NextEnvelope()
		if !ok {
			c.Status(http.StatusNoContent)
			return
		}
		c.JSON(http.StatusOK, env)
	})

	api.POST("/extract", func(c *gin.Context) {
		tag := xmltext.CleanTagName(strings.TrimSpace(c.Query("tag")))
		if tag == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "tag query parameter is required"})
			return
		}
		decode, err := queryBool(c, "decode")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		body, ok := readBody(c)
		if !ok {
			return
		}
		values := xmltext.TagsValues(body, tag)
		if decode {
			values = xmltext.DecodedTagsValues(body, tag)
		}
		c.JSON(http.StatusOK, gin.H{
			"tag":        tag,
			"values":     values,
			"properties": xmltext.TagsProperties(body, tag),
		})
	})

	api.POST("/encode", func(c *gin.Context) {
		nonASCII, err := queryBool(c, "non_ascii")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		body, ok := readBody(c)
		if !ok {
			return
		}
		c.String(http.StatusOK, xmltext.EncodeEntities(body, nonASCII))
	})

	api.POST("/decode", func(c *gin.Context) {
		body, ok := readBody(c)
		if !ok {
			return
		}
		c.String(http.StatusOK, xmltext.DecodeEntities(body))
	})

	return r
}

func readBody(c *gin.Context) (string, bool) {
	raw, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxRequestBody))
	if err != nil {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": err.Error()})
		return "", false
	}
	return string(raw), true
}

func queryBool(c *gin.Context, key string) (bool, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return false, nil
	}
	return strconv.ParseBool(raw)
}

func normalizeOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"http://localhost:3000"}
	}
	return origins
}
