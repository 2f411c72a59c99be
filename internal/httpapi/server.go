package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/Armin-kho/gheymat-bot/internal/prefs"
	"github.com/Armin-kho/gheymat-bot/internal/quota"
	"github.com/Armin-kho/gheymat-bot/internal/render"
	"github.com/Armin-kho/gheymat-bot/internal/report"
	"github.com/Armin-kho/gheymat-bot/internal/sources"
)

type QuotaReader interface {
	Usage(ctx context.Context) (quota.Usage, error)
}

type PreferenceReader interface {
	Get(ctx context.Context, chatID int64) prefs.Preference
}

type Snapshotter interface {
	Snapshot(ctx context.Context, chatID int64) report.Snapshot
}

type FetchTimes interface {
	LastFetch(p sources.Provider) (time.Time, bool)
}

// Handler serves the read-only status API.
type Handler struct {
	quota QuotaReader
	prefs PreferenceReader
	snaps Snapshotter
	feeds FetchTimes
	now   func() time.Time
}

func NewHandler(q QuotaReader, p PreferenceReader, s Snapshotter, f FetchTimes) *Handler {
	return &Handler{quota: q, prefs: p, snaps: s, feeds: f, now: time.Now}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.GET("/healthz", h.Health)
	api := router.Group("/v1")
	{
		api.GET("/quota", h.Quota)
		api.GET("/preferences/:chat_id", h.Preference)
		api.GET("/snapshot/:chat_id", h.Snapshot)
	}
}

func (h *Handler) Health(c *gin.Context) {
	fetched := gin.H{}
	for _, p := range []sources.Provider{sources.ProviderBitpin, sources.ProviderBRS} {
		if at, ok := h.feeds.LastFetch(p); ok {
			fetched[string(p)] = at.UTC().Format(time.RFC3339)
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"status":     "ok",
		"time":       h.now().UTC().Format(time.RFC3339),
		"fetched_at": fetched,
	})
}

func (h *Handler) Quota(c *gin.Context) {
	u, err := h.quota.Usage(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": u})
}

func (h *Handler) Preference(c *gin.Context) {
	id, ok := chatID(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": h.prefs.Get(c.Request.Context(), id)})
}

func (h *Handler) Snapshot(c *gin.Context) {
	id, ok := chatID(c)
	if !ok {
		return
	}
	snap := h.snaps.Snapshot(c.Request.Context(), id)
	c.JSON(http.StatusOK, gin.H{
		"data": snap,
		"text": render.Markdown(snap, h.now()),
	})
}

func chatID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("chat_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "chat_id must be an integer"})
		return 0, false
	}
	return id, true
}

// NewServer wires h into a gin engine with recovery and request logging.
func NewServer(addr string, h *Handler, log zerolog.Logger) *http.Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(log))
	h.RegisterRoutes(router)

	return &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      45 * time.Second,
	}
}

func requestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("took", time.Since(start)).
			Msg("http request")
	}
}
