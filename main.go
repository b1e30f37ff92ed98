package main

import (
	"context"
	"embed"
	"html/template"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/charlahq/charla/internal"
	"github.com/charlahq/charla/internal/config"
	"github.com/charlahq/charla/internal/provider"
	"github.com/charlahq/charla/internal/store"
)

//go:embed web/index.html
var webFS embed.FS

const helloText = "Hi! I'm charla, ready to chat."

// newRouter wires the HTTP surface. Split out of main so the handler tests
// can run against the same routes.
func newRouter(res *provider.Resolver, mem *store.MemoryStore, log zerolog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	// Permissive CORS: the page may be served from another origin in dev.
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "*")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	r.SetHTMLTemplate(template.Must(template.ParseFS(webFS, "web/index.html")))

	r.GET("/", func(c *gin.Context) {
		c.HTML(http.StatusOK, "index.html", nil)
	})

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"ok": true, "uptime": time.Now().Format(time.RFC3339)})
	})

	r.GET("/api/model", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"providers":    res.Active(),
			"capabilities": res.Capabilities(),
		})
	})

	r.GET("/api/messages", func(c *gin.Context) {
		c.JSON(200, internal.ChatHistory{Messages: mem.All()})
	})

	r.POST("/chat", func(c *gin.Context) {
		var req internal.SendMessageRequest
		if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Message) == "" {
			c.JSON(400, gin.H{"error": "message required"})
			return
		}

		mem.Append(internal.Message{
			Role:      internal.RoleUser,
			Content:   req.Message,
			CreatedAt: time.Now(),
		})

		// Never fails: the resolver degrades to the canned responder.
		reply, providerName, model := res.GenerateReply(c.Request.Context(), mem.All())

		mem.Append(internal.Message{
			Role:      internal.RoleAssistant,
			Content:   reply,
			CreatedAt: time.Now(),
		})

		log.Info().Str("provider", providerName).Int("history_len", len(mem.All())).Msg("chat turn served")

		c.JSON(200, internal.SendMessageResponse{
			Reply:    reply,
			Provider: providerName,
			Model:    model,
		})
	})

	r.POST("/api/reset", func(c *gin.Context) {
		mem.Reset()
		store.SeedAssistantHello(mem, "Conversation reset. What can I do for you?")
		c.JSON(200, gin.H{"ok": true})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func main() {
	_ = godotenv.Load() // pick up .env if present

	log := zerolog.New(os.Stdout).With().
		Timestamp().
		Str("service", "charla").
		Logger()

	cfg := config.FromEnv()
	log.Info().Strs("provider_order", cfg.ProviderOrder).Msg("starting")

	res := provider.FromConfig(context.Background(), cfg, log)

	mem := store.NewMemoryStore()
	store.SeedAssistantHello(mem, helloText)

	r := newRouter(res, mem, log)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}
