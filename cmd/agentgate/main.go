// Command agentgate runs one payment-gated agent: a prompt agent, an image
// agent, or an image agent that relays to a downstream prompt agent and pays
// its challenge on the caller's behalf.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"

	"github.com/payward-labs/agentgate"
	"github.com/payward-labs/agentgate/config"
	"github.com/payward-labs/agentgate/httpgate"
	"github.com/payward-labs/agentgate/logger"
	"github.com/payward-labs/agentgate/metrics"
	"github.com/payward-labs/agentgate/replay"
	"github.com/payward-labs/agentgate/types"
	"github.com/payward-labs/agentgate/utils"
)

func main() {
	app := &cli.App{
		Name:  "agentgate",
		Usage: "Payment-gated agent server",
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "Run the agent HTTP server",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "role",
						Usage: "Agent role: prompt, image, or relay-image",
						Value: "prompt",
					},
				},
				Action: runServe,
			},
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runServe(c *cli.Context) error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	role := c.String("role")
	if role == "relay-image" && cfg.DownstreamURL == "" {
		return fmt.Errorf("%s is required for the relay-image role", config.EnvDownstreamURL)
	}
	if role == "relay-image" && cfg.SignerKey == "" {
		return fmt.Errorf("%s is required for the relay-image role", config.EnvSignerKey)
	}

	log := logger.NewZapLogger(cfg.LogLevel, cfg.AgentName)
	recorder := metrics.NewPrometheusRecorder()

	var guard replay.Store
	if cfg.RedisURL != "" {
		guard, err = replay.NewRedisStore(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("failed to connect replay store: %w", err)
		}
	} else {
		guard = replay.NewMemoryStore()
	}

	tiers, err := cfg.TierTable()
	if err != nil {
		return err
	}

	policy := cfg.PricingPolicy()
	gate, err := agentgate.New(policy,
		agentgate.WithLogger(log),
		agentgate.WithMetrics(recorder),
		agentgate.WithReplayStore(guard),
		agentgate.WithAsset(cfg.MintContract),
		agentgate.WithSignerKey(cfg.SignerKey),
		agentgate.WithTierTable(tiers),
	)
	if err != nil {
		return err
	}
	defer gate.Close()

	router, err := buildRouter(gate, cfg, role)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info("agent listening", map[string]any{
			"addr":  cfg.ListenAddr,
			"role":  role,
			"price": utils.ToMajorUnits(policy.UnitPrice, utils.EtherDecimals) + " " + policy.Currency,
		})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", map[string]any{"error": err.Error()})
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down", nil)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func buildRouter(gate *agentgate.Gate, cfg *config.Config, role string) (*gin.Engine, error) {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), httpgate.RequestID())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	var (
		description string
		handler     gin.HandlerFunc
	)
	switch role {
	case "prompt":
		description = "Generate an image prompt from a topic"
		handler = httpgate.PromptHandler(templatePrompts{})
	case "image":
		description = "Generate an image from a prompt"
		handler = httpgate.ImageHandler(placeholderImages{})
	case "relay-image":
		description = "Generate an image, sourcing the prompt from a partner agent"
		handler = httpgate.RelayedImageHandler(gate, cfg.DownstreamURL, placeholderImages{})
	default:
		return nil, fmt.Errorf("unknown role %q", role)
	}

	r.GET("/.well-known/agent.json", httpgate.AgentCardHandler(agentCard(cfg, role, description)))
	r.POST("/task", gate.Middleware(description), handler)
	return r, nil
}

func agentCard(cfg *config.Config, role, description string) *types.AgentCard {
	return &types.AgentCard{
		Name:        cfg.AgentName,
		Description: description,
		Version:     "1.0.0",
		Capabilities: []types.AgentCapability{
			{
				Name:        role,
				Description: description,
				Price:       cfg.UnitPrice,
				Currency:    cfg.Currency,
				Network:     cfg.Network,
				InputSchema: map[string]any{
					"type": "object",
				},
			},
		},
	}
}
