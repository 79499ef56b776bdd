package internal

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/dcrodman/anvil/internal/core"
	"github.com/dcrodman/anvil/internal/core/data"
	"github.com/dcrodman/anvil/internal/core/debug"
	"github.com/dcrodman/anvil/internal/gateway"
)

// Controller is the main entrypoint for anvil. It's responsible for initializing
// any shared resources (such as database, logging and metrics), defining the
// servers, and launching everything.
type Controller struct {
	Config *core.Config
	// Play receives the packets of clients that finished configuration.
	Play gateway.PlayHandler

	logger   *logrus.Logger
	registry *prometheus.Registry
	metrics  *debug.Metrics
	db       *gorm.DB
	wg       sync.WaitGroup

	servers []*frontend
}

// Start runs the servers until ctx is cancelled.
func (c *Controller) Start(ctx context.Context) error {
	var err error
	// Set up the logger, which will be used by all sub-servers.
	c.logger, err = core.NewLogger(c.Config)
	if err != nil {
		return fmt.Errorf("error initializing logger: %w", err)
	}

	c.registry = prometheus.NewRegistry()
	c.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	c.metrics = debug.NewMetrics(c.registry)

	// Start any debug utilities if we're configured to do so.
	if c.Config.Debugging.Enabled {
		debug.StartUtilities(ctx, c.Config.DebugAddress(), c.registry, c.logger)
	}

	if err := c.openDatabase(); err != nil {
		return err
	}
	defer c.Shutdown()

	// Configure and run all of our servers.
	c.declareServers()
	return c.run(ctx)
}

func (c *Controller) openDatabase() error {
	var source string
	switch c.Config.Database.Engine {
	case "":
		c.logger.Info("no database engine configured, players will not be persisted")
		return nil
	case "sqlite":
		source = c.Config.QualifiedPath(c.Config.Database.Filename)
	default:
		source = c.Config.DatabaseURL()
	}

	dialector, err := data.Dialector(c.Config.Database.Engine, source)
	if err != nil {
		return err
	}
	c.db, err = data.Initialize(dialector, c.Config.Debugging.DatabaseLoggingEnabled)
	if err != nil {
		return fmt.Errorf("error initializing database: %w", err)
	}
	return nil
}

// Set up all of the servers we want to run.
func (c *Controller) declareServers() {
	c.servers = []*frontend{
		{
			Address: c.Config.ListenAddress(),
			Backend: &gateway.Server{
				Name:    "GATEWAY",
				Config:  c.Config,
				Logger:  c.logger,
				Metrics: c.metrics,
				DB:      c.db,
				Play:    c.Play,
			},
		},
	}
}

func (c *Controller) run(ctx context.Context) error {
	// Start all of our servers. Failure to initialize one of the registered servers is considered terminal.
	for _, server := range c.servers {
		server.Config = c.Config
		server.Logger = c.logger
		server.Metrics = c.metrics

		if err := server.Start(ctx, &c.wg); err != nil {
			return fmt.Errorf("error starting %s server: %w", server.Backend.Identifier(), err)
		}
	}

	c.wg.Wait()
	return nil
}

// Shutdown releases shared resources once the servers have stopped.
func (c *Controller) Shutdown() {
	if c.db != nil {
		if err := data.Shutdown(c.db); err != nil {
			c.logger.Warnf("error closing database: %v", err)
		}
	}
}
