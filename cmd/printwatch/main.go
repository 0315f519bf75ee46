/*
 * Copyright 2026 PrintWatch Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/printwatch/printwatch/pkg/config"
	"github.com/printwatch/printwatch/pkg/events"
	"github.com/printwatch/printwatch/pkg/feed"
	"github.com/printwatch/printwatch/pkg/fetcher"
	"github.com/printwatch/printwatch/pkg/logger"
	"github.com/printwatch/printwatch/pkg/models"
	"github.com/printwatch/printwatch/pkg/monitor"
	"github.com/printwatch/printwatch/pkg/snapshot"
	"github.com/printwatch/printwatch/pkg/state"
)

const (
	inboundBuffer   = 64
	shutdownTimeout = 10 * time.Second
)

var (
	errFailedToLoadConfig = fmt.Errorf("failed to load config")
	errNoEndpoint         = fmt.Errorf("monitored device has no fetcher endpoint")
)

// Config is the top-level daemon configuration.
type Config struct {
	Logging   *logger.Config         `json:"logging,omitempty"`
	Fetcher   fetcher.Config         `json:"fetcher"`
	Monitor   monitor.RegistryConfig `json:"monitor"`
	Events    events.Config          `json:"events"`
	Watchdog  state.WatchdogConfig   `json:"watchdog"`
	NATS      *feed.NATSConfig       `json:"nats,omitempty"`
	WebSocket *feed.WebSocketConfig  `json:"websocket,omitempty"`

	// Devices lists the device ids to poll actively. Push-only devices
	// need no entry here; the router tracks them as they appear.
	Devices []string `json:"devices"`
}

func (c *Config) Validate() error {
	if err := c.Fetcher.Validate(); err != nil {
		return err
	}

	if err := c.Monitor.Validate(); err != nil {
		return err
	}

	if err := c.Events.Validate(); err != nil {
		return err
	}

	if err := c.Watchdog.Validate(); err != nil {
		return err
	}

	if c.NATS != nil {
		if err := c.NATS.Validate(); err != nil {
			return err
		}
	}

	if c.WebSocket != nil {
		if err := c.WebSocket.Validate(); err != nil {
			return err
		}
	}

	for _, deviceID := range c.Devices {
		if _, ok := c.Fetcher.Endpoints[deviceID]; !ok {
			return fmt.Errorf("%w: %s", errNoEndpoint, deviceID)
		}
	}

	return nil
}

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	configPath := flag.String("config", "/etc/printwatch/printwatch.json", "Path to printwatch config file")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfgLoader := config.NewConfig(nil)

	var cfg Config

	if err := cfgLoader.LoadAndValidate(ctx, *configPath, &cfg); err != nil {
		return fmt.Errorf("%w: %w", errFailedToLoadConfig, err)
	}

	logConfig := cfg.Logging
	if logConfig == nil {
		logConfig = &logger.Config{
			Level:  "info",
			Output: "stdout",
		}
	}

	mainLogger, err := logger.NewComponentLogger("printwatch", logConfig)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	publisher := snapshot.NewPublisher(mainLogger)
	pipeline := state.NewPipeline(publisher, mainLogger)

	statusClient, err := fetcher.NewClient(cfg.Fetcher, mainLogger)
	if err != nil {
		return err
	}

	registry, err := monitor.NewRegistry(cfg.Monitor, statusClient, pipeline, nil, mainLogger)
	if err != nil {
		return err
	}

	router, err := events.NewRouter(pipeline, cfg.Events, mainLogger)
	if err != nil {
		return err
	}

	watchdog := state.NewWatchdog(publisher, pipeline, cfg.Watchdog, nil, mainLogger)

	// Log every state change for the actively monitored devices.
	for _, deviceID := range cfg.Devices {
		publisher.Subscribe(deviceID, logChanges(mainLogger))
	}

	inbound := make(chan models.PushEvent, inboundBuffer)

	var wg sync.WaitGroup

	wg.Add(1)

	go func() {
		defer wg.Done()
		watchdog.Run(ctx)
	}()

	wg.Add(1)

	go func() {
		defer wg.Done()
		router.Run(ctx, inbound)
	}()

	var natsFeed *feed.NATSFeed

	if cfg.NATS != nil {
		natsFeed, err = feed.NewNATSFeed(ctx, *cfg.NATS, inbound, mainLogger)
		if err != nil {
			stop()
			wg.Wait()

			return err
		}

		wg.Add(1)

		go func() {
			defer wg.Done()
			natsFeed.Run(ctx)
		}()
	}

	if cfg.WebSocket != nil {
		wsFeed, wsErr := feed.NewWebSocketFeed(*cfg.WebSocket, inbound, mainLogger)
		if wsErr != nil {
			stop()
			wg.Wait()

			return wsErr
		}

		wg.Add(1)

		go func() {
			defer wg.Done()
			wsFeed.Run(ctx)
		}()
	}

	for _, deviceID := range cfg.Devices {
		registry.StartMonitoring(ctx, deviceID)
	}

	mainLogger.Info().
		Int("devices", len(cfg.Devices)).
		Msg("PrintWatch started")

	<-ctx.Done()

	mainLogger.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := registry.StopAll(shutdownCtx); err != nil {
		mainLogger.Warn().Err(err).Msg("Not all sessions stopped cleanly")
	}

	wg.Wait()

	if natsFeed != nil {
		natsFeed.Close()
	}

	mainLogger.Info().Msg("Shutdown complete")

	return nil
}

// logChanges returns a snapshot subscriber that logs each changed path.
func logChanges(log logger.Logger) snapshot.ChangeHandler {
	return func(st models.DeviceState, changed []string) {
		log.Info().
			Str("device_id", st.DeviceID).
			Str("connection", string(st.ConnectionStatus)).
			Str("print", string(st.PrintStatus)).
			Strs("changed", changed).
			Msg("Device state changed")
	}
}
