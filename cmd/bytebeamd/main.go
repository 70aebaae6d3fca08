// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package main provides the entry point for bytebeamd, the ByteBeam relay
// server: a single-use, in-memory file handoff service. A sender mints a
// ticket, streams a file against its upload key, and a single receiver
// streams it back — nothing ever touches disk, and each ticket accepts one
// upload and one download.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"bytebeam/internal/relay/config"
	"bytebeam/internal/relay/culler"
	"bytebeam/internal/relay/httpfront"
	"bytebeam/internal/relay/keydirectory"
	"bytebeam/internal/relay/registry"
	"bytebeam/internal/relay/telemetry"
)

func main() {
	configPath := pflag.String("config", "", "path to a YAML config file; if empty, built-in defaults are used")
	listenOverride := pflag.String("listen", "", "override the config's listen address")
	metricsAddr := pflag.String("metrics_addr", "", "if non-empty, also expose Prometheus /metrics on this address (the main listener always serves it)")
	pflag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("bytebeamd: %v", err)
		}
		cfg = loaded
	}
	if *listenOverride != "" {
		cfg.Listen = *listenOverride
	}

	publicTier, authTier := cfg.Tiers()

	dir, err := keydirectory.New(cfg.Users, cfg.Keyserver)
	if err != nil {
		log.Fatalf("bytebeamd: building key directory: %v", err)
	}

	metrics := telemetry.NewMetrics(nil)
	registryLogger := log.New(log.Writer(), "registry: ", log.Flags())
	reg := registry.New(publicTier, authTier, dir, metrics, registryLogger)

	cullerLogger := log.New(log.Writer(), "culler: ", log.Flags())
	cull := culler.New(reg, cullerLogger)
	cull.Start()

	httpLogger := log.New(log.Writer(), "http: ", log.Flags())
	front := httpfront.NewServer(reg, httpLogger)

	httpServer := &http.Server{
		Addr:    cfg.Listen,
		Handler: front.Routes(),
	}

	go func() {
		log.Printf("bytebeamd: listening on %s", cfg.Listen)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("bytebeamd: %v", err)
		}
	}()

	var metricsServer *http.Server
	if *metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", telemetry.Handler())
		metricsServer = &http.Server{Addr: *metricsAddr, Handler: mux}
		go func() {
			log.Printf("bytebeamd: metrics listening on %s", *metricsAddr)
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("bytebeamd: metrics server: %v", err)
			}
		}()
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Println("bytebeamd: shutting down")
	cull.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Fatalf("bytebeamd: server shutdown failed: %v", err)
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(ctx); err != nil {
			log.Printf("bytebeamd: metrics server shutdown failed: %v", err)
		}
	}
	log.Println("bytebeamd: stopped")
}
