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

// Package config loads the server's YAML configuration file: listen
// address, per-tier overrides, the optional keyserver template, and the
// users list consumed by keydirectory.New.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"bytebeam/internal/relay/tier"
)

// TierOverride lets a config file narrow the built-in public/authenticated
// defaults without redefining every field.
type TierOverride struct {
	CacheSize    *int           `yaml:"cache_size"`
	BlockSize    *int           `yaml:"block_size"`
	CullTime     *time.Duration `yaml:"cull_time"`
	TokenFormat  *string        `yaml:"token_format"`
	UploadFormat *string        `yaml:"upload_format"`
	PacketDelay  *time.Duration `yaml:"packet_delay"`
}

func (o TierOverride) apply(base tier.Policy) tier.Policy {
	if o.CacheSize != nil {
		base.CacheSize = *o.CacheSize
	}
	if o.BlockSize != nil {
		base.BlockSize = *o.BlockSize
	}
	if o.CullTime != nil {
		base.CullTime = *o.CullTime
	}
	if o.TokenFormat != nil {
		base.TokenFormat = *o.TokenFormat
	}
	if o.UploadFormat != nil {
		base.UploadFormat = *o.UploadFormat
	}
	if o.PacketDelay != nil {
		base.PacketDelay = *o.PacketDelay
	}
	return base
}

// Config is the top-level shape of the server's YAML config file.
type Config struct {
	Listen   string       `yaml:"listen"`
	Keyserver string      `yaml:"keyserver"`
	Users    []string     `yaml:"users"`
	Public   TierOverride `yaml:"public"`
	Authed   TierOverride `yaml:"authenticated"`
}

// Default returns the zero-config defaults: listen on :8080, no keyserver,
// no pre-registered users, and the built-in tier.Public/tier.Authenticated
// policies untouched.
func Default() Config {
	return Config{Listen: ":8080"}
}

// Load reads and parses a YAML config file at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: reading %s: %w", path, err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return cfg, nil
}

// Tiers resolves the effective public/authenticated tier.Policy values by
// applying this config's overrides to the built-in defaults.
func (c Config) Tiers() (tier.Policy, tier.Policy) {
	return c.Public.apply(tier.Public), c.Authed.apply(tier.Authenticated)
}
