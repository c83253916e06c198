// Copyright (C) 2022 Sneller, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Package config resolves the server's settings from three layers, in
// increasing priority: built-in defaults, an optional YAML file, and
// command-line flags.
package config

import (
	"flag"
	"fmt"
	"os"

	"sigs.k8s.io/yaml"

	"github.com/stackhpc/activestorage-go/resource"
)

// Config holds every setting the daemon needs to start serving
// requests.
type Config struct {
	Listen      string `json:"listen,omitempty"`
	MemoryBytes int64  `json:"memory_bytes,omitempty"`
	S3Conns     int64  `json:"s3_connections,omitempty"`
	CPUTasks    int64  `json:"cpu_tasks,omitempty"`
	Region      string `json:"signing_region,omitempty"`
}

// defaults returns a Config with the built-in defaults: a memory
// budget from resource.DefaultMemoryBytes, an unbounded connection
// budget, CPU parallelism from resource.DefaultCPUTasks, and the
// us-east-1 signing region.
func defaults() Config {
	return Config{
		Listen:      "127.0.0.1:8000",
		MemoryBytes: resource.DefaultMemoryBytes(),
		S3Conns:     0,
		CPUTasks:    resource.DefaultCPUTasks(),
		Region:      "us-east-1",
	}
}

// Load reads a YAML file at path (if path is non-empty) over the
// built-in defaults, then parses args as flags that override any
// setting present in either. A flag not given in args keeps the value
// from the file (or the built-in default); a flag given explicitly,
// even with a zero value, overrides it.
func Load(args []string, path string) (*Config, error) {
	cfg := defaults()
	if path != "" {
		buf, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %q: %w", path, err)
		}
		if err := yaml.Unmarshal(buf, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %q: %w", path, err)
		}
	}

	fs := flag.NewFlagSet("activestoraged", flag.ContinueOnError)
	listen := fs.String("listen", cfg.Listen, "address to listen on (host:port)")
	memBytes := fs.Int64("memory-bytes", cfg.MemoryBytes, "memory admission capacity in bytes (0 = unbounded)")
	s3Conns := fs.Int64("s3-connections", cfg.S3Conns, "maximum concurrent S3 connections (0 = unbounded)")
	cpuTasks := fs.Int64("cpu-tasks", cfg.CPUTasks, "maximum concurrent reduction tasks (0 = unbounded)")
	region := fs.String("signing-region", cfg.Region, "AWS SigV4 signing region used for every upstream S3 request")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg.Listen = *listen
	cfg.MemoryBytes = *memBytes
	cfg.S3Conns = *s3Conns
	cfg.CPUTasks = *cpuTasks
	cfg.Region = *region
	return &cfg, nil
}

// ResourceConfig projects cfg onto the resource.Config the Manager
// is constructed from.
func (c *Config) ResourceConfig() resource.Config {
	return resource.Config{
		MemoryBytes: c.MemoryBytes,
		S3Conns:     c.S3Conns,
		CPUTasks:    c.CPUTasks,
	}
}
