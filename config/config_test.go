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

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(nil, "")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Listen != "127.0.0.1:8000" {
		t.Fatalf("Listen = %q, want default", cfg.Listen)
	}
	if cfg.Region != "us-east-1" {
		t.Fatalf("Region = %q, want us-east-1", cfg.Region)
	}
}

func TestLoadFlagsOverrideDefaults(t *testing.T) {
	cfg, err := Load([]string{"-listen", "0.0.0.0:9090", "-memory-bytes", "1024"}, "")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Listen != "0.0.0.0:9090" {
		t.Fatalf("Listen = %q, want 0.0.0.0:9090", cfg.Listen)
	}
	if cfg.MemoryBytes != 1024 {
		t.Fatalf("MemoryBytes = %d, want 1024", cfg.MemoryBytes)
	}
}

func TestLoadYAMLFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "activestoraged.yaml")
	body := "listen: 10.0.0.1:8001\ncpu_tasks: 3\nsigning_region: eu-west-1\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(nil, path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Listen != "10.0.0.1:8001" {
		t.Fatalf("Listen = %q, want 10.0.0.1:8001", cfg.Listen)
	}
	if cfg.CPUTasks != 3 {
		t.Fatalf("CPUTasks = %d, want 3", cfg.CPUTasks)
	}
	if cfg.Region != "eu-west-1" {
		t.Fatalf("Region = %q, want eu-west-1", cfg.Region)
	}
}

func TestLoadFlagsOverrideYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "activestoraged.yaml")
	if err := os.WriteFile(path, []byte("listen: 10.0.0.1:8001\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load([]string{"-listen", "127.0.0.1:1234"}, path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Listen != "127.0.0.1:1234" {
		t.Fatalf("Listen = %q, want flag value to win over file value", cfg.Listen)
	}
}

func TestLoadMissingFileErrors(t *testing.T) {
	if _, err := Load(nil, "/nonexistent/activestoraged.yaml"); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestResourceConfigProjection(t *testing.T) {
	cfg := &Config{MemoryBytes: 10, S3Conns: 2, CPUTasks: 4, Region: "us-east-1"}
	rc := cfg.ResourceConfig()
	if rc.MemoryBytes != 10 || rc.S3Conns != 2 || rc.CPUTasks != 4 {
		t.Fatalf("ResourceConfig() = %+v, want {10 2 4}", rc)
	}
}
