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

package main

import (
	"context"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/stackhpc/activestorage-go/config"
	"github.com/stackhpc/activestorage-go/fetch"
	"github.com/stackhpc/activestorage-go/orchestrate"
	"github.com/stackhpc/activestorage-go/resource"
)

// run parses configuration, starts the listener, and blocks until a
// shutdown signal is received, mirroring cmd/snellerd's runDaemon.
func run(args []string, configPath string) error {
	cfg, err := config.Load(args, configPath)
	if err != nil {
		return err
	}
	fetch.Region = cfg.Region

	logger := log.New(os.Stderr, "", log.Lshortfile)

	mgr := resource.NewManager(cfg.ResourceConfig())
	s := &server{
		logger: logger,
		orch:   orchestrate.New(mgr),
	}

	l, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return err
	}

	go func() {
		logger.Printf("activestorage daemon %s listening on %v\n", version, l.Addr())
		if err := s.Serve(l); err != nil {
			logger.Println(err)
		}
	}()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return s.Shutdown(ctx)
}
