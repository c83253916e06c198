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
	"fmt"
	"os"
	"strings"
)

var version = "development"

func main() {
	args := os.Args[1:]
	configFile, args := extractConfigFlag(args)

	if err := run(args, configFile); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// extractConfigFlag pulls a leading "-config <path>" or
// "-config=<path>" out of args before the remaining args are handed
// to config.Load's flag set, since the config file must be read
// before the rest of the flags' defaults can be computed from it.
func extractConfigFlag(args []string) (path string, rest []string) {
	for i := 0; i < len(args); i++ {
		arg := strings.TrimLeft(args[i], "-")
		if name, value, found := strings.Cut(arg, "="); found && name == "config" {
			rest = append(rest, args[:i]...)
			rest = append(rest, args[i+1:]...)
			return value, rest
		}
		if arg == "config" && i+1 < len(args) {
			rest = append(rest, args[:i]...)
			rest = append(rest, args[i+2:]...)
			return args[i+1], rest
		}
	}
	return "", args
}
