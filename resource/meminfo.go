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

package resource

import (
	"fmt"
	"os"
	"runtime"
)

// hostMemTotal returns the total usable DRAM in bytes. On Linux this
// is read from /proc/meminfo; on other systems it returns 0, meaning
// "unknown" to the caller.
func hostMemTotal() (int64, error) {
	if runtime.GOOS != "linux" {
		return 0, nil
	}
	f, err := os.Open("/proc/meminfo")
	if err != nil {
		return 0, err
	}
	defer f.Close()

	var kb int64
	for {
		n, err := fmt.Fscanf(f, "MemTotal: %d kB\n", &kb)
		if err != nil {
			return 0, fmt.Errorf("/proc/meminfo: %w", err)
		}
		if n > 0 {
			return kb * 1024, nil
		}
	}
}
