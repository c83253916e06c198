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

// Package cgroup implements a thin wrapper
// around the Linux cgroupv2 filesystem API.
// For more information, please consult the
// relevant kernel documentation.
package cgroup

import (
	"bufio"
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Dir is an absolute directory path
// (including the mount path of the cgroup2 mountpoint).
type Dir string

// IsZero returns true if d is the zero value of Dir.
// (The zero value of Dir is not a valid cgroup directory.)
func (d Dir) IsZero() bool { return d == "" }

// Root returns the first found cgroup2
// mountpoint from /proc/mounts.
func Root() (Dir, error) {
	f, err := os.Open("/proc/mounts")
	if err != nil {
		return "", err
	}
	defer f.Close()
	s := bufio.NewScanner(f)
	for s.Scan() {
		parts := strings.Fields(s.Text())
		if len(parts) >= 3 &&
			parts[2] == "cgroup2" {
			return Dir(parts[1]), nil
		}
	}
	if s.Err() != nil {
		return "", err
	}
	return "", fs.ErrNotExist
}

// Sub returns a new Dir that represents a
// sub-directory of d.
func (d Dir) Sub(dir string) Dir { return Dir(d.join(dir)) }

// Self returns the cgroup of the current process,
// provided that the current process is *only* a member
// of a cgroup2 and not a legacy cgroup1 hierarchy.
func Self() (Dir, error) {
	text, err := os.ReadFile("/proc/self/cgroup")
	if err != nil {
		return "", err
	}
	if len(text) < 3 || text[0] != '0' || text[1] != ':' || text[2] != ':' {
		return "", fmt.Errorf("don't understand /proc/self/cgroup (are you using systemd?): %s", text)
	}
	text = bytes.TrimSpace(text)
	i := bytes.IndexByte(text, '/')
	if i < 0 {
		return "", fmt.Errorf("%s is not a valid cgroup", text)
	}
	root, err := Root()
	if err != nil {
		return "", err
	}
	return root.Sub(string(text[i:])), nil
}

func (d Dir) join(name string) string { return filepath.Join(string(d), name) }

// ReadLine reads the first line (trimmed of surrounding whitespace)
// of the file with the given name within d.
func (d Dir) ReadLine(name string) (string, error) {
	buf, err := os.ReadFile(d.join(name))
	if err != nil {
		return "", err
	}
	line, _, _ := bytes.Cut(buf, []byte{'\n'})
	return string(bytes.TrimSpace(line)), nil
}

// Limits is the subset of cgroupv2 controller limits the resource
// manager needs to pick sane default capacities.
type Limits struct {
	// MemoryMax is the memory.max limit in bytes, or -1 if the
	// controller reports "max" (unlimited).
	MemoryMax int64
	// CPUQuota and CPUPeriod are the two numbers in cpu.max; the
	// usable CPU count is CPUQuota/CPUPeriod. CPUQuota is -1 if
	// the controller reports "max" (unlimited).
	CPUQuota  int64
	CPUPeriod int64
}

// ReadLimits reads memory.max and cpu.max from d.
func (d Dir) ReadLimits() (Limits, error) {
	var lim Limits

	mem, err := d.ReadLine("memory.max")
	if err != nil {
		return lim, err
	}
	if mem == "max" {
		lim.MemoryMax = -1
	} else {
		lim.MemoryMax, err = strconv.ParseInt(mem, 10, 64)
		if err != nil {
			return lim, fmt.Errorf("cgroup: parsing memory.max %q: %w", mem, err)
		}
	}

	cpu, err := d.ReadLine("cpu.max")
	if err != nil {
		return lim, err
	}
	fields := strings.Fields(cpu)
	if len(fields) != 2 {
		return lim, fmt.Errorf("cgroup: unexpected cpu.max contents %q", cpu)
	}
	if fields[0] == "max" {
		lim.CPUQuota = -1
	} else {
		lim.CPUQuota, err = strconv.ParseInt(fields[0], 10, 64)
		if err != nil {
			return lim, fmt.Errorf("cgroup: parsing cpu.max quota %q: %w", fields[0], err)
		}
	}
	lim.CPUPeriod, err = strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return lim, fmt.Errorf("cgroup: parsing cpu.max period %q: %w", fields[1], err)
	}
	return lim, nil
}

// CPULimit returns the number of CPUs usable under l's cpu.max quota,
// rounded down, or ok=false if unlimited, unparseable, or less than
// one whole CPU.
func (l Limits) CPULimit() (n int, ok bool) {
	if l.CPUQuota <= 0 || l.CPUPeriod <= 0 {
		return 0, false
	}
	n = int(l.CPUQuota / l.CPUPeriod)
	return n, n > 0
}
