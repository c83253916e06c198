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

//go:build !linux

// Package cgroup implements a thin wrapper
// around the Linux cgroupv2 filesystem API.
// For more information, please consult the
// relevant kernel documentation.
package cgroup

// Dir is an absolute directory path
// (including the mount path of the cgroup2 mountpoint).
type Dir string

// IsZero returns true if d is the zero value of Dir.
// (The zero value of Dir is not a valid cgroup directory.)
func (d Dir) IsZero() bool { return d == "" }

// Sub returns a new Dir that represents a
// sub-directory of d.
func (d Dir) Sub(dir string) Dir {
	panic("unimplemented")
}

// ReadLine reads the first line of the file with the given name
// within d. Unimplemented outside Linux: cgroupv2 is a Linux kernel
// facility.
func (d Dir) ReadLine(name string) (string, error) {
	panic("unimplemented")
}

// ReadLimits reads memory.max and cpu.max from d. Unimplemented
// outside Linux: cgroupv2 is a Linux kernel facility.
func (d Dir) ReadLimits() (Limits, error) {
	panic("unimplemented")
}

// Limits is the subset of cgroupv2 controller limits the resource
// manager needs to pick sane default capacities.
type Limits struct {
	MemoryMax int64
	CPUQuota  int64
	CPUPeriod int64
}

// CPULimit returns the number of CPUs usable under l's cpu.max quota.
func (l Limits) CPULimit() (n int, ok bool) {
	return 0, false
}
