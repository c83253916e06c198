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

package cgroup

import (
	"strings"
	"testing"
)

func TestCgroup(t *testing.T) {
	root, err := Root()
	if err != nil {
		t.Skip("couldn't find cgroup root")
	}
	self, err := Self()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(self), string(root)) {
		t.Errorf("current cgroup %s not within root %s", self, root)
	}
	t.Log("in cgroup", self)

	lim, err := self.ReadLimits()
	if err != nil {
		t.Skip("couldn't read cgroup limits:", err)
	}
	t.Logf("memory.max=%d cpu.max=%d/%d", lim.MemoryMax, lim.CPUQuota, lim.CPUPeriod)
	if n, ok := lim.CPULimit(); ok && n <= 0 {
		t.Errorf("CPULimit() = %d, want > 0 when ok", n)
	}
}

func TestLimitsCPULimit(t *testing.T) {
	cases := []struct {
		lim  Limits
		n    int
		ok   bool
		name string
	}{
		{Limits{CPUQuota: -1, CPUPeriod: 100000}, 0, false, "unlimited"},
		{Limits{CPUQuota: 200000, CPUPeriod: 100000}, 2, true, "two cpus"},
		{Limits{CPUQuota: 150000, CPUPeriod: 100000}, 1, true, "rounds down"},
		{Limits{CPUQuota: 50000, CPUPeriod: 100000}, 0, false, "less than one cpu"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			n, ok := c.lim.CPULimit()
			if n != c.n || ok != c.ok {
				t.Fatalf("CPULimit() = (%d, %v), want (%d, %v)", n, ok, c.n, c.ok)
			}
		})
	}
}
