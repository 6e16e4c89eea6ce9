package pool

import (
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// HeadroomFunc samples host resource headroom: the fraction of memory still
// available and the CPU load, both in [0,1]. Injectable so the controller
// stays testable without touching the host.
type HeadroomFunc func() (freeMemFrac, cpuLoad float64)

// SystemHeadroom reads live host metrics. Errors degrade to zero values,
// which the controller treats as "unknown" rather than scarce.
func SystemHeadroom() (float64, float64) {
	var freeMem, cpuLoad float64

	if vm, err := mem.VirtualMemory(); err == nil && vm.Total > 0 {
		freeMem = float64(vm.Available) / float64(vm.Total)
	}
	if pcts, err := cpu.Percent(0, false); err == nil && len(pcts) > 0 {
		cpuLoad = pcts[0] / 100
	}
	return freeMem, cpuLoad
}
