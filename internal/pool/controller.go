// Package pool decides how many concurrent download workers should run.
// The controller is a pure step policy over a snapshot of recent outcomes
// and host headroom; the orchestrator applies its advice at task
// boundaries, never interrupting an in-flight transfer.
package pool

// Sample is the controller's view of the world at one adjustment cycle.
type Sample struct {
	// Outcomes is how many transfers the rolling window currently holds.
	Outcomes int
	// ErrorRate is the failed fraction of those outcomes, in [0,1].
	ErrorRate float64
	// Timeouts counts timeout failures in the window.
	Timeouts int
	// Throughput is bytes per second of active transfer time.
	Throughput float64
	// FreeMemFrac is the fraction of host memory available, in [0,1].
	FreeMemFrac float64
	// CPULoad is host CPU utilization, in [0,1].
	CPULoad float64
}

// Tuning thresholds for the step policy.
const (
	// minOutcomes gates growth: never scale up on a near-empty window.
	minOutcomes = 3
	// errorRateCeiling triggers scale-down.
	errorRateCeiling = 0.2
	// timeoutBurst triggers scale-down.
	timeoutBurst = 2
	// memFloor and cpuCeiling define scarce headroom.
	memFloor   = 0.10
	cpuCeiling = 0.90
	// throughputSlack tolerates this much per-worker degradation before
	// growth stops.
	throughputSlack = 0.8
)

// Controller owns the live worker-count target within [min, max]. It moves
// at most one step per adjustment cycle to avoid oscillation.
type Controller struct {
	min int
	max int
	cur int

	lastThroughput float64
}

// NewController creates a controller starting at the lower bound.
// Degenerate bounds are normalized (min >= 1, max >= min).
func NewController(min, max int) *Controller {
	if min < 1 {
		min = 1
	}
	if max < min {
		max = min
	}
	return &Controller{min: min, max: max, cur: min}
}

// Current returns the present target without adjusting it.
func (c *Controller) Current() int { return c.cur }

// Bounds returns the configured [min, max].
func (c *Controller) Bounds() (int, int) { return c.min, c.max }

// Target consumes one sample and returns the new worker-count target.
func (c *Controller) Target(s Sample) int {
	next := c.cur

	switch {
	case s.ErrorRate > errorRateCeiling || s.Timeouts >= timeoutBurst:
		next--
	case s.FreeMemFrac > 0 && s.FreeMemFrac < memFloor:
		next--
	case s.CPULoad > cpuCeiling:
		next--
	case s.Outcomes >= minOutcomes && s.ErrorRate == 0 && c.headroomAmple(s) && c.throughputHolding(s):
		next++
	}

	if next < c.min {
		next = c.min
	}
	if next > c.max {
		next = c.max
	}

	if s.Throughput > 0 {
		c.lastThroughput = s.Throughput
	}
	c.cur = next
	return next
}

func (c *Controller) headroomAmple(s Sample) bool {
	if s.FreeMemFrac > 0 && s.FreeMemFrac < 2*memFloor {
		return false
	}
	if s.CPULoad > 0.75 {
		return false
	}
	return true
}

func (c *Controller) throughputHolding(s Sample) bool {
	if c.lastThroughput == 0 || s.Throughput == 0 {
		return true
	}
	return s.Throughput >= c.lastThroughput*throughputSlack
}
