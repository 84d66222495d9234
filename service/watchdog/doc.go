// Package watchdog supervises named long-running units. A Supervisor starts
// every registered unit, polls their health checks on an interval and
// restarts the ones that report unhealthy, keeping a monotonic restart count
// per unit for the lifetime of the process.
package watchdog
