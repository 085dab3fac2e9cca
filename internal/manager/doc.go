// Package manager owns the lifecycle of memory-budgeted model instances:
// admission against a VRAM budget, load/unload state transitions, idle
// reaping, usage-driven prefetching and snapshot reporting. All model state
// lives behind one mutex; the slow runtime calls happen outside it.
package manager
