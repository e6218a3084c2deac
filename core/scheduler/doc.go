// Package scheduler implements a static table-based cyclic executive.
//
// Tasks are registered with a period (in ticks), a priority and an
// execution budget. Build computes the macrocycle (the LCM of all periods)
// and greedily places every due task into the earliest tick with enough
// spare capacity, in (priority, period, registration) order. A task that
// cannot be placed within one period of its release makes the set
// infeasible and the build is rolled back.
//
// Start replays the resulting table forever: at every tick the assigned
// tasks are resumed through an Activator, then the dispatcher sleeps until
// the tick's release deadline. Deadlines are tracked additively within a
// traversal so jitter self-corrects; what happens on overrun and at the
// macrocycle boundary is selected with OverrunPolicy and BoundaryPolicy.
// The dispatcher never preempts and never waits for a task to finish.
package scheduler
