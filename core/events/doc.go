// Package events defines the scheduler events emitted on the event bus.
//
// Available event types:
//   - StateEvent: lifecycle transition of the scheduler
//   - BuildEvent: outcome of a schedule table build
//   - OverrunEvent: a tick whose activations ran past its release deadline
//   - ActivationFailedEvent: the activator refused or failed to resume a task
//   - CycleEvent: one full traversal of the table completed
package events
