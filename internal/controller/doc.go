// Package controller implements the synchronization controller: the single
// owner of the inverter connection.
//
// The controller serialises every device query and command behind one mutex,
// copies each query's response into a StateSink (the accessory tree) and
// derives nothing itself; derivation belongs to the sink's setters.
//
// Refreshes are single-flight. While a refresh session runs, further requests
// collapse into exactly one pending follow-up, which records the strongest
// reason seen (a write outranks a periodic tick). Every write schedules a
// follow-up refresh after a settle delay whether or not the command succeeded,
// so the tree always converges on what the device actually reports.
//
// Lifecycle:
//
//	ctrl, err := controller.New(ctx, opts) // strict first refresh
//	go ctrl.Run(ctx)                       // periodic refreshes
//	...
//	ctrl.Stop()                            // cancel timers, wait for the session
//
// Errors after startup never propagate past the controller; they are logged
// and counted.
package controller
