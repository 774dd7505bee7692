// Package syncer runs the console-to-store archive synchronisation loop.
//
// # Components
//
//   - Resolver: derives the resume point from the newest stored point
//   - Supervisor: the connection state machine that dials the console,
//     pushes the resume point, pulls, normalises, shapes and writes
//   - Scheduler: sleeps until the next archive-interval boundary
//
// # State machine
//
//	disconnected ──► connecting ──► synced ──► polling
//	                    ▲   ▲                    │
//	                    │   └────── (wait) ──────┘
//	                    │                        │ error
//	                    └──── (retry delay) ── faulted
//
// Every console or store failure moves the supervisor to faulted. It closes
// the session, waits the retry delay and runs the full handshake again,
// including the resume point push. The loop has no terminal state; Run
// returns only when its context is cancelled.
//
// # Idempotency
//
// A failed cycle is retried by re-pulling from the console. Both store
// backends overwrite points with an identical series and timestamp, so a
// re-written batch never duplicates data.
//
// # Thread Safety
//
// Run must be called from a single goroutine; it exclusively owns the
// console session. Status is safe to call concurrently.
package syncer
