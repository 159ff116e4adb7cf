// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package allocation implements the seat allocation engine.

# Ledger

Every allocation decision is a ticket. Confirmed registrations are written
by Ledger.RecordConfirmedRegistration, which locks the course row, counts
existing registrations, and inserts inside one transaction. That
transaction is the only place course capacity is enforced; both allocators
route through it and neither mutates occupancy directly, so

	CountConfirmed(course) <= course.max_participants

holds at all times, including under concurrent registration attempts
across processes.

# Fifo Allocator

Fifo.Register is the immediate path: validate, gate on the procedure's
active window, check eligibility rules, attempt the atomic write, notify.
One request, one synchronous accept/reject decision.

# Draw Allocator

Draw accepts priority lists while a draw procedure is open, then Run
executes the lottery once the draw date has passed:

 1. Load every submitted list.
 2. Shuffle them once with the injected Shuffler.
 3. Process lists strictly in that order. Each list is walked in ascending
    rank; the first choice that passes eligibility and has a free seat is
    granted through the ledger.
 4. Participants whose every choice is full or ineligible get a no-luck
    notification instead of a seat.
 5. Mark the procedure drawn.

Because *math/rand.Rand satisfies Shuffler, a seeded source makes the
whole draw deterministic, which the tests rely on. Re-running a drawn
procedure is a no-op, and an interrupted run can be retried safely:
already-placed participants are skipped.

AfterActive deletes the leftover lists of a drawn procedure; DeleteList
lets a participant withdraw an un-drawn list.

# Errors

The sentinel errors in errors.go form the engine's error taxonomy.
Callers match with errors.Is; within a draw run, a list that cannot be
placed is a normal outcome, not an error.
*/
package allocation
