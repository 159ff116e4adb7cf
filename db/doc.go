// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package db handles database schema creation.

The schema is defined as a single SQL constant executed at startup with
CREATE TABLE IF NOT EXISTS, so repeated startups are safe.

# Tables

  - campaign: enrollment campaign with display window and share slug
  - campaign_study_course: study courses a campaign is open to
  - course: courses with a fixed number of seats
  - procedure: fifo/draw/confirm allocation procedures
  - enrollment_claim: per-campaign student tokens
  - ticket: the allocation ledger (registrations and priority lists)
  - priority_item: ranked choices of a priority-list ticket
  - registration_rule: eligibility rules per (campaign, course)

Seat occupancy is never stored; it is always derived by counting
registration tickets, so the ledger is the single source of truth.
*/
package db
