// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package rules evaluates eligibility rules for registrations.

A rule is a pure predicate over a participant, dispatched on a kind tag:

  - study_course: participant must belong to the configured study course
  - term: participant must have reached the configured minimum term
  - study_course_and_term: both of the above

Eligibility for a (campaign, course) pair is the conjunction of all bound
rules, short-circuiting on the first failure. Two permissive defaults hold
everywhere: a rule with an unset parameter allows everyone, and rules never
restrict non-individual participants (groups). An unknown rule kind is an
error surfaced to the caller, never silently skipped.
*/
package rules
