// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package rules

import (
	"database/sql"
	"fmt"

	"github.com/danielhkuo/seatdraw/models"
)

// Participant kind constants
const (
	ParticipantStudent = "student"
	ParticipantGroup   = "group"
)

// Participant is the actor a rule is checked against. Only individually
// identifiable participants (students) can be restricted; groups always
// pass.
type Participant struct {
	ID            string
	Kind          string
	StudyCourseID *string
	Term          *int
}

// Individual reports whether the participant can be checked against
// per-person constraints.
func (p Participant) Individual() bool {
	return p.Kind == ParticipantStudent
}

// Rule is one eligibility predicate bound to a (campaign, course) pair.
// An unset constraint parameter is permissive: the rule only restricts
// what it explicitly names.
type Rule struct {
	ID            string
	CampaignID    string
	CourseID      string
	Kind          string
	StudyCourseID *string
	MinimumTerm   *int
}

// Check evaluates the rule against a participant. Rules never fail closed:
// unset parameters and non-individual participants evaluate to true.
// An unknown rule kind is an error reported to the caller.
func (r Rule) Check(p Participant) (bool, error) {
	if !p.Individual() {
		return true, nil
	}

	switch r.Kind {
	case models.RuleStudyCourse:
		return r.checkStudyCourse(p), nil
	case models.RuleTerm:
		return r.checkTerm(p), nil
	case models.RuleStudyCourseAndTerm:
		return r.checkStudyCourse(p) && r.checkTerm(p), nil
	default:
		return false, fmt.Errorf("unknown rule kind %q", r.Kind)
	}
}

func (r Rule) checkStudyCourse(p Participant) bool {
	if r.StudyCourseID == nil {
		return true
	}
	return p.StudyCourseID != nil && *p.StudyCourseID == *r.StudyCourseID
}

func (r Rule) checkTerm(p Participant) bool {
	if r.MinimumTerm == nil {
		return true
	}
	return p.Term != nil && *p.Term >= *r.MinimumTerm
}

// CheckAll evaluates a rule set as a conjunction, short-circuiting on the
// first failing rule. An empty set allows everyone.
func CheckAll(ruleSet []Rule, p Participant) (bool, error) {
	for _, r := range ruleSet {
		ok, err := r.Check(p)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// Allowed loads the rules bound to the (campaign, course) pair and
// evaluates them against the participant.
func Allowed(db *sql.DB, campaignID, courseID string, p Participant) (bool, error) {
	ruleSet, err := Load(db, campaignID, courseID)
	if err != nil {
		return false, fmt.Errorf("failed to load rules: %w", err)
	}
	return CheckAll(ruleSet, p)
}

// Load retrieves the rule set bound to a (campaign, course) pair.
func Load(db *sql.DB, campaignID, courseID string) ([]Rule, error) {
	rows, err := db.Query(`
		SELECT id, campaign_id, course_id, kind, study_course_id, minimum_term
		FROM registration_rule
		WHERE campaign_id = $1 AND course_id = $2
		ORDER BY id
	`, campaignID, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ruleSet []Rule
	for rows.Next() {
		var r Rule
		if err := rows.Scan(&r.ID, &r.CampaignID, &r.CourseID, &r.Kind, &r.StudyCourseID, &r.MinimumTerm); err != nil {
			return nil, err
		}
		ruleSet = append(ruleSet, r)
	}

	return ruleSet, rows.Err()
}
