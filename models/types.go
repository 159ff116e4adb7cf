// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package models

import "time"

// Procedure kind constants
const (
	KindFifo    = "fifo"
	KindDraw    = "draw"
	KindConfirm = "confirm"
)

// Ticket kind constants
const (
	TicketRegistration = "registration"
	TicketPriorityList = "priority_list"
)

// Rule kind constants
const (
	RuleStudyCourse        = "study_course"
	RuleTerm               = "term"
	RuleStudyCourseAndTerm = "study_course_and_term"
)

// Request types

type CreateCampaignRequest struct {
	Name           string    `json:"name"`
	StartShow      time.Time `json:"start_show"`
	EndShow        time.Time `json:"end_show"`
	StudyCourseIDs []string  `json:"study_course_ids,omitempty"`
}

type AddCourseRequest struct {
	Name            string `json:"name"`
	MaxParticipants int    `json:"max_participants"`
}

type AddProcedureRequest struct {
	Name                 string     `json:"name"`
	Kind                 string     `json:"kind"`
	StartDate            time.Time  `json:"start_date"`
	EndDate              time.Time  `json:"end_date"`
	RuleBased            bool       `json:"rule_based"`
	DrawDate             *time.Time `json:"draw_date,omitempty"`
	MaxPriorityLists     *int       `json:"max_priority_lists,omitempty"`
	MaxPriorityListItems *int       `json:"max_priority_list_items,omitempty"`
}

type AddRuleRequest struct {
	CourseID      string  `json:"course_id"`
	Kind          string  `json:"kind"`
	StudyCourseID *string `json:"study_course_id,omitempty"`
	MinimumTerm   *int    `json:"minimum_term,omitempty"`
}

type ClaimEnrollmentRequest struct {
	StudentID     string  `json:"student_id"`
	StudyCourseID *string `json:"study_course_id,omitempty"`
	Term          *int    `json:"term,omitempty"`
}

type FifoRegisterRequest struct {
	CourseID string `json:"course_id"`
	ExamOnly bool   `json:"exam_only"`
}

// DirectRegisterRequest is an admin-initiated registration outside of
// any procedure.
type DirectRegisterRequest struct {
	StudentID string `json:"student_id"`
	CourseID  string `json:"course_id"`
	ExamOnly  bool   `json:"exam_only"`
}

// PriorityListSubmission is one ranked list aimed at a draw procedure.
// Choices are course ids in preference order; the first entry is rank 1.
type PriorityListSubmission struct {
	Choices []string `json:"choices"`
}

type SubmitPriorityListsRequest struct {
	ProcedureID string                   `json:"procedure_id"`
	Lists       []PriorityListSubmission `json:"lists"`
}

// Response types

type CreateCampaignResponse struct {
	CampaignID string `json:"campaign_id"`
	AdminKey   string `json:"admin_key"`
}

type AddCourseResponse struct {
	CourseID string `json:"course_id"`
}

type AddProcedureResponse struct {
	ProcedureID string `json:"procedure_id"`
}

type AddRuleResponse struct {
	RuleID string `json:"rule_id"`
}

type PublishCampaignResponse struct {
	ShareSlug string `json:"share_slug"`
	ShareURL  string `json:"share_url"`
}

type ClaimEnrollmentResponse struct {
	EnrollToken string `json:"enroll_token"`
}

type RegisterResponse struct {
	TicketID string `json:"ticket_id"`
	CourseID string `json:"course_id"`
	Message  string `json:"message"`
}

type SubmitPriorityListsResponse struct {
	TicketIDs []string `json:"ticket_ids"`
	Message   string   `json:"message"`
}

type RunDrawResponse struct {
	ProcedureID string    `json:"procedure_id"`
	DrawnAt     time.Time `json:"drawn_at"`
	Placed      int       `json:"placed"`
	Unplaced    int       `json:"unplaced"`
	Message     string    `json:"message"`
}

type CleanupResponse struct {
	DeletedLists int `json:"deleted_lists"`
}

type MyTicketsResponse struct {
	Registrations []Ticket       `json:"registrations"`
	PriorityLists []PriorityList `json:"priority_lists"`
}

// Domain types

type Campaign struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	StartShow time.Time `json:"start_show"`
	EndShow   time.Time `json:"end_show"`
	ShareSlug *string   `json:"share_slug,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type Course struct {
	ID              string `json:"id"`
	CampaignID      string `json:"campaign_id"`
	Name            string `json:"name"`
	MaxParticipants int    `json:"max_participants"`
	Confirmed       int    `json:"confirmed"`
	SeatsLeft       int    `json:"seats_left"`
}

type Procedure struct {
	ID                   string     `json:"id"`
	CampaignID           string     `json:"campaign_id"`
	Name                 string     `json:"name"`
	Kind                 string     `json:"kind"`
	StartDate            time.Time  `json:"start_date"`
	EndDate              time.Time  `json:"end_date"`
	RuleBased            bool       `json:"rule_based"`
	DrawDate             *time.Time `json:"draw_date,omitempty"`
	MaxPriorityLists     *int       `json:"max_priority_lists,omitempty"`
	MaxPriorityListItems *int       `json:"max_priority_list_items,omitempty"`
	DrawnAt              *time.Time `json:"drawn_at,omitempty"`
}

// IsActive reports whether the procedure accepts requests at the given
// instant. The interval is open on both ends.
func (p Procedure) IsActive(now time.Time) bool {
	return now.After(p.StartDate) && now.Before(p.EndDate)
}

// IsDrawn reports whether a draw procedure has completed its lottery pass.
func (p Procedure) IsDrawn() bool {
	return p.DrawnAt != nil
}

type Ticket struct {
	ID            string    `json:"id"`
	Kind          string    `json:"kind"`
	CampaignID    string    `json:"campaign_id"`
	ProcedureID   *string   `json:"procedure_id,omitempty"`
	ParticipantID string    `json:"participant_id"`
	InitiatorID   string    `json:"initiator_id"`
	CourseID      *string   `json:"course_id,omitempty"`
	ExamOnly      bool      `json:"exam_only"`
	CreatedAt     time.Time `json:"created_at"`
	IPHash        *string   `json:"-"` // Never expose in JSON
}

type PriorityItem struct {
	TicketID string `json:"ticket_id"`
	CourseID string `json:"course_id"`
	Rank     int    `json:"rank"`
}

type PriorityList struct {
	Ticket Ticket         `json:"ticket"`
	Items  []PriorityItem `json:"items"`
}

type CampaignWithCourses struct {
	Campaign   Campaign    `json:"campaign"`
	Courses    []Course    `json:"courses"`
	Procedures []Procedure `json:"procedures"`
}

// Error response

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
