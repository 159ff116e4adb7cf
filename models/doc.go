// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package models defines request, response, and domain types for the API.

# Request Types

Types for parsing incoming JSON:

  - CreateCampaignRequest: name, display window, study courses
  - AddCourseRequest: name, max_participants
  - AddProcedureRequest: kind, interval, draw settings
  - AddRuleRequest: eligibility rule bound to a course
  - ClaimEnrollmentRequest: student_id, study_course_id, term
  - FifoRegisterRequest / DirectRegisterRequest: course_id, exam_only
  - SubmitPriorityListsRequest: procedure_id plus ranked lists

# Response Types

Types for JSON responses:

  - CreateCampaignResponse: campaign_id, admin_key
  - PublishCampaignResponse: share_slug, share_url
  - ClaimEnrollmentResponse: enroll_token
  - RegisterResponse: ticket_id, course_id, message
  - SubmitPriorityListsResponse: ticket_ids, message
  - RunDrawResponse: placed/unplaced counts
  - MyTicketsResponse: registrations and priority lists
  - ErrorResponse: error, message

# Domain Types

Internal data structures:

  - Campaign: campaign metadata and display window
  - Course: course with capacity and derived occupancy
  - Procedure: fifo/draw/confirm allocation mechanism
  - Ticket: ledger record of an allocation decision
  - PriorityItem / PriorityList: ranked choices of a draw submission

# Constants

Procedure kinds:

	KindFifo    = "fifo"
	KindDraw    = "draw"
	KindConfirm = "confirm"

Ticket kinds:

	TicketRegistration = "registration"
	TicketPriorityList = "priority_list"

Rule kinds:

	RuleStudyCourse        = "study_course"
	RuleTerm               = "term"
	RuleStudyCourseAndTerm = "study_course_and_term"
*/
package models
