// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/danielhkuo/seatdraw/models"
	"github.com/danielhkuo/seatdraw/testutil"
)

// TestFifoLifecycle walks the full first-come-first-served flow through the
// handlers: create, configure, publish, claim, register, inspect.
func TestFifoLifecycle(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer db.Close()

	cfg := testutil.GetTestConfig()
	campaigns := NewCampaignHandler(db, cfg)
	enroll := NewEnrollHandler(db, cfg)

	now := time.Now()

	// Admin creates the campaign
	req := testutil.MakeRequest("POST", "/campaigns", models.CreateCampaignRequest{
		Name:      "Winter Seminars",
		StartShow: now.Add(-time.Hour),
		EndShow:   now.Add(14 * 24 * time.Hour),
	}, nil)
	w := httptest.NewRecorder()
	campaigns.CreateCampaign(w, req)
	testutil.AssertStatus(t, w, http.StatusCreated)

	var created models.CreateCampaignResponse
	testutil.AssertJSON(t, w, &created)
	admin := map[string]string{"X-Admin-Key": created.AdminKey}

	// Add a course
	req = testutil.MakeRequest("POST", "/campaigns/"+created.CampaignID+"/courses", models.AddCourseRequest{
		Name: "Compiler Construction", MaxParticipants: 2,
	}, admin)
	req.SetPathValue("id", created.CampaignID)
	w = httptest.NewRecorder()
	campaigns.AddCourse(w, req)
	testutil.AssertStatus(t, w, http.StatusCreated)

	var course models.AddCourseResponse
	testutil.AssertJSON(t, w, &course)

	// Add a rule-based fifo procedure covering now
	req = testutil.MakeRequest("POST", "/campaigns/"+created.CampaignID+"/procedures", models.AddProcedureRequest{
		Name:      "Open Registration",
		Kind:      models.KindFifo,
		StartDate: now.Add(-time.Hour),
		EndDate:   now.Add(24 * time.Hour),
		RuleBased: true,
	}, admin)
	req.SetPathValue("id", created.CampaignID)
	w = httptest.NewRecorder()
	campaigns.AddProcedure(w, req)
	testutil.AssertStatus(t, w, http.StatusCreated)

	// Restrict the course to third-term students
	req = testutil.MakeRequest("POST", "/campaigns/"+created.CampaignID+"/rules", models.AddRuleRequest{
		CourseID:    course.CourseID,
		Kind:        models.RuleTerm,
		MinimumTerm: intPtr(3),
	}, admin)
	req.SetPathValue("id", created.CampaignID)
	w = httptest.NewRecorder()
	campaigns.AddRule(w, req)
	testutil.AssertStatus(t, w, http.StatusCreated)

	// Publish to get the share slug
	req = testutil.MakeRequest("POST", "/campaigns/"+created.CampaignID+"/publish", nil, admin)
	req.SetPathValue("id", created.CampaignID)
	w = httptest.NewRecorder()
	campaigns.PublishCampaign(w, req)
	testutil.AssertStatus(t, w, http.StatusOK)

	var published models.PublishCampaignResponse
	testutil.AssertJSON(t, w, &published)
	slug := published.ShareSlug

	// A third-term student claims and registers
	req = testutil.MakeRequest("POST", "/campaigns/"+slug+"/claim", models.ClaimEnrollmentRequest{
		StudentID: "senior-student", Term: intPtr(4),
	}, nil)
	req.SetPathValue("slug", slug)
	w = httptest.NewRecorder()
	enroll.Claim(w, req)
	testutil.AssertStatus(t, w, http.StatusCreated)

	var claim models.ClaimEnrollmentResponse
	testutil.AssertJSON(t, w, &claim)

	req = testutil.MakeRequest("POST", "/campaigns/"+slug+"/register", models.FifoRegisterRequest{
		CourseID: course.CourseID,
	}, map[string]string{"X-Enroll-Token": claim.EnrollToken})
	req.SetPathValue("slug", slug)
	w = httptest.NewRecorder()
	enroll.Register(w, req)
	testutil.AssertStatus(t, w, http.StatusCreated)

	// A first-term student claims but the rule rejects the registration
	req = testutil.MakeRequest("POST", "/campaigns/"+slug+"/claim", models.ClaimEnrollmentRequest{
		StudentID: "fresh-student", Term: intPtr(1),
	}, nil)
	req.SetPathValue("slug", slug)
	w = httptest.NewRecorder()
	enroll.Claim(w, req)
	testutil.AssertStatus(t, w, http.StatusCreated)

	var freshClaim models.ClaimEnrollmentResponse
	testutil.AssertJSON(t, w, &freshClaim)

	req = testutil.MakeRequest("POST", "/campaigns/"+slug+"/register", models.FifoRegisterRequest{
		CourseID: course.CourseID,
	}, map[string]string{"X-Enroll-Token": freshClaim.EnrollToken})
	req.SetPathValue("slug", slug)
	w = httptest.NewRecorder()
	enroll.Register(w, req)
	testutil.AssertStatus(t, w, http.StatusForbidden)

	// The senior student sees their seat
	req = testutil.MakeRequest("GET", "/campaigns/"+slug+"/my-tickets", nil,
		map[string]string{"X-Enroll-Token": claim.EnrollToken})
	req.SetPathValue("slug", slug)
	w = httptest.NewRecorder()
	enroll.MyTickets(w, req)
	testutil.AssertStatus(t, w, http.StatusOK)

	var tickets models.MyTicketsResponse
	testutil.AssertJSON(t, w, &tickets)
	if len(tickets.Registrations) != 1 {
		t.Errorf("Expected 1 registration, got %d", len(tickets.Registrations))
	}

	// Occupancy is visible on the public campaign view
	req = testutil.MakeRequest("GET", "/campaigns/"+slug, nil, nil)
	req.SetPathValue("slug", slug)
	w = httptest.NewRecorder()
	enroll.GetCampaign(w, req)
	testutil.AssertStatus(t, w, http.StatusOK)

	var view models.CampaignWithCourses
	testutil.AssertJSON(t, w, &view)
	if len(view.Courses) != 1 || view.Courses[0].SeatsLeft != 1 {
		t.Errorf("Expected 1 seat left, got %+v", view.Courses)
	}
}

// TestDrawLifecycle walks the lottery flow: submit lists while open, run
// the draw after the draw date, clean up afterwards.
func TestDrawLifecycle(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer db.Close()

	cfg := testutil.GetTestConfig()
	lists := NewListHandler(db, cfg)
	drawHandler := NewDrawHandler(db, cfg)
	enroll := NewEnrollHandler(db, cfg)

	campaignID, adminKey, shareSlug := testutil.CreateTestCampaign(t, db, cfg)
	courseID := testutil.AddTestCourse(t, db, campaignID, "Popular Lab", 1)
	procedureID := testutil.AddTestDrawProcedure(t, db, campaignID, false, true, 3, 5)
	admin := map[string]string{"X-Admin-Key": adminKey}

	// Two students submit single-choice lists while the procedure is open
	tokens := map[string]string{}
	for _, student := range []string{"student-a", "student-b"} {
		tokens[student] = testutil.CreateTestStudent(t, db, campaignID, student, nil, nil)

		req := testutil.MakeRequest("POST", "/campaigns/"+shareSlug+"/priority-lists", models.SubmitPriorityListsRequest{
			ProcedureID: procedureID,
			Lists: []models.PriorityListSubmission{
				{Choices: []string{courseID}},
			},
		}, map[string]string{"X-Enroll-Token": tokens[student]})
		req.SetPathValue("slug", shareSlug)
		w := httptest.NewRecorder()
		lists.SubmitLists(w, req)
		testutil.AssertStatus(t, w, http.StatusCreated)
	}

	// Draw date passes
	if _, err := db.Exec(`
		UPDATE procedure SET draw_date = $1 WHERE id = $2
	`, time.Now().Add(-time.Minute), procedureID); err != nil {
		t.Fatalf("Failed to move draw date: %v", err)
	}

	// Admin triggers the draw
	req := testutil.MakeRequest("POST", "/procedures/"+procedureID+"/draw", nil, admin)
	req.SetPathValue("id", procedureID)
	w := httptest.NewRecorder()
	drawHandler.Run(w, req)
	testutil.AssertStatus(t, w, http.StatusOK)

	var result models.RunDrawResponse
	testutil.AssertJSON(t, w, &result)
	if result.Placed != 1 || result.Unplaced != 1 {
		t.Errorf("Expected 1 placed and 1 unplaced, got %d/%d", result.Placed, result.Unplaced)
	}

	// Cleanup removes the leftover lists
	req = testutil.MakeRequest("POST", "/procedures/"+procedureID+"/cleanup", nil, admin)
	req.SetPathValue("id", procedureID)
	w = httptest.NewRecorder()
	drawHandler.Cleanup(w, req)
	testutil.AssertStatus(t, w, http.StatusOK)

	// Exactly one of the two students holds the seat
	winners := 0
	for student, token := range tokens {
		req = testutil.MakeRequest("GET", "/campaigns/"+shareSlug+"/my-tickets", nil,
			map[string]string{"X-Enroll-Token": token})
		req.SetPathValue("slug", shareSlug)
		w = httptest.NewRecorder()
		enroll.MyTickets(w, req)
		testutil.AssertStatus(t, w, http.StatusOK)

		var tickets models.MyTicketsResponse
		testutil.AssertJSON(t, w, &tickets)
		if len(tickets.PriorityLists) != 0 {
			t.Errorf("Expected no lists after cleanup for %s, got %d", student, len(tickets.PriorityLists))
		}
		winners += len(tickets.Registrations)
	}
	if winners != 1 {
		t.Errorf("Expected exactly 1 winner, got %d", winners)
	}
}
