// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/danielhkuo/seatdraw/auth"
	"github.com/danielhkuo/seatdraw/models"
	"github.com/danielhkuo/seatdraw/testutil"
)

func intPtr(n int) *int       { return &n }
func strPtr(s string) *string { return &s }

// adminKeyFor derives the admin key for a campaign created outside the
// standard fixtures.
func adminKeyFor(campaignID string) string {
	return auth.GenerateAdminKey(campaignID, testutil.GetTestConfig().AdminKeySalt)
}

func TestCreateCampaign(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer db.Close()

	cfg := testutil.GetTestConfig()
	handler := NewCampaignHandler(db, cfg)

	now := time.Now()
	req := testutil.MakeRequest("POST", "/campaigns", models.CreateCampaignRequest{
		Name:      "Winter Enrollment",
		StartShow: now,
		EndShow:   now.Add(14 * 24 * time.Hour),
	}, nil)
	w := httptest.NewRecorder()

	handler.CreateCampaign(w, req)

	testutil.AssertStatus(t, w, http.StatusCreated)

	var resp models.CreateCampaignResponse
	testutil.AssertJSON(t, w, &resp)
	if resp.CampaignID == "" {
		t.Error("Expected campaign_id in response")
	}
	if resp.AdminKey == "" {
		t.Error("Expected admin_key in response")
	}

	// Campaign exists in the database
	var name string
	if err := db.QueryRow(`SELECT name FROM campaign WHERE id = $1`, resp.CampaignID).Scan(&name); err != nil {
		t.Fatalf("Campaign not persisted: %v", err)
	}
	if name != "Winter Enrollment" {
		t.Errorf("Expected name 'Winter Enrollment', got '%s'", name)
	}
}

func TestCreateCampaign_Validation(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer db.Close()

	cfg := testutil.GetTestConfig()
	handler := NewCampaignHandler(db, cfg)

	now := time.Now()

	t.Run("missing name", func(t *testing.T) {
		req := testutil.MakeRequest("POST", "/campaigns", models.CreateCampaignRequest{
			StartShow: now, EndShow: now.Add(time.Hour),
		}, nil)
		w := httptest.NewRecorder()

		handler.CreateCampaign(w, req)
		testutil.AssertStatus(t, w, http.StatusBadRequest)
	})

	t.Run("end before start", func(t *testing.T) {
		req := testutil.MakeRequest("POST", "/campaigns", models.CreateCampaignRequest{
			Name: "Backwards", StartShow: now.Add(time.Hour), EndShow: now,
		}, nil)
		w := httptest.NewRecorder()

		handler.CreateCampaign(w, req)
		testutil.AssertStatus(t, w, http.StatusBadRequest)
	})
}

func TestCreateCampaign_StudyCourseRestriction(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer db.Close()

	cfg := testutil.GetTestConfig()
	handler := NewCampaignHandler(db, cfg)

	now := time.Now()
	req := testutil.MakeRequest("POST", "/campaigns", models.CreateCampaignRequest{
		Name:           "CS Campaign",
		StartShow:      now,
		EndShow:        now.Add(time.Hour),
		StudyCourseIDs: []string{"cs-bsc", "cs-msc"},
	}, nil)
	w := httptest.NewRecorder()

	handler.CreateCampaign(w, req)
	testutil.AssertStatus(t, w, http.StatusCreated)

	var resp models.CreateCampaignResponse
	testutil.AssertJSON(t, w, &resp)

	var count int
	db.QueryRow(`SELECT COUNT(*) FROM campaign_study_course WHERE campaign_id = $1`, resp.CampaignID).Scan(&count)
	if count != 2 {
		t.Errorf("Expected 2 study course rows, got %d", count)
	}
}

func TestAddCourse(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer db.Close()

	cfg := testutil.GetTestConfig()
	handler := NewCampaignHandler(db, cfg)
	campaignID, adminKey, _ := testutil.CreateTestCampaign(t, db, cfg)

	req := testutil.MakeRequest("POST", "/campaigns/"+campaignID+"/courses", models.AddCourseRequest{
		Name: "Databases", MaxParticipants: 30,
	}, map[string]string{"X-Admin-Key": adminKey})
	req.SetPathValue("id", campaignID)
	w := httptest.NewRecorder()

	handler.AddCourse(w, req)
	testutil.AssertStatus(t, w, http.StatusCreated)

	var resp models.AddCourseResponse
	testutil.AssertJSON(t, w, &resp)
	if resp.CourseID == "" {
		t.Error("Expected course_id in response")
	}
}

func TestAddCourse_RequiresAdminKey(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer db.Close()

	cfg := testutil.GetTestConfig()
	handler := NewCampaignHandler(db, cfg)
	campaignID, _, _ := testutil.CreateTestCampaign(t, db, cfg)

	req := testutil.MakeRequest("POST", "/campaigns/"+campaignID+"/courses", models.AddCourseRequest{
		Name: "Databases", MaxParticipants: 30,
	}, map[string]string{"X-Admin-Key": "wrong-key"})
	req.SetPathValue("id", campaignID)
	w := httptest.NewRecorder()

	handler.AddCourse(w, req)
	testutil.AssertStatus(t, w, http.StatusUnauthorized)
}

func TestAddProcedure(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer db.Close()

	cfg := testutil.GetTestConfig()
	handler := NewCampaignHandler(db, cfg)
	campaignID, adminKey, _ := testutil.CreateTestCampaign(t, db, cfg)

	now := time.Now()
	req := testutil.MakeRequest("POST", "/campaigns/"+campaignID+"/procedures", models.AddProcedureRequest{
		Name:      "Phase 1",
		Kind:      models.KindFifo,
		StartDate: now,
		EndDate:   now.Add(48 * time.Hour),
	}, map[string]string{"X-Admin-Key": adminKey})
	req.SetPathValue("id", campaignID)
	w := httptest.NewRecorder()

	handler.AddProcedure(w, req)
	testutil.AssertStatus(t, w, http.StatusCreated)
}

func TestAddProcedure_DrawRequiresDrawFields(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer db.Close()

	cfg := testutil.GetTestConfig()
	handler := NewCampaignHandler(db, cfg)
	campaignID, adminKey, _ := testutil.CreateTestCampaign(t, db, cfg)

	now := time.Now()
	req := testutil.MakeRequest("POST", "/campaigns/"+campaignID+"/procedures", models.AddProcedureRequest{
		Name:      "Lottery",
		Kind:      models.KindDraw,
		StartDate: now,
		EndDate:   now.Add(48 * time.Hour),
		// draw_date and limits missing
	}, map[string]string{"X-Admin-Key": adminKey})
	req.SetPathValue("id", campaignID)
	w := httptest.NewRecorder()

	handler.AddProcedure(w, req)
	testutil.AssertStatus(t, w, http.StatusBadRequest)
}

func TestAddProcedure_RejectsOverlap(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer db.Close()

	cfg := testutil.GetTestConfig()
	handler := NewCampaignHandler(db, cfg)
	campaignID, adminKey, _ := testutil.CreateTestCampaign(t, db, cfg)

	now := time.Now()
	first := testutil.MakeRequest("POST", "/campaigns/"+campaignID+"/procedures", models.AddProcedureRequest{
		Name:      "Phase 1",
		Kind:      models.KindFifo,
		StartDate: now,
		EndDate:   now.Add(48 * time.Hour),
	}, map[string]string{"X-Admin-Key": adminKey})
	first.SetPathValue("id", campaignID)
	w := httptest.NewRecorder()
	handler.AddProcedure(w, first)
	testutil.AssertStatus(t, w, http.StatusCreated)

	// Overlapping interval is refused
	second := testutil.MakeRequest("POST", "/campaigns/"+campaignID+"/procedures", models.AddProcedureRequest{
		Name:      "Phase 2",
		Kind:      models.KindFifo,
		StartDate: now.Add(24 * time.Hour),
		EndDate:   now.Add(72 * time.Hour),
	}, map[string]string{"X-Admin-Key": adminKey})
	second.SetPathValue("id", campaignID)
	w = httptest.NewRecorder()
	handler.AddProcedure(w, second)
	testutil.AssertStatus(t, w, http.StatusConflict)

	// Disjoint interval is fine
	third := testutil.MakeRequest("POST", "/campaigns/"+campaignID+"/procedures", models.AddProcedureRequest{
		Name:      "Phase 2",
		Kind:      models.KindFifo,
		StartDate: now.Add(72 * time.Hour),
		EndDate:   now.Add(96 * time.Hour),
	}, map[string]string{"X-Admin-Key": adminKey})
	third.SetPathValue("id", campaignID)
	w = httptest.NewRecorder()
	handler.AddProcedure(w, third)
	testutil.AssertStatus(t, w, http.StatusCreated)
}

func TestAddRule(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer db.Close()

	cfg := testutil.GetTestConfig()
	handler := NewCampaignHandler(db, cfg)
	campaignID, adminKey, _ := testutil.CreateTestCampaign(t, db, cfg)
	courseID := testutil.AddTestCourse(t, db, campaignID, "CS Only", 10)

	req := testutil.MakeRequest("POST", "/campaigns/"+campaignID+"/rules", models.AddRuleRequest{
		CourseID:      courseID,
		Kind:          models.RuleStudyCourseAndTerm,
		StudyCourseID: strPtr("cs"),
		MinimumTerm:   intPtr(3),
	}, map[string]string{"X-Admin-Key": adminKey})
	req.SetPathValue("id", campaignID)
	w := httptest.NewRecorder()

	handler.AddRule(w, req)
	testutil.AssertStatus(t, w, http.StatusCreated)
}

func TestAddRule_CourseMustBelongToCampaign(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer db.Close()

	cfg := testutil.GetTestConfig()
	handler := NewCampaignHandler(db, cfg)
	campaignID, adminKey, _ := testutil.CreateTestCampaign(t, db, cfg)
	otherCampaign, _, _ := testutil.CreateTestCampaign(t, db, cfg)
	foreignCourse := testutil.AddTestCourse(t, db, otherCampaign, "Foreign", 10)

	req := testutil.MakeRequest("POST", "/campaigns/"+campaignID+"/rules", models.AddRuleRequest{
		CourseID: foreignCourse,
		Kind:     models.RuleTerm,
	}, map[string]string{"X-Admin-Key": adminKey})
	req.SetPathValue("id", campaignID)
	w := httptest.NewRecorder()

	handler.AddRule(w, req)
	testutil.AssertStatus(t, w, http.StatusNotFound)
}

func TestPublishCampaign(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer db.Close()

	cfg := testutil.GetTestConfig()
	handler := NewCampaignHandler(db, cfg)

	// Create an unpublished campaign by hand
	now := time.Now()
	campaignID := "pub-test-campaign"
	if _, err := db.Exec(`
		INSERT INTO campaign (id, name, start_show, end_show, created_at)
		VALUES ($1, 'Unpublished', $2, $3, $4)
	`, campaignID, now.Add(-time.Hour), now.Add(24*time.Hour), now); err != nil {
		t.Fatalf("Failed to insert campaign: %v", err)
	}
	t.Run("needs a course first", func(t *testing.T) {
		req := testutil.MakeRequest("POST", "/campaigns/"+campaignID+"/publish", nil,
			map[string]string{"X-Admin-Key": adminKeyFor(campaignID)})
		req.SetPathValue("id", campaignID)
		w := httptest.NewRecorder()

		handler.PublishCampaign(w, req)
		testutil.AssertStatus(t, w, http.StatusBadRequest)
	})

	testutil.AddTestCourse(t, db, campaignID, "Algorithms", 10)

	t.Run("publish succeeds with a course", func(t *testing.T) {
		req := testutil.MakeRequest("POST", "/campaigns/"+campaignID+"/publish", nil,
			map[string]string{"X-Admin-Key": adminKeyFor(campaignID)})
		req.SetPathValue("id", campaignID)
		w := httptest.NewRecorder()

		handler.PublishCampaign(w, req)
		testutil.AssertStatus(t, w, http.StatusOK)

		var resp models.PublishCampaignResponse
		testutil.AssertJSON(t, w, &resp)
		if resp.ShareSlug == "" {
			t.Error("Expected share_slug in response")
		}
		if resp.ShareURL == "" {
			t.Error("Expected share_url in response")
		}
	})
}

func TestGetCampaignAdmin(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer db.Close()

	cfg := testutil.GetTestConfig()
	handler := NewCampaignHandler(db, cfg)
	campaignID, adminKey, _ := testutil.CreateTestCampaign(t, db, cfg)
	testutil.AddTestCourse(t, db, campaignID, "Algorithms", 10)
	testutil.AddTestProcedure(t, db, campaignID, false)

	req := testutil.MakeRequest("GET", "/campaigns/"+campaignID+"/admin", nil,
		map[string]string{"X-Admin-Key": adminKey})
	req.SetPathValue("id", campaignID)
	w := httptest.NewRecorder()

	handler.GetCampaignAdmin(w, req)
	testutil.AssertStatus(t, w, http.StatusOK)

	var resp models.CampaignWithCourses
	testutil.AssertJSON(t, w, &resp)
	if resp.Campaign.ID != campaignID {
		t.Errorf("Expected campaign %s, got %s", campaignID, resp.Campaign.ID)
	}
	if len(resp.Courses) != 1 {
		t.Errorf("Expected 1 course, got %d", len(resp.Courses))
	}
	if len(resp.Procedures) != 1 {
		t.Errorf("Expected 1 procedure, got %d", len(resp.Procedures))
	}
	if len(resp.Courses) == 1 && resp.Courses[0].SeatsLeft != 10 {
		t.Errorf("Expected 10 seats left, got %d", resp.Courses[0].SeatsLeft)
	}
}

func TestDirectRegister(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer db.Close()

	cfg := testutil.GetTestConfig()
	handler := NewCampaignHandler(db, cfg)
	campaignID, adminKey, _ := testutil.CreateTestCampaign(t, db, cfg)
	courseID := testutil.AddTestCourse(t, db, campaignID, "Algorithms", 1)

	req := testutil.MakeRequest("POST", "/campaigns/"+campaignID+"/registrations", models.DirectRegisterRequest{
		StudentID: "student-1", CourseID: courseID,
	}, map[string]string{"X-Admin-Key": adminKey})
	req.SetPathValue("id", campaignID)
	w := httptest.NewRecorder()

	handler.DirectRegister(w, req)
	testutil.AssertStatus(t, w, http.StatusCreated)

	// Manual tickets carry no procedure and name the admin as initiator
	var procedureID *string
	var initiatorID string
	err := db.QueryRow(`
		SELECT procedure_id, initiator_id FROM ticket WHERE participant_id = 'student-1'
	`).Scan(&procedureID, &initiatorID)
	if err != nil {
		t.Fatalf("Ticket not persisted: %v", err)
	}
	if procedureID != nil {
		t.Error("Direct registration should not reference a procedure")
	}
	if initiatorID != "admin:"+campaignID {
		t.Errorf("Expected admin initiator, got %s", initiatorID)
	}

	// Capacity still enforced
	full := testutil.MakeRequest("POST", "/campaigns/"+campaignID+"/registrations", models.DirectRegisterRequest{
		StudentID: "student-2", CourseID: courseID,
	}, map[string]string{"X-Admin-Key": adminKey})
	full.SetPathValue("id", campaignID)
	w = httptest.NewRecorder()

	handler.DirectRegister(w, full)
	testutil.AssertStatus(t, w, http.StatusConflict)
}
