// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"database/sql"
	"fmt"
)

// CreateSchema creates all tables needed for the application.
// Safe to call multiple times - uses IF NOT EXISTS.
func CreateSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

const schema = `
-- Campaigns
CREATE TABLE IF NOT EXISTS campaign (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    start_show TIMESTAMP NOT NULL,
    end_show TIMESTAMP NOT NULL,
    share_slug TEXT UNIQUE,
    created_at TIMESTAMP NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_campaign_share_slug ON campaign(share_slug);

-- Study courses a campaign is open to. An empty set means unrestricted.
CREATE TABLE IF NOT EXISTS campaign_study_course (
    campaign_id TEXT NOT NULL REFERENCES campaign(id) ON DELETE CASCADE,
    study_course_id TEXT NOT NULL,
    PRIMARY KEY (campaign_id, study_course_id)
);

-- Courses with scarce seats
CREATE TABLE IF NOT EXISTS course (
    id TEXT PRIMARY KEY,
    campaign_id TEXT NOT NULL REFERENCES campaign(id) ON DELETE CASCADE,
    name TEXT NOT NULL,
    max_participants INTEGER NOT NULL CHECK (max_participants >= 0)
);

CREATE INDEX IF NOT EXISTS idx_course_campaign_id ON course(campaign_id);

-- Allocation procedures (time-boxed mechanisms attached to a campaign)
CREATE TABLE IF NOT EXISTS procedure (
    id TEXT PRIMARY KEY,
    campaign_id TEXT NOT NULL REFERENCES campaign(id) ON DELETE CASCADE,
    name TEXT NOT NULL,
    kind TEXT NOT NULL CHECK (kind IN ('fifo', 'draw', 'confirm')),
    start_date TIMESTAMP NOT NULL,
    end_date TIMESTAMP NOT NULL,
    rule_based BOOLEAN NOT NULL DEFAULT TRUE,
    draw_date TIMESTAMP,
    max_priority_lists INTEGER,
    max_priority_list_items INTEGER,
    drawn_at TIMESTAMP,
    CHECK (end_date > start_date)
);

CREATE INDEX IF NOT EXISTS idx_procedure_campaign_id ON procedure(campaign_id);
CREATE INDEX IF NOT EXISTS idx_procedure_draw_date ON procedure(draw_date);

-- Enrollment claims (student identity per campaign)
CREATE TABLE IF NOT EXISTS enrollment_claim (
    campaign_id TEXT NOT NULL REFERENCES campaign(id) ON DELETE CASCADE,
    student_id TEXT NOT NULL,
    study_course_id TEXT,
    term INTEGER,
    enroll_token TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL DEFAULT NOW(),
    PRIMARY KEY (campaign_id, enroll_token),
    UNIQUE (campaign_id, student_id)
);

CREATE INDEX IF NOT EXISTS idx_enrollment_claim_campaign ON enrollment_claim(campaign_id);

-- Ticket ledger: every allocation decision. Append-only except
-- priority-list deletion. seq orders tickets by insertion so the
-- pre-shuffle draw order depends only on submission order.
CREATE TABLE IF NOT EXISTS ticket (
    id TEXT PRIMARY KEY,
    seq BIGSERIAL,
    kind TEXT NOT NULL CHECK (kind IN ('registration', 'priority_list')),
    campaign_id TEXT NOT NULL REFERENCES campaign(id) ON DELETE CASCADE,
    procedure_id TEXT REFERENCES procedure(id) ON DELETE SET NULL,
    participant_id TEXT NOT NULL,
    initiator_id TEXT NOT NULL,
    course_id TEXT REFERENCES course(id) ON DELETE SET NULL,
    exam_only BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMP NOT NULL DEFAULT NOW(),
    ip_hash TEXT
);

CREATE INDEX IF NOT EXISTS idx_ticket_course ON ticket(course_id) WHERE kind = 'registration';
CREATE INDEX IF NOT EXISTS idx_ticket_procedure ON ticket(procedure_id);
CREATE INDEX IF NOT EXISTS idx_ticket_participant ON ticket(campaign_id, participant_id);

-- Ranked choices of a priority-list ticket. Rank 1 is most preferred.
CREATE TABLE IF NOT EXISTS priority_item (
    ticket_id TEXT NOT NULL REFERENCES ticket(id) ON DELETE CASCADE,
    course_id TEXT NOT NULL,
    rank INTEGER NOT NULL CHECK (rank >= 1),
    PRIMARY KEY (ticket_id, rank),
    UNIQUE (ticket_id, course_id)
);

-- Eligibility rules bound to a (campaign, course) pair
CREATE TABLE IF NOT EXISTS registration_rule (
    id TEXT PRIMARY KEY,
    campaign_id TEXT NOT NULL REFERENCES campaign(id) ON DELETE CASCADE,
    course_id TEXT NOT NULL REFERENCES course(id) ON DELETE CASCADE,
    kind TEXT NOT NULL CHECK (kind IN ('study_course', 'term', 'study_course_and_term')),
    study_course_id TEXT,
    minimum_term INTEGER
);

CREATE INDEX IF NOT EXISTS idx_registration_rule_course ON registration_rule(campaign_id, course_id);
`
