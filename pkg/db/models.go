package db

import "time"

// PriorityEntry is one row of the priority ledger table
type PriorityEntry struct {
	Email     string    `ssql_header:"email" ssql_type:"text"`
	Name      string    `ssql_header:"name" ssql_type:"text"`
	Priority  int       `ssql_header:"priority" ssql_type:"int"`
	UpdatedAt time.Time `ssql_header:"updated_at" ssql_type:"timestamp"`
}

// PriorityAdjustment is the audit record of one applied ledger change
type PriorityAdjustment struct {
	ID        string    `ssql_header:"id" ssql_type:"uuid"`
	Email     string    `ssql_header:"email" ssql_type:"text"`
	Name      string    `ssql_header:"name" ssql_type:"text"`
	Delta     int       `ssql_header:"delta" ssql_type:"int"`
	Previous  int       `ssql_header:"previous" ssql_type:"int"`
	New       int       `ssql_header:"new" ssql_type:"int"`
	Mode      string    `ssql_header:"mode" ssql_type:"text"`
	CreatedAt time.Time `ssql_header:"created_at" ssql_type:"timestamp"`
}

// ExclusionRecord is a commitment row left out of an allocation run
type ExclusionRecord struct {
	ID          string    `ssql_header:"id" ssql_type:"uuid"`
	RunID       string    `ssql_header:"run_id" ssql_type:"uuid"`
	Email       string    `ssql_header:"email" ssql_type:"text"`
	Name        string    `ssql_header:"name" ssql_type:"text"`
	Reason      string    `ssql_header:"reason" ssql_type:"text"`
	SubmittedAt time.Time `ssql_header:"submitted_at" ssql_type:"timestamp"`
	CreatedAt   time.Time `ssql_header:"created_at" ssql_type:"timestamp"`
}

// GenderRecord caches one classifier result
type GenderRecord struct {
	Email  string `ssql_header:"email" ssql_type:"text"`
	Name   string `ssql_header:"name" ssql_type:"text"`
	Gender string `ssql_header:"gender" ssql_type:"text"`
}

const (
	tablePriorityEntry      = "priority_entry"
	tablePriorityAdjustment = "priority_adjustment"
	tableExclusionRecord    = "exclusion_record"
	tableGenderRecord       = "gender_record"
)
