package kingdom

import (
	"database/sql"
	"sync"
)

// store handles all database operations for kingdoms and match records.
type store struct {
	db *sql.DB
	mu sync.RWMutex
}

// AggregateResult is the outcome of a full aggregate recompute.
type AggregateResult struct {
	Updated  int     `json:"updated_count"`
	AvgScore float64 `json:"avg_score"`
}

// RankRepairResult is one page of a cursor-driven rank repair.
type RankRepairResult struct {
	Fixed      int  `json:"fixed_count"`
	HasMore    bool `json:"has_more"`
	NextOffset int  `json:"next_offset"`
}

// rankPageSize bounds one RepairRanks call.
const rankPageSize = 100

const settingDerivedTriggers = "derived_triggers"
