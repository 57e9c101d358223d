package pubsub

import "cloud.google.com/go/pubsub"

type client struct {
	client   *pubsub.Client
	teardown func()
}

// EventType represents the type of event/message sent via pubsub.
type EventType string

const (
	EventImportCompleted  EventType = "import-completed"
	EventRecalculateStats EventType = "recalculate-stats"
)

// ImportCompleted is the payload published after an import run reaches the
// commit phase, successfully or not.
type ImportCompleted struct {
	BatchID  string   `msgpack:"batch_id"`
	Operator string   `msgpack:"operator"`
	Inserted int      `msgpack:"inserted"`
	Replaced int      `msgpack:"replaced"`
	Skipped  int      `msgpack:"skipped"`
	Cycles   []int64  `msgpack:"cycles"`
	Warnings []string `msgpack:"warnings"`
	Failed   bool     `msgpack:"failed"`
}

// RecalculateStats asks the recalculation handler for a full rebuild. An
// empty KingdomIDs slice means every kingdom.
type RecalculateStats struct {
	KingdomIDs []int64 `msgpack:"kingdom_ids"`
	Cycles     []int64 `msgpack:"cycles"`
}
