package types

import (
	"time"

	cbigquery "cloud.google.com/go/bigquery"
)

// LifecycleEventRow mirrors the lifecycle_events BigQuery schema.
type LifecycleEventRow struct {
	EventID       string             `bigquery:"event_id"`
	EventType     string             `bigquery:"event_type"`
	AggregateType string             `bigquery:"aggregate_type"`
	AggregateID   string             `bigquery:"aggregate_id"`
	OccurredAt    time.Time          `bigquery:"occurred_at"`
	ActorID       *string            `bigquery:"actor_id"`
	RequestID     *string            `bigquery:"request_id"`
	OfferID       *string            `bigquery:"offer_id"`
	CreatorID     *string            `bigquery:"creator_id"`
	HelperID      *string            `bigquery:"helper_id"`
	Category      *string            `bigquery:"category"`
	FromStatus    *string            `bigquery:"from_status"`
	ToStatus      *string            `bigquery:"to_status"`
	Payload       cbigquery.NullJSON `bigquery:"payload"`
}

// LifecycleEventsSchema is the table layout for LifecycleEventRow, partitioned
// by day on occurred_at.
var LifecycleEventsSchema = cbigquery.Schema{
	{Name: "event_id", Type: cbigquery.StringFieldType, Required: true},
	{Name: "event_type", Type: cbigquery.StringFieldType, Required: true},
	{Name: "aggregate_type", Type: cbigquery.StringFieldType, Required: true},
	{Name: "aggregate_id", Type: cbigquery.StringFieldType, Required: true},
	{Name: "occurred_at", Type: cbigquery.TimestampFieldType, Required: true},
	{Name: "actor_id", Type: cbigquery.StringFieldType},
	{Name: "request_id", Type: cbigquery.StringFieldType},
	{Name: "offer_id", Type: cbigquery.StringFieldType},
	{Name: "creator_id", Type: cbigquery.StringFieldType},
	{Name: "helper_id", Type: cbigquery.StringFieldType},
	{Name: "category", Type: cbigquery.StringFieldType},
	{Name: "from_status", Type: cbigquery.StringFieldType},
	{Name: "to_status", Type: cbigquery.StringFieldType},
	{Name: "payload", Type: cbigquery.JSONFieldType},
}

// LifecycleEventsPartitionField is the column lifecycle_events is partitioned on.
const LifecycleEventsPartitionField = "occurred_at"
