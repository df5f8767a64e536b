package kafkax

import (
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

const (
	HeaderEventID    = "event_id"
	HeaderEventType  = "event_type"
	HeaderOccurredAt = "occurred_at"
)

// EventMeta is the metadata every service puts on its Kafka messages.
type EventMeta struct {
	EventID    string
	EventType  string
	OccurredAt time.Time
}

// ExtractEventMeta reads the metadata headers. Producers that send none still
// get a stable id from the message position, so redeliveries dedupe while
// distinct events sharing a key do not.
func ExtractEventMeta(msg kafka.Message) EventMeta {
	meta := EventMeta{
		EventID:   HeaderValue(msg.Headers, HeaderEventID),
		EventType: HeaderValue(msg.Headers, HeaderEventType),
	}
	if meta.EventID == "" {
		meta.EventID = fmt.Sprintf("%s/%d/%d", msg.Topic, msg.Partition, msg.Offset)
	}
	if meta.EventType == "" {
		meta.EventType = msg.Topic
	}
	if raw := HeaderValue(msg.Headers, HeaderOccurredAt); raw != "" {
		meta.OccurredAt, _ = time.Parse(time.RFC3339Nano, raw)
	}
	return meta
}

// MetaHeaders renders meta as message headers, the inverse of ExtractEventMeta.
func MetaHeaders(meta EventMeta) []kafka.Header {
	headers := []kafka.Header{
		{Key: HeaderEventID, Value: []byte(meta.EventID)},
		{Key: HeaderEventType, Value: []byte(meta.EventType)},
	}
	if !meta.OccurredAt.IsZero() {
		headers = append(headers, kafka.Header{
			Key:   HeaderOccurredAt,
			Value: []byte(meta.OccurredAt.UTC().Format(time.RFC3339Nano)),
		})
	}
	return headers
}

func HeaderValue(headers []kafka.Header, key string) string {
	for _, h := range headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func SplitBrokers(raw string) []string {
	var brokers []string
	for _, b := range strings.Split(raw, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}
