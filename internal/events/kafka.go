// Package events implements the optional asynchronous event bus: a
// fire-and-forget fan-out of completed hands and collusion watchlist
// updates to Kafka, for downstream consumers outside the request path.
package events

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/IBM/sarama"

	"agentpoker/internal/collusion"
	"agentpoker/internal/engine"
)

// ProducerConfig holds the Kafka producer's connection and topic settings.
type ProducerConfig struct {
	Brokers      []string
	HandTopic    string
	WatchTopic   string
	MaxRetries   int
	RetryBackoff time.Duration
}

// HandCompletedEvent is the wire format for a completed-hand notification.
type HandCompletedEvent struct {
	HandID      string    `json:"handId"`
	TableID     string    `json:"tableId"`
	WinnerIDs   []string  `json:"winnerIds"`
	WinningHand string    `json:"winningHand"`
	Pot         int       `json:"pot"`
	PlayerCount int       `json:"playerCount"`
	EndedAt     time.Time `json:"endedAt"`
}

// CollusionFlaggedEvent is the wire format for a pair at or above the
// watchlist threshold.
type CollusionFlaggedEvent struct {
	AgentA string    `json:"agentA"`
	AgentB string    `json:"agentB"`
	Score  float64   `json:"score"`
	AsOf   time.Time `json:"asOf"`
}

// Producer publishes events to Kafka asynchronously. Failures are counted,
// not surfaced: this bus is an observability-only consumer, never a gate
// on a table-actor commit.
type Producer struct {
	async      sarama.AsyncProducer
	handTopic  string
	watchTopic string

	mu     sync.Mutex
	sent   int64
	failed int64
}

// NewProducer starts an async Kafka producer and a background error drain.
func NewProducer(cfg ProducerConfig) (*Producer, error) {
	saramaCfg := sarama.NewConfig()
	saramaCfg.Producer.Return.Successes = false
	saramaCfg.Producer.Return.Errors = true
	saramaCfg.Producer.Retry.Max = cfg.MaxRetries
	saramaCfg.Producer.Retry.Backoff = cfg.RetryBackoff

	async, err := sarama.NewAsyncProducer(cfg.Brokers, saramaCfg)
	if err != nil {
		return nil, fmt.Errorf("events: create async producer: %w", err)
	}

	p := &Producer{async: async, handTopic: cfg.HandTopic, watchTopic: cfg.WatchTopic}
	go p.drainErrors()
	return p, nil
}

func (p *Producer) drainErrors() {
	for range p.async.Errors() {
		p.mu.Lock()
		p.failed++
		p.mu.Unlock()
	}
}

// buildHandCompletedEvent converts a HandRecord to its wire event, pulled
// out as a pure function so the conversion is testable without a live
// Kafka producer.
func buildHandCompletedEvent(record *engine.HandRecord) HandCompletedEvent {
	return HandCompletedEvent{
		HandID:      record.HandID,
		TableID:     record.TableID,
		WinnerIDs:   record.WinnerIDs,
		WinningHand: record.WinningHand,
		Pot:         record.Pot,
		PlayerCount: len(record.StartingStacks),
		EndedAt:     record.EndedAt,
	}
}

func buildCollusionFlaggedEvent(pair *collusion.PairStats, asOf time.Time) CollusionFlaggedEvent {
	return CollusionFlaggedEvent{AgentA: pair.AgentA, AgentB: pair.AgentB, Score: pair.Score, AsOf: asOf}
}

// PublishHandCompleted fans out a HandRecord as a HandCompletedEvent, keyed
// by table id so all of a table's hands land on the same partition.
func (p *Producer) PublishHandCompleted(record *engine.HandRecord) error {
	return p.publish(p.handTopic, record.TableID, buildHandCompletedEvent(record))
}

// PublishCollusionFlagged fans out a pair at or above the watchlist threshold,
// keyed by the canonical pair (agentA < agentB).
func (p *Producer) PublishCollusionFlagged(pair *collusion.PairStats, asOf time.Time) error {
	return p.publish(p.watchTopic, pair.AgentA+":"+pair.AgentB, buildCollusionFlaggedEvent(pair, asOf))
}

func (p *Producer) publish(topic, key string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("events: marshal payload: %w", err)
	}

	p.async.Input() <- &sarama.ProducerMessage{
		Topic:     topic,
		Key:       sarama.StringEncoder(key),
		Value:     sarama.ByteEncoder(data),
		Timestamp: time.Now(),
	}

	p.mu.Lock()
	p.sent++
	p.mu.Unlock()
	return nil
}

// Stats returns the producer's lifetime send/failure counters.
func (p *Producer) Stats() (sent, failed int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sent, p.failed
}

// Close shuts the async producer down, flushing in-flight messages.
func (p *Producer) Close() error {
	return p.async.Close()
}
