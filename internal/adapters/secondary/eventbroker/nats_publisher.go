package eventbroker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/jupiterclapton/cenackle/services/relation-service/internal/core/domain"
)

const (
	StreamName     = "RELATION"
	SubjectPattern = "relation.>" // Tous les events relation.*
)

type NatsBroker struct {
	js jetstream.JetStream
}

// NewNatsBroker initialise la connexion et s'assure que le Stream existe (idempotent).
func NewNatsBroker(url string) (*NatsBroker, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("jetstream init: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     StreamName,
		Subjects: []string{SubjectPattern},
		Storage:  jetstream.FileStorage,
		Replicas: 1, // Mettre 3 en cluster
	})
	if err != nil {
		return nil, fmt.Errorf("create stream: %w", err)
	}

	return &NatsBroker{js: js}, nil
}

// RelationChangedEvent est le payload consommé par feed et notification.
type RelationChangedEvent struct {
	EventID    string `json:"event_id"`
	Action     string `json:"action"` // ex: "follow.created"
	FromID     string `json:"from_id"`
	ToID       string `json:"to_id"`
	Type       string `json:"type"`
	OccurredAt string `json:"occurred_at"`
}

func (n *NatsBroker) PublishRelationChanged(ctx context.Context, action string, rel *domain.Relationship) error {
	event := RelationChangedEvent{
		EventID:    uuid.NewString(),
		Action:     action,
		FromID:     rel.FromID,
		ToID:       rel.ToID,
		Type:       string(rel.Type),
		OccurredAt: time.Now().UTC().Format(time.RFC3339),
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	// relation.follow.created, relation.block.removed... : les subscribers
	// filtrent par wildcard.
	subject := "relation." + action

	if _, err := n.js.Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("nats publish: %w", err)
	}
	return nil
}
