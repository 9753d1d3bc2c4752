// Package events persists and publishes one event per state transition.
// Event rows are the durable record; the NATS publish is the at-least-once
// notification channel the indexing collaborator consumes. A publish failure
// is logged and counted but never rolls back the transition that caused it.
package events

import (
	"log"

	"league-backend/internal/clients"
	"league-backend/internal/models"

	"gorm.io/gorm"
)

// Publisher is the event emission surface the services depend on
type Publisher interface {
	LeagueCreated(event *models.EventLeagueCreated)
	ParticipantJoined(event *models.EventParticipantJoined)
	ScoresUpdated(event *models.EventScoresUpdated)
	LeagueFinalized(event *models.EventLeagueFinalized)
	PrizeClaimed(event *models.EventPrizeClaimed)
	EmergencyWithdrawn(event *models.EventEmergencyWithdrawn)
	LeagueAdmin(event *models.EventLeagueAdmin)
	OracleRequest(event *models.EventOracleRequest)
	OracleConfigUpdated(event *models.EventOracleConfigUpdated)
}

// EventBus writes event rows and mirrors them to NATS
type EventBus struct {
	db   *gorm.DB
	nats *clients.NATSClient // nil disables publishing (tests, local runs)
}

// NewEventBus creates the event publisher
func NewEventBus(db *gorm.DB, natsClient *clients.NATSClient) *EventBus {
	return &EventBus{db: db, nats: natsClient}
}

func (b *EventBus) emit(leagueRef, eventType string, record, payload interface{}) {
	if err := b.db.Create(record).Error; err != nil {
		log.Printf("❌ [Events] Failed to persist %s event: %v", eventType, err)
	}
	if b.nats == nil {
		return
	}
	if err := b.nats.PublishEvent(leagueRef, eventType, payload); err != nil {
		log.Printf("❌ [Events] Failed to publish %s event: %v", eventType, err)
	}
}

func (b *EventBus) LeagueCreated(event *models.EventLeagueCreated) {
	b.emit(event.LeagueAddress, models.EventTypeLeagueCreated, event, event)
}

func (b *EventBus) ParticipantJoined(event *models.EventParticipantJoined) {
	b.emit(event.LeagueID, models.EventTypeParticipantJoined, event, event)
}

func (b *EventBus) ScoresUpdated(event *models.EventScoresUpdated) {
	b.emit(event.LeagueID, models.EventTypeScoresUpdated, event, event)
}

func (b *EventBus) LeagueFinalized(event *models.EventLeagueFinalized) {
	b.emit(event.LeagueID, models.EventTypeLeagueFinalized, event, event)
}

func (b *EventBus) PrizeClaimed(event *models.EventPrizeClaimed) {
	b.emit(event.LeagueID, models.EventTypePrizeClaimed, event, event)
}

func (b *EventBus) EmergencyWithdrawn(event *models.EventEmergencyWithdrawn) {
	b.emit(event.LeagueID, models.EventTypeEmergencyWithdrawn, event, event)
}

func (b *EventBus) LeagueAdmin(event *models.EventLeagueAdmin) {
	b.emit(event.LeagueID, event.EventType, event, event)
}

func (b *EventBus) OracleRequest(event *models.EventOracleRequest) {
	b.emit(event.LeagueID, event.EventType, event, event)
}

func (b *EventBus) OracleConfigUpdated(event *models.EventOracleConfigUpdated) {
	b.emit("oracle", models.EventTypeOracleConfigUpdate, event, event)
}
