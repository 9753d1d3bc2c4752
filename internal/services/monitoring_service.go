package services

import (
	"context"
	"log"
	"time"

	"league-backend/internal/metrics"
	"league-backend/internal/models"
	"league-backend/internal/repository"

	"github.com/go-co-op/gocron/v2"
	"gorm.io/gorm"
)

// MonitoringService polls slow-moving state into the Prometheus gauges:
// database health, outstanding oracle requests and the league status
// breakdown. Counters are incremented inline by the services themselves.
type MonitoringService struct {
	db         *gorm.DB
	leagueRepo repository.LeagueRepository
	oracleRepo repository.OracleRepository
	scheduler  gocron.Scheduler
}

// NewMonitoringService creates the monitoring worker
func NewMonitoringService(db *gorm.DB, leagueRepo repository.LeagueRepository, oracleRepo repository.OracleRepository) *MonitoringService {
	return &MonitoringService{
		db:         db,
		leagueRepo: leagueRepo,
		oracleRepo: oracleRepo,
	}
}

// Start schedules the gauge refresh jobs.
func (m *MonitoringService) Start() error {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return err
	}
	m.scheduler = scheduler

	_, err = scheduler.NewJob(
		gocron.DurationJob(10*time.Second),
		gocron.NewTask(m.refreshDatabaseStatus),
	)
	if err != nil {
		return err
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(30*time.Second),
		gocron.NewTask(m.refreshLeagueGauges),
	)
	if err != nil {
		return err
	}

	scheduler.Start()
	log.Println("🚀 [Monitoring] Gauge refresh jobs scheduled")
	return nil
}

// Stop shuts the scheduler down.
func (m *MonitoringService) Stop() {
	if m.scheduler != nil {
		if err := m.scheduler.Shutdown(); err != nil {
			log.Printf("⚠️ [Monitoring] Scheduler shutdown: %v", err)
		}
	}
}

func (m *MonitoringService) refreshDatabaseStatus() {
	sqlDB, err := m.db.DB()
	if err != nil {
		metrics.DBConnectionStatus.Set(0)
		return
	}
	if err := sqlDB.Ping(); err != nil {
		metrics.DBConnectionStatus.Set(0)
		log.Printf("❌ [Monitoring] Database ping failed: %v", err)
		return
	}
	metrics.DBConnectionStatus.Set(1)
}

func (m *MonitoringService) refreshLeagueGauges() {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	pending, err := m.oracleRepo.CountPending(ctx)
	if err != nil {
		log.Printf("⚠️ [Monitoring] Failed to count pending oracle requests: %v", err)
	} else {
		metrics.OraclePendingRequests.Set(float64(pending))
	}

	leagues, err := m.leagueRepo.FindAll(ctx)
	if err != nil {
		log.Printf("⚠️ [Monitoring] Failed to list leagues: %v", err)
		return
	}
	now := time.Now()
	counts := map[models.LeagueStatus]int{
		models.LeagueStatusNotStarted: 0,
		models.LeagueStatusActive:     0,
		models.LeagueStatusEnded:      0,
		models.LeagueStatusFinalized:  0,
		models.LeagueStatusCancelled:  0,
	}
	for _, league := range leagues {
		counts[league.Status(now)]++
	}
	for status, count := range counts {
		metrics.LeaguesByStatus.WithLabelValues(string(status)).Set(float64(count))
	}
}
