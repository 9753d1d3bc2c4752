// Package app wires repositories, clients, services and handlers together.
package app

import (
	"context"
	"fmt"
	"log"

	"league-backend/internal/clients"
	"league-backend/internal/config"
	"league-backend/internal/events"
	"league-backend/internal/handlers"
	"league-backend/internal/models"
	"league-backend/internal/repository"
	"league-backend/internal/services"

	"gorm.io/gorm"
)

// ServiceContainer holds every long-lived component of the backend
type ServiceContainer struct {
	DB *gorm.DB

	// clients
	NATSClient  *clients.NATSClient
	TokenClient *clients.ERC20Client

	// services
	LeagueService   *services.LeagueService
	RegistryService *services.RegistryService
	OracleBridge    *services.OracleBridgeService
	Monitoring      *services.MonitoringService

	// handlers
	AuthHandler     *handlers.AuthHandler
	LeagueHandler   *handlers.LeagueHandler
	RegistryHandler *handlers.RegistryHandler
	OracleHandler   *handlers.OracleHandler
}

// NewServiceContainer builds the full dependency graph from the loaded
// configuration and an open database handle.
func NewServiceContainer(db *gorm.DB) (*ServiceContainer, error) {
	cfg := config.AppConfig
	if cfg == nil {
		return nil, fmt.Errorf("configuration not loaded")
	}

	// repositories
	leagueRepo := repository.NewLeagueRepository(db)
	participantRepo := repository.NewParticipantRepository(db)
	roleRepo := repository.NewRoleRepository(db)
	oracleRepo := repository.NewOracleRepository(db)

	// clients
	tokenClient, err := clients.NewERC20Client(
		cfg.Token.RPCEndpoint,
		cfg.Token.Address,
		cfg.Token.PrivateKey,
		cfg.Token.ChainID,
		cfg.Token.GasLimit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create token client: %w", err)
	}

	natsClient, err := clients.NewNATSClient(cfg.NATS.URL, cfg.NATS.StreamName, cfg.NATS.Timeout)
	if err != nil {
		// events degrade to database rows only
		log.Printf("⚠️ [App] NATS unavailable, events will only be persisted: %v", err)
		natsClient = nil
	}

	providerClient := clients.NewScoreProviderClient(cfg.Oracle.RequestTimeout, cfg.Oracle.RequestsPerSecond)

	// the bridge acts under the custody key's address
	bridgeAddress := tokenClient.CustodyAddress().Hex()

	eventBus := events.NewEventBus(db, natsClient)

	leagueService := services.NewLeagueService(leagueRepo, participantRepo, roleRepo, tokenClient, eventBus)
	registryService := services.NewRegistryService(leagueRepo, roleRepo, eventBus, cfg.Token.Address, bridgeAddress)
	oracleBridge := services.NewOracleBridgeService(
		oracleRepo, roleRepo, leagueService, providerClient, eventBus, cfg.Oracle, bridgeAddress)
	monitoring := services.NewMonitoringService(db, leagueRepo, oracleRepo)

	seedOracleConfig(oracleRepo, cfg.Oracle)

	container := &ServiceContainer{
		DB:              db,
		NATSClient:      natsClient,
		TokenClient:     tokenClient,
		LeagueService:   leagueService,
		RegistryService: registryService,
		OracleBridge:    oracleBridge,
		Monitoring:      monitoring,
		AuthHandler:     handlers.NewAuthHandler(),
		LeagueHandler:   handlers.NewLeagueHandler(leagueService),
		RegistryHandler: handlers.NewRegistryHandler(registryService),
		OracleHandler:   handlers.NewOracleHandler(oracleBridge),
	}

	log.Printf("✅ [App] Service container initialized (bridge=%s)", bridgeAddress)
	return container, nil
}

// seedOracleConfig copies yaml bootstrap values into the oracle_configs
// table, without overwriting values the audited admin API already set.
func seedOracleConfig(oracleRepo repository.OracleRepository, cfg config.OracleConfig) {
	ctx := context.Background()
	defaults := map[string]string{
		models.OracleConfigSource:        cfg.Source,
		models.OracleConfigQueryTemplate: cfg.QueryTemplate,
		models.OracleConfigRequestBudget: cfg.RequestBudget,
		models.OracleConfigRoutingID:     cfg.RoutingID,
	}
	for key, value := range defaults {
		if value == "" {
			continue
		}
		existing, err := oracleRepo.GetConfig(ctx, key)
		if err != nil || existing != nil {
			continue
		}
		if err := oracleRepo.SetConfig(ctx, &models.OracleConfig{
			ConfigKey:   key,
			ConfigValue: value,
			Description: "bootstrap value from configuration file",
		}); err != nil {
			log.Printf("⚠️ [App] Failed to seed oracle config %s: %v", key, err)
		}
	}
}

// Close releases the container's external connections.
func (c *ServiceContainer) Close() {
	if c.Monitoring != nil {
		c.Monitoring.Stop()
	}
	if c.NATSClient != nil {
		c.NATSClient.Close()
	}
}
