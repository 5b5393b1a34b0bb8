package container

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/hibiken/asynq"

	"payrecon-backend/internal/config"
	infraCache "payrecon-backend/internal/infrastructure/cache"
	"payrecon-backend/internal/infrastructure/database"
	"payrecon-backend/pkg/cache"
	"payrecon-backend/pkg/jwt"

	"payrecon-backend/internal/domains/payment/gateway"
	"payrecon-backend/internal/domains/payment/gateway/razorpay"
	paymentHandler "payrecon-backend/internal/domains/payment/handler"
	paymentRepo "payrecon-backend/internal/domains/payment/repository"
	paymentService "payrecon-backend/internal/domains/payment/service"
)

// ========================================
// CONTAINER STRUCT
// ========================================

// Container is the root of the dependency graph. Everything in it is
// a singleton wired once at startup.
type Container struct {
	// Infrastructure layer, shared across the app.
	Config      *config.Config
	DB          *database.PostgresDB
	Cache       cache.Cache
	JWTManager  *jwt.Manager
	AsynqClient *asynq.Client
	Gateway     gateway.Gateway

	// Repository layer.
	PaymentRepo    paymentRepo.PaymentRepoInterface
	EventLedger    paymentRepo.EventLedgerInterface
	AuditRepo      paymentRepo.AuditRepoInterface
	EscalationSink paymentRepo.EscalationSinkInterface
	TxManager      paymentRepo.TransactionManager

	// Service layer.
	StateMachine     *paymentService.StateMachine
	Dispatcher       paymentService.WebhookDispatcher
	ReconcileService paymentService.ReconcileService
	PaymentService   paymentService.PaymentService

	// Handler layer.
	PaymentHandler *paymentHandler.PaymentHandler
	WebhookHandler *paymentHandler.WebhookHandler
}

// ========================================
// CONSTRUCTOR
// ========================================

// NewContainer builds the whole dependency graph, in dependency
// order: config, infrastructure, repositories, services, handlers.
func NewContainer() (*Container, error) {
	log.Println("Initializing DI container...")

	c := &Container{}

	// Step 1: Configuration.
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	c.Config = cfg
	log.Printf("Config loaded (environment: %s)", cfg.App.Environment)

	// Step 2: Database.
	dbConfig, err := config.LoadDatabaseConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load database config: %w", err)
	}

	db := database.NewPostgresDB(dbConfig)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := db.Connect(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.HealthCheck(context.Background()); err != nil {
		return nil, fmt.Errorf("database health check failed: %w", err)
	}
	c.DB = db
	log.Println("Database connected")

	// Step 3: Cache. A cache outage is not fatal; the service degrades
	// to reading the database directly.
	redisCache := infraCache.NewRedisCache(
		cfg.Redis.Host,
		cfg.Redis.Password,
		cfg.Redis.DB,
	)
	if rc, ok := redisCache.(*infraCache.RedisCache); ok {
		if err := rc.Connect(context.Background()); err != nil {
			log.Printf("WARNING: Redis connection failed (non-critical): %v", err)
		} else {
			log.Println("Redis connected")
		}
	}
	c.Cache = redisCache

	c.JWTManager = jwt.NewManager(cfg.JWT.Secret)

	// Step 4: Task queue client.
	c.AsynqClient = asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.Redis.Host,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	// Step 5: Payment gateway.
	gw, err := razorpay.NewClient(razorpay.NewConfig(
		cfg.Razorpay.KeyID,
		cfg.Razorpay.KeySecret,
		cfg.Razorpay.WebhookSecret,
		cfg.Razorpay.APIURL,
		cfg.Razorpay.Timeout,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to init gateway client: %w", err)
	}
	c.Gateway = gw

	// Step 6: Repositories.
	c.initRepositories()

	// Step 7: Services.
	c.initServices()

	// Step 8: Handlers.
	c.initHandlers()

	log.Println("DI container initialized successfully")
	return c, nil
}

// ========================================
// LAYER INITIALIZATION
// ========================================

func (c *Container) initRepositories() {
	pool := c.DB.Pool

	c.PaymentRepo = paymentRepo.NewPaymentRepository(pool)
	c.EventLedger = paymentRepo.NewEventLedgerRepository(pool)
	c.AuditRepo = paymentRepo.NewAuditRepository(pool)
	c.EscalationSink = paymentRepo.NewEscalationRepository(pool)
	c.TxManager = paymentRepo.NewPostgresTransactionManager(pool)
}

func (c *Container) initServices() {
	c.StateMachine = paymentService.NewStateMachine(
		c.PaymentRepo,
		c.AuditRepo,
		c.TxManager,
		c.Cache,
	)

	c.Dispatcher = paymentService.NewWebhookDispatcher(
		c.PaymentRepo,
		c.EventLedger,
		c.EscalationSink,
		c.StateMachine,
	)

	c.ReconcileService = paymentService.NewReconcileService(
		c.PaymentRepo,
		c.EscalationSink,
		c.StateMachine,
		c.Gateway,
		c.AsynqClient,
	)

	c.PaymentService = paymentService.NewPaymentService(
		c.PaymentRepo,
		c.EventLedger,
		c.EscalationSink,
		c.AuditRepo,
		c.StateMachine,
		c.Cache,
		c.AsynqClient,
	)
}

func (c *Container) initHandlers() {
	c.PaymentHandler = paymentHandler.NewPaymentHandler(c.PaymentService)
	c.WebhookHandler = paymentHandler.NewWebhookHandler(c.Gateway, c.Dispatcher)
}

// ========================================
// CLEANUP
// ========================================

// Cleanup releases resources during graceful shutdown.
func (c *Container) Cleanup() {
	log.Println("Cleaning up container resources...")

	if c.AsynqClient != nil {
		if err := c.AsynqClient.Close(); err != nil {
			log.Printf("WARNING: failed to close asynq client: %v", err)
		}
	}

	if c.DB != nil && c.DB.Pool != nil {
		c.DB.Pool.Close()
		log.Println("Database connections closed")
	}

	if c.Cache != nil {
		if rc, ok := c.Cache.(*infraCache.RedisCache); ok {
			if err := rc.Close(); err != nil {
				log.Printf("WARNING: failed to close Redis: %v", err)
			} else {
				log.Println("Redis connections closed")
			}
		}
	}

	log.Println("Container cleanup completed")
}
