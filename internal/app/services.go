package app

import (
	"gorm.io/gorm"

	"github.com/lumenpress/editorial-core/internal/db"
	"github.com/lumenpress/editorial-core/internal/observability"
	"github.com/lumenpress/editorial-core/internal/platform/cache"
	"github.com/lumenpress/editorial-core/internal/platform/gcs"
	"github.com/lumenpress/editorial-core/internal/platform/logger"
	"github.com/lumenpress/editorial-core/internal/platform/mail"
	"github.com/lumenpress/editorial-core/internal/services"
)

type Services struct {
	Audit        services.AuditService
	StateMachine services.StateMachineService
	Assignments  services.AssignmentService
	Decisions    services.DecisionService
	Production   services.ProductionService
	Release      services.ReleaseService
	Scope        services.ScopeResolver
	Notifier     services.Notifier
}

func wireServices(theDB *gorm.DB, log *logger.Logger, cfg Config, r Repos, store *db.PostgresService) (Services, error) {
	metrics, err := observability.NewMetrics()
	if err != nil {
		return Services{}, err
	}

	var c cache.Cache
	if cfg.EnableRedis {
		c, err = cache.NewRedis(log)
		if err != nil {
			log.Warn("Redis unavailable, falling back to in-process cache", "error", err)
			c = cache.NewMemory()
		}
	} else {
		c = cache.NewMemory()
	}

	var blobs gcs.BlobStore
	if cfg.EnableBucket {
		blobs, err = gcs.NewBucketStore(log)
		if err != nil {
			return Services{}, err
		}
	}

	var mailer mail.Client
	if cfg.EnableMail {
		mailer, err = mail.NewFromEnv(log)
		if err != nil {
			return Services{}, err
		}
	}

	var notify services.Notifier = services.NopNotifier{}
	if r.Notifications != nil {
		notify = services.NewNotifier(log, r.Notifications, r.Users, mailer)
	}

	scope := services.NewScopeResolver(theDB, log, r.Members, c)
	audit := services.NewAuditService(log, r.Trail)
	machine := services.NewStateMachineService(log, r.Manuscripts, audit, metrics)
	assignments := services.NewAssignmentService(log, cfg.Policy, r.Manuscripts, r.Assignments, r.Reports, machine, audit, notify, metrics)
	decisions := services.NewDecisionService(log, r.Manuscripts, r.Reports, r.Letters, r.Trail, machine, audit, notify, blobs, metrics)
	production := services.NewProductionService(log, cfg.Production, r.Manuscripts, r.Cycles, r.Responses, machine, audit, notify, scope, metrics)

	var bucketProber services.BucketProber
	if blobs != nil {
		bucketProber = blobs
	}
	release := services.NewReleaseService(log, r.Runs, r.Checks, r.Manuscripts, r.Trail, production, store, bucketProber, metrics)

	return Services{
		Audit:        audit,
		StateMachine: machine,
		Assignments:  assignments,
		Decisions:    decisions,
		Production:   production,
		Release:      release,
		Scope:        scope,
		Notifier:     notify,
	}, nil
}
