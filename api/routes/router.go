package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/hireloop-backend/api/controllers"
	paymentcontrollers "github.com/angelmondragon/hireloop-backend/api/controllers/payments"
	subscriptioncontrollers "github.com/angelmondragon/hireloop-backend/api/controllers/subscriptions"
	webhookcontrollers "github.com/angelmondragon/hireloop-backend/api/controllers/webhooks"
	"github.com/angelmondragon/hireloop-backend/api/middleware"
	paymentsvc "github.com/angelmondragon/hireloop-backend/internal/payments"
	"github.com/angelmondragon/hireloop-backend/pkg/config"
	"github.com/angelmondragon/hireloop-backend/pkg/db"
	"github.com/angelmondragon/hireloop-backend/pkg/db/models"
	"github.com/angelmondragon/hireloop-backend/pkg/enums"
	"github.com/angelmondragon/hireloop-backend/pkg/logger"
	"github.com/angelmondragon/hireloop-backend/pkg/redis"
	pkgstripe "github.com/angelmondragon/hireloop-backend/pkg/stripe"
)

type webhookVerifier interface {
	VerifyWebhook(ctx context.Context, payload []byte, signatureHeader string) (*pkgstripe.Event, error)
}

type webhookGuard interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Release(ctx context.Context, eventID string) error
}

type userReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisP redis.Pinger,
	gatherer prometheus.Gatherer,
	paymentsService paymentsvc.Service,
	usersRepo userReader,
	stripeClient webhookVerifier,
	stripeWebhookGuard webhookGuard,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSAllowedOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisP))
	})

	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/stripe", webhookcontrollers.StripeWebhook(paymentsService, stripeClient, stripeWebhookGuard, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Route("/payments", func(r chi.Router) {
			r.Get("/", paymentcontrollers.List(paymentsService, logg))
			r.Post("/intents", paymentcontrollers.CreateIntent(paymentsService, logg))
			r.Get("/{attemptId}", paymentcontrollers.Get(paymentsService, logg))
			r.Post("/{attemptId}/cancel", paymentcontrollers.Cancel(paymentsService, logg))
		})
		r.Get("/subscriptions/me", subscriptioncontrollers.SubscriptionFetch(usersRepo, time.Now, logg))
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(logg, enums.UserRoleAdmin))
		r.Post("/payments/{attemptId}/refund", paymentcontrollers.AdminRefund(paymentsService, logg))
	})

	return r
}
