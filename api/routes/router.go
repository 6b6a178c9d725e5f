package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sensorgrid/devicehub-backend/api/controllers"
	admincontrollers "github.com/sensorgrid/devicehub-backend/api/controllers/admin"
	authcontrollers "github.com/sensorgrid/devicehub-backend/api/controllers/auth"
	devicecontrollers "github.com/sensorgrid/devicehub-backend/api/controllers/devices"
	telemetrycontrollers "github.com/sensorgrid/devicehub-backend/api/controllers/telemetry"
	"github.com/sensorgrid/devicehub-backend/api/middleware"
	"github.com/sensorgrid/devicehub-backend/internal/auth"
	"github.com/sensorgrid/devicehub-backend/internal/devices"
	"github.com/sensorgrid/devicehub-backend/internal/loginlogs"
	"github.com/sensorgrid/devicehub-backend/internal/otp"
	"github.com/sensorgrid/devicehub-backend/internal/sharing"
	"github.com/sensorgrid/devicehub-backend/internal/stats"
	"github.com/sensorgrid/devicehub-backend/internal/telemetry"
	"github.com/sensorgrid/devicehub-backend/internal/users"
	"github.com/sensorgrid/devicehub-backend/pkg/auth/session"
	"github.com/sensorgrid/devicehub-backend/pkg/config"
	"github.com/sensorgrid/devicehub-backend/pkg/logger"
	"github.com/sensorgrid/devicehub-backend/pkg/metrics"
	"github.com/sensorgrid/devicehub-backend/pkg/rbac"
	"github.com/sensorgrid/devicehub-backend/pkg/redis"
)

// Dependencies are the services and infrastructure the HTTP surface needs.
type Dependencies struct {
	DB          controllers.Pinger
	Redis       controllers.Pinger
	RateLimiter redis.RateLimiter
	Sessions    session.AccessSessionChecker
	UserLookup  middleware.UserLookup

	Auth      auth.Service
	OTP       otp.Service
	Users     users.Service
	Devices   devices.Service
	Sharing   sharing.Service
	Telemetry telemetry.Service
	LoginLogs loginlogs.Service
	Stats     stats.Service

	HTTPMetrics *metrics.HTTPMetrics
	// Gatherer backs /metrics. Nil skips the endpoint.
	Gatherer prometheus.Gatherer
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Metrics(deps.HTTPMetrics),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	sendPolicy := middleware.NewAuthRateLimitPolicy(
		"send-otp",
		cfg.AuthRateLimit.OTPWindow,
		cfg.AuthRateLimit.OTPIPLimit,
		cfg.AuthRateLimit.OTPPhoneLimit,
	)
	verifyPolicy := middleware.NewAuthRateLimitPolicy(
		"verify-otp",
		cfg.AuthRateLimit.VerifyWindow,
		cfg.AuthRateLimit.VerifyIPLimit,
		cfg.AuthRateLimit.VerifyLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, map[string]controllers.Pinger{
			"database": deps.DB,
			"redis":    deps.Redis,
		}, logg))
	})
	if deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	authenticated := middleware.Auth(cfg.JWT, deps.Sessions, deps.UserLookup, logg)
	gate := func(op rbac.Operation) func(http.Handler) http.Handler {
		return middleware.RequireOperation(op, logg)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/signup", authcontrollers.Signup(deps.Auth, logg))
			r.With(middleware.AuthRateLimit(sendPolicy, deps.RateLimiter, logg)).Post("/send-otp", authcontrollers.SendOTP(deps.OTP, logg))
			r.With(middleware.AuthRateLimit(verifyPolicy, deps.RateLimiter, logg)).Post("/verify-otp", authcontrollers.VerifyOTP(deps.Auth, logg))
			r.Post("/refresh", authcontrollers.Refresh(deps.Auth, logg))

			r.Group(func(r chi.Router) {
				r.Use(authenticated)
				r.With(gate(rbac.OpProfile)).Get("/profile", authcontrollers.Profile(deps.Users, logg))
				r.With(gate(rbac.OpLogout)).Post("/logout", authcontrollers.Logout(deps.Auth, logg))
				r.With(gate(rbac.OpOTPCleanup)).Post("/cleanup-otps", authcontrollers.CleanupOTPs(deps.OTP, logg))
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(authenticated)

			r.Route("/devices", func(r chi.Router) {
				r.With(gate(rbac.OpDeviceCreate)).Post("/", devicecontrollers.Create(deps.Devices, logg))
				r.With(gate(rbac.OpDeviceBulk)).Post("/generate-bulk", devicecontrollers.GenerateBulk(deps.Devices, logg))
				r.With(gate(rbac.OpDeviceList)).Get("/list", devicecontrollers.List(deps.Devices, logg))
				r.With(gate(rbac.OpDeviceOwned)).Get("/my", devicecontrollers.Mine(deps.Devices, logg))
				r.With(gate(rbac.OpDeviceClaim)).Post("/assign", devicecontrollers.Claim(deps.Devices, logg))
				r.With(gate(rbac.OpDeviceOwned)).Get("/owned/{userID}", devicecontrollers.Owned(deps.Devices, logg))

				r.With(gate(rbac.OpShareCreate)).Post("/share", devicecontrollers.Share(deps.Sharing, logg))
				r.With(gate(rbac.OpShareListSent)).Get("/sent/{userID}", devicecontrollers.Sent(deps.Sharing, logg))
				r.With(gate(rbac.OpShareListReceived)).Get("/received/{userID}", devicecontrollers.Received(deps.Sharing, logg))
				r.With(gate(rbac.OpShareCustomers)).Get("/customers", devicecontrollers.Customers(deps.Users, logg))

				r.Route("/id/{deviceID}", func(r chi.Router) {
					r.With(gate(rbac.OpTelemetryRead)).Get("/latest-readings", telemetrycontrollers.Latest(deps.Telemetry, logg))
					r.With(gate(rbac.OpTelemetryRecord)).Post("/readings", telemetrycontrollers.Record(deps.Telemetry, logg))
					r.With(gate(rbac.OpTelemetryRead)).Get("/{kind}", telemetrycontrollers.List(deps.Telemetry, logg))
				})

				r.Route("/{code}", func(r chi.Router) {
					r.With(gate(rbac.OpDeviceGet)).Get("/", devicecontrollers.Get(deps.Devices, logg))
					r.With(gate(rbac.OpDeviceDelete)).Delete("/", devicecontrollers.Delete(deps.Devices, logg))
					r.With(gate(rbac.OpDeviceReassign)).Put("/assign", devicecontrollers.Reassign(deps.Devices, logg))
					r.With(gate(rbac.OpDeviceM2M)).Put("/m2m", devicecontrollers.UpdateM2M(deps.Devices, logg))
					r.With(gate(rbac.OpDeviceQR)).Get("/qr", devicecontrollers.QRCode(deps.Devices, logg))
					r.With(gate(rbac.OpShareRevoke)).Delete("/revoke/{userID}", devicecontrollers.Revoke(deps.Sharing, logg))
				})
			})

			r.Route("/admin", func(r chi.Router) {
				r.With(gate(rbac.OpUserList)).Get("/users", admincontrollers.ListUsers(deps.Users, logg))
				r.With(gate(rbac.OpUserCreate)).Post("/users", admincontrollers.CreateUser(deps.Users, logg))
				r.With(gate(rbac.OpUserChangeRole)).Put("/users/{userID}/role", admincontrollers.ChangeRole(deps.Users, logg))
				r.With(gate(rbac.OpUserDelete)).Delete("/users/{userID}", admincontrollers.DeleteUser(deps.Users, logg))
				r.With(gate(rbac.OpLoginLogList)).Get("/logs", admincontrollers.LoginLogs(deps.LoginLogs, logg))
				r.With(gate(rbac.OpStatsView)).Get("/stats", admincontrollers.Stats(deps.Stats, logg))
			})
		})
	})

	return r
}
