package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/mammogate/internal/inference"
	"github.com/hitoshi/mammogate/internal/metrics"
	"github.com/hitoshi/mammogate/internal/middleware"
	"github.com/hitoshi/mammogate/internal/security"
)

// Pinger はヘルスチェックで使用するストア疎通確認のインターフェース。
// *sql.DBが満たす。
type Pinger interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	Collector         metrics.MetricsCollector
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	TokenVerifier     middleware.TokenVerifier

	// 認証
	AuthService AuthServiceInterface

	// 分類
	ClassifierService inference.ClassifierService
	SSRFGuard         security.SSRFGuardService
	ClassifyConfig    ClassifyHandlerConfig

	// 記録
	RecordService RecordServiceInterface

	// ワークフロー
	WorkflowService WorkflowServiceInterface

	// ヘルスチェック・メトリクス
	DB       Pinger
	Gatherer prometheus.Gatherer
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → CORS → (ルートごとに RateLimit / BearerAuth)
//
// /health と /metrics はレート制限の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger, deps.Collector))
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	authHandler := NewAuthHandler(deps.AuthService)
	classifyHandler := NewClassifyHandler(deps.ClassifierService, deps.SSRFGuard, deps.ClassifyConfig)
	recordHandler := NewRecordHandler(deps.RecordService)
	workflowHandler := NewWorkflowHandler(deps.WorkflowService, deps.ClassifyConfig)

	// ヘルスチェック・メトリクス
	r.Get("/health", newHealthHandler(deps.DB))
	r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))

	// API全般レート制限下のルート
	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// 認証
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
			r.Get("/verify", authHandler.Verify)
		})

		// 記録管理
		r.Route("/records", func(r chi.Router) {
			r.Get("/", recordHandler.ListRecords)
			r.Post("/", recordHandler.CreateRecord)
			r.Get("/stats/summary", recordHandler.GetStats)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", recordHandler.GetRecord)
				r.Put("/", recordHandler.UpdateRecord)
				r.Delete("/", recordHandler.DeleteRecord)
			})
		})
	})

	// 分類系レート制限下のルート（推論バックエンドの保護）
	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimiter.ClassifyMiddleware())

		r.Post("/classify", classifyHandler.Classify)
		r.Post("/classify/url", classifyHandler.ClassifyFromURL)

		// ワークフローはBearer認証が必須
		r.With(middleware.NewBearerAuthMiddleware(deps.TokenVerifier)).
			Post("/workflow/classify-and-save", workflowHandler.ClassifyAndSave)
	})

	return r
}

// newHealthHandler はストア疎通確認を含むヘルスチェックハンドラーを返す。
func newHealthHandler(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		if err := db.PingContext(r.Context()); err != nil {
			slog.Warn("health check failed", slog.String("error", err.Error()))
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]string{
				"status": "unavailable",
			})
			return
		}

		json.NewEncoder(w).Encode(map[string]string{
			"status": "ok",
		})
	}
}
