package api

import (
	"log"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"visitor-approval-backend/config"
	"visitor-approval-backend/internal/mw"
	"visitor-approval-backend/internal/store"
	"visitor-approval-backend/internal/visitor"
)

// NewRouter creates and configures a new Gin router. responseCache backs the
// admin endpoints and is flushed by every successful write; pass nil to get a
// private one.
func NewRouter(cfg config.ServerConfig, svc *visitor.Service, s store.Store, webpushOptions *webpush.Options, responseCache *cache.Cache) *gin.Engine {
	r := gin.Default()
	// gin trusts every peer by default; forwarding headers count only when
	// they come from a configured proxy.
	if err := r.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		log.Printf("Ignoring trusted proxies %v: %v", cfg.TrustedProxies, err)
		_ = r.SetTrustedProxies(nil)
	}
	if cfg.RequestIPHeader != "" {
		r.TrustedPlatform = cfg.RequestIPHeader
	}

	handler := NewHandler(svc, s, webpushOptions)

	ttl := time.Duration(cfg.CacheTTLSeconds) * time.Second
	if responseCache == nil {
		responseCache = cache.New(ttl, 2*ttl)
	}
	caching := mw.Cache(responseCache, ttl)

	rateLimiter := mw.RateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst)
	// Codes are sequential, so lookups get a much smaller budget.
	codeLimiter := mw.RateLimiter(rate.Limit(cfg.CodeLookupPerSec), cfg.CodeLookupBurst)

	r.GET("/healthz", handler.Healthz)

	api := r.Group("/api")
	api.Use(rateLimiter, mw.FlushOnWrite(responseCache))
	{
		api.POST("/approvals", handler.CreateApproval)
		api.GET("/approvals", handler.ListApprovalsByMobile)
		api.GET("/approvals/:id", handler.GetApproval)
		api.POST("/approvals/:id/entry", handler.MarkEntry)
		api.POST("/approvals/:id/exit", handler.MarkExit)
		api.POST("/approvals/:id/cancel", handler.CancelApproval)

		api.GET("/codes/:code", codeLimiter, handler.GetApprovalByCode)

		api.GET("/residents/:resident_id/approvals/upcoming", handler.GetUpcomingApprovals)
		api.GET("/residents/:resident_id/approvals/expired", handler.GetExpiredApprovals)
		api.GET("/residents/:resident_id/history", handler.GetVisitorHistory)

		api.GET("/security/queue", handler.GetSecurityQueue)

		api.GET("/admin/analytics", caching, handler.GetAnalytics)
		api.GET("/admin/suspicious", caching, handler.GetSuspiciousActivities)

		api.GET("/subscriptions", handler.GetSubscription)
		api.PUT("/subscriptions", handler.PutSubscription)
		api.DELETE("/subscriptions", handler.DeleteSubscription)
		api.GET("/vapid_public_key", handler.GetVAPIDPublicKey)
	}

	return r
}
