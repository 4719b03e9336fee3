package handler

import (
	"fmt"
	"time"

	ratelimit "github.com/JGLTechnologies/gin-rate-limit"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"storylens/internal/shell"
)

// NewRateLimitStore создает хранилище счетчиков: Redis, если клиент есть, иначе память процесса.
// limit - число генераций в минуту.
func NewRateLimitStore(redisClient *redis.Client, limit uint) ratelimit.Store {
	if redisClient != nil {
		return ratelimit.RedisStore(&ratelimit.RedisOptions{
			RedisClient: redisClient,
			Rate:        time.Minute,
			Limit:       limit,
		})
	}
	return ratelimit.InMemoryStore(&ratelimit.InMemoryOptions{
		Rate:  time.Minute,
		Limit: limit,
	})
}

// SubmitRateLimiter ограничивает генерации по известной сессии,
// для отсутствующей или незнакомой cookie - по IP.
// Превышение возвращает пользователя на главную с уведомлением.
func (h *StoryHandler) SubmitRateLimiter(store ratelimit.Store) gin.HandlerFunc {
	return ratelimit.RateLimiter(store, &ratelimit.Options{
		ErrorHandler: func(c *gin.Context, info ratelimit.Info) {
			rateLimitedTotal.Inc()
			h.logger.Warn("Upload rate limit exceeded",
				zap.String("clientIP", c.ClientIP()),
				zap.Time("resetTime", info.ResetTime),
			)
			wait := time.Until(info.ResetTime).Round(time.Second)
			toast := shell.Toast{
				Kind:    shell.ToastError,
				Message: fmt.Sprintf("Too many stories generated. Try again in %s", wait),
			}
			h.redirectHome(c, &toast)
			c.Abort()
		},
		KeyFunc: func(c *gin.Context) string {
			if id, err := c.Cookie(sessionCookieName); err == nil {
				if sess, ok := h.sessions.Lookup(id); ok {
					return "session:" + sess.ID
				}
			}
			return "ip:" + c.ClientIP()
		},
	})
}
