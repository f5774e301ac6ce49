package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/region23/testdrive/pkg/logger"
	"github.com/region23/testdrive/pkg/metrics"
)

const (
	defaultCleanupInterval = 5 * time.Minute
	defaultIdleTTL         = 10 * time.Minute
)

type entry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// RateLimiter token bucket на каждый ключ (IP, chat ID)
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*entry
	limit    rate.Limit
	burst    int
	logger   *logger.Logger
	now      func() time.Time

	cleanupInterval time.Duration
	done            chan struct{}
	closeOnce       sync.Once
}

// NewRateLimiter создает limiter на requests запросов за period с таким же burst
func NewRateLimiter(requests int, period time.Duration, log *logger.Logger) *RateLimiter {
	if requests <= 0 {
		requests = 1
	}

	rl := &RateLimiter{
		limiters:        make(map[string]*entry),
		limit:           rate.Limit(float64(requests) / period.Seconds()),
		burst:           requests,
		logger:          log,
		now:             time.Now,
		cleanupInterval: defaultCleanupInterval,
		done:            make(chan struct{}),
	}

	go rl.cleanupRoutine()

	return rl
}

// Allow проверяет, разрешен ли запрос для данного ключа
func (rl *RateLimiter) Allow(key string) bool {
	now := rl.now()

	rl.mu.Lock()
	e, ok := rl.limiters[key]
	if !ok {
		e = &entry{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.limiters[key] = e
	}
	e.lastAccess = now
	rl.mu.Unlock()

	return e.limiter.AllowN(now, 1)
}

// Len количество отслеживаемых ключей
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limiters)
}

func (rl *RateLimiter) cleanupRoutine() {
	ticker := time.NewTicker(rl.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup(defaultIdleTTL)
		case <-rl.done:
			return
		}
	}
}

// cleanup удаляет ключи, к которым не обращались дольше ttl
func (rl *RateLimiter) cleanup(ttl time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-ttl)
	var cleaned int

	for key, e := range rl.limiters {
		if e.lastAccess.Before(cutoff) {
			delete(rl.limiters, key)
			cleaned++
		}
	}

	if cleaned > 0 {
		rl.logger.Debug("Cleaned up rate limiters",
			logger.Int("cleaned_count", cleaned),
			logger.Int("remaining_count", len(rl.limiters)),
		)
	}
}

// Close останавливает очистку
func (rl *RateLimiter) Close() {
	rl.closeOnce.Do(func() { close(rl.done) })
}

// HTTPRateLimitMiddleware ограничивает запросы по IP клиента
func HTTPRateLimitMiddleware(limiter *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := RealIP(r)

			if !limiter.Allow(key) {
				limiter.logger.Warn("Rate limit exceeded",
					logger.String("ip", key),
					logger.String("user_agent", r.UserAgent()),
				)
				metrics.RecordRateLimited("ip")

				w.Header().Set("Retry-After", "60")
				http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ChatRateLimiter ограничения для апдейтов Telegram: общий поток и каждый чат
type ChatRateLimiter struct {
	chats  *RateLimiter
	global *rate.Limiter
	logger *logger.Logger
}

// NewChatRateLimiter создает limiter апдейтов бота
func NewChatRateLimiter(chatPerMinute, globalPerSecond int, log *logger.Logger) *ChatRateLimiter {
	if globalPerSecond <= 0 {
		globalPerSecond = 1
	}
	return &ChatRateLimiter{
		chats:  NewRateLimiter(chatPerMinute, time.Minute, log),
		global: rate.NewLimiter(rate.Limit(globalPerSecond), globalPerSecond),
		logger: log,
	}
}

// AllowChat проверяет общий лимит и лимит чата
func (l *ChatRateLimiter) AllowChat(chatID int64) bool {
	if !l.global.Allow() {
		l.logger.Warn("Global rate limit exceeded", logger.Int64("chat_id", chatID))
		metrics.RecordRateLimited("global")
		return false
	}

	if !l.chats.Allow("chat_" + strconv.FormatInt(chatID, 10)) {
		l.logger.Warn("Chat rate limit exceeded", logger.Int64("chat_id", chatID))
		metrics.RecordRateLimited("chat")
		return false
	}

	return true
}

// Close освобождает ресурсы
func (l *ChatRateLimiter) Close() {
	l.chats.Close()
}

// RealIP извлекает адрес клиента с учетом прокси
func RealIP(r *http.Request) string {
	headers := []string{
		"CF-Connecting-IP",
		"X-Forwarded-For",
		"X-Real-IP",
	}

	for _, header := range headers {
		ip := r.Header.Get(header)
		if ip == "" {
			continue
		}
		// X-Forwarded-For может содержать цепочку через запятую
		if header == "X-Forwarded-For" {
			ip = strings.Split(ip, ",")[0]
		}
		return strings.TrimSpace(ip)
	}

	if i := strings.LastIndex(r.RemoteAddr, ":"); i > 0 {
		return r.RemoteAddr[:i]
	}
	return r.RemoteAddr
}
