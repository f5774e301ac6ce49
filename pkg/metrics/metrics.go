package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Метрики бота записи на тест-драйв
var (
	// Обработка обновлений Telegram
	UpdatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "testdrive_bot_updates_total",
			Help: "Количество обработанных обновлений Telegram",
		},
		[]string{"kind", "status"},
	)

	TransitionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "testdrive_bot_transition_duration_seconds",
			Help:    "Время обработки перехода диалога по глаголу токена",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"verb"},
	)

	RenderFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "testdrive_bot_render_fallbacks_total",
			Help: "Сколько раз редактирование сообщения не удалось и было отправлено новое",
		},
	)

	// Метрики бронирований
	BookingsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "testdrive_bot_bookings_created_total",
			Help: "Количество подтвержденных бронирований",
		},
	)

	BookingsCanceled = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "testdrive_bot_bookings_canceled_total",
			Help: "Количество отмененных пользователями бронирований",
		},
	)

	BookingConflicts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "testdrive_bot_booking_conflicts_total",
			Help: "Конфликты при бронировании по источнику (precheck, constraint)",
		},
		[]string{"source"},
	)

	BookingRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "testdrive_bot_booking_rejections_total",
			Help: "Отклоненные по валидации бронирования",
		},
		[]string{"reason"},
	)

	FreeSlotsServed = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "testdrive_bot_free_slots_served",
			Help:    "Количество свободных слотов, показанных пользователю",
			Buckets: prometheus.LinearBuckets(0, 2, 6),
		},
	)

	// Метрики базы данных
	DatabaseOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "testdrive_bot_database_operations_total",
			Help: "Общее количество операций с базой данных",
		},
		[]string{"operation", "table", "status"},
	)

	// Метрики производительности
	MemoryUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "testdrive_bot_memory_usage_bytes",
			Help: "Использование памяти в байтах",
		},
	)

	GoroutinesCount = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "testdrive_bot_goroutines_count",
			Help: "Количество активных горутин",
		},
	)

	// Метрики ошибок
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "testdrive_bot_errors_total",
			Help: "Общее количество ошибок",
		},
		[]string{"component", "error_type"},
	)

	// Метрики HTTP сервера
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "testdrive_bot_http_requests_total",
			Help: "Общее количество HTTP запросов",
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "testdrive_bot_http_request_duration_seconds",
			Help:    "Время обработки HTTP запросов в секундах",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	RateLimited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "testdrive_bot_rate_limited_total",
			Help: "Запросы, отклоненные ограничителем частоты",
		},
		[]string{"scope"},
	)
)

// RecordUpdate записывает метрику обработки обновления
func RecordUpdate(kind, status string) {
	UpdatesTotal.WithLabelValues(kind, status).Inc()
}

// RecordBookingCreated записывает метрику создания бронирования
func RecordBookingCreated() {
	BookingsCreated.Inc()
}

// RecordBookingCanceled записывает метрику отмены бронирования
func RecordBookingCanceled() {
	BookingsCanceled.Inc()
}

// RecordBookingConflict записывает конфликт; source = precheck | constraint
func RecordBookingConflict(source string) {
	BookingConflicts.WithLabelValues(source).Inc()
}

// RecordBookingRejection записывает отказ валидации по коду причины
func RecordBookingRejection(reason string) {
	BookingRejections.WithLabelValues(reason).Inc()
}

// RecordDatabaseOperation записывает метрику операции с БД
func RecordDatabaseOperation(operation, table string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	DatabaseOperations.WithLabelValues(operation, table, status).Inc()
}

// RecordError записывает метрику ошибки
func RecordError(component, errorType string) {
	ErrorsTotal.WithLabelValues(component, errorType).Inc()
}

// RecordHTTPRequest записывает метрику HTTP запроса
func RecordHTTPRequest(method, endpoint, status string) {
	HTTPRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
}

// RecordRateLimited записывает отказ ограничителя; scope = ip | chat | global
func RecordRateLimited(scope string) {
	RateLimited.WithLabelValues(scope).Inc()
}
