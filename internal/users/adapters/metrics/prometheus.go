// Package metrics публикует счетчики жизненного цикла учетных записей в Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	svc "gousers/internal/users/ports/services"
)

const namespace = "users"

// PrometheusRecorder реализует MetricsRecorder на счетчиках Prometheus.
type PrometheusRecorder struct {
	lifecycle *prometheus.CounterVec
	removed   *prometheus.CounterVec
}

// NewPrometheusRecorder регистрирует счетчики в reg.
func NewPrometheusRecorder(reg prometheus.Registerer) *PrometheusRecorder {
	factory := promauto.With(reg)
	return &PrometheusRecorder{
		lifecycle: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lifecycle_events_total",
			Help:      "Count of user account lifecycle events by type",
		}, []string{"event"}),
		removed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cleanup_removed_total",
			Help:      "Count of records removed by scheduled cleanup jobs",
		}, []string{"job"}),
	}
}

var _ svc.MetricsRecorder = (*PrometheusRecorder)(nil)

// UserRegistered учитывает самостоятельную регистрацию.
func (r *PrometheusRecorder) UserRegistered() { r.lifecycle.WithLabelValues("registered").Inc() }

// UserCreated учитывает создание пользователя администратором.
func (r *PrometheusRecorder) UserCreated() { r.lifecycle.WithLabelValues("created").Inc() }

// UserActivated учитывает активацию.
func (r *PrometheusRecorder) UserActivated() { r.lifecycle.WithLabelValues("activated").Inc() }

// PasswordResetRequested учитывает запрос сброса пароля.
func (r *PrometheusRecorder) PasswordResetRequested() {
	r.lifecycle.WithLabelValues("reset_requested").Inc()
}

// PasswordResetCompleted учитывает завершенный сброс пароля.
func (r *PrometheusRecorder) PasswordResetCompleted() {
	r.lifecycle.WithLabelValues("reset_completed").Inc()
}

// PasswordChanged учитывает смену пароля.
func (r *PrometheusRecorder) PasswordChanged() { r.lifecycle.WithLabelValues("password_changed").Inc() }

// UserDeleted учитывает удаление пользователя.
func (r *PrometheusRecorder) UserDeleted() { r.lifecycle.WithLabelValues("deleted").Inc() }

// NotActivatedUsersRemoved учитывает пользователей, удаленных задачей очистки.
func (r *PrometheusRecorder) NotActivatedUsersRemoved(count int) {
	r.removed.WithLabelValues("not_activated_users").Add(float64(count))
}

// AuditEventsRemoved учитывает события аудита, удаленные задачей очистки.
func (r *PrometheusRecorder) AuditEventsRemoved(count int64) {
	r.removed.WithLabelValues("audit_events").Add(float64(count))
}

// NoopRecorder используется, когда метрики отключены.
type NoopRecorder struct{}

var _ svc.MetricsRecorder = NoopRecorder{}

func (NoopRecorder) UserRegistered()              {}
func (NoopRecorder) UserCreated()                 {}
func (NoopRecorder) UserActivated()               {}
func (NoopRecorder) PasswordResetRequested()      {}
func (NoopRecorder) PasswordResetCompleted()      {}
func (NoopRecorder) PasswordChanged()             {}
func (NoopRecorder) UserDeleted()                 {}
func (NoopRecorder) NotActivatedUsersRemoved(int) {}
func (NoopRecorder) AuditEventsRemoved(int64)     {}
