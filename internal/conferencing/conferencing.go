// Package conferencing описывает общий контракт платформ видеовстреч.
// Детали конкретных API (токены, формат запросов) скрыты в адаптерах
// googlemeet и zoom. Все вычисления с часовыми поясами выполняются до вызова адаптера.
package conferencing

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/magabrotheeeer/session-scheduler/internal/lib/apperr"
	"github.com/magabrotheeeer/session-scheduler/internal/models"
)

// EventRequest — параметры создаваемого события.
type EventRequest struct {
	Start       time.Time
	End         time.Time
	Title       string
	Description string
	TimeZone    string
}

// CreatedEvent — результат создания события. JoinURL может быть пустым,
// если платформа ещё не подготовила конференцию.
type CreatedEvent struct {
	RemoteID string
	JoinURL  string
	HostURL  string
}

// RemoteEvent — событие, прочитанное с платформы.
type RemoteEvent struct {
	ID          string
	Summary     string
	Description string
	JoinURL     string
	HostURL     string
	Start       time.Time
	End         time.Time
	Attendees   []models.Attendee
}

// Adapter — обязательные операции платформы.
type Adapter interface {
	Platform() models.Platform
	CreateEvent(ctx context.Context, req EventRequest) (*CreatedEvent, error)
	GetEvent(ctx context.Context, remoteID string) (*RemoteEvent, error)
	GetAttendees(ctx context.Context, remoteID string) ([]models.Attendee, error)
	AddAttendee(ctx context.Context, remoteID string, attendee models.Attendee) error
}

// BatchAttendeeAdder реализуют платформы, умеющие добавить всех участников одним запросом.
// known — участники, уже известные локально; added — новые.
type BatchAttendeeAdder interface {
	AddAttendees(ctx context.Context, remoteID string, known, added []models.Attendee) error
}

// EventLister реализуют платформы, позволяющие искать события в интервале.
type EventLister interface {
	ListEvents(ctx context.Context, from, to time.Time) ([]RemoteEvent, error)
}

// Registry выбирает адаптер по платформе.
type Registry struct {
	adapters map[models.Platform]Adapter
}

// NewRegistry регистрирует адаптеры, nil пропускаются.
func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[models.Platform]Adapter, len(adapters))}
	for _, a := range adapters {
		if a != nil {
			r.adapters[a.Platform()] = a
		}
	}
	return r
}

// Get возвращает адаптер платформы.
func (r *Registry) Get(p models.Platform) (Adapter, error) {
	a, ok := r.adapters[p]
	if !ok {
		return nil, fmt.Errorf("platform %q is not configured", p)
	}
	return a, nil
}

// Platforms возвращает зарегистрированные платформы.
func (r *Registry) Platforms() []models.Platform {
	out := make([]models.Platform, 0, len(r.adapters))
	for p := range r.adapters {
		out = append(out, p)
	}
	return out
}

// EnsureMarker дописывает метку продукта в описание, если её там нет.
func EnsureMarker(description, marker string) string {
	if marker == "" || ContainsMarker(description, marker) {
		return description
	}
	if description == "" {
		return marker
	}
	return description + "\n\n" + marker
}

// ContainsMarker ищет метку без учёта регистра.
func ContainsMarker(text, marker string) bool {
	return marker != "" && strings.Contains(strings.ToLower(text), strings.ToLower(marker))
}

// ClassifyStatus переводит HTTP-статус ответа платформы в класс ошибки:
// 401/403 означают отказ в доступе, 404 отсутствие события,
// 408/429/5xx временный сбой. Остальные коды считаются ошибкой запроса.
func ClassifyStatus(op string, status int, err error) error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return apperr.RemoteAuth(op, err)
	case status == http.StatusNotFound:
		return &apperr.Error{Kind: apperr.KindNotFound, Op: op, Msg: "remote event not found", Err: err}
	case status == http.StatusRequestTimeout || status == http.StatusTooManyRequests || status >= 500:
		return apperr.RemoteTransient(op, err)
	default:
		return &apperr.Error{Kind: apperr.KindValidation, Op: op, Msg: "request rejected by remote platform", Err: err}
	}
}

// ClassifyTransport классифицирует ошибку, не дошедшую до HTTP-ответа API:
// отказ в выдаче токена считается ошибкой доступа, сетевые сбои временными.
func ClassifyTransport(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		if retrieveErr.Response != nil && retrieveErr.Response.StatusCode >= 500 {
			return apperr.RemoteTransient(op, err)
		}
		return apperr.RemoteAuth(op, err)
	}
	return apperr.RemoteTransient(op, err)
}
