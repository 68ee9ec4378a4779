// Package audit registra eventos de seguridad en el security log. Auditar
// nunca hace fallar la operación principal: los errores se loguean y se
// descartan.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dropDatabas3/adminauth/internal/geoip"
	"github.com/dropDatabas3/adminauth/internal/observability/logger"
	"github.com/dropDatabas3/adminauth/internal/store/core"
)

// Event es lo que el caller conoce del suceso. El recorder completa id,
// timestamp y ubicación.
type Event struct {
	AdminID   *string
	Type      core.EventType
	IP        string
	UserAgent string
	Outcome   core.Outcome
	Details   map[string]any
}

type Recorder struct {
	store core.Repository
	geo   *geoip.Resolver
	now   func() time.Time
}

func NewRecorder(store core.Repository, geo *geoip.Resolver) *Recorder {
	return &Recorder{store: store, geo: geo, now: time.Now}
}

// Record persiste el evento, enriquecido con geolocalización best-effort.
func (r *Recorder) Record(ctx context.Context, e Event) {
	log := logger.From(ctx).With(logger.Layer("audit"), logger.EventType(string(e.Type)))

	var location *string
	if r.geo != nil {
		location = r.geo.Lookup(ctx, e.IP)
	}

	entry := &core.SecurityLog{
		ID:        uuid.NewString(),
		AdminID:   e.AdminID,
		EventType: e.Type,
		IP:        e.IP,
		UserAgent: e.UserAgent,
		Location:  location,
		Outcome:   e.Outcome,
		Details:   e.Details,
		CreatedAt: r.now().UTC(),
	}
	if err := r.store.AppendSecurityLog(ctx, entry); err != nil {
		log.Error("audit: no se pudo persistir el evento", logger.Err(err))
	}
}

// List devuelve las últimas entradas, opcionalmente filtradas por admin.
func (r *Recorder) List(ctx context.Context, adminID *string, limit int) ([]core.SecurityLog, error) {
	return r.store.ListSecurityLog(ctx, adminID, limit)
}
