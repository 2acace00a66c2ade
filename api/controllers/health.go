package controllers

import (
	"context"
	"net/http"

	"github.com/stockroomhq/stockroom-backend/api/responses"
	pkgerrors "github.com/stockroomhq/stockroom-backend/pkg/errors"
	"github.com/stockroomhq/stockroom-backend/pkg/instance"
	"github.com/stockroomhq/stockroom-backend/pkg/logger"
)

// Pinger is a dependency the readiness probe checks.
type Pinger interface {
	Ping(ctx context.Context) error
}

type namedPinger struct {
	name   string
	pinger Pinger
}

type HealthController struct {
	logg    *logger.Logger
	service string
	pingers []namedPinger
}

func NewHealthController(logg *logger.Logger, service string) *HealthController {
	return &HealthController{logg: logg, service: service}
}

// AddDependency registers a dependency for the readiness probe.
func (c *HealthController) AddDependency(name string, pinger Pinger) {
	if pinger == nil {
		return
	}
	c.pingers = append(c.pingers, namedPinger{name: name, pinger: pinger})
}

func (c *HealthController) Live(w http.ResponseWriter, r *http.Request) {
	responses.WriteSuccess(w, map[string]any{
		"status":   "ok",
		"service":  c.service,
		"instance": instance.GetID(),
	})
}

func (c *HealthController) Ready(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	for _, dep := range c.pingers {
		if err := dep.pinger.Ping(ctx); err != nil {
			responses.WriteError(ctx, c.logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, dep.name+" unavailable"))
			return
		}
	}

	responses.WriteSuccess(w, map[string]any{
		"status":   "ready",
		"service":  c.service,
		"instance": instance.GetID(),
	})
}
