package journal

import (
	"context"
	"time"

	"github.com/BrewPi/brewpi-service/internal/controller"
)

const writeTimeout = 5 * time.Second

// Logger is the logging dependency of the package.
type Logger interface {
	Error(msg string, args ...any)
}

// Subscriber returns a controller.Bus subscriber that journals every event.
// Write failures are logged; the bus has no error path.
func Subscriber(repo Repository, logger Logger) controller.Subscriber {
	return func(evt controller.Event) {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()

		entry := EntryFromEvent(evt)
		if err := repo.Create(ctx, &entry); err != nil && logger != nil {
			logger.Error("journaling controller event failed",
				"event", string(evt.Type),
				"uri", evt.Controller.URI,
				"error", err,
			)
		}
	}
}
