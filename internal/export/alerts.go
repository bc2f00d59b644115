package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/dpup/prefab/logging"
	"github.com/nicholas-fedor/shoutrrr"
	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"

	"github.com/dpup/wolfcreekpass/server/internal/services"
)

// SendFunc delivers a message to every configured service
type SendFunc func(message string, params *stypes.Params) []error

// AlertNotifier sends a chat notification when snow is seen or a route is
// closed. Quiet cycles send nothing.
type AlertNotifier struct {
	send SendFunc
}

// NewAlertNotifier creates a notifier for shoutrrr service URLs
func NewAlertNotifier(urls []string, timeout time.Duration) (*AlertNotifier, error) {
	sender, err := shoutrrr.CreateSender(urls...)
	if err != nil {
		return nil, fmt.Errorf("failed to create alert sender: %w", err)
	}
	if timeout > 0 {
		sender.Timeout = timeout
	}
	sender.SetLogger(log.New(io.Discard, "", 0))
	return NewAlertNotifierWithSender(sender.Send), nil
}

// NewAlertNotifierWithSender creates a notifier on an existing send function
func NewAlertNotifierWithSender(send SendFunc) *AlertNotifier {
	return &AlertNotifier{send: send}
}

// Name identifies the exporter in cycle reports
func (n *AlertNotifier) Name() string { return "alerts" }

// Export sends the alert if the cycle warrants one
func (n *AlertNotifier) Export(ctx context.Context, res *services.CycleResult) error {
	title, body, ok := AlertMessage(res)
	if !ok {
		return nil
	}

	params := stypes.Params{}
	params.SetTitle(title)
	var errs []error
	for _, err := range n.send(body, &params) {
		if err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("failed to send alert: %w", errors.Join(errs...))
	}
	logging.Infow(ctx, "Sent cycle alert", "cycle", res.CycleID(), "title", title)
	return nil
}

// AlertMessage builds the alert title and body, reporting false when nothing
// is worth announcing
func AlertMessage(res *services.CycleResult) (string, string, bool) {
	closed := res.ClosedRoutes()
	snow := res.Summary.SnowCount
	if snow == 0 && len(closed) == 0 {
		return "", "", false
	}

	var titleParts []string
	if snow > 0 {
		titleParts = append(titleParts, "snow detected")
	}
	if len(closed) > 0 {
		titleParts = append(titleParts, "route closed")
	}
	title := "Wolf Creek Pass: " + strings.Join(titleParts, ", ")

	var lines []string
	if snow > 0 {
		lines = append(lines, fmt.Sprintf("Snow seen on %d of %d cameras.", snow, res.Summary.CamerasProcessed))
		for _, c := range res.Captures {
			if c.HasSnow != nil && *c.HasSnow {
				lines = append(lines, "- "+captureName(c))
			}
		}
	}
	for _, r := range closed {
		lines = append(lines, fmt.Sprintf("Closure reported on %s.", r.Name))
	}
	for _, p := range res.Passes {
		if p.IsClosed() {
			lines = append(lines, fmt.Sprintf("%s is %s.", p.Name, strings.ToUpper(p.ClosureStatus)))
		}
	}
	lines = append(lines, "Cycle "+res.CycleID())
	return title, strings.Join(lines, "\n"), true
}
