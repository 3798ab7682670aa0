package submit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/godbus/dbus/v5"
)

// D-Bus notification service names.
const (
	notificationsService   = "org.freedesktop.Notifications"
	notificationsPath      = "/org/freedesktop/Notifications"
	notificationsInterface = "org.freedesktop.Notifications"
)

const (
	appName       = "perch"
	summaryText   = "Submitted"
	expireTimeout = int32(5000)
)

// DBusSink shows each submission as a desktop notification. Successive
// submissions replace the previous bubble.
type DBusSink struct {
	logger *slog.Logger

	mu     sync.Mutex
	obj    dbus.BusObject
	lastID uint32
}

// NewDBusSink connects to the session bus.
func NewDBusSink(logger *slog.Logger) (*DBusSink, error) {
	if logger == nil {
		logger = slog.Default()
	}
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to session bus: %w", err)
	}
	return newDBusSink(conn.Object(notificationsService, dbus.ObjectPath(notificationsPath)), logger), nil
}

func newDBusSink(obj dbus.BusObject, logger *slog.Logger) *DBusSink {
	return &DBusSink{obj: obj, logger: logger}
}

// Submit sends a Notify call carrying text as the body.
func (s *DBusSink) Submit(ctx context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	hints := map[string]dbus.Variant{
		"urgency":       dbus.MakeVariant(byte(0)),
		"transient":     dbus.MakeVariant(true),
		"desktop-entry": dbus.MakeVariant(appName),
	}
	call := s.obj.CallWithContext(ctx, notificationsInterface+".Notify", 0,
		appName,
		s.lastID,
		"input-keyboard",
		summaryText,
		text,
		[]string{},
		hints,
		expireTimeout,
	)
	if call.Err != nil {
		return fmt.Errorf("notify failed: %w", call.Err)
	}

	var id uint32
	if err := call.Store(&id); err != nil {
		return fmt.Errorf("failed to decode notify reply: %w", err)
	}
	s.lastID = id
	s.logger.Debug("submission notified", "id", id)
	return nil
}
