package indicator

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

const (
	notifyDest  = "org.freedesktop.Notifications"
	notifyPath  = "/org/freedesktop/Notifications"
	notifyIcon  = "audio-input-microphone"
	urgencyHigh = "2"
)

// notification is one org.freedesktop.Notifications.Notify call.
type notification struct {
	appName   string
	replaceID uint32
	summary   string
	body      string
	timeoutMS int
	urgent    bool
}

// args renders the busctl argument list for signature susssasa{sv}i.
func (n notification) args() []string {
	args := []string{
		"Notify", "susssasa{sv}i",
		n.appName,
		strconv.FormatUint(uint64(n.replaceID), 10),
		notifyIcon,
		n.summary,
		n.body,
		"0", // actions
	}
	if n.urgent {
		args = append(args, "1", "urgency", "y", urgencyHigh)
	} else {
		args = append(args, "0")
	}
	return append(args, strconv.Itoa(n.timeoutMS))
}

// desktopNotify shows or replaces a notification and returns the id the
// server assigned.
func desktopNotify(ctx context.Context, n notification) (uint32, error) {
	out, err := busctl(ctx, n.args()...)
	if err != nil {
		return 0, fmt.Errorf("desktop notify failed: %w", err)
	}

	fields := strings.Fields(out)
	if len(fields) != 2 || fields[0] != "u" {
		return 0, fmt.Errorf("desktop notify invalid response: %q", out)
	}
	id, err := strconv.ParseUint(fields[1], 10, 32)
	if err != nil {
		return 0, fmt.Errorf("desktop notify parse id %q: %w", fields[1], err)
	}
	return uint32(id), nil
}

func desktopDismiss(ctx context.Context, id uint32) error {
	if _, err := busctl(ctx, "CloseNotification", "u", strconv.FormatUint(uint64(id), 10)); err != nil {
		return fmt.Errorf("desktop dismiss failed: %w", err)
	}
	return nil
}

// busctl calls a notification-daemon method on the user bus and returns
// trimmed stdout.
func busctl(ctx context.Context, methodArgs ...string) (string, error) {
	args := append([]string{"--user", "call", notifyDest, notifyPath, notifyDest}, methodArgs...)
	out, err := exec.CommandContext(ctx, "busctl", args...).CombinedOutput()
	trimmed := strings.TrimSpace(string(out))
	if err != nil {
		if trimmed == "" {
			return "", err
		}
		return "", fmt.Errorf("%w (%s)", err, trimmed)
	}
	return trimmed, nil
}
