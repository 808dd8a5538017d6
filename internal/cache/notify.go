package cache

import "time"

// SyncTagMessages is the background sync tag for queued message replay.
const SyncTagMessages = "sync-messages"

// Notification actions surfaced to the host platform.
const (
	ActionExplore = "explore"
	ActionClose   = "close"
)

// Notification is the payload handed to the host platform's notification
// surface.
type Notification struct {
	Title   string               `json:"title"`
	Body    string               `json:"body"`
	Icon    string               `json:"icon"`
	Badge   string               `json:"badge"`
	Vibrate []int                `json:"vibrate"`
	Data    NotificationData     `json:"data"`
	Actions []NotificationAction `json:"actions"`
}

// NotificationData is the metadata carried by a notification.
type NotificationData struct {
	DateOfArrival int64 `json:"date_of_arrival"`
	PrimaryKey    int   `json:"primary_key"`
}

// NotificationAction is a named button on a notification.
type NotificationAction struct {
	Action string `json:"action"`
	Title  string `json:"title"`
	Icon   string `json:"icon"`
}

// OnSync runs the handler registered for a background sync tag. Failures
// are logged and swallowed; retry scheduling is the host platform's job,
// not this layer's.
func (m *Manager) OnSync(tag string) {
	m.log.Printf("background sync: %s", tag)
	if tag != SyncTagMessages {
		return
	}
	if err := m.syncMessages(); err != nil {
		m.log.Printf("sync failed: %v", err)
	}
}

// syncMessages replays messages queued while offline.
// TODO: wire up the queued-message store once offline sends are buffered.
func (m *Manager) syncMessages() error {
	return nil
}

// BuildNotification prepares a push notification with the app's fixed
// title, icon set and the two standard actions.
func BuildNotification(title, body, icon string) Notification {
	return Notification{
		Title:   title,
		Body:    body,
		Icon:    icon,
		Badge:   icon,
		Vibrate: []int{100, 50, 100},
		Data: NotificationData{
			DateOfArrival: time.Now().UnixMilli(),
			PrimaryKey:    1,
		},
		Actions: []NotificationAction{
			{Action: ActionExplore, Title: "Open app", Icon: icon},
			{Action: ActionClose, Title: "Dismiss", Icon: icon},
		},
	}
}

// ClickTarget resolves a notification action to the URL to open. Close
// opens nothing; explore and any unrecognized action open the app root.
func ClickTarget(action string) (string, bool) {
	if action == ActionClose {
		return "", false
	}
	return "/", true
}
