package model

// Per-group setting keys.
const (
	SettingReminderMinutes = "reminder_minutes"
	SettingLocale          = "locale"
)
