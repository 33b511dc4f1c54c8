package portal

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ehr/portal/internal/platform/auth"
)

// Settings is a flat snapshot of profile preferences keyed "section.key".
// Values are bool toggles or strings.
type Settings map[string]interface{}

const (
	SectionNotifications = "notifications"
	SectionPractice      = "practice"
	SectionPrivacy       = "privacy"
)

var doctorDefaults = Settings{
	"notifications.email_alerts":          true,
	"notifications.sms_alerts":            false,
	"notifications.appointment_reminders": true,
	"notifications.lab_results":           true,
	"notifications.emergency_alerts":      true,
	"practice.consultation_duration":      "30",
	"practice.working_hours":              "9:00 AM - 5:00 PM",
	"practice.break_time":                 "12:00 PM - 1:00 PM",
	"practice.weekends":                   false,
	"practice.emergency_available":        true,
}

var patientDefaults = Settings{
	"notifications.appointment_reminders": true,
	"notifications.prescription_alerts":   true,
	"notifications.lab_results":           true,
	"notifications.email_updates":         false,
	"notifications.sms_notifications":     true,
	"privacy.share_data_for_research":     false,
	"privacy.allow_data_analytics":        true,
	"privacy.marketing_communications":    false,
}

// Defaults returns a fresh snapshot of the role's settings.
func Defaults(role auth.Role) Settings {
	if role == auth.RoleDoctor {
		return doctorDefaults.clone()
	}
	return patientDefaults.clone()
}

// Sections lists the settings sections a role may save.
func Sections(role auth.Role) []string {
	if role == auth.RoleDoctor {
		return []string{SectionNotifications, SectionPractice}
	}
	return []string{SectionNotifications, SectionPrivacy}
}

func (s Settings) clone() Settings {
	out := make(Settings, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Section returns the keys of one section without their prefix.
func (s Settings) Section(name string) map[string]interface{} {
	out := make(map[string]interface{})
	prefix := name + "."
	for k, v := range s {
		if strings.HasPrefix(k, prefix) {
			out[strings.TrimPrefix(k, prefix)] = v
		}
	}
	return out
}

// Keys returns the snapshot's keys in sorted order.
func (s Settings) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Overlay applies stored values on top of base. Stored keys base does not
// know, or whose type differs, are ignored.
func Overlay(base, stored Settings) Settings {
	out := base.clone()
	for k, v := range stored {
		if cur, ok := base[k]; ok && sameKind(cur, v) {
			out[k] = v
		}
	}
	return out
}

// Toggle flips a boolean setting and returns the new snapshot.
func Toggle(s Settings, key string) (Settings, error) {
	cur, ok := s[key]
	if !ok {
		return s, fmt.Errorf("unknown setting %q", key)
	}
	b, ok := cur.(bool)
	if !ok {
		return s, fmt.Errorf("setting %q is not a toggle", key)
	}
	out := s.clone()
	out[key] = !b
	return out, nil
}

// Set replaces one setting. The value must have the same kind as the
// current one.
func Set(s Settings, key string, value interface{}) (Settings, error) {
	cur, ok := s[key]
	if !ok {
		return s, fmt.Errorf("unknown setting %q", key)
	}
	if !sameKind(cur, value) {
		return s, fmt.Errorf("setting %q expects a %s", key, kindName(cur))
	}
	out := s.clone()
	out[key] = value
	return out, nil
}

func sameKind(a, b interface{}) bool {
	switch a.(type) {
	case bool:
		_, ok := b.(bool)
		return ok
	case string:
		_, ok := b.(string)
		return ok
	}
	return false
}

func kindName(v interface{}) string {
	if _, ok := v.(bool); ok {
		return "boolean"
	}
	return "string"
}
