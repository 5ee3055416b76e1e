package systemdmanager

import (
	"fmt"
	"strings"
	"time"
)

// ServiceStatus represents the current state of a unit.
type ServiceStatus struct {
	Name          string
	Active        string // active, inactive, failed, etc.
	SubState      string // running, dead, etc.
	LoadState     string // loaded, not-found, etc.
	Description   string
	MainPID       uint32
	ActiveSince   time.Time // ActiveEnterTimestamp
	InactiveSince time.Time // InactiveEnterTimestamp
}

// Running reports whether the unit is active.
func (s *ServiceStatus) Running() bool {
	return s != nil && s.Active == "active"
}

// Found reports whether systemd knows the unit.
func (s *ServiceStatus) Found() bool {
	return s != nil && s.LoadState != "not-found"
}

// Since returns the timestamp of the current state, or the zero time.
func (s *ServiceStatus) Since() time.Time {
	if s == nil {
		return time.Time{}
	}
	if s.Running() {
		return s.ActiveSince
	}
	return s.InactiveSince
}

func notFound(unit string) *ServiceStatus {
	return &ServiceStatus{
		Name:      unit,
		Active:    "unknown",
		SubState:  "not-found",
		LoadState: "not-found",
	}
}

// UnitName returns name with a ".service" suffix unless it already names a unit type.
func UnitName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	if i := strings.LastIndexByte(name, '.'); i > 0 {
		switch name[i+1:] {
		case "service", "timer", "socket", "target", "path", "mount":
			return name
		}
	}
	return name + ".service"
}

func parseTimestamp(props map[string]interface{}, key string) time.Time {
	if ts, ok := props[key].(uint64); ok && ts > 0 {
		// systemd timestamps are in microseconds since the Unix epoch
		return time.Unix(int64(ts/1_000_000), 0)
	}
	return time.Time{}
}

func getStringProperty(props map[string]interface{}, key string) (string, bool) {
	if val, ok := props[key].(string); ok {
		return val, true
	}
	return "", false
}

func statusFromProps(unit string, props map[string]interface{}) *ServiceStatus {
	loadState, _ := getStringProperty(props, "LoadState")
	if loadState == "not-found" {
		return notFound(unit)
	}
	activeState, _ := getStringProperty(props, "ActiveState")
	subState, _ := getStringProperty(props, "SubState")
	description, _ := getStringProperty(props, "Description")
	pid, _ := props["MainPID"].(uint32)
	return &ServiceStatus{
		Name:          unit,
		Active:        activeState,
		SubState:      subState,
		LoadState:     loadState,
		Description:   description,
		MainPID:       pid,
		ActiveSince:   parseTimestamp(props, "ActiveEnterTimestamp"),
		InactiveSince: parseTimestamp(props, "InactiveEnterTimestamp"),
	}
}

func isNoSuchUnitErr(err error) bool {
	if err == nil {
		return false
	}
	es := err.Error()
	// systemd returns org.freedesktop.systemd1.NoSuchUnit for missing units.
	if strings.Contains(es, "NoSuchUnit") {
		return true
	}
	return strings.Contains(es, "not-found")
}

// FormatActionResult renders a one-line, human-readable action outcome.
func FormatActionResult(unit, action string, err error) string {
	if err != nil {
		return fmt.Sprintf("%s %s: error: %v", action, unit, err)
	}
	return fmt.Sprintf("%s %s: ok", action, unit)
}
