// Package audio selects PulseAudio sources and captures microphone PCM.
package audio

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"
)

const pulseAppName = "parley"

// ErrNoInputDevices is returned when Pulse reports no sources at all.
var ErrNoInputDevices = errors.New("no audio input devices found")

// Device describes one Pulse input source.
type Device struct {
	ID          string
	Description string
	State       string
	Available   bool
	Muted       bool
	Default     bool
}

func (d Device) usable() bool { return d.Available && !d.Muted }

// problem names why an unusable device was skipped.
func (d Device) problem() string {
	if d.Muted {
		return "muted"
	}
	return "unavailable"
}

// Selection is the source to capture from. Warning is set when the
// configured input could not be used.
type Selection struct {
	Device   Device
	Warning  string
	Fallback bool
}

// ListDevices queries Pulse for every input source.
func ListDevices(_ context.Context) ([]Device, error) {
	client, err := newClient()
	if err != nil {
		return nil, err
	}
	defer client.Close()

	defaultSource, err := client.DefaultSource()
	if err != nil {
		return nil, fmt.Errorf("read default source: %w", err)
	}

	var infos pulseproto.GetSourceInfoListReply
	if err := client.RawRequest(&pulseproto.GetSourceInfoList{}, &infos); err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	return devicesFromReply(infos, defaultSource.ID()), nil
}

func devicesFromReply(infos pulseproto.GetSourceInfoListReply, defaultID string) []Device {
	devices := make([]Device, 0, len(infos))
	for _, info := range infos {
		if info == nil {
			continue
		}
		devices = append(devices, Device{
			ID:          info.SourceName,
			Description: info.Device,
			State:       sourceStateString(info.State),
			Available:   sourceAvailable(info),
			Muted:       info.Mute,
			Default:     info.SourceName == defaultID,
		})
	}
	return devices
}

// SelectDevice picks the capture source for the audio.input and
// audio.fallback preferences.
func SelectDevice(ctx context.Context, input string, fallback string) (Selection, error) {
	devices, err := ListDevices(ctx)
	if err != nil {
		return Selection{}, err
	}
	return selectDeviceFromList(devices, input, fallback)
}

// selectDeviceFromList uses the input preference when that device is usable
// and the fallback preference otherwise. "" and "default" mean the Pulse
// default source.
func selectDeviceFromList(devices []Device, input string, fallback string) (Selection, error) {
	if len(devices) == 0 {
		return Selection{}, ErrNoInputDevices
	}

	primary, err := resolvePreference(devices, "audio.input", input)
	if err != nil {
		return Selection{}, err
	}
	if primary.usable() {
		return Selection{Device: primary}, nil
	}

	alternate, err := resolvePreference(devices, "audio.fallback", fallback)
	if err != nil {
		return Selection{}, fmt.Errorf("audio.input %q is %s: %w", primary.ID, primary.problem(), err)
	}
	if !alternate.usable() {
		return Selection{}, fmt.Errorf("audio.input %q is %s and audio.fallback %q is %s",
			primary.ID, primary.problem(), alternate.ID, alternate.problem())
	}

	return Selection{
		Device:   alternate,
		Warning:  fmt.Sprintf("audio.input %q is %s; falling back to %q", primary.ID, primary.problem(), alternate.ID),
		Fallback: alternate.ID != primary.ID,
	}, nil
}

// resolvePreference finds the device a preference names. An exact id wins
// over a substring of id or description.
func resolvePreference(devices []Device, field string, pref string) (Device, error) {
	pref = strings.ToLower(strings.TrimSpace(pref))
	if pref == "" || pref == "default" {
		for _, dev := range devices {
			if dev.Default {
				return dev, nil
			}
		}
		return Device{}, errors.New("default audio source is unavailable")
	}

	for _, dev := range devices {
		if strings.ToLower(dev.ID) == pref {
			return dev, nil
		}
	}
	for _, dev := range devices {
		if deviceMatches(dev, pref) {
			return dev, nil
		}
	}
	return Device{}, fmt.Errorf("%s %q did not match any device", field, pref)
}

// deviceMatches reports whether a lowercase term appears in the id or description.
func deviceMatches(device Device, term string) bool {
	if term == "" {
		return false
	}
	return strings.Contains(strings.ToLower(device.ID), term) ||
		strings.Contains(strings.ToLower(device.Description), term)
}

func newClient() (*pulse.Client, error) {
	client, err := pulse.NewClient(
		pulse.ClientApplicationName(pulseAppName),
		pulse.ClientApplicationIconName("audio-input-microphone"),
	)
	if err != nil {
		return nil, fmt.Errorf("connect pulse server: %w", err)
	}
	return client, nil
}

var sourceStates = map[uint32]string{
	0: "running",
	1: "idle",
	2: "suspended",
}

func sourceStateString(state uint32) string {
	if name, ok := sourceStates[state]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", state)
}

// sourceAvailable reads the active port's availability. Sources without
// ports, or whose active port reports unknown, count as available.
func sourceAvailable(info *pulseproto.GetSourceInfoReply) bool {
	if info == nil {
		return false
	}
	const portUnavailable = 1
	for _, port := range info.Ports {
		if port.Name == info.ActivePortName {
			return port.Available != portUnavailable
		}
	}
	return true
}
