package audio

import (
	"context"
	"reflect"
	"testing"

	pulseproto "github.com/jfreymuth/pulse/proto"
	"github.com/stretchr/testify/require"
)

func testDevices() []Device {
	return []Device{
		{ID: "alsa_input.usb-elgato", Description: "Elgato Wave 3 Mono", Available: true, Default: true},
		{ID: "bluez_input.sony", Description: "Sony WH-1000XM6", Available: true},
		{ID: "alsa_input.pci-builtin", Description: "Built-in Audio", Available: true},
	}
}

func TestSelectDeviceFromList(t *testing.T) {
	tests := []struct {
		name         string
		mutate       func([]Device)
		input        string
		fallback     string
		wantID       string
		wantFallback bool
		wantWarning  string
		wantErr      string
	}{
		{name: "default input", input: "default", fallback: "default", wantID: "alsa_input.usb-elgato"},
		{name: "blank input means default", wantID: "alsa_input.usb-elgato"},
		{name: "description substring", input: "Sony", wantID: "bluez_input.sony"},
		{name: "exact id beats substring", input: "alsa_input.pci-builtin", wantID: "alsa_input.pci-builtin"},
		{
			name:         "muted input uses fallback",
			mutate:       func(d []Device) { d[0].Muted = true },
			input:        "elgato",
			fallback:     "sony",
			wantID:       "bluez_input.sony",
			wantFallback: true,
			wantWarning:  "is muted; falling back",
		},
		{
			name:         "unavailable input falls back to default",
			mutate:       func(d []Device) { d[1].Available = false },
			input:        "sony",
			wantID:       "alsa_input.usb-elgato",
			wantFallback: true,
			wantWarning:  "is unavailable",
		},
		{
			name:     "muted default with default fallback",
			mutate:   func(d []Device) { d[0].Muted = true },
			input:    "default",
			fallback: "default",
			wantErr:  `audio.fallback "alsa_input.usb-elgato" is muted`,
		},
		{
			name:     "fallback not found",
			mutate:   func(d []Device) { d[0].Muted = true },
			fallback: "usb-headset",
			wantErr:  `audio.fallback "usb-headset" did not match any device`,
		},
		{name: "unknown input", input: "missing", wantErr: "did not match"},
		{
			name:    "no default source",
			mutate:  func(d []Device) { d[0].Default = false },
			wantErr: "default audio source is unavailable",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			devices := testDevices()
			if tc.mutate != nil {
				tc.mutate(devices)
			}

			selection, err := selectDeviceFromList(devices, tc.input, tc.fallback)
			if tc.wantErr != "" {
				require.ErrorContains(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.wantID, selection.Device.ID)
			require.Equal(t, tc.wantFallback, selection.Fallback)
			if tc.wantWarning == "" {
				require.Empty(t, selection.Warning)
			} else {
				require.Contains(t, selection.Warning, tc.wantWarning)
			}
		})
	}
}

func TestSelectDeviceFromEmptyList(t *testing.T) {
	_, err := selectDeviceFromList(nil, "default", "default")
	require.ErrorIs(t, err, ErrNoInputDevices)
}

func TestDeviceMatchesByIDAndDescription(t *testing.T) {
	dev := Device{ID: "alsa_input.usb-elgato", Description: "Elgato Wave 3 Mono"}
	require.True(t, deviceMatches(dev, "elgato"))
	require.True(t, deviceMatches(dev, "wave 3"))
	require.False(t, deviceMatches(dev, "missing"))
	require.False(t, deviceMatches(dev, ""))
}

func TestPulseUnavailable(t *testing.T) {
	t.Setenv("PULSE_SERVER", "unix:/tmp/definitely-missing-pulse-server")

	_, err := ListDevices(context.Background())
	require.ErrorContains(t, err, "connect pulse server")

	_, err = SelectDevice(context.Background(), "default", "default")
	require.Error(t, err)
}

func TestSourceStateString(t *testing.T) {
	require.Equal(t, "running", sourceStateString(0))
	require.Equal(t, "idle", sourceStateString(1))
	require.Equal(t, "suspended", sourceStateString(2))
	require.Equal(t, "unknown(99)", sourceStateString(99))
}

func TestSourceAvailable(t *testing.T) {
	require.False(t, sourceAvailable(nil))
	require.True(t, sourceAvailable(&pulseproto.GetSourceInfoReply{}))

	yes := &pulseproto.GetSourceInfoReply{ActivePortName: "mic"}
	setPorts(t, yes, map[string]uint32{"mic": 2})
	require.True(t, sourceAvailable(yes))

	unknown := &pulseproto.GetSourceInfoReply{ActivePortName: "mic"}
	setPorts(t, unknown, map[string]uint32{"mic": 0})
	require.True(t, sourceAvailable(unknown))

	no := &pulseproto.GetSourceInfoReply{ActivePortName: "mic"}
	setPorts(t, no, map[string]uint32{"mic": 1, "line": 2})
	require.False(t, sourceAvailable(no))
}

func TestDevicesFromReply(t *testing.T) {
	unplugged := &pulseproto.GetSourceInfoReply{SourceName: "headset", Device: "Headset", ActivePortName: "jack", State: 2}
	setPorts(t, unplugged, map[string]uint32{"jack": 1})

	reply := pulseproto.GetSourceInfoListReply{
		{SourceName: "mic", Device: "USB Mic", State: 1, Mute: true},
		nil,
		unplugged,
	}

	devices := devicesFromReply(reply, "mic")
	require.Equal(t, []Device{
		{ID: "mic", Description: "USB Mic", State: "idle", Available: true, Muted: true, Default: true},
		{ID: "headset", Description: "Headset", State: "suspended", Available: false},
	}, devices)
}

// setPorts fills reply.Ports. Its element type is an anonymous struct.
func setPorts(t *testing.T, reply *pulseproto.GetSourceInfoReply, ports map[string]uint32) {
	t.Helper()

	field := reflect.ValueOf(reply).Elem().FieldByName("Ports")
	slice := reflect.MakeSlice(field.Type(), 0, len(ports))
	for name, available := range ports {
		item := reflect.New(field.Type().Elem()).Elem()
		item.FieldByName("Name").SetString(name)
		item.FieldByName("Available").SetUint(uint64(available))
		slice = reflect.Append(slice, item)
	}
	field.Set(slice)
}
