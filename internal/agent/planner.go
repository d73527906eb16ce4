package agent

import (
	"fmt"
	"strings"

	"github.com/ark074/SecureWipe3/internal/domain/model"
)

// WipeStep is one command in a wipe plan.
type WipeStep struct {
	Cmd  string   `json:"cmd"`
	Args []string `json:"args,omitempty"`
	// Note carries operator-facing context, e.g. privilege requirements.
	Note string `json:"note,omitempty"`
}

// String renders the step as a shell-style command line for evidence logs.
func (s WipeStep) String() string {
	if len(s.Args) == 0 {
		return s.Cmd
	}
	return s.Cmd + " " + strings.Join(s.Args, " ")
}

// PlanWipe maps a device and method to platform-specific wipe commands.
// Unknown platforms fall through to the linux plan; an empty method defaults
// to a single overwrite pass.
func PlanWipe(device model.Device, method string) ([]WipeStep, error) {
	if device.Serial == "" && device.Model == "" {
		return nil, fmt.Errorf("device identity is required to plan a wipe")
	}

	switch strings.ToLower(device.Platform) {
	case "windows":
		return planWindows(method), nil
	case "android":
		return planAndroid(method), nil
	default:
		return planLinux(device, method), nil
	}
}

func planLinux(device model.Device, method string) []WipeStep {
	target := devicePath(device)
	passes := "1"
	if method == "purge" {
		passes = "3"
	}
	return []WipeStep{
		{Cmd: "shred", Args: []string{"-v", "-n", passes, target}},
	}
}

func planWindows(method string) []WipeStep {
	if method == "purge" {
		// clean all overwrites every sector and needs elevation.
		return []WipeStep{
			{Cmd: "diskpart", Args: []string{"/s", "clean_all.txt"}, Note: "requires administrator"},
		}
	}
	return []WipeStep{
		{Cmd: "cipher", Args: []string{`/w:C\`}},
	}
}

func planAndroid(method string) []WipeStep {
	if method == "clear" {
		return []WipeStep{
			{Cmd: "adb", Args: []string{"shell", "rm", "-rf", "/sdcard/*"}},
		}
	}
	return []WipeStep{
		{Cmd: "adb", Args: []string{"shell", "am", "broadcast", "-a", "android.intent.action.MASTER_CLEAR"}},
	}
}

func devicePath(device model.Device) string {
	if strings.HasPrefix(device.Model, "/dev/") {
		return device.Model
	}
	return "/dev/disk/by-id/" + device.Serial
}
