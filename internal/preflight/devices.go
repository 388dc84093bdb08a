package preflight

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// DeviceProbe reports the current accelerator detection snapshot.
type DeviceProbe struct {
	Detected bool
	Count    int
	Names    []string
}

// ProbeDevices attempts to enumerate accelerators via nvidia-smi. A missing
// or failing nvidia-smi yields an empty probe rather than an error; device
// visibility is advisory and the collaborators make the final call.
func ProbeDevices() DeviceProbe {
	if _, err := exec.LookPath("nvidia-smi"); err != nil {
		return DeviceProbe{}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, "nvidia-smi", "--query-gpu=name", "--format=csv,noheader")
	output, err := cmd.Output()
	if err != nil {
		return DeviceProbe{}
	}
	text := strings.TrimSpace(string(output))
	if text == "" {
		return DeviceProbe{}
	}

	var names []string
	for _, line := range strings.Split(text, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			names = append(names, trimmed)
		}
	}
	return DeviceProbe{
		Detected: len(names) > 0,
		Count:    len(names),
		Names:    names,
	}
}

// DeviceDetail renders a display-friendly summary for status UIs.
func (p DeviceProbe) DeviceDetail() string {
	if !p.Detected {
		return "No accelerators detected"
	}
	if p.Count == 1 {
		return fmt.Sprintf("1 accelerator (%s)", p.Names[0])
	}
	return fmt.Sprintf("%d accelerators (%s)", p.Count, strings.Join(p.Names, ", "))
}
