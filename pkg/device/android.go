// Package device provides Android device discovery via ADB. Sessions are
// driven through Appium; adb is only used to find devices and describe them.
package device

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// ErrNoDevices is returned when adb reports no device in the "device" state.
var ErrNoDevices = errors.New("no connected devices found")

// Info describes one device listed by adb.
type Info struct {
	Serial     string `json:"serial"`
	State      string `json:"state"`
	Model      string `json:"model,omitempty"`
	Product    string `json:"product,omitempty"`
	SDK        string `json:"sdk,omitempty"`
	Brand      string `json:"brand,omitempty"`
	IsEmulator bool   `json:"emulator"`
}

// Ready reports whether the device accepts commands.
func (i Info) Ready() bool { return i.State == "device" }

// AndroidDevice runs adb commands against one device.
type AndroidDevice struct {
	serial  string
	adbPath string
}

// New creates an AndroidDevice for serial and checks that it is connected.
func New(ctx context.Context, serial string) (*AndroidDevice, error) {
	adbPath, err := findADB()
	if err != nil {
		return nil, err
	}
	d := &AndroidDevice{serial: serial, adbPath: adbPath}
	state, err := d.adb(ctx, "get-state")
	if err != nil {
		return nil, fmt.Errorf("device not found: %w", err)
	}
	if s := strings.TrimSpace(state); s != "device" {
		return nil, fmt.Errorf("device %s is %s", serial, s)
	}
	return d, nil
}

// ListDevices returns every device adb knows about, ready or not.
func ListDevices(ctx context.Context) ([]Info, error) {
	adbPath, err := findADB()
	if err != nil {
		return nil, err
	}
	out, err := (&AndroidDevice{adbPath: adbPath}).adb(ctx, "devices", "-l")
	if err != nil {
		return nil, err
	}
	return parseDevices(out), nil
}

// FirstAvailable returns the first device in the "device" state.
func FirstAvailable(ctx context.Context) (*AndroidDevice, error) {
	devices, err := ListDevices(ctx)
	if err != nil {
		return nil, err
	}
	for _, d := range devices {
		if d.Ready() {
			return New(ctx, d.Serial)
		}
	}
	return nil, ErrNoDevices
}

// parseDevices parses the output of "adb devices -l".
func parseDevices(out string) []Info {
	var devices []Info
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "List of") || strings.HasPrefix(line, "*") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		info := Info{Serial: fields[0], State: fields[1]}
		for _, f := range fields[2:] {
			k, v, ok := strings.Cut(f, ":")
			if !ok {
				continue
			}
			switch k {
			case "model":
				info.Model = strings.ReplaceAll(v, "_", " ")
			case "product":
				info.Product = v
			}
		}
		info.IsEmulator = strings.HasPrefix(info.Serial, "emulator-")
		devices = append(devices, info)
	}
	return devices
}

// Serial returns the device serial number.
func (d *AndroidDevice) Serial() string {
	return d.serial
}

// Shell executes a shell command on the device.
func (d *AndroidDevice) Shell(ctx context.Context, cmd string) (string, error) {
	return d.adb(ctx, "shell", cmd)
}

// IsInstalled checks if a package is installed.
func (d *AndroidDevice) IsInstalled(ctx context.Context, pkg string) bool {
	out, err := d.Shell(ctx, "pm list packages "+pkg)
	if err != nil {
		return false
	}
	for _, line := range strings.Split(out, "\n") {
		if strings.TrimSpace(line) == "package:"+pkg {
			return true
		}
	}
	return false
}

// Info returns device properties. Properties that cannot be read are left
// empty.
func (d *AndroidDevice) Info(ctx context.Context) Info {
	info := Info{Serial: d.serial, State: "device"}
	prop := func(name string) string {
		out, err := d.Shell(ctx, "getprop "+name)
		if err != nil {
			return ""
		}
		return strings.TrimSpace(out)
	}
	info.Model = prop("ro.product.model")
	info.SDK = prop("ro.build.version.sdk")
	info.Brand = prop("ro.product.brand")
	info.IsEmulator = prop("ro.kernel.qemu") == "1" || strings.HasPrefix(d.serial, "emulator-")
	return info
}

// adb executes an ADB command.
func (d *AndroidDevice) adb(ctx context.Context, args ...string) (string, error) {
	cmdArgs := make([]string, 0, len(args)+2)
	if d.serial != "" {
		cmdArgs = append(cmdArgs, "-s", d.serial)
	}
	cmdArgs = append(cmdArgs, args...)

	cmd := exec.CommandContext(ctx, d.adbPath, cmdArgs...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		errMsg := strings.TrimSpace(stderr.String())
		if errMsg == "" {
			errMsg = strings.TrimSpace(stdout.String())
		}
		return "", fmt.Errorf("adb %s: %w: %s", strings.Join(args, " "), err, errMsg)
	}
	return stdout.String(), nil
}

// findADB locates the ADB binary on PATH.
func findADB() (string, error) {
	if path, err := exec.LookPath("adb"); err == nil {
		return path, nil
	}
	return "", fmt.Errorf("adb not found in PATH; ensure Android SDK is installed")
}
