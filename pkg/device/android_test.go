package device

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

// fakeADB puts a shell script named adb first on PATH.
func fakeADB(t *testing.T, script string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake adb needs a POSIX shell")
	}
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "adb"), []byte("#!/bin/sh\n"+script), 0o755); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PATH", dir+string(os.PathListSeparator)+os.Getenv("PATH"))
}

const devicesOutput = `List of devices attached
* daemon started successfully
emulator-5554          device product:sdk_gphone64_x86_64 model:sdk_gphone64_x86_64 transport_id:1
R58M12ABCDE            unauthorized usb:1-1 transport_id:2
0123456789ABCDEF       device usb:1-2 product:panther model:Pixel_7 device:panther transport_id:3
`

const fakeScript = `
case "$*" in
  "devices -l") printf '%s' "$DEVICES" ;;
  *"get-state") echo device ;;
  *"getprop ro.product.model") echo "Pixel 7" ;;
  *"getprop ro.build.version.sdk") echo 34 ;;
  *"getprop ro.product.brand") echo google ;;
  *"getprop ro.kernel.qemu") echo "" ;;
  *"pm list packages com.example.feed") printf 'package:com.example.feed\npackage:com.example.feed.debug\n' ;;
  *"pm list packages"*) echo "" ;;
  *) echo "unexpected: $*" >&2; exit 1 ;;
esac
`

func TestParseDevices(t *testing.T) {
	devices := parseDevices(devicesOutput)
	if len(devices) != 3 {
		t.Fatalf("expected 3 devices, got %d: %+v", len(devices), devices)
	}

	emu := devices[0]
	if emu.Serial != "emulator-5554" || !emu.Ready() || !emu.IsEmulator {
		t.Errorf("unexpected emulator entry %+v", emu)
	}
	if emu.Product != "sdk_gphone64_x86_64" {
		t.Errorf("unexpected product %q", emu.Product)
	}

	if devices[1].Ready() {
		t.Error("unauthorized device should not be ready")
	}

	pixel := devices[2]
	if pixel.Model != "Pixel 7" {
		t.Errorf("expected model with spaces restored, got %q", pixel.Model)
	}
	if pixel.IsEmulator {
		t.Error("usb device flagged as emulator")
	}
}

func TestParseDevices_Empty(t *testing.T) {
	if got := parseDevices("List of devices attached\n\n"); len(got) != 0 {
		t.Errorf("expected no devices, got %+v", got)
	}
}

func TestListDevices_FakeADB(t *testing.T) {
	fakeADB(t, fakeScript)
	t.Setenv("DEVICES", devicesOutput)

	devices, err := ListDevices(context.Background())
	if err != nil {
		t.Fatalf("ListDevices failed: %v", err)
	}
	if len(devices) != 3 {
		t.Errorf("expected 3 devices, got %d", len(devices))
	}
}

func TestFirstAvailable_FakeADB(t *testing.T) {
	fakeADB(t, fakeScript)
	t.Setenv("DEVICES", devicesOutput)

	d, err := FirstAvailable(context.Background())
	if err != nil {
		t.Fatalf("FirstAvailable failed: %v", err)
	}
	if d.Serial() != "emulator-5554" {
		t.Errorf("expected emulator-5554, got %s", d.Serial())
	}
}

func TestFirstAvailable_NoDevices(t *testing.T) {
	fakeADB(t, fakeScript)
	t.Setenv("DEVICES", "List of devices attached\nR58M12ABCDE unauthorized usb:1-1\n")

	_, err := FirstAvailable(context.Background())
	if !errors.Is(err, ErrNoDevices) {
		t.Errorf("expected ErrNoDevices, got %v", err)
	}
}

func TestAndroidDevice_Info(t *testing.T) {
	fakeADB(t, fakeScript)
	ctx := context.Background()

	d, err := New(ctx, "0123456789ABCDEF")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	info := d.Info(ctx)
	if info.Model != "Pixel 7" || info.SDK != "34" || info.Brand != "google" {
		t.Errorf("unexpected info %+v", info)
	}
	if info.IsEmulator {
		t.Error("device flagged as emulator")
	}
}

func TestAndroidDevice_IsInstalled(t *testing.T) {
	fakeADB(t, fakeScript)
	ctx := context.Background()
	d, err := New(ctx, "0123456789ABCDEF")
	if err != nil {
		t.Fatal(err)
	}

	if !d.IsInstalled(ctx, "com.example.feed") {
		t.Error("expected com.example.feed to be installed")
	}
	if d.IsInstalled(ctx, "com.example") {
		t.Error("prefix match must not count as installed")
	}
}

func TestAndroidDevice_adb_Error(t *testing.T) {
	fakeADB(t, fakeScript)
	d := &AndroidDevice{serial: "x", adbPath: "adb"}
	if path, err := findADB(); err == nil {
		d.adbPath = path
	}
	_, err := d.adb(context.Background(), "reboot")
	if err == nil {
		t.Fatal("expected error")
	}
	if got := err.Error(); !strings.Contains(got, "unexpected: -s x reboot") {
		t.Errorf("expected stderr in error, got %q", got)
	}
}

func TestFindADB_Missing(t *testing.T) {
	t.Setenv("PATH", t.TempDir())
	if _, err := findADB(); err == nil {
		t.Error("expected error when adb is not on PATH")
	}
}
