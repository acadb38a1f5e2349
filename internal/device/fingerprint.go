package device

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net"
	"os"
	"runtime"
	"strings"
	"sync"

	"vidgate/internal/infrastructure"
)

// Sources reads the machine facts a fingerprint is built from. Tests replace them.
type Sources struct {
	MACAddress func() (string, error)
	Hostname   func() (string, error)
	CPUID      func() (string, error)
	GOOS       string
	GOARCH     string
}

// SystemSources reads from the running machine.
func SystemSources() Sources {
	return Sources{
		MACAddress: macAddress,
		Hostname:   hostname,
		CPUID:      cpuID,
		GOOS:       runtime.GOOS,
		GOARCH:     runtime.GOARCH,
	}
}

// Fingerprint derives the device id from hardware and host facts. The
// result is computed once per process.
type Fingerprint struct {
	sources Sources
	logger  *slog.Logger

	mu sync.Mutex
	id string
}

// NewFingerprint creates a fingerprint provider.
func NewFingerprint(sources Sources, logger *slog.Logger) *Fingerprint {
	return &Fingerprint{
		sources: sources,
		logger:  infrastructure.WithComponent(logger, "device_fingerprint"),
	}
}

// DeviceID implements Provider. A fact that cannot be read is replaced by a
// fixed placeholder so the id stays stable on that machine.
func (f *Fingerprint) DeviceID(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.id != "" {
		return f.id, nil
	}

	factors := []string{
		f.read(ctx, "mac_address", f.sources.MACAddress, "unknown-mac"),
		f.read(ctx, "hostname", f.sources.Hostname, "unknown-host"),
		f.read(ctx, "cpu_id", f.sources.CPUID, "unknown-cpu"),
		f.sources.GOOS,
		f.sources.GOARCH,
	}
	sum := sha256.Sum256([]byte(strings.Join(factors, "|")))
	f.id = hex.EncodeToString(sum[:])

	f.logger.DebugContext(ctx, "device fingerprint generated",
		slog.String("os", f.sources.GOOS),
		slog.String("platform", f.sources.GOARCH),
	)
	return f.id, nil
}

func (f *Fingerprint) read(ctx context.Context, name string, source func() (string, error), fallback string) string {
	if source == nil {
		return fallback
	}
	v, err := source()
	if err != nil || v == "" {
		f.logger.WarnContext(ctx, "fingerprint factor unavailable, using fallback",
			slog.String("factor", name),
			slog.Any("error", err),
		)
		return fallback
	}
	return v
}

// macAddress returns the first hardware address of an up, non-loopback
// interface, falling back to any interface with one.
func macAddress() (string, error) {
	interfaces, err := net.Interfaces()
	if err != nil {
		return "", fmt.Errorf("failed to get network interfaces: %w", err)
	}

	valid := func(iface net.Interface) (string, bool) {
		mac := iface.HardwareAddr.String()
		return mac, mac != "" && mac != "00:00:00:00:00:00"
	}
	for _, iface := range interfaces {
		if iface.Flags&net.FlagLoopback != 0 || iface.Flags&net.FlagUp == 0 {
			continue
		}
		if mac, ok := valid(iface); ok {
			return mac, nil
		}
	}
	for _, iface := range interfaces {
		if mac, ok := valid(iface); ok {
			return mac, nil
		}
	}
	return "", fmt.Errorf("no valid MAC address found")
}

func hostname() (string, error) {
	name, err := os.Hostname()
	if err != nil {
		return "", fmt.Errorf("failed to get hostname: %w", err)
	}
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return "", fmt.Errorf("hostname is empty")
	}
	return name, nil
}

// cpuID returns a short digest of an OS-specific processor description.
func cpuID() (string, error) {
	var raw string
	switch runtime.GOOS {
	case "windows":
		raw = os.Getenv("PROCESSOR_IDENTIFIER")
		if raw == "" {
			raw = "windows-" + runtime.GOARCH + "-" + os.Getenv("PROCESSOR_ARCHITECTURE")
		}
	case "linux":
		raw = "linux-" + runtime.GOARCH
		if data, err := os.ReadFile("/proc/cpuinfo"); err == nil {
			for _, line := range strings.Split(string(data), "\n") {
				if strings.HasPrefix(line, "model name") || strings.HasPrefix(line, "cpu family") {
					raw = line
					break
				}
			}
		}
	case "darwin":
		raw = "darwin-" + runtime.GOARCH
		if host := os.Getenv("HOSTTYPE"); host != "" {
			raw += "-" + host
		}
	default:
		raw = runtime.GOOS + "-" + runtime.GOARCH
	}

	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:8]), nil
}
