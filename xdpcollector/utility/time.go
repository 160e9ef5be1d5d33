// xdpcollector/utility/time.go
package utility

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

var (
	bootOnce sync.Once
	// bootTime holds the system boot time, computed on first use.
	bootTime time.Time
)

// getBootTime reads the uptime from /proc/uptime and computes the boot time.
// Example: If /proc/uptime returns "12345.67 54321.21" and the current time is T,
// then bootTime = T - 12345.67 seconds.
func getBootTime() (time.Time, error) {
	data, err := os.ReadFile("/proc/uptime")
	if err != nil {
		return time.Time{}, err
	}
	return parseUptime(string(data), time.Now())
}

func parseUptime(data string, now time.Time) (time.Time, error) {
	parts := strings.Fields(data)
	if len(parts) < 1 {
		return time.Time{}, fmt.Errorf("unexpected /proc/uptime format")
	}
	uptimeSeconds, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return time.Time{}, err
	}
	return now.Add(-time.Duration(uptimeSeconds * float64(time.Second))), nil
}

// BpfNanotime converts a boot-relative nanosecond timestamp from
// bpf_ktime_get_ns to wall-clock time. When the boot time cannot be
// determined the current time is returned.
func BpfNanotime(bpfNs uint64) time.Time {
	bootOnce.Do(func() {
		var err error
		if bootTime, err = getBootTime(); err != nil {
			log.Debugf("boot time unavailable, kernel timestamps use arrival time: %v", err)
			return
		}
		log.Debugf("Boot time calculated as: %s", bootTime.Format(time.RFC3339))
	})
	if bootTime.IsZero() {
		return time.Now()
	}
	return bootTime.Add(time.Duration(bpfNs))
}

// ConvertBpfNanotime formats BpfNanotime with nanosecond precision.
func ConvertBpfNanotime(bpfNs uint64) string {
	return BpfNanotime(bpfNs).Format("2006-01-02T15:04:05.000000000Z07:00")
}
