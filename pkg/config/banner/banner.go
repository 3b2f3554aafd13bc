package banner

import (
	"fmt"

	"github.com/open-chat-labs/open-chat-sub005/pkg/config"
)

const banner = `
 ██████╗██╗  ██╗ █████╗ ████████╗███████╗██╗  ██╗ █████╗ ██████╗ ██████╗
██╔════╝██║  ██║██╔══██╗╚══██╔══╝██╔════╝██║  ██║██╔══██╗██╔══██╗██╔══██╗
██║     ███████║███████║   ██║   ███████╗███████║███████║██████╔╝██║  ██║
██║     ██╔══██║██╔══██║   ██║   ╚════██║██╔══██║██╔══██║██╔══██╗██║  ██║
╚██████╗██║  ██║██║  ██║   ██║   ███████║██║  ██║██║  ██║██║  ██║██████╔╝
 ╚═════╝╚═╝  ╚═╝╚═╝  ╚═╝   ╚═╝   ╚══════╝╚═╝  ╚═╝╚═╝  ╚═╝╚═╝  ╚═╝╚═════╝
`

// Print renders the startup banner with the effective configuration.
func Print(eff config.Effective, version string) {
	fmt.Print(banner)
	fmt.Println("== Config =====================================================")
	fmt.Printf("Ops addr: %s\n", eff.Addr)
	fmt.Printf("DB path:  %s\n", eff.DBPath)
	if version != "" {
		fmt.Printf("Version:  %s\n", version)
	}
	fmt.Printf("Source:   %s\n", eff.Source)

	cfg := eff.Config
	if cfg == nil {
		return
	}
	if cfg.GC.Enabled {
		fmt.Printf("GC:       enabled (cron=%s)\n", cfg.GC.Cron)
	} else {
		fmt.Println("GC:       disabled")
	}
	if cfg.Store.DisableWAL {
		fmt.Println("WAL:      DISABLED (writes are not durable)")
	}
	if cfg.Sensor.Enabled {
		fmt.Printf("Sensor:   enabled (disk high %d%%)\n", cfg.Sensor.DiskHighPct)
	}
}
