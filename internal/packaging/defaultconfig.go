package packaging

import "fmt"

// GenerateDefaultConfig produces a minimal default config.yaml for wgtunnel.
func GenerateDefaultConfig(dataDir string) string {
	return fmt.Sprintf(`# wgtunnel configuration
# See documentation for all available options.

data_dir: %s
log_level: info
backend:
  type: userspace
  tun: tun
# metrics:
#   listen_addr: 127.0.0.1:9586
# reconcile:
#   interval: 30s
# api:
#   group: wgtunnel
`, dataDir)
}
