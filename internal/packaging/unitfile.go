package packaging

import (
	"fmt"
)

// GenerateUnitFile produces the systemd template unit for wgtunnel. The
// instance name is the tunnel name and each instance gets its own control
// socket under /run/wgtunnel. Reloading a unit sends SIGHUP, which makes
// the running process apply stored edits immediately.
// It calls cfg.ApplyDefaults() to fill in zero-valued fields before generating the output.
func GenerateUnitFile(cfg InstallConfig) string {
	cfg.ApplyDefaults()

	return fmt.Sprintf(`[Unit]
Description=WireGuard tunnel %%i via wgtunnel
After=network-online.target nss-lookup.target
Wants=network-online.target nss-lookup.target
StartLimitBurst=5
StartLimitIntervalSec=60

[Service]
Type=simple
ExecStart=%s up %%i --config %s --socket /run/wgtunnel/%%i.sock
ExecReload=/bin/kill -HUP $MAINPID
Restart=on-failure
RestartSec=5s
AmbientCapabilities=CAP_NET_ADMIN CAP_NET_BIND_SERVICE
CapabilityBoundingSet=CAP_NET_ADMIN CAP_NET_BIND_SERVICE
ProtectSystem=full
ProtectHome=true
ReadWritePaths=%s
RuntimeDirectory=wgtunnel
RuntimeDirectoryPreserve=yes

[Install]
WantedBy=multi-user.target
`, cfg.BinaryPath, cfg.ConfigPath(), cfg.DataDir)
}
