// ABOUTME: Tailnet listener for serving the API privately, or publicly through Funnel
// ABOUTME: Node settings resolve from config first, then environment and home directory

package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"

	"tailscale.com/ipn/ipnstate"
	"tailscale.com/tsnet"

	"github.com/2389/ubwiyunge/internal/config"
)

// authKeyEnv is consulted when the config carries no auth key.
const authKeyEnv = "TS_AUTHKEY"

var errNoAuthKey = errors.New("no tailnet auth key: set tailscale.auth_key or " + authKeyEnv)

// nodeEnv is the process environment a tailnet node reads.
type nodeEnv struct {
	getenv  func(string) string
	homeDir func() (string, error)
}

func processEnv() nodeEnv {
	return nodeEnv{getenv: os.Getenv, homeDir: os.UserHomeDir}
}

// stateDir is where the node keeps its keys. Each hostname gets its own
// directory under the user's data dir unless one is configured.
func (e nodeEnv) stateDir(cfg config.TailscaleConfig) (string, error) {
	if cfg.StateDir != "" {
		return cfg.StateDir, nil
	}
	home, err := e.homeDir()
	if err != nil {
		return "", fmt.Errorf("locating tailnet state (set tailscale.state_dir): %w", err)
	}
	return filepath.Join(home, ".local", "share", "ubwiyunge", "tailscale", cfg.Hostname), nil
}

func (e nodeEnv) authKey(cfg config.TailscaleConfig) (string, error) {
	if cfg.AuthKey != "" {
		return cfg.AuthKey, nil
	}
	if key := e.getenv(authKeyEnv); key != "" {
		return key, nil
	}
	return "", errNoAuthKey
}

// node builds an unstarted tsnet server for cfg.
func (e nodeEnv) node(cfg config.TailscaleConfig) (*tsnet.Server, error) {
	dir, err := e.stateDir(cfg)
	if err != nil {
		return nil, err
	}
	key, err := e.authKey(cfg)
	if err != nil {
		return nil, err
	}
	return &tsnet.Server{
		Hostname:  cfg.Hostname,
		Dir:       dir,
		Ephemeral: cfg.Ephemeral,
		AuthKey:   key,
	}, nil
}

// tailnetPort is :443 behind Funnel, plain HTTP on :80 otherwise.
func tailnetPort(funnel bool) string {
	if funnel {
		return ":443"
	}
	return ":80"
}

// nodeAddress picks the first tailnet IP and the node's DNS name. Either
// may be empty before the node is fully up.
func nodeAddress(status *ipnstate.Status) (ip, dnsName string) {
	if status == nil {
		return "", ""
	}
	if len(status.TailscaleIPs) > 0 {
		ip = status.TailscaleIPs[0].String()
	}
	if status.Self != nil {
		dnsName = status.Self.DNSName
	}
	return ip, dnsName
}

// setupTailscaleListener brings the node up and listens on tailnetPort.
func (g *Gateway) setupTailscaleListener(ctx context.Context) (net.Listener, error) {
	cfg := g.config.Tailscale

	srv, err := processEnv().node(cfg)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(srv.Dir, 0700); err != nil {
		return nil, fmt.Errorf("creating tailnet state dir: %w", err)
	}
	g.tsnetServer = srv

	g.logger.Info("joining tailnet", "hostname", cfg.Hostname, "state_dir", srv.Dir, "ephemeral", cfg.Ephemeral)
	status, err := srv.Up(ctx)
	if err != nil {
		_ = srv.Close()
		return nil, fmt.Errorf("joining tailnet: %w", err)
	}
	ip, dnsName := nodeAddress(status)
	if ip == "" {
		g.logger.Warn("tailnet node has no address yet")
	}
	g.logger.Info("tailnet node up", "hostname", cfg.Hostname, "ip", ip, "dns_name", dnsName)

	port := tailnetPort(cfg.Funnel)
	var ln net.Listener
	if cfg.Funnel {
		g.logger.Info("serving publicly through funnel", "port", port)
		ln, err = srv.ListenFunnel("tcp", port)
	} else {
		ln, err = srv.Listen("tcp", port)
	}
	if err != nil {
		_ = srv.Close()
		return nil, fmt.Errorf("listening on tailnet %s: %w", port, err)
	}
	return ln, nil
}
