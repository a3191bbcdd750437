// ABOUTME: Tests for tailnet node settings resolution and status reporting
// ABOUTME: Uses a fake environment so no node is ever started

package gateway

import (
	"errors"
	"net/netip"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"tailscale.com/ipn/ipnstate"

	"github.com/2389/ubwiyunge/internal/config"
)

func fakeEnv(vars map[string]string, home string, homeErr error) nodeEnv {
	return nodeEnv{
		getenv:  func(k string) string { return vars[k] },
		homeDir: func() (string, error) { return home, homeErr },
	}
}

func TestNodeEnv_StateDir(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.TailscaleConfig
		home    string
		homeErr error
		want    string
		wantErr bool
	}{
		{
			name: "configured wins",
			cfg:  config.TailscaleConfig{Hostname: "ubwiyunge", StateDir: "/var/lib/ubwiyunge/ts"},
			home: "/home/aline",
			want: "/var/lib/ubwiyunge/ts",
		},
		{
			name: "per hostname under home",
			cfg:  config.TailscaleConfig{Hostname: "ubwiyunge-kigali"},
			home: "/home/aline",
			want: filepath.Join("/home/aline", ".local", "share", "ubwiyunge", "tailscale", "ubwiyunge-kigali"),
		},
		{
			name:    "no home directory",
			cfg:     config.TailscaleConfig{Hostname: "ubwiyunge"},
			homeErr: errors.New("$HOME is not defined"),
			wantErr: true,
		},
		{
			name:    "configured needs no home",
			cfg:     config.TailscaleConfig{Hostname: "ubwiyunge", StateDir: "/srv/ts"},
			homeErr: errors.New("$HOME is not defined"),
			want:    "/srv/ts",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := fakeEnv(nil, tt.home, tt.homeErr).stateDir(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNodeEnv_AuthKey(t *testing.T) {
	tests := []struct {
		name    string
		cfg     string
		env     map[string]string
		want    string
		wantErr error
	}{
		{name: "from config", cfg: "tskey-config", env: map[string]string{authKeyEnv: "tskey-env"}, want: "tskey-config"},
		{name: "from environment", env: map[string]string{authKeyEnv: "tskey-env"}, want: "tskey-env"},
		{name: "missing", env: map[string]string{}, wantErr: errNoAuthKey},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := fakeEnv(tt.env, "/home/aline", nil).authKey(config.TailscaleConfig{AuthKey: tt.cfg})
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNodeEnv_Node(t *testing.T) {
	env := fakeEnv(map[string]string{authKeyEnv: "tskey-env"}, "/home/aline", nil)

	srv, err := env.node(config.TailscaleConfig{Hostname: "ubwiyunge", Ephemeral: true})
	require.NoError(t, err)
	assert.Equal(t, "ubwiyunge", srv.Hostname)
	assert.Equal(t, "tskey-env", srv.AuthKey)
	assert.True(t, srv.Ephemeral)
	assert.Equal(t, filepath.Join("/home/aline", ".local", "share", "ubwiyunge", "tailscale", "ubwiyunge"), srv.Dir)

	_, err = fakeEnv(nil, "/home/aline", nil).node(config.TailscaleConfig{Hostname: "ubwiyunge"})
	assert.ErrorIs(t, err, errNoAuthKey)
}

func TestProcessEnv_ReadsAuthKeyVariable(t *testing.T) {
	t.Setenv(authKeyEnv, "tskey-process")
	got, err := processEnv().authKey(config.TailscaleConfig{})
	require.NoError(t, err)
	assert.Equal(t, "tskey-process", got)
}

func TestTailnetPort(t *testing.T) {
	assert.Equal(t, ":443", tailnetPort(true))
	assert.Equal(t, ":80", tailnetPort(false))
}

func TestNodeAddress(t *testing.T) {
	tests := []struct {
		name    string
		status  *ipnstate.Status
		wantIP  string
		wantDNS string
	}{
		{name: "nil status"},
		{name: "not yet assigned", status: &ipnstate.Status{}},
		{
			name: "up",
			status: &ipnstate.Status{
				TailscaleIPs: []netip.Addr{netip.MustParseAddr("100.64.0.7"), netip.MustParseAddr("fd7a:115c:a1e0::7")},
				Self:         &ipnstate.PeerStatus{DNSName: "ubwiyunge.tail1234.ts.net."},
			},
			wantIP:  "100.64.0.7",
			wantDNS: "ubwiyunge.tail1234.ts.net.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ip, dns := nodeAddress(tt.status)
			assert.Equal(t, tt.wantIP, ip)
			assert.Equal(t, tt.wantDNS, dns)
		})
	}
}
