package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidator_Validate(t *testing.T) {
	validator := NewValidator()

	validServer := ServerDetails{
		Name:           "mock-server",
		Port:           3000,
		HandlerTimeout: "5s",
		MatchPriority:  "insertion",
		Logging:        LoggingConf{Enabled: true, Level: "info", Format: "console"},
	}
	validWatch := WatchConf{Paths: []string{"./mock"}, Include: []string{"**/*.{yaml,json}"}}

	tests := []struct {
		name    string
		cfg     *ServerConfig
		wantErr bool
	}{
		{
			name:    "Valid Config",
			cfg:     &ServerConfig{Version: "1", Server: validServer, Watch: validWatch},
			wantErr: false,
		},
		{
			name:    "Missing Watch Paths",
			cfg:     &ServerConfig{Version: "1", Server: validServer},
			wantErr: true,
		},
		{
			name: "Invalid Match Priority",
			cfg: &ServerConfig{
				Version: "1",
				Server:  ServerDetails{Name: "mock-server", Port: 3000, MatchPriority: "random"},
				Watch:   validWatch,
			},
			wantErr: true,
		},
		{
			name: "Invalid Duration",
			cfg: &ServerConfig{
				Version: "1",
				Server:  ServerDetails{Name: "mock-server", Port: 3000, HandlerTimeout: "cinco"},
				Watch:   validWatch,
			},
			wantErr: true,
		},
		{
			name: "Invalid Glob",
			cfg: &ServerConfig{
				Version: "1",
				Server:  validServer,
				Watch:   WatchConf{Paths: []string{"./mock"}, Include: []string{"[a-"}},
			},
			wantErr: true,
		},
		{
			name: "Proxy Without Host",
			cfg: &ServerConfig{
				Version:    "1",
				Server:     validServer,
				Watch:      validWatch,
				SchemaMock: SchemaMockConf{Proxy: ProxyConf{ProjectID: 12, PathRewrite: "^/api/"}},
			},
			wantErr: true,
		},
		{
			name: "Redis Cache Without Addr",
			cfg: &ServerConfig{
				Version:    "1",
				Server:     validServer,
				Watch:      validWatch,
				SchemaMock: SchemaMockConf{Cache: CacheConf{Type: "redis"}},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validator.Validate(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestServerDetails_Defaults(t *testing.T) {
	s := ServerDetails{}
	assert.Equal(t, DefaultHandlerTimeout, s.GetHandlerTimeout())
	assert.Equal(t, DefaultUploadsDir, s.GetUploadsDir())

	s = ServerDetails{HandlerTimeout: "250ms", UploadsDir: "/tmp/up"}
	assert.Equal(t, "250ms", s.GetHandlerTimeout().String())
	assert.Equal(t, "/tmp/up", s.GetUploadsDir())
}
