package mysql

import (
	"context"
	"testing"
	"time"

	"github.com/leapstack-labs/leapkpi/pkg/adapter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildConfig(t *testing.T) {
	tests := []struct {
		name    string
		config  adapter.Config
		addr    string
		timeout time.Duration
		wantErr bool
	}{
		{
			name:   "defaults",
			config: adapter.Config{Database: "ecommerce", Username: "root"},
			addr:   "127.0.0.1:3306",
		},
		{
			name: "host port and timeout",
			config: adapter.Config{
				Host:     "db.internal",
				Port:     3307,
				Database: "ecommerce",
				Username: "kpi",
				Password: "pw",
				Options:  map[string]string{"timeout": "5s"},
			},
			addr:    "db.internal:3307",
			timeout: 5 * time.Second,
		},
		{
			name:    "bad timeout",
			config:  adapter.Config{Options: map[string]string{"timeout": "soon"}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := buildConfig(tt.config)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, time.UTC, c.Loc)
			assert.True(t, c.ParseTime)
			assert.True(t, c.ClientFoundRows)
			assert.Equal(t, tt.addr, c.Addr)
			assert.Equal(t, tt.timeout, c.Timeout)
			assert.Contains(t, c.FormatDSN(), "clientFoundRows=true")
		})
	}
}

func TestAdapter_Basics(t *testing.T) {
	adp := New(nil)
	assert.Equal(t, "mysql", adp.Dialect().Name)
	assert.Equal(t, "DATE_FORMAT(ts, '%Y-%m')", adp.Dialect().Month("ts"))
	assert.ErrorIs(t, adp.Exec(context.Background(), "SELECT 1"), adapter.ErrNotConnected)

	factory, ok := adapter.Get("mysql")
	require.True(t, ok)
	_, ok = factory(nil).(*Adapter)
	assert.True(t, ok)
}
