package profiling

import (
	"testing"

	"github.com/grafana/pyroscope-go"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx/fxtest"

	"ecocommunity-gamification/pkg/config"
)

func TestNewConfig(t *testing.T) {
	cfg := &config.Config{AppName: "gamification", AppEnv: "staging"}
	cfg.Pyroscope.Addr = "http://pyroscope:4040"

	pc := NewConfig(cfg)
	require.Equal(t, "gamification", pc.ApplicationName)
	require.Equal(t, "http://pyroscope:4040", pc.ServerAddress)
	require.Contains(t, pc.ProfileTypes, pyroscope.ProfileMutexDuration)
	require.Equal(t, "staging", pc.Tags["env"])
}

func TestRegisterDisabledWithoutAddr(t *testing.T) {
	lc := fxtest.NewLifecycle(t)
	require.NoError(t, Register(lc, &config.Config{}))
	lc.RequireStart().RequireStop()
}
