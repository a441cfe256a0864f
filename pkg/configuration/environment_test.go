package configuration

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestDatabaseOptions_ConnectionString(t *testing.T) {
	t.Parallel()

	opts := DatabaseOptions{
		Name:     "govern",
		Host:     "db.internal",
		Port:     "5433",
		User:     "svc",
		Password: "secret",
	}
	require.Equal(t,
		"host=db.internal port=5433 user=svc dbname=govern password=secret sslmode=disable",
		opts.ConnectionString(),
	)
}

func TestConfiguration_LogrusLevel(t *testing.T) {
	t.Parallel()

	c := &Configuration{LogLevel: "debug"}
	require.Equal(t, logrus.DebugLevel, c.LogrusLevel())

	c.LogLevel = "nonsense"
	require.Equal(t, logrus.InfoLevel, c.LogrusLevel())
}
