package config

import (
	// Go Internal Packages
	"os"
	"path/filepath"
	"testing"
	"time"

	// Local Packages
	errors "tx-pipeline/errors"

	// External Packages
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsAreValid(t *testing.T) {
	k, err := Load("")
	require.NoError(t, err)
	conf, err := Parse(k)
	require.NoError(t, err)

	assert.Equal(t, "tx-pipeline", conf.Application)
	assert.Equal(t, "memory", conf.Store)
	assert.Equal(t, 30*time.Minute, conf.Redis.LockTTL)
	assert.Equal(t, 5*time.Minute, conf.HTTP.WriteTimeout)

	th, err := conf.Rules.Thresholds()
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(1000).Equal(th.HighAmount))
	assert.Equal(t, 30, th.BurstCount)
	assert.Equal(t, 3, th.MultiCountry)
	assert.Equal(t, 0.5, th.HighDeclineRate)
}

func TestFileAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	content := "store: mongo\nrules:\n  high_amount: \"2500.50\"\n  burst_count: 10\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	t.Setenv("TXP_MONGO__DATABASE", "fraud")
	t.Setenv("TXP_PIPELINE__WORKERS", "8")

	k, err := Load(path)
	require.NoError(t, err)
	conf, err := Parse(k)
	require.NoError(t, err)

	assert.Equal(t, "mongo", conf.Store)
	assert.Equal(t, "fraud", conf.Mongo.Database)
	assert.Equal(t, 8, conf.Pipeline.Workers)
	assert.Equal(t, 10, conf.Rules.BurstCount)
	th, err := conf.Rules.Thresholds()
	require.NoError(t, err)
	assert.Equal(t, "2500.5", th.HighAmount.String())
}

func TestValidateCollectsEveryProblem(t *testing.T) {
	k, err := Load("")
	require.NoError(t, err)
	var conf Config
	require.NoError(t, k.Unmarshal("", &conf))

	conf.Store = "postgres"
	conf.Pipeline.Workers = 0
	conf.Rules.HighAmount = "lots"
	conf.Rules.HighDeclineRate = 1.5

	err = conf.Validate()
	require.Error(t, err)
	assert.Equal(t, errors.Invalid, errors.KindOf(err))
	for _, field := range []string{"store", "pipeline.workers", "rules.high_amount", "rules.high_decline_rate"} {
		assert.Contains(t, err.Error(), field)
	}
}
