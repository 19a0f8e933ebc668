package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/thomas-api/internal/models"
)

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.VoteCredited(models.SiteTopGG)
	m.VoteCredited(models.SiteTopGG)
	m.VoteCredited(models.SiteDBLS)
	m.SubscriptionIngested()
	m.SubscriptionActivated("Gold")
	m.SubscriptionsMarkedExpired(3)
	m.SubscriptionsMarkedExpired(0)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.VotesCredited.WithLabelValues("topgg")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.VotesCredited.WithLabelValues("dbls")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SubscriptionsIngested))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SubscriptionsActivated.WithLabelValues("Gold")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.SubscriptionsExpired))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.Len(t, families, 4)
}

func TestNew_DoubleRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	assert.Panics(t, func() { New(reg) })
}
