package isolation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelect(t *testing.T) {
	tests := []struct {
		name string
		cond Conditions
		want Tier
	}{
		{
			name: "plain plan runs in process",
			cond: Conditions{PolicyProfile: "balanced"},
			want: TierInProcess,
		},
		{
			name: "requested isolation wins on any profile",
			cond: Conditions{RequestedProfile: "isolated", PolicyProfile: "relaxed"},
			want: TierIsolated,
		},
		{
			name: "strict isolates embedded source",
			cond: Conditions{PolicyProfile: "strict", HasEmbeddedSource: true},
			want: TierIsolated,
		},
		{
			name: "strict isolates network plans",
			cond: Conditions{PolicyProfile: "strict", RequestsNetwork: true},
			want: TierIsolated,
		},
		{
			name: "balanced allows embedded source in process",
			cond: Conditions{PolicyProfile: "balanced", HasEmbeddedSource: true},
			want: TierInProcess,
		},
		{
			name: "balanced isolates source plus network",
			cond: Conditions{PolicyProfile: "balanced", HasEmbeddedSource: true, RequestsNetwork: true},
			want: TierIsolated,
		},
		{
			name: "relaxed never isolates unless asked",
			cond: Conditions{PolicyProfile: "relaxed", HasEmbeddedSource: true, RequestsNetwork: true},
			want: TierInProcess,
		},
		{
			name: "standard request does not override strict mandate",
			cond: Conditions{RequestedProfile: "standard", PolicyProfile: "strict", HasEmbeddedSource: true},
			want: TierIsolated,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Select(tt.cond))
		})
	}
}

func TestNegotiate(t *testing.T) {
	t.Run("available tier passes through", func(t *testing.T) {
		tier, fellBack, err := Negotiate(TierIsolated, Host{IsolatedAvailable: true})
		require.NoError(t, err)
		assert.Equal(t, TierIsolated, tier)
		assert.False(t, fellBack)
	})

	t.Run("fallback permitted downgrades with flag", func(t *testing.T) {
		tier, fellBack, err := Negotiate(TierIsolated, Host{AllowFallback: true})
		require.NoError(t, err)
		assert.Equal(t, TierInProcess, tier)
		assert.True(t, fellBack)
	})

	t.Run("fallback forbidden refuses", func(t *testing.T) {
		_, _, err := Negotiate(TierIsolated, Host{})
		assert.ErrorIs(t, err, ErrIsolationUnavailable)
	})

	t.Run("in-process never needs negotiation", func(t *testing.T) {
		tier, fellBack, err := Negotiate(TierInProcess, Host{})
		require.NoError(t, err)
		assert.Equal(t, TierInProcess, tier)
		assert.False(t, fellBack)
	})
}

func TestNegotiateMode(t *testing.T) {
	all := []Mode{ModeNone, ModeWorker, ModeIframe, ModeRealm}

	t.Run("supported mode honored", func(t *testing.T) {
		mode, downgraded, err := NegotiateMode(ModeIframe, all, true)
		require.NoError(t, err)
		assert.Equal(t, ModeIframe, mode)
		assert.False(t, downgraded)
	})

	t.Run("fail closed refuses downgrade", func(t *testing.T) {
		_, _, err := NegotiateMode(ModeRealm, []Mode{ModeNone, ModeWorker}, true)
		assert.ErrorIs(t, err, ErrSandboxRefused)
	})

	t.Run("fail open downgrades to strongest weaker mode", func(t *testing.T) {
		mode, downgraded, err := NegotiateMode(ModeRealm, []Mode{ModeNone, ModeWorker}, false)
		require.NoError(t, err)
		assert.Equal(t, ModeWorker, mode)
		assert.True(t, downgraded)
	})

	t.Run("none is the floor", func(t *testing.T) {
		mode, downgraded, err := NegotiateMode(ModeWorker, nil, false)
		require.NoError(t, err)
		assert.Equal(t, ModeNone, mode)
		assert.True(t, downgraded)
	})
}

func TestParseMode(t *testing.T) {
	for _, name := range []string{"none", "worker", "iframe", "realm"} {
		mode, err := ParseMode(name)
		require.NoError(t, err)
		assert.Equal(t, name, mode.String())
	}

	_, err := ParseMode("vault")
	assert.Error(t, err)
}
