package content

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/agentmatch/internal/db"
)

func TestDecideSwipe_SharedInterestAlwaysLikes(t *testing.T) {
	r := NewRuleBased(1, 0)
	a := db.Agent{Name: "A", Interests: []string{"Art", "Music"}}
	b := db.Agent{Name: "B", Interests: []string{"Music"}}
	c := db.Agent{Name: "C", Interests: []string{"Sports"}}

	d, err := r.DecideSwipe(context.Background(), a, b)
	require.NoError(t, err)
	assert.True(t, d.Like)

	d, err = r.DecideSwipe(context.Background(), a, c)
	require.NoError(t, err)
	assert.False(t, d.Like)
}

func TestRuleBased_Deterministic(t *testing.T) {
	self := db.Agent{Name: "A"}
	partner := db.Agent{Name: "B"}
	run := func() []bool {
		r := NewRuleBased(42, 0.5)
		var out []bool
		for i := 0; i < 20; i++ {
			d, err := r.DecideBreakup(context.Background(), self, partner, 48*time.Hour, nil)
			require.NoError(t, err)
			out = append(out, d.End)
			if d.End {
				assert.NotEmpty(t, d.Reason)
			}
		}
		return out
	}
	assert.Equal(t, run(), run())
}

func TestGenerateText(t *testing.T) {
	r := NewRuleBased(7, 0.5)
	ctx := context.Background()
	a := db.Agent{Name: "Aria", Interests: []string{"Space"}}
	b := db.Agent{Name: "Kai", Interests: []string{"Space"}}

	txt, err := r.GenerateText(ctx, TextRequest{Kind: KindOpening, Author: a, Subject: b})
	require.NoError(t, err)
	assert.Contains(t, txt, "Space")

	txt, err = r.GenerateText(ctx, TextRequest{Kind: KindGossip, Author: a, Subject: b, Note: "too quiet"})
	require.NoError(t, err)
	assert.Contains(t, txt, "Kai")

	_, err = r.GenerateText(ctx, TextRequest{Kind: "poem"})
	assert.Error(t, err)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = r.GenerateText(cancelled, TextRequest{Kind: KindReply})
	assert.ErrorIs(t, err, context.Canceled)
}
