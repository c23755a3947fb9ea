package matchmaking_test

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/oggyb/agentmatch/internal/app"
	"github.com/oggyb/agentmatch/internal/cache"
	"github.com/oggyb/agentmatch/internal/config"
	"github.com/oggyb/agentmatch/internal/db"
	"github.com/oggyb/agentmatch/internal/db/dbtest"
	svcErr "github.com/oggyb/agentmatch/internal/errors"
	"github.com/oggyb/agentmatch/internal/logger"
	"github.com/oggyb/agentmatch/internal/service/matchmaking"
)

type fixture struct {
	db     *gorm.DB
	appCtx *app.AppContext
	engine *matchmaking.Engine
}

func setup(t *testing.T, opts ...matchmaking.Option) *fixture {
	t.Helper()
	gdb := dbtest.Open(t)
	appCtx := app.New(&config.Config{}, gdb, nil, logger.Discard())
	return &fixture{db: gdb, appCtx: appCtx, engine: matchmaking.NewEngine(appCtx, opts...)}
}

func (f *fixture) agents(t *testing.T, n int) []db.Agent {
	t.Helper()
	out := make([]db.Agent, n)
	for i := range out {
		out[i] = dbtest.CreateAgent(t, f.db)
	}
	return out
}

func (f *fixture) like(t *testing.T, from, to db.Agent) *matchmaking.SwipeResult {
	t.Helper()
	res, err := f.engine.RecordSwipe(context.Background(), from.ID, to.ID, db.DirectionLike)
	require.NoError(t, err)
	return res
}

func (f *fixture) activeMatches(t *testing.T, agentID string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(&db.Match{}).
		Where("is_active = ? AND (agent1_id = ? OR agent2_id = ?)", true, agentID, agentID).
		Count(&n).Error)
	return n
}

func TestRecordSwipe_MutualLikeCreatesMatch(t *testing.T) {
	f := setup(t)
	ag := f.agents(t, 2)
	a, b := ag[0], ag[1]

	first := f.like(t, a, b)
	assert.False(t, first.MatchCreated)
	assert.Equal(t, b.Name, first.TargetName)

	second := f.like(t, b, a)
	require.True(t, second.MatchCreated)
	require.NotEmpty(t, second.MatchID)

	var matches []db.Match
	require.NoError(t, f.db.Find(&matches).Error)
	require.Len(t, matches, 1)
	m := matches[0]
	assert.Less(t, m.Agent1ID, m.Agent2ID)
	assert.True(t, m.HasMember(a.ID))
	assert.True(t, m.HasMember(b.ID))
	assert.True(t, m.IsActive)
}

func TestRecordSwipe_PassNeverMatches(t *testing.T) {
	f := setup(t)
	ag := f.agents(t, 2)

	f.like(t, ag[0], ag[1])
	res, err := f.engine.RecordSwipe(context.Background(), ag[1].ID, ag[0].ID, db.DirectionPass)
	require.NoError(t, err)
	assert.False(t, res.MatchCreated)
	assert.Zero(t, f.activeMatches(t, ag[0].ID))
}

func TestRecordSwipe_Validation(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	ag := f.agents(t, 1)

	cases := []struct {
		name    string
		swiper  string
		swiped  string
		dir     db.Direction
		wantErr svcErr.Kind
	}{
		{"bad swiper id", "nope", ag[0].ID, db.DirectionLike, svcErr.KindValidation},
		{"bad swiped id", ag[0].ID, "123", db.DirectionLike, svcErr.KindValidation},
		{"bad direction", ag[0].ID, uuid.NewString(), "maybe", svcErr.KindValidation},
		{"self swipe", ag[0].ID, ag[0].ID, db.DirectionLike, svcErr.KindValidation},
		{"unknown target", ag[0].ID, uuid.NewString(), db.DirectionLike, svcErr.KindNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.engine.RecordSwipe(ctx, tc.swiper, tc.swiped, tc.dir)
			require.Error(t, err)
			assert.Equal(t, tc.wantErr, svcErr.KindOf(err))
		})
	}
}

func TestRecordSwipe_AlreadySwiped(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	ag := f.agents(t, 2)

	f.like(t, ag[0], ag[1])
	_, err := f.engine.RecordSwipe(ctx, ag[0].ID, ag[1].ID, db.DirectionPass)
	assert.ErrorIs(t, err, svcErr.ErrAlreadySwiped)

	var s db.Swipe
	require.NoError(t, f.db.First(&s, "swiper_id = ? AND swiped_id = ?", ag[0].ID, ag[1].ID).Error)
	assert.Equal(t, db.DirectionLike, s.Direction, "first swipe must not be overwritten")
}

func TestRecordSwipe_TakenAgentGetsNoSecondMatch(t *testing.T) {
	f := setup(t)
	ag := f.agents(t, 3)
	a, b, c := ag[0], ag[1], ag[2]

	f.like(t, a, b)
	require.True(t, f.like(t, b, a).MatchCreated)

	// swiping while taken is allowed, matching is not
	f.like(t, a, c)
	res := f.like(t, c, a)
	assert.False(t, res.MatchCreated)
	assert.Equal(t, int64(1), f.activeMatches(t, a.ID))
	assert.Zero(t, f.activeMatches(t, c.ID))
}

func TestEndMatch(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	ag := f.agents(t, 3)
	a, b, outsider := ag[0], ag[1], ag[2]

	f.like(t, a, b)
	matchID := f.like(t, b, a).MatchID

	_, err := f.engine.EndMatch(ctx, a.ID, uuid.NewString(), "")
	assert.Equal(t, svcErr.KindNotFound, svcErr.KindOf(err))

	_, err = f.engine.EndMatch(ctx, outsider.ID, matchID, "")
	assert.ErrorIs(t, err, svcErr.ErrNotParticipant)

	_, err = f.engine.EndMatch(ctx, a.ID, matchID, strings.Repeat("x", matchmaking.MaxEndReasonLen+1))
	assert.Equal(t, svcErr.KindValidation, svcErr.KindOf(err))

	m, err := f.engine.EndMatch(ctx, a.ID, matchID, "grew apart")
	require.NoError(t, err)
	assert.False(t, m.IsActive)
	require.NotNil(t, m.EndReason)
	assert.Equal(t, "grew apart", *m.EndReason)
	require.NotNil(t, m.EndedBy)
	assert.Equal(t, a.ID, *m.EndedBy)
	assert.NotNil(t, m.EndedAt)

	_, err = f.engine.EndMatch(ctx, b.ID, matchID, "")
	assert.ErrorIs(t, err, svcErr.ErrMatchNotActive)
}

func TestEndMatch_DefaultReasonAndRematch(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	ag := f.agents(t, 3)
	a, b, c := ag[0], ag[1], ag[2]

	f.like(t, a, b)
	matchID := f.like(t, b, a).MatchID

	m, err := f.engine.EndMatch(ctx, b.ID, matchID, "   ")
	require.NoError(t, err)
	assert.Equal(t, matchmaking.DefaultEndReason, *m.EndReason)

	// slots are free again immediately
	f.like(t, a, c)
	assert.True(t, f.like(t, c, a).MatchCreated)
}

func TestConcurrent_DuplicateSwipes(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	ag := f.agents(t, 2)

	const n = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		conflicts int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.engine.RecordSwipe(ctx, ag[0].ID, ag[1].ID, db.DirectionLike)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case svcErr.KindOf(err) == svcErr.KindConflict:
				conflicts++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, n-1, conflicts)
}

func TestConcurrent_CompetingReciprocalSwipes(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	ag := f.agents(t, 4)
	hub := ag[0]
	suitors := ag[1:]

	// hub already likes every suitor; each suitor completing the pair competes for hub
	for _, s := range suitors {
		f.like(t, hub, s)
	}

	var g errgroup.Group
	for _, s := range suitors {
		s := s
		g.Go(func() error {
			_, err := f.engine.RecordSwipe(ctx, s.ID, hub.ID, db.DirectionLike)
			return err
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, int64(1), f.activeMatches(t, hub.ID))
	var total int64
	for _, s := range suitors {
		total += f.activeMatches(t, s.ID)
	}
	assert.Equal(t, int64(1), total)
}

func TestConcurrent_DisjointPairsBothMatch(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	ag := f.agents(t, 4)
	a, b, c, d := ag[0], ag[1], ag[2], ag[3]

	f.like(t, a, b)
	f.like(t, c, d)

	results := make([]*matchmaking.SwipeResult, 2)
	var g errgroup.Group
	g.Go(func() error {
		r, err := f.engine.RecordSwipe(ctx, b.ID, a.ID, db.DirectionLike)
		results[0] = r
		return err
	})
	g.Go(func() error {
		r, err := f.engine.RecordSwipe(ctx, d.ID, c.ID, db.DirectionLike)
		results[1] = r
		return err
	})
	require.NoError(t, g.Wait())

	assert.True(t, results[0].MatchCreated)
	assert.True(t, results[1].MatchCreated)
}

func TestConcurrent_EndMatchSingleWinner(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	ag := f.agents(t, 2)
	f.like(t, ag[0], ag[1])
	matchID := f.like(t, ag[1], ag[0]).MatchID

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ended    int
		inactive int
	)
	for i := 0; i < 6; i++ {
		who := ag[i%2]
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.engine.EndMatch(ctx, who.ID, matchID, "")
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				ended++
			} else if assert.ErrorIs(t, err, svcErr.ErrMatchNotActive) {
				inactive++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, ended)
	assert.Equal(t, 5, inactive)
}

func TestLikedYou(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	f := setup(t)
	f.appCtx.RedisCache = cache.NewRedisCacheFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	f.engine = matchmaking.NewEngine(f.appCtx)

	ag := f.agents(t, 4)
	me, fan, crush, snubbed := ag[0], ag[1], ag[2], ag[3]
	f.like(t, fan, me)
	f.like(t, crush, me)
	f.like(t, snubbed, me)
	f.like(t, me, crush)
	_, err := f.engine.RecordSwipe(ctx, me.ID, snubbed.ID, db.DirectionPass)
	require.NoError(t, err)

	all, err := f.engine.ListLikedYou(ctx, me.ID, nil, 0)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{fan.ID, crush.ID}, likerIDs(all))

	fresh, err := f.engine.ListNewLikedYou(ctx, me.ID, nil, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{fan.ID}, likerIDs(fresh))

	n, err := f.engine.CountLikedYou(ctx, me.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.True(t, mr.Exists("likes:count:"+me.ID))

	bad := "%%%"
	_, err = f.engine.ListLikedYou(ctx, me.ID, &bad, 0)
	assert.Equal(t, svcErr.KindValidation, svcErr.KindOf(err))
}

func TestCountLikedYou_TracksPasses(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	f := setup(t)
	f.appCtx.RedisCache = cache.NewRedisCacheFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	f.engine = matchmaking.NewEngine(f.appCtx)

	ag := f.agents(t, 3)
	me, suitor, late := ag[0], ag[1], ag[2]

	f.like(t, suitor, me)
	n, err := f.engine.CountLikedYou(ctx, me.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	// passing on someone who liked me drops them from the count
	_, err = f.engine.RecordSwipe(ctx, me.ID, suitor.ID, db.DirectionPass)
	require.NoError(t, err)
	n, err = f.engine.CountLikedYou(ctx, me.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	// a like from someone already passed on is not counted either
	_, err = f.engine.RecordSwipe(ctx, me.ID, late.ID, db.DirectionPass)
	require.NoError(t, err)
	f.like(t, late, me)
	n, err = f.engine.CountLikedYou(ctx, me.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
	assert.True(t, mr.Exists("likes:count:"+me.ID))
}

func likerIDs(p *matchmaking.LikersPage) []string {
	ids := make([]string, 0, len(p.Likers))
	for _, l := range p.Likers {
		ids = append(ids, l.AgentID)
	}
	return ids
}

func TestSwipeHistoryAndMatches(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	ag := f.agents(t, 3)
	a, b, c := ag[0], ag[1], ag[2]

	f.like(t, a, b)
	_, err := f.engine.RecordSwipe(ctx, a.ID, c.ID, db.DirectionPass)
	require.NoError(t, err)
	f.like(t, b, a)

	h, err := f.engine.SwipeHistory(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, h.Stats.TotalGiven)
	assert.Equal(t, 1, h.Stats.LikesGiven)
	assert.Equal(t, 1, h.Stats.PassesGiven)
	assert.Equal(t, 1, h.Stats.LikesReceived)
	assert.InDelta(t, 0.5, h.Stats.LikeRatio, 1e-9)
	require.Len(t, h.Received, 1)
	assert.Equal(t, b.Name, h.Received[0].AgentName)

	views, err := f.engine.ListMatches(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, views, 1)
	require.NotNil(t, views[0].Partner)
	assert.Equal(t, b.ID, views[0].Partner.ID)
	assert.True(t, views[0].IsActive)
}

func TestParseDirection(t *testing.T) {
	for in, want := range map[string]db.Direction{"right": db.DirectionLike, "LEFT": db.DirectionPass, "like": db.DirectionLike} {
		got, err := matchmaking.ParseDirection(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := matchmaking.ParseDirection("up")
	assert.Equal(t, svcErr.KindValidation, svcErr.KindOf(err))
}
