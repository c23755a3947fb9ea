package house_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
	"gorm.io/gorm"

	"github.com/oggyb/agentmatch/internal/app"
	"github.com/oggyb/agentmatch/internal/config"
	"github.com/oggyb/agentmatch/internal/content"
	"github.com/oggyb/agentmatch/internal/db"
	"github.com/oggyb/agentmatch/internal/db/dbtest"
	"github.com/oggyb/agentmatch/internal/house"
	"github.com/oggyb/agentmatch/internal/logger"
	"github.com/oggyb/agentmatch/internal/service/discover"
	"github.com/oggyb/agentmatch/internal/service/matchmaking"
	"github.com/oggyb/agentmatch/internal/service/messaging"
)

type eagerPort struct {
	swipeErr error
}

func (p eagerPort) DecideSwipe(context.Context, db.Agent, db.Agent) (content.SwipeDecision, error) {
	if p.swipeErr != nil {
		return content.SwipeDecision{}, p.swipeErr
	}
	return content.SwipeDecision{Like: true}, nil
}

func (eagerPort) DecideBreakup(context.Context, db.Agent, db.Agent, time.Duration, []content.Line) (content.BreakupDecision, error) {
	return content.BreakupDecision{}, nil
}

func (eagerPort) GenerateText(_ context.Context, req content.TextRequest) (string, error) {
	return string(req.Kind) + " to " + req.Subject.Name, nil
}

type fixture struct {
	db       *gorm.DB
	activity *house.Activity
	msgs     *messaging.Service
	engine   *matchmaking.Engine
}

func setup(t *testing.T, port content.Port) *fixture {
	t.Helper()
	gdb := dbtest.Open(t)
	appCtx := app.New(&config.Config{}, gdb, nil, logger.Discard())
	engine := matchmaking.NewEngine(appCtx)
	msgs := messaging.NewService(appCtx)
	act := house.NewActivity(appCtx, engine, msgs, discover.NewService(appCtx, nil), port,
		house.WithPace(rate.NewLimiter(rate.Inf, 1)))
	return &fixture{db: gdb, activity: act, msgs: msgs, engine: engine}
}

func createdAt(offset time.Duration) func(*db.Agent) {
	return func(a *db.Agent) { a.CreatedAt = time.Now().UTC().Add(-time.Hour + offset) }
}

func TestRun_SwipesMatchesAndOpens(t *testing.T) {
	ctx := context.Background()
	f := setup(t, eagerPort{})

	h1 := dbtest.CreateAgent(t, f.db, dbtest.House, createdAt(0))
	h2 := dbtest.CreateAgent(t, f.db, dbtest.House, createdAt(time.Second))
	u := dbtest.CreateAgent(t, f.db, createdAt(2*time.Second))
	_, err := f.engine.RecordSwipe(ctx, u.ID, h1.ID, db.DirectionLike)
	require.NoError(t, err)

	report, err := f.activity.Run(ctx)
	require.NoError(t, err)
	require.Len(t, report.Results, 2)
	assert.Equal(t, h1.ID, report.Results[0].AgentID)
	assert.Equal(t, h2.ID, report.Results[1].AgentID)
	assert.Equal(t, 4, report.TotalSwipes)
	assert.Equal(t, 1, report.TotalOpeningMessages)
	assert.Zero(t, report.TotalMessagesResponded)
	assert.Empty(t, report.Errors)

	var matched []string
	for _, s := range report.Results[0].Swipes {
		if s.Matched {
			matched = append(matched, s.TargetID)
		}
	}
	assert.Equal(t, []string{u.ID}, matched)
	for _, s := range report.Results[1].Swipes {
		assert.False(t, s.Matched, "h1 is taken, h2 must not match")
	}

	var msgs []db.Message
	require.NoError(t, f.db.Find(&msgs).Error)
	require.Len(t, msgs, 1)
	assert.Equal(t, h1.ID, msgs[0].SenderID)
	assert.Equal(t, "opening to "+u.Name, msgs[0].Content)
}

func TestRun_RepliesOnlyWhenPartnerSpokeLast(t *testing.T) {
	ctx := context.Background()
	f := setup(t, eagerPort{})

	h := dbtest.CreateAgent(t, f.db, dbtest.House)
	u := dbtest.CreateAgent(t, f.db)
	_, err := f.engine.RecordSwipe(ctx, u.ID, h.ID, db.DirectionLike)
	require.NoError(t, err)

	first, err := f.activity.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, first.TotalOpeningMessages)

	// house agent spoke last: nothing to say
	quiet, err := f.activity.Run(ctx)
	require.NoError(t, err)
	assert.Zero(t, quiet.TotalOpeningMessages+quiet.TotalMessagesResponded)

	views, err := f.engine.ListMatches(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, views, 1)
	_, err = f.msgs.Send(ctx, views[0].ID, u.ID, "tell me more")
	require.NoError(t, err)

	reply, err := f.activity.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, reply.TotalMessagesResponded)
}

func TestRun_CollectsPortErrors(t *testing.T) {
	ctx := context.Background()
	f := setup(t, eagerPort{swipeErr: errors.New("model offline")})

	h := dbtest.CreateAgent(t, f.db, dbtest.House)
	dbtest.CreateAgent(t, f.db)
	dbtest.CreateAgent(t, f.db)

	report, err := f.activity.Run(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.TotalSwipes)
	require.Len(t, report.Errors, 2)
	assert.Contains(t, report.Errors[0], "["+h.Name+"]")
	assert.Contains(t, report.Errors[0], "model offline")
}

func TestRun_NoHouseAgents(t *testing.T) {
	f := setup(t, eagerPort{})
	dbtest.CreateAgent(t, f.db)

	report, err := f.activity.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, report.Results)
}
