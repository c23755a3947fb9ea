package matchmaking

import (
	"context"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"github.com/oggyb/agentmatch/internal/db"
	svcErr "github.com/oggyb/agentmatch/internal/errors"
	"github.com/oggyb/agentmatch/internal/ratelimit"
	"github.com/oggyb/agentmatch/internal/service/agents"
	"github.com/oggyb/agentmatch/internal/service/karma"
	"github.com/oggyb/agentmatch/internal/service/messaging"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "agentmatch.v1.Matchmaking"

type SwipeRequest struct {
	SwipedID  string `json:"swiped_id"`
	Direction string `json:"direction"`
}

type SwipeResponse struct {
	IsMatch bool   `json:"is_match"`
	MatchID string `json:"match_id,omitempty"`
}

type EndMatchRequest struct {
	MatchID string `json:"match_id"`
	Reason  string `json:"reason,omitempty"`
}

type EndMatchResponse struct {
	MatchID   string    `json:"match_id"`
	EndedAt   time.Time `json:"ended_at"`
	EndReason string    `json:"end_reason"`
}

type SendMessageRequest struct {
	MatchID string `json:"match_id"`
	Content string `json:"content"`
}

type SendMessageResponse struct {
	MessageID string    `json:"message_id"`
	CreatedAt time.Time `json:"created_at"`
}

type GetKarmaRequest struct {
	AgentID string `json:"agent_id"`
}

type ListLikedYouRequest struct {
	PaginationToken *string `json:"pagination_token,omitempty"`
	Limit           int     `json:"limit,omitempty"`
}

type CountLikedYouRequest struct{}

type CountLikedYouResponse struct {
	Count int64 `json:"count"`
}

// MatchmakingServer is the gRPC surface of the engine.
type MatchmakingServer interface {
	Swipe(context.Context, *SwipeRequest) (*SwipeResponse, error)
	EndMatch(context.Context, *EndMatchRequest) (*EndMatchResponse, error)
	SendMessage(context.Context, *SendMessageRequest) (*SendMessageResponse, error)
	GetKarma(context.Context, *GetKarmaRequest) (*karma.Breakdown, error)
	ListLikedYou(context.Context, *ListLikedYouRequest) (*LikersPage, error)
	ListNewLikedYou(context.Context, *ListLikedYouRequest) (*LikersPage, error)
	CountLikedYou(context.Context, *CountLikedYouRequest) (*CountLikedYouResponse, error)
}

// GRPCService implements MatchmakingServer. Callers authenticate with their
// API key in the "authorization" metadata.
type GRPCService struct {
	engine    *Engine
	agents    *agents.Service
	messaging *messaging.Service
	karma     *karma.Service
	limiter   *ratelimit.Limiter // nil disables limits
}

func NewGRPCService(engine *Engine, ag *agents.Service, msgs *messaging.Service, k *karma.Service, limiter *ratelimit.Limiter) *GRPCService {
	return &GRPCService{engine: engine, agents: ag, messaging: msgs, karma: k, limiter: limiter}
}

func (s *GRPCService) caller(ctx context.Context) (*db.Agent, error) {
	md, _ := metadata.FromIncomingContext(ctx)
	vals := md.Get("authorization")
	if len(vals) == 0 || strings.TrimSpace(vals[0]) == "" {
		return nil, svcErr.Unauthorized("missing authorization metadata")
	}
	return s.agents.Authenticate(ctx, vals[0])
}

func (s *GRPCService) limit(ctx context.Context, action, agentID string) error {
	if s.limiter == nil {
		return nil
	}
	if res := s.limiter.Check(ctx, action, agentID); !res.Allowed {
		return svcErr.RateLimited(res.RetryAfter)
	}
	return nil
}

func (s *GRPCService) Swipe(ctx context.Context, req *SwipeRequest) (*SwipeResponse, error) {
	me, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	dir, err := ParseDirection(req.Direction)
	if err != nil {
		return nil, err
	}
	if err := s.limit(ctx, ratelimit.ActionSwipe, me.ID); err != nil {
		return nil, err
	}
	res, err := s.engine.RecordSwipe(ctx, me.ID, req.SwipedID, dir)
	if err != nil {
		return nil, err
	}
	return &SwipeResponse{IsMatch: res.MatchCreated, MatchID: res.MatchID}, nil
}

func (s *GRPCService) EndMatch(ctx context.Context, req *EndMatchRequest) (*EndMatchResponse, error) {
	me, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.limit(ctx, ratelimit.ActionAPIGeneral, me.ID); err != nil {
		return nil, err
	}
	m, err := s.engine.EndMatch(ctx, me.ID, req.MatchID, req.Reason)
	if err != nil {
		return nil, err
	}
	resp := &EndMatchResponse{MatchID: m.ID}
	if m.EndedAt != nil {
		resp.EndedAt = *m.EndedAt
	}
	if m.EndReason != nil {
		resp.EndReason = *m.EndReason
	}
	return resp, nil
}

func (s *GRPCService) SendMessage(ctx context.Context, req *SendMessageRequest) (*SendMessageResponse, error) {
	me, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.limit(ctx, ratelimit.ActionMessage, me.ID); err != nil {
		return nil, err
	}
	msg, err := s.messaging.Send(ctx, req.MatchID, me.ID, req.Content)
	if err != nil {
		return nil, err
	}
	return &SendMessageResponse{MessageID: msg.ID, CreatedAt: msg.CreatedAt}, nil
}

// GetKarma defaults to the caller when agent_id is empty.
func (s *GRPCService) GetKarma(ctx context.Context, req *GetKarmaRequest) (*karma.Breakdown, error) {
	me, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	id := req.AgentID
	if id == "" {
		id = me.ID
	}
	return s.karma.Calculate(ctx, id)
}

func (s *GRPCService) ListLikedYou(ctx context.Context, req *ListLikedYouRequest) (*LikersPage, error) {
	me, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	return s.engine.ListLikedYou(ctx, me.ID, req.PaginationToken, req.Limit)
}

func (s *GRPCService) ListNewLikedYou(ctx context.Context, req *ListLikedYouRequest) (*LikersPage, error) {
	me, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	return s.engine.ListNewLikedYou(ctx, me.ID, req.PaginationToken, req.Limit)
}

func (s *GRPCService) CountLikedYou(ctx context.Context, _ *CountLikedYouRequest) (*CountLikedYouResponse, error) {
	me, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	n, err := s.engine.CountLikedYou(ctx, me.ID)
	if err != nil {
		return nil, err
	}
	return &CountLikedYouResponse{Count: n}, nil
}

func unary[Req, Resp any](name string, call func(MatchmakingServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(MatchmakingServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + name}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(srv.(MatchmakingServer), ctx, req.(*Req))
			})
		},
	}
}

// ServiceDesc describes the Matchmaking service. Messages are JSON encoded;
// clients select the "json" content-subtype.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*MatchmakingServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("Swipe", MatchmakingServer.Swipe),
		unary("EndMatch", MatchmakingServer.EndMatch),
		unary("SendMessage", MatchmakingServer.SendMessage),
		unary("GetKarma", MatchmakingServer.GetKarma),
		unary("ListLikedYou", MatchmakingServer.ListLikedYou),
		unary("ListNewLikedYou", MatchmakingServer.ListNewLikedYou),
		unary("CountLikedYou", MatchmakingServer.CountLikedYou),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "agentmatch/v1/matchmaking",
}
