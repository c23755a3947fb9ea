package matchmaking

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"github.com/oggyb/agentmatch/internal/server"
	"github.com/oggyb/agentmatch/internal/service/karma"
)

// Client calls the Matchmaking service with the JSON codec, authenticating
// every call with apiKey.
type Client struct {
	cc     grpc.ClientConnInterface
	apiKey string
}

func NewClient(cc grpc.ClientConnInterface, apiKey string) *Client {
	return &Client{cc: cc, apiKey: apiKey}
}

func invoke[Resp any](c *Client, ctx context.Context, method string, req any) (*Resp, error) {
	ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+c.apiKey)
	out := new(Resp)
	err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, req, out, grpc.CallContentSubtype(server.CodecName))
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Swipe(ctx context.Context, req *SwipeRequest) (*SwipeResponse, error) {
	return invoke[SwipeResponse](c, ctx, "Swipe", req)
}

func (c *Client) EndMatch(ctx context.Context, req *EndMatchRequest) (*EndMatchResponse, error) {
	return invoke[EndMatchResponse](c, ctx, "EndMatch", req)
}

func (c *Client) SendMessage(ctx context.Context, req *SendMessageRequest) (*SendMessageResponse, error) {
	return invoke[SendMessageResponse](c, ctx, "SendMessage", req)
}

func (c *Client) GetKarma(ctx context.Context, req *GetKarmaRequest) (*karma.Breakdown, error) {
	return invoke[karma.Breakdown](c, ctx, "GetKarma", req)
}

func (c *Client) ListLikedYou(ctx context.Context, req *ListLikedYouRequest) (*LikersPage, error) {
	return invoke[LikersPage](c, ctx, "ListLikedYou", req)
}

func (c *Client) ListNewLikedYou(ctx context.Context, req *ListLikedYouRequest) (*LikersPage, error) {
	return invoke[LikersPage](c, ctx, "ListNewLikedYou", req)
}

func (c *Client) CountLikedYou(ctx context.Context) (*CountLikedYouResponse, error) {
	return invoke[CountLikedYouResponse](c, ctx, "CountLikedYou", &CountLikedYouRequest{})
}
