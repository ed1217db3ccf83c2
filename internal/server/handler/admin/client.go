package admin

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Client calls the admin service. The admin listener is meant to be bound
// to a private interface, so the connection is not encrypted.
type Client struct {
	conn *grpc.ClientConn
}

func Dial(addr string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to admin api: %w", err)
	}
	return &Client{conn: conn}, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) Conn() *grpc.ClientConn {
	return c.conn
}

func (c *Client) CountSessions(ctx context.Context, userID string) (int64, error) {
	return c.invokeCount(ctx, methodCountSessions, userID)
}

func (c *Client) RevokeSessions(ctx context.Context, userID string) (int64, error) {
	return c.invokeCount(ctx, methodRevokeSessions, userID)
}

func (c *Client) SuspendUser(ctx context.Context, userID string) (int64, error) {
	return c.invokeCount(ctx, methodSuspendUser, userID)
}

func (c *Client) ActivateUser(ctx context.Context, userID string) error {
	out := new(emptypb.Empty)
	return c.conn.Invoke(ctx, fullMethod(methodActivateUser), wrapperspb.String(userID), out)
}

func (c *Client) invokeCount(ctx context.Context, method, userID string) (int64, error) {
	out := new(wrapperspb.Int64Value)
	if err := c.conn.Invoke(ctx, fullMethod(method), wrapperspb.String(userID), out); err != nil {
		return 0, err
	}
	return out.GetValue(), nil
}
