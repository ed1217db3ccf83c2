package admin

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	server "github.com/charadev96/ratewise/internal/server/domain"
	"github.com/charadev96/ratewise/internal/server/service"
	shared "github.com/charadev96/ratewise/internal/shared/domain"
)

type SessionAdminHandler struct {
	Service *service.AuthService
}

var _ SessionAdminServer = (*SessionAdminHandler)(nil)

func (h *SessionAdminHandler) CountSessions(ctx context.Context, req *wrapperspb.StringValue) (*wrapperspb.Int64Value, error) {
	id, err := parseUserID(req)
	if err != nil {
		return nil, err
	}
	n, err := h.Service.CountSessions(ctx, id)
	if err != nil {
		return nil, toStatus(err)
	}
	return wrapperspb.Int64(int64(n)), nil
}

func (h *SessionAdminHandler) RevokeSessions(ctx context.Context, req *wrapperspb.StringValue) (*wrapperspb.Int64Value, error) {
	id, err := parseUserID(req)
	if err != nil {
		return nil, err
	}
	n, err := h.Service.RevokeSessions(ctx, id)
	if err != nil {
		return nil, toStatus(err)
	}
	return wrapperspb.Int64(int64(n)), nil
}

func (h *SessionAdminHandler) SuspendUser(ctx context.Context, req *wrapperspb.StringValue) (*wrapperspb.Int64Value, error) {
	id, err := parseUserID(req)
	if err != nil {
		return nil, err
	}
	n, err := h.Service.SetAccountStatus(ctx, id, server.StatusSuspended)
	if err != nil {
		return nil, toStatus(err)
	}
	return wrapperspb.Int64(int64(n)), nil
}

func (h *SessionAdminHandler) ActivateUser(ctx context.Context, req *wrapperspb.StringValue) (*emptypb.Empty, error) {
	id, err := parseUserID(req)
	if err != nil {
		return nil, err
	}
	if _, err := h.Service.SetAccountStatus(ctx, id, server.StatusActive); err != nil {
		return nil, toStatus(err)
	}
	return &emptypb.Empty{}, nil
}

func parseUserID(req *wrapperspb.StringValue) (uuid.UUID, error) {
	id, err := uuid.Parse(req.GetValue())
	if err != nil {
		return uuid.Nil, status.Error(codes.InvalidArgument, err.Error())
	}
	return id, nil
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, shared.ErrNotExist):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, shared.ErrInvalidInput):
		return status.Error(codes.InvalidArgument, err.Error())
	}
	return status.Error(codes.Internal, err.Error())
}
