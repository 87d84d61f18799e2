package grpc

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/dmitrijs2005/cryptexdrive/internal/common"
	"github.com/dmitrijs2005/cryptexdrive/internal/server/audit"
	"github.com/dmitrijs2005/cryptexdrive/internal/server/auth"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const anonymous = "anonymous"

// stringFields returns the named string fields of req, failing on the first
// one that is missing or empty.
func stringFields(req *structpb.Struct, keys ...string) ([]string, error) {
	out := make([]string, len(keys))
	for i, k := range keys {
		v := req.GetFields()[k].GetStringValue()
		if v == "" {
			return nil, status.Errorf(codes.InvalidArgument, "missing field %q", k)
		}
		out[i] = v
	}
	return out, nil
}

func (s *GRPCServer) reply(ctx context.Context, op string, m map[string]any) (*structpb.Struct, error) {
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, s.toStatus(ctx, op, fmt.Errorf("encoding response: %w", err))
	}
	return out, nil
}

func principal(ctx context.Context) (*auth.Principal, error) {
	p, ok := auth.PrincipalFromContext(ctx)
	if !ok {
		return nil, errUnauthorized
	}
	return p, nil
}

func (s *GRPCServer) Register(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	f, err := stringFields(req, "username", "password", "email")
	if err != nil {
		return nil, err
	}

	if _, err := s.accounts.Register(ctx, f[0], f[1], f[2]); err != nil {
		return nil, s.toStatus(ctx, "register", err)
	}

	s.logger.Info(ctx, "registered", "username", f[0])
	return s.reply(ctx, "register", map[string]any{"username": f[0]})
}

func (s *GRPCServer) Login(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	f, err := stringFields(req, "username", "password")
	if err != nil {
		return nil, err
	}

	if err := s.sessions.BeginLogin(ctx, f[0], f[1]); err != nil {
		return nil, s.toStatus(ctx, "login", err)
	}
	return s.reply(ctx, "login", map[string]any{"status": "otp_sent"})
}

func (s *GRPCServer) VerifyOTP(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	f, err := stringFields(req, "username", "code")
	if err != nil {
		return nil, err
	}

	res, err := s.sessions.CompleteLogin(ctx, f[0], f[1])
	if err != nil {
		return nil, s.toStatus(ctx, "verify_otp", err)
	}
	return s.reply(ctx, "verify_otp", map[string]any{
		"token":      res.Token.Value,
		"expires_at": res.Token.ExpiresAt.Unix(),
		"is_admin":   res.IsAdmin,
	})
}

func (s *GRPCServer) Logout(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.sessions.Logout(ctx, p); err != nil {
		return nil, s.toStatus(ctx, "logout", err)
	}
	return s.reply(ctx, "logout", map[string]any{"status": "logged_out"})
}

func (s *GRPCServer) Whoami(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}
	admin, err := s.accounts.IsAdmin(ctx, p.User)
	if err != nil {
		return nil, s.toStatus(ctx, "whoami", err)
	}
	return s.reply(ctx, "whoami", map[string]any{
		"username":   p.User,
		"is_admin":   admin,
		"expires_at": p.ExpiresAt.Unix(),
		"source":     p.Source.String(),
	})
}

// Upload expects the file body base64-encoded in "data".
func (s *GRPCServer) Upload(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}
	f, err := stringFields(req, "name")
	if err != nil {
		return nil, err
	}
	data, err := base64.StdEncoding.DecodeString(req.GetFields()["data"].GetStringValue())
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "data is not valid base64")
	}

	res, err := s.files.Upload(ctx, p, f[0], data)
	if err != nil {
		return nil, s.toStatus(ctx, "upload", err)
	}
	return s.reply(ctx, "upload", map[string]any{
		"name":       res.Name,
		"risk_score": res.Assessment.Score,
		"analysis":   res.Assessment.Analysis,
		"safe":       res.Assessment.Safe,
		"revoked":    res.Revoked,
	})
}

func (s *GRPCServer) Download(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}
	f, err := stringFields(req, "name")
	if err != nil {
		return nil, err
	}

	data, err := s.files.Download(ctx, p.User, f[0])
	if err != nil {
		return nil, s.toStatus(ctx, "download", err)
	}
	return s.reply(ctx, "download", map[string]any{
		"name": f[0],
		"data": base64.StdEncoding.EncodeToString(data),
	})
}

func (s *GRPCServer) ListFiles(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}

	names, err := s.files.List(ctx, p.User)
	if err != nil {
		return nil, s.toStatus(ctx, "list_files", err)
	}
	files := make([]any, len(names))
	for i, n := range names {
		files[i] = n
	}
	return s.reply(ctx, "list_files", map[string]any{"files": files})
}

func (s *GRPCServer) DeleteAccount(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}
	f, err := stringFields(req, "password")
	if err != nil {
		return nil, err
	}

	if err := s.files.DeleteAccount(ctx, p.User, f[0]); err != nil {
		return nil, s.toStatus(ctx, "delete_account", err)
	}
	// The account is gone; the token must not outlive it.
	if err := s.sessions.Logout(ctx, p); err != nil {
		s.logger.Warn(ctx, "token revocation after account deletion failed", "user", p.User, "error", err)
	}
	return s.reply(ctx, "delete_account", map[string]any{"status": "deleted"})
}

// requireAdmin lets the call through only for holders of the admin flag.
func (s *GRPCServer) requireAdmin(ctx context.Context, op string) (*auth.Principal, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}
	admin, err := s.accounts.IsAdmin(ctx, p.User)
	if err != nil {
		return nil, s.toStatus(ctx, op, err)
	}
	if !admin {
		s.auditor.Record(ctx, p.User, "admin:"+op, audit.StatusFailed)
		return nil, s.toStatus(ctx, op, common.ErrForbidden)
	}
	return p, nil
}

// AuditLogs takes an optional numeric "limit".
func (s *GRPCServer) AuditLogs(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if _, err := s.requireAdmin(ctx, "audit_logs"); err != nil {
		return nil, err
	}

	events, err := s.admin.AuditLogs(ctx, int(req.GetFields()["limit"].GetNumberValue()))
	if err != nil {
		return nil, s.toStatus(ctx, "audit_logs", err)
	}
	logs := make([]any, len(events))
	for i, e := range events {
		logs[i] = map[string]any{
			"timestamp":      e.Timestamp.UTC().Format(time.RFC3339),
			"username":       e.Username,
			"action":         e.Action,
			"status":         e.Status,
			"source_address": e.SourceAddress,
		}
	}
	return s.reply(ctx, "audit_logs", map[string]any{"logs": logs})
}

func (s *GRPCServer) Stats(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	if _, err := s.requireAdmin(ctx, "stats"); err != nil {
		return nil, err
	}

	st, err := s.admin.Stats(ctx)
	if err != nil {
		return nil, s.toStatus(ctx, "stats", err)
	}
	return s.reply(ctx, "stats", map[string]any{
		"total_users": st.TotalUsers,
		"total_files": st.Files.Total,
		"avg_risk":    st.Files.AvgRisk,
		"quarantined": st.Files.Quarantined,
		"risk_dist": map[string]any{
			"safe":     st.Files.Safe,
			"warning":  st.Files.Warning,
			"critical": st.Files.Critical,
		},
	})
}
