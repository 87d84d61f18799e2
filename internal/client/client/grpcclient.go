// Package client talks to cryptex.v1.CustodyService.
package client

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/dmitrijs2005/cryptexdrive/internal/common"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const serviceName = "cryptex.v1.CustodyService"

// Session is what a successful VerifyOTP returns.
type Session struct {
	Token     string
	ExpiresAt time.Time
	IsAdmin   bool
}

type UploadResult struct {
	Name      string
	RiskScore int
	Analysis  string
	Revoked   bool
}

type Identity struct {
	Username  string
	IsAdmin   bool
	ExpiresAt time.Time
}

type AuditEntry struct {
	Timestamp     time.Time
	Username      string
	Action        string
	Status        string
	SourceAddress string
}

type Stats struct {
	TotalUsers  int64
	TotalFiles  int64
	AvgRisk     float64
	Quarantined int64
	Safe        int64
	Warning     int64
	Critical    int64
}

type GRPCClient struct {
	endpointURL string
	timeout     time.Duration
	conn        *grpc.ClientConn
	accessToken string
}

func withAccessToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	md.Set(common.AuthorizationHeaderName, "Bearer "+token)
	return metadata.NewOutgoingContext(ctx, md)
}

func (c *GRPCClient) accessTokenInterceptor(ctx context.Context, method string, req, reply any,
	cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
	if c.accessToken != "" {
		ctx = withAccessToken(ctx, c.accessToken)
	}
	return invoker(ctx, method, req, reply, cc, opts...)
}

func NewGRPCClient(endpointURL string, timeout time.Duration, opts ...grpc.DialOption) (*GRPCClient, error) {
	c := &GRPCClient{endpointURL: endpointURL, timeout: timeout}

	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(c.accessTokenInterceptor),
	}, opts...)

	conn, err := grpc.NewClient(endpointURL, opts...)
	if err != nil {
		return nil, err
	}
	c.conn = conn
	return c, nil
}

func (c *GRPCClient) Close() error {
	return c.conn.Close()
}

func (c *GRPCClient) LoggedIn() bool { return c.accessToken != "" }

func (c *GRPCClient) call(ctx context.Context, method string, in map[string]any) (map[string]any, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := structpb.NewStruct(in)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, "/"+serviceName+"/"+method, req, out); err != nil {
		return nil, mapError(err)
	}
	return out.AsMap(), nil
}

func mapError(err error) error {
	st, _ := status.FromError(err)
	switch st.Code() {
	case codes.Unauthenticated:
		return ErrUnauthorized
	case codes.PermissionDenied:
		return ErrForbidden
	case codes.Unavailable, codes.DeadlineExceeded:
		return ErrUnavailable
	case codes.ResourceExhausted:
		return ErrRateLimited
	case codes.NotFound:
		return ErrNotFound
	case codes.AlreadyExists:
		return ErrAlreadyExists
	default:
		return fmt.Errorf("rpc error: %w", err)
	}
}

func str(m map[string]any, k string) string {
	s, _ := m[k].(string)
	return s
}

func num(m map[string]any, k string) int64 {
	f, _ := m[k].(float64)
	return int64(f)
}

func boolean(m map[string]any, k string) bool {
	b, _ := m[k].(bool)
	return b
}

func (c *GRPCClient) Register(ctx context.Context, username, password, email string) error {
	_, err := c.call(ctx, "Register", map[string]any{"username": username, "password": password, "email": email})
	return err
}

// Login sends the password; the server answers by mailing an OTP.
func (c *GRPCClient) Login(ctx context.Context, username, password string) error {
	_, err := c.call(ctx, "Login", map[string]any{"username": username, "password": password})
	return err
}

// VerifyOTP completes the login and keeps the token for later calls.
func (c *GRPCClient) VerifyOTP(ctx context.Context, username, code string) (*Session, error) {
	resp, err := c.call(ctx, "VerifyOTP", map[string]any{"username": username, "code": code})
	if err != nil {
		return nil, err
	}
	s := &Session{
		Token:     str(resp, "token"),
		ExpiresAt: time.Unix(num(resp, "expires_at"), 0),
		IsAdmin:   boolean(resp, "is_admin"),
	}
	c.accessToken = s.Token
	return s, nil
}

func (c *GRPCClient) Logout(ctx context.Context) error {
	if !c.LoggedIn() {
		return ErrNotLoggedIn
	}
	_, err := c.call(ctx, "Logout", nil)
	c.accessToken = ""
	return err
}

func (c *GRPCClient) Whoami(ctx context.Context) (*Identity, error) {
	resp, err := c.call(ctx, "Whoami", nil)
	if err != nil {
		return nil, err
	}
	return &Identity{
		Username:  str(resp, "username"),
		IsAdmin:   boolean(resp, "is_admin"),
		ExpiresAt: time.Unix(num(resp, "expires_at"), 0),
	}, nil
}

func (c *GRPCClient) Upload(ctx context.Context, name string, data []byte) (*UploadResult, error) {
	resp, err := c.call(ctx, "Upload", map[string]any{"name": name, "data": base64.StdEncoding.EncodeToString(data)})
	if err != nil {
		return nil, err
	}
	res := &UploadResult{
		Name:      str(resp, "name"),
		RiskScore: int(num(resp, "risk_score")),
		Analysis:  str(resp, "analysis"),
		Revoked:   boolean(resp, "revoked"),
	}
	if res.Revoked {
		c.accessToken = ""
	}
	return res, nil
}

func (c *GRPCClient) Download(ctx context.Context, name string) ([]byte, error) {
	resp, err := c.call(ctx, "Download", map[string]any{"name": name})
	if err != nil {
		return nil, err
	}
	return base64.StdEncoding.DecodeString(str(resp, "data"))
}

func (c *GRPCClient) List(ctx context.Context) ([]string, error) {
	resp, err := c.call(ctx, "ListFiles", nil)
	if err != nil {
		return nil, err
	}
	raw, _ := resp["files"].([]any)
	names := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			names = append(names, s)
		}
	}
	return names, nil
}

func (c *GRPCClient) DeleteAccount(ctx context.Context, password string) error {
	_, err := c.call(ctx, "DeleteAccount", map[string]any{"password": password})
	if err == nil {
		c.accessToken = ""
	}
	return err
}

// AuditLogs fetches the newest audit events; limit 0 leaves the count to the
// server.
func (c *GRPCClient) AuditLogs(ctx context.Context, limit int) ([]AuditEntry, error) {
	resp, err := c.call(ctx, "AuditLogs", map[string]any{"limit": limit})
	if err != nil {
		return nil, err
	}
	raw, _ := resp["logs"].([]any)
	out := make([]AuditEntry, 0, len(raw))
	for _, v := range raw {
		m, ok := v.(map[string]any)
		if !ok {
			continue
		}
		ts, _ := time.Parse(time.RFC3339, str(m, "timestamp"))
		out = append(out, AuditEntry{
			Timestamp:     ts,
			Username:      str(m, "username"),
			Action:        str(m, "action"),
			Status:        str(m, "status"),
			SourceAddress: str(m, "source_address"),
		})
	}
	return out, nil
}

func (c *GRPCClient) Stats(ctx context.Context) (*Stats, error) {
	resp, err := c.call(ctx, "Stats", nil)
	if err != nil {
		return nil, err
	}
	dist, _ := resp["risk_dist"].(map[string]any)
	avg, _ := resp["avg_risk"].(float64)
	return &Stats{
		TotalUsers:  num(resp, "total_users"),
		TotalFiles:  num(resp, "total_files"),
		AvgRisk:     avg,
		Quarantined: num(resp, "quarantined"),
		Safe:        num(dist, "safe"),
		Warning:     num(dist, "warning"),
		Critical:    num(dist, "critical"),
	}, nil
}
