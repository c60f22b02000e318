// Package service 提供账户存储、JWT 鉴权与管理后台服务
package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"ExoGate/internal/core/domain"
	"ExoGate/internal/core/port"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

/* ---------- JWT Handling ---------- */

// Claim 定义 JWT 的载荷结构
type Claim struct {
	ID   string `json:"id"`
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// ErrInvalidToken 表示 JWT 无效、过期或解析失败。
var ErrInvalidToken = errors.New("invalid or expired token")

const tokenIssuer = "ExoGate"

// AuthService 注册、登录与令牌签发
type AuthService struct {
	users  port.UserStore
	secret []byte
	ttl    time.Duration

	setupMu    sync.Mutex
	setupToken string
}

// NewAuthService secret 不能为空；ttl<=0 时默认 24 小时
func NewAuthService(users port.UserStore, secret []byte, ttl time.Duration) (*AuthService, error) {
	if users == nil {
		return nil, fmt.Errorf("AuthService 初始化失败: UserStore 不能为 nil")
	}
	if len(secret) == 0 {
		return nil, fmt.Errorf("AuthService 初始化失败: JWT 密钥不能为空")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &AuthService{users: users, secret: secret, ttl: ttl}, nil
}

// TokenTTL 令牌有效期，也用作 cookie 的 Max-Age
func (s *AuthService) TokenTTL() time.Duration { return s.ttl }

// GenToken 为用户签发一个新的 JWT
func (s *AuthService) GenToken(u *domain.User) (string, error) {
	now := time.Now()
	claims := Claim{
		ID:   u.ID,
		Role: u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("签名 JWT 失败: %w", err)
	}
	return signed, nil
}

// ParseToken 解析并验证 JWT 字符串
func (s *AuthService) ParseToken(tokenString string) (*Claim, error) {
	claims := &Claim{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("非预期的签名方法: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidToken, jwt.ErrTokenExpired)
		}
		return nil, fmt.Errorf("%w (detail: %v)", ErrInvalidToken, err)
	}
	if !token.Valid || claims.ID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

/* ---------- 账户流程 ---------- */

// SignUp 注册普通用户并签发令牌。角色固定为 user，管理员只能通过初始化流程或管理后台产生。
func (s *AuthService) SignUp(ctx context.Context, username, email, password string) (*domain.User, string, error) {
	u, err := s.users.Create(ctx, username, email, password, "", domain.RoleUser)
	if err != nil {
		return nil, "", err
	}
	token, err := s.GenToken(u)
	if err != nil {
		return nil, "", err
	}
	slog.Info("新用户注册", "user_id", u.ID)
	return u, token, nil
}

// SignIn 校验邮箱与密码。用户不存在返回 port.ErrUserNotFound，密码错误返回 port.ErrInvalidCredentials。
func (s *AuthService) SignIn(ctx context.Context, email, password string) (*domain.User, string, error) {
	u, hash, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, "", err
	}
	if hash == "" || bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return nil, "", port.ErrInvalidCredentials
	}
	token, err := s.GenToken(u)
	if err != nil {
		return nil, "", err
	}
	return u, token, nil
}

// ExternalLogin 信任前端传来的第三方身份：按邮箱查找，不存在则以空密码创建
func (s *AuthService) ExternalLogin(ctx context.Context, name, email, avatar string) (*domain.User, string, error) {
	u, _, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, port.ErrUserNotFound) {
		u, err = s.users.Create(ctx, name, email, "", avatar, domain.RoleUser)
		if errors.Is(err, port.ErrUserExists) {
			// 并发创建，重新读取
			u, _, err = s.users.FindByEmail(ctx, email)
		}
	}
	if err != nil {
		return nil, "", err
	}
	token, err := s.GenToken(u)
	if err != nil {
		return nil, "", err
	}
	return u, token, nil
}

/* ---------- 首个管理员初始化 ---------- */

// EnsureSetupToken 系统中没有任何用户时生成一次性初始化令牌，否则返回空串
func (s *AuthService) EnsureSetupToken(ctx context.Context) (string, error) {
	n, err := s.users.Count(ctx)
	if err != nil {
		return "", err
	}
	s.setupMu.Lock()
	defer s.setupMu.Unlock()
	if n > 0 {
		s.setupToken = ""
		return "", nil
	}
	if s.setupToken == "" {
		s.setupToken = uuid.NewString()
	}
	return s.setupToken, nil
}

// SetupAdmin 使用初始化令牌创建第一个管理员。令牌使用后立即作废。
func (s *AuthService) SetupAdmin(ctx context.Context, setupToken, username, email, password string) (*domain.User, string, error) {
	s.setupMu.Lock()
	defer s.setupMu.Unlock()

	if s.setupToken == "" || subtle.ConstantTimeCompare([]byte(s.setupToken), []byte(setupToken)) != 1 {
		return nil, "", fmt.Errorf("初始化令牌无效或已失效: %w", port.ErrPermissionDenied)
	}
	n, err := s.users.Count(ctx)
	if err != nil {
		return nil, "", err
	}
	if n > 0 {
		s.setupToken = ""
		return nil, "", fmt.Errorf("系统已存在用户，初始化已关闭: %w", port.ErrPermissionDenied)
	}

	u, err := s.users.Create(ctx, username, email, password, "", domain.RoleAdmin)
	if err != nil {
		return nil, "", err
	}
	s.setupToken = ""
	token, err := s.GenToken(u)
	if err != nil {
		return nil, "", err
	}
	slog.Info("首个管理员账户已创建", "user_id", u.ID)
	return u, token, nil
}

/* ---------- Context Helpers for Claims ---------- */

type ctxKey int

const claimKey ctxKey = 0

// ContextWithClaim 将已验证的载荷放入 context
func ContextWithClaim(ctx context.Context, c *Claim) context.Context {
	return context.WithValue(ctx, claimKey, c)
}

// ClaimFrom 取出认证中间件放入的载荷，未认证时返回 nil
func ClaimFrom(ctx context.Context) *Claim {
	claims, _ := ctx.Value(claimKey).(*Claim)
	return claims
}
