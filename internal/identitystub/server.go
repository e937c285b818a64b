// Package identitystub is an in-process fake of the remote identity API,
// used by tests and local development. It implements the consumed contract
// (OTP send/verify, profile get/put, projects and investments) over
// in-memory state and deliberately stays a test double: no database, no real
// SMS gateway.
package identitystub

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/exonvc/invest/internal/identity"
	"github.com/exonvc/invest/internal/invest"
)

// Config controls stub behavior.
type Config struct {
	AppName      string
	TokenKey     string
	TokenTTL     time.Duration
	OTPTTL       time.Duration
	OTPPerMinute int
}

type otpEntry struct {
	code    string
	expires time.Time
}

type sendWindow struct {
	count int
	start time.Time
}

// Server is the fake identity API.
type Server struct {
	app      *fiber.App
	cfg      Config
	logger   *slog.Logger
	notifier SMSNotifier

	// now is the clock; tests override it to force OTP and token expiry.
	now func() time.Time

	mu          sync.Mutex
	users       map[string]*identity.User
	otps        map[string]otpEntry
	sends       map[string]sendWindow
	projects    map[int64]*invest.Project
	investments []invest.Investment
	nextUserID  int64
	nextInvID   int64
}

// New builds the stub with a seeded project catalog.
func New(cfg Config, notifier SMSNotifier, logger *slog.Logger) *Server {
	if cfg.AppName == "" {
		cfg.AppName = "exonvc-identity-stub"
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 24 * time.Hour
	}
	if cfg.OTPTTL <= 0 {
		cfg.OTPTTL = 5 * time.Minute
	}
	if cfg.OTPPerMinute <= 0 {
		cfg.OTPPerMinute = 5
	}

	s := &Server{
		cfg:        cfg,
		logger:     logger,
		notifier:   notifier,
		now:        time.Now,
		users:      make(map[string]*identity.User),
		otps:       make(map[string]otpEntry),
		sends:      make(map[string]sendWindow),
		projects:   make(map[int64]*invest.Project),
		nextUserID: 1,
		nextInvID:  1,
	}
	s.seedProjects()

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		ErrorHandler: errorHandler,
	})
	s.routes(app)
	s.app = app
	return s
}

// App exposes the underlying Fiber app for in-process testing.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen starts the stub on addr.
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

// Serve starts the stub on an existing listener; tests bind 127.0.0.1:0.
func (s *Server) Serve(ln net.Listener) error {
	return s.app.Listener(ln)
}

// Shutdown gracefully stops the stub.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	return c.Status(code).JSON(fiber.Map{"detail": err.Error()})
}

func (s *Server) routes(app *fiber.App) {
	app.Get("/api/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Post("/api/auth/send-otp", s.sendOTP)
	app.Post("/api/auth/verify-otp", s.verifyOTP)
	app.Get("/api/user/profile", s.getProfile)
	app.Put("/api/user/profile", s.updateProfile)
	app.Get("/api/projects", s.listProjects)
	app.Get("/api/projects/:id", s.getProject)
	app.Post("/api/investments", s.createInvestment)
	app.Get("/api/user/investments", s.userInvestments)
}

func (s *Server) sendOTP(c *fiber.Ctx) error {
	var req struct {
		Phone string `json:"phone"`
	}
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if len(req.Phone) < 10 {
		return fiber.NewError(http.StatusBadRequest, "شماره تلفن نامعتبر است")
	}

	s.mu.Lock()
	now := s.now()
	window := s.sends[req.Phone]
	if now.Sub(window.start) >= time.Minute {
		window = sendWindow{start: now}
	}
	window.count++
	s.sends[req.Phone] = window
	if window.count > s.cfg.OTPPerMinute {
		s.mu.Unlock()
		return fiber.NewError(http.StatusTooManyRequests, "تعداد درخواست بیش از حد مجاز است")
	}

	code := fmt.Sprintf("%06d", rand.IntN(900000)+100000)
	s.otps[req.Phone] = otpEntry{code: code, expires: now.Add(s.cfg.OTPTTL)}
	if _, ok := s.users[req.Phone]; !ok {
		s.users[req.Phone] = &identity.User{
			ID:        s.nextUserID,
			Phone:     req.Phone,
			IsActive:  true,
			CreatedAt: now.UTC().Format(time.RFC3339),
		}
		s.nextUserID++
	}
	s.mu.Unlock()

	if err := s.notifier.Send(c.UserContext(), req.Phone, code); err != nil {
		s.logger.Warn("otp delivery failed", "phone", req.Phone, "error", err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"success": true, "message": "کد تایید ارسال شد"})
}

func (s *Server) verifyOTP(c *fiber.Ctx) error {
	var req struct {
		Phone string `json:"phone"`
		OTP   string `json:"otp"`
	}
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[req.Phone]
	if !ok {
		return fiber.NewError(http.StatusNotFound, "کاربر پیدا نشد")
	}
	entry, ok := s.otps[req.Phone]
	if !ok || entry.code != req.OTP {
		return fiber.NewError(http.StatusBadRequest, "کد تایید اشتباه است")
	}
	if s.now().After(entry.expires) {
		return fiber.NewError(http.StatusBadRequest, "کد تایید منقضی شده")
	}

	delete(s.otps, req.Phone)
	user.IsVerified = true
	user.LastLogin = s.now().UTC().Format(time.RFC3339)

	token, err := signHS256(map[string]any{
		"user_id": user.ID,
		"phone":   user.Phone,
		"iat":     s.now().Unix(),
		"exp":     s.now().Add(s.cfg.TokenTTL).Unix(),
	}, []byte(s.cfg.TokenKey))
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}

	return c.Status(http.StatusOK).JSON(fiber.Map{
		"access_token": token,
		"token_type":   "bearer",
		"user":         user,
	})
}

// authenticate resolves the bearer token to a user. Callers must hold no
// lock; the user pointer stays valid because users are never deleted.
func (s *Server) authenticate(c *fiber.Ctx) (*identity.User, error) {
	authz := c.Get(fiber.HeaderAuthorization)
	if !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
		return nil, fiber.NewError(http.StatusUnauthorized, "توکن نامعتبر")
	}
	tokenStr := strings.TrimSpace(authz[len("Bearer "):])
	claims, err := parseAndVerifyHS256(tokenStr, []byte(s.cfg.TokenKey))
	if err != nil {
		if errors.Is(err, errExpiredToken) {
			return nil, fiber.NewError(http.StatusUnauthorized, "توکن منقضی شده")
		}
		return nil, fiber.NewError(http.StatusUnauthorized, "توکن نامعتبر")
	}
	phone, _ := claims["phone"].(string)

	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[phone]
	if !ok {
		return nil, fiber.NewError(http.StatusNotFound, "کاربر پیدا نشد")
	}
	return user, nil
}

func (s *Server) getProfile(c *fiber.Ctx) error {
	user, err := s.authenticate(c)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return c.Status(http.StatusOK).JSON(user)
}

func (s *Server) updateProfile(c *fiber.Ctx) error {
	user, err := s.authenticate(c)
	if err != nil {
		return err
	}
	var patch identity.ProfilePatch
	if err := c.BodyParser(&patch); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	*user = patch.Merge(*user)
	user.UpdatedAt = s.now().UTC().Format(time.RFC3339)

	return c.Status(http.StatusOK).JSON(fiber.Map{
		"message": "پروفایل با موفقیت به‌روزرسانی شد",
		"success": true,
		"user":    user,
	})
}

func (s *Server) listProjects(c *fiber.Ctx) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	projects := make([]invest.Project, 0, len(s.projects))
	for _, p := range s.projects {
		projects = append(projects, *p)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"projects": projects, "total": len(projects)})
}

func (s *Server) getProject(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "شناسه نامعتبر")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	project, ok := s.projects[int64(id)]
	if !ok {
		return fiber.NewError(http.StatusNotFound, "پروژه پیدا نشد")
	}
	return c.Status(http.StatusOK).JSON(project)
}

func (s *Server) createInvestment(c *fiber.Ctx) error {
	user, err := s.authenticate(c)
	if err != nil {
		return err
	}
	var req struct {
		ProjectID int64   `json:"project_id"`
		Amount    float64 `json:"amount"`
	}
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	project, ok := s.projects[req.ProjectID]
	if !ok || project.Status != "active" {
		return fiber.NewError(http.StatusNotFound, "پروژه پیدا نشد یا غیرفعال است")
	}
	if req.Amount < project.MinInvestment {
		return fiber.NewError(http.StatusBadRequest, "مبلغ کمتر از حداقل سرمایه‌گذاری است")
	}

	investment := invest.Investment{
		ID:        s.nextInvID,
		ProjectID: project.ID,
		UserID:    user.ID,
		Amount:    req.Amount,
		Status:    "pending",
		CreatedAt: s.now().UTC().Format(time.RFC3339),
	}
	s.nextInvID++
	s.investments = append(s.investments, investment)
	project.RaisedAmount += req.Amount

	return c.Status(http.StatusOK).JSON(investment)
}

func (s *Server) userInvestments(c *fiber.Ctx) error {
	user, err := s.authenticate(c)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	investments := make([]invest.Investment, 0)
	for _, inv := range s.investments {
		if inv.UserID == user.ID {
			investments = append(investments, inv)
		}
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"investments": investments, "total": len(investments)})
}

func (s *Server) seedProjects() {
	seed := []invest.Project{
		{ID: 1, Title: "رستوران اکسون", ShortDescription: "زنجیره رستوران در تهران", Category: "restaurant", Status: "active", TargetAmount: 50_000_000_000, MinInvestment: 100_000_000, ExpectedReturn: 28, IsFeatured: true},
		{ID: 2, Title: "کافه اکسون", ShortDescription: "شعبه جدید کافه", Category: "cafe", Status: "active", TargetAmount: 8_000_000_000, MinInvestment: 50_000_000, ExpectedReturn: 22},
		{ID: 3, Title: "طلای اکسون", ShortDescription: "صندوق طلا", Category: "gold", Status: "funded", TargetAmount: 20_000_000_000, RaisedAmount: 20_000_000_000, MinInvestment: 10_000_000},
	}
	for i := range seed {
		p := seed[i]
		s.projects[p.ID] = &p
	}
}
