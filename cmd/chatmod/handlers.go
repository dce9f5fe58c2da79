package main

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mychatmanager/chatmod/automod/model"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	slogecho "github.com/samber/slog-echo"
)

// collectors are registered globally, so only once per process
var metricsMiddleware = sync.OnceValue(func() echo.MiddlewareFunc {
	return echoprometheus.NewMiddleware("chatmod")
})

func (s *Server) setupHTTP(bind string) {
	e := echo.New()

	// httpd
	var (
		httpTimeout        = 1 * time.Minute
		httpMaxHeaderBytes = 1 * (1024 * 1024)
	)

	s.echo = e
	s.httpd = &http.Server{
		Handler:        s,
		Addr:           bind,
		WriteTimeout:   httpTimeout,
		ReadTimeout:    httpTimeout,
		MaxHeaderBytes: httpMaxHeaderBytes,
	}

	e.HideBanner = true
	e.Use(slogecho.New(s.logger))
	e.Use(middleware.Recover())
	e.Use(metricsMiddleware())
	e.Use(middleware.BodyLimit("1M"))
	e.HTTPErrorHandler = s.errorHandler

	e.GET("/_health", s.HandleHealthCheck)

	api := e.Group("/v1")
	if s.adminToken != "" {
		api.Use(middleware.KeyAuthWithConfig(middleware.KeyAuthConfig{
			Validator: func(key string, c echo.Context) (bool, error) {
				return subtle.ConstantTimeCompare([]byte(key), []byte(s.adminToken)) == 1, nil
			},
		}))
	}
	api.POST("/message", s.HandleMessage)
	api.GET("/chats/:chat/policy", s.HandleGetPolicy)
	api.PUT("/chats/:chat/policy", s.HandlePutPolicy)
	api.POST("/chats/:chat/blacklist", s.HandleAddTerm)
	api.DELETE("/chats/:chat/blacklist/:term", s.HandleRemoveTerm)
	api.GET("/chats/:chat/members/:user", s.HandleGetMember)
	api.POST("/chats/:chat/members/:user/reset-warnings", s.HandleResetWarnings)
	api.POST("/chats/:chat/members/:user/unmute", s.HandleConfirmUnmute)
	api.POST("/chats/:chat/members/:user/unban", s.HandleUnban)
}

type GenericStatus struct {
	Daemon  string `json:"daemon"`
	Status  string `json:"status"`
	Message string `json:"msg,omitempty"`
}

func (s *Server) errorHandler(err error, c echo.Context) {
	code := http.StatusInternalServerError
	var errorMessage string
	if he, ok := err.(*echo.HTTPError); ok {
		code = he.Code
		errorMessage = fmt.Sprintf("%s", he.Message)
	}
	if code >= 500 {
		slog.Warn("chatmod-http-internal-error", "err", err)
	}
	c.JSON(code, GenericStatus{Status: "error", Daemon: "chatmod", Message: errorMessage})
}

func (s *Server) HandleHealthCheck(c echo.Context) error {
	return c.JSON(200, GenericStatus{Status: "ok", Daemon: "chatmod"})
}

func pathInt(c echo.Context, name string) (int64, error) {
	v, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("invalid %s id", name))
	}
	return v, nil
}

func member(c echo.Context) (int64, int64, error) {
	chatID, err := pathInt(c, "chat")
	if err != nil {
		return 0, 0, err
	}
	userID, err := pathInt(c, "user")
	if err != nil {
		return 0, 0, err
	}
	return chatID, userID, nil
}

type MessageResponse struct {
	ShortCircuit bool         `json:"shortCircuit"`
	Throttled    bool         `json:"throttled,omitempty"`
	ActionFailed bool         `json:"actionFailed,omitempty"`
	Action       model.Action `json:"action"`
	Reason       string       `json:"reason,omitempty"`
	Deleted      bool         `json:"deleted"`
}

// HandleMessage moderates one inbound message. Command messages may name a rate limited route with the "route" query parameter.
func (s *Server) HandleMessage(c echo.Context) error {
	ctx := c.Request().Context()
	messagesReceived.Inc()

	var msg model.MessageEvent
	if err := c.Bind(&msg); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid message body")
	}
	if msg.ChatID == 0 || msg.UserID == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "chatId and userId are required")
	}

	route := s.routes[strings.ToLower(c.QueryParam("route"))]
	res, err := s.coord.HandleRoute(ctx, route, &msg)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrShuttingDown):
			messagesFailed.WithLabelValues("shutdown").Inc()
			return echo.NewHTTPError(http.StatusServiceUnavailable, "shutting down")
		case errors.Is(err, model.ErrLockTimeout):
			messagesFailed.WithLabelValues("lock_timeout").Inc()
			return echo.NewHTTPError(http.StatusServiceUnavailable, "message skipped, member busy")
		}
		messagesFailed.WithLabelValues("error").Inc()
		return err
	}
	return c.JSON(http.StatusOK, MessageResponse{
		ShortCircuit: res.ShortCircuit,
		Throttled:    res.Throttled,
		ActionFailed: res.ActionFailed,
		Action:       res.Verdict.Action,
		Reason:       res.Verdict.Reason,
		Deleted:      res.Verdict.ShouldDeleteMessage,
	})
}

type PolicyResponse struct {
	Policy    model.ChatPolicy `json:"policy"`
	Blacklist []string         `json:"blacklist"`
	Degraded  bool             `json:"degraded,omitempty"`
}

func (s *Server) HandleGetPolicy(c echo.Context) error {
	chatID, err := pathInt(c, "chat")
	if err != nil {
		return err
	}
	snap, err := s.resolver.Snapshot(c.Request().Context(), chatID)
	degraded := false
	if err != nil {
		if !errors.Is(err, model.ErrConfigUnavailable) {
			return err
		}
		degraded = true
	}
	return c.JSON(http.StatusOK, PolicyResponse{Policy: snap.Policy, Blacklist: snap.Blacklist, Degraded: degraded})
}

func (s *Server) HandlePutPolicy(c echo.Context) error {
	ctx := c.Request().Context()
	chatID, err := pathInt(c, "chat")
	if err != nil {
		return err
	}
	policy := model.DefaultPolicy()
	if err := c.Bind(&policy); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid policy body")
	}
	if err := policy.Validate(); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := s.policies.SavePolicy(ctx, chatID, policy); err != nil {
		return err
	}
	if err := s.coord.PolicyUpdated(ctx, chatID); err != nil {
		return err
	}
	adminRequests.WithLabelValues("put_policy").Inc()
	return c.JSON(http.StatusOK, PolicyResponse{Policy: policy})
}

type TermRequest struct {
	Term string `json:"term"`
}

func (s *Server) HandleAddTerm(c echo.Context) error {
	ctx := c.Request().Context()
	chatID, err := pathInt(c, "chat")
	if err != nil {
		return err
	}
	var req TermRequest
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Term) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "term is required")
	}
	if err := s.policies.AddTerm(ctx, chatID, req.Term); err != nil {
		return err
	}
	if err := s.coord.PolicyUpdated(ctx, chatID); err != nil {
		return err
	}
	adminRequests.WithLabelValues("add_term").Inc()
	return c.JSON(http.StatusOK, GenericStatus{Status: "ok", Daemon: "chatmod"})
}

func (s *Server) HandleRemoveTerm(c echo.Context) error {
	ctx := c.Request().Context()
	chatID, err := pathInt(c, "chat")
	if err != nil {
		return err
	}
	if err := s.policies.RemoveTerm(ctx, chatID, c.Param("term")); err != nil {
		return err
	}
	if err := s.coord.PolicyUpdated(ctx, chatID); err != nil {
		return err
	}
	adminRequests.WithLabelValues("remove_term").Inc()
	return c.JSON(http.StatusOK, GenericStatus{Status: "ok", Daemon: "chatmod"})
}

type MemberResponse struct {
	ChatID  int64 `json:"chatId"`
	UserID  int64 `json:"userId"`
	Record  any   `json:"record"`
	History any   `json:"history,omitempty"`
}

func (s *Server) HandleGetMember(c echo.Context) error {
	ctx := c.Request().Context()
	chatID, userID, err := member(c)
	if err != nil {
		return err
	}
	rec, err := s.coord.Engine.Escalation.Record(ctx, chatID, userID)
	if err != nil {
		return err
	}
	out := MemberResponse{ChatID: chatID, UserID: userID, Record: rec}
	if s.sink != nil {
		hist, err := s.sink.Recent(ctx, chatID, userID, 20)
		if err != nil {
			return err
		}
		out.History = hist
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) HandleResetWarnings(c echo.Context) error {
	chatID, userID, err := member(c)
	if err != nil {
		return err
	}
	if err := s.coord.ResetWarnings(c.Request().Context(), chatID, userID); err != nil {
		return err
	}
	adminRequests.WithLabelValues("reset_warnings").Inc()
	return c.JSON(http.StatusOK, GenericStatus{Status: "ok", Daemon: "chatmod"})
}

func (s *Server) HandleConfirmUnmute(c echo.Context) error {
	chatID, userID, err := member(c)
	if err != nil {
		return err
	}
	if err := s.coord.ConfirmUnmute(c.Request().Context(), chatID, userID); err != nil {
		return err
	}
	adminRequests.WithLabelValues("unmute").Inc()
	return c.JSON(http.StatusOK, GenericStatus{Status: "ok", Daemon: "chatmod"})
}

func (s *Server) HandleUnban(c echo.Context) error {
	chatID, userID, err := member(c)
	if err != nil {
		return err
	}
	if err := s.coord.Unban(c.Request().Context(), chatID, userID); err != nil {
		return err
	}
	adminRequests.WithLabelValues("unban").Inc()
	return c.JSON(http.StatusOK, GenericStatus{Status: "ok", Daemon: "chatmod"})
}
