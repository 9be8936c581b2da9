package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/ai-evaluator/testtaker/internal/draft"
	"github.com/ai-evaluator/testtaker/internal/metrics"
	"github.com/ai-evaluator/testtaker/internal/middleware"
	"github.com/ai-evaluator/testtaker/internal/model"
	"github.com/ai-evaluator/testtaker/internal/response"
	"github.com/ai-evaluator/testtaker/internal/service"
	"github.com/ai-evaluator/testtaker/internal/session"
	"github.com/ai-evaluator/testtaker/internal/validator"
	ws "github.com/ai-evaluator/testtaker/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// ServiceFactory returns a Test Service client acting with a student's token.
type ServiceFactory func(token string) session.Service

// SessionHandlerConfig carries the tunables of a SessionHandler.
type SessionHandlerConfig struct {
	AllowedOrigins   []string
	TickInterval     time.Duration
	ActionsPerSecond float64
	ActionBurst      int
}

// SessionHandler runs timed test sessions over WebSocket.
type SessionHandler struct {
	services ServiceFactory
	live     *service.LiveSessionService
	drafts   *draft.Store // nil when drafts are disabled
	cfg      SessionHandlerConfig
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// NewSessionHandler creates a new SessionHandler. drafts may be nil.
func NewSessionHandler(services ServiceFactory, live *service.LiveSessionService, drafts *draft.Store, cfg SessionHandlerConfig, log zerolog.Logger) *SessionHandler {
	if cfg.ActionsPerSecond <= 0 {
		cfg.ActionsPerSecond = 20
	}
	if cfg.ActionBurst <= 0 {
		cfg.ActionBurst = 40
	}
	return &SessionHandler{
		services: services,
		live:     live,
		drafts:   drafts,
		cfg:      cfg,
		log:      log.With().Str("component", "session_handler").Logger(),
		upgrader: buildUpgrader(cfg.AllowedOrigins),
	}
}

type sessionURI struct {
	TestID string `uri:"test_id" binding:"required,max=64,excludesall=:/?#"`
}

// TestSessionStream godoc
// WS /ws/v1/tests/:test_id/session?token=...
// Starts the test on the student's behalf and streams the session state.
func (h *SessionHandler) TestSessionStream(c *gin.Context) {
	id, ok := middleware.GetIdentity(c)
	if !ok {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var uri sessionURI
	if err := c.ShouldBindUri(&uri); err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	claim, err := h.live.Acquire(c.Request.Context(), id.UserID, uri.TestID)
	if errors.Is(err, service.ErrSessionActive) {
		response.Fail(c, http.StatusConflict, response.ErrSessionActive)
		return
	}
	if err != nil {
		logger := response.Logger(c)
		logger.Error().Err(err).Msg("Claim live session failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	defer claim.Release()

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	wsLog := h.log.With().
		Str("student_id", id.UserID).
		Str("test_id", uri.TestID).
		Logger()

	metrics.ActiveSessions.Inc()
	defer metrics.ActiveSessions.Dec()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	out := newOutbox(ctx)

	opts := []session.Option{
		session.WithLogger(wsLog),
		session.WithTickInterval(h.cfg.TickInterval),
		session.WithListener(out.listen),
		session.WithListener(metrics.Listener()),
	}
	if h.drafts != nil {
		if d, ok := h.loadDraft(ctx, wsLog, id.UserID, uri.TestID); ok {
			opts = append(opts, d.Resume())
		}
		opts = append(opts, session.WithListener(h.drafts.Listener(id.UserID, uri.TestID)))
	}

	startCtx, startCancel := context.WithTimeout(ctx, 30*time.Second)
	ctrl, err := session.Start(startCtx, h.services(id.Token), uri.TestID, id.UserID, opts...)
	startCancel()
	if err != nil {
		wsLog.Warn().Err(err).Msg("Session start failed")
		ws.WriteError(conn, err.Error())
		return
	}
	defer ctrl.Close()

	if h.drafts != nil {
		h.keepDeadline(ctx, wsLog, ctrl, id.UserID, uri.TestID)
	}

	wsLog.Info().
		Str("attempt_id", ctrl.AttemptID()).
		Int("restored_answers", ctrl.Restored()).
		Msg("Student connected")
	out.sendState(ctrl.Snapshot(), false)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		claim.KeepAlive(gctx, wsLog)
		return nil
	})
	g.Go(func() error {
		// Closing the connection unblocks the reader once writing stops.
		defer conn.Close()
		return out.run(gctx, conn)
	})
	g.Go(func() error {
		defer cancel()
		h.readLoop(gctx, conn, ctrl, out, wsLog)
		return nil
	})
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		wsLog.Debug().Err(err).Msg("Writer stopped")
	}

	wsLog.Info().Str("submission", ctrl.State().String()).Msg("Student disconnected")
}

// loadDraft returns the draft an earlier connection left, if any.
func (h *SessionHandler) loadDraft(ctx context.Context, log zerolog.Logger, studentID, testID string) (draft.Draft, bool) {
	loadCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	d, err := h.drafts.Load(loadCtx, studentID, testID)
	if err != nil {
		log.Error().Err(err).Msg("Draft load failed")
		return draft.Draft{}, false
	}
	return d, !d.Empty()
}

// keepDeadline records the countdown deadline so a reconnect resumes the
// same countdown. A session that already submitted has no draft to keep.
func (h *SessionHandler) keepDeadline(ctx context.Context, log zerolog.Logger, ctrl *session.Controller, studentID, testID string) {
	if ctrl.State() != session.NotSubmitted {
		return
	}
	saveCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := h.drafts.KeepDeadline(saveCtx, studentID, testID, ctrl.Deadline()); err != nil {
		log.Error().Err(err).Msg("Draft deadline save failed")
	}
}

func (h *SessionHandler) readLoop(ctx context.Context, conn *websocket.Conn, ctrl *session.Controller, out *outbox, log zerolog.Logger) {
	limiter := rate.NewLimiter(rate.Limit(h.cfg.ActionsPerSecond), h.cfg.ActionBurst)

	for {
		raw, err := ws.ReadMessage(conn)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Msg("Unexpected close")
			} else {
				log.Debug().Msg("Connection closed")
			}
			return
		}

		var env ws.RequestEnvelope
		if err := ws.Decode(raw, &env); err != nil {
			out.sendError("invalid message")
			continue
		}
		if fields := validator.Check(env); fields != nil {
			metrics.SessionActions.WithLabelValues("unknown", "invalid").Inc()
			out.sendError("unknown action: " + string(env.Action))
			continue
		}
		if !limiter.Allow() {
			metrics.SessionActions.WithLabelValues(string(env.Action), "rate_limited").Inc()
			out.sendError("too many actions, slow down")
			continue
		}

		result := "ok"
		if err := h.dispatch(ctx, env.Action, raw, ctrl, out); err != nil {
			result = "rejected"
			out.sendError(err.Error())
		}
		metrics.SessionActions.WithLabelValues(string(env.Action), result).Inc()
	}
}

// actionError is a client mistake reported back over the socket.
type actionError string

func (e actionError) Error() string { return string(e) }

func (h *SessionHandler) dispatch(ctx context.Context, action ws.Action, raw []byte, ctrl *session.Controller, out *outbox) error {
	switch action {
	case ws.ActionPing:
		out.send(ws.PongResponse{Event: ws.EventPong})

	case ws.ActionAnswer:
		var req ws.AnswerRequest
		if err := decodeAction(raw, &req); err != nil {
			return err
		}
		return recordAnswer(ctrl, *req.Index, req.Answer())

	case ws.ActionGoTo:
		var req ws.GoToRequest
		if err := decodeAction(raw, &req); err != nil {
			return err
		}
		move(ctrl, out, func() int { return ctrl.GoTo(*req.Index) })

	case ws.ActionNext:
		move(ctrl, out, ctrl.Next)

	case ws.ActionPrevious:
		move(ctrl, out, ctrl.Previous)

	case ws.ActionSubmit:
		var req ws.SubmitRequest
		if err := decodeAction(raw, &req); err != nil {
			return err
		}
		h.submit(ctx, ctrl, out, req.Confirm)
	}
	return nil
}

// move runs a navigation. A move that changes the cursor is reported by the
// session's navigate event; a clamped no-op still gets a state reply.
func move(ctrl *session.Controller, out *outbox, nav func() int) {
	before := ctrl.CurrentIndex()
	if nav() == before {
		out.sendState(ctrl.Snapshot(), false)
	}
}

func decodeAction(raw []byte, v interface{}) error {
	if err := ws.Decode(raw, v); err != nil {
		return actionError("invalid message")
	}
	if fields := validator.Check(v); fields != nil {
		return actionError(validator.Summary(fields))
	}
	return nil
}

// recordAnswer checks the answer fits the question before handing it to the
// session, which treats a bad index as a programming error.
func recordAnswer(ctrl *session.Controller, index int, a model.Answer) error {
	if ctrl.State() == session.Submitted {
		return actionError("test already submitted")
	}
	test := ctrl.Test()
	if index >= len(test.Questions) {
		return actionError("question index out of range")
	}

	q := test.Questions[index]
	switch a.Kind() {
	case model.AnswerOption:
		opt, _ := a.OptionIndex()
		if q.Kind() != model.QuestionTypeMCQ {
			return actionError("question expects a written answer")
		}
		if opt >= len(q.Options) {
			return actionError("option out of range")
		}
	case model.AnswerText:
		if q.Kind() != model.QuestionTypeParagraph {
			return actionError("question expects an option")
		}
	}

	ctrl.RecordAnswer(index, a)
	return nil
}

// submit hands the test in. The outcome reaches the client through session
// events, except for a repeat submit after success, which is answered here.
func (h *SessionHandler) submit(ctx context.Context, ctrl *session.Controller, out *outbox, confirm bool) {
	if ctrl.State() == session.Submitted {
		out.sendSubmitted(ctrl.Result(), session.Manual)
		return
	}
	if n := ctrl.UnansweredCount(); n > 0 && !confirm && ctrl.State() != session.Submitting {
		out.send(ws.ConfirmRequiredResponse{Event: ws.EventConfirmRequired, Unanswered: n})
		return
	}

	go func() {
		if _, err := ctrl.Submit(ctx, session.Manual); err != nil && !errors.Is(err, session.ErrDiscarded) && ctx.Err() == nil {
			h.log.Debug().Err(err).Msg("Manual submit failed")
		}
	}()
}
