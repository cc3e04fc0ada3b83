// Package control HTTP API управления коммутатором: создание и завершение
// echo вызовов, прогон кадра через вызов, состояние и метрики.
package control

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/arzzra/echo_endpoint/pkg/logging"
	"github.com/arzzra/echo_endpoint/pkg/media"
	"github.com/arzzra/echo_endpoint/pkg/switchcore"
)

// DefaultEchoTimeout ожидание эхо кадра в POST /calls/:uuid/echo
const DefaultEchoTimeout = 2 * time.Second

// Config конфигурация API
type Config struct {
	// Endpoint имя эндпоинта для исходящих вызовов
	Endpoint string

	Logger logging.Logger

	// Gatherer источник метрик для /metrics; nil - /metrics не регистрируется
	Gatherer prometheus.Gatherer

	EchoTimeout time.Duration
}

// Server обработчики API поверх ядра
type Server struct {
	core *switchcore.Core
	cfg  Config
	log  logging.Logger
}

// New создает сервер API
func New(core *switchcore.Core, cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = logging.Nop()
	}
	if cfg.EchoTimeout <= 0 {
		cfg.EchoTimeout = DefaultEchoTimeout
	}
	return &Server{core: core, cfg: cfg, log: cfg.Logger.WithComponent("control")}
}

// Handler gin роутер со всеми маршрутами
func (s *Server) Handler() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(s.requestLogger())
	s.registerRoutes(r)
	return r
}

func (s *Server) registerRoutes(r *gin.Engine) {
	r.GET("/healthz", s.health)
	if s.cfg.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.cfg.Gatherer, promhttp.HandlerOpts{})))
	}

	calls := r.Group("/calls")
	{
		calls.GET("", s.listCalls)
		calls.POST("", s.originate)
		calls.GET("/:uuid/sdp", s.localSDP)
		calls.POST("/:uuid/echo", s.echoFrame)
		calls.POST("/:uuid/kill", s.kill)
		calls.DELETE("/:uuid", s.hangup)
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug(c.Request.Context(), "http запрос",
			logging.String("method", c.Request.Method),
			logging.String("path", c.FullPath()),
			logging.Int("status", c.Writer.Status()),
			logging.Duration("duration", time.Since(start)),
		)
	}
}

// CallView представление вызова в ответах API
type CallView struct {
	UUID        string    `json:"uuid"`
	Endpoint    string    `json:"endpoint"`
	Direction   string    `json:"direction"`
	State       string    `json:"state"`
	Name        string    `json:"name"`
	Destination string    `json:"destination,omitempty"`
	DTMFType    string    `json:"dtmf_type,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func viewOf(sess *switchcore.Session) CallView {
	ch := sess.Channel()
	v := CallView{
		UUID:      sess.UUID(),
		Direction: sess.Direction().String(),
		State:     ch.State().String(),
		Name:      ch.Name(),
		CreatedAt: sess.CreatedAt(),
	}
	if ep := sess.Endpoint(); ep != nil {
		v.Endpoint = ep.Name
	}
	if p := ch.CallerProfile(); p != nil {
		v.Destination = p.DestinationNumber
	}
	if h := sess.MediaHandle(); h != nil {
		v.DTMFType = h.DTMFType().String()
	}
	return v
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"sessions": s.core.SessionCount(),
		"modules":  s.core.Modules(),
	})
}

func (s *Server) listCalls(c *gin.Context) {
	sessions := s.core.Sessions()
	out := make([]CallView, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, viewOf(sess))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	c.JSON(http.StatusOK, gin.H{"calls": out})
}

type originateRequest struct {
	Destination    string            `json:"destination" binding:"required"`
	CallerIDName   string            `json:"caller_id_name"`
	CallerIDNumber string            `json:"caller_id_number"`
	UUID           string            `json:"uuid"`
	RemoteSDP      string            `json:"remote_sdp"`
	Variables      map[string]string `json:"variables"`
}

func (s *Server) originate(c *gin.Context) {
	var req originateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid body: " + err.Error()})
		return
	}

	if req.RemoteSDP != "" {
		if _, err := media.ParseSessionDescription(req.RemoteSDP); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid remote_sdp: " + err.Error()})
			return
		}
	}

	vars := make(map[string]string, len(req.Variables)+2)
	for k, v := range req.Variables {
		vars[k] = v
	}
	if req.UUID != "" {
		vars[switchcore.VarOriginationUUID] = req.UUID
	}
	if req.RemoteSDP != "" {
		vars[switchcore.VarRemoteSDP] = req.RemoteSDP
	}

	sess, err := s.core.Originate(c.Request.Context(), s.cfg.Endpoint, &switchcore.OutgoingRequest{
		Variables: vars,
		Profile: &switchcore.CallerProfile{
			CallerIDName:      req.CallerIDName,
			CallerIDNumber:    req.CallerIDNumber,
			DestinationNumber: req.Destination,
			Source:            "control",
			Variables:         req.Variables,
		},
	})
	if err != nil {
		s.log.LogError(c.Request.Context(), err, "originate через API не выполнен")
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
			"error": err.Error(),
			"cause": switchcore.CauseOf(err).String(),
		})
		return
	}
	c.JSON(http.StatusCreated, viewOf(sess))
}

func (s *Server) session(c *gin.Context) *switchcore.Session {
	sess := s.core.Session(c.Param("uuid"))
	if sess == nil {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "call not found"})
	}
	return sess
}

// localSDP отдает SDP offer медиа handle вызова
func (s *Server) localSDP(c *gin.Context) {
	sess := s.session(c)
	if sess == nil {
		return
	}
	h := sess.MediaHandle()
	if h == nil {
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "call has no media"})
		return
	}
	offer, err := h.LocalDescription()
	if err == nil {
		var raw []byte
		if raw, err = offer.Marshal(); err == nil {
			c.Data(http.StatusOK, "application/sdp", raw)
			return
		}
	}
	c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": err.Error()})
}

type echoRequest struct {
	// Payload base64
	Payload string `json:"payload" binding:"required"`
	Video   bool   `json:"video"`
}

// echoFrame пишет кадр в вызов и возвращает прочитанный обратно
func (s *Server) echoFrame(c *gin.Context) {
	sess := s.session(c)
	if sess == nil {
		return
	}
	var req echoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid body: " + err.Error()})
		return
	}
	payload, err := base64.StdEncoding.DecodeString(req.Payload)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "payload is not base64"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.cfg.EchoTimeout)
	defer cancel()

	frame := &media.Frame{Payload: payload}
	var echoed *media.Frame
	if req.Video {
		frame.Type = media.TypeVideo
		if err = sess.WriteVideoFrame(ctx, frame, media.IOFlagNone, 0); err == nil {
			echoed, err = sess.ReadVideoFrame(ctx, media.IOFlagNone, 0)
		}
	} else {
		if err = sess.WriteFrame(ctx, frame, media.IOFlagNone, 0); err == nil {
			echoed, err = sess.ReadFrame(ctx, media.IOFlagNone, 0)
		}
	}
	if err != nil {
		c.AbortWithStatusJSON(httpStatus(err), gin.H{
			"error":  err.Error(),
			"status": switchcore.StatusOf(err).String(),
		})
		return
	}

	resp := gin.H{
		"payload":      base64.StdEncoding.EncodeToString(echoed.Payload),
		"payload_type": echoed.PayloadType,
		"media":        echoed.Type.String(),
	}
	if echoed.Packet != nil {
		resp["sequence"] = echoed.Packet.SequenceNumber
		resp["timestamp"] = echoed.Packet.Timestamp
	}
	c.JSON(http.StatusOK, resp)
}

type killRequest struct {
	Signal string `json:"signal"`
}

func (s *Server) kill(c *gin.Context) {
	sess := s.session(c)
	if sess == nil {
		return
	}
	// Пустое тело - сигнал kill
	var req killRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid body: " + err.Error()})
		return
	}

	var sig switchcore.Signal
	switch req.Signal {
	case "break":
		sig = switchcore.SignalBreak
	case "kill", "":
		sig = switchcore.SignalKill
	case "xfer":
		sig = switchcore.SignalXfer
	default:
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unknown signal " + req.Signal})
		return
	}

	if err := sess.Kill(sig); err != nil {
		c.AbortWithStatusJSON(httpStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"uuid": sess.UUID(), "signal": sig.String()})
}

func (s *Server) hangup(c *gin.Context) {
	sess := s.session(c)
	if sess == nil {
		return
	}
	sess.Channel().RequestHangup(switchcore.CauseManagerRequest)
	s.core.DestroySession(sess)
	c.Status(http.StatusNoContent)
}

func httpStatus(err error) int {
	switch switchcore.StatusOf(err) {
	case switchcore.StatusNotFound:
		return http.StatusNotFound
	case switchcore.StatusInUse:
		return http.StatusConflict
	case switchcore.StatusTimeout:
		return http.StatusGatewayTimeout
	case switchcore.StatusBreak:
		return http.StatusConflict
	case switchcore.StatusFalse:
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}
