package http

import (
	"errors"
	"time"

	"github.com/apsdehal/go-logger"
	"github.com/goccy/go-json"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/brianaseka61-max/sautipesa-bridge/pkg/handler"
	"github.com/brianaseka61-max/sautipesa-bridge/pkg/hub"
	"github.com/brianaseka61-max/sautipesa-bridge/pkg/models"
)

type Router struct {
	App     *fiber.App
	Handler *handler.BridgeHandler
	Hub     *hub.Hub
	log     *logger.Logger
}

func NewRouter(bridgeHandler *handler.BridgeHandler, sessionHub *hub.Hub, log *logger.Logger) *Router {
	app := fiber.New(fiber.Config{
		DisableHeaderNormalizing: true,
		JSONEncoder:              json.Marshal,
		JSONDecoder:              json.Unmarshal,
		ReadTimeout:              10 * time.Second,
		WriteTimeout:             10 * time.Second,
		IdleTimeout:              60 * time.Second,
		DisableStartupMessage:    true,
	})

	return &Router{
		App:     app,
		Handler: bridgeHandler,
		Hub:     sessionHub,
		log:     log,
	}
}

func (r *Router) RegisterRoutes() {
	r.App.Get("/", r.Root)
	r.App.Get("/health", r.HealthCheck)

	r.App.Post("/api/business/register", r.RegisterBusiness)
	r.App.Post("/api/mpesa/stkpush", r.StkPush)
	r.App.Post("/api/mpesa/callback/:shortcode", r.MpesaCallback)
	r.App.Get("/api/mpesa/check-payments/:shortcode", r.CheckPayments)

	r.App.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	r.App.Get("/ws", websocket.New(r.LiveSession))

	// Catch-all so misconfigured clients get a diagnosable body instead of
	// fiber's default 404 page.
	r.App.Use(r.NotFound)
}

func (r *Router) Root(c *fiber.Ctx) error {
	return c.SendString("SautiPesa Bridge is Online and Ready")
}

func (r *Router) HealthCheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"message": "SautiPesa Bridge is Awake",
		"stats":   r.Handler.Stats(),
	})
}

func (r *Router) RegisterBusiness(c *fiber.Ctx) error {
	var tenant models.Tenant
	if err := c.BodyParser(&tenant); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"status": "error",
			"error":  "Invalid request body",
		})
	}

	if err := r.Handler.RegisterTenant(c.Context(), tenant); err != nil {
		status := fiber.StatusInternalServerError
		if errors.Is(err, handler.ErrInvalidRequest) {
			status = fiber.StatusBadRequest
		}
		return c.Status(status).JSON(fiber.Map{
			"status": "error",
			"error":  "Registration failed",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"status":    "success",
		"message":   "Registration Successful",
		"shortcode": tenant.Shortcode,
	})
}

// StkPush forwards the gateway's synchronous acknowledgement verbatim. The
// acknowledgement does not mean the payment succeeded; the result arrives
// later on the callback route.
func (r *Router) StkPush(c *fiber.Ctx) error {
	var push models.PushRequest
	if err := c.BodyParser(&push); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	ack, err := r.Handler.InitiatePush(c.Context(), push)
	if err != nil {
		// Internal cause already logged; never leak credentials or
		// gateway detail to the caller.
		status := fiber.StatusInternalServerError
		if errors.Is(err, handler.ErrInvalidRequest) {
			status = fiber.StatusBadRequest
		}
		return c.Status(status).JSON(fiber.Map{
			"error": "STK Push Failed",
		})
	}

	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Status(fiber.StatusOK).Send(ack)
}

// MpesaCallback always answers 200 "OK" regardless of the internal outcome;
// anything else keeps the gateway retrying.
func (r *Router) MpesaCallback(c *fiber.Ctx) error {
	shortcode := c.Params("shortcode")

	var env models.StkCallbackEnvelope
	if err := c.BodyParser(&env); err != nil {
		r.log.WarningF("unreadable callback body for %s: %s", shortcode, err)
		return c.Status(fiber.StatusOK).SendString("OK")
	}

	_ = r.Handler.ProcessCallback(shortcode, env)
	return c.Status(fiber.StatusOK).SendString("OK")
}

func (r *Router) CheckPayments(c *fiber.Ctx) error {
	notice, err := r.Handler.RecentPayment(c.Context(), c.Params("shortcode"))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Polling failed",
		})
	}
	if notice == nil {
		return c.SendStatus(fiber.StatusNoContent)
	}
	return c.JSON(notice)
}

// LiveSession is the read loop for one live connection. The only accepted
// frame is join_room; malformed frames are dropped without killing the
// connection. Disconnect removes the session from its room.
func (r *Router) LiveSession(conn *websocket.Conn) {
	session := hub.NewSession(conn)
	defer r.Hub.Leave(session)

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var join models.JoinMessage
		if err := json.Unmarshal(msg, &join); err != nil {
			r.log.DebugF("dropping malformed ws frame: %s", err)
			continue
		}
		if join.Type == models.JoinRoomType {
			r.Hub.Join(session, join.Shortcode)
		}
	}
}

func (r *Router) NotFound(c *fiber.Ctx) error {
	r.log.WarningF("unknown route requested: %s %s", c.Method(), c.OriginalURL())
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
		"error": "Route not found",
	})
}
