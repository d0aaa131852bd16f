package web

import (
	"context"
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/NeRF-or-Nothing/sfm-converter/internal/common"
	"github.com/NeRF-or-Nothing/sfm-converter/internal/log"
	"github.com/NeRF-or-Nothing/sfm-converter/internal/models/queue"
	"github.com/NeRF-or-Nothing/sfm-converter/internal/models/scene"
	"github.com/NeRF-or-Nothing/sfm-converter/internal/services"
)

// JobPublisher hands a submitted scene to the conversion consumer.
type JobPublisher interface {
	PublishConvertJob(ctx context.Context, sceneID primitive.ObjectID) error
}

type WebServer struct {
	app       *fiber.App
	converter *services.ConverterService
	publisher JobPublisher
	logger    *log.Logger
}

func NewWebServer(converter *services.ConverterService, publisher JobPublisher, logger *log.Logger) *WebServer {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})

	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Content-Type",
	}))

	return &WebServer{
		app:       app,
		converter: converter,
		publisher: publisher,
		logger:    logger,
	}
}

func (s *WebServer) Run(addr string) error {
	s.SetupRoutes()
	return s.app.Listen(addr)
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *WebServer) Shutdown() error {
	return s.app.Shutdown()
}

func (s *WebServer) SetupRoutes() {
	s.app.Get("/routes", s.getRoutes)
	s.app.Get("/health", s.healthCheck)
	s.app.Post("/convert", s.convertScene)
	s.app.Get("/scenes/:scene_id", s.getScene)
	s.app.Get("/queue", s.getQueuePosition)
}

func (s *WebServer) convertScene(c *fiber.Ctx) error {
	s.logger.Info("Convert request received")

	var req common.ConvertRequest
	if err := ValidateRequest(c, &req); err != nil {
		s.logger.Info("Convert request validation failed: ", err.Error())
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	// IDs are assigned here, only broker jobs may carry one
	req.ID = ""

	submitted, err := s.converter.Submit(c.UserContext(), &req)
	if err != nil {
		s.logger.Info("Convert request rejected: ", err.Error())
		if services.IsRequestError(err) {
			return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	if err := s.publisher.PublishConvertJob(c.UserContext(), submitted.ID); err != nil {
		s.logger.Errorf("Failed to publish convert job for %s: %v", submitted.ID.Hex(), err)
		if abandonErr := s.converter.Abandon(c.UserContext(), submitted.ID, err.Error()); abandonErr != nil {
			s.logger.Errorf("Failed to abandon scene %s: %v", submitted.ID.Hex(), abandonErr)
		}
		return c.Status(http.StatusServiceUnavailable).JSON(fiber.Map{"error": err.Error(), "id": submitted.ID.Hex()})
	}

	s.logger.Infof("Scene %s queued for conversion", submitted.ID.Hex())
	return c.Status(http.StatusAccepted).JSON(fiber.Map{"id": submitted.ID.Hex(), "message": "Scene queued for conversion. Check back later for updates."})
}

func (s *WebServer) getScene(c *fiber.Ctx) error {
	var req common.GetSceneRequest
	if err := ValidateRequest(c, &req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	sceneID, err := primitive.ObjectIDFromHex(req.SceneID)
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Invalid scene ID"})
	}

	sc, err := s.converter.GetScene(c.UserContext(), sceneID)
	if err != nil {
		if errors.Is(err, scene.ErrSceneNotFound) {
			return c.Status(http.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
		}
		s.logger.Errorf("Failed to get scene %s: %v", sceneID.Hex(), err)
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	return c.Status(http.StatusOK).JSON(fiber.Map{"scene": sc})
}

func (s *WebServer) getQueuePosition(c *fiber.Ctx) error {
	var req common.GetQueuePositionRequest
	if err := ValidateRequest(c, &req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	sceneID, err := primitive.ObjectIDFromHex(req.SceneID)
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Invalid scene ID"})
	}

	position, size, err := s.converter.GetQueuePosition(c.UserContext(), req.QueueID, sceneID)
	if err != nil {
		switch {
		case errors.Is(err, queue.ErrIDNotFoundInQueue):
			return c.Status(http.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
		case errors.Is(err, queue.ErrInvalidQueueID):
			return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		default:
			return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		}
	}

	return c.Status(http.StatusOK).JSON(fiber.Map{"position": position, "size": size})
}

func (s *WebServer) getRoutes(c *fiber.Ctx) error {
	s.logger.Info("Get routes request received")
	return c.Status(http.StatusOK).JSON(s.app.GetRoutes(true))
}

func (s *WebServer) healthCheck(c *fiber.Ctx) error {
	return c.SendString("OK")
}
