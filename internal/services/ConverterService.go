// This file contains the ConverterService. It turns a ConvertRequest into a Scene record, and runs the conversion of a
// recorded scene: cameras.txt + images.txt + images directory -> transforms.json.
//
// Only one conversion runs at a time. Queue membership is used for progress reporting only; the broker decides order.

package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/afero"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/NeRF-or-Nothing/sfm-converter/internal/common"
	"github.com/NeRF-or-Nothing/sfm-converter/internal/log"
	"github.com/NeRF-or-Nothing/sfm-converter/internal/models/queue"
	"github.com/NeRF-or-Nothing/sfm-converter/internal/models/scene"
	"github.com/NeRF-or-Nothing/sfm-converter/internal/ngp"
)

// Default locations inside a scene directory.
const (
	DefaultModelDir   = "sparse/0"
	DefaultImageDir   = "images"
	DefaultOutputPath = ngp.TransformsFile
)

var validate = validator.New()

var (
	// ErrInvalidRequest is returned when a ConvertRequest fails validation.
	ErrInvalidRequest = errors.New("invalid conversion request")
	// ErrPathOutsideDataDir is returned when a request points outside the service data directory.
	ErrPathOutsideDataDir = errors.New("path is outside the data directory")
	// ErrSceneDirNotFound is returned when the scene directory of a request does not exist.
	ErrSceneDirNotFound = errors.New("scene directory not found")
)

// SceneStore is the subset of scene.SceneManager used by the ConverterService.
type SceneStore interface {
	CreateScene(ctx context.Context, s *scene.Scene) (*scene.Scene, error)
	SetScene(ctx context.Context, id primitive.ObjectID, s *scene.Scene) error
	GetScene(ctx context.Context, id primitive.ObjectID) (*scene.Scene, error)
}

// QueueStore is the subset of queue.QueueListManager used by the ConverterService.
type QueueStore interface {
	AppendToQueue(ctx context.Context, queueID string, itemID primitive.ObjectID) error
	DeleteFromQueue(ctx context.Context, queueID string, itemID primitive.ObjectID) error
	GetQueuePosition(ctx context.Context, queueID string, itemID primitive.ObjectID) (int, int, error)
}

type ConverterService struct {
	fs      afero.Fs
	dataDir string
	scenes  SceneStore
	queues  QueueStore
	logger  *log.Logger
	// serializes conversions
	mu sync.Mutex
}

func NewConverterService(fs afero.Fs, dataDir string, scenes SceneStore, queues QueueStore, logger *log.Logger) *ConverterService {
	return &ConverterService{
		fs:      fs,
		dataDir: filepath.Clean(dataDir),
		scenes:  scenes,
		queues:  queues,
		logger:  logger,
	}
}

// resolve joins p onto base (unless p is absolute) and checks the result stays under the data directory.
func (s *ConverterService) resolve(base, p, def string) (string, error) {
	if p == "" {
		p = def
	}
	if !filepath.IsAbs(p) {
		p = filepath.Join(base, p)
	}
	p = filepath.Clean(p)

	rel, err := filepath.Rel(s.dataDir, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrPathOutsideDataDir, p)
	}
	return p, nil
}

// IsRequestError reports whether err was caused by the request itself rather than by a store.
func IsRequestError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) || errors.Is(err, ErrSceneDirNotFound) || errors.Is(err, ErrPathOutsideDataDir)
}

// Submit records a new pending conversion and adds it to the conversion queues.
// Returns ErrInvalidRequest, ErrSceneDirNotFound or ErrPathOutsideDataDir for unusable requests.
func (s *ConverterService) Submit(ctx context.Context, req *common.ConvertRequest) (*scene.Scene, error) {
	if err := validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	sceneDir, err := s.resolve(s.dataDir, req.SceneDir, "")
	if err != nil {
		return nil, err
	}
	if info, err := s.fs.Stat(sceneDir); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrSceneDirNotFound, sceneDir)
	}

	modelDir, err := s.resolve(sceneDir, req.ModelDir, DefaultModelDir)
	if err != nil {
		return nil, err
	}
	imageDir, err := s.resolve(sceneDir, req.ImageDir, DefaultImageDir)
	if err != nil {
		return nil, err
	}
	outputPath, err := s.resolve(sceneDir, req.OutputPath, DefaultOutputPath)
	if err != nil {
		return nil, err
	}

	newScene := &scene.Scene{
		Name:       req.SceneName,
		Status:     scene.StatusPending,
		ModelDir:   modelDir,
		ImageDir:   imageDir,
		OutputPath: outputPath,
	}
	if req.ID != "" {
		if newScene.ID, err = primitive.ObjectIDFromHex(req.ID); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
		// redelivered job
		existing, err := s.scenes.GetScene(ctx, newScene.ID)
		if err == nil {
			s.logger.Infof("Scene %s already recorded, reusing it", existing.ID.Hex())
			if !existing.IsFinished() {
				if err := s.enqueue(ctx, existing.ID); err != nil {
					return nil, err
				}
			}
			return existing, nil
		}
		if !errors.Is(err, scene.ErrSceneNotFound) {
			return nil, fmt.Errorf("failed to look up scene: %w", err)
		}
	}

	created, err := s.scenes.CreateScene(ctx, newScene)
	if err != nil {
		return nil, fmt.Errorf("failed to create scene: %w", err)
	}

	if err := s.enqueue(ctx, created.ID); err != nil {
		return nil, err
	}

	s.logger.Infof("Conversion of scene %s (%s) submitted", created.ID.Hex(), created.Name)
	return created, nil
}

// Run converts a recorded scene and stores the outcome on it.
//
// A conversion that fails (bad tables, unsupported camera model, unwritable output) is an outcome, not an error:
// the scene is stored as failed and returned with a nil error. The error return is for store failures only.
func (s *ConverterService) Run(ctx context.Context, sceneID primitive.ObjectID) (*scene.Scene, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.scenes.GetScene(ctx, sceneID)
	if err != nil {
		return nil, err
	}
	if current.IsFinished() {
		s.logger.Infof("Scene %s already %s, not converting again", sceneID.Hex(), current.Status)
		return current, nil
	}

	current.Status = scene.StatusConverting
	current.UpdatedAt = time.Now().UTC()
	if err := s.scenes.SetScene(ctx, sceneID, current); err != nil {
		return nil, fmt.Errorf("failed to mark scene converting: %w", err)
	}

	s.logger.Infof("Converting scene %s", sceneID.Hex())
	opts := ngp.OptionsForModelDir(current.ModelDir, current.ImageDir, current.OutputPath)
	desc, report, convErr := ngp.Convert(s.fs, opts, s.logger.Named("ngp"))

	if convErr != nil {
		s.logger.Errorf("Conversion of scene %s failed: %v", sceneID.Hex(), convErr)
		current.Status = scene.StatusFailed
		current.Error = convErr.Error()
	} else {
		current.Status = scene.StatusComplete
		current.Error = ""
		current.FrameCount = report.FrameCount
		current.SkippedImages = report.SkippedImages
		current.Intrinsics = &scene.Intrinsics{
			CameraID:     report.CameraID,
			CameraAngleX: desc.CameraAngleX,
			CameraAngleY: desc.CameraAngleY,
			FlX:          desc.FlX,
			FlY:          desc.FlY,
			Cx:           desc.Cx,
			Cy:           desc.Cy,
			W:            desc.W,
			H:            desc.H,
		}
	}
	current.UpdatedAt = time.Now().UTC()

	if err := s.scenes.SetScene(ctx, sceneID, current); err != nil {
		return nil, fmt.Errorf("failed to store conversion result: %w", err)
	}

	s.dequeue(ctx, sceneID)
	return current, nil
}

// Abandon marks a scene that will never reach a worker as failed and removes it from the queues.
func (s *ConverterService) Abandon(ctx context.Context, sceneID primitive.ObjectID, reason string) error {
	current, err := s.scenes.GetScene(ctx, sceneID)
	if err != nil {
		return err
	}

	current.Status = scene.StatusFailed
	current.Error = reason
	current.UpdatedAt = time.Now().UTC()
	if err := s.scenes.SetScene(ctx, sceneID, current); err != nil {
		return fmt.Errorf("failed to mark scene failed: %w", err)
	}

	s.dequeue(ctx, sceneID)
	return nil
}

func (s *ConverterService) enqueue(ctx context.Context, sceneID primitive.ObjectID) error {
	for _, queueID := range []string{queue.QueueAll, queue.QueueConvert} {
		if err := s.queues.AppendToQueue(ctx, queueID, sceneID); err != nil && !errors.Is(err, queue.ErrIDAlreadyInQueue) {
			return fmt.Errorf("failed to append to %s: %w", queueID, err)
		}
	}
	return nil
}

func (s *ConverterService) dequeue(ctx context.Context, sceneID primitive.ObjectID) {
	for _, queueID := range []string{queue.QueueConvert, queue.QueueAll} {
		if err := s.queues.DeleteFromQueue(ctx, queueID, sceneID); err != nil {
			s.logger.Errorf("Error removing scene %s from %s: %v", sceneID.Hex(), queueID, err)
		}
	}
}

// GetScene returns the scene record for the given ID.
func (s *ConverterService) GetScene(ctx context.Context, sceneID primitive.ObjectID) (*scene.Scene, error) {
	return s.scenes.GetScene(ctx, sceneID)
}

// GetQueuePosition returns the (position, size) of a scene in a queue.
func (s *ConverterService) GetQueuePosition(ctx context.Context, queueID string, sceneID primitive.ObjectID) (int, int, error) {
	return s.queues.GetQueuePosition(ctx, queueID, sceneID)
}
