package services

import (
	"context"
	"errors"
	"testing"

	"github.com/spf13/afero"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.viam.com/test"

	"github.com/NeRF-or-Nothing/sfm-converter/internal/common"
	"github.com/NeRF-or-Nothing/sfm-converter/internal/log"
	"github.com/NeRF-or-Nothing/sfm-converter/internal/models/queue"
	"github.com/NeRF-or-Nothing/sfm-converter/internal/models/scene"
	"github.com/NeRF-or-Nothing/sfm-converter/internal/testutils"
)

const (
	testCameras = "# cameras\n1 SIMPLE_RADIAL 800 600 500 400 300 0.01\n"
	testImages  = "1 1 0 0 0 0 0 0 1 a.jpg\n\n2 1 0 0 0 0 0 0 1 b.jpg\n\n"
)

type converterFixture struct {
	fs        afero.Fs
	scenes    *testutils.SceneStore
	queues    *testutils.QueueStore
	converter *ConverterService
}

func newConverterFixture(t *testing.T) *converterFixture {
	t.Helper()
	fs := afero.NewMemMapFs()
	test.That(t, afero.WriteFile(fs, "/data/garden/sparse/0/cameras.txt", []byte(testCameras), 0o644), test.ShouldBeNil)
	test.That(t, afero.WriteFile(fs, "/data/garden/sparse/0/images.txt", []byte(testImages), 0o644), test.ShouldBeNil)
	test.That(t, afero.WriteFile(fs, "/data/garden/images/a.jpg", []byte("jpeg"), 0o644), test.ShouldBeNil)

	scenes := testutils.NewSceneStore()
	queues := testutils.NewQueueStore()
	return &converterFixture{
		fs:        fs,
		scenes:    scenes,
		queues:    queues,
		converter: NewConverterService(fs, "/data", scenes, queues, log.NewNop()),
	}
}

func TestSubmitResolvesDefaults(t *testing.T) {
	fx := newConverterFixture(t)

	sc, err := fx.converter.Submit(context.Background(), &common.ConvertRequest{SceneName: "garden", SceneDir: "garden"})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, sc.Status, test.ShouldEqual, scene.StatusPending)
	test.That(t, sc.ModelDir, test.ShouldEqual, "/data/garden/sparse/0")
	test.That(t, sc.ImageDir, test.ShouldEqual, "/data/garden/images")
	test.That(t, sc.OutputPath, test.ShouldEqual, "/data/garden/transforms.json")

	test.That(t, fx.queues.Items(queue.QueueAll), test.ShouldResemble, []primitive.ObjectID{sc.ID})
	test.That(t, fx.queues.Items(queue.QueueConvert), test.ShouldResemble, []primitive.ObjectID{sc.ID})

	pos, size, err := fx.converter.GetQueuePosition(context.Background(), queue.QueueConvert, sc.ID)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pos, test.ShouldEqual, 0)
	test.That(t, size, test.ShouldEqual, 1)
}

func TestSubmitRejectsBadRequests(t *testing.T) {
	fx := newConverterFixture(t)
	ctx := context.Background()

	_, err := fx.converter.Submit(ctx, &common.ConvertRequest{SceneDir: "garden"})
	test.That(t, errors.Is(err, ErrInvalidRequest), test.ShouldBeTrue)

	_, err = fx.converter.Submit(ctx, &common.ConvertRequest{SceneName: "x", SceneDir: "../etc"})
	test.That(t, errors.Is(err, ErrPathOutsideDataDir), test.ShouldBeTrue)

	_, err = fx.converter.Submit(ctx, &common.ConvertRequest{SceneName: "x", SceneDir: "garden", OutputPath: "../../out.json"})
	test.That(t, errors.Is(err, ErrPathOutsideDataDir), test.ShouldBeTrue)

	_, err = fx.converter.Submit(ctx, &common.ConvertRequest{SceneName: "x", SceneDir: "orchard"})
	test.That(t, errors.Is(err, ErrSceneDirNotFound), test.ShouldBeTrue)

	test.That(t, fx.queues.Items(queue.QueueAll), test.ShouldBeEmpty)
}

func TestRunCompletesScene(t *testing.T) {
	fx := newConverterFixture(t)
	ctx := context.Background()

	sc, err := fx.converter.Submit(ctx, &common.ConvertRequest{SceneName: "garden", SceneDir: "/data/garden"})
	test.That(t, err, test.ShouldBeNil)

	done, err := fx.converter.Run(ctx, sc.ID)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, done.Status, test.ShouldEqual, scene.StatusComplete)
	test.That(t, done.FrameCount, test.ShouldEqual, 1)
	test.That(t, done.SkippedImages, test.ShouldResemble, []string{"b.jpg"})
	test.That(t, done.Intrinsics, test.ShouldNotBeNil)
	test.That(t, done.Intrinsics.FlX, test.ShouldEqual, 500.0)
	test.That(t, done.Intrinsics.W, test.ShouldEqual, 800.0)

	stored, err := fx.converter.GetScene(ctx, sc.ID)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, stored.Status, test.ShouldEqual, scene.StatusComplete)

	exists, err := afero.Exists(fx.fs, "/data/garden/transforms.json")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, exists, test.ShouldBeTrue)

	test.That(t, fx.queues.Items(queue.QueueAll), test.ShouldBeEmpty)
	test.That(t, fx.queues.Items(queue.QueueConvert), test.ShouldBeEmpty)

	// running a finished scene again is a no-op
	again, err := fx.converter.Run(ctx, sc.ID)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, again.Status, test.ShouldEqual, scene.StatusComplete)
}

func TestRunRecordsFailure(t *testing.T) {
	fx := newConverterFixture(t)
	ctx := context.Background()
	test.That(t, afero.WriteFile(fx.fs, "/data/garden/sparse/0/cameras.txt", []byte("1 PINHOLE 800 600 500 500 400 300\n"), 0o644), test.ShouldBeNil)

	sc, err := fx.converter.Submit(ctx, &common.ConvertRequest{SceneName: "garden", SceneDir: "garden"})
	test.That(t, err, test.ShouldBeNil)

	done, err := fx.converter.Run(ctx, sc.ID)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, done.Status, test.ShouldEqual, scene.StatusFailed)
	test.That(t, done.Error, test.ShouldContainSubstring, "PINHOLE")
	test.That(t, done.Intrinsics, test.ShouldBeNil)

	exists, err := afero.Exists(fx.fs, "/data/garden/transforms.json")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, exists, test.ShouldBeFalse)
	test.That(t, fx.queues.Items(queue.QueueConvert), test.ShouldBeEmpty)
}

func TestRunStoreFailure(t *testing.T) {
	fx := newConverterFixture(t)
	ctx := context.Background()

	sc, err := fx.converter.Submit(ctx, &common.ConvertRequest{SceneName: "garden", SceneDir: "garden"})
	test.That(t, err, test.ShouldBeNil)

	fx.scenes.SetErr = errors.New("connection reset")
	_, err = fx.converter.Run(ctx, sc.ID)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "connection reset")

	_, err = fx.converter.Run(ctx, primitive.NewObjectID())
	test.That(t, errors.Is(err, scene.ErrSceneNotFound), test.ShouldBeTrue)
}

func TestAbandonMarksSceneFailed(t *testing.T) {
	fx := newConverterFixture(t)
	ctx := context.Background()

	sc, err := fx.converter.Submit(ctx, &common.ConvertRequest{SceneName: "garden", SceneDir: "garden"})
	test.That(t, err, test.ShouldBeNil)

	test.That(t, fx.converter.Abandon(ctx, sc.ID, "broker unavailable"), test.ShouldBeNil)

	got, err := fx.converter.GetScene(ctx, sc.ID)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, got.Status, test.ShouldEqual, scene.StatusFailed)
	test.That(t, got.Error, test.ShouldEqual, "broker unavailable")
	test.That(t, fx.queues.Items(queue.QueueAll), test.ShouldBeEmpty)
	test.That(t, fx.queues.Items(queue.QueueConvert), test.ShouldBeEmpty)

	err = fx.converter.Abandon(ctx, primitive.NewObjectID(), "gone")
	test.That(t, errors.Is(err, scene.ErrSceneNotFound), test.ShouldBeTrue)
}
