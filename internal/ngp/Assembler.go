// This file contains Assemble, which turns parsed cameras and poses into a SceneDescription.

package ngp

import (
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"github.com/NeRF-or-Nothing/sfm-converter/internal/colmap"
	"github.com/NeRF-or-Nothing/sfm-converter/internal/log"
)

// ErrNoCameras is returned when the camera table has no records to take intrinsics from.
var ErrNoCameras = errors.New("ngp: camera table is empty")

// Report summarizes what Assemble did beyond the document itself.
type Report struct {
	CameraID      int      // camera whose intrinsics were used
	CameraCount   int      // distinct cameras in the table
	PoseCount     int      // poses in the image table
	FrameCount    int      // frames written
	SkippedImages []string // posed images with no file in the image directory, in table order
}

// Assemble builds the scene description. Intrinsics come from the first camera of cams, which must be
// SIMPLE_RADIAL. Every pose in imgs whose file exists as a regular file under imageDir becomes a frame, in
// table order; poses without a file are skipped and listed in the report.
func Assemble(fs afero.Fs, cams *colmap.Cameras, imgs *colmap.Images, imageDir string, logger *log.Logger) (*SceneDescription, *Report, error) {
	if logger == nil {
		logger = log.NewNop()
	}

	cam, ok := cams.First()
	if !ok {
		return nil, nil, ErrNoCameras
	}
	f, cx, cy, _, err := cam.SimpleRadial()
	if err != nil {
		return nil, nil, err
	}
	if cams.Len() > 1 {
		logger.Warnf("Reconstruction has %d cameras, using intrinsics of camera %d for every frame", cams.Len(), cam.ID)
	}

	angleX, angleY := FieldOfView(f, cam.Width, cam.Height)

	report := &Report{
		CameraID:    cam.ID,
		CameraCount: cams.Len(),
		PoseCount:   imgs.Len(),
	}

	frames := make([]Frame, 0, imgs.Len())
	for _, img := range imgs.All() {
		imagePath := filepath.Join(imageDir, img.Name)
		info, err := fs.Stat(imagePath)
		if err != nil || !info.Mode().IsRegular() {
			logger.Warnf("Skipping missing image: %s", img.Name)
			report.SkippedImages = append(report.SkippedImages, img.Name)
			continue
		}

		frames = append(frames, Frame{
			FilePath:        ImagePathPrefix + img.Name,
			TransformMatrix: CameraToWorld(img.Qvec, img.Tvec),
		})
	}
	report.FrameCount = len(frames)

	return &SceneDescription{
		CameraAngleX: angleX,
		CameraAngleY: angleY,
		FlX:          f,
		FlY:          f,
		Cx:           cx,
		Cy:           cy,
		W:            cam.Width,
		H:            cam.Height,
		AABBScale:    AABBScale,
		Frames:       frames,
	}, report, nil
}
