// This file contains the end-to-end conversion: read both tables, assemble, and write transforms.json.

package ngp

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"github.com/NeRF-or-Nothing/sfm-converter/internal/colmap"
	"github.com/NeRF-or-Nothing/sfm-converter/internal/log"
)

// Default file names inside a COLMAP text model directory and a scene directory.
const (
	CamerasFile    = "cameras.txt"
	ImagesFile     = "images.txt"
	TransformsFile = "transforms.json"
)

// OutputFileMode is the mode of a newly created transforms.json.
const OutputFileMode os.FileMode = 0o644

// ConvertOptions names the inputs and output of one conversion.
type ConvertOptions struct {
	CamerasPath string
	ImagesPath  string
	ImageDir    string
	OutputPath  string
}

// OptionsForModelDir returns options for a text model directory holding cameras.txt and images.txt.
func OptionsForModelDir(modelDir, imageDir, outputPath string) ConvertOptions {
	return ConvertOptions{
		CamerasPath: filepath.Join(modelDir, CamerasFile),
		ImagesPath:  filepath.Join(modelDir, ImagesFile),
		ImageDir:    imageDir,
		OutputPath:  outputPath,
	}
}

// Convert runs one conversion. Errors name the stage that failed. Nothing is written to OutputPath unless
// the whole document was produced.
func Convert(fs afero.Fs, opts ConvertOptions, logger *log.Logger) (*SceneDescription, *Report, error) {
	if logger == nil {
		logger = log.NewNop()
	}

	cams, err := colmap.ParseCameras(fs, opts.CamerasPath)
	if err != nil {
		return nil, nil, errors.Wrap(err, "parse cameras")
	}
	logger.Debugf("Parsed %d cameras from %s", cams.Len(), opts.CamerasPath)

	imgs, err := colmap.ParseImages(fs, opts.ImagesPath)
	if err != nil {
		return nil, nil, errors.Wrap(err, "parse images")
	}
	logger.Debugf("Parsed %d poses from %s", imgs.Len(), opts.ImagesPath)

	desc, report, err := Assemble(fs, cams, imgs, opts.ImageDir, logger)
	if err != nil {
		return nil, nil, errors.Wrap(err, "assemble")
	}

	if err := WriteFile(fs, opts.OutputPath, desc); err != nil {
		return nil, nil, errors.Wrap(err, "write")
	}

	logger.Infof("transforms.json saved at %s (%d frames, %d skipped)", opts.OutputPath, report.FrameCount, len(report.SkippedImages))
	return desc, report, nil
}

// WriteFile encodes desc into a temporary file next to path and renames it into place.
// An existing file at path keeps its permission bits; a new one gets OutputFileMode.
func WriteFile(fs afero.Fs, path string, desc *SceneDescription) (err error) {
	tmp, err := afero.TempFile(fs, filepath.Dir(path), ".transforms-*.json")
	if err != nil {
		return errors.Wrap(err, "create temporary file")
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			fs.Remove(tmpName)
		}
	}()

	if err = desc.Encode(tmp); err != nil {
		tmp.Close()
		return errors.Wrap(err, "encode scene description")
	}
	if err = tmp.Close(); err != nil {
		return errors.Wrap(err, "close temporary file")
	}
	// TempFile creates 0600; an existing output keeps its mode
	mode := OutputFileMode
	if info, statErr := fs.Stat(path); statErr == nil && info.Mode().IsRegular() {
		mode = info.Mode().Perm()
	}
	if err = fs.Chmod(tmpName, mode); err != nil {
		return errors.Wrap(err, "set output mode")
	}
	if err = fs.Rename(tmpName, path); err != nil {
		return errors.Wrapf(err, "rename into %s", path)
	}
	return nil
}
