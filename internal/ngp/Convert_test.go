package ngp

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"go.viam.com/test"

	"github.com/NeRF-or-Nothing/sfm-converter/internal/colmap"
)

func writeModel(t *testing.T, fs afero.Fs, cameras, images string) {
	t.Helper()
	test.That(t, afero.WriteFile(fs, "/scene/sparse/0/cameras.txt", []byte(cameras), 0o644), test.ShouldBeNil)
	test.That(t, afero.WriteFile(fs, "/scene/sparse/0/images.txt", []byte(images), 0o644), test.ShouldBeNil)
}

func TestConvertWritesDocument(t *testing.T) {
	fs := sceneFs(t, "a.jpg")
	writeModel(t, fs, simpleRadialCamera, "1 1 0 0 0 0 0 0 1 a.jpg\n\n2 1 0 0 0 0 0 0 1 b.jpg\n\n")

	opts := OptionsForModelDir("/scene/sparse/0", "/scene/images", "/scene/transforms.json")
	test.That(t, opts.CamerasPath, test.ShouldEqual, "/scene/sparse/0/cameras.txt")

	desc, report, err := Convert(fs, opts, nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, desc.Frames, test.ShouldHaveLength, 1)
	test.That(t, report.SkippedImages, test.ShouldResemble, []string{"b.jpg"})

	data, err := afero.ReadFile(fs, "/scene/transforms.json")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(data), test.ShouldContainSubstring, `"file_path": "images/a.jpg"`)

	// no temporary files are left behind
	entries, err := afero.ReadDir(fs, "/scene")
	test.That(t, err, test.ShouldBeNil)
	for _, e := range entries {
		test.That(t, strings.HasPrefix(e.Name(), ".transforms-"), test.ShouldBeFalse)
	}
}

func TestConvertIsIdempotent(t *testing.T) {
	fs := sceneFs(t, "a.jpg", "b.jpg")
	writeModel(t, fs, simpleRadialCamera, "1 0.9 0.1 0.3 0.2 1.5 -2 0.25 1 a.jpg\n\n2 0.5 0.5 0.5 0.5 3 2 1 1 b.jpg\n\n")
	opts := OptionsForModelDir("/scene/sparse/0", "/scene/images", "/scene/transforms.json")

	_, _, err := Convert(fs, opts, nil)
	test.That(t, err, test.ShouldBeNil)
	first, err := afero.ReadFile(fs, "/scene/transforms.json")
	test.That(t, err, test.ShouldBeNil)

	_, _, err = Convert(fs, opts, nil)
	test.That(t, err, test.ShouldBeNil)
	second, err := afero.ReadFile(fs, "/scene/transforms.json")
	test.That(t, err, test.ShouldBeNil)

	test.That(t, string(second), test.ShouldEqual, string(first))
}

func TestConvertMalformedImageTableWritesNothing(t *testing.T) {
	fs := sceneFs(t, "a.jpg")
	writeModel(t, fs, simpleRadialCamera, "1 one 0 0 0 0 0 0 1 a.jpg\n\n")

	_, _, err := Convert(fs, OptionsForModelDir("/scene/sparse/0", "/scene/images", "/scene/transforms.json"), nil)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldStartWith, "parse images")

	var perr *colmap.ParseError
	test.That(t, errors.As(err, &perr), test.ShouldBeTrue)
	test.That(t, perr.Field, test.ShouldEqual, "qw")

	exists, err := afero.Exists(fs, "/scene/transforms.json")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, exists, test.ShouldBeFalse)
}

func TestConvertUnsupportedModelKeepsPreviousOutput(t *testing.T) {
	fs := sceneFs(t, "a.jpg")
	test.That(t, afero.WriteFile(fs, "/scene/transforms.json", []byte("previous"), 0o644), test.ShouldBeNil)
	writeModel(t, fs, "1 PINHOLE 800 600 500 500 400 300\n", "1 1 0 0 0 0 0 0 1 a.jpg\n\n")

	_, _, err := Convert(fs, OptionsForModelDir("/scene/sparse/0", "/scene/images", "/scene/transforms.json"), nil)
	test.That(t, err.Error(), test.ShouldStartWith, "assemble")

	var merr *colmap.UnsupportedModelError
	test.That(t, errors.As(err, &merr), test.ShouldBeTrue)

	data, err := afero.ReadFile(fs, "/scene/transforms.json")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(data), test.ShouldEqual, "previous")
}

func TestConvertMissingCameraTable(t *testing.T) {
	fs := sceneFs(t)
	_, _, err := Convert(fs, OptionsForModelDir("/nowhere", "/scene/images", "/scene/transforms.json"), nil)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldStartWith, "parse cameras")
}

func TestConvertOutputMode(t *testing.T) {
	dir := t.TempDir()
	fs := afero.NewOsFs()
	modelDir := filepath.Join(dir, "sparse", "0")
	imageDir := filepath.Join(dir, "images")
	out := filepath.Join(dir, TransformsFile)

	test.That(t, fs.MkdirAll(modelDir, 0o755), test.ShouldBeNil)
	test.That(t, fs.MkdirAll(imageDir, 0o755), test.ShouldBeNil)
	test.That(t, afero.WriteFile(fs, filepath.Join(modelDir, CamerasFile), []byte(simpleRadialCamera), 0o644), test.ShouldBeNil)
	test.That(t, afero.WriteFile(fs, filepath.Join(modelDir, ImagesFile), []byte("1 1 0 0 0 0 0 0 1 a.jpg\n\n"), 0o644), test.ShouldBeNil)
	test.That(t, afero.WriteFile(fs, filepath.Join(imageDir, "a.jpg"), []byte("jpeg"), 0o644), test.ShouldBeNil)

	opts := OptionsForModelDir(modelDir, imageDir, out)

	_, _, err := Convert(fs, opts, nil)
	test.That(t, err, test.ShouldBeNil)
	info, err := fs.Stat(out)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, info.Mode().Perm(), test.ShouldEqual, OutputFileMode)

	// an existing output keeps its mode
	test.That(t, fs.Chmod(out, 0o640), test.ShouldBeNil)
	_, _, err = Convert(fs, opts, nil)
	test.That(t, err, test.ShouldBeNil)
	info, err = fs.Stat(out)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, info.Mode().Perm(), test.ShouldEqual, os.FileMode(0o640))
}

func TestConvertNonFiniteValueWritesNothing(t *testing.T) {
	for _, cameras := range []string{
		"1 SIMPLE_RADIAL 800 600 nan 400 300 0.01\n",
		"1 SIMPLE_RADIAL inf 600 500 400 300 0.01\n",
	} {
		fs := sceneFs(t, "a.jpg")
		test.That(t, afero.WriteFile(fs, "/scene/transforms.json", []byte("previous"), 0o644), test.ShouldBeNil)
		writeModel(t, fs, cameras, "1 1 0 0 0 0 0 0 1 a.jpg\n\n")

		_, _, err := Convert(fs, OptionsForModelDir("/scene/sparse/0", "/scene/images", "/scene/transforms.json"), nil)
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, err.Error(), test.ShouldStartWith, "write")
		test.That(t, err.Error(), test.ShouldContainSubstring, "unsupported value")

		data, err := afero.ReadFile(fs, "/scene/transforms.json")
		test.That(t, err, test.ShouldBeNil)
		test.That(t, string(data), test.ShouldEqual, "previous")

		entries, err := afero.ReadDir(fs, "/scene")
		test.That(t, err, test.ShouldBeNil)
		for _, e := range entries {
			test.That(t, strings.HasPrefix(e.Name(), ".transforms-"), test.ShouldBeFalse)
		}
	}
}
