// This file contains the readers for cameras.txt and images.txt.
//
// Both tables share the same line rules: lines starting with '#' and blank lines are ignored, fields are
// separated by whitespace. images.txt additionally pairs every pose line with one observation line that is
// skipped without being looked at, even when it is blank.

package colmap

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Observation lines list every 2D keypoint of an image and can be far longer than bufio's default limit.
const maxLineBytes = 256 << 20

// minPoseFields is IMAGE_ID, QW, QX, QY, QZ, TX, TY, TZ, CAMERA_ID, NAME.
const minPoseFields = 10

// ParseCameras reads cameras.txt from fs.
func ParseCameras(fs afero.Fs, path string) (*Cameras, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "colmap: open camera table")
	}
	defer f.Close()

	return readCameras(f, path)
}

// ReadCameras reads a camera table from r.
func ReadCameras(r io.Reader) (*Cameras, error) {
	return readCameras(r, "")
}

// ParseImages reads images.txt from fs.
func ParseImages(fs afero.Fs, path string) (*Images, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "colmap: open image table")
	}
	defer f.Close()

	return readImages(f, path)
}

// ReadImages reads an image table from r.
func ReadImages(r io.Reader) (*Images, error) {
	return readImages(r, "")
}

func newScanner(r io.Reader) *bufio.Scanner {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	return scanner
}

func isSkippable(line string) bool {
	return strings.HasPrefix(line, "#") || strings.TrimSpace(line) == ""
}

func readCameras(r io.Reader, path string) (*Cameras, error) {
	cameras := NewCameras()
	scanner := newScanner(r)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if isSkippable(line) {
			continue
		}

		cam, err := parseCameraLine(strings.Fields(line))
		if err != nil {
			err.Path = path
			err.Line = lineNo
			return nil, err
		}
		cameras.Put(cam)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "colmap: read camera table %s", path)
	}

	return cameras, nil
}

func parseCameraLine(parts []string) (Camera, *ParseError) {
	if len(parts) < 4 {
		return Camera{}, &ParseError{Field: "camera line", Err: errors.Errorf("expected at least 4 fields, got %d", len(parts))}
	}

	id, err := strconv.Atoi(parts[0])
	if err != nil {
		return Camera{}, &ParseError{Field: "camera id", Err: err}
	}
	width, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return Camera{}, &ParseError{Field: "width", Err: err}
	}
	height, err := strconv.ParseFloat(parts[3], 64)
	if err != nil {
		return Camera{}, &ParseError{Field: "height", Err: err}
	}

	params := make([]float64, 0, len(parts)-4)
	for i, s := range parts[4:] {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Camera{}, &ParseError{Field: "param " + strconv.Itoa(i), Err: err}
		}
		params = append(params, v)
	}

	return Camera{
		ID:     id,
		Model:  parts[1],
		Width:  width,
		Height: height,
		Params: params,
	}, nil
}

func readImages(r io.Reader, path string) (*Images, error) {
	images := NewImages()
	scanner := newScanner(r)

	lineNo := 0
	skipObservations := false
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if skipObservations {
			skipObservations = false
			continue
		}
		if isSkippable(line) {
			continue
		}

		parts := strings.Fields(line)
		if len(parts) < minPoseFields {
			continue
		}

		img, err := parsePoseLine(parts)
		if err != nil {
			err.Path = path
			err.Line = lineNo
			return nil, err
		}
		images.Put(img)
		skipObservations = true
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "colmap: read image table %s", path)
	}

	return images, nil
}

var poseFieldNames = [7]string{"qw", "qx", "qy", "qz", "tx", "ty", "tz"}

func parsePoseLine(parts []string) (Image, *ParseError) {
	var v [7]float64
	for i := range v {
		f, err := strconv.ParseFloat(parts[1+i], 64)
		if err != nil {
			return Image{}, &ParseError{Field: poseFieldNames[i], Err: err}
		}
		v[i] = f
	}

	cameraID, err := strconv.Atoi(parts[8])
	if err != nil {
		return Image{}, &ParseError{Field: "camera id", Err: err}
	}

	return Image{
		Name:     baseName(parts[9]),
		Qvec:     quat.Number{Real: v[0], Imag: v[1], Jmag: v[2], Kmag: v[3]},
		Tvec:     r3.Vec{X: v[4], Y: v[5], Z: v[6]},
		CameraID: cameraID,
	}, nil
}

// baseName strips directory components written with either separator, so a reconstruction made on
// Windows joins against files on Linux.
func baseName(name string) string {
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		return name[i+1:]
	}
	return name
}
