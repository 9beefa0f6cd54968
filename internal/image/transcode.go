package image

import (
	"bytes"
	"image"

	"github.com/disintegration/imaging"
)

const jpegQuality = 75

func Transcode(data []byte, format Format) (image.Image, error) {
	src, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &DecodeError{Err: err}
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, src, format.imaging(), imaging.JPEGQuality(jpegQuality)); err != nil {
		return nil, &DecodeError{Err: err}
	}

	img, err := imaging.Decode(&buf)
	if err != nil {
		return nil, &DecodeError{Err: err}
	}
	return img, nil
}

func (f Format) imaging() imaging.Format {
	if f == FormatJPEG {
		return imaging.JPEG
	}
	return imaging.PNG
}
