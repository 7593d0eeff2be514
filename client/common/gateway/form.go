package gateway

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"

	"github.com/disintegration/imaging"
)

const (
	imageFieldName = "image"

	// avatarMaxDim bounds uploaded avatars; phone cameras routinely produce
	// multi-megabyte originals the API has no use for.
	avatarMaxDim = 1024
)

// ImagePart is an image attachment for a multipart request.
type ImagePart struct {
	FileName string
	Data     []byte
}

// NewImagePart decodes raw image bytes and re-encodes them as a bounded JPEG.
// Images already within bounds are still normalized to JPEG so the form part
// carries a single content type.
func NewImagePart(fileName string, raw []byte) (*ImagePart, error) {
	img, err := imaging.Decode(bytes.NewReader(raw), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	bounds := img.Bounds()
	if bounds.Dx() > avatarMaxDim || bounds.Dy() > avatarMaxDim {
		img = imaging.Fit(img, avatarMaxDim, avatarMaxDim, imaging.Lanczos)
	}
	buf := &bytes.Buffer{}
	if err := imaging.Encode(buf, img, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	return &ImagePart{FileName: fileName, Data: buf.Bytes()}, nil
}

func encodeForm(fields map[string]string, image *ImagePart) (string, io.Reader, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return "", nil, err
		}
	}
	if image != nil {
		fileName := image.FileName
		if fileName == "" {
			fileName = "image.jpg"
		}
		part, err := writer.CreateFormFile(imageFieldName, fileName)
		if err != nil {
			return "", nil, err
		}
		if _, err := part.Write(image.Data); err != nil {
			return "", nil, err
		}
	}
	if err := writer.Close(); err != nil {
		return "", nil, err
	}
	return writer.FormDataContentType(), body, nil
}
