package handler

import (
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/swimming-pool-reservation/internal/service"
)

// maxUploadBytes caps slips and profile photos.
const maxUploadBytes = 5 << 20

var allowedUploadTypes = map[string]bool{
	"image/jpeg":      true,
	"image/png":       true,
	"image/webp":      true,
	"application/pdf": true,
}

// formUpload opens the multipart file in field.  It returns nil, nil, ""
// when the request carries no such file.  The caller closes the file.
func formUpload(c echo.Context, field string) (*service.Upload, io.Closer, string) {
	if !strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		return nil, nil, ""
	}
	fh, err := c.FormFile(field)
	if err != nil {
		if err == http.ErrMissingFile {
			return nil, nil, ""
		}
		return nil, nil, "invalid multipart form"
	}
	if fh.Size > maxUploadBytes {
		return nil, nil, field + " exceeds 5MB"
	}
	if ct := fh.Header.Get(echo.HeaderContentType); ct != "" && !allowedUploadTypes[strings.ToLower(ct)] {
		return nil, nil, field + " must be an image or a PDF"
	}
	f, err := fh.Open()
	if err != nil {
		return nil, nil, "cannot read " + field
	}
	return &service.Upload{Filename: fh.Filename, Body: f}, f, ""
}

