package server

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"github.com/nvr-ai/lingolens/images"
	"github.com/nvr-ai/lingolens/models"
	"github.com/nvr-ai/lingolens/models/postprocess"
	"github.com/nvr-ai/lingolens/monitor"
	"github.com/nvr-ai/lingolens/translate"
)

// unknownLabel names class indices missing from the label table.
const unknownLabel = "unknown"

// DetectionResponse is one detection in the /api/detect response.
type DetectionResponse struct {
	ClassID     int         `json:"classId"`
	Label       string      `json:"label"`
	Translation string      `json:"translation"`
	Confidence  float32     `json:"confidence"`
	Box         images.Box  `json:"box"`
	Rect        images.Rect `json:"rect"`
}

// DetectResponse is the body of a successful /api/detect call.
type DetectResponse struct {
	ID         string              `json:"id"`
	Language   string              `json:"language"`
	Format     images.ImageFormat  `json:"format"`
	Width      int                 `json:"width"`
	Height     int                 `json:"height"`
	Detections []DetectionResponse `json:"detections"`
}

// Annotate names, translates and scales detections for an image of the given size.
// Class indices missing from labels are named "unknown". A nil translator keeps the
// English labels.
func Annotate(
	ctx context.Context,
	detections []postprocess.Detection,
	labels *models.LabelTable,
	translator *translate.LabelTranslator,
	lang string,
	width, height int,
) []DetectionResponse {
	out := make([]DetectionResponse, 0, len(detections))
	for _, d := range detections {
		label, err := labels.Name(d.ClassID)
		if err != nil {
			label = unknownLabel
		}
		translation := label
		if translator != nil && label != unknownLabel {
			translation = translator.TranslateLabel(ctx, label, lang)
		}
		out = append(out, DetectionResponse{
			ClassID:     d.ClassID,
			Label:       label,
			Translation: translation,
			Confidence:  d.Confidence,
			Box:         d.Box,
			Rect:        d.Box.Rect(width, height),
		})
	}
	return out
}

func (s *Server) fail(c *gin.Context, status int, err error) {
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

func (s *Server) supportsLanguage(code string) bool {
	if code == translate.DefaultSourceLanguage {
		return true
	}
	_, ok := translate.FindLanguage(s.languages, code)
	return ok
}

func (s *Server) handleDetect(c *gin.Context) {
	lang := c.DefaultQuery("lang", s.defaultLanguage)
	if !s.supportsLanguage(lang) {
		s.fail(c, http.StatusBadRequest, errors.Errorf("unsupported language %q", lang))
		return
	}

	img, err := s.readImage(c)
	if err != nil {
		s.metrics.ObserveDetectFailure(monitor.StatusBadInput)
		status := http.StatusBadRequest
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		s.fail(c, status, err)
		return
	}

	ctx := c.Request.Context()
	detections, err := s.detector.Analyze(ctx, img)
	if err != nil {
		s.fail(c, http.StatusInternalServerError, err)
		return
	}

	resp := DetectResponse{
		ID:       c.GetString(requestIDKey),
		Language: lang,
		Format:   img.Format,
		Width:    img.Width,
		Height:   img.Height,
	}
	resp.Detections = Annotate(ctx, detections, s.labels, s.translator, lang, resp.Width, resp.Height)

	c.JSON(http.StatusOK, resp)
}

// readImage reads the "image" multipart field, or the raw body for other content
// types, and decodes it.
func (s *Server) readImage(c *gin.Context) (*images.Image, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxUploadBytes)

	var r io.Reader = c.Request.Body
	if strings.HasPrefix(c.ContentType(), "multipart/form-data") {
		fh, err := c.FormFile("image")
		if err != nil {
			return nil, errors.Wrap(err, "missing image field")
		}
		f, err := fh.Open()
		if err != nil {
			return nil, errors.Wrap(err, "failed to open upload")
		}
		defer f.Close()
		r = f
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read image")
	}
	return images.Decode(data)
}

func (s *Server) handleLanguages(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"languages": s.languages})
}

func (s *Server) handleTranslate(c *gin.Context) {
	if s.translator == nil || s.translator.Online() == nil {
		s.fail(c, http.StatusServiceUnavailable, errors.New("online translation is disabled"))
		return
	}

	resp, err := s.translator.Online().Translate(c.Request.Context(), c.Param("source"), c.Param("target"), c.Param("text"))
	if err != nil {
		if errors.Is(err, translate.ErrEmptyText) {
			s.fail(c, http.StatusBadRequest, err)
			return
		}
		s.metrics.ObserveTranslateError()
		s.fail(c, http.StatusBadGateway, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
