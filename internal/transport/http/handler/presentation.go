package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"gopherai-slides/internal/app"
	"gopherai-slides/internal/model"
	"gopherai-slides/internal/source"
	"gopherai-slides/internal/transport/http/response"
)

const defaultMaxUpload = 10 << 20

type PresentationService interface {
	Generate(ctx context.Context, input app.GenerateInput) (*model.Presentation, error)
	GenerateAsync(ctx context.Context, input app.GenerateInput) (*model.Presentation, error)
	Get(ctx context.Context, id string) (*model.Presentation, error)
	List(ctx context.Context, limit int) ([]model.Presentation, error)
	Delete(ctx context.Context, id string) error
}

type PresentationHandler struct {
	service   PresentationService
	maxUpload int64
}

type CreatePresentationRequest struct {
	Prompt string   `json:"prompt"`
	URLs   []string `json:"urls"`
	Async  bool     `json:"async"`
}

func NewPresentationHandler(service PresentationService, maxUploadBytes int64) *PresentationHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = defaultMaxUpload
	}
	return &PresentationHandler{service: service, maxUpload: maxUploadBytes}
}

// Create accepts either a multipart form (prompt, urls, files, async) or a JSON body.
func (h *PresentationHandler) Create(c *gin.Context) {
	var (
		input app.GenerateInput
		async bool
	)
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		req, err := h.bindMultipart(c)
		if err != nil {
			var tooLarge *uploadTooLargeError
			if errors.As(err, &tooLarge) {
				response.Error(c, http.StatusRequestEntityTooLarge, response.CodeUploadTooLarge, err.Error())
			} else {
				response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
			}
			return
		}
		input, async = req.input, req.async
	} else {
		var req CreatePresentationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
			return
		}
		input = app.GenerateInput{Prompt: req.Prompt, URLs: cleanURLs(req.URLs)}
		async = req.Async
	}

	if async {
		p, err := h.service.GenerateAsync(c.Request.Context(), input)
		if err != nil {
			writeGenerateError(c, err)
			return
		}
		response.Status(c, http.StatusAccepted, gin.H{"id": p.ID, "status": p.Status})
		return
	}

	p, err := h.service.Generate(c.Request.Context(), input)
	if err != nil {
		writeGenerateError(c, err)
		return
	}
	response.OK(c, p)
}

type multipartRequest struct {
	input app.GenerateInput
	async bool
}

type uploadTooLargeError struct {
	name  string
	limit int64
}

func (e *uploadTooLargeError) Error() string {
	return fmt.Sprintf("file %q is too large (max %dMB)", e.name, e.limit>>20)
}

func (h *PresentationHandler) bindMultipart(c *gin.Context) (multipartRequest, error) {
	var req multipartRequest
	form, err := c.MultipartForm()
	if err != nil {
		return req, errors.New("invalid multipart form")
	}

	req.input.Prompt = c.PostForm("prompt")
	req.input.URLs = cleanURLs(form.Value["urls"])
	req.async, _ = strconv.ParseBool(c.PostForm("async"))

	for _, fh := range form.File["files"] {
		if fh.Size > h.maxUpload {
			return req, &uploadTooLargeError{name: fh.Filename, limit: h.maxUpload}
		}
		f, err := fh.Open()
		if err != nil {
			return req, fmt.Errorf("read file %q failed", fh.Filename)
		}
		data, err := io.ReadAll(io.LimitReader(f, h.maxUpload+1))
		_ = f.Close()
		if err != nil {
			return req, fmt.Errorf("read file %q failed", fh.Filename)
		}
		if int64(len(data)) > h.maxUpload {
			return req, &uploadTooLargeError{name: fh.Filename, limit: h.maxUpload}
		}
		req.input.Documents = append(req.input.Documents, source.Document{
			Name:        fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Data:        data,
		})
	}
	return req, nil
}

// cleanURLs trims entries and also accepts comma or newline separated values.
func cleanURLs(raw []string) []string {
	var out []string
	for _, r := range raw {
		for _, u := range strings.FieldsFunc(r, func(c rune) bool { return c == ',' || c == '\n' }) {
			if u = strings.TrimSpace(u); u != "" {
				out = append(out, u)
			}
		}
	}
	return out
}

func writeGenerateError(c *gin.Context, err error) {
	var srcErr *source.SourceError
	switch {
	case errors.Is(err, app.ErrInvalidInput):
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "provide a prompt, urls or files")
	case errors.Is(err, app.ErrNoContent):
		response.Error(c, http.StatusUnprocessableEntity, response.CodeNoContent, app.UserMessage(err))
	case errors.Is(err, source.ErrUnsupportedType):
		response.Error(c, http.StatusBadRequest, response.CodeUnsupportedDocument, app.UserMessage(err))
	case errors.As(err, &srcErr) && srcErr.Kind == source.KindDocument:
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, app.UserMessage(err))
	case errors.Is(err, app.ErrAsyncUnavailable):
		response.Error(c, http.StatusServiceUnavailable, response.CodeServiceUnavailable, err.Error())
	default:
		response.Error(c, http.StatusInternalServerError, response.CodeGenerationFailed, "generation failed: "+app.UserMessage(err))
	}
}

func (h *PresentationHandler) Get(c *gin.Context) {
	p, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, app.ErrPresentationNotFound):
			response.Error(c, http.StatusNotFound, response.CodePresentationNotFound, err.Error())
		case errors.Is(err, app.ErrInvalidInput):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid presentation id")
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "get presentation failed")
		}
		return
	}
	response.OK(c, p)
}

func (h *PresentationHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	list, err := h.service.List(c.Request.Context(), limit)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "list presentations failed")
		return
	}
	response.OK(c, list)
}

func (h *PresentationHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	if err := h.service.Delete(c.Request.Context(), id); err != nil {
		if errors.Is(err, app.ErrPresentationNotFound) {
			response.Error(c, http.StatusNotFound, response.CodePresentationNotFound, err.Error())
		} else {
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "delete presentation failed")
		}
		return
	}
	response.OK(c, gin.H{"deleted_id": id})
}
