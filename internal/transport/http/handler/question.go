package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"gopherai-slides/internal/app"
	"gopherai-slides/internal/scrape"
	"gopherai-slides/internal/transport/http/response"
)

type QuestionAnswerer interface {
	Answer(ctx context.Context, presentationID, question string) (string, error)
}

type QuestionHandler struct {
	qa QuestionAnswerer
}

type AskRequest struct {
	PresentationID string `json:"presentationId" binding:"required"`
	Question       string `json:"question" binding:"required"`
}

func NewQuestionHandler(qa QuestionAnswerer) *QuestionHandler {
	return &QuestionHandler{qa: qa}
}

func (h *QuestionHandler) Ask(c *gin.Context) {
	var req AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "presentationId and question are required")
		return
	}

	answer, err := h.qa.Answer(c.Request.Context(), req.PresentationID, req.Question)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidInput):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "presentationId and question are required")
		case errors.Is(err, app.ErrNoKnowledgeBase):
			response.Error(c, http.StatusNotFound, response.CodeNoKnowledgeBase, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "answer failed: "+app.UserMessage(err))
		}
		return
	}
	response.OK(c, gin.H{"answer": answer})
}

type ScrapeHandler struct {
	scraper scrape.Scraper
}

type ScrapeRequest struct {
	URL string `json:"url" binding:"required"`
}

func NewScrapeHandler(scraper scrape.Scraper) *ScrapeHandler {
	return &ScrapeHandler{scraper: scraper}
}

func (h *ScrapeHandler) Scrape(c *gin.Context) {
	var req ScrapeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "url is required")
		return
	}

	content, err := h.scraper.Scrape(c.Request.Context(), strings.TrimSpace(req.URL))
	if err != nil {
		if errors.Is(err, scrape.ErrInvalidURL) {
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		} else {
			response.Error(c, http.StatusBadGateway, response.CodeScrapeFailed, "scrape failed: "+err.Error())
		}
		return
	}
	response.OK(c, gin.H{"content": content})
}
