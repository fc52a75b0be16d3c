package controllers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"forum/internal/delivery/http/controllers/middleware"
	"forum/internal/domain/models"

	"github.com/gin-gonic/gin"
)

type ForumService interface {
	AskQuestion(ctx context.Context, userID string, title, description, slug string, tagNames []string) (*models.Question, error)
	Questions(ctx context.Context) ([]models.QuestionView, error)
	Question(ctx context.Context, questionID string) (*models.QuestionView, error)
	Answer(ctx context.Context, userID, questionID, body string) (*models.Answer, error)
	Answers(ctx context.Context, questionID string) ([]models.Answer, error)
	Vote(ctx context.Context, userID string, target models.VoteTarget, voteType models.VoteType) (int, error)
}

type QuestionHandler struct {
	log   *slog.Logger
	forum ForumService
}

func NewQuestionHandler(log *slog.Logger, forum ForumService) *QuestionHandler {
	return &QuestionHandler{
		log:   log,
		forum: forum,
	}
}

type tagResponse struct {
	ID   string `json:"_id"`
	Name string `json:"name"`
}

type questionResponse struct {
	ID          string        `json:"_id"`
	Title       string        `json:"title"`
	Slug        string        `json:"slug"`
	Description string        `json:"description"`
	PublishedBy string        `json:"publishedBy"`
	Tags        []tagResponse `json:"tags"`
	VoteCount   int           `json:"voteCount"`
	ViewCount   int           `json:"viewCount"`
	CreatedAt   time.Time     `json:"createdAt"`
}

func newQuestionResponse(v models.QuestionView) questionResponse {
	tags := make([]tagResponse, 0, len(v.Tags))
	for _, t := range v.Tags {
		tags = append(tags, tagResponse{ID: t.ID, Name: t.Name})
	}

	return questionResponse{
		ID:          v.ID,
		Title:       v.Title,
		Slug:        v.Slug,
		Description: v.Description,
		PublishedBy: v.Publisher.EnrollmentNumber,
		Tags:        tags,
		VoteCount:   v.VoteCount,
		ViewCount:   v.ViewCount,
		CreatedAt:   v.CreatedAt,
	}
}

type answerResponse struct {
	ID         string    `json:"_id"`
	Body       string    `json:"body"`
	AnsweredBy string    `json:"answeredBy"`
	QuestionID string    `json:"question"`
	VoteCount  int       `json:"voteCount"`
	CreatedAt  time.Time `json:"createdAt"`
}

func newAnswerResponse(a models.Answer) answerResponse {
	return answerResponse{
		ID:         a.ID,
		Body:       a.Body,
		AnsweredBy: a.AnsweredBy,
		QuestionID: a.QuestionID,
		VoteCount:  a.VoteCount,
		CreatedAt:  a.CreatedAt,
	}
}

type askQuestionRequest struct {
	Title       string   `json:"title" binding:"required"`
	Description string   `json:"description" binding:"required"`
	Slug        string   `json:"slug" binding:"required"`
	Tags        []string `json:"tags" binding:"required"`
}

func (h *QuestionHandler) Ask(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		abort(c, http.StatusUnauthorized, "unauthorized request")
		return
	}

	var input askQuestionRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		abort(c, http.StatusBadRequest, "all fields are required")
		return
	}

	q, err := h.forum.AskQuestion(c.Request.Context(), userID, input.Title, input.Description, input.Slug, input.Tags)
	if err != nil {
		fail(c, h.log, err)
		return
	}

	respond(c, http.StatusCreated, gin.H{
		"_id":         q.ID,
		"title":       q.Title,
		"slug":        q.Slug,
		"description": q.Description,
		"publishedBy": q.PublishedBy,
		"tags":        q.TagIDs,
		"createdAt":   q.CreatedAt,
	}, "Question published successfully")
}

func (h *QuestionHandler) List(c *gin.Context) {
	views, err := h.forum.Questions(c.Request.Context())
	if err != nil {
		fail(c, h.log, err)
		return
	}

	out := make([]questionResponse, 0, len(views))
	for _, v := range views {
		out = append(out, newQuestionResponse(v))
	}

	respond(c, http.StatusOK, out, "Questions fetched successfully")
}

func (h *QuestionHandler) Get(c *gin.Context) {
	view, err := h.forum.Question(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, h.log, err)
		return
	}

	respond(c, http.StatusOK, newQuestionResponse(*view), "Question fetched successfully")
}

type answerRequest struct {
	Body string `json:"body" binding:"required"`
}

func (h *QuestionHandler) Answer(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		abort(c, http.StatusUnauthorized, "unauthorized request")
		return
	}

	var input answerRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		abort(c, http.StatusBadRequest, "answer body is required")
		return
	}

	a, err := h.forum.Answer(c.Request.Context(), userID, c.Param("id"), input.Body)
	if err != nil {
		fail(c, h.log, err)
		return
	}

	respond(c, http.StatusCreated, newAnswerResponse(*a), "Answer posted successfully")
}

func (h *QuestionHandler) Answers(c *gin.Context) {
	answers, err := h.forum.Answers(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, h.log, err)
		return
	}

	out := make([]answerResponse, 0, len(answers))
	for _, a := range answers {
		out = append(out, newAnswerResponse(a))
	}

	respond(c, http.StatusOK, out, "Answers fetched successfully")
}

type voteRequest struct {
	Type models.VoteType `json:"type" binding:"required"`
}

func (h *QuestionHandler) VoteQuestion(c *gin.Context) {
	h.vote(c, models.VoteTarget{QuestionID: c.Param("id")})
}

func (h *QuestionHandler) VoteAnswer(c *gin.Context) {
	h.vote(c, models.VoteTarget{AnswerID: c.Param("id")})
}

func (h *QuestionHandler) vote(c *gin.Context, target models.VoteTarget) {
	userID, ok := middleware.UserID(c)
	if !ok {
		abort(c, http.StatusUnauthorized, "unauthorized request")
		return
	}

	var input voteRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		abort(c, http.StatusBadRequest, "vote type is required")
		return
	}

	count, err := h.forum.Vote(c.Request.Context(), userID, target, input.Type)
	if err != nil {
		fail(c, h.log, err)
		return
	}

	respond(c, http.StatusOK, gin.H{"voteCount": count}, "Vote recorded")
}
