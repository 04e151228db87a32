package handler

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fadilmartias/job-matcher/internal/dto"
	"github.com/fadilmartias/job-matcher/internal/middleware"
	"github.com/fadilmartias/job-matcher/internal/model"
	"github.com/fadilmartias/job-matcher/internal/search"
	"github.com/fadilmartias/job-matcher/internal/usecase"
	"github.com/fadilmartias/job-matcher/internal/util"
	"github.com/gofiber/fiber/v2"
)

const maxResumeSize = 5 * 1024 * 1024

type MatchHandler struct {
	uc  *usecase.MatchUsecase
	now func() time.Time
}

func NewMatchHandler(uc *usecase.MatchUsecase) *MatchHandler {
	return &MatchHandler{uc: uc, now: time.Now}
}

func (h *MatchHandler) RegisterRoutes(app *fiber.App) {
	analysisLimit := middleware.RateLimiter(20, time.Minute)

	app.Put("/resume", h.UploadResume)
	app.Get("/resume", h.GetResume)
	app.Delete("/resume", h.ClearResume)

	app.Post("/jobs", analysisLimit, h.Submit)
	app.Post("/jobs/batch", analysisLimit, h.SubmitBatch)
	app.Post("/jobs/import", analysisLimit, h.Import)
	app.Get("/jobs", h.List)
	app.Delete("/jobs/:id", h.Remove)

	app.Get("/export/csv", h.ExportCSV)
	app.Get("/export/xlsx", h.ExportXLSX)

	app.Post("/search/url", h.SearchURL)
	app.Get("/search/options", h.SearchOptions)

	app.Get("/history", h.History)
	app.Get("/history/similar", h.Similar)
}

func (h *MatchHandler) UploadResume(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return util.ErrorResponse(c, util.ErrorResponseFormat{
			Code:    fiber.StatusBadRequest,
			Message: "resume file is required",
		}, err)
	}

	if file.Size > maxResumeSize {
		return util.ErrorResponse(c, util.ErrorResponseFormat{
			Code:    fiber.StatusRequestEntityTooLarge,
			Message: "resume file size is too large (max 5MB)",
		})
	}

	f, err := file.Open()
	if err != nil {
		return util.ErrorResponse(c, util.ErrorResponseFormat{
			Message: "cannot read resume file",
		}, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return util.ErrorResponse(c, util.ErrorResponseFormat{
			Message: "cannot read resume file",
		}, err)
	}

	resume, err := h.uc.SetResume(file.Filename, data)
	if err != nil {
		return h.fail(c, "failed to extract resume text", err)
	}

	return util.SuccessResponse(c, util.SuccessResponseFormat{
		Message: "Resume uploaded",
		Data:    resume,
	})
}

func (h *MatchHandler) GetResume(c *fiber.Ctx) error {
	resume, ok := h.uc.Resume()
	if !ok {
		return util.ErrorResponse(c, util.ErrorResponseFormat{
			Code:    fiber.StatusNotFound,
			Message: "no resume uploaded",
		})
	}
	return util.SuccessResponse(c, util.SuccessResponseFormat{
		Message: "Success get resume",
		Data:    resume,
	})
}

func (h *MatchHandler) ClearResume(c *fiber.Ctx) error {
	h.uc.ClearResume()
	return util.SuccessResponse(c, util.SuccessResponseFormat{
		Message: "Resume cleared",
	})
}

func (h *MatchHandler) Submit(c *fiber.Ctx) error {
	var req model.JobDetails
	if err := c.BodyParser(&req); err != nil {
		return h.badBody(c, err)
	}

	id, err := h.uc.Submit(req)
	if err != nil {
		return h.fail(c, "failed to submit job", err)
	}

	return util.SuccessResponse(c, util.SuccessResponseFormat{
		Code:    fiber.StatusAccepted,
		Message: "Job queued for analysis",
		Data:    fiber.Map{"id": id},
	})
}

func (h *MatchHandler) SubmitBatch(c *fiber.Ctx) error {
	var req dto.BatchRequest
	if err := c.BodyParser(&req); err != nil {
		return h.badBody(c, err)
	}

	result, err := h.uc.SubmitBatch(req.Jobs)
	if err != nil {
		return h.fail(c, "failed to submit jobs", err)
	}

	return util.SuccessResponse(c, util.SuccessResponseFormat{
		Code:    fiber.StatusAccepted,
		Message: fmt.Sprintf("%d job(s) queued for analysis", len(result.IDs)),
		Data:    result,
	})
}

func (h *MatchHandler) Import(c *fiber.Ctx) error {
	var req dto.ImportRequest
	if err := c.BodyParser(&req); err != nil {
		return h.badBody(c, err)
	}
	if strings.TrimSpace(req.HTML) == "" {
		return h.fail(c, "", util.NewFormError("html is required", map[string]string{"html": "is required"}))
	}

	result, found, err := h.uc.Import(req.HTML)
	if err != nil {
		return h.fail(c, "failed to import jobs", err)
	}

	if found == 0 {
		return util.SuccessResponse(c, util.SuccessResponseFormat{
			Message: "No jobs found in the pasted HTML",
			Data:    fiber.Map{"count": 0},
		})
	}

	return util.SuccessResponse(c, util.SuccessResponseFormat{
		Code:    fiber.StatusAccepted,
		Message: fmt.Sprintf("Found %d job(s)", found),
		Data:    fiber.Map{"count": found, "ids": result.IDs, "rejected": result.Rejected},
	})
}

func (h *MatchHandler) List(c *fiber.Ctx) error {
	return util.SuccessResponse(c, util.SuccessResponseFormat{
		Message: "Success get jobs",
		Data:    dto.NewSnapshotDTO(h.uc.Snapshot()),
	})
}

func (h *MatchHandler) Remove(c *fiber.Ctx) error {
	h.uc.Remove(c.Params("id"))
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *MatchHandler) ExportCSV(c *fiber.Ctx) error {
	name, data := h.uc.ExportCSV(h.now())
	c.Attachment(name)
	c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
	return c.Send(data)
}

func (h *MatchHandler) ExportXLSX(c *fiber.Ctx) error {
	name, data, err := h.uc.ExportXLSX(h.now())
	if err != nil {
		return util.ErrorResponse(c, util.ErrorResponseFormat{
			Message: "failed to build spreadsheet",
		}, err)
	}
	c.Attachment(name)
	return c.Send(data)
}

func (h *MatchHandler) SearchURL(c *fiber.Ctx) error {
	var req model.SearchFilters
	if err := c.BodyParser(&req); err != nil {
		return h.badBody(c, err)
	}

	url, err := h.uc.SearchURL(req)
	if err != nil {
		return h.fail(c, "failed to build search url", err)
	}

	return util.SuccessResponse(c, util.SuccessResponseFormat{
		Message: "Success build search url",
		Data:    fiber.Map{"url": url},
	})
}

func (h *MatchHandler) SearchOptions(c *fiber.Ctx) error {
	return util.SuccessResponse(c, util.SuccessResponseFormat{
		Message: "Success get search options",
		Data: dto.SearchOptionsDTO{
			ExperienceLevels: search.ExperienceLevels,
			RemoteOptions:    search.RemoteOptions,
			JobTypes:         search.JobTypes,
		},
	})
}

func (h *MatchHandler) History(c *fiber.Ctx) error {
	records, pagination, err := h.uc.History(c.UserContext(), c.QueryInt("page", 1), c.QueryInt("page_size", 20))
	if err != nil {
		return h.fail(c, "failed to get match history", err)
	}

	return util.SuccessResponse(c, util.SuccessResponseFormat{
		Message:    "Success get match history",
		Data:       records,
		Pagination: pagination,
	})
}

func (h *MatchHandler) Similar(c *fiber.Ctx) error {
	records, err := h.uc.SimilarJobs(c.UserContext(), c.QueryInt("top_k", 5))
	if err != nil {
		return h.fail(c, "failed to search similar jobs", err)
	}

	return util.SuccessResponse(c, util.SuccessResponseFormat{
		Message: "Success get similar jobs",
		Data:    records,
	})
}

func (h *MatchHandler) badBody(c *fiber.Ctx, err error) error {
	return util.ErrorResponse(c, util.ErrorResponseFormat{
		Code:    fiber.StatusBadRequest,
		Message: "invalid request body",
	}, err)
}

// fail maps usecase errors to status codes. message is used for anything
// that is not a known client error.
func (h *MatchHandler) fail(c *fiber.Ctx, message string, err error) error {
	var formErr *util.FormError
	switch {
	case errors.As(err, &formErr):
		return util.ErrorResponse(c, util.ErrorResponseFormat{
			Code:    fiber.StatusUnprocessableEntity,
			Message: formErr.Message,
			Details: formErr.Errors,
		})
	case errors.Is(err, usecase.ErrResumeRequired):
		return util.ErrorResponse(c, util.ErrorResponseFormat{
			Code:    fiber.StatusBadRequest,
			Message: err.Error(),
		})
	case errors.Is(err, util.ErrUnsupportedFileType), errors.Is(err, util.ErrNoTextExtracted):
		return util.ErrorResponse(c, util.ErrorResponseFormat{
			Code:    fiber.StatusUnprocessableEntity,
			Message: err.Error(),
		})
	case errors.Is(err, usecase.ErrArchiveDisabled), errors.Is(err, usecase.ErrEmbeddingsUnavailable):
		return util.ErrorResponse(c, util.ErrorResponseFormat{
			Code:    fiber.StatusServiceUnavailable,
			Message: err.Error(),
		})
	default:
		return util.ErrorResponse(c, util.ErrorResponseFormat{
			Message: message,
		}, err)
	}
}
