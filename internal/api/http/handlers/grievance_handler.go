package handlers

import (
	"context"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/grievance-portal/internal/api/dto"
	"github.com/spec-kit/grievance-portal/internal/domain"
	"github.com/spec-kit/grievance-portal/internal/service"
	"github.com/spec-kit/grievance-portal/internal/validator"
	apperrors "github.com/spec-kit/grievance-portal/pkg/util/errorutil"
)

// GrievanceService is what the grievance endpoints need.
type GrievanceService interface {
	Submit(ctx context.Context, submitter domain.Identity, in service.SubmitInput) (*domain.Grievance, error)
	ListForViewer(ctx context.Context, viewer domain.Identity, filter service.ListFilter) ([]domain.Grievance, error)
	Transition(ctx context.Context, actor domain.Identity, id int64, rawStatus string, notes *string) (*domain.Grievance, error)
	History(ctx context.Context, viewer domain.Identity, id int64) ([]domain.GrievanceHistory, error)
	OpenAttachment(ctx context.Context, viewer domain.Identity, id int64) (io.ReadCloser, domain.Attachment, error)
}

// GrievanceHandler serves the grievance endpoints.
type GrievanceHandler struct {
	service  GrievanceService
	validate *validator.Validator
}

// NewGrievanceHandler constructs handler.
func NewGrievanceHandler(grievanceService GrievanceService, validate *validator.Validator) *GrievanceHandler {
	return &GrievanceHandler{service: grievanceService, validate: validate}
}

// List GET /getAll. Optional ?status=A,B and ?q= narrow the result.
func (h *GrievanceHandler) List(c *fiber.Ctx) error {
	viewer, err := principal(c)
	if err != nil {
		return err
	}
	filter := service.ListFilter{SearchTerm: c.Query("q")}
	for _, raw := range strings.Split(c.Query("status"), ",") {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		status, ok := domain.ParseStatus(raw)
		if !ok {
			return apperrors.NewValidationError("invalid status filter", map[string]any{"status": raw})
		}
		filter.Statuses = append(filter.Statuses, status)
	}

	grievances, err := h.service.ListForViewer(c.UserContext(), viewer, filter)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewGrievanceResponses(grievances)})
}

// Add POST /add. Multipart fields: category, description, optional file and
// fileType. userId and userName are accepted but the principal wins.
func (h *GrievanceHandler) Add(c *fiber.Ctx) error {
	submitter, err := principal(c)
	if err != nil {
		return err
	}

	input := service.SubmitInput{
		Category:    c.FormValue("category"),
		Description: c.FormValue("description"),
	}
	if form, formErr := c.MultipartForm(); formErr == nil {
		if files := form.File["file"]; len(files) > 0 {
			file, openErr := files[0].Open()
			if openErr != nil {
				return apperrors.NewValidationError("unreadable attachment", nil)
			}
			defer file.Close()
			input.Attachment = &service.AttachmentInput{
				FileName:    filepath.Base(files[0].Filename),
				ContentType: attachmentType(c.FormValue("fileType"), files[0]),
				Size:        files[0].Size,
				Content:     file,
			}
		}
	}

	grievance, err := h.service.Submit(c.UserContext(), submitter, input)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.NewGrievanceResponse(*grievance)})
}

// Update PUT /update/:id.
func (h *GrievanceHandler) Update(c *fiber.Ctx) error {
	actor, err := principal(c)
	if err != nil {
		return err
	}
	id, err := grievanceID(c)
	if err != nil {
		return err
	}
	var req dto.UpdateGrievanceRequest
	if err := parseBody(c, h.validate, &req); err != nil {
		return err
	}

	grievance, err := h.service.Transition(c.UserContext(), actor, id, req.Status, req.ResolutionNotes)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewGrievanceResponse(*grievance)})
}

// History GET /history/:id.
func (h *GrievanceHandler) History(c *fiber.Ctx) error {
	viewer, err := principal(c)
	if err != nil {
		return err
	}
	id, err := grievanceID(c)
	if err != nil {
		return err
	}
	entries, err := h.service.History(c.UserContext(), viewer, id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewHistoryResponses(entries)})
}

// Download GET /download/:id streams the attachment unmodified.
func (h *GrievanceHandler) Download(c *fiber.Ctx) error {
	viewer, err := principal(c)
	if err != nil {
		return err
	}
	id, err := grievanceID(c)
	if err != nil {
		return err
	}
	reader, attachment, err := h.service.OpenAttachment(c.UserContext(), viewer, id)
	if err != nil {
		return err
	}

	contentType := attachment.ContentType
	if contentType == "" {
		contentType = fiber.MIMEOctetStream
	}
	c.Set(fiber.HeaderContentType, contentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, strings.ReplaceAll(attachment.FileName, `"`, "")))

	size := int(attachment.SizeBytes)
	if size <= 0 {
		size = -1
	}
	return c.SendStream(reader, size)
}

func attachmentType(declared string, fh *multipart.FileHeader) string {
	if declared = strings.TrimSpace(declared); declared != "" {
		return declared
	}
	if header := fh.Header.Get(fiber.HeaderContentType); header != "" {
		return header
	}
	if byExt := mime.TypeByExtension(filepath.Ext(fh.Filename)); byExt != "" {
		return byExt
	}
	return fiber.MIMEOctetStream
}
