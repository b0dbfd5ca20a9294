// Package client is the portal side of the grievance API: the HTTP
// client, the persisted session, the idle watcher and the role dashboards.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/grievance-portal/internal/api/dto"
	"github.com/spec-kit/grievance-portal/internal/domain"
	apperrors "github.com/spec-kit/grievance-portal/pkg/util/errorutil"
)

// DefaultHTTPTimeout bounds a single API request.
const DefaultHTTPTimeout = 15 * time.Second

// Credentials supplies the bearer token and is told when the server
// rejects it.
type Credentials interface {
	BearerToken() (string, bool)
	Revoke() error
}

// Attachment is a file sent with a new grievance. Data is sent unmodified.
type Attachment struct {
	FileName    string
	ContentType string
	Data        []byte
}

// Download is a fetched attachment.
type Download struct {
	FileName    string
	ContentType string
	Data        []byte
}

// API talks to the grievance REST endpoints. One call is one request;
// nothing is retried.
type API struct {
	baseURL string
	timeout time.Duration
	logger  *zap.Logger

	mu    sync.RWMutex
	creds Credentials
}

// NewAPI builds a client for baseURL, e.g. http://host:8080/api/grievances.
func NewAPI(baseURL string, timeout time.Duration, logger *zap.Logger) *API {
	if timeout <= 0 {
		timeout = DefaultHTTPTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &API{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		logger:  logger,
	}
}

// Authorize sets the credentials used by authenticated calls.
func (a *API) Authorize(creds Credentials) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.creds = creds
}

func (a *API) credentials() Credentials {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.creds
}

func (a *API) url(path string) string {
	return a.baseURL + path
}

// Login signs in. Unknown accounts and bad passwords surface as
// INVALID_CREDENTIALS; a role mismatch keeps the server's message.
func (a *API) Login(ctx context.Context, email, password, role string) (dto.AuthResponse, error) {
	var out dto.AuthResponse
	agent := fiber.Post(a.url("/login")).JSON(dto.LoginRequest{Email: email, Password: password, Role: role})
	err := a.send(ctx, agent, false, &out)
	if err != nil {
		domainErr := apperrors.ToDomainError(err)
		if domainErr.HTTPStatus == http.StatusUnauthorized || domainErr.HTTPStatus == http.StatusNotFound {
			return out, apperrors.NewInvalidCredentials()
		}
		return out, err
	}
	return out, nil
}

// Register creates a student or faculty account.
func (a *API) Register(ctx context.Context, req dto.RegisterRequest) (dto.AuthResponse, error) {
	var out dto.AuthResponse
	err := a.send(ctx, fiber.Post(a.url("/register")).JSON(req), false, &out)
	return out, err
}

// ForgotPassword asks the server to mail a reset code.
func (a *API) ForgotPassword(ctx context.Context, email string) error {
	return a.send(ctx, fiber.Post(a.url("/forgot-password")).JSON(dto.ForgotPasswordRequest{Email: email}), false, nil)
}

// ResetPassword consumes a reset code.
func (a *API) ResetPassword(ctx context.Context, email, otp, newPassword string) error {
	req := dto.ResetPasswordRequest{Email: email, OTP: otp, NewPassword: newPassword}
	return a.send(ctx, fiber.Post(a.url("/reset-password")).JSON(req), false, nil)
}

// ListGrievances fetches the caller's snapshot of grievances.
func (a *API) ListGrievances(ctx context.Context) ([]domain.Grievance, error) {
	var out []dto.GrievanceResponse
	if err := a.send(ctx, fiber.Get(a.url("/getAll")), true, &out); err != nil {
		return nil, err
	}
	grievances := make([]domain.Grievance, 0, len(out))
	for _, item := range out {
		g, err := item.ToDomain()
		if err != nil {
			return nil, apperrors.NewInternalError(err)
		}
		grievances = append(grievances, g)
	}
	return grievances, nil
}

// CreateGrievance posts a multipart submission. userId and userName are
// sent for compatibility; the server uses the bearer identity.
func (a *API) CreateGrievance(ctx context.Context, submitter domain.Identity, category domain.Category, description string, attachment *Attachment) (domain.Grievance, error) {
	args := fiber.AcquireArgs()
	defer fiber.ReleaseArgs(args)
	args.Set("userId", submitter.ID)
	args.Set("userName", submitter.Name)
	args.Set("category", string(category))
	args.Set("description", description)

	agent := fiber.Post(a.url("/add"))
	if attachment != nil {
		args.Set("fileType", attachment.ContentType)
		agent.FileData(&fiber.FormFile{
			Fieldname: "file",
			Name:      attachment.FileName,
			Content:   attachment.Data,
		})
	}
	agent.MultipartForm(args)

	var out dto.GrievanceResponse
	if err := a.send(ctx, agent, true, &out); err != nil {
		return domain.Grievance{}, err
	}
	return grievanceFromWire(out)
}

// UpdateGrievance PUTs a status change.
func (a *API) UpdateGrievance(ctx context.Context, id int64, status domain.Status, notes *string) (domain.Grievance, error) {
	req := dto.UpdateGrievanceRequest{Status: string(status), ResolutionNotes: notes}
	var out dto.GrievanceResponse
	if err := a.send(ctx, fiber.Put(a.url("/update/"+strconv.FormatInt(id, 10))).JSON(req), true, &out); err != nil {
		return domain.Grievance{}, err
	}
	return grievanceFromWire(out)
}

// History fetches the recorded status changes of a grievance.
func (a *API) History(ctx context.Context, id int64) ([]dto.HistoryResponse, error) {
	var out []dto.HistoryResponse
	if err := a.send(ctx, fiber.Get(a.url("/history/"+strconv.FormatInt(id, 10))), true, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// DownloadAttachment fetches the attachment of grievance id.
func (a *API) DownloadAttachment(ctx context.Context, id int64) (Download, error) {
	resp := fiber.AcquireResponse()
	defer fiber.ReleaseResponse(resp)

	agent := fiber.Get(a.url("/download/" + strconv.FormatInt(id, 10))).SetResponse(resp)
	var raw []byte
	if err := a.send(ctx, agent, true, &raw); err != nil {
		return Download{}, err
	}

	download := Download{
		ContentType: string(resp.Header.ContentType()),
		Data:        raw,
	}
	if _, params, err := mime.ParseMediaType(string(resp.Header.Peek(fiber.HeaderContentDisposition))); err == nil {
		download.FileName = params["filename"]
	}
	return download, nil
}

// ListUsers fetches the identities the caller manages.
func (a *API) ListUsers(ctx context.Context) ([]domain.Identity, error) {
	var out []dto.IdentityResponse
	if err := a.send(ctx, fiber.Get(a.url("/users")), true, &out); err != nil {
		return nil, err
	}
	identities := make([]domain.Identity, 0, len(out))
	for _, item := range out {
		identity, err := item.ToDomain()
		if err != nil {
			return nil, apperrors.NewInternalError(err)
		}
		identities = append(identities, identity)
	}
	return identities, nil
}

// DeleteUser removes a managed identity.
func (a *API) DeleteUser(ctx context.Context, id string) error {
	return a.send(ctx, fiber.Delete(a.url("/users/"+id)), true, nil)
}

// ChangeRole reassigns a managed identity's role.
func (a *API) ChangeRole(ctx context.Context, id string, role domain.Role) error {
	return a.send(ctx, fiber.Put(a.url("/users/"+id+"/role")).JSON(dto.ChangeRoleRequest{Role: string(role)}), true, nil)
}

func grievanceFromWire(resp dto.GrievanceResponse) (domain.Grievance, error) {
	g, err := resp.ToDomain()
	if err != nil {
		return domain.Grievance{}, apperrors.NewInternalError(err)
	}
	return g, nil
}

// send runs one request. out may be nil, a *[]byte for the raw body, or a
// value decoded from the {"data": ...} envelope.
func (a *API) send(ctx context.Context, agent *fiber.Agent, authenticated bool, out any) error {
	if err := ctx.Err(); err != nil {
		fiber.ReleaseAgent(agent)
		return apperrors.NewBackendUnreachable(err)
	}
	timeout := a.timeout
	if deadline, ok := ctx.Deadline(); ok {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			fiber.ReleaseAgent(agent)
			return apperrors.NewBackendUnreachable(context.DeadlineExceeded)
		}
		if remaining < timeout {
			timeout = remaining
		}
	}
	agent.Timeout(timeout)

	var creds Credentials
	if authenticated {
		creds = a.credentials()
		token, ok := "", false
		if creds != nil {
			token, ok = creds.BearerToken()
		}
		if !ok {
			fiber.ReleaseAgent(agent)
			return apperrors.NewUnauthorized("not signed in")
		}
		agent.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}

	// Bytes releases the agent.
	status, body, errs := agent.Bytes()
	if len(errs) > 0 {
		err := errors.Join(errs...)
		a.logger.Warn("grievance api unreachable", zap.Error(err))
		return apperrors.NewBackendUnreachable(err)
	}

	if status >= http.StatusBadRequest {
		apiErr := decodeError(status, body)
		if status == http.StatusUnauthorized && creds != nil {
			if err := creds.Revoke(); err != nil {
				a.logger.Warn("could not clear rejected session", zap.Error(err))
			}
		}
		return apiErr
	}

	switch target := out.(type) {
	case nil:
		return nil
	case *[]byte:
		*target = body
		return nil
	default:
		return decodeData(body, out)
	}
}

func decodeData(body []byte, out any) error {
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return apperrors.NewInternalError(fmt.Errorf("decode response: %w", err))
	}
	payload := []byte(envelope.Data)
	if len(payload) == 0 {
		payload = body
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return apperrors.NewInternalError(fmt.Errorf("decode response: %w", err))
	}
	return nil
}

// decodeError reads {"error":{code,message}} or a bare {"message"} body,
// falling back to a generic message for the status.
func decodeError(status int, body []byte) error {
	var parsed dto.ErrorBody
	_ = json.Unmarshal(body, &parsed)

	code := parsed.Error.Code
	if code == "" {
		code = codeForStatus(status)
	}
	message := parsed.Error.Message
	if message == "" {
		message = parsed.Message
	}
	if message == "" {
		message = fmt.Sprintf("request failed (%d %s)", status, http.StatusText(status))
	}
	return apperrors.NewDomainError(code, message, status, parsed.Error.Details)
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return apperrors.CodeValidation
	case http.StatusUnauthorized:
		return apperrors.CodeUnauthorized
	case http.StatusForbidden:
		return apperrors.CodeForbidden
	case http.StatusNotFound:
		return apperrors.CodeNotFound
	case http.StatusConflict:
		return apperrors.CodeConflict
	case http.StatusTooManyRequests:
		return apperrors.CodeTooManyRequests
	default:
		return apperrors.CodeInternal
	}
}
