package handler

import (
	"context"
	"io"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"ggp-deploy/internal/model"
	"ggp-deploy/internal/pkg/ggp"
	"ggp-deploy/internal/pkg/logger"
	"ggp-deploy/internal/service"
	"ggp-deploy/pkg/utils"
)

// ServiceFactory returns a deploy service whose ggp output goes to out.
type ServiceFactory func(out io.Writer) *service.DeployService

// DeployHandler serves deployments. Only one ggp operation runs at a time;
// concurrent requests are rejected with 409.
type DeployHandler struct {
	newService ServiceFactory
	logger     *logger.Logger
	upgrader   websocket.Upgrader
	mu         sync.Mutex
}

func NewDeployHandler(newService ServiceFactory, allowedOrigins []string, logger *logger.Logger) *DeployHandler {
	origins := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		origins[o] = true
	}
	return &DeployHandler{
		newService: newService,
		logger:     logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || origins[origin]
			},
		},
	}
}

func (h *DeployHandler) Deploy(c *gin.Context) {
	var req model.DeployRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, invalidPayload(err))
		return
	}
	if apiErr := validateDeployRequest(&req); apiErr != nil {
		c.JSON(http.StatusBadRequest, errorResponse(apiErr))
		return
	}
	if !h.mu.TryLock() {
		c.JSON(http.StatusConflict, busyResponse())
		return
	}
	defer h.mu.Unlock()

	taskID := uuid.New().String()
	out := &lockedBuffer{}
	resp, apiErr := h.deploy(c.Request.Context(), taskID, &req, out)
	if apiErr != nil {
		c.JSON(http.StatusInternalServerError, errorResponse(apiErr))
		return
	}
	resp.Output = out.String()
	c.JSON(http.StatusOK, resp)
}

func (h *DeployHandler) Terminate(c *gin.Context) {
	var req model.TerminateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, invalidPayload(err))
		return
	}
	if err := utils.ValidateInstanceName(req.Instance); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(utils.NewValidationError("instance", req.Instance)))
		return
	}
	if err := utils.ValidateProcessName(req.Process); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(utils.NewValidationError("process", req.Process)))
		return
	}
	if !h.mu.TryLock() {
		c.JSON(http.StatusConflict, busyResponse())
		return
	}
	defer h.mu.Unlock()

	taskID := uuid.New().String()
	out := &lockedBuffer{}
	code, err := h.newService(out).Terminate(c.Request.Context(), req.Instance, req.Process)
	h.commandResult(c, "terminate", taskID, code, err, out)
}

func (h *DeployHandler) Fetch(c *gin.Context) {
	var req model.FetchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, invalidPayload(err))
		return
	}
	if err := utils.ValidateInstanceName(req.Instance); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(utils.NewValidationError("instance", req.Instance)))
		return
	}
	if !h.mu.TryLock() {
		c.JSON(http.StatusConflict, busyResponse())
		return
	}
	defer h.mu.Unlock()

	taskID := uuid.New().String()
	out := &lockedBuffer{}
	code, err := h.newService(out).Fetch(c.Request.Context(), req.Instance, req.Sources, req.Destination)
	h.commandResult(c, "fetch", taskID, code, err, out)
}

func (h *DeployHandler) commandResult(c *gin.Context, step, taskID string, code int, err error, out *lockedBuffer) {
	if err != nil {
		h.logger.Error("ggp could not be started", zap.String("task_id", taskID), zap.String("step", step), zap.Error(err))
		c.JSON(http.StatusInternalServerError, errorResponse(utils.NewToolError(step, err)))
		return
	}
	resp := model.CommandResponse{
		Success:  code == 0,
		TaskID:   taskID,
		ExitCode: code,
		Output:   out.String(),
	}
	if code != 0 {
		resp.Message = utils.NewStepError(step, code).Error()
	}
	c.JSON(http.StatusOK, resp)
}

// deploy runs one deployment with ggp output sent to out. The returned
// response is nil only when the request could not be executed at all.
func (h *DeployHandler) deploy(ctx context.Context, taskID string, req *model.DeployRequest, out io.Writer) (*model.DeployResponse, *utils.APIError) {
	h.logger.Info("Deployment started",
		zap.String("task_id", taskID),
		zap.String("binary", req.Binary),
		zap.Bool("headless", req.Headless),
	)

	res, err := h.newService(out).Deploy(ctx, service.DeployRequest{
		Binary:     req.Binary,
		Instance:   req.Instance,
		AppPath:    req.AppPath,
		BinaryArgs: req.BinaryArgs,
		Vars:       req.Vars,
		Headless:   req.Headless,
		EnvVars:    req.EnvVars,
	})
	if err != nil {
		h.logger.Error("Deployment aborted", zap.String("task_id", taskID), zap.Error(err))
		return nil, utils.NewToolError(res.Step, err)
	}

	resp := &model.DeployResponse{
		Success:  res.Success(),
		TaskID:   taskID,
		ExitCode: res.ExitCode,
		Step:     res.Step,
		Sources:  res.Sources,
		Message:  "Deployment completed successfully",
	}
	if !res.Success() {
		resp.Message = utils.NewStepError(res.Step, res.ExitCode).Error()
	}
	h.logger.Info("Deployment finished",
		zap.String("task_id", taskID),
		zap.String("step", res.Step),
		zap.Int("exit_code", res.ExitCode),
	)
	return resp, nil
}

func validateDeployRequest(req *model.DeployRequest) *utils.APIError {
	if err := utils.ValidateBinaryPath(req.Binary); err != nil {
		return utils.NewValidationError("binary", req.Binary)
	}
	if err := utils.ValidateInstanceName(req.Instance); err != nil {
		return utils.NewValidationError("instance", req.Instance)
	}
	if req.AppPath != "" {
		if err := utils.ValidateAppPath(req.AppPath); err != nil {
			return utils.NewValidationError("appPath", req.AppPath)
		}
	}
	if err := ggp.CheckArgs(req.BinaryArgs); err != nil {
		return utils.NewValidationError("binaryArgs", req.BinaryArgs)
	}
	if req.EnvVars != "" {
		if !req.Headless {
			apiErr := utils.NewValidationError("envVars", req.EnvVars)
			apiErr.Details = "envVars only applies to headless runs"
			return apiErr
		}
		if _, err := ggp.NormalizeEnv(req.EnvVars); err != nil {
			return utils.NewValidationError("envVars", req.EnvVars)
		}
	}
	return nil
}

func invalidPayload(err error) model.ErrorResponse {
	return model.ErrorResponse{
		Success: false,
		Code:    utils.CodeValidation,
		Message: "Invalid request payload",
		Details: err.Error(),
	}
}

func busyResponse() model.ErrorResponse {
	return model.ErrorResponse{
		Success: false,
		Message: "Another ggp operation is in progress",
	}
}

func errorResponse(e *utils.APIError) model.ErrorResponse {
	return model.ErrorResponse{
		Success: false,
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
	}
}
