package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	"github.com/annolab/tile-ingest/internal/service"
)

type IngestHandler struct {
	ingest   *service.IngestService
	projects *service.ProjectService
}

func NewIngestHandler(ingest *service.IngestService, projects *service.ProjectService) *IngestHandler {
	return &IngestHandler{ingest: ingest, projects: projects}
}

func (h *IngestHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1/projects", func(r chi.Router) {
		r.Get("/", h.listProjects)
		r.Post("/", h.createProject)
		r.Get("/{id}", h.getProject)
		r.Post("/{id}/images/split", h.splitImages)
	})
}

type statusReply struct {
	Message string `json:"message"`
}

type errorReply struct {
	Error string `json:"error"`
}

type splitImagesRequest struct {
	FileNames []string `json:"fileNames"`
}

type annotationClassRequest struct {
	Name        string  `json:"name"`
	Color       string  `json:"color"`
	HotKey      *string `json:"hotKey,omitempty"`
	Description *string `json:"description,omitempty"`
}

type createProjectRequest struct {
	Name              string                   `json:"name"`
	Description       string                   `json:"description"`
	AnnotationClasses []annotationClassRequest `json:"annotationClasses"`
	CreatedBy         string                   `json:"createdBy"`
}

// splitImages is the ingestion trigger: the request carries file names
// already staged in the originals bucket. The response is a plain status
// message; internal errors surface as their string rendering only.
func (h *IngestHandler) splitImages(w http.ResponseWriter, r *http.Request) {
	projectID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		renderError(w, r, http.StatusBadRequest, err)
		return
	}

	var req splitImagesRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		renderError(w, r, http.StatusBadRequest, err)
		return
	}
	if len(req.FileNames) == 0 {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, errorReply{Error: "fileNames must not be empty"})
		return
	}

	if err := h.ingest.SplitAndUpload(r.Context(), projectID, req.FileNames); err != nil {
		renderError(w, r, statusCodeFor(err), err)
		return
	}

	render.JSON(w, r, statusReply{Message: "split and upload completed"})
}

func (h *IngestHandler) createProject(w http.ResponseWriter, r *http.Request) {
	var req createProjectRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		renderError(w, r, http.StatusBadRequest, err)
		return
	}

	form := service.ProjectCreateForm{
		Name:        req.Name,
		Description: req.Description,
		CreatedBy:   req.CreatedBy,
	}
	for _, c := range req.AnnotationClasses {
		form.AnnotationClasses = append(form.AnnotationClasses, service.AnnotationClassForm{
			Name:        c.Name,
			Color:       c.Color,
			HotKey:      c.HotKey,
			Description: c.Description,
		})
	}

	project, err := h.projects.CreateProject(r.Context(), form)
	if err != nil {
		renderError(w, r, http.StatusInternalServerError, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, project)
}

func (h *IngestHandler) getProject(w http.ResponseWriter, r *http.Request) {
	projectID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		renderError(w, r, http.StatusBadRequest, err)
		return
	}

	project, err := h.projects.GetProject(r.Context(), projectID)
	if err != nil {
		renderError(w, r, statusCodeFor(err), err)
		return
	}

	render.JSON(w, r, project)
}

func (h *IngestHandler) listProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.projects.ListProjects(r.Context())
	if err != nil {
		renderError(w, r, http.StatusInternalServerError, err)
		return
	}
	render.JSON(w, r, projects)
}

func renderError(w http.ResponseWriter, r *http.Request, code int, err error) {
	render.Status(r, code)
	render.JSON(w, r, errorReply{Error: err.Error()})
}

func statusCodeFor(err error) int {
	var notFound *service.ErrProjectNotFound
	var rejected *service.ErrImageRejected
	var invalid *service.ErrInvalidImage

	switch {
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &rejected), errors.As(err, &invalid):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
