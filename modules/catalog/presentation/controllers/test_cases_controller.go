package controllers

import (
	"errors"
	"io"
	"mime"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/iota-uz/testbench/modules/catalog/domain/hierarchy"
	"github.com/iota-uz/testbench/modules/catalog/services"
	"github.com/iota-uz/testbench/pkg/application"
	"github.com/iota-uz/testbench/pkg/configuration"
	"github.com/iota-uz/testbench/pkg/constants"
	"github.com/iota-uz/testbench/pkg/httpapi"
	"github.com/iota-uz/testbench/pkg/serrors"
)

var errMissingUpload = serrors.ValidationFields("INVALID_UPLOAD", map[string]string{
	"file": "an .xlsx file is required",
})

type TestCasesController struct {
	app      application.Application
	catalog  *services.CatalogService
	importer *services.ImportService
	basePath string
}

func NewTestCasesController(app application.Application) application.Controller {
	return &TestCasesController{
		app:      app,
		catalog:  app.Service(services.CatalogService{}).(*services.CatalogService),
		importer: app.Service(services.ImportService{}).(*services.ImportService),
		basePath: constants.APIPrefix + "/test-cases",
	}
}

func (c *TestCasesController) Key() string {
	return c.basePath
}

func (c *TestCasesController) Register(r *mux.Router) {
	r.HandleFunc(c.basePath, c.create).Methods(http.MethodPost)
	r.HandleFunc(c.basePath+":import", c.importSheet).Methods(http.MethodPost)
	r.HandleFunc(c.basePath+"/{id}", c.get).Methods(http.MethodGet)
	r.HandleFunc(c.basePath+"/{id}", c.delete).Methods(http.MethodDelete)
}

func (c *TestCasesController) create(w http.ResponseWriter, r *http.Request) {
	var dto hierarchy.TestCaseCreateDTO
	if err := httpapi.DecodeJSON(r, &dto); err != nil {
		httpapi.WriteServiceError(w, r, err)
		return
	}
	tc, err := c.catalog.CreateTestCase(r.Context(), &dto)
	if err != nil {
		httpapi.WriteServiceError(w, r, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusCreated, tc)
}

func (c *TestCasesController) get(w http.ResponseWriter, r *http.Request) {
	id, err := httpapi.PathUUID(r, "id")
	if err != nil {
		httpapi.WriteServiceError(w, r, err)
		return
	}
	tc, err := c.catalog.GetTestCase(r.Context(), id)
	if err != nil {
		httpapi.WriteServiceError(w, r, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, tc)
}

func (c *TestCasesController) delete(w http.ResponseWriter, r *http.Request) {
	id, err := httpapi.PathUUID(r, "id")
	if err != nil {
		httpapi.WriteServiceError(w, r, err)
		return
	}
	if err := c.catalog.DeleteTestCase(r.Context(), id); err != nil {
		httpapi.WriteServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// importSheet accepts the workbook either as the "file" part of a multipart form or
// as the raw request body.
func (c *TestCasesController) importSheet(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, configuration.Use().MaxUploadSize)

	var body io.Reader = r.Body
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		file, _, err := r.FormFile("file")
		if err != nil {
			c.writeUploadError(w, r, err)
			return
		}
		defer file.Close()
		body = file
	}

	report, err := c.importer.Import(r.Context(), body)
	if err != nil {
		c.writeUploadError(w, r, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, report)
}

func (c *TestCasesController) writeUploadError(w http.ResponseWriter, r *http.Request, err error) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		_ = httpapi.WriteError(w, http.StatusRequestEntityTooLarge, "UPLOAD_TOO_LARGE", "upload exceeds the size limit", map[string]string{
			"request_id": httpapi.RequestID(w, r),
		})
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
		httpapi.WriteServiceError(w, r, errMissingUpload)
	default:
		httpapi.WriteServiceError(w, r, err)
	}
}
