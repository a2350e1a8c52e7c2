package handlers

import (
	"net/http"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/labstack/echo/v4"

	"github.com/uniregistry/course_registration/internal/httperr"
	"github.com/uniregistry/course_registration/internal/service/search"
	"github.com/uniregistry/course_registration/internal/util"
)

type SearchHandler struct {
	ES    *elasticsearch.Client
	Index string
}

func (h *SearchHandler) Search(c echo.Context) error {
	q := c.QueryParam("q")
	if q == "" {
		return httperr.Validation("query parameter q is required")
	}

	page := parseIntDefault(c.QueryParam("page"), 1)
	size := parseIntDefault(c.QueryParam("size"), util.DefaultPageSize)
	from, size := util.Calculate(page, size)

	total, courses, err := search.Search(c.Request().Context(), h.ES, h.Index, q, from, size)
	if err != nil {
		return httperr.Unknown()
	}

	return c.JSON(http.StatusOK, echo.Map{"total": total, "courses": courses})
}
