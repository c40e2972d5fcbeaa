package httpapi

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/infrastructure-risk/internal/monitor"
	"github.com/i474232898/infrastructure-risk/internal/store"
)

var validate = validator.New()

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, service *monitor.Service) {
	// Search and batch update report failures in the body, never as a status code.
	app.Post("/search", func(c *fiber.Ctx) error {
		req, err := parseSearchRequest(c)
		if err != nil {
			return failure(c, err)
		}

		result, err := service.Search(c.UserContext(), req)
		if err != nil {
			return failure(c, err)
		}

		return c.JSON(fiber.Map{
			"success":        true,
			"run_id":         result.RunID,
			"center":         result.Center,
			"infrastructure": result.Infrastructure,
		})
	})

	v1 := app.Group("/api/v1")

	v1.Post("/risk/update", func(c *fiber.Ctx) error {
		req, err := parseSearchRequest(c)
		if err != nil {
			return failure(c, err)
		}

		updates, err := service.BatchUpdate(c.UserContext(), req)
		if err != nil {
			return failure(c, err)
		}

		return c.JSON(fiber.Map{
			"success": true,
			"updates": updates,
		})
	})

	v1.Get("/assessments/latest", func(c *fiber.Ctx) error {
		q, err := parseCityQuery(c)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		result, err := service.Latest(q.City)
		if err != nil {
			return storeError(err, "no assessments for requested city")
		}

		return c.JSON(result)
	})

	v1.Get("/assessments/history", func(c *fiber.Ctx) error {
		var req historyQuery
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		results, err := service.History(req.City.City, req.From, req.To)
		if err != nil {
			return storeError(err, "no assessments for requested range")
		}

		return c.JSON(fiber.Map{
			"city":    req.City.City,
			"from":    req.From,
			"to":      req.To,
			"results": results,
		})
	})
}

func failure(c *fiber.Ctx, err error) error {
	return c.JSON(fiber.Map{
		"success": false,
		"error":   err.Error(),
	})
}

func storeError(err error, notFound string) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, notFound)
	case errors.Is(err, monitor.ErrNoStore):
		return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
	default:
		return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch assessments")
	}
}

// parseSearchRequest reads {city, radius} from a JSON or form body, applying
// the defaults for missing fields.
func parseSearchRequest(c *fiber.Ctx) (monitor.Request, error) {
	req := monitor.Request{City: monitor.DefaultCity, RadiusKM: monitor.DefaultRadiusKM}

	if c.Is("json") {
		var body struct {
			City   *string  `json:"city"`
			Radius *float64 `json:"radius"`
		}
		if err := json.Unmarshal(c.Body(), &body); err != nil {
			return req, errors.New("invalid JSON body: " + err.Error())
		}
		if body.City != nil {
			req.City = *body.City
		}
		if body.Radius != nil {
			req.RadiusKM = *body.Radius
		}
		return req, nil
	}

	if city := c.FormValue("city"); city != "" {
		req.City = city
	}
	if raw := strings.TrimSpace(c.FormValue("radius")); raw != "" {
		radius, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return req, errors.New("could not convert radius to a number: " + strconv.Quote(raw))
		}
		req.RadiusKM = radius
	}
	return req, nil
}

// cityQuery holds query parameters for identifying a watched city.
type cityQuery struct {
	City string `validate:"required"`
}

func parseCityQuery(c *fiber.Ctx) (cityQuery, error) {
	var q cityQuery

	q.City = c.Query("city")

	if err := validate.Struct(q); err != nil {
		return q, err
	}

	return q, nil
}

// historyQuery holds query parameters for the history endpoint.
type historyQuery struct {
	City cityQuery
	From time.Time `validate:"required"`
	To   time.Time `validate:"required,gtefield=From"`
}

func (h *historyQuery) bind(c *fiber.Ctx) error {
	q, err := parseCityQuery(c)
	if err != nil {
		return err
	}
	h.City = q

	fromStr := c.Query("from")
	toStr := c.Query("to")
	if fromStr == "" || toStr == "" {
		return errors.New("from and to query parameters are required")
	}

	from, err := parseTime(fromStr)
	if err != nil {
		return err
	}
	to, err := parseTime(toStr)
	if err != nil {
		return err
	}

	h.From = from
	h.To = to
	return nil
}

// parseTime tries to parse either RFC3339 or Unix seconds.
func parseTime(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, errors.New("invalid time format; use RFC3339 or unix seconds")
}
