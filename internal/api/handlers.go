package api

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	str2duration "github.com/xhit/go-str2duration/v2"

	"github.com/iliamunaev/Valinor-Secure/internal/audit"
	"github.com/iliamunaev/Valinor-Secure/internal/cache"
	"github.com/iliamunaev/Valinor-Secure/internal/radar"
)

func (s *Server) assess(c *fiber.Ctx) error {
	var req radar.Request
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}
	if err := req.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": err.Error(),
		})
	}

	started := time.Now()
	reqID := s.audit.Request(c.Path(), c.Method(), req)
	ctx := audit.WithRequestID(c.UserContext(), reqID)

	result, err := s.svc.Assess(ctx, req)
	if err != nil {
		s.audit.Response(reqID, fiber.StatusInternalServerError, nil, time.Since(started), err.Error())
		log.Error().Err(err).Str("product", req.ProductName).Msg("assessment failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Assessment failed",
			"error":   err.Error(),
		})
	}

	s.audit.Response(reqID, fiber.StatusOK, result, time.Since(started), "")
	return c.JSON(result)
}

// batchRow reports the outcome of one CSV line.
type batchRow struct {
	Line   int           `json:"line"`
	Result *radar.Result `json:"result,omitempty"`
	Error  string        `json:"error,omitempty"`
}

// assessBatch accepts a CSV upload with columns company_name, product_name,
// sha1 and assesses each row through the same cache-aware workflow. Row
// failures are collected, not fatal.
func (s *Server) assessBatch(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Missing CSV upload under form field 'file'",
		})
	}
	f, err := fileHeader.Open()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Could not read upload",
			"error":   err.Error(),
		})
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	rows := []batchRow{}
	line := 0
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			rows = append(rows, batchRow{Line: line, Error: err.Error()})
			continue
		}
		if line == 1 && isHeaderRow(record) {
			continue
		}
		req, err := rowToRequest(record)
		if err != nil {
			rows = append(rows, batchRow{Line: line, Error: err.Error()})
			continue
		}
		result, err := s.svc.Assess(c.UserContext(), req)
		if err != nil {
			rows = append(rows, batchRow{Line: line, Error: err.Error()})
			continue
		}
		rows = append(rows, batchRow{Line: line, Result: result})
	}

	return c.JSON(fiber.Map{"rows": rows})
}

func isHeaderRow(record []string) bool {
	for _, field := range record {
		if strings.EqualFold(strings.TrimSpace(field), "product_name") {
			return true
		}
	}
	return false
}

func rowToRequest(record []string) (radar.Request, error) {
	if len(record) < 2 {
		return radar.Request{}, fmt.Errorf("expected company_name,product_name[,sha1], got %d fields", len(record))
	}
	req := radar.Request{
		CompanyName: strings.TrimSpace(record[0]),
		ProductName: strings.TrimSpace(record[1]),
	}
	if len(record) > 2 {
		req.SHA1 = strings.TrimSpace(record[2])
	}
	return req, req.Validate()
}

func (s *Server) listCache(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", defaultListLimit)
	offset := c.QueryInt("offset", 0)
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if limit < 0 || offset < 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "limit and offset must be non-negative",
		})
	}

	total, summaries, err := s.store.List(c.UserContext(), limit, offset)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not list cache",
			"error":   err.Error(),
		})
	}
	return c.JSON(fiber.Map{
		"total":       total,
		"limit":       limit,
		"offset":      offset,
		"assessments": summaries,
	})
}

func (s *Server) searchCache(c *fiber.Ctx) error {
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Query parameter 'q' is required",
		})
	}
	summaries, err := s.store.Search(c.UserContext(), q)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Search failed",
			"error":   err.Error(),
		})
	}
	return c.JSON(fiber.Map{"query": q, "assessments": summaries})
}

func (s *Server) cacheStats(c *fiber.Ctx) error {
	stats, err := s.store.Stats(c.UserContext())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not read stats",
			"error":   err.Error(),
		})
	}
	return c.JSON(stats)
}

func (s *Server) getCached(c *fiber.Ctx) error {
	result, err := s.svc.Lookup(c.UserContext(), c.Params("key"))
	if errors.Is(err, cache.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"message": "Assessment not found in cache",
		})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Cache lookup failed",
			"error":   err.Error(),
		})
	}
	return c.JSON(result)
}

func (s *Server) deleteCached(c *fiber.Ctx) error {
	removed, err := s.store.Delete(c.UserContext(), c.Params("key"))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Delete failed",
			"error":   err.Error(),
		})
	}
	if !removed {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"message": "Assessment not found in cache",
		})
	}
	return c.JSON(fiber.Map{"deleted": true})
}

type purgeRequest struct {
	MaxAge string `json:"max_age"`
}

// purgeCache deletes entries older than max_age. The body may carry a
// human-friendly duration like "30d" or "24h"; otherwise the configured
// default applies.
func (s *Server) purgeCache(c *fiber.Ctx) error {
	maxAge := s.opts.DefaultPurgeAge
	var req purgeRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"message": "Invalid request body",
				"error":   err.Error(),
			})
		}
	}
	if strings.TrimSpace(req.MaxAge) != "" {
		d, err := str2duration.ParseDuration(req.MaxAge)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"message": "Invalid max_age duration",
				"error":   err.Error(),
			})
		}
		maxAge = d
	}
	if maxAge <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "max_age must be positive",
		})
	}

	deleted, err := s.store.Purge(c.UserContext(), maxAge)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Purge failed",
			"error":   err.Error(),
		})
	}
	return c.JSON(fiber.Map{"deleted": deleted, "max_age": maxAge.String()})
}

func (s *Server) briefPDF(c *fiber.Ctx) error {
	result, err := s.svc.Lookup(c.UserContext(), c.Params("key"))
	if errors.Is(err, cache.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"message": "Assessment not found in cache",
		})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Cache lookup failed",
			"error":   err.Error(),
		})
	}

	md := renderBrief(&result.Assessment)
	pdf, err := briefToPDF(md)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "PDF rendering failed",
			"error":   err.Error(),
		})
	}
	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition,
		fmt.Sprintf("attachment; filename=%q", briefFilename(result.ProductName)))
	return c.Send(pdf)
}
